package scp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSerializeRequiresBody(t *testing.T) {
	_, err := Serialize(KeyShare, nil)
	assert.ErrorIs(t, err, ErrInvalidMessage)

	_, err = Serialize(Ready, nil)
	assert.NoError(t, err, "Ready does not require a body")
}

func TestRoundTrip(t *testing.T) {
	cases := []struct {
		name    string
		command Command
		body    []byte
	}{
		{"SimpleMessage", SimpleMessage, []byte("Hello")},
		{"Start", Start, []byte{0x01, 0x02}},
		{"PreferencesShare", PreferencesShare, []byte("video_encoding=h264\n")},
		{"Ready", Ready, nil},
		{"End", End, nil},
		{"OwnKeyRequired", OwnKeyRequired, nil},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			wire, err := Serialize(c.command, c.body)
			require.NoError(t, err)

			msg, err := Parse(wire)
			require.NoError(t, err)
			assert.Equal(t, c.command, msg.Command)
			assert.Equal(t, c.body, msg.Body)
		})
	}
}

// Scenario-Codec-1 from spec.md §8.
func TestScenarioCodec1(t *testing.T) {
	wire, err := Serialize(SimpleMessage, []byte("Hello"))
	require.NoError(t, err)

	expected := append([]byte(nil), header...)
	expected = append(expected, 0x07, 0x00)
	expected = append(expected, "Hello"...)
	expected = append(expected, '\n')
	expected = append(expected, footer...)
	assert.Equal(t, expected, wire)

	msg, err := Parse(wire)
	require.NoError(t, err)
	assert.Equal(t, []byte("Hello"), msg.Body)
}

// Scenario-Codec-2 from spec.md §8.
func TestScenarioCodec2(t *testing.T) {
	raw := append([]byte(nil), header...)
	raw = append(raw, 0x04, 0x00) // KeyShare
	raw = append(raw, '\n')
	raw = append(raw, footer...)

	_, err := Parse(raw)
	assert.ErrorIs(t, err, ErrMissingBody)
}

func TestParseRejection(t *testing.T) {
	t.Run("missing header", func(t *testing.T) {
		_, err := Parse([]byte("not a header at all"))
		assert.ErrorIs(t, err, ErrBadStructure)
	})

	t.Run("missing end", func(t *testing.T) {
		raw, err := Serialize(SimpleMessage, []byte("x"))
		require.NoError(t, err)
		truncated := raw[:len(raw)-3]
		_, err = Parse(truncated)
		assert.ErrorIs(t, err, ErrMissingEnd)
	})

	t.Run("missing command", func(t *testing.T) {
		raw := append([]byte(nil), header...)
		raw = append(raw, footer...)
		_, err := Parse(raw)
		assert.ErrorIs(t, err, ErrMissingCommand)
	})

	t.Run("out of range command", func(t *testing.T) {
		raw := append([]byte(nil), header...)
		raw = append(raw, 0xFF, 0xFF)
		raw = append(raw, '\n')
		raw = append(raw, footer...)
		_, err := Parse(raw)
		assert.ErrorIs(t, err, ErrBadStructure)
	})
}

func TestCommandRequiresBody(t *testing.T) {
	assert.True(t, Start.RequiresBody())
	assert.True(t, KeyShare.RequiresBody())
	assert.True(t, PreferencesShare.RequiresBody())
	assert.True(t, SimpleMessage.RequiresBody())

	assert.False(t, OwnKeyRequired.RequiresBody())
	assert.False(t, ReqGenerateKey.RequiresBody())
	assert.False(t, AckGenerateKey.RequiresBody())
	assert.False(t, Ready.RequiresBody())
	assert.False(t, End.RequiresBody())
}
