package scp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPreferencesRoundTrip(t *testing.T) {
	p := Preferences{
		VideoEncoding: VideoH264,
		AudioEncoding: AudioNone,
		PortInVideo:   7000,
		PortInAudio:   7001,
		PortSCP:       60102,
	}

	parsed, err := UnmarshalPreferences(p.Marshal())
	require.NoError(t, err)
	assert.Equal(t, p, parsed)
}

func TestPreferencesUnmarshalIgnoresUnknownKeys(t *testing.T) {
	body := []byte("video_encoding=h264\nunknown_future_key=42\nport_scp=60201\n")
	p, err := UnmarshalPreferences(body)
	require.NoError(t, err)
	assert.Equal(t, VideoH264, p.VideoEncoding)
	assert.EqualValues(t, 60201, p.PortSCP)
}

func TestDefaultPreferences(t *testing.T) {
	p := DefaultPreferences()
	assert.Equal(t, VideoH264, p.VideoEncoding)
	assert.EqualValues(t, 7000, p.PortInVideo)
	assert.EqualValues(t, 7001, p.PortInAudio)
	assert.EqualValues(t, 60201, p.PortSCP)
}
