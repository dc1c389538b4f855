//////////////////////////////////////////////////////////////////////////////
//
// Preferences describes an endpoint's connection preferences, exchanged
// during SCP negotiation via a PreferencesShare message. See spec.md §3.
//
//////////////////////////////////////////////////////////////////////////////

package scp

import (
	"bufio"
	"bytes"
	"fmt"
	"strconv"
	"strings"
)

// VideoEncoding names a supported video codec. H264 is the only one this
// repository implements (spec.md §1 scope).
type VideoEncoding string

const (
	VideoH264 VideoEncoding = "h264"
)

// AudioEncoding names a supported audio codec. Audio is out of scope
// (spec.md §1 Non-goals); the field is carried only because it is part of
// the negotiated Preferences record.
type AudioEncoding string

const (
	AudioNone AudioEncoding = "none"
)

// Preferences is an endpoint's connection preferences.
type Preferences struct {
	VideoEncoding VideoEncoding
	AudioEncoding AudioEncoding
	PortInVideo   uint16
	PortInAudio   uint16
	PortSCP       uint16
}

// DefaultPreferences returns the defaults named in spec.md §3: H.264
// video, unspecified audio, video port 7000, audio port 7001, SCP port
// 60201.
func DefaultPreferences() Preferences {
	return Preferences{
		VideoEncoding: VideoH264,
		AudioEncoding: AudioNone,
		PortInVideo:   7000,
		PortInAudio:   7001,
		PortSCP:       60201,
	}
}

// Marshal serializes Preferences into the self-describing key/value text
// form used as a PreferencesShare body: one "key=value" line per field,
// trailing newline, order-independent on read.
func (p Preferences) Marshal() []byte {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "video_encoding=%s\n", p.VideoEncoding)
	fmt.Fprintf(&buf, "audio_encoding=%s\n", p.AudioEncoding)
	fmt.Fprintf(&buf, "port_in_video=%d\n", p.PortInVideo)
	fmt.Fprintf(&buf, "port_in_audio=%d\n", p.PortInAudio)
	fmt.Fprintf(&buf, "port_scp=%d\n", p.PortSCP)
	return buf.Bytes()
}

// UnmarshalPreferences parses the key/value text form produced by
// Marshal. Unknown keys are ignored for forward compatibility; missing
// keys keep their DefaultPreferences value.
func UnmarshalPreferences(body []byte) (Preferences, error) {
	p := DefaultPreferences()

	scanner := bufio.NewScanner(bytes.NewReader(body))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		kv := strings.SplitN(line, "=", 2)
		if len(kv) != 2 {
			continue
		}
		key, value := kv[0], kv[1]

		switch key {
		case "video_encoding":
			p.VideoEncoding = VideoEncoding(value)
		case "audio_encoding":
			p.AudioEncoding = AudioEncoding(value)
		case "port_in_video":
			if n, err := strconv.ParseUint(value, 10, 16); err == nil {
				p.PortInVideo = uint16(n)
			}
		case "port_in_audio":
			if n, err := strconv.ParseUint(value, 10, 16); err == nil {
				p.PortInAudio = uint16(n)
			}
		case "port_scp":
			if n, err := strconv.ParseUint(value, 10, 16); err == nil {
				p.PortSCP = uint16(n)
			}
		}
	}
	if err := scanner.Err(); err != nil {
		return Preferences{}, err
	}

	return p, nil
}
