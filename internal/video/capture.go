//////////////////////////////////////////////////////////////////////////////
//
// Capture wraps a v4l2.Device and an h264codec.Encoder behind the single
// next_encoded() operation spec.md §4.3 describes: grab one camera buffer,
// walk it into planar YUV, and hand it to the encoder. Grounded on
// original_source's H264Stream::get_encoded_stream and prepare_yuv_slices,
// in the teacher's habit of wrapping a device + codec pair behind one
// narrow method (see internal/media's *Track types).
//
//////////////////////////////////////////////////////////////////////////////

package video

import (
	"github.com/pkg/errors"

	"github.com/kaimana/eyespy/internal/h264codec"
	"github.com/kaimana/eyespy/internal/v4l2"
)

const (
	FrameWidth  = 640
	FrameHeight = 480
)

var captureLog = log.WithTag("capture")

// StreamError is the single opaque error type next_encoded() can return, so
// a capture or encode failure is not distinguishable from the worker's
// point of view: both are "this tick produced nothing, try again"
// (spec.md §4.3).
type StreamError struct {
	cause error
}

func (e *StreamError) Error() string { return "video: capture/encode failed: " + e.cause.Error() }
func (e *StreamError) Unwrap() error { return e.cause }

func streamErr(cause error) *StreamError { return &StreamError{cause: cause} }

// Capture owns the camera device and the H.264 encoder, lazily created
// together and dropped together (spec.md §4.4: "lazily create capture+
// encoder if absent").
type Capture struct {
	device  *v4l2.Device
	encoder *h264codec.Encoder
}

// OpenCapture opens the camera (device path "" tries /dev/video0 then
// /dev/video1) and an encoder sized to match, and starts streaming.
func OpenCapture(devicePath string) (*Capture, error) {
	cfg := v4l2.DefaultConfig()

	var dev *v4l2.Device
	var err error
	if devicePath == "" {
		dev, err = v4l2.OpenDefault(cfg)
	} else {
		dev, err = v4l2.Open(devicePath, cfg)
	}
	if err != nil {
		return nil, errors.Wrap(err, "video: open camera")
	}

	if err := dev.Start(); err != nil {
		dev.Close()
		return nil, errors.Wrap(err, "video: start camera")
	}

	enc, err := h264codec.NewEncoder(FrameWidth, FrameHeight)
	if err != nil {
		dev.Close()
		return nil, errors.Wrap(err, "video: create encoder")
	}

	return &Capture{device: dev, encoder: enc}, nil
}

// ForceKeyFrame asks the encoder to emit an IDR on the next NextEncoded
// call (spec.md §4.3: invoked once per fresh CONNECT).
func (c *Capture) ForceKeyFrame() {
	c.encoder.ForceKeyFrame()
}

// NextEncoded captures one camera buffer and returns its H.264 encoding.
// Failures are wrapped in a StreamError and never fatal to the caller
// (spec.md §4.3).
func (c *Capture) NextEncoded() ([]byte, error) {
	raw, err := c.device.ReadFrame()
	if err != nil {
		return nil, streamErr(err)
	}

	y, u, v := yuyvToPlanarYUV(raw, FrameWidth, FrameHeight)

	encoded, err := c.encoder.Encode(y, u, v)
	if err != nil {
		return nil, streamErr(err)
	}
	return encoded, nil
}

// Close releases the encoder and camera.
func (c *Capture) Close() error {
	c.encoder.Close()
	return c.device.Close()
}

// yuyvToPlanarYUV walks a packed YUYV buffer four bytes at a time into
// three planar byte slices, bit-exact with spec.md §4.3: "Y U Y V →
// y.push(Y0); y.push(Y1); u.push(U); v.push(V)". Chroma planes end up
// width-stride but only half-populated per row pair — preserved
// intentionally rather than "fixed" into true 4:2:0, since downstream
// decode on the original side expects exactly this layout.
func yuyvToPlanarYUV(raw []byte, width, height int) (y, u, v []byte) {
	n := width * height
	y = make([]byte, 0, n)
	u = make([]byte, 0, n/2)
	v = make([]byte, 0, n/2)

	for i := 0; i+3 < len(raw); i += 4 {
		y0, u0, y1, v0 := raw[i], raw[i+1], raw[i+2], raw[i+3]
		y = append(y, y0, y1)
		u = append(u, u0)
		v = append(v, v0)
	}
	return y, u, v
}
