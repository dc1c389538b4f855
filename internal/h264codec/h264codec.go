//////////////////////////////////////////////////////////////////////////////
//
// h264codec binds the system OpenH264 shared library via cgo, in the shape
// of the teacher's internal/media Opus binding (media.OpusEncoder /
// media.OpusDecoder): a thin Encoder/Decoder pair with a Close, C buffers
// marshaled in and out per call.
//
//////////////////////////////////////////////////////////////////////////////

package h264codec

// #cgo pkg-config: openh264
// #include <stdlib.h>
// #include <wels/codec_api.h>
// #include <wels/codec_app_def.h>
//
// static int eyespy_encoder_new(ISVCEncoder **enc) {
//   return WelsCreateSVCEncoder(enc);
// }
// static void eyespy_encoder_free(ISVCEncoder *enc) {
//   WelsDestroySVCEncoder(enc);
// }
// static int eyespy_decoder_new(ISVCDecoder **dec) {
//   return CreateDecoder(dec);
// }
// static void eyespy_decoder_free(ISVCDecoder *dec) {
//   DestroyDecoder(dec);
// }
//
// // Sums one bitstream layer's NAL lengths; OpenH264 reports each NAL's
// // length in a separate int array rather than one total.
// static int eyespy_layer_size(SLayerBSInfo *layer) {
//   int total = 0;
//   for (int i = 0; i < layer->iNalCount; i++) {
//     total += layer->pNalLengthInByte[i];
//   }
//   return total;
// }
import "C"

import (
	"unsafe"

	"github.com/pkg/errors"
)

// ErrEncodeFailed and ErrDecodeFailed wrap non-zero OpenH264 return codes.
// OpenH264 doesn't expose a string-per-code API the way Opus does, so each
// call site wraps these sentinels with the numeric code instead.
var (
	ErrEncodeFailed = errors.New("h264codec: encode failed")
	ErrDecodeFailed = errors.New("h264codec: decode failed")
)

// Encoder wraps an OpenH264 ISVCEncoder configured for one fixed
// width/height, matching spec.md §4.3's single-resolution capture path.
type Encoder struct {
	handle *C.ISVCEncoder
	width  int
	height int
	// forceKeyFrame is consumed by the next Encode call.
	forceKeyFrame bool
}

// NewEncoder creates an OpenH264 encoder for width x height video at a
// fixed default bitrate/quality (spec.md §4.3: "default quality", no
// tunable parameters are named).
func NewEncoder(width, height int) (*Encoder, error) {
	var handle *C.ISVCEncoder
	if rc := C.eyespy_encoder_new(&handle); rc != 0 {
		return nil, errors.Wrapf(ErrEncodeFailed, "WelsCreateSVCEncoder rc=%d", int(rc))
	}

	var params C.SEncParamBase
	params.iUsageType = C.CAMERA_VIDEO_REAL_TIME
	params.iPicWidth = C.int(width)
	params.iPicHeight = C.int(height)
	params.iTargetBitrate = C.int(1_000_000)
	params.iRCMode = C.RC_QUALITY_MODE
	params.fMaxFrameRate = C.float(30.0)

	if rc := handle.Initialize(handle, &params); rc != 0 {
		C.eyespy_encoder_free(handle)
		return nil, errors.Wrapf(ErrEncodeFailed, "Initialize rc=%d", int(rc))
	}

	return &Encoder{handle: handle, width: width, height: height}, nil
}

// ForceKeyFrame requests that the next Encode call produce an IDR frame,
// per spec.md §4.3's force_keyframe() contract (invoked once on every
// fresh CONNECT).
func (e *Encoder) ForceKeyFrame() {
	e.forceKeyFrame = true
}

// Encode compresses one planar YUV 4:2:0-shaped frame (y, u, v sized per
// spec.md §4.3's width-stride convention) into an H.264 access unit.
func (e *Encoder) Encode(y, u, v []byte) ([]byte, error) {
	var pic C.SSourcePicture
	pic.iColorFormat = C.videoFormatI420
	pic.iPicWidth = C.int(e.width)
	pic.iPicHeight = C.int(e.height)
	pic.iStride[0] = C.int(e.width)
	pic.iStride[1] = C.int(e.width)
	pic.iStride[2] = C.int(e.width)
	pic.pData[0] = (*C.uchar)(unsafe.Pointer(&y[0]))
	pic.pData[1] = (*C.uchar)(unsafe.Pointer(&u[0]))
	pic.pData[2] = (*C.uchar)(unsafe.Pointer(&v[0]))

	if e.forceKeyFrame {
		e.handle.ForceIntraFrame(e.handle, 1)
		e.forceKeyFrame = false
	}

	var bsInfo C.SFrameBSInfo
	rc := e.handle.EncodeFrame(e.handle, &pic, &bsInfo)
	if rc != 0 {
		return nil, errors.Wrapf(ErrEncodeFailed, "EncodeFrame rc=%d", int(rc))
	}
	if bsInfo.eFrameType == C.videoFrameTypeSkip {
		return nil, nil
	}

	var out []byte
	for i := 0; i < int(bsInfo.iLayerNum); i++ {
		layer := &bsInfo.sLayerInfo[i]
		size := C.eyespy_layer_size(layer)
		out = append(out, C.GoBytes(unsafe.Pointer(layer.pBsBuf), size)...)
	}
	return out, nil
}

// Close releases the underlying encoder.
func (e *Encoder) Close() error {
	e.handle.Uninitialize(e.handle)
	C.eyespy_encoder_free(e.handle)
	return nil
}

// Decoder wraps an OpenH264 ISVCDecoder. It decodes a single NAL unit (or
// access unit) at a time into a pre-allocated RGBA destination buffer.
type Decoder struct {
	handle *C.ISVCDecoder
	width  int
	height int
}

// NewDecoder creates an OpenH264 decoder for the fixed width x height
// produced by the capture/encode path.
func NewDecoder(width, height int) (*Decoder, error) {
	var handle *C.ISVCDecoder
	if rc := C.eyespy_decoder_new(&handle); rc != 0 {
		return nil, errors.Wrapf(ErrDecodeFailed, "CreateDecoder rc=%d", int(rc))
	}

	var params C.SDecodingParam
	if rc := handle.Initialize(handle, &params); rc != 0 {
		C.eyespy_decoder_free(handle)
		return nil, errors.Wrapf(ErrDecodeFailed, "Initialize rc=%d", int(rc))
	}

	return &Decoder{handle: handle, width: width, height: height}, nil
}

// DecodeToRGBA decodes nal and, if a picture is completed, converts its
// I420 planes into dst as interleaved RGBA (size must be width*height*4).
// A nil return with no error means the call only buffered data and no
// picture was ready yet — callers should not treat that as failure.
func (d *Decoder) DecodeToRGBA(nal []byte, dst []byte) error {
	if len(dst) < d.width*d.height*4 {
		return errors.New("h264codec: destination buffer too small")
	}
	if len(nal) == 0 {
		return nil
	}

	var planes [3]*C.uchar
	var info C.SBufferInfo

	rc := d.handle.DecodeFrameNoDelay(
		d.handle,
		(*C.uchar)(unsafe.Pointer(&nal[0])),
		C.int(len(nal)),
		&planes[0],
		&info,
	)
	if rc != 0 {
		return errors.Wrapf(ErrDecodeFailed, "DecodeFrameNoDelay rc=%d", int(rc))
	}
	if info.iBufferStatus == 0 {
		// No picture ready yet; not an error (spec.md §4.5: "decoder errors
		// silently drop the unit", which this repo treats as "no frame" too).
		return nil
	}

	sb := info.UsrData.sSystemBuffer
	yStride := int(sb.iStride[0])
	cStride := int(sb.iStride[1])
	y := unsafe.Slice((*byte)(unsafe.Pointer(planes[0])), yStride*d.height)
	u := unsafe.Slice((*byte)(unsafe.Pointer(planes[1])), cStride*d.height/2)
	v := unsafe.Slice((*byte)(unsafe.Pointer(planes[2])), cStride*d.height/2)

	i420ToRGBA(y, u, v, yStride, cStride, d.width, d.height, dst)
	return nil
}

// Close releases the underlying decoder.
func (d *Decoder) Close() error {
	d.handle.Uninitialize(d.handle)
	C.eyespy_decoder_free(d.handle)
	return nil
}
