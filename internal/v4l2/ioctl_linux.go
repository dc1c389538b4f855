//////////////////////////////////////////////////////////////////////////////
//
// Raw video4linux2 ioctl numbers and wire structures.
//
// Grounded on the ioctl/mmap pattern of the teacher repo's
// internal/v4l2/device.go: the VIDIOC_* request codes and structure
// layouts are standard Linux UAPI values (linux/videodev2.h), reproduced
// here because cgo is avoided for the ioctl boundary in favor of
// golang.org/x/sys/unix.Syscall, matching the teacher's style.
//
//////////////////////////////////////////////////////////////////////////////

package v4l2

const (
	v4l2BufTypeVideoCapture = 1
	v4l2MemoryMMAP          = 1
	v4l2FieldNone           = 1

	v4l2CidHFlip = 0x00980914
	v4l2CidVFlip = 0x00980915
)

const (
	vidiocQueryCap   = 0x80685600
	vidiocSFmt       = 0xc0d05605
	vidiocGFmt       = 0xc0d05604
	vidiocReqBufs    = 0xc0145608
	vidiocQueryBuf   = 0xc0585609
	vidiocQBuf       = 0xc058560f
	vidiocDQBuf      = 0xc0585611
	vidiocStreamOn   = 0x40045612
	vidiocStreamOff  = 0x40045613
	vidiocSCtrl      = 0xc008561c
)

// v4l2_pix_format, see struct v4l2_pix_format in linux/videodev2.h.
type v4l2PixFormat struct {
	width        uint32
	height       uint32
	pixelFormat  uint32
	field        uint32
	bytesPerLine uint32
	sizeImage    uint32
	colorspace   uint32
	priv         uint32
	flags        uint32
	ycbcrEnc     uint32
	quantization uint32
	xferFunc     uint32
}

// v4l2_format has a 200-byte union after the type field, 8-byte aligned on
// 64-bit so it starts at offset 8; we only ever populate the pix member, so
// pad the remainder.
type v4l2Format struct {
	typ uint32
	_   uint32
	pix v4l2PixFormat
	_   [200 - 48]byte
}

type v4l2RequestBuffers struct {
	count    uint32
	typ      uint32
	memory   uint32
	reserved [2]uint32
}

type v4l2Timecode struct {
	typ      uint32
	flags    uint32
	frames   byte
	seconds  byte
	minutes  byte
	hours    byte
	userbits [4]byte
}

type v4l2Buffer struct {
	index     uint32
	typ       uint32
	bytesUsed uint32
	flags     uint32
	field     uint32
	_         uint32   // struct timeval is 8-byte aligned
	timestamp [16]byte // struct timeval
	timecode  v4l2Timecode
	sequence  uint32
	memory    uint32
	m         uint32 // offset (we only use MMAP, so this is a plain offset)
	_         uint32 // rest of the 8-byte m union
	length    uint32
	reserved2 uint32
	reserved  uint32
	_         uint32 // tail padding to the 8-byte struct alignment
}

type v4l2Control struct {
	id    uint32
	value int32
}
