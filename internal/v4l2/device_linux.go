//go:build linux

//////////////////////////////////////////////////////////////////////////////
//
// Device wraps a video4linux2 character device configured for YUYV capture.
//
// Grounded on the teacher repo's internal/v4l2/device.go and videoin.go
// (ioctl/mmap sequencing: REQBUFS, QUERYBUF, mmap, QBUF each buffer,
// STREAMON, then DQBUF/QBUF in a loop, STREAMOFF on stop).
//
//////////////////////////////////////////////////////////////////////////////

package v4l2

import (
	"unsafe"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Device is an open, configured video4linux2 capture device.
type Device struct {
	path string
	fd   int
	cfg  Config

	mmaps   [][]byte
	started bool
}

// Open opens the device at path and configures it per cfg.
func Open(path string, cfg Config) (*Device, error) {
	fd, err := unix.Open(path, unix.O_RDWR, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "v4l2: open %s", path)
	}

	dev := &Device{path: path, fd: fd, cfg: cfg}
	if err := dev.setFormat(); err != nil {
		unix.Close(fd)
		return nil, err
	}
	return dev, nil
}

// OpenDefault opens /dev/video0, falling back to /dev/video1, per spec.md
// §4.3 and §6 ("Opens `/dev/video0` with `/dev/video1` fallback").
func OpenDefault(cfg Config) (*Device, error) {
	dev, err0 := Open("/dev/video0", cfg)
	if err0 == nil {
		return dev, nil
	}
	dev, err1 := Open("/dev/video1", cfg)
	if err1 == nil {
		return dev, nil
	}
	return nil, errors.Wrap(err1, "v4l2: no usable camera device (tried /dev/video0, /dev/video1)")
}

func (d *Device) ioctl(request uintptr, arg unsafe.Pointer) error {
	_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(d.fd), request, uintptr(arg))
	if errno != 0 {
		return errno
	}
	return nil
}

func (d *Device) setFormat() error {
	format := v4l2Format{
		typ: v4l2BufTypeVideoCapture,
		pix: v4l2PixFormat{
			width:       d.cfg.Width,
			height:      d.cfg.Height,
			pixelFormat: fourcc(d.cfg.Format),
			field:       v4l2FieldNone,
		},
	}
	if err := d.ioctl(vidiocSFmt, unsafe.Pointer(&format)); err != nil {
		return errors.Wrap(err, "v4l2: VIDIOC_S_FMT")
	}
	return nil
}

// FlipHorizontal enables the horizontal-flip control, if supported.
func (d *Device) FlipHorizontal() error {
	return d.setControl(v4l2CidHFlip, 1)
}

// FlipVertical enables the vertical-flip control, if supported.
func (d *Device) FlipVertical() error {
	return d.setControl(v4l2CidVFlip, 1)
}

func (d *Device) setControl(id uint32, value int32) error {
	ctrl := v4l2Control{id: id, value: value}
	if err := d.ioctl(vidiocSCtrl, unsafe.Pointer(&ctrl)); err != nil {
		return errors.Wrap(err, "v4l2: VIDIOC_S_CTRL")
	}
	return nil
}

// Start requests and memory-maps the driver's buffer ring, queues every
// buffer, and enables streaming.
func (d *Device) Start() error {
	if d.started {
		return nil
	}

	n := d.cfg.NumBuffers
	if n <= 0 {
		n = 1
	}

	reqbufs := v4l2RequestBuffers{count: uint32(n), typ: v4l2BufTypeVideoCapture, memory: v4l2MemoryMMAP}
	if err := d.ioctl(vidiocReqBufs, unsafe.Pointer(&reqbufs)); err != nil {
		return errors.Wrap(err, "v4l2: VIDIOC_REQBUFS")
	}

	d.mmaps = make([][]byte, reqbufs.count)
	for i := uint32(0); i < reqbufs.count; i++ {
		buf := v4l2Buffer{index: i, typ: v4l2BufTypeVideoCapture, memory: v4l2MemoryMMAP}
		if err := d.ioctl(vidiocQueryBuf, unsafe.Pointer(&buf)); err != nil {
			return errors.Wrap(err, "v4l2: VIDIOC_QUERYBUF")
		}

		mem, err := unix.Mmap(d.fd, int64(buf.m), int(buf.length), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		if err != nil {
			return errors.Wrap(err, "v4l2: mmap")
		}
		d.mmaps[i] = mem

		if err := d.ioctl(vidiocQBuf, unsafe.Pointer(&buf)); err != nil {
			return errors.Wrap(err, "v4l2: VIDIOC_QBUF")
		}
	}

	typ := uint32(v4l2BufTypeVideoCapture)
	if err := d.ioctl(vidiocStreamOn, unsafe.Pointer(&typ)); err != nil {
		return errors.Wrap(err, "v4l2: VIDIOC_STREAMON")
	}

	d.started = true
	return nil
}

// Stop disables streaming and unmaps the buffer ring.
func (d *Device) Stop() error {
	if !d.started {
		return nil
	}

	typ := uint32(v4l2BufTypeVideoCapture)
	err := d.ioctl(vidiocStreamOff, unsafe.Pointer(&typ))

	for _, m := range d.mmaps {
		unix.Munmap(m)
	}
	d.mmaps = nil
	d.started = false

	if err != nil {
		return errors.Wrap(err, "v4l2: VIDIOC_STREAMOFF")
	}
	return nil
}

// ReadFrame blocks until the driver has a completed buffer, copies its
// bytes out (so the mmap region can be re-queued immediately), and returns
// them. The returned slice is owned by the caller.
func (d *Device) ReadFrame() ([]byte, error) {
	buf := v4l2Buffer{typ: v4l2BufTypeVideoCapture, memory: v4l2MemoryMMAP}
	if err := d.ioctl(vidiocDQBuf, unsafe.Pointer(&buf)); err != nil {
		return nil, errors.Wrap(err, "v4l2: VIDIOC_DQBUF")
	}

	frame := make([]byte, buf.bytesUsed)
	copy(frame, d.mmaps[buf.index][:buf.bytesUsed])

	if err := d.ioctl(vidiocQBuf, unsafe.Pointer(&buf)); err != nil {
		return nil, errors.Wrap(err, "v4l2: VIDIOC_QBUF (re-queue)")
	}

	return frame, nil
}

// Close stops capture (if running) and closes the underlying file
// descriptor.
func (d *Device) Close() error {
	err := d.Stop()
	if cerr := unix.Close(d.fd); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
