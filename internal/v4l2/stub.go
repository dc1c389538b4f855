//go:build !linux

package v4l2

import "errors"

var errNotSupported = errors.New("v4l2: not supported on this platform")

// Device is a non-functional placeholder on non-Linux platforms.
type Device struct{}

func Open(path string, cfg Config) (*Device, error) {
	return nil, errNotSupported
}

func OpenDefault(cfg Config) (*Device, error) {
	return nil, errNotSupported
}

func (d *Device) FlipHorizontal() error      { return errNotSupported }
func (d *Device) FlipVertical() error        { return errNotSupported }
func (d *Device) Start() error               { return errNotSupported }
func (d *Device) Stop() error                { return errNotSupported }
func (d *Device) ReadFrame() ([]byte, error) { return nil, errNotSupported }
func (d *Device) Close() error               { return nil }
