package audio

import (
	"errors"
	"fmt"
)

var (
	ErrNoInputDevice     = errors.New("no input device available")
	ErrNoOutputDevice    = errors.New("no output device available")
	ErrDeviceNotFound    = errors.New("device not found")
	ErrUnsupportedFormat = errors.New("unsupported sample format")
	ErrAlreadyRecording  = errors.New("already recording")
	ErrEngineClosed      = errors.New("capture engine closed")
	ErrEncoding          = errors.New("wav encoding failed")
	ErrAudioTooShort     = errors.New("audio too short")
)

// DeviceError reports a failure to open or negotiate a hardware stream.
type DeviceError struct {
	Op     string
	Device string
	Err    error
}

func (e *DeviceError) Error() string {
	if e.Device == "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s %q: %v", e.Op, e.Device, e.Err)
}

func (e *DeviceError) Unwrap() error { return e.Err }
