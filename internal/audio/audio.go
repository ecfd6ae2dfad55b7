package audio

import (
	"fmt"
	"strings"
)

// CanonicalSampleRate is the rate every recording is delivered at.
const CanonicalSampleRate = 16000

// SampleFormat is the sample encoding a hardware stream is opened with.
type SampleFormat int

const (
	F32 SampleFormat = iota
	I16
)

func (f SampleFormat) String() string {
	switch f {
	case F32:
		return "f32"
	case I16:
		return "i16"
	default:
		return fmt.Sprintf("SampleFormat(%d)", int(f))
	}
}

// ParseSampleFormat accepts "f32" or "i16" (case-insensitive). Empty means F32.
func ParseSampleFormat(s string) (SampleFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "f32", "float32":
		return F32, nil
	case "i16", "int16":
		return I16, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}

func (f SampleFormat) alternate() SampleFormat {
	if f == F32 {
		return I16
	}
	return F32
}

// StreamFormat is a negotiated stream configuration.
type StreamFormat struct {
	Channels   int
	SampleRate int
	Sample     SampleFormat
}

func (f StreamFormat) String() string {
	return fmt.Sprintf("%dch/%dHz/%s", f.Channels, f.SampleRate, f.Sample)
}

// Buffer is one driver callback's worth of interleaved samples. Exactly one
// of the slices is set, matching the stream's SampleFormat.
type Buffer struct {
	F32 []float32
	I16 []int16
}

// Len returns the number of interleaved samples in the buffer.
func (b Buffer) Len() int {
	if b.F32 != nil {
		return len(b.F32)
	}
	return len(b.I16)
}

// Device is a hardware endpoint as reported by a Driver.
type Device struct {
	ID                string
	Name              string
	Default           bool
	MaxInputChannels  int
	MaxOutputChannels int
	DefaultSampleRate float64

	// driver-private handle
	handle any
}

// Stream is an open hardware stream.
type Stream interface {
	Start() error
	Stop() error
	Close() error
}

// Driver is the hardware audio backend. Callbacks passed to OpenInput and
// OpenOutput run on the driver's real-time thread.
type Driver interface {
	Devices() ([]Device, error)
	DefaultInput() (Device, error)
	DefaultOutput() (Device, error)
	OpenInput(dev Device, format StreamFormat, cb func(in Buffer)) (Stream, error)
	OpenOutput(dev Device, format StreamFormat, cb func(out Buffer)) (Stream, error)
	Close() error
}

// AudioDevice is an entry in the input device directory.
type AudioDevice struct {
	ID      string `json:"id"`
	Label   string `json:"label"`
	Default bool   `json:"default"`
}
