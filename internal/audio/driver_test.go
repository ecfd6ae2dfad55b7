package audio

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

var errRejected = errors.New("format rejected")

// fakeDriver records opened streams so tests can drive the callbacks
// themselves.
type fakeDriver struct {
	mu        sync.Mutex
	devices   []Device
	input     Device
	output    Device
	inputErr  error
	outputErr error
	acceptIn  func(StreamFormat) bool
	acceptOut func(StreamFormat) bool
	inputs    []*fakeStream
	outputs   []*fakeStream
}

type fakeStream struct {
	format  StreamFormat
	cb      func(Buffer)
	started bool
	stopped bool
	closed  bool
}

func (s *fakeStream) Start() error { s.started = true; return nil }
func (s *fakeStream) Stop() error  { s.stopped = true; return nil }
func (s *fakeStream) Close() error { s.closed = true; return nil }

func (s *fakeStream) feedF32(samples []float32) { s.cb(Buffer{F32: samples}) }
func (s *fakeStream) feedI16(samples []int16)   { s.cb(Buffer{I16: samples}) }

func newFakeDriver() *fakeDriver {
	mic := Device{ID: "mic", Name: "mic", Default: true, MaxInputChannels: 1, DefaultSampleRate: 16000}
	speaker := Device{ID: "speaker", Name: "speaker", Default: true, MaxOutputChannels: 2, DefaultSampleRate: 48000}
	return &fakeDriver{
		devices: []Device{mic, speaker},
		input:   mic,
		output:  speaker,
	}
}

func (d *fakeDriver) Devices() ([]Device, error) { return d.devices, nil }

func (d *fakeDriver) DefaultInput() (Device, error) {
	if d.inputErr != nil {
		return Device{}, d.inputErr
	}
	return d.input, nil
}

func (d *fakeDriver) DefaultOutput() (Device, error) {
	if d.outputErr != nil {
		return Device{}, d.outputErr
	}
	return d.output, nil
}

func (d *fakeDriver) OpenInput(dev Device, format StreamFormat, cb func(Buffer)) (Stream, error) {
	if d.acceptIn != nil && !d.acceptIn(format) {
		return nil, errRejected
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	s := &fakeStream{format: format, cb: cb}
	d.inputs = append(d.inputs, s)
	return s, nil
}

func (d *fakeDriver) OpenOutput(dev Device, format StreamFormat, cb func(Buffer)) (Stream, error) {
	if d.acceptOut != nil && !d.acceptOut(format) {
		return nil, errRejected
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	s := &fakeStream{format: format, cb: cb}
	d.outputs = append(d.outputs, s)
	return s, nil
}

func (d *fakeDriver) Close() error { return nil }

func (d *fakeDriver) lastInput(t *testing.T) *fakeStream {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.inputs) == 0 {
		t.Fatal("no input stream opened")
	}
	return d.inputs[len(d.inputs)-1]
}

func (d *fakeDriver) lastOutput(t *testing.T) *fakeStream {
	t.Helper()
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.outputs) == 0 {
		t.Fatal("no output stream opened")
	}
	return d.outputs[len(d.outputs)-1]
}

func openTestEngine(t *testing.T, drv *fakeDriver, opts EngineOptions) *Engine {
	t.Helper()
	opts.Logger = zerolog.Nop()
	eng, err := Open(drv, drv.input, opts)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	t.Cleanup(func() { eng.Close() })
	return eng
}

func constant(v float32, n int) []float32 {
	out := make([]float32, n)
	for i := range out {
		out[i] = v
	}
	return out
}

// waitFor polls cond for up to a second.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	for i := 0; i < 100; i++ {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met within 1s")
}
