package audio

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// DefaultSendBuffer is how much audio the recording channel holds before
// the capture callback starts dropping samples.
const DefaultSendBuffer = 2 * time.Second

// EngineOptions configures a capture engine.
type EngineOptions struct {
	Sensitivity float32
	PreRoll     time.Duration
	SendBuffer  time.Duration
	Format      SampleFormat
	Logger      zerolog.Logger
}

// Engine owns one live hardware input stream. Every captured sample is
// conditioned and kept in the pre-roll ring; while a recording is armed it
// is also forwarded on a bounded channel.
type Engine struct {
	log    zerolog.Logger
	device Device
	format StreamFormat
	stream Stream

	sendCap int
	dropped atomic.Uint64

	mu     sync.Mutex
	ring   *PreRollRing
	sender *tee
	closed bool
}

// tee is one armed recording's channel. Sends happen outside the engine
// mutex; mu only orders them against close.
type tee struct {
	mu     sync.Mutex
	ch     chan float32
	closed bool
}

// send forwards samples without blocking and returns how many did not fit.
func (t *tee) send(samples []float32) (dropped uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return 0
	}
	for _, s := range samples {
		select {
		case t.ch <- s:
		default:
			dropped++
		}
	}
	return dropped
}

func (t *tee) close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.closed {
		t.closed = true
		close(t.ch)
	}
}

// Open negotiates and starts an input stream on dev. The canonical format
// (mono, 16 kHz) is tried first; if the device rejects it the device's own
// channel count and rate are used and each frame is downmixed in the
// callback.
func Open(drv Driver, dev Device, opts EngineOptions) (*Engine, error) {
	if opts.PreRoll <= 0 {
		opts.PreRoll = DefaultPreRoll
	}
	if opts.SendBuffer <= 0 {
		opts.SendBuffer = DefaultSendBuffer
	}

	e := &Engine{
		log:    opts.Logger,
		device: dev,
	}

	var lastErr error
	for _, format := range candidateFormats(dev, opts.Format) {
		cb := &captureCallback{
			engine:   e,
			cond:     NewConditioner(opts.Sensitivity),
			channels: format.Channels,
		}

		// The ring and channel sizes depend on the negotiated rate, so they
		// are set before the stream can deliver its first buffer.
		e.mu.Lock()
		e.format = format
		e.ring = NewPreRollRing(PreRollSamples(format.SampleRate, opts.PreRoll))
		e.sendCap = max(PreRollSamples(format.SampleRate, opts.SendBuffer), 1)
		e.mu.Unlock()

		stream, err := drv.OpenInput(dev, format, cb.process)
		if err != nil {
			e.log.Debug().Err(err).Str("device", dev.Name).Stringer("format", format).Msg("Input format rejected")
			lastErr = err
			continue
		}

		if err := stream.Start(); err != nil {
			stream.Close()
			return nil, &DeviceError{Op: "start input stream", Device: dev.Name, Err: err}
		}

		e.stream = stream
		e.log.Info().
			Str("device", dev.Name).
			Stringer("format", format).
			Bool("fallback", e.Fallback()).
			Float32("sensitivity", cb.cond.sensitivity).
			Msg("Capture engine started")
		return e, nil
	}

	if lastErr == nil {
		lastErr = ErrUnsupportedFormat
	}
	return nil, &DeviceError{Op: "open input stream", Device: dev.Name, Err: lastErr}
}

func candidateFormats(dev Device, preferred SampleFormat) []StreamFormat {
	canonical := StreamFormat{Channels: 1, SampleRate: CanonicalSampleRate, Sample: preferred}

	channels := min(max(dev.MaxInputChannels, 1), 2)
	rate := int(dev.DefaultSampleRate)
	if rate <= 0 {
		return []StreamFormat{canonical, {Channels: 1, SampleRate: CanonicalSampleRate, Sample: preferred.alternate()}}
	}

	native := StreamFormat{Channels: channels, SampleRate: rate, Sample: preferred}
	alt := native
	alt.Sample = preferred.alternate()

	if native == canonical {
		return []StreamFormat{canonical, alt}
	}
	return []StreamFormat{canonical, native, alt}
}

// Arm drains the pre-roll ring and installs a fresh recording channel. The
// drained samples are the recording's prefix; the returned channel carries
// every sample captured afterwards until Disarm closes it.
func (e *Engine) Arm() ([]float32, <-chan float32, error) {
	e.mu.Lock()
	size := e.sendCap
	e.mu.Unlock()
	ch := make(chan float32, size)

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, nil, ErrEngineClosed
	}
	if e.sender != nil {
		return nil, nil, ErrAlreadyRecording
	}

	prefix := e.ring.Drain()
	e.sender = &tee{ch: ch}
	return prefix, ch, nil
}

// Disarm stops forwarding samples and closes the recording channel. Samples
// already sent stay readable until the channel reports closed.
func (e *Engine) Disarm() {
	e.mu.Lock()
	t := e.sender
	e.sender = nil
	e.mu.Unlock()

	if t != nil {
		t.close()
	}
}

// Armed reports whether a recording channel is installed.
func (e *Engine) Armed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.sender != nil
}

// deliver is called from the driver thread with one callback's worth of
// conditioned mono samples. A buffer lands in the ring and is forwarded
// as a unit, so Arm sees it either in the prefix or on the channel.
func (e *Engine) deliver(samples []float32) {
	e.mu.Lock()
	for _, s := range samples {
		e.ring.Push(s)
	}
	t := e.sender
	e.mu.Unlock()

	if t == nil {
		return
	}
	if dropped := t.send(samples); dropped > 0 {
		e.dropped.Add(dropped)
	}
}

// Close stops the hardware stream. Any armed recording channel is closed.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	t := e.sender
	e.sender = nil
	e.mu.Unlock()

	if t != nil {
		t.close()
	}

	if e.stream == nil {
		return nil
	}
	errStop := e.stream.Stop()
	errClose := e.stream.Close()
	e.log.Info().Str("device", e.device.Name).Msg("Capture engine stopped")
	if err := errors.Join(errStop, errClose); err != nil {
		return fmt.Errorf("failed to close input stream: %w", err)
	}
	return nil
}

// SampleRate returns the negotiated capture rate.
func (e *Engine) SampleRate() int { return e.format.SampleRate }

// Format returns the negotiated stream format.
func (e *Engine) Format() StreamFormat { return e.format }

// Fallback reports whether the device rejected the canonical format.
func (e *Engine) Fallback() bool {
	return e.format.Channels != 1 || e.format.SampleRate != CanonicalSampleRate
}

// Device returns the device the stream was opened on.
func (e *Engine) Device() Device { return e.device }

// Dropped returns how many samples were discarded because the recording
// channel was full.
func (e *Engine) Dropped() uint64 { return e.dropped.Load() }

// PreRollLen returns the number of samples currently held for pre-roll.
func (e *Engine) PreRollLen() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ring.Len()
}

// captureCallback is the state owned by one input stream's driver callback.
// Nothing else touches cond or scratch.
type captureCallback struct {
	engine   *Engine
	cond     *Conditioner
	channels int
	scratch  []float32
}

func (c *captureCallback) process(in Buffer) {
	frames := in.Len() / c.channels
	if frames == 0 {
		return
	}
	// Grows only when the driver hands over a larger buffer than before.
	if cap(c.scratch) < frames {
		c.scratch = make([]float32, frames)
	}
	out := c.scratch[:frames]

	ch := c.channels
	if in.F32 != nil {
		for i := range out {
			out[i] = c.cond.Process(frameMean(in.F32[i*ch : (i+1)*ch]))
		}
	} else {
		for i := range out {
			out[i] = c.cond.Process(frameMeanI16(in.I16[i*ch : (i+1)*ch]))
		}
	}

	c.engine.deliver(out)
}
