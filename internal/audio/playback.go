package audio

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/rs/zerolog"
)

// PlayerConfig configures a Player.
type PlayerConfig struct {
	Driver Driver
	Format SampleFormat
	Logger zerolog.Logger
}

// Player streams finished PCM buffers to the default output device.
type Player struct {
	drv    Driver
	format SampleFormat
	log    zerolog.Logger
}

// NewPlayer returns a Player using drv.
func NewPlayer(cfg PlayerConfig) *Player {
	return &Player{
		drv:    cfg.Driver,
		format: cfg.Format,
		log:    cfg.Logger,
	}
}

// Play opens an output stream at the device's native rate and plays samples,
// recorded at sourceRate, through it. onDone runs once, on its own
// goroutine, when the buffer is exhausted. Stopping the returned Playback
// early does not call onDone.
func (p *Player) Play(samples []int16, sourceRate int, onDone func()) (*Playback, error) {
	dev, err := p.drv.DefaultOutput()
	if err != nil {
		return nil, &DeviceError{Op: "open output", Err: errors.Join(ErrNoOutputDevice, err)}
	}
	if dev.MaxOutputChannels < 1 {
		return nil, &DeviceError{Op: "open output", Device: dev.Name, Err: ErrNoOutputDevice}
	}

	rate := int(dev.DefaultSampleRate)
	if rate <= 0 {
		rate = sourceRate
	}

	pb := &Playback{
		samples:  Resample(samples, sourceRate, rate),
		channels: min(dev.MaxOutputChannels, 2),
		onDone:   onDone,
		done:     make(chan struct{}),
	}

	var lastErr error
	for _, sf := range []SampleFormat{p.format, p.format.alternate()} {
		format := StreamFormat{Channels: pb.channels, SampleRate: rate, Sample: sf}
		stream, err := p.drv.OpenOutput(dev, format, pb.fill)
		if err != nil {
			p.log.Debug().Err(err).Str("device", dev.Name).Stringer("format", format).Msg("Output format rejected")
			lastErr = err
			continue
		}
		if err := stream.Start(); err != nil {
			stream.Close()
			return nil, &DeviceError{Op: "start output stream", Device: dev.Name, Err: err}
		}

		pb.stream = stream
		p.log.Info().
			Str("device", dev.Name).
			Stringer("format", format).
			Int("samples", len(pb.samples)).
			Msg("Playback started")
		return pb, nil
	}

	return nil, &DeviceError{Op: "open output stream", Device: dev.Name, Err: lastErr}
}

// Playback is one in-flight Play call.
type Playback struct {
	samples  []int16
	channels int
	pos      int // owned by the driver callback

	stream   Stream
	onDone   func()
	done     chan struct{}
	doneOnce sync.Once
	stopOnce sync.Once
	stopErr  error
}

// Done is closed once every sample has been written to the device.
func (pb *Playback) Done() <-chan struct{} { return pb.done }

// Stop closes the output stream. It is safe to call more than once.
func (pb *Playback) Stop() error {
	pb.stopOnce.Do(func() {
		if pb.stream == nil {
			return
		}
		if err := pb.stream.Close(); err != nil {
			pb.stopErr = fmt.Errorf("failed to close output stream: %w", err)
		}
	})
	return pb.stopErr
}

// fill writes one resampled sample per output frame, copied across the
// device channels, and silence once the buffer runs out.
func (pb *Playback) fill(out Buffer) {
	ch := pb.channels
	frames := out.Len() / ch

	for f := 0; f < frames; f++ {
		var s int16
		if pb.pos < len(pb.samples) {
			s = pb.samples[pb.pos]
			pb.pos++
		} else {
			pb.finish()
		}

		frame := f * ch
		if out.F32 != nil {
			v := float32(s) / math.MaxInt16
			for c := 0; c < ch; c++ {
				out.F32[frame+c] = v
			}
		} else {
			for c := 0; c < ch; c++ {
				out.I16[frame+c] = s
			}
		}
	}
}

func (pb *Playback) finish() {
	pb.doneOnce.Do(func() {
		close(pb.done)
		if pb.onDone != nil {
			go pb.onDone()
		}
	})
}
