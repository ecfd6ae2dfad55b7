package audio

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// DefaultPollInterval is how often a recording checks its stop flag.
const DefaultPollInterval = 10 * time.Millisecond

// volumeInterval is the amount of audio summarised by one mic-test volume
// reading.
const volumeInterval = 50 * time.Millisecond

// State is the lifecycle position of a Recorder.
type State int32

const (
	Idle State = iota
	Armed
	Draining
	Finalized
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Armed:
		return "armed"
	case Draining:
		return "draining"
	case Finalized:
		return "finalized"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Flag is the externally owned recording signal. *atomic.Bool satisfies it.
type Flag interface {
	Load() bool
}

// Observer is notified when a recording or mic test completes.
type Observer interface {
	RecordingFinished(kind string, duration time.Duration, dropped uint64, err error)
}

// RecorderConfig configures a Recorder.
type RecorderConfig struct {
	Engine       *Engine
	PollInterval time.Duration
	Logger       zerolog.Logger
	Observer     Observer // optional
}

// Recorder runs recording sessions against one Engine, at most one at a time.
type Recorder struct {
	engine *Engine
	poll   time.Duration
	log    zerolog.Logger
	obs    Observer

	state atomic.Int32
}

// NewRecorder returns an idle Recorder.
func NewRecorder(cfg RecorderConfig) *Recorder {
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &Recorder{
		engine: cfg.Engine,
		poll:   poll,
		log:    cfg.Logger,
		obs:    cfg.Observer,
	}
}

// State returns the current session state.
func (r *Recorder) State() State { return State(r.state.Load()) }

// MicTestResult is a captured, normalized self-test recording.
type MicTestResult struct {
	Samples    []int16
	SampleRate int
	Peaks      []float32
}

// Record captures audio while flag reads true (or until ctx is done), then
// returns it as a canonical 16 kHz mono 16-bit WAV. The recording starts
// with the pre-roll audio captured just before the call.
func (r *Recorder) Record(ctx context.Context, flag Flag) (wav []byte, err error) {
	if !r.acquire() {
		return nil, ErrAlreadyRecording
	}
	start := time.Now()
	var dropped uint64
	defer func() { r.finish("recording", start, dropped, err) }()

	samples, dropped, err := r.capture(ctx, flag, nil)
	if err != nil {
		return nil, err
	}

	// Capture already downmixed to mono; only the rate may differ.
	pcm := QuantizeAll(samples)
	if rate := r.engine.SampleRate(); rate != CanonicalSampleRate {
		pcm = Resample(pcm, rate, CanonicalSampleRate)
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("%w: no samples captured", ErrAudioTooShort)
	}

	wav, err = EncodeWAV(pcm, CanonicalSampleRate)
	if err != nil {
		return nil, err
	}

	r.log.Info().
		Int("samples", len(pcm)).
		Float32("peak", Peak(samples)).
		Int("bytes", len(wav)).
		Uint64("dropped", dropped).
		Dur("elapsed", time.Since(start)).
		Msg("Recording finalized")
	return wav, nil
}

// MicTest captures audio like Record but returns normalized PCM for
// loopback playback instead of WAV bytes. onVolume, if set, receives the
// peak gain-stage magnitude of each ~50 ms block of audio.
func (r *Recorder) MicTest(ctx context.Context, flag Flag, onVolume func(peak float32)) (res MicTestResult, err error) {
	if !r.acquire() {
		return MicTestResult{}, ErrAlreadyRecording
	}
	start := time.Now()
	var dropped uint64
	defer func() { r.finish("mic_test", start, dropped, err) }()

	meter := &volumeMeter{
		block:    max(PreRollSamples(r.engine.SampleRate(), volumeInterval), 1),
		onVolume: onVolume,
	}

	samples, dropped, err := r.capture(ctx, flag, meter)
	if err != nil {
		return MicTestResult{}, err
	}

	pcm := QuantizeAll(samples)
	if rate := r.engine.SampleRate(); rate != CanonicalSampleRate {
		pcm = Resample(pcm, rate, CanonicalSampleRate)
	}
	Normalize(pcm)

	return MicTestResult{
		Samples:    pcm,
		SampleRate: CanonicalSampleRate,
		Peaks:      meter.peaks,
	}, nil
}

// acquire moves an idle recorder to Armed. A busy recorder is left as is.
func (r *Recorder) acquire() bool {
	return r.state.CompareAndSwap(int32(Idle), int32(Armed))
}

func (r *Recorder) finish(kind string, start time.Time, dropped uint64, err error) {
	r.state.Store(int32(Idle))
	if r.obs != nil {
		r.obs.RecordingFinished(kind, time.Since(start), dropped, err)
	}
	if err != nil {
		r.log.Error().Err(err).Str("kind", kind).Msg("Recording failed")
	}
}

// capture runs Armed -> Draining -> Finalized and returns the collected
// gain-stage samples, pre-roll first. The caller has already acquired the
// recorder.
func (r *Recorder) capture(ctx context.Context, flag Flag, meter *volumeMeter) ([]float32, uint64, error) {
	prefix, rx, err := r.engine.Arm()
	if err != nil {
		return nil, 0, err
	}
	droppedBefore := r.engine.Dropped()

	r.log.Debug().
		Int("preroll", len(prefix)).
		Int("rate", r.engine.SampleRate()).
		Msg("Recording armed")

	result := make(chan []float32, 1)
	go func() {
		samples := make([]float32, 0, len(prefix)+r.engine.SampleRate())
		samples = append(samples, prefix...)
		meter.add(prefix)
		for s := range rx {
			samples = append(samples, s)
			meter.addOne(s)
		}
		meter.flush()
		result <- samples
	}()

	r.waitForStop(ctx, flag)

	r.state.Store(int32(Draining))
	r.engine.Disarm()
	samples := <-result
	r.state.Store(int32(Finalized))

	return samples, r.engine.Dropped() - droppedBefore, nil
}

func (r *Recorder) waitForStop(ctx context.Context, flag Flag) {
	ticker := time.NewTicker(r.poll)
	defer ticker.Stop()

	for flag.Load() {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// volumeMeter reduces a sample stream to one peak reading per block. A nil
// meter ignores everything.
type volumeMeter struct {
	block    int
	onVolume func(float32)

	n     int
	peak  float32
	peaks []float32
}

func (m *volumeMeter) add(samples []float32) {
	for _, s := range samples {
		m.addOne(s)
	}
}

func (m *volumeMeter) addOne(s float32) {
	if m == nil {
		return
	}
	if s < 0 {
		s = -s
	}
	m.peak = max(m.peak, s)
	m.n++
	if m.n >= m.block {
		m.emit()
	}
}

func (m *volumeMeter) flush() {
	if m != nil && m.n > 0 {
		m.emit()
	}
}

func (m *volumeMeter) emit() {
	m.peaks = append(m.peaks, m.peak)
	if m.onVolume != nil {
		m.onVolume(m.peak)
	}
	m.n, m.peak = 0, 0
}
