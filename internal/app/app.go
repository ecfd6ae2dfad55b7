package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/jackbrumley/voquill/internal/audio"
	"github.com/jackbrumley/voquill/internal/config"
	"github.com/jackbrumley/voquill/internal/metrics"
	"github.com/jackbrumley/voquill/internal/sink"
)

var ErrMicTestActive = errors.New("mic test already running")

type Mode int

const (
	PushToTalk Mode = iota
	Toggle
)

func parseMode(s string) Mode {
	if s == config.ModeToggle {
		return Toggle
	}
	return PushToTalk
}

// StatusUpdater is an interface for updating status (e.g., terminal line)
type StatusUpdater interface {
	SetIdle()
	SetRecording()
	SetProcessing()
	SetError()
}

type Config struct {
	Driver        audio.Driver
	Consumer      sink.Consumer
	Config        *config.Config
	ConfigPath    string // where setters persist changes; empty means config.Path()
	Logger        zerolog.Logger
	StatusUpdater StatusUpdater    // Optional - can be nil
	Metrics       *metrics.Metrics // Optional - can be nil
}

// App owns the live capture engine and the recording flags that the
// hotkey (or any other trigger) flips.
type App struct {
	drv      audio.Driver
	dir      *audio.Directory
	consumer sink.Consumer
	cfgPath  string
	log      zerolog.Logger
	status   StatusUpdater
	metrics  *metrics.Metrics

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Read by the recorder's poll loop.
	recording atomic.Bool
	testing   atomic.Bool

	mu             sync.Mutex
	cfg            *config.Config
	engine         *audio.Engine
	recorder       *audio.Recorder
	player         *audio.Player
	playback       *audio.Playback
	active         bool
	micTest        bool
	pendingRestart bool
}

func New(cfg Config) *App {
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		drv:      cfg.Driver,
		dir:      audio.NewDirectory(cfg.Driver),
		consumer: cfg.Consumer,
		cfgPath:  cfg.ConfigPath,
		log:      cfg.Logger,
		status:   cfg.StatusUpdater,
		metrics:  cfg.Metrics,
		ctx:      ctx,
		cancel:   cancel,
		cfg:      cfg.Config,
	}
	a.player = a.newPlayer(cfg.Config)
	return a
}

func (a *App) newPlayer(cfg *config.Config) *audio.Player {
	format, _ := audio.ParseSampleFormat(cfg.Audio.SampleFormat)
	return audio.NewPlayer(audio.PlayerConfig{
		Driver: a.drv,
		Format: format,
		Logger: a.log,
	})
}

// Start opens the capture engine so pre-roll audio is available before the
// first recording.
func (a *App) Start() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.ensureEngineLocked()
}

func (a *App) ensureEngineLocked() error {
	if a.engine != nil {
		return nil
	}

	dev, err := a.dir.Resolve(a.cfg.Audio.DeviceID)
	if err != nil {
		return err
	}
	eng, err := audio.Open(a.drv, dev, a.cfg.EngineOptions(a.log))
	if err != nil {
		return err
	}

	rc := audio.RecorderConfig{
		Engine:       eng,
		PollInterval: a.cfg.PollInterval(),
		Logger:       a.log,
	}
	if a.metrics != nil {
		rc.Observer = a.metrics
		a.metrics.EngineStarted(eng.SampleRate())
	}

	a.engine = eng
	a.recorder = audio.NewRecorder(rc)
	return nil
}

func (a *App) closeEngineLocked() {
	if a.engine == nil {
		return
	}
	if err := a.engine.Close(); err != nil {
		a.log.Warn().Err(err).Msg("Failed to close capture engine")
	}
	a.engine = nil
	a.recorder = nil
}

func (a *App) restartEngineLocked() error {
	a.pendingRestart = false
	a.closeEngineLocked()
	return a.ensureEngineLocked()
}

// Mode returns the configured trigger mode.
func (a *App) Mode() Mode {
	a.mu.Lock()
	defer a.mu.Unlock()
	return parseMode(a.cfg.Mode)
}

func (a *App) OnHotkey(pressed bool) {
	mode := a.Mode()

	switch mode {
	case PushToTalk:
		if pressed {
			a.logErr(a.StartRecording())
		} else {
			a.StopRecording()
		}
	case Toggle:
		if pressed {
			a.logErr(a.ToggleRecording())
		}
	}
}

func (a *App) logErr(err error) {
	if err != nil && !errors.Is(err, audio.ErrAlreadyRecording) {
		a.log.Error().Err(err).Msg("Failed to start recording")
	}
}

// StartRecording arms a new recording. It runs until StopRecording.
func (a *App) StartRecording() error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.active {
		if a.micTest {
			return ErrMicTestActive
		}
		return audio.ErrAlreadyRecording
	}
	if err := a.ensureEngineLocked(); err != nil {
		a.setStatus(StatusUpdater.SetError)
		return err
	}

	a.log.Info().Msg("Starting recording")
	a.recording.Store(true)
	a.active = true
	a.setStatus(StatusUpdater.SetRecording)

	rec := a.recorder
	a.wg.Add(1)
	go a.runRecording(rec)
	return nil
}

// StopRecording lowers the recording flag. The session finalizes on its
// next poll.
func (a *App) StopRecording() {
	if a.recording.CompareAndSwap(true, false) {
		a.log.Info().Msg("Stopping recording")
	}
}

func (a *App) ToggleRecording() error {
	if a.recording.Load() {
		a.StopRecording()
		return nil
	}
	return a.StartRecording()
}

func (a *App) runRecording(rec *audio.Recorder) {
	defer a.wg.Done()

	wav, err := rec.Record(a.ctx, &a.recording)
	a.recording.Store(false)
	a.sessionEnded()

	if err == nil {
		err = audio.ValidateDuration(wav)
	}
	switch {
	case errors.Is(err, audio.ErrAudioTooShort):
		a.log.Info().Err(err).Msg("Recording discarded")
		a.setStatus(StatusUpdater.SetIdle)
		return
	case err != nil:
		a.log.Error().Err(err).Msg("Recording failed")
		a.setStatus(StatusUpdater.SetError)
		return
	}

	a.setStatus(StatusUpdater.SetProcessing)
	if err := a.consumer.Consume(a.ctx, wav); err != nil {
		a.log.Error().Err(err).Msg("Failed to deliver recording")
		a.setStatus(StatusUpdater.SetError)
		return
	}
	a.setStatus(StatusUpdater.SetIdle)
}

// sessionEnded frees the app for the next session and applies any engine
// change that arrived while it was busy.
func (a *App) sessionEnded() {
	a.mu.Lock()
	defer a.mu.Unlock()

	a.active = false
	a.micTest = false
	if a.pendingRestart {
		if err := a.restartEngineLocked(); err != nil {
			a.log.Error().Err(err).Msg("Failed to reopen capture engine")
		}
	}
}

// StartMicTest records until StopMicTest, then plays the normalized
// capture back on the default output. onVolume receives peak readings
// while recording; onFinished is called once with the outcome, after
// playback ends. A playback cut short by StopPlayback does not call it.
func (a *App) StartMicTest(onVolume func(peak float32), onFinished func(error)) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.active {
		if a.micTest {
			return ErrMicTestActive
		}
		return audio.ErrAlreadyRecording
	}
	if err := a.ensureEngineLocked(); err != nil {
		return err
	}

	a.log.Info().Msg("Starting mic test")
	a.testing.Store(true)
	a.active = true
	a.micTest = true

	rec := a.recorder
	a.wg.Add(1)
	go a.runMicTest(rec, onVolume, onFinished)
	return nil
}

func (a *App) StopMicTest() {
	a.testing.Store(false)
}

func (a *App) runMicTest(rec *audio.Recorder, onVolume func(float32), onFinished func(error)) {
	defer a.wg.Done()

	if onFinished == nil {
		onFinished = func(error) {}
	}

	res, err := rec.MicTest(a.ctx, &a.testing, onVolume)
	a.testing.Store(false)
	a.sessionEnded()
	if err != nil {
		onFinished(err)
		return
	}
	if len(res.Samples) == 0 {
		onFinished(fmt.Errorf("%w: mic test captured nothing", audio.ErrAudioTooShort))
		return
	}

	// Held across Play so the completion callback cannot run before the
	// playback is recorded.
	a.mu.Lock()
	defer a.mu.Unlock()

	pb, err := a.player.Play(res.Samples, res.SampleRate, func() {
		a.playbackFinished()
		onFinished(nil)
	})
	if err != nil {
		onFinished(err)
		return
	}
	a.playback = pb
}

func (a *App) playbackFinished() {
	a.mu.Lock()
	pb := a.playback
	a.playback = nil
	a.mu.Unlock()

	if pb != nil {
		if err := pb.Stop(); err != nil {
			a.log.Warn().Err(err).Msg("Failed to close playback")
		}
	}
}

// StopPlayback cuts a mic-test playback short.
func (a *App) StopPlayback() error {
	a.mu.Lock()
	pb := a.playback
	a.playback = nil
	a.mu.Unlock()

	if pb == nil {
		return nil
	}
	return pb.Stop()
}

// ApplyConfig switches to cfg. If the capture engine's settings changed it
// is reopened now, or after the active session when one is running.
func (a *App) ApplyConfig(cfg *config.Config) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.applyLocked(cfg)
}

func (a *App) applyLocked(cfg *config.Config) error {
	changed := config.EngineChanged(a.cfg, cfg)
	a.cfg = cfg
	a.player = a.newPlayer(cfg)

	if !changed || a.engine == nil {
		return nil
	}
	if a.active {
		a.log.Info().Msg("Capture settings changed, reopening engine after the current session")
		a.pendingRestart = true
		return nil
	}
	return a.restartEngineLocked()
}

// Tray actions

func (a *App) SetDevice(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.active {
		return fmt.Errorf("cannot change device while recording")
	}

	next := *a.cfg
	next.Audio.DeviceID = id
	return a.saveLocked(&next)
}

func (a *App) SetSensitivity(v float32) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.active {
		return fmt.Errorf("cannot change sensitivity while recording")
	}

	next := *a.cfg
	next.Audio.InputSensitivity = v
	if err := next.Validate(); err != nil {
		return err
	}
	return a.saveLocked(&next)
}

func (a *App) saveLocked(next *config.Config) error {
	if err := a.applyLocked(next); err != nil {
		return err
	}
	if a.cfgPath == "" {
		return next.Save()
	}
	return next.SaveTo(a.cfgPath)
}

// IsRecording reports the recording flag.
func (a *App) IsRecording() bool {
	return a.recording.Load()
}

// Busy reports whether a recording or mic test is still being finalized.
func (a *App) Busy() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.active
}

// Engine returns the live capture engine, or nil before Start.
func (a *App) Engine() *audio.Engine {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.engine
}

func (a *App) ListDevices() ([]audio.AudioDevice, error) {
	return a.dir.ListInputDevices()
}

// Shutdown stops any active session, waits for it to be delivered, and
// closes the capture engine. Sessions still running when ctx expires are
// cancelled.
func (a *App) Shutdown(ctx context.Context) error {
	a.StopRecording()
	a.StopMicTest()
	if err := a.StopPlayback(); err != nil {
		a.log.Warn().Err(err).Msg("Failed to stop playback")
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	var err error
	select {
	case <-done:
	case <-ctx.Done():
		err = ctx.Err()
	}
	a.cancel()

	a.mu.Lock()
	a.closeEngineLocked()
	a.mu.Unlock()
	return err
}

func (a *App) setStatus(fn func(StatusUpdater)) {
	if a.status != nil {
		fn(a.status)
	}
}
