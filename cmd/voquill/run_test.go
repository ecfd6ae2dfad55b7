package main

import (
	"context"
	"io"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/jackbrumley/voquill/internal/app"
	"github.com/jackbrumley/voquill/internal/audio"
	"github.com/jackbrumley/voquill/internal/config"
)

type nopStream struct{}

func (nopStream) Start() error { return nil }
func (nopStream) Stop() error  { return nil }
func (nopStream) Close() error { return nil }

// silentDriver opens streams that never call back.
type silentDriver struct{}

var silentMic = audio.Device{ID: "mic", Name: "mic", Default: true, MaxInputChannels: 1, DefaultSampleRate: 16000}

func (silentDriver) Devices() ([]audio.Device, error)    { return []audio.Device{silentMic}, nil }
func (silentDriver) DefaultInput() (audio.Device, error)  { return silentMic, nil }
func (silentDriver) DefaultOutput() (audio.Device, error) { return audio.Device{}, audio.ErrNoOutputDevice }
func (silentDriver) Close() error                         { return nil }

func (silentDriver) OpenInput(audio.Device, audio.StreamFormat, func(audio.Buffer)) (audio.Stream, error) {
	return nopStream{}, nil
}

func (silentDriver) OpenOutput(audio.Device, audio.StreamFormat, func(audio.Buffer)) (audio.Stream, error) {
	return nil, audio.ErrNoOutputDevice
}

func newTriggerApp(t *testing.T, mode string) *app.App {
	t.Helper()

	cfg := config.Default()
	cfg.Mode = mode
	cfg.Audio.PollIntervalMs = 1

	a := app.New(app.Config{
		Driver:     silentDriver{},
		Consumer:   discard{},
		Config:     cfg,
		ConfigPath: filepath.Join(t.TempDir(), "config.json"),
		Logger:     zerolog.Nop(),
	})
	if err := a.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		a.Shutdown(ctx)
	})
	return a
}

func waitUntil(t *testing.T, what string, cond func() bool) {
	t.Helper()
	for i := 0; i < 100; i++ {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestReadTriggersFollowsMode(t *testing.T) {
	for _, mode := range []string{config.ModePushToTalk, config.ModeToggle} {
		t.Run(mode, func(t *testing.T) {
			a := newTriggerApp(t, mode)
			pr, pw := io.Pipe()

			ctx, cancel := context.WithCancel(context.Background())
			errc := make(chan error, 1)
			go func() { errc <- readTriggers(ctx, pr, a, zerolog.Nop()) }()

			press := func() {
				if _, err := pw.Write([]byte("\n")); err != nil {
					t.Fatalf("write: %v", err)
				}
			}

			press()
			waitUntil(t, "recording to start", a.IsRecording)

			press()
			waitUntil(t, "recording to stop", func() bool { return !a.IsRecording() && !a.Busy() })

			press()
			waitUntil(t, "second recording to start", a.IsRecording)

			cancel()
			pw.Close()
			if err := <-errc; err != nil {
				t.Fatalf("readTriggers: %v", err)
			}
		})
	}
}

func TestPushToTalkReleasesExternalRecording(t *testing.T) {
	a := newTriggerApp(t, config.ModePushToTalk)
	if err := a.StartRecording(); err != nil {
		t.Fatalf("StartRecording failed: %v", err)
	}

	pr, pw := io.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- readTriggers(ctx, pr, a, zerolog.Nop()) }()

	// The key is already down, so the next line is a release.
	if _, err := pw.Write([]byte("\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitUntil(t, "recording to stop", func() bool { return !a.IsRecording() })

	cancel()
	pw.Close()
	if err := <-errc; err != nil {
		t.Fatalf("readTriggers: %v", err)
	}
}
