package audio

import (
	"errors"
	"math"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestPlayer(drv Driver, format SampleFormat) *Player {
	return NewPlayer(PlayerConfig{Driver: drv, Format: format, Logger: zerolog.Nop()})
}

func TestPlayResamplesToDeviceRate(t *testing.T) {
	drv := newFakeDriver()
	drv.output.DefaultSampleRate = 32000
	player := newTestPlayer(drv, I16)

	var calls atomic.Int32
	called := make(chan struct{}, 2)
	pb, err := player.Play([]int16{100, 200, 300, 400}, 16000, func() {
		calls.Add(1)
		called <- struct{}{}
	})
	if err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	defer pb.Stop()

	stream := drv.lastOutput(t)
	want := StreamFormat{Channels: 2, SampleRate: 32000, Sample: I16}
	if stream.format != want {
		t.Fatalf("expected %s, got %s", want, stream.format)
	}
	if !stream.started {
		t.Fatal("expected output stream to be started")
	}

	out := make([]int16, 20)
	stream.cb(Buffer{I16: out})

	expected := []int16{100, 150, 200, 250, 300, 350, 400, 400, 0, 0}
	for f, s := range expected {
		if out[2*f] != s || out[2*f+1] != s {
			t.Fatalf("frame %d: expected %d on both channels, got %d/%d", f, s, out[2*f], out[2*f+1])
		}
	}

	select {
	case <-pb.Done():
	case <-time.After(time.Second):
		t.Fatal("expected Done to be closed")
	}
	select {
	case <-called:
	case <-time.After(time.Second):
		t.Fatal("onDone was not called")
	}

	// More callbacks after the buffer ran out only write silence.
	stream.cb(Buffer{I16: make([]int16, 4)})
	time.Sleep(20 * time.Millisecond)
	if n := calls.Load(); n != 1 {
		t.Fatalf("expected onDone exactly once, got %d", n)
	}
}

func TestPlayWritesFloatSamples(t *testing.T) {
	drv := newFakeDriver()
	drv.output = Device{ID: "mono", Name: "mono", MaxOutputChannels: 1, DefaultSampleRate: 16000}
	player := newTestPlayer(drv, F32)

	pb, err := player.Play([]int16{math.MaxInt16, -16384}, 16000, nil)
	if err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	defer pb.Stop()

	out := make([]float32, 3)
	drv.lastOutput(t).cb(Buffer{F32: out})
	if out[0] != 1 || out[1] != float32(-16384)/math.MaxInt16 || out[2] != 0 {
		t.Fatalf("unexpected output %v", out)
	}
}

func TestPlayFallsBackToAlternateFormat(t *testing.T) {
	drv := newFakeDriver()
	drv.acceptOut = func(f StreamFormat) bool { return f.Sample == F32 }
	player := newTestPlayer(drv, I16)

	pb, err := player.Play([]int16{1, 2, 3}, 16000, nil)
	if err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	defer pb.Stop()

	if got := drv.lastOutput(t).format.Sample; got != F32 {
		t.Fatalf("expected fallback to f32, got %s", got)
	}
}

func TestPlayWithoutOutputDevice(t *testing.T) {
	drv := newFakeDriver()
	drv.outputErr = errors.New("no default output")
	player := newTestPlayer(drv, F32)

	if _, err := player.Play([]int16{1}, 16000, nil); !errors.Is(err, ErrNoOutputDevice) {
		t.Fatalf("expected ErrNoOutputDevice, got %v", err)
	}
}

func TestPlaybackStopIsIdempotent(t *testing.T) {
	drv := newFakeDriver()
	player := newTestPlayer(drv, F32)

	pb, err := player.Play([]int16{1, 2, 3}, 16000, nil)
	if err != nil {
		t.Fatalf("Play failed: %v", err)
	}
	if err := pb.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	if err := pb.Stop(); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}
	if !drv.lastOutput(t).closed {
		t.Fatal("expected output stream to be closed")
	}
}
