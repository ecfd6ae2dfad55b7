package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestVersionCommand(t *testing.T) {
	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	if err := cmd.ExecuteContext(context.Background()); err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.Contains(out.String(), "voquill version dev") {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestMeter(t *testing.T) {
	cases := map[float32]int{0: 0, 0.5: 20, 1: 40, 3: 40, -1: 0}
	for peak, want := range cases {
		bar := meter(peak)
		if got := strings.Count(bar, "█"); got != want {
			t.Errorf("meter(%v): expected %d filled cells, got %d", peak, want, got)
		}
		if got := strings.Count(bar, "█") + strings.Count(bar, "·"); got != meterWidth {
			t.Errorf("meter(%v): expected width %d, got %d", peak, meterWidth, got)
		}
	}
}

func TestStatusLine(t *testing.T) {
	var out bytes.Buffer
	s := newStatusLine(&out)
	s.SetRecording()
	s.SetIdle()

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 || !strings.Contains(lines[0], "recording") || !strings.Contains(lines[1], "idle") {
		t.Errorf("unexpected status output %q", out.String())
	}
}

func TestReadTriggersStopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	// An already cancelled context returns before any line is read.
	if err := readTriggers(ctx, strings.NewReader(""), nil, zerolog.Nop()); err != nil {
		t.Fatalf("readTriggers: %v", err)
	}
}
