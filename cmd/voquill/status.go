package main

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/fatih/color"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	red    = color.New(color.FgRed, color.Bold).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	faint  = color.New(color.Faint).SprintFunc()
)

// statusLine prints app state changes to a terminal.
type statusLine struct {
	mu  sync.Mutex
	out io.Writer
}

func newStatusLine(out io.Writer) *statusLine {
	return &statusLine{out: out}
}

func (s *statusLine) print(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintln(s.out, label)
}

func (s *statusLine) SetIdle()       { s.print(faint("● idle (press Enter to record)")) }
func (s *statusLine) SetRecording()  { s.print(red("● recording (press Enter to stop)")) }
func (s *statusLine) SetProcessing() { s.print(yellow("● saving")) }
func (s *statusLine) SetError()      { s.print(red("✗ error, see log")) }

const meterWidth = 40

// meter renders a peak reading as a bar.
func meter(peak float32) string {
	n := int(min(max(peak, 0), 1) * meterWidth)
	bar := strings.Repeat("█", n) + strings.Repeat("·", meterWidth-n)
	switch {
	case peak >= 0.9:
		return red(bar)
	case peak >= 0.5:
		return yellow(bar)
	default:
		return green(bar)
	}
}
