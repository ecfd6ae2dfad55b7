// Package sink stores finished recordings.
package sink

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/natefinch/atomic"
	"github.com/rs/zerolog"
)

// Consumer receives canonical WAV recordings.
type Consumer interface {
	Consume(ctx context.Context, wav []byte) error
}

// Dir writes each recording to its own file in a directory.
type Dir struct {
	path string
	log  zerolog.Logger
	now  func() time.Time
}

// NewDir returns a Dir rooted at path. The directory is created on first
// write.
func NewDir(path string, log zerolog.Logger) *Dir {
	return &Dir{path: path, log: log, now: time.Now}
}

// Path returns the output directory.
func (d *Dir) Path() string { return d.path }

// Consume writes wav to a new, uniquely named file. The file appears
// complete or not at all.
func (d *Dir) Consume(ctx context.Context, wav []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(d.path, 0755); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	name := fmt.Sprintf("%s-%s.wav", d.now().Format("20060102-150405"), uuid.NewString()[:8])
	path := filepath.Join(d.path, name)
	if err := atomic.WriteFile(path, bytes.NewReader(wav)); err != nil {
		return fmt.Errorf("failed to write recording: %w", err)
	}

	d.log.Info().Str("path", path).Int("bytes", len(wav)).Msg("Recording saved")
	return nil
}
