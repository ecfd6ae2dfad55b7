package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jackbrumley/voquill/internal/app"
	"github.com/jackbrumley/voquill/internal/audio"
	"github.com/jackbrumley/voquill/internal/config"
	"github.com/jackbrumley/voquill/internal/metrics"
	"github.com/jackbrumley/voquill/internal/permissions"
	"github.com/jackbrumley/voquill/internal/sink"
)

const shutdownTimeout = 5 * time.Second

func newRunCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Keep the microphone live and record on Enter",
		Long: `Opens the capture engine and keeps it running. Each Enter on stdin
starts or stops a recording; finished recordings are written as 16 kHz
mono WAV files to the output directory.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd.Context(), flags, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}
}

func runDaemon(ctx context.Context, flags *rootFlags, in io.Reader, out io.Writer) error {
	cfg, log, err := flags.load()
	if err != nil {
		return err
	}

	// macOS requires explicit microphone approval before capture works
	if err := permissions.EnsurePermissions(); err != nil {
		return err
	}

	drv, err := audio.NewPortAudio()
	if err != nil {
		return err
	}
	defer drv.Close()

	m := metrics.New()
	recordings := sink.NewDir(cfg.OutputDir(), log)

	application := app.New(app.Config{
		Driver:        drv,
		Consumer:      recordings,
		Config:        cfg,
		ConfigPath:    flags.configPath,
		Logger:        log,
		StatusUpdater: newStatusLine(out),
		Metrics:       m,
	})
	if err := application.Start(); err != nil {
		return fmt.Errorf("failed to start capture: %w", err)
	}

	eng := application.Engine()
	log.Info().
		Str("output", recordings.Path()).
		Str("device", eng.Device().Name).
		Stringer("format", eng.Format()).
		Bool("fallback", eng.Fallback()).
		Msg("Voquill starting...")
	fmt.Fprintln(out, faint("Press Enter to start or stop a recording, Ctrl+C to quit."))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return readTriggers(gctx, in, application, log)
	})
	g.Go(func() error {
		return config.Watch(gctx, flags.configPath, log, func(next *config.Config) {
			if err := application.ApplyConfig(next); err != nil {
				log.Error().Err(err).Msg("Failed to apply config")
			}
		})
	})
	if cfg.MetricsAddr != "" {
		g.Go(func() error {
			return m.Serve(gctx, cfg.MetricsAddr, log)
		})
	}

	runErr := g.Wait()

	log.Info().Msg("Shutting down...")
	if application.Busy() {
		log.Info().Msg("Waiting for the active recording to be saved")
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := application.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Shutdown error")
	}
	return runErr
}

// readTriggers turns every line read from in into a hotkey event for the
// configured mode. It returns when ctx is done; end of input leaves the
// engine running.
func readTriggers(ctx context.Context, in io.Reader, application *app.App, log zerolog.Logger) error {
	lines := make(chan struct{})
	go func() {
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- struct{}{}:
			case <-ctx.Done():
				return
			}
		}
		if err := scanner.Err(); err != nil {
			log.Warn().Err(err).Msg("Stopped reading stdin")
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-lines:
			// Each line is a key press. In push-to-talk the key stays down
			// until the next line.
			switch application.Mode() {
			case app.PushToTalk:
				application.OnHotkey(!application.IsRecording())
			default:
				application.OnHotkey(true)
			}
		}
	}
}
