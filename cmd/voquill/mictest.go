package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/jackbrumley/voquill/internal/app"
	"github.com/jackbrumley/voquill/internal/audio"
	"github.com/jackbrumley/voquill/internal/permissions"
)

// discard drops recordings; a mic test never produces one.
type discard struct{}

func (discard) Consume(context.Context, []byte) error { return nil }

func newMicTestCmd(flags *rootFlags) *cobra.Command {
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "mictest",
		Short: "Record a short clip and play it back",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, log, err := flags.load()
			if err != nil {
				return err
			}
			if err := permissions.EnsurePermissions(); err != nil {
				return err
			}

			drv, err := audio.NewPortAudio()
			if err != nil {
				return err
			}
			defer drv.Close()

			application := app.New(app.Config{
				Driver:     drv,
				Consumer:   discard{},
				Config:     cfg,
				ConfigPath: flags.configPath,
				Logger:     log,
			})
			if err := application.Start(); err != nil {
				return err
			}
			defer application.Shutdown(context.Background())

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Recording for %s...\n", duration)

			finished := make(chan error, 1)
			err = application.StartMicTest(func(peak float32) {
				fmt.Fprintf(out, "\r%s %5.2f", meter(peak), peak)
			}, func(err error) {
				finished <- err
			})
			if err != nil {
				return err
			}

			ctx := cmd.Context()
			select {
			case <-time.After(duration):
			case <-ctx.Done():
			}
			application.StopMicTest()
			fmt.Fprintln(out, "\nPlaying back...")

			select {
			case err := <-finished:
				return err
			case <-ctx.Done():
				return application.StopPlayback()
			}
		},
	}

	cmd.Flags().DurationVar(&duration, "duration", 3*time.Second, "how long to record")
	return cmd
}
