package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackbrumley/voquill/internal/audio"
)

func newDevicesCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "List input devices",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := flags.load()
			if err != nil {
				return err
			}

			drv, err := audio.NewPortAudio()
			if err != nil {
				return err
			}
			defer drv.Close()

			devices, err := audio.NewDirectory(drv).ListInputDevices()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			for _, d := range devices {
				marker := "  "
				if d.ID == cfg.Audio.DeviceID {
					marker = green("* ")
				}
				label := d.Label
				if d.Default {
					label += faint(" (system default)")
				}
				fmt.Fprintf(out, "%s%-12s %s\n", marker, d.ID, label)
			}
			return nil
		},
	}
}
