package main

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/jackbrumley/voquill/internal/config"
	"github.com/jackbrumley/voquill/internal/logging"
)

type rootFlags struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	var flags rootFlags

	cmd := &cobra.Command{
		Use:           "voquill",
		Short:         "Always-on microphone capture with pre-roll",
		Long:          "voquill keeps the microphone open so recordings start with the audio captured just before they were triggered.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.PersistentFlags().StringVar(&flags.configPath, "config", config.Path(), "path to the config file")
	cmd.PersistentFlags().StringVar(&flags.logLevel, "log-level", "", "override the configured log level")

	cmd.AddCommand(
		newRunCmd(&flags),
		newDevicesCmd(&flags),
		newMicTestCmd(&flags),
		newVersionCmd(),
	)
	return cmd
}

// load reads the config and builds the logger it asks for.
func (f *rootFlags) load() (*config.Config, zerolog.Logger, error) {
	// Load config from XDG/Library/AppData
	cfg, err := config.LoadFrom(f.configPath)
	if err != nil {
		return nil, zerolog.Nop(), fmt.Errorf("failed to load config: %w", err)
	}

	level := cfg.LogLevel
	if f.logLevel != "" {
		level = f.logLevel
	}
	return cfg, logging.NewWithLevel(level), nil
}
