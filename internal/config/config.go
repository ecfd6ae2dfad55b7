package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/jackbrumley/voquill/internal/audio"
)

const (
	ModePushToTalk = "PushToTalk"
	ModeToggle     = "Toggle"
)

const appName = "voquill"

type Config struct {
	Mode        string       `json:"mode"` // "PushToTalk" or "Toggle"
	LogLevel    string       `json:"log_level"`
	Audio       AudioConfig  `json:"audio"`
	Output      OutputConfig `json:"output"`
	MetricsAddr string       `json:"metrics_addr"` // empty disables the endpoint
}

type AudioConfig struct {
	DeviceID         string  `json:"device_id"`
	InputSensitivity float32 `json:"input_sensitivity"`
	PreRollMs        int     `json:"preroll_ms"`
	SampleFormat     string  `json:"sample_format"` // "f32" or "i16"
	SendBufferMs     int     `json:"send_buffer_ms"`
	PollIntervalMs   int     `json:"poll_interval_ms"`
}

type OutputConfig struct {
	Dir string `json:"dir"` // empty means RecordingsPath()
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Mode:     ModePushToTalk,
		LogLevel: "info",
		Audio: AudioConfig{
			DeviceID:         audio.DefaultDeviceID,
			InputSensitivity: 1.0,
			PreRollMs:        int(audio.DefaultPreRoll / time.Millisecond),
			SampleFormat:     "f32",
			SendBufferMs:     int(audio.DefaultSendBuffer / time.Millisecond),
			PollIntervalMs:   int(audio.DefaultPollInterval / time.Millisecond),
		},
	}
}

// Load reads the config from disk or returns defaults
func Load() (*Config, error) {
	return LoadFrom(Path())
}

// LoadFrom reads the config at path. A missing file yields the defaults;
// fields absent from the file keep their default values.
func LoadFrom(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the config to disk
func (c *Config) Save() error {
	return c.SaveTo(Path())
}

// SaveTo writes the config to path as indented JSON.
func (c *Config) SaveTo(path string) error {
	// Ensure directory exists
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(path, data, 0644)
}

// Validate reports every invalid field, joined into one error.
func (c *Config) Validate() error {
	var errs []error

	switch c.Mode {
	case ModePushToTalk, ModeToggle:
	default:
		errs = append(errs, fmt.Errorf("mode must be %q or %q, got %q", ModePushToTalk, ModeToggle, c.Mode))
	}
	if c.LogLevel != "" {
		if _, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel)); err != nil {
			errs = append(errs, fmt.Errorf("log_level: %w", err))
		}
	}
	if c.Audio.InputSensitivity <= 0 {
		errs = append(errs, fmt.Errorf("audio.input_sensitivity must be positive, got %v", c.Audio.InputSensitivity))
	}
	if c.Audio.PreRollMs < 0 {
		errs = append(errs, fmt.Errorf("audio.preroll_ms must not be negative, got %d", c.Audio.PreRollMs))
	}
	if c.Audio.SendBufferMs < 0 {
		errs = append(errs, fmt.Errorf("audio.send_buffer_ms must not be negative, got %d", c.Audio.SendBufferMs))
	}
	if c.Audio.PollIntervalMs < 0 {
		errs = append(errs, fmt.Errorf("audio.poll_interval_ms must not be negative, got %d", c.Audio.PollIntervalMs))
	}
	if _, err := audio.ParseSampleFormat(c.Audio.SampleFormat); err != nil {
		errs = append(errs, fmt.Errorf("audio.sample_format: %w", err))
	}

	return errors.Join(errs...)
}

// EngineOptions converts the audio section into capture engine options.
func (c *Config) EngineOptions(log zerolog.Logger) audio.EngineOptions {
	// Validate has already rejected unknown formats.
	format, _ := audio.ParseSampleFormat(c.Audio.SampleFormat)
	return audio.EngineOptions{
		Sensitivity: c.Audio.InputSensitivity,
		PreRoll:     time.Duration(c.Audio.PreRollMs) * time.Millisecond,
		SendBuffer:  time.Duration(c.Audio.SendBufferMs) * time.Millisecond,
		Format:      format,
		Logger:      log,
	}
}

// PollInterval returns how often a recording checks its stop flag.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Audio.PollIntervalMs) * time.Millisecond
}

// OutputDir returns the configured recordings directory.
func (c *Config) OutputDir() string {
	if c.Output.Dir != "" {
		return c.Output.Dir
	}
	return RecordingsPath()
}

// EngineChanged reports whether moving from old to new requires the capture
// engine to be reopened.
func EngineChanged(old, new *Config) bool {
	if old == nil || new == nil {
		return old != new
	}
	return old.Audio.DeviceID != new.Audio.DeviceID ||
		old.Audio.InputSensitivity != new.Audio.InputSensitivity ||
		old.Audio.PreRollMs != new.Audio.PreRollMs ||
		old.Audio.SendBufferMs != new.Audio.SendBufferMs ||
		!strings.EqualFold(old.Audio.SampleFormat, new.Audio.SampleFormat)
}

// Path returns the platform-specific config file path
func Path() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("APPDATA")
	default: // linux
		if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.config"
		}
	}

	return filepath.Join(base, appName, "config.json")
}

// RecordingsPath returns the platform-specific default recordings directory
func RecordingsPath() string {
	var base string

	switch runtime.GOOS {
	case "darwin":
		base = os.Getenv("HOME") + "/Library/Application Support"
	case "windows":
		base = os.Getenv("LOCALAPPDATA")
	default:
		if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
			base = xdg
		} else {
			base = os.Getenv("HOME") + "/.local/share"
		}
	}

	return filepath.Join(base, appName, "recordings")
}
