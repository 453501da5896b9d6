// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/osa030/syncscreen/internal/app/playback"
)

// Config represents the application configuration.
// Every field has a default, so running without a config file is supported.
type Config struct {
	Playback PlaybackConfig `yaml:"playback"`
	Windows  WindowsConfig  `yaml:"windows"`
	Engine   EngineConfig   `yaml:"engine"`
	Log      LogConfig      `yaml:"log"`
}

// PlaybackConfig represents playback and synchronization settings.
// Pointers distinguish an explicit 0 (rejected) from an omitted value (defaulted).
type PlaybackConfig struct {
	AdjustTimeMs   *int   `yaml:"adjust_time_ms" default:"2000" validate:"required,gt=0,lte=60000"`
	StartOffsetMs  *int   `yaml:"start_offset_ms" default:"1000" validate:"required,gt=0,lte=60000"`
	PollIntervalMs *int   `yaml:"poll_interval_ms" default:"20" validate:"required,gt=0,lte=1000"`
	LoadDelayMs    *int   `yaml:"load_delay_ms" default:"200" validate:"required,gte=0,lte=10000"`
	LoopMode       string `yaml:"loop_mode" default:"loop" validate:"oneof=default loop repeat"`
	Volume         *int   `yaml:"volume" default:"100" validate:"required,gte=0,lte=100"`
	Shuffle        bool   `yaml:"shuffle"`
}

// WindowsConfig represents output window settings.
type WindowsConfig struct {
	Count          int    `yaml:"count" validate:"gte=0,lte=16"` // 0 = one per secondary monitor
	TitlePrefix    string `yaml:"title_prefix" default:"syncscreen" validate:"required"`
	Backend        string `yaml:"backend" default:"x11" validate:"oneof=x11 none"`
	Placement      *bool  `yaml:"placement" default:"true"`
	FindRetries    int    `yaml:"find_retries" default:"25" validate:"gte=1"`
	FindIntervalMs int    `yaml:"find_interval_ms" default:"200" validate:"gte=10"`
}

// EngineConfig represents media engine settings.
// Settings are engine specific and decoded by the engine package.
type EngineConfig struct {
	Type     string         `yaml:"type" default:"mpv" validate:"oneof=mpv"`
	Settings map[string]any `yaml:"settings"`
}

// LogConfig represents logging settings.
type LogConfig struct {
	Level string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	File  string `yaml:"file"`
}

// Default returns a configuration with every default applied.
func Default() (*Config, error) {
	var cfg Config
	cfg.overrideFromEnv()
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}
	return &cfg, nil
}

// Load loads configuration from a YAML file. An empty path yields the defaults.
// Environment variables take precedence over file values.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	cfg.overrideFromEnv()

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}

	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("SYNCSCREEN_MPV_BINARY"); v != "" {
		if c.Engine.Settings == nil {
			c.Engine.Settings = make(map[string]any)
		}
		c.Engine.Settings["binary"] = v
	}
	if v := os.Getenv("SYNCSCREEN_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("SYNCSCREEN_WINDOWS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			c.Windows.Count = n
		}
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}
	return nil
}

// AdjustTime returns how long before the end of a track players are resynced.
func (p PlaybackConfig) AdjustTime() time.Duration {
	return millis(p.AdjustTimeMs)
}

// StartOffset returns the position players restart from.
func (p PlaybackConfig) StartOffset() time.Duration {
	return millis(p.StartOffsetMs)
}

// PollInterval returns the watchdog polling interval.
func (p PlaybackConfig) PollInterval() time.Duration {
	return millis(p.PollIntervalMs)
}

// LoadDelay returns how long to wait for the engines to load media.
func (p PlaybackConfig) LoadDelay() time.Duration {
	return millis(p.LoadDelayMs)
}

// InitialLoopMode returns the loop mode applied at startup.
func (p PlaybackConfig) InitialLoopMode() playback.LoopMode {
	mode, _ := playback.ParseLoopMode(p.LoopMode)
	return mode
}

// InitialVolume returns the volume applied at startup.
func (p PlaybackConfig) InitialVolume() int {
	if p.Volume == nil {
		return 100
	}
	return *p.Volume
}

// PlacementEnabled reports whether windows are moved onto monitors.
func (w WindowsConfig) PlacementEnabled() bool {
	return w.Placement == nil || *w.Placement
}

// FindInterval returns the delay between two window lookups.
func (w WindowsConfig) FindInterval() time.Duration {
	return time.Duration(w.FindIntervalMs) * time.Millisecond
}

func millis(v *int) time.Duration {
	if v == nil {
		return 0
	}
	return time.Duration(*v) * time.Millisecond
}
