// Package mpv implements player handles backed by mpv processes controlled over JSON IPC.
package mpv

import (
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/mapstructure"
	zlog "github.com/rs/zerolog/log"
)

// Settings are the engine settings found under engine.settings in the config.
type Settings struct {
	Binary         string   `yaml:"binary" mapstructure:"binary" default:"mpv" validate:"required"`
	SocketDir      string   `yaml:"socket_dir" mapstructure:"socket_dir"`
	ExtraArgs      []string `yaml:"extra_args" mapstructure:"extra_args"`
	Hwdec          string   `yaml:"hwdec" mapstructure:"hwdec" default:"auto"`
	StartTimeoutMs int      `yaml:"start_timeout_ms" mapstructure:"start_timeout_ms" default:"5000" validate:"gte=100"`
	CallTimeoutMs  int      `yaml:"call_timeout_ms" mapstructure:"call_timeout_ms" default:"2000" validate:"gte=10"`
}

// NewSettings decodes, defaults and validates engine settings.
func NewSettings(settings map[string]any) (Settings, error) {
	var s Settings
	if err := mapstructure.Decode(settings, &s); err != nil {
		return Settings{}, errors.Wrap(err, "failed to decode settings")
	}
	if err := defaults.Set(&s); err != nil {
		return Settings{}, errors.Wrap(err, "failed to set defaults")
	}
	if s.SocketDir == "" {
		s.SocketDir = os.TempDir()
	}
	zlog.Debug().Msgf("mpv settings: %+v", s)
	if err := validator.New().Struct(s); err != nil {
		return Settings{}, errors.Wrap(err, "validation failed")
	}
	return s, nil
}

// StartTimeout returns how long to wait for the IPC socket to come up.
func (s Settings) StartTimeout() time.Duration {
	return time.Duration(s.StartTimeoutMs) * time.Millisecond
}

// CallTimeout returns the per-command IPC timeout.
func (s Settings) CallTimeout() time.Duration {
	return time.Duration(s.CallTimeoutMs) * time.Millisecond
}
