package logging

import (
	"os"

	"github.com/rs/zerolog"

	"github.com/edvin/cronverge/internal/config"
)

// NewLogger creates the process-wide structured logger. The level comes
// from the config; an unparseable level falls back to info.
func NewLogger(cfg *config.Config) zerolog.Logger {
	logger := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", "cronverge").
		Logger()

	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	return logger.Level(level)
}
