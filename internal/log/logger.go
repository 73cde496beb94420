package log

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New builds the process logger. An explicit level overrides the
// environment default (debug outside production, info in production).
func New(environment string, level string) zerolog.Logger {
	output := zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
		NoColor:    environment == "production",
	}

	logger := zerolog.New(output).With().
		Timestamp().
		Str("env", environment).
		Logger()

	globalLevel := zerolog.InfoLevel
	if environment != "production" {
		globalLevel = zerolog.DebugLevel
	}
	if level != "" {
		if parsed, err := zerolog.ParseLevel(level); err == nil {
			globalLevel = parsed
		} else {
			logger.Warn().Str("level", level).Msg("unknown log level, keeping default")
		}
	}
	zerolog.SetGlobalLevel(globalLevel)

	return logger
}
