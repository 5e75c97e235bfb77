package internal

import (
	"io"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func NewLogger(w io.Writer, env string, level string) *zerolog.Logger {
	// Validate log level
	l := zerolog.InfoLevel
	switch level {
	case "debug":
		l = zerolog.DebugLevel
	case "info":
	case "warn":
		l = zerolog.WarnLevel
	case "error":
		l = zerolog.ErrorLevel
	default:
		log.Warn().Str("value", level).Msg("Invalid log level. Using default level: info")
	}

	var logger zerolog.Logger
	switch env {
	case "prod":
		zerolog.TimeFieldFormat = time.RFC3339Nano
		logger = zerolog.New(w)
	default:
		logger = zerolog.New(zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen})
	}

	logger = logger.Level(l).With().Timestamp().Logger()
	return &logger
}
