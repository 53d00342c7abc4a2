// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package observability provides structured logging and batch metrics for
// the pipeline stages.
package observability

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/kmccurley/cryptobib/pkg/types"
)

// DefaultLoggingConfig returns info-level console logging.
func DefaultLoggingConfig() types.LoggingConfig {
	return types.LoggingConfig{
		Level:  "info",
		Format: "console",
	}
}

// NewLogger creates a zerolog logger writing to w. Stage output goes to
// stdout, so callers normally pass os.Stderr.
func NewLogger(cfg types.LoggingConfig, w io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	output := w
	if strings.ToLower(cfg.Format) == "console" {
		_, isFile := w.(*os.File)
		output = zerolog.ConsoleWriter{
			Out:        w,
			NoColor:    !isFile,
			TimeFormat: time.TimeOnly,
		}
	}

	return zerolog.New(output).
		With().
		Timestamp().
		Logger().
		Level(parseLevel(cfg.Level))
}

// parseLevel converts a string log level to zerolog.Level.
func parseLevel(level string) zerolog.Level {
	switch strings.ToLower(level) {
	case "trace":
		return zerolog.TraceLevel
	case "debug":
		return zerolog.DebugLevel
	case "info":
		return zerolog.InfoLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// WithRecord adds the citation key of the record being processed.
func WithRecord(logger zerolog.Logger, key string) zerolog.Logger {
	return logger.With().Str("bibkey", key).Logger()
}

// WithStage adds the pipeline stage name.
func WithStage(logger zerolog.Logger, stage string) zerolog.Logger {
	return logger.With().Str("stage", stage).Logger()
}
