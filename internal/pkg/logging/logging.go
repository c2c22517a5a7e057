// Package logging builds the zerolog-backed logr.Logger shared by every command.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-logr/logr"
	"github.com/go-logr/zerologr"
	"github.com/rs/zerolog"
)

// Configure returns a logger writing to out in the given format ("json" or ""
// for console output) at the given level.
func Configure(out io.Writer, logFormat, logLevel string) (logr.Logger, error) {
	var level zerolog.Level
	switch strings.ToLower(logLevel) {
	case "trace":
		level = zerolog.TraceLevel
	case "debug":
		level = zerolog.DebugLevel
	case "info", "":
		level = zerolog.InfoLevel
	case "warn", "warning":
		level = zerolog.WarnLevel
	case "error":
		level = zerolog.ErrorLevel
	default:
		return logr.Logger{}, fmt.Errorf("unsupported log level: %q", logLevel)
	}

	var zl zerolog.Logger
	switch strings.ToLower(logFormat) {
	case "json":
		zl = zerolog.New(out).Level(level).With().Timestamp().Logger()
	case "":
		// Human-readable console output
		zl = zerolog.New(
			zerolog.ConsoleWriter{
				Out:        out,
				TimeFormat: time.RFC3339,
			},
		).Level(level).With().Timestamp().Logger()
	default:
		return logr.Logger{}, fmt.Errorf("unsupported log format: %q", logFormat)
	}

	// zerologr maps logr V(n) onto zerolog levels below info
	zerologr.SetMaxV(2)
	return zerologr.New(&zl), nil
}
