package telemetry

import (
	"fmt"
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// LoggerConfig selects level and encoding for NewLogger.
type LoggerConfig struct {
	Level  string // trace, debug, info, warn, error
	Format string // json or console
	Output io.Writer
}

// NewLogger creates the process logger. Output defaults to stderr.
func NewLogger(cfg LoggerConfig) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if cfg.Level != "" {
		parsed, err := zerolog.ParseLevel(cfg.Level)
		if err != nil {
			return zerolog.Nop(), fmt.Errorf("parse log level: %w", err)
		}
		level = parsed
	}

	var writer io.Writer = os.Stderr
	if cfg.Output != nil {
		writer = cfg.Output
	}

	switch cfg.Format {
	case "", "json":
	case "console":
		writer = zerolog.ConsoleWriter{Out: writer, TimeFormat: time.RFC3339}
	default:
		return zerolog.Nop(), fmt.Errorf("unsupported log format %q", cfg.Format)
	}

	return zerolog.New(writer).Level(level).With().Timestamp().Str("service", ServiceName).Logger(), nil
}

const ServiceName = "auraflow"
