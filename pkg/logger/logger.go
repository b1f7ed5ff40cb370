// Package logger builds the structured logger shared by the commands and
// the monitor.
package logger

import (
	"fmt"
	"io"
	"os"

	"github.com/phuslu/log"
	"golang.org/x/term"
)

// Config selects the level and output format.
type Config struct {
	Level string
	// Format is one of auto, logfmt or json.
	Format string
	// Writer defaults to stderr.
	Writer io.Writer
}

// parseLogLevel converts string log level to log.Level
func parseLogLevel(levelStr string) (log.Level, error) {
	switch levelStr {
	case "trace":
		return log.TraceLevel, nil
	case "debug":
		return log.DebugLevel, nil
	case "", "info":
		return log.InfoLevel, nil
	case "warn", "warning":
		return log.WarnLevel, nil
	case "error":
		return log.ErrorLevel, nil
	default:
		return log.InfoLevel, fmt.Errorf("unknown log level %q", levelStr)
	}
}

func createWriter(cfg Config) (log.Writer, error) {
	base := cfg.Writer
	if base == nil {
		base = os.Stderr
	}

	switch cfg.Format {
	case "json":
		return &log.IOWriter{Writer: base}, nil
	case "logfmt":
		return &log.ConsoleWriter{
			Formatter:      log.LogfmtFormatter{TimeField: "time"}.Formatter,
			EndWithMessage: true,
			Writer:         base,
		}, nil
	case "", "auto":
		return &log.ConsoleWriter{
			ColorOutput:    cfg.Writer == nil && term.IsTerminal(int(os.Stderr.Fd())),
			EndWithMessage: true,
			Writer:         base,
		}, nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
}

// New returns a logger writing cfg.Format records at cfg.Level and above.
func New(cfg Config) (*log.Logger, error) {
	level, err := parseLogLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	writer, err := createWriter(cfg)
	if err != nil {
		return nil, err
	}
	return &log.Logger{
		Level:      level,
		Caller:     0,
		TimeFormat: "15:04:05.000",
		Writer:     writer,
	}, nil
}

// Discard returns a logger that drops everything.
func Discard() *log.Logger {
	return &log.Logger{Level: log.PanicLevel, Writer: &log.IOWriter{Writer: io.Discard}}
}
