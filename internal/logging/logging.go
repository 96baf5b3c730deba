// Package logging builds the structured logger used by the service, API and
// CLI layers.
package logging

import (
	"io"
	"os"

	"github.com/phuslu/log"

	"github.com/seenimoa/moatscore/internal/config"
)

// New returns a logger writing to w (stderr when nil) at the configured
// level. Format "json" emits one JSON object per line; anything else uses
// the human-readable console writer.
func New(cfg config.LoggingConfig, w io.Writer) *log.Logger {
	if w == nil {
		w = os.Stderr
	}
	var writer log.Writer = &log.ConsoleWriter{
		Writer:         w,
		ColorOutput:    false,
		EndWithMessage: true,
	}
	if cfg.Format == "json" {
		writer = &log.IOWriter{Writer: w}
	}
	return &log.Logger{
		Level:      log.ParseLevel(cfg.Level),
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		Writer:     writer,
	}
}

// Setup installs New(cfg, nil) as the package-level default logger.
func Setup(cfg config.LoggingConfig) *log.Logger {
	l := New(cfg, nil)
	log.DefaultLogger = *l
	return l
}

// Discard returns a logger that drops everything, for tests and library use.
func Discard() *log.Logger {
	return &log.Logger{Level: log.PanicLevel, Writer: &log.IOWriter{Writer: io.Discard}}
}
