// Package logging builds the process logger and hands it to libraries that
// log through log/slog.
package logging

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gogpu/gg"
)

// New returns a timestamped logger writing to stderr at the named level.
// Unknown levels fall back to info.
func New(level, prefix string) *log.Logger {
	return NewWithWriter(os.Stderr, level, prefix)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, level, prefix string) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.TimeOnly,
		Prefix:          prefix,
	})
	l.SetLevel(ParseLevel(level))
	return l
}

// ParseLevel maps a config level name to a log level.
func ParseLevel(level string) log.Level {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return log.InfoLevel
	}
	return lvl
}

// Slog wraps l as a *slog.Logger.
func Slog(l *log.Logger) *slog.Logger {
	return slog.New(l)
}

// BridgeGG routes gg's internal diagnostics through l.
func BridgeGG(l *log.Logger) {
	gg.SetLogger(Slog(l.WithPrefix("gg")))
}
