package logger

import (
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/lmittmann/tint"
)

// timeFormat renders UTC timestamps with millisecond precision.
const timeFormat = "2006-01-02T15:04:05.000Z07:00"

// New returns a colorized stdout logger. Debug level is enabled when verbose is set.
func New(verbose bool) *slog.Logger {
	return NewWithWriter(os.Stdout, verbose)
}

// NewWithWriter logs to w. Color is only used for stdout and stderr.
func NewWithWriter(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:       level,
		NoColor:     w != os.Stdout && w != os.Stderr,
		ReplaceAttr: replaceAttr,
	}))
}

// replaceAttr stamps times in UTC and drops attributes whose value is an empty string.
func replaceAttr(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey && a.Value.Kind() == slog.KindTime {
		return slog.String(slog.TimeKey, formatRFC3339Millis(a.Value.Time()))
	}
	if a.Value.Kind() == slog.KindString && a.Value.String() == "" {
		return slog.Attr{}
	}
	return a
}

func formatRFC3339Millis(t time.Time) string {
	return t.UTC().Format(timeFormat)
}
