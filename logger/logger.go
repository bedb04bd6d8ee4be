// Package logger builds the *slog.Logger values used across bigmodel.
package logger

import (
	"context"
	"io"
	"log/slog"
	"os"

	charmlog "github.com/charmbracelet/log"
)

// Output formats accepted by WithFormat. Anything else means text.
const (
	FormatText   = "text"
	FormatJSON   = "json"
	FormatPretty = "pretty"
)

type settings struct {
	level  slog.Level
	format string
	out    io.Writer
}

// Option configures New.
type Option func(*settings)

// WithLevel sets the minimum level. The default is info.
func WithLevel(level slog.Level) Option {
	return func(s *settings) { s.level = level }
}

// WithFormat selects FormatText, FormatJSON or FormatPretty.
func WithFormat(format string) Option {
	return func(s *settings) { s.format = format }
}

// WithWriter sets the destination. The default is stdout.
func WithWriter(w io.Writer) Option {
	return func(s *settings) { s.out = w }
}

// New returns a slog logger. Pretty output is rendered by charmbracelet/log.
func New(opts ...Option) *slog.Logger {
	s := &settings{level: slog.LevelInfo, format: FormatText, out: os.Stdout}
	for _, opt := range opts {
		opt(s)
	}

	switch s.format {
	case FormatPretty:
		return slog.New(charmlog.NewWithOptions(s.out, charmlog.Options{
			Level:           charmLevel(s.level),
			ReportTimestamp: true,
		}))
	case FormatJSON:
		return slog.New(slog.NewJSONHandler(s.out, &slog.HandlerOptions{Level: s.level}))
	default:
		return slog.New(slog.NewTextHandler(s.out, &slog.HandlerOptions{Level: s.level}))
	}
}

// Nop returns a logger that discards everything.
func Nop() *slog.Logger {
	return slog.New(nopHandler{})
}

// ParseLevel maps a config string to a level. Unknown strings mean info.
func ParseLevel(s string) slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return l
}

func charmLevel(l slog.Level) charmlog.Level {
	switch {
	case l <= slog.LevelDebug:
		return charmlog.DebugLevel
	case l <= slog.LevelInfo:
		return charmlog.InfoLevel
	case l <= slog.LevelWarn:
		return charmlog.WarnLevel
	default:
		return charmlog.ErrorLevel
	}
}

type nopHandler struct{}

func (nopHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (nopHandler) Handle(context.Context, slog.Record) error { return nil }
func (h nopHandler) WithAttrs([]slog.Attr) slog.Handler      { return h }
func (h nopHandler) WithGroup(string) slog.Handler           { return h }
