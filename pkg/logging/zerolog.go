package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Zerolog adapts a zerolog.Logger to Logger.
type Zerolog struct {
	zl zerolog.Logger
}

// New builds a zerolog-backed Logger writing to stderr. format is "json" or
// "console" (anything else falls back to console); level is a zerolog level
// name and defaults to info.
func New(format, level string) *Zerolog {
	return NewWithWriter(os.Stderr, format, level)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, format, level string) *Zerolog {
	out := w
	if !strings.EqualFold(format, "json") {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.TimeOnly}
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	return &Zerolog{zl: zerolog.New(out).Level(lvl).With().Timestamp().Logger()}
}

// With returns a child logger carrying a "component" field.
func (z *Zerolog) With(component string) *Zerolog {
	return &Zerolog{zl: z.zl.With().Str("component", component).Logger()}
}

func (z *Zerolog) Debug(msg string, fields ...Field) { emit(z.zl.Debug(), msg, fields) }
func (z *Zerolog) Info(msg string, fields ...Field)  { emit(z.zl.Info(), msg, fields) }
func (z *Zerolog) Warn(msg string, fields ...Field)  { emit(z.zl.Warn(), msg, fields) }
func (z *Zerolog) Error(msg string, fields ...Field) { emit(z.zl.Error(), msg, fields) }

func emit(ev *zerolog.Event, msg string, fields []Field) {
	if ev == nil {
		return
	}
	for _, f := range fields {
		switch v := f.Value.(type) {
		case string:
			ev = ev.Str(f.Key, v)
		case int:
			ev = ev.Int(f.Key, v)
		case int64:
			ev = ev.Int64(f.Key, v)
		case float64:
			ev = ev.Float64(f.Key, v)
		case bool:
			ev = ev.Bool(f.Key, v)
		case time.Duration:
			ev = ev.Dur(f.Key, v)
		case error:
			ev = ev.AnErr(f.Key, v)
		default:
			ev = ev.Interface(f.Key, v)
		}
	}
	ev.Msg(msg)
}
