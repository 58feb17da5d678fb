// Package logging bridges the process-wide zerolog logger (§10.1)
// into the constructor-injected *slog.Logger the rest of the module
// takes, the same split the teacher's cmd/helix (package-level
// zerolog) and api/pkg/desktop (constructor-injected *slog.Logger)
// keep between them.
package logging

import (
	"context"
	"log/slog"

	"github.com/rs/zerolog"
)

// New builds a *slog.Logger backed by z, so every subsystem's log
// line ultimately flows through the same zerolog writer/level/format
// main configured.
func New(z zerolog.Logger) *slog.Logger {
	return slog.New(&handler{z: z})
}

// handler adapts slog.Handler onto a zerolog.Logger. Only the
// attributes actually used across the module (string/int/bool/error
// via slog.Any) need to round-trip; there is no generic slog group
// nesting in use.
type handler struct {
	z     zerolog.Logger
	attrs []slog.Attr
}

func (h *handler) Enabled(_ context.Context, level slog.Level) bool {
	return h.z.GetLevel() <= zerologLevel(level)
}

func (h *handler) Handle(_ context.Context, rec slog.Record) error {
	evt := h.z.WithLevel(zerologLevel(rec.Level))
	for _, a := range h.attrs {
		evt = addAttr(evt, a)
	}
	rec.Attrs(func(a slog.Attr) bool {
		evt = addAttr(evt, a)
		return true
	})
	evt.Msg(rec.Message)
	return nil
}

func (h *handler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := &handler{z: h.z, attrs: append(append([]slog.Attr(nil), h.attrs...), attrs...)}
	return next
}

func (h *handler) WithGroup(name string) slog.Handler {
	return &handler{z: h.z.With().Str("group", name).Logger(), attrs: h.attrs}
}

func addAttr(evt *zerolog.Event, a slog.Attr) *zerolog.Event {
	v := a.Value.Resolve()
	switch v.Kind() {
	case slog.KindString:
		return evt.Str(a.Key, v.String())
	case slog.KindInt64:
		return evt.Int64(a.Key, v.Int64())
	case slog.KindUint64:
		return evt.Uint64(a.Key, v.Uint64())
	case slog.KindFloat64:
		return evt.Float64(a.Key, v.Float64())
	case slog.KindBool:
		return evt.Bool(a.Key, v.Bool())
	case slog.KindDuration:
		return evt.Dur(a.Key, v.Duration())
	default:
		if err, ok := v.Any().(error); ok {
			return evt.AnErr(a.Key, err)
		}
		return evt.Interface(a.Key, v.Any())
	}
}

func zerologLevel(level slog.Level) zerolog.Level {
	switch {
	case level >= slog.LevelError:
		return zerolog.ErrorLevel
	case level >= slog.LevelWarn:
		return zerolog.WarnLevel
	case level >= slog.LevelInfo:
		return zerolog.InfoLevel
	default:
		return zerolog.DebugLevel
	}
}
