package build

import (
	"context"
	"log/slog"

	"github.com/btcsuite/btclog"
	btclogv2 "github.com/btcsuite/btclog/v2"
)

// fanOut dispatches every log record to each handler in the set. It
// implements slog.Handler for any element type that itself satisfies
// slog.Handler, so the same plumbing backs both the btclog root set and
// the derived attribute/group sets.
type fanOut[H slog.Handler] struct {
	set []H
}

// Enabled reports whether the handler handles records at the given level.
//
// NOTE: this is part of the slog.Handler interface.
func (f *fanOut[H]) Enabled(ctx context.Context, level slog.Level) bool {
	for _, handler := range f.set {
		if !handler.Enabled(ctx, level) {
			return false
		}
	}

	return true
}

// Handle handles the Record by dispatching to all underlying handlers.
//
// NOTE: this is part of the slog.Handler interface.
func (f *fanOut[H]) Handle(ctx context.Context, record slog.Record) error {
	for _, handler := range f.set {
		if err := handler.Handle(ctx, record); err != nil {
			return err
		}
	}

	return nil
}

// WithAttrs returns a new Handler whose attributes consist of both the
// receiver's attributes and the arguments.
//
// NOTE: this is part of the slog.Handler interface.
func (f *fanOut[H]) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := &fanOut[slog.Handler]{
		set: make([]slog.Handler, len(f.set)),
	}
	for i, handler := range f.set {
		out.set[i] = handler.WithAttrs(attrs)
	}

	return out
}

// WithGroup returns a new Handler with the given group appended to the
// receiver's existing groups.
//
// NOTE: this is part of the slog.Handler interface.
func (f *fanOut[H]) WithGroup(name string) slog.Handler {
	out := &fanOut[slog.Handler]{
		set: make([]slog.Handler, len(f.set)),
	}
	for i, handler := range f.set {
		out.set[i] = handler.WithGroup(name)
	}

	return out
}

// Ensure fanOut implements slog.Handler at compile time.
var _ slog.Handler = (*fanOut[slog.Handler])(nil)

// HandlerSet fans log records out to the daemon's sinks, the console plus
// the rotating log file, behind the btclog handler surface.
type HandlerSet struct {
	fanOut[btclogv2.Handler]

	level btclog.Level
}

// Ensure HandlerSet implements btclog.Handler at compile time.
var _ btclogv2.Handler = (*HandlerSet)(nil)

// NewHandlerSet constructs a new HandlerSet from the given handlers. All
// handlers are initialized to the Info log level.
func NewHandlerSet(handlers ...btclogv2.Handler) *HandlerSet {
	h := &HandlerSet{
		fanOut: fanOut[btclogv2.Handler]{set: handlers},
		level:  btclog.LevelInfo,
	}
	h.SetLevel(h.level)

	return h
}

// SubSystem creates a new Handler with the given sub-system tag.
//
// NOTE: this is part of the btclog.Handler interface.
func (h *HandlerSet) SubSystem(tag string) btclogv2.Handler {
	out := &HandlerSet{
		fanOut: fanOut[btclogv2.Handler]{
			set: make([]btclogv2.Handler, len(h.set)),
		},
		level: h.level,
	}
	for i, handler := range h.set {
		out.set[i] = handler.SubSystem(tag)
	}

	return out
}

// SetLevel changes the logging level on all underlying handlers.
//
// NOTE: this is part of the btclog.Handler interface.
func (h *HandlerSet) SetLevel(level btclog.Level) {
	for _, handler := range h.set {
		handler.SetLevel(level)
	}
	h.level = level
}

// Level returns the current logging level.
//
// NOTE: this is part of the btclog.Handler interface.
func (h *HandlerSet) Level() btclog.Level {
	return h.level
}

// WithPrefix returns a copy of the Handler but with the given string
// prefixed to each log message.
//
// NOTE: this is part of the btclog.Handler interface.
func (h *HandlerSet) WithPrefix(prefix string) btclogv2.Handler {
	out := &HandlerSet{
		fanOut: fanOut[btclogv2.Handler]{
			set: make([]btclogv2.Handler, len(h.set)),
		},
		level: h.level,
	}
	for i, handler := range h.set {
		out.set[i] = handler.WithPrefix(prefix)
	}

	return out
}
