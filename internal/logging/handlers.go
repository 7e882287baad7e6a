package logging

import (
	"context"
	"errors"
	"log/slog"
	"slices"
)

// fanout sends each record to every handler that accepts its level.
type fanout []slog.Handler

func (f fanout) Enabled(ctx context.Context, level slog.Level) bool {
	return slices.ContainsFunc(f, func(h slog.Handler) bool { return h.Enabled(ctx, level) })
}

// Handle passes a clone to each handler and joins their errors.
func (f fanout) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range f {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (f fanout) WithAttrs(attrs []slog.Attr) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithAttrs(attrs)
	}
	return out
}

func (f fanout) WithGroup(name string) slog.Handler {
	out := make(fanout, len(f))
	for i, h := range f {
		out[i] = h.WithGroup(name)
	}
	return out
}

// attrState is the WithAttrs/WithGroup bookkeeping shared by the handlers
// that flatten records themselves. The module attribute is lifted out since
// every entry carries it as a top-level field.
type attrState struct {
	level  slog.Leveler
	module string
	attrs  []groupedAttr
	groups []string
}

type groupedAttr struct {
	groups []string
	attr   slog.Attr
}

func (s attrState) enabled(level slog.Level) bool {
	return level >= s.level.Level()
}

func (s attrState) withAttrs(attrs []slog.Attr) attrState {
	next := s
	next.attrs = slices.Clip(s.attrs)
	for _, a := range attrs {
		if a.Key == "module" && len(s.groups) == 0 {
			next.module = a.Value.String()
			continue
		}
		next.attrs = append(next.attrs, groupedAttr{groups: s.groups, attr: a})
	}
	return next
}

func (s attrState) withGroup(name string) attrState {
	if name == "" {
		return s
	}
	next := s
	next.groups = append(slices.Clip(s.groups), name)
	return next
}

// each visits the handler's attributes and then the record's, with the
// group path each was added under.
func (s attrState) each(r slog.Record, fn func(groups []string, a slog.Attr)) {
	for _, ga := range s.attrs {
		fn(ga.groups, ga.attr)
	}
	r.Attrs(func(a slog.Attr) bool {
		fn(s.groups, a)
		return true
	})
}
