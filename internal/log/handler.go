package log

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/teslashibe/go-rokbot/pkg/feed"
)

// FeedHandler turns log records into feed entries. The "source" attribute
// (or "component" when absent) becomes the entry source; other attributes
// are appended as key=value.
type FeedHandler struct {
	feed   *feed.Feed
	level  slog.Leveler
	attrs  []slog.Attr
	groups []string
}

// NewFeedHandler creates a handler writing records at or above level to f.
func NewFeedHandler(f *feed.Feed, level slog.Leveler) *FeedHandler {
	return &FeedHandler{feed: f, level: level}
}

func (h *FeedHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *FeedHandler) Handle(_ context.Context, r slog.Record) error {
	var source, component string
	var extra []string

	visit := func(a slog.Attr) {
		a.Value = a.Value.Resolve()
		switch a.Key {
		case "source":
			source = a.Value.String()
		case "component":
			component = a.Value.String()
		case "run_id":
		default:
			key := a.Key
			if len(h.groups) > 0 {
				key = strings.Join(h.groups, ".") + "." + key
			}
			extra = append(extra, fmt.Sprintf("%s=%v", key, a.Value.Any()))
		}
	}
	for _, a := range h.attrs {
		visit(a)
	}
	r.Attrs(func(a slog.Attr) bool {
		visit(a)
		return true
	})

	if source == "" {
		source = component
	}
	msg := r.Message
	if len(extra) > 0 {
		msg += " " + strings.Join(extra, " ")
	}

	h.feed.Append(feed.Entry{Time: r.Time, Level: r.Level, Source: source, Message: msg})
	return nil
}

func (h *FeedHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	cp := *h
	cp.attrs = append(append([]slog.Attr(nil), h.attrs...), attrs...)
	return &cp
}

func (h *FeedHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	cp := *h
	cp.groups = append(append([]string(nil), h.groups...), name)
	return &cp
}

// multiHandler fans records out to several handlers.
type multiHandler struct {
	handlers []slog.Handler
}

func (m *multiHandler) Enabled(ctx context.Context, level slog.Level) bool {
	for _, h := range m.handlers {
		if h.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

func (m *multiHandler) Handle(ctx context.Context, r slog.Record) error {
	var errs []error
	for _, h := range m.handlers {
		if h.Enabled(ctx, r.Level) {
			if err := h.Handle(ctx, r.Clone()); err != nil {
				errs = append(errs, err)
			}
		}
	}
	return errors.Join(errs...)
}

func (m *multiHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	hs := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		hs[i] = h.WithAttrs(attrs)
	}
	return &multiHandler{handlers: hs}
}

func (m *multiHandler) WithGroup(name string) slog.Handler {
	hs := make([]slog.Handler, len(m.handlers))
	for i, h := range m.handlers {
		hs[i] = h.WithGroup(name)
	}
	return &multiHandler{handlers: hs}
}
