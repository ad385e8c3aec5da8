package logging

import (
	"context"
	"errors"
	"log/slog"

	"github.com/getsentry/sentry-go"
)

// SentryHandler forwards log records to the Sentry hub on the context, or the current
// hub. Records below slog.LevelError become breadcrumbs on the next event; error
// records are captured, as an exception when they carry an "error" attribute.
type SentryHandler struct {
	level slog.Leveler
	attrs []slog.Attr
	group string
}

func NewSentryHandler(level slog.Leveler) *SentryHandler {
	if level == nil {
		level = slog.LevelInfo
	}
	return &SentryHandler{level: level}
}

func (h *SentryHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level.Level()
}

func (h *SentryHandler) Handle(ctx context.Context, record slog.Record) error {
	hub := sentry.GetHubFromContext(ctx)
	if hub == nil {
		hub = sentry.CurrentHub()
	}
	if hub == nil || hub.Client() == nil {
		return nil
	}

	data, err := h.recordData(record)

	if record.Level < slog.LevelError {
		hub.AddBreadcrumb(&sentry.Breadcrumb{
			Type:      "default",
			Category:  "log",
			Message:   record.Message,
			Level:     sentryLevel(record.Level),
			Data:      data,
			Timestamp: record.Time,
		}, nil)
		return nil
	}

	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetLevel(sentry.LevelError)
		scope.SetContext("log", sentry.Context(data))
		if err != nil {
			scope.SetTag("log.message", record.Message)
			hub.CaptureException(err)
			return
		}
		hub.CaptureMessage(record.Message)
	})
	return nil
}

func (h *SentryHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	next := *h
	next.attrs = make([]slog.Attr, 0, len(h.attrs)+len(attrs))
	next.attrs = append(next.attrs, h.attrs...)
	for _, attr := range attrs {
		next.attrs = append(next.attrs, slog.Attr{Key: h.qualify(attr.Key), Value: attr.Value})
	}
	return &next
}

func (h *SentryHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	next := *h
	next.group = h.qualify(name)
	return &next
}

func (h *SentryHandler) qualify(key string) string {
	if h.group == "" {
		return key
	}
	return h.group + "." + key
}

// recordData flattens handler and record attributes into event data. The first
// attribute named "error" holding an error value is returned separately.
func (h *SentryHandler) recordData(record slog.Record) (map[string]any, error) {
	data := make(map[string]any, len(h.attrs)+record.NumAttrs())
	var recordErr error

	var add func(prefix string, attr slog.Attr)
	add = func(prefix string, attr slog.Attr) {
		attr.Value = attr.Value.Resolve()
		key := attr.Key
		if prefix != "" {
			key = prefix + "." + key
		}
		if attr.Value.Kind() == slog.KindGroup {
			for _, member := range attr.Value.Group() {
				add(key, member)
			}
			return
		}

		value := attr.Value.Any()
		if err, ok := value.(error); ok {
			if recordErr == nil && (attr.Key == "error" || attr.Key == "err") {
				recordErr = err
			}
			value = err.Error()
		}
		data[key] = value
	}

	for _, attr := range h.attrs {
		add("", attr)
	}
	record.Attrs(func(attr slog.Attr) bool {
		add(h.group, attr)
		return true
	})

	if recordErr == nil {
		if raw, ok := data["error"].(string); ok && raw != "" {
			recordErr = errors.New(raw)
		}
	}
	return data, recordErr
}

func sentryLevel(level slog.Level) sentry.Level {
	switch {
	case level >= slog.LevelError:
		return sentry.LevelError
	case level >= slog.LevelWarn:
		return sentry.LevelWarning
	case level >= slog.LevelInfo:
		return sentry.LevelInfo
	default:
		return sentry.LevelDebug
	}
}
