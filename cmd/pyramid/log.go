package main

import (
	"context"
	"log/slog"
	"os"

	nested "github.com/antonfisher/nested-logrus-formatter"
	log "github.com/sirupsen/logrus"
)

func initLog(level string) {
	log.SetFormatter(&nested.Formatter{
		ShowFullLevel:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
		FieldsOrder:     []string{"level", "dir"},
	})
	log.SetOutput(os.Stderr)

	parsed, err := log.ParseLevel(level)
	if err != nil {
		log.Warnf("invalid log level %q, using info", level)
		parsed = log.InfoLevel
	}
	log.SetLevel(parsed)
}

// logrusHandler forwards library slog records to the logrus standard
// logger.
type logrusHandler struct {
	fields log.Fields
	group  string
}

func newLogger() *slog.Logger {
	return slog.New(&logrusHandler{fields: log.Fields{}})
}

func logrusLevel(level slog.Level) log.Level {
	switch {
	case level >= slog.LevelError:
		return log.ErrorLevel
	case level >= slog.LevelWarn:
		return log.WarnLevel
	case level >= slog.LevelInfo:
		return log.InfoLevel
	}
	return log.DebugLevel
}

func (h *logrusHandler) Enabled(_ context.Context, level slog.Level) bool {
	return log.IsLevelEnabled(logrusLevel(level))
}

func (h *logrusHandler) Handle(_ context.Context, record slog.Record) error {
	fields := make(log.Fields, len(h.fields)+record.NumAttrs())
	for k, v := range h.fields {
		fields[k] = v
	}
	record.Attrs(func(attr slog.Attr) bool {
		h.addAttr(fields, attr)
		return true
	})
	log.WithFields(fields).Log(logrusLevel(record.Level), record.Message)
	return nil
}

func (h *logrusHandler) addAttr(fields log.Fields, attr slog.Attr) {
	key := attr.Key
	if h.group != "" {
		key = h.group + "." + key
	}
	fields[key] = attr.Value.Resolve().Any()
}

func (h *logrusHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	fields := make(log.Fields, len(h.fields)+len(attrs))
	for k, v := range h.fields {
		fields[k] = v
	}
	for _, attr := range attrs {
		h.addAttr(fields, attr)
	}
	return &logrusHandler{fields: fields, group: h.group}
}

func (h *logrusHandler) WithGroup(name string) slog.Handler {
	if name == "" {
		return h
	}
	group := name
	if h.group != "" {
		group = h.group + "." + name
	}
	return &logrusHandler{fields: h.fields, group: group}
}
