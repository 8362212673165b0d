package logger

import (
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/fluent/fluent-logger-golang/fluent"
)

type FluentConfig struct {
	Host      string
	Port      int
	TagPrefix string
}

// NewFluentClient creates the Fluent Bit client. There is no ping: connection
// errors only surface on the first Post.
func NewFluentClient(cfg FluentConfig) (*fluent.Fluent, error) {
	if cfg.TagPrefix == "" {
		return nil, errors.New("fluent tag prefix is required")
	}
	f, err := fluent.New(fluent.Config{
		FluentHost: cfg.Host,
		FluentPort: cfg.Port,
		TagPrefix:  cfg.TagPrefix,
		Async:      true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create fluent logger: %w", err)
	}
	return f, nil
}

type poster interface {
	Post(tag string, message interface{}) error
}

type FluentAdapter struct {
	client   poster
	fields   Fields
	minLevel slog.Level
}

func NewFluent(client *fluent.Fluent, minLevel slog.Leveler) (Logger, error) {
	if client == nil {
		return nil, errors.New("fluent client cannot be nil")
	}
	return newFluent(client, minLevel), nil
}

func newFluent(client poster, minLevel slog.Leveler) *FluentAdapter {
	level := slog.LevelInfo
	if minLevel != nil {
		level = minLevel.Level()
	}
	return &FluentAdapter{client: client, fields: Fields{}, minLevel: level}
}

func (a *FluentAdapter) merge(fields Fields) Fields {
	merged := make(Fields, len(a.fields)+len(fields))
	for k, v := range a.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return merged
}

func (a *FluentAdapter) post(level slog.Level, msg string, data Fields) {
	if level < a.minLevel {
		return
	}
	tag := levelTag(level)
	data["level"] = tag
	data["message"] = msg
	data["timestamp"] = time.Now().UTC().Format(time.RFC3339Nano)
	_ = a.client.Post(tag, data)
}

func levelTag(l slog.Level) string {
	switch {
	case l >= slog.LevelError:
		return "error"
	case l >= slog.LevelWarn:
		return "warn"
	case l >= slog.LevelInfo:
		return "info"
	default:
		return "debug"
	}
}

func (a *FluentAdapter) Info(msg string, fields Fields)  { a.post(slog.LevelInfo, msg, a.merge(fields)) }
func (a *FluentAdapter) Warn(msg string, fields Fields)  { a.post(slog.LevelWarn, msg, a.merge(fields)) }
func (a *FluentAdapter) Debug(msg string, fields Fields) { a.post(slog.LevelDebug, msg, a.merge(fields)) }

func (a *FluentAdapter) Error(msg string, err error, fields Fields) {
	data := a.merge(fields)
	if err != nil {
		data["error"] = err.Error()
	}
	a.post(slog.LevelError, msg, data)
}

func (a *FluentAdapter) WithFields(fields Fields) Logger {
	return &FluentAdapter{client: a.client, fields: a.merge(fields), minLevel: a.minLevel}
}
