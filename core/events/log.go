package events

import (
	"log/slog"

	"credora/core/types"
)

// payloadCarrier is implemented by the per-module event wrappers that expose
// their canonical attribute payload.
type payloadCarrier interface {
	Event() *types.Event
}

// LogEmitter writes every emitted event to a structured logger.
type LogEmitter struct {
	logger *slog.Logger
}

// NewLogEmitter returns an emitter backed by the given logger. A nil logger
// falls back to the process default.
func NewLogEmitter(logger *slog.Logger) *LogEmitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogEmitter{logger: logger}
}

// Emit implements the Emitter interface.
func (l *LogEmitter) Emit(evt Event) {
	if l == nil || evt == nil {
		return
	}
	attrs := []any{slog.String("event", evt.EventType())}
	if carrier, ok := evt.(payloadCarrier); ok {
		if payload := carrier.Event(); payload != nil {
			for k, v := range payload.Attributes {
				attrs = append(attrs, slog.String(k, v))
			}
		}
	}
	l.logger.Info("protocol event", attrs...)
}
