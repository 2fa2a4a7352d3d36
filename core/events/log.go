package events

import (
	"log/slog"

	"crowdsale/core/types"
)

// payloadCarrier is implemented by events that expose a structured payload in
// addition to their type.
type payloadCarrier interface {
	Event() *types.Event
}

// LogEmitter writes every emitted event to a structured logger. It is the
// default subscriber wired by the daemon.
type LogEmitter struct {
	Logger *slog.Logger
}

// Emit implements the Emitter interface.
func (l LogEmitter) Emit(evt Event) {
	if l.Logger == nil || evt == nil {
		return
	}
	attrs := []any{slog.String("event", evt.EventType())}
	if carrier, ok := evt.(payloadCarrier); ok {
		if payload := carrier.Event(); payload != nil {
			for key, value := range payload.Attributes {
				attrs = append(attrs, slog.String(key, value))
			}
		}
	}
	l.Logger.Info("event emitted", attrs...)
}
