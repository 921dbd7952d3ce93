package events

import (
	"log/slog"

	"github.com/Reecepbcups/juno-vaults/core/types"
)

// LogEmitter writes every emitted event to a structured logger. Events whose
// concrete type exposes a payload have their attributes logged alongside the
// event type.
type LogEmitter struct {
	log *slog.Logger
}

// NewLogEmitter returns a LogEmitter backed by the given logger. A nil
// logger falls back to the default slog logger.
func NewLogEmitter(log *slog.Logger) *LogEmitter {
	if log == nil {
		log = slog.Default()
	}
	return &LogEmitter{log: log}
}

type payloadCarrier interface {
	Event() *types.Event
}

// Emit implements the Emitter interface.
func (e *LogEmitter) Emit(evt Event) {
	if e == nil || evt == nil {
		return
	}
	args := []any{slog.String("type", evt.EventType())}
	if carrier, ok := evt.(payloadCarrier); ok {
		if payload := carrier.Event(); payload != nil {
			for key, value := range payload.Attributes {
				args = append(args, slog.String(key, value))
			}
		}
	}
	e.log.Info("event emitted", args...)
}
