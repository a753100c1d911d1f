// Package auditsink delivers audit events to where they are stored. The engine
// only emits; persistence and querying belong to the receiving system.
package auditsink

import (
	"context"

	"github.com/rs/zerolog"

	"hotel_inventory/internal/domain"
)

// LogSink writes each event as a structured log line.
type LogSink struct {
	log zerolog.Logger
}

func NewLogSink(l zerolog.Logger) *LogSink {
	return &LogSink{log: l.With().Str("component", "audit").Logger()}
}

func (s *LogSink) Record(_ context.Context, ev domain.AuditEvent) error {
	e := s.log.Info().
		Str("event_id", ev.ID).
		Str("actor", ev.Actor).
		Str("action", string(ev.Action)).
		Str("entity_type", ev.EntityType).
		Str("entity_id", ev.EntityID).
		Time("at", ev.At)
	if ev.Before != nil {
		e = e.RawJSON("before", ev.Before)
	}
	if ev.After != nil {
		e = e.RawJSON("after", ev.After)
	}
	e.Msg("audit")
	return nil
}
