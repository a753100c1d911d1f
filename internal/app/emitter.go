package app

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"hotel_inventory/internal/adapters/observability"
	"hotel_inventory/internal/domain"
)

// AuditEmitter publishes audit events of committed operations.
type AuditEmitter interface {
	Emit(events ...domain.AuditEvent)
}

// Emitter delivers audit events to a sink on a single background worker, in
// the order they were emitted. Sink failures are retried once and then logged;
// they never reach the operation that produced the event.
type Emitter struct {
	sink    domain.AuditSink
	name    string
	log     zerolog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	ch     chan domain.AuditEvent
	done   chan struct{}
}

func NewEmitter(sink domain.AuditSink, name string, buffer int, log zerolog.Logger) *Emitter {
	if buffer <= 0 {
		buffer = 1024
	}
	e := &Emitter{
		sink:    sink,
		name:    name,
		log:     log,
		timeout: 5 * time.Second,
		ch:      make(chan domain.AuditEvent, buffer),
		done:    make(chan struct{}),
	}
	go e.loop()
	return e
}

// Emit enqueues events without waiting for delivery. Events are dropped,
// with an error log, once the queue is full or the emitter is closed.
func (e *Emitter) Emit(events ...domain.AuditEvent) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, ev := range events {
		if e.closed {
			e.drop(ev, "emitter closed")
			continue
		}
		select {
		case e.ch <- ev:
		default:
			e.drop(ev, "queue full")
		}
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
func (e *Emitter) Close(ctx context.Context) error {
	e.mu.Lock()
	if !e.closed {
		e.closed = true
		close(e.ch)
	}
	e.mu.Unlock()
	select {
	case <-e.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Emitter) loop() {
	defer close(e.done)
	for ev := range e.ch {
		e.deliver(ev)
	}
}

func (e *Emitter) deliver(ev domain.AuditEvent) {
	var err error
	for attempt := 0; attempt < 2; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), e.timeout)
		err = e.sink.Record(ctx, ev)
		cancel()
		if err == nil {
			observability.ObserveAudit(e.name, "ok")
			return
		}
	}
	observability.ObserveAudit(e.name, "failed")
	e.log.Error().Err(err).
		Str("sink", e.name).
		Str("event", ev.ID).
		Str("action", string(ev.Action)).
		Str("entity", ev.EntityType).
		Str("entity_id", ev.EntityID).
		Msg("audit event lost")
}

func (e *Emitter) drop(ev domain.AuditEvent, why string) {
	observability.ObserveAudit(e.name, "dropped")
	e.log.Error().Str("sink", e.name).Str("event", ev.ID).Str("entity_id", ev.EntityID).Msg("audit event dropped: " + why)
}
