package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/rs/zerolog"

	"hotel_inventory/internal/adapters/observability"
	"hotel_inventory/internal/domain"
)

// runner owns the check-then-act protocol shared by every mutating operation.
type runner struct {
	repo    domain.Repository
	locks   domain.RoomLocker
	store   *IntervalStore
	tracker *RoomStateTracker
	audit   AuditEmitter
	cache   domain.Cache
	log     zerolog.Logger
	now     func() time.Time
	newID   func() string

	// soleWriter trusts claims loaded once per room; set only when no other
	// engine writes to repo.
	soleWriter bool
}

// txn is one attempt of an operation: staged repository writes, Interval Store
// edits with their undo steps, and the audit events to publish after commit.
type txn struct {
	domain.Tx
	r          *runner
	actor      string
	now        time.Time
	rooms      []string
	forceRooms map[string]bool
	roomEdits  map[string]domain.Room
	undo       []func()
	events     []domain.AuditEvent
}

var errRoomMoved = errors.New("booking moved to another room")

// run locks roomIDs, executes fn inside a transaction and, on commit, publishes
// the collected audit events. A transactional conflict is retried once with a
// freshly hydrated Interval Store; a second conflict surfaces INTERVAL_CONFLICT.
func (r *runner) run(ctx context.Context, op string, roomIDs []string, fn func(ctx context.Context, t *txn) error) (err error) {
	defer func() { observability.ObserveOperation(op, resultLabel(err)) }()

	unlock, err := r.lock(ctx, op, roomIDs)
	if err != nil {
		return err
	}
	defer unlock()

	for attempt := 0; attempt < 2; attempt++ {
		err = r.attempt(ctx, roomIDs, !r.soleWriter || attempt > 0, fn)
		if !errors.Is(err, domain.ErrTxConflict) {
			return err
		}
		r.log.Warn().Str("op", op).Int("attempt", attempt+1).Msg("transaction conflict")
	}
	return domain.Reject(domain.ReasonIntervalConflict, "concurrent update on rooms %v", roomIDs)
}

// read runs fn under the room locks against a current Interval Store.
func (r *runner) read(ctx context.Context, roomIDs []string, fn func() error) error {
	unlock, err := r.lock(ctx, "read", roomIDs)
	if err != nil {
		return err
	}
	defer unlock()
	if err := r.hydrate(ctx, roomIDs, !r.soleWriter); err != nil {
		return err
	}
	return fn()
}

func (r *runner) lock(ctx context.Context, op string, roomIDs []string) (func(), error) {
	unlock, err := r.locks.Lock(ctx, roomIDs...)
	if errors.Is(err, domain.ErrLockTimeout) {
		r.log.Warn().Str("op", op).Strs("rooms", roomIDs).Msg("room lock wait exceeded")
	}
	return unlock, err
}

// attempt holds the rooms' rows for the whole transaction and reloads their
// claims under that hold when refresh is set.
func (r *runner) attempt(ctx context.Context, roomIDs []string, refresh bool, fn func(ctx context.Context, t *txn) error) error {
	tx, err := r.repo.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	t := &txn{Tx: tx, r: r, actor: ActorFrom(ctx), now: r.now().UTC(), rooms: roomIDs,
		forceRooms: map[string]bool{}, roomEdits: map[string]domain.Room{}}

	if err = tx.LockRooms(ctx, roomIDs...); err != nil {
		err = fmt.Errorf("lock room rows: %w", err)
	} else {
		err = r.hydrate(ctx, roomIDs, refresh)
	}
	if err == nil {
		err = fn(ctx, t)
	}
	if err == nil {
		err = t.refreshRooms(ctx)
	}
	if err != nil {
		t.revert()
		if rbErr := tx.Rollback(); rbErr != nil {
			r.log.Error().Err(rbErr).Msg("rollback failed")
		}
		return err
	}
	if err = tx.Commit(); err != nil {
		t.revert()
		// releases whatever a failed commit left held; the result is moot
		_ = tx.Rollback()
		return fmt.Errorf("commit: %w", err)
	}

	r.invalidate(ctx, roomIDs)
	if len(t.events) > 0 {
		r.audit.Emit(t.events...)
	}
	return nil
}

// hydrate loads the rooms' claims from persistence. When force is false only
// rooms never seen by this process are loaded.
func (r *runner) hydrate(ctx context.Context, roomIDs []string, force bool) error {
	for _, id := range roomIDs {
		if !force && r.store.Loaded(id) {
			continue
		}
		active, err := r.repo.ActiveBookings(ctx, id)
		if err != nil {
			return fmt.Errorf("load active bookings for room %s: %w", id, err)
		}
		if force {
			r.store.Reset(id, claimsOf(active))
		} else {
			r.store.ResetIfUnloaded(id, claimsOf(active))
		}
	}
	return nil
}

func (r *runner) invalidate(ctx context.Context, roomIDs []string) {
	if r.cache == nil {
		return
	}
	for _, id := range roomIDs {
		if err := r.cache.Del(ctx, roomCacheKey(id)); err != nil {
			r.log.Warn().Err(err).Str("room", id).Msg("room cache invalidation failed")
		}
	}
}

func (t *txn) claim(roomID string, b domain.Booking) {
	prev, existed := t.r.store.Insert(roomID, claimOf(b))
	t.undo = append(t.undo, func() {
		if existed {
			t.r.store.Insert(roomID, prev)
			return
		}
		t.r.store.Remove(roomID, b.ID)
	})
}

func (t *txn) release(roomID, bookingID string) {
	prev, existed := t.r.store.Remove(roomID, bookingID)
	if !existed {
		return
	}
	t.undo = append(t.undo, func() { t.r.store.Insert(roomID, prev) })
}

func (t *txn) revert() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

// saveBooking stages b and returns it as it will read after commit.
func (t *txn) saveBooking(ctx context.Context, b domain.Booking) (domain.Booking, error) {
	b.UpdatedAt = t.now
	if err := t.SaveBooking(ctx, b); err != nil {
		return domain.Booking{}, fmt.Errorf("save booking %s: %w", b.ID, err)
	}
	b.Version++
	return b, nil
}

func (t *txn) record(action domain.AuditAction, entity, id string, before, after any) {
	t.events = append(t.events, domain.AuditEvent{
		ID:         t.r.newID(),
		Actor:      t.actor,
		Action:     action,
		EntityType: entity,
		EntityID:   id,
		Before:     domain.Snapshot(before),
		After:      domain.Snapshot(after),
		At:         t.now,
	})
}

// editRoom stages operator-level room changes; refreshRooms persists them
// together with the re-derived status.
func (t *txn) editRoom(r domain.Room) { t.roomEdits[r.ID] = r }

// refreshRooms re-derives the status of every locked room and stages the rooms
// that changed, plus rooms the operation asked to report regardless.
func (t *txn) refreshRooms(ctx context.Context) error {
	for _, id := range t.rooms {
		edit, edited := t.roomEdits[id]
		room, err := t.r.repo.GetRoom(ctx, id)
		switch {
		case errors.Is(err, domain.ErrNotFound) && edited:
			edit.Status = t.r.tracker.Derive(edit, nil, t.now)
			if err := t.SaveRoom(ctx, edit); err != nil {
				return fmt.Errorf("save room %s: %w", id, err)
			}
			t.record(domain.AuditCreate, domain.EntityRoom, id, nil, edit)
			continue
		case errors.Is(err, domain.ErrNotFound):
			continue
		case err != nil:
			return fmt.Errorf("get room %s: %w", id, err)
		}
		next := room
		if edited {
			next = edit
		}
		next.Status = t.r.tracker.Derive(next, slices.Collect(t.r.store.IntervalsFor(id)), t.now)
		if !edited && next.Status == room.Status && !t.forceRooms[id] {
			continue
		}
		next.UpdatedAt = t.now
		if err := t.SaveRoom(ctx, next); err != nil {
			return fmt.Errorf("save room %s: %w", id, err)
		}
		t.record(domain.AuditUpdate, domain.EntityRoom, id, room, next)
	}
	return nil
}

func resultLabel(err error) string {
	if err == nil {
		return "ok"
	}
	if rej, ok := domain.AsRejection(err); ok {
		return string(rej.Reason)
	}
	if errors.Is(err, domain.ErrLockTimeout) {
		return "LOCK_TIMEOUT"
	}
	return "error"
}

func roomCacheKey(id string) string { return "room:" + id }

type actorKey struct{}

// WithActor attaches the identity recorded on audit events.
func WithActor(ctx context.Context, actor string) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

func ActorFrom(ctx context.Context) string {
	if a, ok := ctx.Value(actorKey{}).(string); ok && a != "" {
		return a
	}
	return "system"
}
