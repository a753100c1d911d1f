// Package memory is a transactional in-memory repository. Writes are staged
// per transaction and applied atomically on commit after version checks.
package memory

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"hotel_inventory/internal/domain"
)

var ErrTransactionDone = errors.New("transaction already finished")

type DB struct {
	mu       sync.RWMutex
	rooms    map[string]domain.Room
	bookings map[string]domain.Booking
	tokens   map[string]string // idempotency token -> booking id

	rowMu    sync.Mutex
	rows     map[string]*semaphore.Weighted
	lockWait time.Duration
}

func New() *DB {
	return &DB{
		rooms:    map[string]domain.Room{},
		bookings: map[string]domain.Booking{},
		tokens:   map[string]string{},
		rows:     map[string]*semaphore.Weighted{},
		lockWait: 5 * time.Second,
	}
}

func (db *DB) row(id string) *semaphore.Weighted {
	db.rowMu.Lock()
	defer db.rowMu.Unlock()
	s, ok := db.rows[id]
	if !ok {
		s = semaphore.NewWeighted(1)
		db.rows[id] = s
	}
	return s
}

func (db *DB) GetRoom(_ context.Context, id string) (domain.Room, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	r, ok := db.rooms[id]
	if !ok {
		return domain.Room{}, fmt.Errorf("room %s: %w", id, domain.ErrNotFound)
	}
	return cloneRoom(r), nil
}

func (db *DB) GetRoomByNumber(_ context.Context, number string) (domain.Room, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	for _, r := range db.rooms {
		if r.Number == number {
			return cloneRoom(r), nil
		}
	}
	return domain.Room{}, fmt.Errorf("room number %s: %w", number, domain.ErrNotFound)
}

func (db *DB) ListRooms(_ context.Context, q domain.RoomsQuery) ([]domain.Room, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]domain.Room, 0, len(db.rooms))
	for _, r := range db.rooms {
		if q.Match(r) {
			out = append(out, cloneRoom(r))
		}
	}
	slices.SortFunc(out, func(a, b domain.Room) int { return cmp.Compare(a.Number, b.Number) })
	return out, nil
}

func (db *DB) GetBooking(_ context.Context, id string) (domain.Booking, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	b, ok := db.bookings[id]
	if !ok {
		return domain.Booking{}, fmt.Errorf("booking %s: %w", id, domain.ErrNotFound)
	}
	return cloneBooking(b), nil
}

func (db *DB) BookingByToken(_ context.Context, token string) (domain.Booking, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	id, ok := db.tokens[token]
	if !ok {
		return domain.Booking{}, fmt.Errorf("token: %w", domain.ErrNotFound)
	}
	return cloneBooking(db.bookings[id]), nil
}

func (db *DB) ActiveBookings(_ context.Context, roomID string) ([]domain.Booking, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	var out []domain.Booking
	for _, b := range db.bookings {
		if b.RoomID == roomID && b.Status.Claims() {
			out = append(out, cloneBooking(b))
		}
	}
	slices.SortFunc(out, func(a, b domain.Booking) int { return a.CheckIn.Compare(b.CheckIn) })
	return out, nil
}

func (db *DB) ListBookings(_ context.Context, q domain.BookingsQuery) ([]domain.Booking, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	out := make([]domain.Booking, 0)
	for _, b := range db.bookings {
		if q.Match(b) {
			out = append(out, cloneBooking(b))
		}
	}
	slices.SortFunc(out, func(a, b domain.Booking) int {
		if c := a.CheckIn.Compare(b.CheckIn); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out, nil
}

func (db *DB) Begin(context.Context) (domain.Tx, error) {
	return &tx{
		db:       db,
		rooms:    map[string]domain.Room{},
		bookings: map[string]domain.Booking{},
		deletes:  map[string]int64{},
	}, nil
}

type tx struct {
	db       *DB
	rooms    map[string]domain.Room
	bookings map[string]domain.Booking
	order    []string
	deletes  map[string]int64 // booking id -> expected version
	held     []string
	done     bool
}

// LockRooms takes the rooms' row locks in sorted order and keeps them until
// Commit or Rollback.
func (t *tx) LockRooms(ctx context.Context, roomIDs ...string) error {
	if t.done {
		return ErrTransactionDone
	}
	ids := slices.Clone(roomIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	waitCtx, cancel := context.WithTimeout(ctx, t.db.lockWait)
	defer cancel()
	for _, id := range ids {
		if slices.Contains(t.held, id) {
			continue
		}
		if err := t.db.row(id).Acquire(waitCtx, 1); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("row lock room %s: %w", id, domain.ErrTxConflict)
		}
		t.held = append(t.held, id)
	}
	return nil
}

func (t *tx) finish() {
	t.done = true
	for _, id := range t.held {
		t.db.row(id).Release(1)
	}
	t.held = nil
}

func (t *tx) SaveRoom(_ context.Context, r domain.Room) error {
	if t.done {
		return ErrTransactionDone
	}
	t.rooms[r.ID] = cloneRoom(r)
	return nil
}

// SaveBooking stages b. b.Version must be the version last read; a new
// booking carries zero.
func (t *tx) SaveBooking(_ context.Context, b domain.Booking) error {
	if t.done {
		return ErrTransactionDone
	}
	if _, ok := t.bookings[b.ID]; !ok {
		t.order = append(t.order, b.ID)
	}
	t.bookings[b.ID] = cloneBooking(b)
	return nil
}

func (t *tx) DeleteBooking(_ context.Context, id string) error {
	if t.done {
		return ErrTransactionDone
	}
	t.db.mu.RLock()
	b, ok := t.db.bookings[id]
	t.db.mu.RUnlock()
	if !ok {
		return fmt.Errorf("booking %s: %w", id, domain.ErrNotFound)
	}
	t.deletes[id] = b.Version
	return nil
}

// Commit validates every staged write against the current state and applies
// them all or none.
func (t *tx) Commit() error {
	if t.done {
		return ErrTransactionDone
	}
	defer t.finish()
	db := t.db
	db.mu.Lock()
	defer db.mu.Unlock()

	for _, id := range t.order {
		b := t.bookings[id]
		cur, exists := db.bookings[id]
		if (exists && cur.Version != b.Version) || (!exists && b.Version != 0) {
			return fmt.Errorf("booking %s version %d: %w", id, b.Version, domain.ErrTxConflict)
		}
		if b.Token != "" {
			if owner, taken := db.tokens[b.Token]; taken && owner != id {
				return fmt.Errorf("booking %s: %w", id, domain.ErrDuplicateToken)
			}
		}
	}
	for id, v := range t.deletes {
		if cur, ok := db.bookings[id]; !ok || cur.Version != v {
			return fmt.Errorf("delete booking %s: %w", id, domain.ErrTxConflict)
		}
	}
	for id, r := range t.rooms {
		for otherID, other := range db.rooms {
			if otherID != id && other.Number == r.Number {
				return fmt.Errorf("room %s: %w", r.Number, domain.ErrDuplicateRoom)
			}
		}
	}

	for id, r := range t.rooms {
		db.rooms[id] = r
	}
	for _, id := range t.order {
		b := t.bookings[id]
		b.Version++
		db.bookings[id] = b
		if b.Token != "" {
			db.tokens[b.Token] = id
		}
	}
	for id := range t.deletes {
		if tok := db.bookings[id].Token; tok != "" {
			delete(db.tokens, tok)
		}
		delete(db.bookings, id)
	}
	return nil
}

func (t *tx) Rollback() error {
	if t.done {
		return ErrTransactionDone
	}
	t.finish()
	return nil
}

func cloneRoom(r domain.Room) domain.Room {
	r.Amenities = slices.Clone(r.Amenities)
	if r.OverrideAt != nil {
		at := *r.OverrideAt
		r.OverrideAt = &at
	}
	return r
}

func cloneBooking(b domain.Booking) domain.Booking {
	if b.ActualCheckIn != nil {
		at := *b.ActualCheckIn
		b.ActualCheckIn = &at
	}
	if b.ActualCheckOut != nil {
		at := *b.ActualCheckOut
		b.ActualCheckOut = &at
	}
	return b
}
