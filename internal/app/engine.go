package app

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"hotel_inventory/internal/domain"
)

type Config struct {
	// LookaheadDays bounds how far ahead a confirmed stay marks a room booked.
	// Zero means any future stay does.
	LookaheadDays        int
	AllowCheckedInCancel bool
	// SoleWriter declares that no other engine or process writes to the
	// repository, so room claims are loaded once and kept. Leave it off for
	// any store another engine can reach.
	SoleWriter bool

	Now   func() time.Time
	NewID func() string
}

// Engine is the reservation allocation engine: every entry point the request
// layer needs, backed by one Interval Store per process.
type Engine struct {
	run     *runner
	checker *AvailabilityChecker
	rooms   *RoomStateTracker
	alloc   *Allocator
	life    *Lifecycle
}

// NewEngine wires the engine. cache may be nil.
func NewEngine(repo domain.Repository, locks domain.RoomLocker, audit AuditEmitter, cache domain.Cache, log zerolog.Logger, cfg Config) *Engine {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	if cfg.NewID == nil {
		cfg.NewID = uuid.NewString
	}
	store := NewIntervalStore()
	r := &runner{
		repo:  repo,
		locks: locks,
		store: store,
		audit: audit,
		cache: cache,
		log:   log,
		now:   cfg.Now,
		newID: cfg.NewID,

		soleWriter: cfg.SoleWriter,
	}
	r.tracker = &RoomStateTracker{run: r, lookaheadDays: cfg.LookaheadDays}
	checker := NewAvailabilityChecker(repo, store)
	alloc := &Allocator{run: r, checker: checker}
	return &Engine{
		run:     r,
		checker: checker,
		rooms:   r.tracker,
		alloc:   alloc,
		life:    &Lifecycle{run: r, alloc: alloc, allowCheckedInCancel: cfg.AllowCheckedInCancel},
	}
}

// CheckAvailability answers whether the room can take the stay right now. The
// answer is advisory; CreateBooking re-checks under the room lock.
func (e *Engine) CheckAvailability(ctx context.Context, roomID string, stay domain.Interval, guests int) (Availability, error) {
	var out Availability
	err := e.run.read(ctx, []string{roomID}, func() error {
		var err error
		out, err = e.checker.Evaluate(ctx, roomID, domain.NewInterval(stay.Start, stay.End), guests)
		return err
	})
	return out, err
}

func (e *Engine) CreateBooking(ctx context.Context, req domain.ReservationRequest) (domain.Booking, error) {
	return e.alloc.Allocate(ctx, req)
}

func (e *Engine) CancelBooking(ctx context.Context, id, reason string) (domain.Booking, error) {
	return e.life.Cancel(ctx, id, reason)
}

func (e *Engine) CheckIn(ctx context.Context, id string) (domain.Booking, error) {
	return e.life.CheckIn(ctx, id)
}

func (e *Engine) CheckOut(ctx context.Context, id string) (domain.Booking, error) {
	return e.life.CheckOut(ctx, id)
}

func (e *Engine) ExtendBooking(ctx context.Context, id string, newCheckOut time.Time) (domain.Booking, error) {
	return e.life.Extend(ctx, id, newCheckOut)
}

func (e *Engine) TransferBooking(ctx context.Context, id, newRoomID string) (domain.Booking, error) {
	return e.life.Transfer(ctx, id, newRoomID)
}

func (e *Engine) ConfirmBooking(ctx context.Context, id string) (domain.Booking, error) {
	return e.life.Confirm(ctx, id)
}

func (e *Engine) RejectBooking(ctx context.Context, id string) error {
	return e.life.Reject(ctx, id)
}

func (e *Engine) MarkNoShow(ctx context.Context, id string) (domain.Booking, error) {
	return e.life.MarkNoShow(ctx, id)
}

func (e *Engine) RecordPayment(ctx context.Context, id string, amount float64) (domain.Booking, error) {
	return e.life.RecordPayment(ctx, id, amount)
}

func (e *Engine) BlockRoom(ctx context.Context, roomID, reason string) (domain.Room, error) {
	return e.rooms.Block(ctx, roomID, reason)
}

func (e *Engine) SetRoomOverride(ctx context.Context, roomID string, status domain.RoomStatus, reason string) (domain.Room, error) {
	return e.rooms.SetOverride(ctx, roomID, status, reason)
}

func (e *Engine) UnblockRoom(ctx context.Context, roomID string) (domain.Room, error) {
	return e.rooms.Unblock(ctx, roomID)
}

func (e *Engine) RefreshRoom(ctx context.Context, roomID string) (domain.Room, error) {
	return e.rooms.Refresh(ctx, roomID)
}

// ProvisionRoom adds a room to the inventory. Its status starts available.
func (e *Engine) ProvisionRoom(ctx context.Context, room domain.Room) (domain.Room, error) {
	room.Number = strings.TrimSpace(room.Number)
	if err := validateRoom(room); err != nil {
		return domain.Room{}, err
	}
	if room.ID == "" {
		room.ID = e.run.newID()
	}
	room.Status, room.Override, room.OverrideReason, room.OverrideAt = domain.RoomAvailable, "", "", nil

	var out domain.Room
	err := e.run.run(ctx, "provision_room", []string{room.ID}, func(ctx context.Context, t *txn) error {
		if _, err := e.run.repo.GetRoom(ctx, room.ID); err == nil {
			return domain.Reject(domain.ReasonRoomExists, "room id %s", room.ID)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("get room %s: %w", room.ID, err)
		}
		if _, err := e.run.repo.GetRoomByNumber(ctx, room.Number); err == nil {
			return domain.Reject(domain.ReasonRoomExists, "room number %s", room.Number)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("get room %s: %w", room.Number, err)
		}
		room.CreatedAt, room.UpdatedAt = t.now, t.now
		t.editRoom(room)
		out = room
		return nil
	})
	if errors.Is(err, domain.ErrDuplicateRoom) {
		return domain.Room{}, domain.Reject(domain.ReasonRoomExists, "room number %s", room.Number)
	}
	if err != nil {
		return domain.Room{}, err
	}
	return out, nil
}

// RoomIntervals exposes the room's claimed intervals in start order.
func (e *Engine) RoomIntervals(ctx context.Context, roomID string) (iter.Seq[Claim], error) {
	if _, err := e.rooms.room(ctx, roomID); err != nil {
		return nil, err
	}
	var claims []Claim
	err := e.run.read(ctx, []string{roomID}, func() error {
		claims = slices.Collect(e.run.store.IntervalsFor(roomID))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return slices.Values(claims), nil
}

func (e *Engine) GetBooking(ctx context.Context, id string) (domain.Booking, error) {
	return e.life.booking(ctx, id)
}

func (e *Engine) ListBookings(ctx context.Context, q domain.BookingsQuery) ([]domain.Booking, error) {
	return e.run.repo.ListBookings(ctx, q)
}

func validateRoom(r domain.Room) error {
	switch {
	case r.Number == "":
		return domain.Reject(domain.ReasonRoomInvalid, "room number is required")
	case r.Capacity < 1 || r.Capacity > 4:
		return domain.Reject(domain.ReasonRoomInvalid, "capacity must be between 1 and 4, got %d", r.Capacity)
	case r.Floor < 1:
		return domain.Reject(domain.ReasonRoomInvalid, "floor must be positive, got %d", r.Floor)
	case r.NightlyRate < 0:
		return domain.Reject(domain.ReasonRoomInvalid, "nightly rate must not be negative")
	}
	return nil
}
