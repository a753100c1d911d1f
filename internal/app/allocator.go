package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hotel_inventory/internal/domain"
)

// Allocator is the single serialization point for claiming intervals. Every
// interval mutation, including those driven by the Lifecycle, goes through it.
type Allocator struct {
	run     *runner
	checker *AvailabilityChecker
}

// Allocate grants a stay atomically or rejects it with a reason. Requests
// carrying an idempotency token already seen return the original booking.
func (a *Allocator) Allocate(ctx context.Context, req domain.ReservationRequest) (domain.Booking, error) {
	req.Stay = domain.NewInterval(req.Stay.Start, req.Stay.End)
	if b, ok, err := a.replay(ctx, req); err != nil || ok {
		return b, err
	}

	var out domain.Booking
	err := a.run.run(ctx, "allocate", []string{req.RoomID}, func(ctx context.Context, t *txn) error {
		if b, ok, err := a.replay(ctx, req); err != nil || ok {
			out = b
			return err
		}
		room, err := a.checker.Check(ctx, req.RoomID, req.Stay, req.Guests, "")
		if err != nil {
			return err
		}

		status := domain.BookingConfirmed
		if req.RequireConfirmation {
			status = domain.BookingPending
		}
		total := req.TotalAmount
		if total == 0 {
			total = float64(req.Stay.Nights()) * room.NightlyRate
		}
		b := domain.Booking{
			ID:            a.run.newID(),
			RoomID:        room.ID,
			GuestID:       req.GuestID,
			SecondGuestID: req.SecondGuestID,
			CheckIn:       req.Stay.Start,
			CheckOut:      req.Stay.End,
			Guests:        req.Guests,
			TotalAmount:   total,
			Notes:         req.Notes,
			Status:        status,
			Token:         req.Token,
			CreatedAt:     t.now,
		}
		saved, err := t.saveBooking(ctx, b)
		if err != nil {
			return err
		}
		if saved.Status.Claims() {
			t.claim(room.ID, saved)
		}
		t.record(domain.AuditCreate, domain.EntityBooking, saved.ID, nil, saved)
		out = saved
		return nil
	})
	if errors.Is(err, domain.ErrDuplicateToken) {
		// another request with the same token committed first
		if b, ok, rerr := a.replay(ctx, req); rerr != nil || ok {
			return b, rerr
		}
	}
	if err != nil {
		return domain.Booking{}, err
	}
	return out, nil
}

// replay resolves an idempotency token to the booking it created.
func (a *Allocator) replay(ctx context.Context, req domain.ReservationRequest) (domain.Booking, bool, error) {
	if req.Token == "" {
		return domain.Booking{}, false, nil
	}
	b, err := a.run.repo.BookingByToken(ctx, req.Token)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Booking{}, false, nil
	}
	if err != nil {
		return domain.Booking{}, false, fmt.Errorf("lookup idempotency token: %w", err)
	}
	if !req.SamePayload(b) {
		return domain.Booking{}, false, domain.Reject(domain.ReasonIdempotencyMismatch, "token already used by booking %s", b.ID)
	}
	return b, true, nil
}

// confirm claims a pending booking's stay after re-validating it.
func (a *Allocator) confirm(ctx context.Context, t *txn, b domain.Booking) (domain.Booking, error) {
	if _, err := a.checker.Check(ctx, b.RoomID, b.Interval(), b.Guests, b.ID); err != nil {
		return domain.Booking{}, err
	}
	b.Status = domain.BookingConfirmed
	saved, err := t.saveBooking(ctx, b)
	if err != nil {
		return domain.Booking{}, err
	}
	t.claim(b.RoomID, saved)
	return saved, nil
}

// release ends a booking's hold; status is the terminal status to record.
func (a *Allocator) release(ctx context.Context, t *txn, b domain.Booking, status domain.BookingStatus) (domain.Booking, error) {
	b.Status = status
	saved, err := t.saveBooking(ctx, b)
	if err != nil {
		return domain.Booking{}, err
	}
	t.release(b.RoomID, b.ID)
	return saved, nil
}

// restate updates the status carried by an existing claim, e.g. on check-in.
func (a *Allocator) restate(ctx context.Context, t *txn, b domain.Booking) (domain.Booking, error) {
	saved, err := t.saveBooking(ctx, b)
	if err != nil {
		return domain.Booking{}, err
	}
	t.claim(b.RoomID, saved)
	return saved, nil
}

// extend moves the check-out date. Only the newly requested nights
// [oldCheckOut, newCheckOut) are validated; the held portion never is.
func (a *Allocator) extend(ctx context.Context, t *txn, b domain.Booking, newCheckOut time.Time) (domain.Booking, error) {
	next := domain.Interval{Start: b.CheckIn, End: domain.Day(newCheckOut)}
	if !next.Valid() {
		return domain.Booking{}, domain.Reject(domain.ReasonDateRangeInvalid, "check-out %s is not after check-in %s",
			next.End.Format(domain.DateLayout), b.CheckIn.Format(domain.DateLayout))
	}
	if next.End.After(b.CheckOut) {
		delta := domain.Interval{Start: b.CheckOut, End: next.End}
		if _, err := a.checker.Check(ctx, b.RoomID, delta, b.Guests, b.ID); err != nil {
			return domain.Booking{}, err
		}
	}
	b.CheckOut = next.End
	saved, err := t.saveBooking(ctx, b)
	if err != nil {
		return domain.Booking{}, err
	}
	prev, existed := t.r.store.Replace(b.RoomID, b.ID, next)
	if existed {
		t.undo = append(t.undo, func() { t.r.store.Insert(b.RoomID, prev) })
	}
	return saved, nil
}

// transfer moves the stay to another room, validated for the full interval.
func (a *Allocator) transfer(ctx context.Context, t *txn, b domain.Booking, newRoomID string) (domain.Booking, error) {
	if _, err := a.checker.Check(ctx, newRoomID, b.Interval(), b.Guests, b.ID); err != nil {
		return domain.Booking{}, err
	}
	oldRoomID := b.RoomID
	t.release(oldRoomID, b.ID)
	b.RoomID = newRoomID
	saved, err := t.saveBooking(ctx, b)
	if err != nil {
		return domain.Booking{}, err
	}
	t.claim(newRoomID, saved)
	t.forceRooms[oldRoomID] = true
	t.forceRooms[newRoomID] = true
	return saved, nil
}
