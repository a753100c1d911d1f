package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"hotel_inventory/internal/domain"
)

// Lifecycle drives booking status transitions. Transitions that change a
// booking's hold go through the Allocator under the room lock.
type Lifecycle struct {
	run   *runner
	alloc *Allocator
	// allowCheckedInCancel permits cancelling a stay that is already in progress.
	allowCheckedInCancel bool
}

// withBooking reads the booking, locks its room (plus extra rooms) and hands
// fn the booking as re-read under the lock.
func (l *Lifecycle) withBooking(ctx context.Context, op, id string, extra []string, fn func(ctx context.Context, t *txn, b domain.Booking) error) error {
	for range 3 {
		b, err := l.booking(ctx, id)
		if err != nil {
			return err
		}
		rooms := append([]string{b.RoomID}, extra...)
		err = l.run.run(ctx, op, rooms, func(ctx context.Context, t *txn) error {
			cur, err := l.booking(ctx, id)
			if err != nil {
				return err
			}
			if cur.RoomID != b.RoomID {
				return errRoomMoved
			}
			return fn(ctx, t, cur)
		})
		if !errors.Is(err, errRoomMoved) {
			return err
		}
	}
	return fmt.Errorf("booking %s: %w", id, errRoomMoved)
}

func (l *Lifecycle) booking(ctx context.Context, id string) (domain.Booking, error) {
	b, err := l.run.repo.GetBooking(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Booking{}, domain.Reject(domain.ReasonBookingNotFound, "booking %s", id)
	}
	if err != nil {
		return domain.Booking{}, fmt.Errorf("get booking %s: %w", id, err)
	}
	return b, nil
}

func (l *Lifecycle) Confirm(ctx context.Context, id string) (domain.Booking, error) {
	var out domain.Booking
	err := l.withBooking(ctx, "confirm", id, nil, func(ctx context.Context, t *txn, b domain.Booking) error {
		if err := expect(b, domain.BookingPending); err != nil {
			return err
		}
		saved, err := l.alloc.confirm(ctx, t, b)
		if err != nil {
			return err
		}
		t.record(domain.AuditUpdate, domain.EntityBooking, b.ID, b, saved)
		out = saved
		return nil
	})
	return out, err
}

// Reject discards a pending booking; it never held an interval.
func (l *Lifecycle) Reject(ctx context.Context, id string) error {
	return l.withBooking(ctx, "reject", id, nil, func(ctx context.Context, t *txn, b domain.Booking) error {
		if err := expect(b, domain.BookingPending); err != nil {
			return err
		}
		if err := t.DeleteBooking(ctx, b.ID); err != nil {
			return fmt.Errorf("delete booking %s: %w", b.ID, err)
		}
		t.record(domain.AuditDelete, domain.EntityBooking, b.ID, b, nil)
		return nil
	})
}

// CheckIn moves a confirmed booking to checked_in. It is allowed from the
// check-in date up to the night before check-out.
func (l *Lifecycle) CheckIn(ctx context.Context, id string) (domain.Booking, error) {
	var out domain.Booking
	err := l.withBooking(ctx, "check_in", id, nil, func(ctx context.Context, t *txn, b domain.Booking) error {
		if err := expect(b, domain.BookingConfirmed); err != nil {
			return err
		}
		if !b.Interval().Contains(t.now) {
			return domain.Reject(domain.ReasonInvalidTransition, "check-in allowed during %s only", b.Interval())
		}
		room, err := t.r.repo.GetRoom(ctx, b.RoomID)
		if err != nil {
			return fmt.Errorf("get room %s: %w", b.RoomID, err)
		}
		if room.Override.RejectsReservations() {
			return domain.Reject(domain.ReasonRoomBlocked, "room %s is %s", room.Number, room.Override)
		}
		next := b
		next.Status = domain.BookingCheckedIn
		at := t.now
		next.ActualCheckIn = &at
		saved, err := l.alloc.restate(ctx, t, next)
		if err != nil {
			return err
		}
		t.record(domain.AuditCheckIn, domain.EntityBooking, b.ID, b, saved)
		out = saved
		return nil
	})
	return out, err
}

func (l *Lifecycle) CheckOut(ctx context.Context, id string) (domain.Booking, error) {
	var out domain.Booking
	err := l.withBooking(ctx, "check_out", id, nil, func(ctx context.Context, t *txn, b domain.Booking) error {
		if b.Status != domain.BookingCheckedIn {
			return domain.Reject(domain.ReasonNotCheckedIn, "booking %s is %s", b.ID, b.Status)
		}
		next := b
		at := t.now
		next.ActualCheckOut = &at
		saved, err := l.alloc.release(ctx, t, next, domain.BookingCheckedOut)
		if err != nil {
			return err
		}
		t.record(domain.AuditCheckOut, domain.EntityBooking, b.ID, b, saved)
		out = saved
		return nil
	})
	return out, err
}

// Cancel releases the booking's hold. The reason is appended to its notes.
// Pending bookings hold nothing; they are rejected instead.
func (l *Lifecycle) Cancel(ctx context.Context, id, reason string) (domain.Booking, error) {
	var out domain.Booking
	err := l.withBooking(ctx, "cancel", id, nil, func(ctx context.Context, t *txn, b domain.Booking) error {
		if b.Status.Terminal() {
			return domain.Reject(domain.ReasonAlreadyTerminal, "booking %s is %s", b.ID, b.Status)
		}
		if b.Status == domain.BookingPending {
			return domain.Reject(domain.ReasonInvalidTransition, "booking %s is pending; reject it instead", b.ID)
		}
		if b.Status == domain.BookingCheckedIn {
			if !l.allowCheckedInCancel {
				return domain.Reject(domain.ReasonInvalidTransition, "booking %s is checked in", b.ID)
			}
			l.run.log.Warn().Str("booking", b.ID).Str("room", b.RoomID).Msg("cancelling checked-in booking")
		}
		next := b
		next.Notes = appendNote(b.Notes, "Cancellation reason: "+orDefault(reason, "No reason provided"))
		saved, err := l.alloc.release(ctx, t, next, domain.BookingCancelled)
		if err != nil {
			return err
		}
		t.record(domain.AuditCancelBooking, domain.EntityBooking, b.ID, b, saved)
		out = saved
		return nil
	})
	return out, err
}

// Extend changes the check-out date of a confirmed or checked-in booking.
// The same date is a no-op.
func (l *Lifecycle) Extend(ctx context.Context, id string, newCheckOut time.Time) (domain.Booking, error) {
	var out domain.Booking
	err := l.withBooking(ctx, "extend", id, nil, func(ctx context.Context, t *txn, b domain.Booking) error {
		if err := holding(b); err != nil {
			return err
		}
		if domain.Day(newCheckOut).Equal(b.CheckOut) {
			out = b
			return nil
		}
		saved, err := l.alloc.extend(ctx, t, b, newCheckOut)
		if err != nil {
			return err
		}
		t.record(domain.AuditExtendBooking, domain.EntityBooking, b.ID, b, saved)
		out = saved
		return nil
	})
	return out, err
}

// Transfer moves a booking to another room for the same dates. Both rooms are
// locked for the duration.
func (l *Lifecycle) Transfer(ctx context.Context, id, newRoomID string) (domain.Booking, error) {
	var out domain.Booking
	err := l.withBooking(ctx, "transfer", id, []string{newRoomID}, func(ctx context.Context, t *txn, b domain.Booking) error {
		if err := holding(b); err != nil {
			return err
		}
		if b.RoomID == newRoomID {
			return domain.Reject(domain.ReasonInvalidTransition, "booking %s is already in room %s", b.ID, newRoomID)
		}
		saved, err := l.alloc.transfer(ctx, t, b, newRoomID)
		if err != nil {
			return err
		}
		t.record(domain.AuditUpdate, domain.EntityBooking, b.ID, b, saved)
		out = saved
		return nil
	})
	return out, err
}

// MarkNoShow releases a confirmed booking whose guest never arrived. It is
// allowed from the day after check-in.
func (l *Lifecycle) MarkNoShow(ctx context.Context, id string) (domain.Booking, error) {
	var out domain.Booking
	err := l.withBooking(ctx, "no_show", id, nil, func(ctx context.Context, t *txn, b domain.Booking) error {
		if err := expect(b, domain.BookingConfirmed); err != nil {
			return err
		}
		if !domain.Day(t.now).After(b.CheckIn) {
			return domain.Reject(domain.ReasonInvalidTransition, "check-in date %s has not passed", b.CheckIn.Format(domain.DateLayout))
		}
		saved, err := l.alloc.release(ctx, t, b, domain.BookingNoShow)
		if err != nil {
			return err
		}
		t.record(domain.AuditUpdate, domain.EntityBooking, b.ID, b, saved)
		out = saved
		return nil
	})
	return out, err
}

// RecordPayment adds amount to the booking's paid total.
func (l *Lifecycle) RecordPayment(ctx context.Context, id string, amount float64) (domain.Booking, error) {
	if amount <= 0 {
		return domain.Booking{}, domain.Reject(domain.ReasonPaymentInvalid, "amount must be positive, got %.2f", amount)
	}
	var out domain.Booking
	err := l.withBooking(ctx, "payment", id, nil, func(ctx context.Context, t *txn, b domain.Booking) error {
		if b.Status == domain.BookingCancelled {
			return domain.Reject(domain.ReasonAlreadyTerminal, "booking %s is cancelled", b.ID)
		}
		next := b
		next.PaidAmount += amount
		saved, err := t.saveBooking(ctx, next)
		if err != nil {
			return err
		}
		t.record(domain.AuditUpdate, domain.EntityBooking, b.ID, b, saved)
		out = saved
		return nil
	})
	return out, err
}

// expect rejects b unless it is in status want.
func expect(b domain.Booking, want domain.BookingStatus) error {
	switch {
	case b.Status == want:
		return nil
	case b.Status.Terminal():
		return domain.Reject(domain.ReasonAlreadyTerminal, "booking %s is %s", b.ID, b.Status)
	default:
		return domain.Reject(domain.ReasonInvalidTransition, "booking %s is %s, want %s", b.ID, b.Status, want)
	}
}

// holding rejects b unless it currently holds its interval.
func holding(b domain.Booking) error {
	switch {
	case b.Status.Claims():
		return nil
	case b.Status.Terminal():
		return domain.Reject(domain.ReasonAlreadyTerminal, "booking %s is %s", b.ID, b.Status)
	default:
		return domain.Reject(domain.ReasonInvalidTransition, "booking %s is %s", b.ID, b.Status)
	}
}

func appendNote(notes, line string) string {
	if strings.TrimSpace(notes) == "" {
		return line
	}
	return notes + "\n" + line
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
