package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"hotel_inventory/internal/domain"
)

// RoomStateTracker keeps Room.Status consistent with the Interval Store and
// operator overrides.
type RoomStateTracker struct {
	run *runner
	// lookaheadDays bounds how far ahead a confirmed stay marks the room
	// booked; zero means any future stay does.
	lookaheadDays int
}

// Derive computes a room's status as of asOf. Overrides win; otherwise a
// checked-in claim makes the room occupied and a current or upcoming
// confirmed claim makes it booked.
func (t *RoomStateTracker) Derive(room domain.Room, claims []Claim, asOf time.Time) domain.RoomStatus {
	if room.Override.IsOverride() {
		return room.Override
	}
	return DeriveStatus(claims, asOf, t.lookaheadDays)
}

// DeriveStatus is the booking-driven part of the status, ignoring overrides.
func DeriveStatus(claims []Claim, asOf time.Time, lookaheadDays int) domain.RoomStatus {
	today := domain.Day(asOf)
	horizon := today.AddDate(0, 0, lookaheadDays)
	status := domain.RoomAvailable
	for _, c := range claims {
		switch c.Status {
		case domain.BookingCheckedIn:
			return domain.RoomOccupied
		case domain.BookingConfirmed:
			if !c.Interval.End.After(today) {
				continue
			}
			if lookaheadDays == 0 || c.Interval.Start.Before(horizon) {
				status = domain.RoomBooked
			}
		}
	}
	return status
}

// Block takes the room out of service. It fails while a guest is checked in.
func (t *RoomStateTracker) Block(ctx context.Context, roomID, reason string) (domain.Room, error) {
	return t.SetOverride(ctx, roomID, domain.RoomBlocked, reason)
}

// SetOverride places blocked, maintenance or reserved on the room.
func (t *RoomStateTracker) SetOverride(ctx context.Context, roomID string, status domain.RoomStatus, reason string) (domain.Room, error) {
	if !status.IsOverride() {
		return domain.Room{}, domain.Reject(domain.ReasonInvalidTransition, "%s is not an operator status", status)
	}
	var out domain.Room
	err := t.run.run(ctx, "block_room", []string{roomID}, func(ctx context.Context, tx *txn) error {
		room, err := t.room(ctx, roomID)
		if err != nil {
			return err
		}
		for c := range t.run.store.IntervalsFor(roomID) {
			if c.Status == domain.BookingCheckedIn {
				return domain.Reject(domain.ReasonRoomHasActiveOccupant, "booking %s is checked in", c.BookingID)
			}
		}
		room.Override, room.OverrideReason = status, reason
		at := tx.now
		room.OverrideAt = &at
		tx.editRoom(room)
		out = room
		return nil
	})
	if err != nil {
		return domain.Room{}, err
	}
	out.Status = status
	return out, nil
}

// Unblock clears any operator override and lets bookings drive the status again.
func (t *RoomStateTracker) Unblock(ctx context.Context, roomID string) (domain.Room, error) {
	var out domain.Room
	err := t.run.run(ctx, "unblock_room", []string{roomID}, func(ctx context.Context, tx *txn) error {
		room, err := t.room(ctx, roomID)
		if err != nil {
			return err
		}
		if !room.Override.IsOverride() {
			return domain.Reject(domain.ReasonRoomNotBlocked, "room %s has no override", room.Number)
		}
		room.Override, room.OverrideReason, room.OverrideAt = "", "", nil
		tx.editRoom(room)
		out = room
		return nil
	})
	if err != nil {
		return domain.Room{}, err
	}
	out.Status = t.Derive(out, collect(t.run.store, roomID), t.run.now())
	return out, nil
}

// Refresh re-derives the status as of now; the sweeper calls it as days pass.
func (t *RoomStateTracker) Refresh(ctx context.Context, roomID string) (domain.Room, error) {
	err := t.run.run(ctx, "refresh_room", []string{roomID}, func(ctx context.Context, tx *txn) error {
		_, err := t.room(ctx, roomID)
		return err
	})
	if err != nil {
		return domain.Room{}, err
	}
	return t.run.repo.GetRoom(ctx, roomID)
}

func (t *RoomStateTracker) room(ctx context.Context, roomID string) (domain.Room, error) {
	room, err := t.run.repo.GetRoom(ctx, roomID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Room{}, domain.Reject(domain.ReasonRoomNotFound, "room %s", roomID)
	}
	if err != nil {
		return domain.Room{}, fmt.Errorf("get room %s: %w", roomID, err)
	}
	return room, nil
}

func collect(s *IntervalStore, roomID string) []Claim {
	var out []Claim
	for c := range s.IntervalsFor(roomID) {
		out = append(out, c)
	}
	return out
}
