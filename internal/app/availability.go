package app

import (
	"context"
	"errors"
	"fmt"

	"hotel_inventory/internal/domain"
)

// Availability is the answer to "can this room take this stay for N guests".
type Availability struct {
	RoomID    string          `json:"room_id"`
	Stay      domain.Interval `json:"stay"`
	Guests    int             `json:"guests"`
	Available bool            `json:"available"`
	Reason    domain.Reason   `json:"reason,omitempty"`
	Detail    string          `json:"detail,omitempty"`
	Conflicts []Claim         `json:"conflicts,omitempty"`
}

// AvailabilityChecker is a read-only decision over the room record and the
// Interval Store. It never writes and is safe to call speculatively.
type AvailabilityChecker struct {
	rooms domain.RoomRepository
	store *IntervalStore
}

func NewAvailabilityChecker(rooms domain.RoomRepository, store *IntervalStore) *AvailabilityChecker {
	return &AvailabilityChecker{rooms: rooms, store: store}
}

// Check returns the room on success, a *domain.Rejection when the stay cannot
// be granted, or an infrastructure error. except names a booking whose own
// claim is ignored.
func (c *AvailabilityChecker) Check(ctx context.Context, roomID string, stay domain.Interval, guests int, except string) (domain.Room, error) {
	room, err := c.rooms.GetRoom(ctx, roomID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Room{}, domain.Reject(domain.ReasonRoomNotFound, "room %s", roomID)
	}
	if err != nil {
		return domain.Room{}, fmt.Errorf("get room %s: %w", roomID, err)
	}
	return room, c.decide(room, stay, guests, except)
}

// decide applies the rejection order: blocked, date range, capacity, conflict.
func (c *AvailabilityChecker) decide(room domain.Room, stay domain.Interval, guests int, except string) error {
	if room.Override.RejectsReservations() {
		return domain.Reject(domain.ReasonRoomBlocked, "room %s is %s", room.Number, room.Override)
	}
	if !stay.Valid() {
		return domain.Reject(domain.ReasonDateRangeInvalid, "check-out must be after check-in (%s)", stay)
	}
	if guests < 1 || guests > room.Capacity {
		return domain.Reject(domain.ReasonCapacityExceeded, "%d guests, room %s holds %d", guests, room.Number, room.Capacity)
	}
	if conflicts := c.store.Conflicts(room.ID, stay, except); len(conflicts) > 0 {
		return domain.Reject(domain.ReasonIntervalConflict, "room %s is held for %s by booking %s",
			room.Number, conflicts[0].Interval, conflicts[0].BookingID)
	}
	return nil
}

// Evaluate is Check shaped as a result value for display.
func (c *AvailabilityChecker) Evaluate(ctx context.Context, roomID string, stay domain.Interval, guests int) (Availability, error) {
	out := Availability{RoomID: roomID, Stay: stay, Guests: guests}
	_, err := c.Check(ctx, roomID, stay, guests, "")
	if err == nil {
		out.Available = true
		return out, nil
	}
	rej, ok := domain.AsRejection(err)
	if !ok {
		return Availability{}, err
	}
	out.Reason, out.Detail = rej.Reason, rej.Detail
	if rej.Reason == domain.ReasonIntervalConflict {
		out.Conflicts = c.store.Conflicts(roomID, stay, "")
	}
	return out, nil
}
