package domain

import "context"

type RoomRepository interface {
	GetRoom(ctx context.Context, id string) (Room, error)
	GetRoomByNumber(ctx context.Context, number string) (Room, error)
	ListRooms(ctx context.Context, q RoomsQuery) ([]Room, error)
}

type BookingRepository interface {
	GetBooking(ctx context.Context, id string) (Booking, error)
	BookingByToken(ctx context.Context, token string) (Booking, error)
	// ActiveBookings returns the room's bookings in confirmed or checked_in status.
	ActiveBookings(ctx context.Context, roomID string) ([]Booking, error)
	ListBookings(ctx context.Context, q BookingsQuery) ([]Booking, error)
}

// Tx stages writes until Commit. Stale booking versions fail Commit with ErrTxConflict.
type Tx interface {
	// LockRooms holds the rooms' rows until the transaction ends, serializing
	// writers that do not share a RoomLocker. A wait the store gives up on
	// fails with ErrTxConflict.
	LockRooms(ctx context.Context, roomIDs ...string) error
	SaveRoom(ctx context.Context, r Room) error
	SaveBooking(ctx context.Context, b Booking) error
	DeleteBooking(ctx context.Context, id string) error
	Commit() error
	Rollback() error
}

type Repository interface {
	RoomRepository
	BookingRepository
	Begin(ctx context.Context) (Tx, error)
}

// RoomLocker serializes check-then-act sections per room. Lock waits a bounded
// time and fails with ErrLockTimeout.
type RoomLocker interface {
	Lock(ctx context.Context, roomIDs ...string) (unlock func(), err error)
	// Shared reports whether other processes may mutate the same rooms.
	Shared() bool
}

type AuditSink interface {
	Record(ctx context.Context, ev AuditEvent) error
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}
