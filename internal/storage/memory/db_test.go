package memory_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"hotel_inventory/internal/domain"
	"hotel_inventory/internal/storage/memory"
)

func day(s string) time.Time {
	t, _ := time.Parse(domain.DateLayout, s)
	return t
}

func commitBooking(t *testing.T, db *memory.DB, b domain.Booking) error {
	t.Helper()
	ctx := context.Background()
	tx, err := db.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := tx.SaveBooking(ctx, b); err != nil {
		t.Fatalf("save: %v", err)
	}
	return tx.Commit()
}

func TestCommitBumpsVersionAndRejectsStaleWrite(t *testing.T) {
	db := memory.New()
	ctx := context.Background()
	b := domain.Booking{ID: "b1", RoomID: "r1", CheckIn: day("2024-06-01"), CheckOut: day("2024-06-05"), Status: domain.BookingConfirmed}

	if err := commitBooking(t, db, b); err != nil {
		t.Fatalf("commit: %v", err)
	}
	got, err := db.GetBooking(ctx, "b1")
	if err != nil || got.Version != 1 {
		t.Fatalf("got %+v err %v", got, err)
	}

	// b still carries version 0
	b.Notes = "stale"
	if err := commitBooking(t, db, b); !errors.Is(err, domain.ErrTxConflict) {
		t.Fatalf("expected ErrTxConflict, got %v", err)
	}
	got.Notes = "fresh"
	if err := commitBooking(t, db, got); err != nil {
		t.Fatalf("commit fresh: %v", err)
	}
	if got, _ := db.GetBooking(ctx, "b1"); got.Version != 2 || got.Notes != "fresh" {
		t.Fatalf("unexpected %+v", got)
	}
}

func TestTokenIsUnique(t *testing.T) {
	db := memory.New()
	if err := commitBooking(t, db, domain.Booking{ID: "b1", Token: "tok"}); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := commitBooking(t, db, domain.Booking{ID: "b2", Token: "tok"}); !errors.Is(err, domain.ErrDuplicateToken) {
		t.Fatalf("expected ErrDuplicateToken, got %v", err)
	}
	b, err := db.BookingByToken(context.Background(), "tok")
	if err != nil || b.ID != "b1" {
		t.Fatalf("token lookup: %+v %v", b, err)
	}
}

func TestRollbackDiscardsStagedWrites(t *testing.T) {
	db := memory.New()
	ctx := context.Background()
	tx, _ := db.Begin(ctx)
	_ = tx.SaveRoom(ctx, domain.Room{ID: "r1", Number: "101"})
	_ = tx.SaveBooking(ctx, domain.Booking{ID: "b1", RoomID: "r1", Status: domain.BookingConfirmed})
	if err := tx.Rollback(); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if _, err := db.GetRoom(ctx, "r1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("room should not exist: %v", err)
	}
	if err := tx.Commit(); !errors.Is(err, memory.ErrTransactionDone) {
		t.Fatalf("commit after rollback: %v", err)
	}
}

func TestActiveBookingsAndDelete(t *testing.T) {
	db := memory.New()
	ctx := context.Background()
	for _, b := range []domain.Booking{
		{ID: "b2", RoomID: "r1", CheckIn: day("2024-06-05"), Status: domain.BookingConfirmed},
		{ID: "b1", RoomID: "r1", CheckIn: day("2024-06-01"), Status: domain.BookingCheckedIn},
		{ID: "b3", RoomID: "r1", CheckIn: day("2024-06-03"), Status: domain.BookingPending},
		{ID: "b4", RoomID: "r2", CheckIn: day("2024-06-03"), Status: domain.BookingConfirmed},
	} {
		if err := commitBooking(t, db, b); err != nil {
			t.Fatalf("commit %s: %v", b.ID, err)
		}
	}
	active, _ := db.ActiveBookings(ctx, "r1")
	if len(active) != 2 || active[0].ID != "b1" || active[1].ID != "b2" {
		t.Fatalf("active: %+v", active)
	}

	tx, _ := db.Begin(ctx)
	if err := tx.DeleteBooking(ctx, "b3"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if _, err := db.GetBooking(ctx, "b3"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("b3 should be gone: %v", err)
	}
	pending, _ := db.ListBookings(ctx, domain.BookingsQuery{Status: domain.BookingPending})
	if len(pending) != 0 {
		t.Fatalf("pending: %+v", pending)
	}
}

func TestRoomNumberIsUnique(t *testing.T) {
	db := memory.New()
	ctx := context.Background()
	tx, _ := db.Begin(ctx)
	_ = tx.SaveRoom(ctx, domain.Room{ID: "r1", Number: "101"})
	if err := tx.Commit(); err != nil {
		t.Fatalf("commit: %v", err)
	}
	tx, _ = db.Begin(ctx)
	_ = tx.SaveRoom(ctx, domain.Room{ID: "r2", Number: "101"})
	if err := tx.Commit(); !errors.Is(err, domain.ErrDuplicateRoom) {
		t.Fatalf("expected ErrDuplicateRoom, got %v", err)
	}
}

func TestRowLocksHeldUntilTransactionEnds(t *testing.T) {
	db := memory.New()
	db.SetRowLockWait(20 * time.Millisecond)
	ctx := context.Background()

	first, _ := db.Begin(ctx)
	if err := first.LockRooms(ctx, "r2", "r1"); err != nil {
		t.Fatalf("lock: %v", err)
	}
	second, _ := db.Begin(ctx)
	if err := second.LockRooms(ctx, "r1"); !errors.Is(err, domain.ErrTxConflict) {
		t.Fatalf("expected ErrTxConflict while r1 is held, got %v", err)
	}
	if err := second.LockRooms(ctx, "r3"); err != nil {
		t.Fatalf("unrelated room: %v", err)
	}
	_ = second.Rollback()

	// a failed commit still releases the rows
	if err := first.SaveBooking(ctx, domain.Booking{ID: "b1", Version: 7}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := first.Commit(); !errors.Is(err, domain.ErrTxConflict) {
		t.Fatalf("expected stale commit to fail, got %v", err)
	}
	third, _ := db.Begin(ctx)
	if err := third.LockRooms(ctx, "r1", "r2"); err != nil {
		t.Fatalf("rows not released after failed commit: %v", err)
	}
	_ = third.Rollback()
}
