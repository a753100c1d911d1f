package app_test

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"hotel_inventory/internal/domain"
	"hotel_inventory/internal/storage/memory"
)

// Two engines over one store stand for the api and the sweeper: each has its
// own Interval Store and its own process-local locks.
func TestEnginesSharingAStoreSeeEachOthersCommits(t *testing.T) {
	db := memory.New()
	api := newFixtureWithRepo(t, "2024-06-03", db)
	sweeper := newFixtureWithRepo(t, "2024-06-03", db)
	ctx := context.Background()

	r := api.room(t, "101", 2)
	if _, err := sweeper.eng.RefreshRoom(ctx, r.ID); err != nil {
		t.Fatalf("refresh: %v", err)
	}

	b := api.mustBook(t, r.ID, "X", "2024-06-03", "2024-06-06")
	if api.roomStatus(t, r.ID) != domain.RoomBooked {
		t.Fatalf("booking should mark the room booked")
	}
	got, err := sweeper.eng.RefreshRoom(ctx, r.ID)
	if err != nil || got.Status != domain.RoomBooked {
		t.Fatalf("refresh from the other engine overwrote status: %+v %v", got, err)
	}
	if n := len(sweeper.claims(t, r.ID)); n != 1 {
		t.Fatalf("other engine sees %d claims", n)
	}

	api.setToday("2024-06-04")
	sweeper.setToday("2024-06-04")
	if _, err := sweeper.eng.MarkNoShow(ctx, b.ID); err != nil {
		t.Fatalf("no show: %v", err)
	}
	av, err := api.eng.CheckAvailability(ctx, r.ID, stay("2024-06-04", "2024-06-06"), 1)
	if err != nil || !av.Available {
		t.Fatalf("released stay reported unavailable: %+v %v", av, err)
	}
	if _, err := api.book(r.ID, "Y", "2024-06-04", "2024-06-06"); err != nil {
		t.Fatalf("book released stay: %v", err)
	}
	if api.roomStatus(t, r.ID) != domain.RoomBooked {
		t.Fatalf("room should be booked again")
	}
}

func TestEnginesSharingAStoreNeverDoubleBook(t *testing.T) {
	db := memory.New()
	a := newFixtureWithRepo(t, "2024-05-20", db)
	b := newFixtureWithRepo(t, "2024-05-20", db)
	r := a.room(t, "101", 2)

	const n = 12
	var (
		wg   sync.WaitGroup
		wins atomic.Int32
	)
	start := make(chan struct{})
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			f := a
			if i%2 == 1 {
				f = b
			}
			<-start
			_, err := f.book(r.ID, fmt.Sprintf("guest-%d", i), "2024-06-01", "2024-06-05")
			switch {
			case err == nil:
				wins.Add(1)
			case domain.IsReason(err, domain.ReasonIntervalConflict):
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	close(start)
	wg.Wait()

	if wins.Load() != 1 {
		t.Fatalf("wins = %d", wins.Load())
	}
	active, _ := db.ActiveBookings(context.Background(), r.ID)
	if len(active) != 1 {
		t.Fatalf("active bookings = %d", len(active))
	}
}
