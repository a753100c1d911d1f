package app_test

import (
	"context"
	"slices"
	"testing"
	"time"

	"hotel_inventory/internal/app"
	"hotel_inventory/internal/domain"
)

// ---- fakes ----

type fakeCache struct {
	store map[string]any
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	if c.store == nil {
		return false, nil
	}
	v, ok := c.store[key]
	if !ok {
		return false, nil
	}
	switch d := dst.(type) {
	case *domain.Room:
		*d = v.(domain.Room)
	}
	return true, nil
}
func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	if c.store == nil {
		c.store = map[string]any{}
	}
	c.store[key] = v
	return nil
}
func (c *fakeCache) Del(ctx context.Context, key string) error {
	delete(c.store, key)
	return nil
}

type fakeAvail struct {
	busy map[string]bool
}

func (f *fakeAvail) CheckAvailability(ctx context.Context, roomID string, s domain.Interval, guests int) (app.Availability, error) {
	if f.busy[roomID] {
		return app.Availability{RoomID: roomID, Reason: domain.ReasonIntervalConflict}, nil
	}
	return app.Availability{RoomID: roomID, Available: true}, nil
}

// ---- tests ----

func TestGetRoom_CacheMissThenHit(t *testing.T) {
	repo := &fakeRooms{rooms: map[string]domain.Room{
		"r1": {ID: "r1", Number: "101", Capacity: 2, Status: domain.RoomAvailable},
	}}
	cache := &fakeCache{}
	q := app.NewQueryService(repo, &fakeAvail{}, cache, 10*time.Minute)

	// Miss (first time, populates cache)
	r, err := q.GetRoom(context.Background(), "r1")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if r.Number != "101" || r.Status != domain.RoomAvailable {
		t.Fatalf("unexpected room: %+v", r)
	}

	// Mutate repo to ensure second read indeed comes from cache
	repo.rooms["r1"] = domain.Room{ID: "r1", Number: "101", Status: domain.RoomBlocked}

	r2, err := q.GetRoom(context.Background(), "r1")
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if r2.Status != domain.RoomAvailable {
		t.Fatalf("expected cached status, got %s", r2.Status)
	}

	_, err = q.GetRoom(context.Background(), "missing")
	wantReason(t, err, domain.ReasonRoomNotFound)
}

func TestAvailableRooms_FiltersAndOrders(t *testing.T) {
	repo := &fakeRooms{rooms: map[string]domain.Room{
		"b201":  {ID: "b201", Number: "201", Building: "B", Floor: 2, Capacity: 2},
		"a102":  {ID: "a102", Number: "102", Building: "A", Floor: 1, Capacity: 2},
		"a101":  {ID: "a101", Number: "101", Building: "A", Floor: 1, Capacity: 2},
		"a301":  {ID: "a301", Number: "301", Building: "A", Floor: 3, Capacity: 4},
		"small": {ID: "small", Number: "103", Building: "A", Floor: 1, Capacity: 1},
		"maint": {ID: "maint", Number: "104", Building: "A", Floor: 1, Capacity: 2, Override: domain.RoomMaintenance},
		"busy":  {ID: "busy", Number: "105", Building: "A", Floor: 1, Capacity: 2},
	}}
	q := app.NewQueryService(repo, &fakeAvail{busy: map[string]bool{"busy": true}}, &fakeCache{}, time.Minute)

	rooms, err := q.AvailableRooms(context.Background(), stay("2024-06-01", "2024-06-03"), 2)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	var got []string
	for _, r := range rooms {
		got = append(got, r.ID)
	}
	if !slices.Equal(got, []string{"a101", "a102", "a301", "b201"}) {
		t.Fatalf("rooms: %v", got)
	}

	_, err = q.AvailableRooms(context.Background(), stay("2024-06-03", "2024-06-01"), 2)
	wantReason(t, err, domain.ReasonDateRangeInvalid)
}

func TestQueryServiceOverEngine(t *testing.T) {
	f := newFixture(t, "2024-05-20")
	r1 := f.room(t, "101", 2)
	r2 := f.room(t, "102", 2)
	f.mustBook(t, r1.ID, "X", "2024-06-01", "2024-06-05")

	q := app.NewQueryService(f.repo, f.eng, &fakeCache{}, time.Minute)
	rooms, err := q.AvailableRooms(context.Background(), stay("2024-06-02", "2024-06-03"), 1)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if len(rooms) != 1 || rooms[0].ID != r2.ID {
		t.Fatalf("rooms: %+v", rooms)
	}
	booked, _ := q.ListRooms(context.Background(), domain.RoomsQuery{Status: domain.RoomBooked})
	if len(booked) != 1 || booked[0].ID != r1.ID {
		t.Fatalf("booked rooms: %+v", booked)
	}
}
