package app_test

import (
	"context"
	"testing"

	"hotel_inventory/internal/app"
	"hotel_inventory/internal/domain"
)

// ---- fakes ----

type fakeRooms struct {
	rooms map[string]domain.Room
}

func (f *fakeRooms) GetRoom(ctx context.Context, id string) (domain.Room, error) {
	r, ok := f.rooms[id]
	if !ok {
		return domain.Room{}, domain.ErrNotFound
	}
	return r, nil
}
func (f *fakeRooms) GetRoomByNumber(ctx context.Context, number string) (domain.Room, error) {
	for _, r := range f.rooms {
		if r.Number == number {
			return r, nil
		}
	}
	return domain.Room{}, domain.ErrNotFound
}
func (f *fakeRooms) ListRooms(ctx context.Context, q domain.RoomsQuery) ([]domain.Room, error) {
	var out []domain.Room
	for _, r := range f.rooms {
		if q.Match(r) {
			out = append(out, r)
		}
	}
	return out, nil
}

// ---- tests ----

func TestAvailabilityRejectionOrder(t *testing.T) {
	rooms := &fakeRooms{rooms: map[string]domain.Room{
		"r1": {ID: "r1", Number: "101", Capacity: 2},
		"r2": {ID: "r2", Number: "102", Capacity: 2, Override: domain.RoomBlocked},
		"r3": {ID: "r3", Number: "103", Capacity: 2, Override: domain.RoomReserved},
	}}
	store := app.NewIntervalStore()
	store.Insert("r1", claim("held", "2024-06-01", "2024-06-05"))
	c := app.NewAvailabilityChecker(rooms, store)

	cases := []struct {
		name    string
		room    string
		in, out string
		guests  int
		except  string
		want    domain.Reason
	}{
		{"missing room", "nope", "2024-06-01", "2024-06-02", 1, "", domain.ReasonRoomNotFound},
		{"blocked beats everything", "r2", "2024-06-05", "2024-06-01", 9, "", domain.ReasonRoomBlocked},
		{"date range before capacity", "r1", "2024-06-05", "2024-06-05", 9, "", domain.ReasonDateRangeInvalid},
		{"capacity", "r1", "2024-07-01", "2024-07-02", 3, "", domain.ReasonCapacityExceeded},
		{"no guests", "r1", "2024-07-01", "2024-07-02", 0, "", domain.ReasonCapacityExceeded},
		{"conflict", "r1", "2024-06-04", "2024-06-06", 2, "", domain.ReasonIntervalConflict},
		{"own claim ignored", "r1", "2024-06-04", "2024-06-06", 2, "held", ""},
		{"turnover", "r1", "2024-06-05", "2024-06-06", 2, "", ""},
		{"reserved still bookable", "r3", "2024-06-05", "2024-06-06", 1, "", ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.Check(context.Background(), tc.room, stay(tc.in, tc.out), tc.guests, tc.except)
			if tc.want == "" {
				if err != nil {
					t.Fatalf("expected ok, got %v", err)
				}
				return
			}
			if !domain.IsReason(err, tc.want) {
				t.Fatalf("expected %s, got %v", tc.want, err)
			}
		})
	}
}

func TestEvaluateReportsConflicts(t *testing.T) {
	rooms := &fakeRooms{rooms: map[string]domain.Room{"r1": {ID: "r1", Number: "101", Capacity: 2}}}
	store := app.NewIntervalStore()
	store.Insert("r1", claim("held", "2024-06-01", "2024-06-05"))
	c := app.NewAvailabilityChecker(rooms, store)

	a, err := c.Evaluate(context.Background(), "r1", stay("2024-06-03", "2024-06-04"), 1)
	if err != nil {
		t.Fatalf("err: %v", err)
	}
	if a.Available || a.Reason != domain.ReasonIntervalConflict || len(a.Conflicts) != 1 || a.Conflicts[0].BookingID != "held" {
		t.Fatalf("unexpected %+v", a)
	}
	a, _ = c.Evaluate(context.Background(), "r1", stay("2024-06-05", "2024-06-07"), 1)
	if !a.Available {
		t.Fatalf("expected available, got %+v", a)
	}
}
