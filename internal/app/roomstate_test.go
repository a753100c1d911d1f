package app_test

import (
	"testing"

	"hotel_inventory/internal/app"
	"hotel_inventory/internal/domain"
)

func TestDeriveStatus(t *testing.T) {
	asOf := day("2024-06-03")
	checkedIn := func(id, in, out string) app.Claim {
		c := claim(id, in, out)
		c.Status = domain.BookingCheckedIn
		return c
	}
	cases := []struct {
		name      string
		claims    []app.Claim
		lookahead int
		want      domain.RoomStatus
	}{
		{"empty", nil, 0, domain.RoomAvailable},
		{"checked in", []app.Claim{checkedIn("a", "2024-06-01", "2024-06-05")}, 0, domain.RoomOccupied},
		{"overstay still occupied", []app.Claim{checkedIn("a", "2024-05-28", "2024-06-02")}, 0, domain.RoomOccupied},
		{"current confirmed", []app.Claim{claim("a", "2024-06-02", "2024-06-04")}, 0, domain.RoomBooked},
		{"future confirmed, no lookahead", []app.Claim{claim("a", "2024-09-01", "2024-09-04")}, 0, domain.RoomBooked},
		{"future confirmed beyond lookahead", []app.Claim{claim("a", "2024-06-20", "2024-06-24")}, 7, domain.RoomAvailable},
		{"future confirmed within lookahead", []app.Claim{claim("a", "2024-06-08", "2024-06-10")}, 7, domain.RoomBooked},
		{"past confirmed", []app.Claim{claim("a", "2024-05-28", "2024-06-03")}, 0, domain.RoomAvailable},
		{"occupied beats booked", []app.Claim{
			claim("b", "2024-06-01", "2024-06-02"),
			checkedIn("a", "2024-06-02", "2024-06-06"),
		}, 0, domain.RoomOccupied},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := app.DeriveStatus(tc.claims, asOf, tc.lookahead); got != tc.want {
				t.Fatalf("got %s, want %s", got, tc.want)
			}
		})
	}
}
