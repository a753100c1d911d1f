package domain

import "time"

type RoomStatus string

const (
	RoomAvailable   RoomStatus = "available"
	RoomBooked      RoomStatus = "booked"
	RoomOccupied    RoomStatus = "occupied"
	RoomReserved    RoomStatus = "reserved"
	RoomBlocked     RoomStatus = "blocked"
	RoomMaintenance RoomStatus = "maintenance"
)

// IsOverride reports whether s can only be set and cleared by an operator.
func (s RoomStatus) IsOverride() bool {
	return s == RoomBlocked || s == RoomMaintenance || s == RoomReserved
}

// RejectsReservations reports whether a room in status s refuses new stays.
func (s RoomStatus) RejectsReservations() bool {
	return s == RoomBlocked || s == RoomMaintenance
}

type RoomType string

const (
	RoomSingle            RoomType = "single"
	RoomDouble            RoomType = "double"
	RoomDoubleWithBalcony RoomType = "double_with_balcony"
	RoomFamily            RoomType = "family"
	RoomLuxury            RoomType = "luxury"
	RoomLuxury2x          RoomType = "luxury_2x"
)

type Room struct {
	ID          string     `json:"id"`
	Number      string     `json:"number"`
	Building    string     `json:"building"`
	Floor       int        `json:"floor"`
	Capacity    int        `json:"capacity"`
	Type        RoomType   `json:"type"`
	NightlyRate float64    `json:"nightly_rate"`
	Description string     `json:"description,omitempty"`
	Amenities   []string   `json:"amenities,omitempty"`
	Status      RoomStatus `json:"status"` // cache of the derived status, never used for conflict checks

	// Override holds blocked/maintenance/reserved until an operator clears it.
	Override       RoomStatus `json:"override,omitempty"`
	OverrideReason string     `json:"override_reason,omitempty"`
	OverrideAt     *time.Time `json:"override_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type RoomsQuery struct {
	Building string
	Floor    int
	Type     RoomType
	Status   RoomStatus
}

func (q RoomsQuery) Match(r Room) bool {
	if q.Building != "" && q.Building != r.Building {
		return false
	}
	if q.Floor != 0 && q.Floor != r.Floor {
		return false
	}
	if q.Type != "" && q.Type != r.Type {
		return false
	}
	if q.Status != "" && q.Status != r.Status {
		return false
	}
	return true
}
