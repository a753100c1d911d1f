package domain

import (
	"time"
)

type BookingStatus string

const (
	BookingPending    BookingStatus = "pending"
	BookingConfirmed  BookingStatus = "confirmed"
	BookingCheckedIn  BookingStatus = "checked_in"
	BookingCheckedOut BookingStatus = "checked_out"
	BookingCancelled  BookingStatus = "cancelled"
	BookingNoShow     BookingStatus = "no_show"
)

func (s BookingStatus) Terminal() bool {
	return s == BookingCheckedOut || s == BookingCancelled || s == BookingNoShow
}

// Claims reports whether a booking in status s holds its interval in the Interval Store.
func (s BookingStatus) Claims() bool {
	return s == BookingConfirmed || s == BookingCheckedIn
}

type Booking struct {
	ID            string        `json:"id"`
	RoomID        string        `json:"room_id"`
	GuestID       string        `json:"guest_id"`
	SecondGuestID string        `json:"second_guest_id,omitempty"`
	CheckIn       time.Time     `json:"check_in"`
	CheckOut      time.Time     `json:"check_out"`
	Guests        int           `json:"guests"`
	TotalAmount   float64       `json:"total_amount"`
	PaidAmount    float64       `json:"paid_amount"`
	Notes         string        `json:"notes,omitempty"`
	Status        BookingStatus `json:"status"`
	Token         string        `json:"-"`

	ActualCheckIn  *time.Time `json:"actual_check_in,omitempty"`
	ActualCheckOut *time.Time `json:"actual_check_out,omitempty"`

	// Version increments on every committed write; stores reject stale writes with ErrTxConflict.
	Version   int64     `json:"version"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (b Booking) Interval() Interval { return Interval{Start: b.CheckIn, End: b.CheckOut} }

func (b Booking) Nights() int { return b.Interval().Nights() }

func (b Booking) Remaining() float64 { return b.TotalAmount - b.PaidAmount }

type BookingsQuery struct {
	RoomID  string
	GuestID string
	Status  BookingStatus
}

func (q BookingsQuery) Match(b Booking) bool {
	if q.RoomID != "" && q.RoomID != b.RoomID {
		return false
	}
	if q.GuestID != "" && q.GuestID != b.GuestID {
		return false
	}
	if q.Status != "" && q.Status != b.Status {
		return false
	}
	return true
}

// ReservationRequest is the transient input of an allocation.
type ReservationRequest struct {
	RoomID              string
	GuestID             string
	SecondGuestID       string
	Stay                Interval
	Guests              int
	TotalAmount         float64
	Notes               string
	Token               string
	RequireConfirmation bool // create as pending; the stay is claimed only on confirm
}

// SamePayload reports whether b was created from an equivalent request.
func (r ReservationRequest) SamePayload(b Booking) bool {
	return r.RoomID == b.RoomID &&
		r.GuestID == b.GuestID &&
		r.Guests == b.Guests &&
		r.Stay.Start.Equal(b.CheckIn) &&
		r.Stay.End.Equal(b.CheckOut)
}
