package domain

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound       = errors.New("not found")
	ErrLockTimeout    = errors.New("LOCK_TIMEOUT")
	ErrTxConflict     = errors.New("transaction conflict")
	ErrDuplicateToken = errors.New("duplicate idempotency token")
	ErrDuplicateRoom  = errors.New("duplicate room number")
)

type Reason string

const (
	ReasonRoomNotFound          Reason = "ROOM_NOT_FOUND"
	ReasonRoomBlocked           Reason = "ROOM_BLOCKED"
	ReasonCapacityExceeded      Reason = "CAPACITY_EXCEEDED"
	ReasonDateRangeInvalid      Reason = "DATE_RANGE_INVALID"
	ReasonIntervalConflict      Reason = "INTERVAL_CONFLICT"
	ReasonAlreadyTerminal       Reason = "ALREADY_TERMINAL"
	ReasonNotCheckedIn          Reason = "NOT_CHECKED_IN"
	ReasonRoomHasActiveOccupant Reason = "ROOM_HAS_ACTIVE_OCCUPANT"
	ReasonRoomNotBlocked        Reason = "ROOM_NOT_BLOCKED"
	ReasonBookingNotFound       Reason = "BOOKING_NOT_FOUND"
	ReasonInvalidTransition     Reason = "INVALID_TRANSITION"
	ReasonIdempotencyMismatch   Reason = "IDEMPOTENCY_MISMATCH"
	ReasonPaymentInvalid        Reason = "PAYMENT_INVALID"
	ReasonRoomInvalid           Reason = "ROOM_INVALID"
	ReasonRoomExists            Reason = "ROOM_EXISTS"
)

type ReasonClass string

const (
	ClassValidation ReasonClass = "validation"
	ClassConflict   ReasonClass = "conflict"
	ClassState      ReasonClass = "state"
	ClassNotFound   ReasonClass = "not_found"
)

func (r Reason) Class() ReasonClass {
	switch r {
	case ReasonDateRangeInvalid, ReasonCapacityExceeded, ReasonPaymentInvalid, ReasonRoomInvalid:
		return ClassValidation
	case ReasonIntervalConflict, ReasonRoomBlocked, ReasonIdempotencyMismatch, ReasonRoomExists:
		return ClassConflict
	case ReasonRoomNotFound, ReasonBookingNotFound:
		return ClassNotFound
	default:
		return ClassState
	}
}

// Rejection is a business "no": expected, caller-visible and never retried by the engine.
type Rejection struct {
	Reason Reason
	Detail string
}

func Reject(reason Reason, format string, args ...any) *Rejection {
	return &Rejection{Reason: reason, Detail: fmt.Sprintf(format, args...)}
}

func (r *Rejection) Error() string {
	if r.Detail == "" {
		return string(r.Reason)
	}
	return string(r.Reason) + ": " + r.Detail
}

func AsRejection(err error) (*Rejection, bool) {
	var rej *Rejection
	if errors.As(err, &rej) {
		return rej, true
	}
	return nil, false
}

// IsReason reports whether err is a rejection carrying reason.
func IsReason(err error, reason Reason) bool {
	rej, ok := AsRejection(err)
	return ok && rej.Reason == reason
}
