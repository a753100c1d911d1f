package domain

import (
	"encoding/json"
	"time"
)

type AuditAction string

const (
	AuditCreate        AuditAction = "create"
	AuditUpdate        AuditAction = "update"
	AuditDelete        AuditAction = "delete"
	AuditCheckIn       AuditAction = "check_in"
	AuditCheckOut      AuditAction = "check_out"
	AuditCancelBooking AuditAction = "cancel_booking"
	AuditExtendBooking AuditAction = "extend_booking"
	AuditLogin         AuditAction = "login"
	AuditLogout        AuditAction = "logout"
)

const (
	EntityRoom    = "Room"
	EntityBooking = "Booking"
)

type AuditEvent struct {
	ID         string          `json:"id"`
	Actor      string          `json:"actor"`
	Action     AuditAction     `json:"action"`
	EntityType string          `json:"entity_type"`
	EntityID   string          `json:"entity_id"`
	Before     json.RawMessage `json:"before,omitempty"`
	After      json.RawMessage `json:"after,omitempty"`
	At         time.Time       `json:"at"`
}

// Snapshot marshals v for an audit before/after field; nil stays nil.
func Snapshot(v any) json.RawMessage {
	if v == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return nil
	}
	return b
}
