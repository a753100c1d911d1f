package mysql

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	mysqldrv "github.com/go-sql-driver/mysql"

	"hotel_inventory/internal/domain"
)

// MySQL server error numbers mapped to domain sentinels.
const (
	errDupEntry     = 1062
	errLockWait     = 1205
	errDeadlock     = 1213
	tokenUniqueKey  = "uq_bookings_token"
	numberUniqueKey = "uq_rooms_number"
)

func valStr(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func valTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return *p
}

func valJSON(v []string) any {
	if len(v) == 0 {
		return nil
	}
	b, _ := json.Marshal(v)
	return string(b)
}

type Repo struct{ db *sql.DB }

func New(db *sql.DB) *Repo { return &Repo{db: db} }

// ---- rooms ----

func (r *Repo) GetRoom(ctx context.Context, id string) (domain.Room, error) {
	return scanRoom(r.db.QueryRowContext(ctx, getRoomSQL, id))
}

func (r *Repo) GetRoomByNumber(ctx context.Context, number string) (domain.Room, error) {
	return scanRoom(r.db.QueryRowContext(ctx, getRoomByNumberSQL, number))
}

func (r *Repo) ListRooms(ctx context.Context, q domain.RoomsQuery) ([]domain.Room, error) {
	var sb strings.Builder
	sb.WriteString(listRoomsSQL)
	var args []any
	if q.Building != "" {
		sb.WriteString(" AND building = ?")
		args = append(args, q.Building)
	}
	if q.Floor != 0 {
		sb.WriteString(" AND floor = ?")
		args = append(args, q.Floor)
	}
	if q.Type != "" {
		sb.WriteString(" AND type = ?")
		args = append(args, string(q.Type))
	}
	if q.Status != "" {
		sb.WriteString(" AND status = ?")
		args = append(args, string(q.Status))
	}
	sb.WriteString(" ORDER BY building, floor, number")

	rows, err := r.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]domain.Room, 0)
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, room)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRoom(s scanner) (domain.Room, error) {
	var (
		room                           domain.Room
		desc, override, overrideReason sql.NullString
		amenities                      []byte
		overrideAt                     sql.NullTime
		typ, status                    string
	)
	if err := s.Scan(
		&room.ID, &room.Number, &room.Building, &room.Floor, &room.Capacity, &typ, &room.NightlyRate,
		&desc, &amenities, &status, &override, &overrideReason, &overrideAt, &room.CreatedAt, &room.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Room{}, domain.ErrNotFound
		}
		return domain.Room{}, err
	}
	room.Type = domain.RoomType(typ)
	room.Status = domain.RoomStatus(status)
	room.Description = desc.String
	room.Override = domain.RoomStatus(override.String)
	room.OverrideReason = overrideReason.String
	if overrideAt.Valid {
		at := overrideAt.Time
		room.OverrideAt = &at
	}
	if len(amenities) > 0 {
		if err := json.Unmarshal(amenities, &room.Amenities); err != nil {
			return domain.Room{}, fmt.Errorf("room %s amenities: %w", room.ID, err)
		}
	}
	return room, nil
}

// ---- bookings ----

func (r *Repo) GetBooking(ctx context.Context, id string) (domain.Booking, error) {
	return scanBooking(r.db.QueryRowContext(ctx, getBookingSQL, id))
}

func (r *Repo) BookingByToken(ctx context.Context, token string) (domain.Booking, error) {
	return scanBooking(r.db.QueryRowContext(ctx, bookingByTokenSQL, token))
}

func (r *Repo) ActiveBookings(ctx context.Context, roomID string) ([]domain.Booking, error) {
	return r.queryBookings(ctx, activeBookingsSQL, roomID)
}

func (r *Repo) ListBookings(ctx context.Context, q domain.BookingsQuery) ([]domain.Booking, error) {
	var sb strings.Builder
	sb.WriteString(listBookingsSQL)
	var args []any
	if q.RoomID != "" {
		sb.WriteString(" AND room_id = ?")
		args = append(args, q.RoomID)
	}
	if q.GuestID != "" {
		sb.WriteString(" AND guest_id = ?")
		args = append(args, q.GuestID)
	}
	if q.Status != "" {
		sb.WriteString(" AND status = ?")
		args = append(args, string(q.Status))
	}
	sb.WriteString(" ORDER BY check_in, id")
	return r.queryBookings(ctx, sb.String(), args...)
}

func (r *Repo) queryBookings(ctx context.Context, query string, args ...any) ([]domain.Booking, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]domain.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func scanBooking(s scanner) (domain.Booking, error) {
	var (
		b                    domain.Booking
		second, notes, token sql.NullString
		actualIn, actualOut  sql.NullTime
		status               string
	)
	if err := s.Scan(
		&b.ID, &b.RoomID, &b.GuestID, &second, &b.CheckIn, &b.CheckOut, &b.Guests, &b.TotalAmount,
		&b.PaidAmount, &notes, &status, &token, &actualIn, &actualOut, &b.Version, &b.CreatedAt, &b.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Booking{}, domain.ErrNotFound
		}
		return domain.Booking{}, err
	}
	b.Status = domain.BookingStatus(status)
	b.SecondGuestID, b.Notes, b.Token = second.String, notes.String, token.String
	b.CheckIn, b.CheckOut = domain.Day(b.CheckIn), domain.Day(b.CheckOut)
	if actualIn.Valid {
		at := actualIn.Time
		b.ActualCheckIn = &at
	}
	if actualOut.Valid {
		at := actualOut.Time
		b.ActualCheckOut = &at
	}
	return b, nil
}

// ---- transactions ----

func (r *Repo) Begin(ctx context.Context) (domain.Tx, error) {
	tx, err := r.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return nil, mapErr(err)
	}
	return &Tx{tx: tx}, nil
}

// Tx writes through a database transaction. Stale booking versions fail
// SaveBooking itself with domain.ErrTxConflict.
type Tx struct{ tx *sql.Tx }

func (t *Tx) LockRooms(ctx context.Context, roomIDs ...string) error {
	if len(roomIDs) == 0 {
		return nil
	}
	args := make([]any, len(roomIDs))
	for i, id := range roomIDs {
		args[i] = id
	}
	marks := strings.TrimSuffix(strings.Repeat("?,", len(roomIDs)), ",")
	rows, err := t.tx.QueryContext(ctx, fmt.Sprintf(lockRoomsSQL, marks), args...)
	if err != nil {
		return mapErr(err)
	}
	defer rows.Close()
	for rows.Next() {
	}
	return mapErr(rows.Err())
}

func (t *Tx) SaveRoom(ctx context.Context, room domain.Room) error {
	_, err := t.tx.ExecContext(ctx, upsertRoomSQL,
		room.ID, room.Number, room.Building, room.Floor, room.Capacity, string(room.Type), room.NightlyRate,
		valStr(room.Description), valJSON(room.Amenities), string(room.Status),
		valStr(string(room.Override)), valStr(room.OverrideReason), valTime(room.OverrideAt),
		room.CreatedAt, room.UpdatedAt,
	)
	return mapErr(err)
}

func (t *Tx) SaveBooking(ctx context.Context, b domain.Booking) error {
	if b.Version == 0 {
		_, err := t.tx.ExecContext(ctx, insertBookingSQL,
			b.ID, b.RoomID, b.GuestID, valStr(b.SecondGuestID), b.CheckIn, b.CheckOut, b.Guests, b.TotalAmount,
			b.PaidAmount, valStr(b.Notes), string(b.Status), valStr(b.Token),
			valTime(b.ActualCheckIn), valTime(b.ActualCheckOut), b.CreatedAt, b.UpdatedAt,
		)
		return mapErr(err)
	}
	res, err := t.tx.ExecContext(ctx, updateBookingSQL,
		b.RoomID, b.GuestID, valStr(b.SecondGuestID), b.CheckIn, b.CheckOut, b.Guests, b.TotalAmount,
		b.PaidAmount, valStr(b.Notes), string(b.Status), valTime(b.ActualCheckIn), valTime(b.ActualCheckOut),
		b.UpdatedAt, b.ID, b.Version,
	)
	if err != nil {
		return mapErr(err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return err
	} else if n == 0 {
		return fmt.Errorf("booking %s version %d: %w", b.ID, b.Version, domain.ErrTxConflict)
	}
	return nil
}

func (t *Tx) DeleteBooking(ctx context.Context, id string) error {
	res, err := t.tx.ExecContext(ctx, deleteBookingSQL, id)
	if err != nil {
		return mapErr(err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("booking %s: %w", id, domain.ErrTxConflict)
	}
	return nil
}

func (t *Tx) Commit() error   { return mapErr(t.tx.Commit()) }
func (t *Tx) Rollback() error { return t.tx.Rollback() }

// mapErr turns MySQL errors the engine reacts to into domain sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	var me *mysqldrv.MySQLError
	if !errors.As(err, &me) {
		return err
	}
	switch me.Number {
	case errDeadlock, errLockWait:
		return fmt.Errorf("%s: %w", me.Message, domain.ErrTxConflict)
	case errDupEntry:
		switch {
		case strings.Contains(me.Message, tokenUniqueKey):
			return fmt.Errorf("%s: %w", me.Message, domain.ErrDuplicateToken)
		case strings.Contains(me.Message, numberUniqueKey):
			return fmt.Errorf("%s: %w", me.Message, domain.ErrDuplicateRoom)
		}
		return fmt.Errorf("%s: %w", me.Message, domain.ErrTxConflict)
	}
	return err
}
