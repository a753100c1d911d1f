package mysql

const roomColumns = `id, number, building, floor, capacity, type, nightly_rate, description, amenities,
  status, override_status, override_reason, override_at, created_at, updated_at`

const bookingColumns = `id, room_id, guest_id, second_guest_id, check_in, check_out, guests, total_amount,
  paid_amount, notes, status, token, actual_check_in, actual_check_out, version, created_at, updated_at`

const getRoomSQL = `SELECT ` + roomColumns + ` FROM rooms WHERE id = ?`

const getRoomByNumberSQL = `SELECT ` + roomColumns + ` FROM rooms WHERE number = ?`

// listRoomsSQL is completed by the repo with optional filters and the ORDER BY.
const listRoomsSQL = `SELECT ` + roomColumns + ` FROM rooms WHERE 1=1`

const upsertRoomSQL = `
INSERT INTO rooms
  (` + roomColumns + `)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON DUPLICATE KEY UPDATE
  number          = VALUES(number),
  building        = VALUES(building),
  floor           = VALUES(floor),
  capacity        = VALUES(capacity),
  type            = VALUES(type),
  nightly_rate    = VALUES(nightly_rate),
  description     = VALUES(description),
  amenities       = VALUES(amenities),
  status          = VALUES(status),
  override_status = VALUES(override_status),
  override_reason = VALUES(override_reason),
  override_at     = VALUES(override_at),
  updated_at      = VALUES(updated_at)
`

const getBookingSQL = `SELECT ` + bookingColumns + ` FROM bookings WHERE id = ?`

const bookingByTokenSQL = `SELECT ` + bookingColumns + ` FROM bookings WHERE token = ?`

// Served by ix_bookings_room_status.
const activeBookingsSQL = `
SELECT ` + bookingColumns + `
FROM bookings
WHERE room_id = ? AND status IN ('confirmed', 'checked_in')
ORDER BY check_in, id
`

const listBookingsSQL = `SELECT ` + bookingColumns + ` FROM bookings WHERE 1=1`

const insertBookingSQL = `
INSERT INTO bookings
  (` + bookingColumns + `)
VALUES
  (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
`

// The version predicate turns a stale write into zero affected rows.
const updateBookingSQL = `
UPDATE bookings SET
  room_id          = ?,
  guest_id         = ?,
  second_guest_id  = ?,
  check_in         = ?,
  check_out        = ?,
  guests           = ?,
  total_amount     = ?,
  paid_amount      = ?,
  notes            = ?,
  status           = ?,
  actual_check_in  = ?,
  actual_check_out = ?,
  updated_at       = ?,
  version          = version + 1
WHERE id = ? AND version = ?
`

const deleteBookingSQL = `DELETE FROM bookings WHERE id = ?`

// lockRoomsSQL is completed with one placeholder per room. Rows are locked in
// primary key order so concurrent writers cannot deadlock on each other.
const lockRoomsSQL = `SELECT id FROM rooms WHERE id IN (%s) ORDER BY id FOR UPDATE`
