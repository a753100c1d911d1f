package app

import (
	"iter"
	"slices"
	"sync"

	"hotel_inventory/internal/domain"
)

// Claim is one booking's hold on a room.
type Claim struct {
	BookingID string               `json:"booking_id"`
	Interval  domain.Interval      `json:"interval"`
	Status    domain.BookingStatus `json:"status"`
}

// IntervalStore keeps, per room, the intervals claimed by confirmed and
// checked_in bookings, ordered by start date. Callers serialize mutations per
// room; the mutex only guards the map itself.
type IntervalStore struct {
	mu     sync.RWMutex
	rooms  map[string][]Claim
	loaded map[string]bool
}

func NewIntervalStore() *IntervalStore {
	return &IntervalStore{rooms: map[string][]Claim{}, loaded: map[string]bool{}}
}

// IntervalsFor yields a snapshot of the room's claims taken when iteration starts.
func (s *IntervalStore) IntervalsFor(roomID string) iter.Seq[Claim] {
	return func(yield func(Claim) bool) {
		s.mu.RLock()
		snap := slices.Clone(s.rooms[roomID])
		s.mu.RUnlock()
		for _, c := range snap {
			if !yield(c) {
				return
			}
		}
	}
}

func (s *IntervalStore) Overlaps(roomID string, iv domain.Interval) bool {
	return len(s.Conflicts(roomID, iv, "")) > 0
}

// Conflicts lists claims intersecting iv, ignoring the booking named by except.
func (s *IntervalStore) Conflicts(roomID string, iv domain.Interval, except string) []Claim {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Claim
	for _, c := range s.rooms[roomID] {
		if !c.Interval.Start.Before(iv.End) {
			break
		}
		if c.BookingID != except && c.Interval.Overlaps(iv) {
			out = append(out, c)
		}
	}
	return out
}

// Insert adds or replaces the booking's claim and returns the previous one.
func (s *IntervalStore) Insert(roomID string, c Claim) (prev Claim, existed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	claims := s.rooms[roomID]
	if i := indexOf(claims, c.BookingID); i >= 0 {
		prev, existed = claims[i], true
		claims = slices.Delete(claims, i, i+1)
	}
	pos, _ := slices.BinarySearchFunc(claims, c, func(a, b Claim) int {
		return a.Interval.Start.Compare(b.Interval.Start)
	})
	s.rooms[roomID] = slices.Insert(claims, pos, c)
	return prev, existed
}

func (s *IntervalStore) Remove(roomID, bookingID string) (prev Claim, existed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	claims := s.rooms[roomID]
	i := indexOf(claims, bookingID)
	if i < 0 {
		return Claim{}, false
	}
	prev = claims[i]
	s.rooms[roomID] = slices.Delete(claims, i, i+1)
	return prev, true
}

// Replace moves an existing claim to a new interval keeping its status.
func (s *IntervalStore) Replace(roomID, bookingID string, iv domain.Interval) (prev Claim, existed bool) {
	s.mu.RLock()
	i := indexOf(s.rooms[roomID], bookingID)
	var c Claim
	if i >= 0 {
		c = s.rooms[roomID][i]
	}
	s.mu.RUnlock()
	if i < 0 {
		return Claim{}, false
	}
	c.Interval = iv
	return s.Insert(roomID, c)
}

// Reset replaces the room's claims with a snapshot from persistence.
func (s *IntervalStore) Reset(roomID string, claims []Claim) {
	sorted := slices.Clone(claims)
	slices.SortFunc(sorted, func(a, b Claim) int { return a.Interval.Start.Compare(b.Interval.Start) })
	s.mu.Lock()
	s.rooms[roomID] = sorted
	s.loaded[roomID] = true
	s.mu.Unlock()
}

// ResetIfUnloaded hydrates the room only on first touch.
func (s *IntervalStore) ResetIfUnloaded(roomID string, claims []Claim) {
	s.mu.RLock()
	done := s.loaded[roomID]
	s.mu.RUnlock()
	if done {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.loaded[roomID] {
		return
	}
	sorted := slices.Clone(claims)
	slices.SortFunc(sorted, func(a, b Claim) int { return a.Interval.Start.Compare(b.Interval.Start) })
	s.rooms[roomID] = sorted
	s.loaded[roomID] = true
}

func (s *IntervalStore) Loaded(roomID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.loaded[roomID]
}

func indexOf(claims []Claim, bookingID string) int {
	return slices.IndexFunc(claims, func(c Claim) bool { return c.BookingID == bookingID })
}

func claimOf(b domain.Booking) Claim {
	return Claim{BookingID: b.ID, Interval: b.Interval(), Status: b.Status}
}

func claimsOf(bs []domain.Booking) []Claim {
	out := make([]Claim, 0, len(bs))
	for _, b := range bs {
		if b.Status.Claims() {
			out = append(out, claimOf(b))
		}
	}
	return out
}
