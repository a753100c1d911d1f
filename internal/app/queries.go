package app

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"hotel_inventory/internal/domain"
)

type availabilityChecker interface {
	CheckAvailability(ctx context.Context, roomID string, stay domain.Interval, guests int) (Availability, error)
}

// QueryService serves the read side: cached room views and room search.
type QueryService struct {
	repo     domain.RoomRepository
	avail    availabilityChecker
	cache    domain.Cache
	cacheTTL time.Duration
}

// NewQueryService builds the read side. c may be nil.
func NewQueryService(r domain.RoomRepository, a availabilityChecker, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{repo: r, avail: a, cache: c, cacheTTL: ttl}
}

func (s *QueryService) GetRoom(ctx context.Context, id string) (domain.Room, error) {
	key := roomCacheKey(id)
	var r domain.Room
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &r); ok {
			return r, nil
		}
	}
	r, err := s.repo.GetRoom(ctx, id)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Room{}, domain.Reject(domain.ReasonRoomNotFound, "room %s", id)
	}
	if err != nil {
		return domain.Room{}, err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, r, int(s.cacheTTL.Seconds()))
	}
	return r, nil
}

func (s *QueryService) ListRooms(ctx context.Context, q domain.RoomsQuery) ([]domain.Room, error) {
	rooms, err := s.repo.ListRooms(ctx, q)
	if err != nil {
		return nil, err
	}
	sortRooms(rooms)
	return rooms, nil
}

// AvailableRooms lists rooms that could take the stay for guests right now,
// ordered by building, floor and number.
func (s *QueryService) AvailableRooms(ctx context.Context, stay domain.Interval, guests int) ([]domain.Room, error) {
	if !stay.Valid() {
		return nil, domain.Reject(domain.ReasonDateRangeInvalid, "check-out must be after check-in")
	}
	rooms, err := s.repo.ListRooms(ctx, domain.RoomsQuery{})
	if err != nil {
		return nil, err
	}
	out := make([]domain.Room, 0, len(rooms))
	for _, r := range rooms {
		if r.Capacity < guests || r.Override.RejectsReservations() {
			continue
		}
		a, err := s.avail.CheckAvailability(ctx, r.ID, stay, guests)
		if err != nil {
			return nil, fmt.Errorf("check room %s: %w", r.ID, err)
		}
		if a.Available {
			out = append(out, r)
		}
	}
	sortRooms(out)
	return out, nil
}

func sortRooms(rooms []domain.Room) {
	slices.SortFunc(rooms, func(a, b domain.Room) int {
		return cmp.Or(
			cmp.Compare(a.Building, b.Building),
			cmp.Compare(a.Floor, b.Floor),
			cmp.Compare(a.Number, b.Number),
		)
	})
}
