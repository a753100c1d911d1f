package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"

	"hotel_inventory/internal/domain"
)

// SweepReport counts what one sweep touched.
type SweepReport struct {
	Rooms     int
	Refreshed int
	NoShows   int
	Failed    int
}

// Sweeper re-derives room status as days pass and, when enabled, marks
// confirmed bookings whose check-in day has gone by as no_show.
type Sweeper struct {
	eng     *Engine
	workers int
	noShow  bool
	log     zerolog.Logger
}

func NewSweeper(eng *Engine, workers int, noShow bool, log zerolog.Logger) *Sweeper {
	if workers <= 0 {
		workers = 1
	}
	return &Sweeper{eng: eng, workers: workers, noShow: noShow, log: log}
}

// Sweep visits every room once with at most workers rooms in flight.
func (s *Sweeper) Sweep(ctx context.Context) (SweepReport, error) {
	ctx = WithActor(ctx, "sweeper")
	rooms, err := s.eng.run.repo.ListRooms(ctx, domain.RoomsQuery{})
	if err != nil {
		return SweepReport{}, err
	}

	var (
		rep SweepReport
		mu  sync.Mutex
		wg  sync.WaitGroup
	)
	rep.Rooms = len(rooms)
	sem := semaphore.NewWeighted(int64(s.workers))

	for _, r := range rooms {
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(ctx, 1); err != nil {
			break
		}
		wg.Add(1)
		go func(roomID string) {
			defer wg.Done()
			defer sem.Release(1)

			noShows, err := s.sweepRoom(ctx, roomID)
			mu.Lock()
			defer mu.Unlock()
			rep.NoShows += noShows
			if err != nil {
				rep.Failed++
				s.log.Warn().Str("room", roomID).Err(err).Msg("sweep failed")
				return
			}
			rep.Refreshed++
		}(r.ID)
	}
	wg.Wait()
	return rep, ctx.Err()
}

func (s *Sweeper) sweepRoom(ctx context.Context, roomID string) (int, error) {
	n := 0
	if s.noShow {
		bookings, err := s.eng.ListBookings(ctx, domain.BookingsQuery{RoomID: roomID, Status: domain.BookingConfirmed})
		if err != nil {
			return 0, err
		}
		today := domain.Day(s.eng.run.now())
		for _, b := range bookings {
			if !today.After(b.CheckIn) {
				continue
			}
			_, err := s.eng.MarkNoShow(ctx, b.ID)
			if _, ok := domain.AsRejection(err); ok {
				// changed state since the listing
				continue
			}
			if err != nil {
				return n, err
			}
			n++
		}
	}
	if _, err := s.eng.RefreshRoom(ctx, roomID); err != nil {
		return n, err
	}
	return n, nil
}
