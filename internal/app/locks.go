package app

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"hotel_inventory/internal/adapters/observability"
	"hotel_inventory/internal/domain"
)

// LockManager is the in-process RoomLocker: one weight-1 semaphore per room,
// acquired in sorted order so multi-room operations cannot deadlock.
type LockManager struct {
	mu   sync.Mutex
	sems map[string]*semaphore.Weighted
	wait time.Duration
}

func NewLockManager(wait time.Duration) *LockManager {
	if wait <= 0 {
		wait = 2 * time.Second
	}
	return &LockManager{sems: map[string]*semaphore.Weighted{}, wait: wait}
}

func (m *LockManager) Lock(ctx context.Context, roomIDs ...string) (func(), error) {
	ids := sortedUnique(roomIDs)
	start := time.Now()
	lctx, cancel := context.WithTimeout(ctx, m.wait)
	defer cancel()

	held := make([]*semaphore.Weighted, 0, len(ids))
	release := func() {
		for i := len(held) - 1; i >= 0; i-- {
			held[i].Release(1)
		}
	}
	for _, id := range ids {
		s := m.sem(id)
		if err := s.Acquire(lctx, 1); err != nil {
			release()
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			if errors.Is(err, context.DeadlineExceeded) {
				return nil, fmt.Errorf("room %s: %w", id, domain.ErrLockTimeout)
			}
			return nil, err
		}
		held = append(held, s)
	}
	observability.ObserveLockWait("local", time.Since(start))
	return release, nil
}

func (m *LockManager) Shared() bool { return false }

func (m *LockManager) sem(id string) *semaphore.Weighted {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sems[id]
	if !ok {
		s = semaphore.NewWeighted(1)
		m.sems[id] = s
	}
	return s
}

func sortedUnique(ids []string) []string {
	out := slices.Clone(ids)
	slices.Sort(out)
	return slices.Compact(out)
}
