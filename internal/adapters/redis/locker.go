package redisad

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"hotel_inventory/internal/adapters/observability"
	"hotel_inventory/internal/domain"
)

// releaseScript deletes the lock only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// extendScript pushes the expiry out only while the lock still carries our token.
var extendScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("PEXPIRE", KEYS[1], ARGV[2])
end
return 0
`)

// Locker is a RoomLocker shared by every process using the same Redis. Locks
// expire after ttl so a crashed holder cannot wedge a room; a live holder keeps
// extending them every ttl/3 until it unlocks.
type Locker struct {
	c      *redis.Client
	prefix string
	ttl    time.Duration
	wait   time.Duration
	poll   time.Duration
}

func NewLocker(c *redis.Client, ttl, wait time.Duration) *Locker {
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if wait <= 0 {
		wait = 2 * time.Second
	}
	return &Locker{c: c, prefix: "hotel:lock:room:", ttl: ttl, wait: wait, poll: 10 * time.Millisecond}
}

func (l *Locker) Shared() bool { return true }

// Lock acquires every room in sorted order, polling until wait elapses.
func (l *Locker) Lock(ctx context.Context, roomIDs ...string) (func(), error) {
	ids := slices.Clone(roomIDs)
	slices.Sort(ids)
	ids = slices.Compact(ids)

	token := uuid.NewString()
	start := time.Now()
	deadline := start.Add(l.wait)
	var held []string
	for _, id := range ids {
		key := l.prefix + id
		for {
			ok, err := l.c.SetNX(ctx, key, token, l.ttl).Result()
			if err != nil {
				l.release(held, token)
				return nil, fmt.Errorf("lock room %s: %w", id, err)
			}
			if ok {
				held = append(held, key)
				break
			}
			if time.Now().After(deadline) {
				l.release(held, token)
				return nil, fmt.Errorf("room %s: %w", id, domain.ErrLockTimeout)
			}
			select {
			case <-ctx.Done():
				l.release(held, token)
				return nil, ctx.Err()
			case <-time.After(l.poll):
			}
		}
	}
	observability.ObserveLockWait("redis", time.Since(start))

	stop := make(chan struct{})
	done := make(chan struct{})
	go l.keepAlive(held, token, stop, done)
	var once sync.Once
	return func() {
		once.Do(func() {
			close(stop)
			<-done
			l.release(held, token)
		})
	}, nil
}

func (l *Locker) keepAlive(keys []string, token string, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	tick := time.NewTicker(l.ttl / 3)
	defer tick.Stop()
	for {
		select {
		case <-stop:
			return
		case <-tick.C:
		}
		ctx, cancel := context.WithTimeout(context.Background(), l.ttl/3)
		for _, key := range keys {
			n, err := extendScript.Run(ctx, l.c, []string{key}, token, l.ttl.Milliseconds()).Int()
			if err != nil {
				log.Warn().Err(err).Str("key", key).Msg("room lock extend failed")
				continue
			}
			if n == 0 {
				cancel()
				log.Error().Str("key", key).Msg("room lock lost before unlock")
				return
			}
		}
		cancel()
	}
}

func (l *Locker) release(keys []string, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	for i := len(keys) - 1; i >= 0; i-- {
		if err := releaseScript.Run(ctx, l.c, []string{keys[i]}, token).Err(); err != nil {
			log.Warn().Err(err).Str("key", keys[i]).Msg("room lock release failed")
		}
	}
}
