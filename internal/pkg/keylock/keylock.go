package keylock

import (
	"context"
	"errors"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

// ErrTimeout is returned when a key could not be acquired within the wait bound.
var ErrTimeout = errors.New("keylock: acquire timed out")

type slot struct {
	sem  *semaphore.Weighted
	refs int
}

// Set hands out one exclusive lock per key. Locks on different keys never
// block each other. Slots are dropped once no holder or waiter references them.
type Set struct {
	mu    sync.Mutex
	slots map[string]*slot
	wait  time.Duration
}

// New creates a Set whose Acquire waits at most wait. A non-positive wait
// means acquisition is bounded only by the caller's context.
func New(wait time.Duration) *Set {
	return &Set{
		slots: make(map[string]*slot),
		wait:  wait,
	}
}

// Acquire blocks until key is held, the wait bound elapses (ErrTimeout) or
// ctx is done (ctx.Err()). The returned release func must be called exactly once.
func (s *Set) Acquire(ctx context.Context, key string) (func(), error) {
	sl := s.ref(key)

	waitCtx := ctx
	if s.wait > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(ctx, s.wait)
		defer cancel()
	}

	if err := sl.sem.Acquire(waitCtx, 1); err != nil {
		s.unref(key, sl)
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, ErrTimeout
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			sl.sem.Release(1)
			s.unref(key, sl)
		})
	}, nil
}

// Len returns the number of keys currently held or awaited.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.slots)
}

func (s *Set) ref(key string) *slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[key]
	if !ok {
		sl = &slot{sem: semaphore.NewWeighted(1)}
		s.slots[key] = sl
	}
	sl.refs++
	return sl
}

func (s *Set) unref(key string, sl *slot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl.refs--
	if sl.refs == 0 {
		delete(s.slots, key)
	}
}
