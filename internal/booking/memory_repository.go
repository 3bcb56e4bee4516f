package booking

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/nekogravitycat/reservation-backend/internal/interval"
	"github.com/nekogravitycat/reservation-backend/internal/pkg/keylock"
	"github.com/nekogravitycat/reservation-backend/internal/resource"
)

// memoryRepository keeps bookings in process memory.
// Each resource has its own lock and its own index of confirmed bookings,
// so admissions on different resources never wait for each other.
type memoryRepository struct {
	locks     *keylock.Set
	resources ResourceGetter

	mu        sync.RWMutex
	byID      map[string]*Booking
	confirmed map[string]*interval.Index[string]
}

// NewMemoryRepository waits at most lockTimeout for a resource's lock.
// When resources is non-nil, admission re-checks under the lock that the
// resource is still active.
func NewMemoryRepository(lockTimeout time.Duration, resources ResourceGetter) Repository {
	return &memoryRepository{
		locks:     keylock.New(lockTimeout),
		resources: resources,
		byID:      make(map[string]*Booking),
		confirmed: make(map[string]*interval.Index[string]),
	}
}

func (r *memoryRepository) acquire(ctx context.Context, resourceID string) (func(), error) {
	release, err := r.locks.Acquire(ctx, resourceID)
	if errors.Is(err, keylock.ErrTimeout) {
		return nil, ErrBusy
	}
	return release, err
}

func (r *memoryRepository) Admit(ctx context.Context, b *Booking) error {
	release, err := r.acquire(ctx, b.ResourceID)
	if err != nil {
		return err
	}
	defer release()

	if r.resources != nil {
		if _, err := r.resources.GetByID(ctx, b.ResourceID); err != nil {
			if errors.Is(err, resource.ErrNotFound) {
				return ErrResourceNotFound
			}
			return err
		}
	}

	r.mu.RLock()
	_, overlaps := r.index(b.ResourceID).FirstOverlap(b.Interval)
	r.mu.RUnlock()
	if overlaps {
		return ErrTimeConflict
	}

	now := time.Now().UTC()
	stored := *b
	stored.ID = uuid.NewString()
	stored.Status = StatusConfirmed
	stored.CreatedAt = now
	stored.UpdatedAt = now

	r.mu.Lock()
	r.byID[stored.ID] = &stored
	idx, ok := r.confirmed[stored.ResourceID]
	if !ok {
		idx = interval.NewIndex[string]()
		r.confirmed[stored.ResourceID] = idx
	}
	idx.Insert(stored.ID, stored.Interval, stored.ID)
	r.mu.Unlock()

	*b = stored
	return nil
}

func (r *memoryRepository) Cancel(ctx context.Context, id string) (*Booking, bool, error) {
	r.mu.RLock()
	existing, ok := r.byID[id]
	var resourceID string
	if ok {
		resourceID = existing.ResourceID
	}
	r.mu.RUnlock()
	if !ok {
		return nil, false, ErrNotFound
	}

	release, err := r.acquire(ctx, resourceID)
	if err != nil {
		return nil, false, err
	}
	defer release()

	r.mu.Lock()
	defer r.mu.Unlock()

	stored := r.byID[id]
	if stored.Status == StatusCancelled {
		out := *stored
		return &out, false, nil
	}

	stored.Status = StatusCancelled
	stored.UpdatedAt = time.Now().UTC()
	r.confirmed[resourceID].Delete(stored.ID, stored.Interval)

	out := *stored
	return &out, true, nil
}

func (r *memoryRepository) GetByID(ctx context.Context, id string) (*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *b
	return &out, nil
}

func (r *memoryRepository) ListByUser(ctx context.Context, userID string, endsAfter time.Time) ([]*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []*Booking
	for _, b := range r.byID {
		if b.UserID != userID {
			continue
		}
		if !endsAfter.IsZero() && b.Interval.End.Before(endsAfter) {
			continue
		}
		cp := *b
		out = append(out, &cp)
	}

	slices.SortFunc(out, func(a, b *Booking) int {
		if c := a.Interval.Start.Compare(b.Interval.Start); c != 0 {
			return c
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
	return out, nil
}

func (r *memoryRepository) ListByResource(ctx context.Context, resourceID string, window *interval.Interval) ([]*Booking, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	idx, ok := r.confirmed[resourceID]
	if !ok {
		return nil, nil
	}

	var ids []string
	if window != nil {
		ids = idx.Overlapping(*window)
	} else {
		ids = idx.All()
	}

	out := make([]*Booking, 0, len(ids))
	for _, id := range ids {
		cp := *r.byID[id]
		out = append(out, &cp)
	}
	return out, nil
}

// index returns the resource's confirmed index, or an empty one.
// Callers hold r.mu.
func (r *memoryRepository) index(resourceID string) *interval.Index[string] {
	if idx, ok := r.confirmed[resourceID]; ok {
		return idx
	}
	return interval.NewIndex[string]()
}
