package resource

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryRepository keeps resources in process memory, in insertion order.
type memoryRepository struct {
	mu    sync.RWMutex
	order []string
	byID  map[string]*Resource
}

func NewMemoryRepository() Repository {
	return &memoryRepository{byID: make(map[string]*Resource)}
}

func (r *memoryRepository) Create(ctx context.Context, res *Resource) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.byID {
		if existing.Type == res.Type && existing.Number == res.Number {
			return ErrDuplicate
		}
	}

	now := time.Now().UTC()
	res.ID = uuid.NewString()
	res.IsActive = true
	res.CreatedAt = now
	res.UpdatedAt = now

	stored := *res
	r.byID[res.ID] = &stored
	r.order = append(r.order, res.ID)
	return nil
}

func (r *memoryRepository) GetByID(ctx context.Context, id string) (*Resource, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	res, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *res
	return &out, nil
}

func (r *memoryRepository) List(ctx context.Context, filter Filter) ([]*Resource, int, error) {
	filter.normalize()

	r.mu.RLock()
	defer r.mu.RUnlock()

	var matched []*Resource
	for _, id := range r.order {
		res := r.byID[id]
		if !res.IsActive {
			continue
		}
		if filter.Type != "" && res.Type != filter.Type {
			continue
		}
		out := *res
		matched = append(matched, &out)
	}

	total := len(matched)
	from := min(filter.offset(), total)
	to := min(from+filter.PageSize, total)
	return matched[from:to], total, nil
}

func (r *memoryRepository) Update(ctx context.Context, res *Resource) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byID[res.ID]
	if !ok || !stored.IsActive {
		return ErrNotFound
	}
	stored.Description = res.Description
	stored.Capacity = res.Capacity
	stored.UpdatedAt = time.Now().UTC()
	res.UpdatedAt = stored.UpdatedAt
	return nil
}

func (r *memoryRepository) Deactivate(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.byID[id]
	if !ok || !stored.IsActive {
		return ErrNotFound
	}
	stored.IsActive = false
	stored.UpdatedAt = time.Now().UTC()
	return nil
}
