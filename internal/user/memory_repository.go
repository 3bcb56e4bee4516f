package user

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memoryRepository struct {
	mu      sync.RWMutex
	byID    map[string]*User
	byEmail map[string]string
}

func NewMemoryRepository() Repository {
	return &memoryRepository{
		byID:    make(map[string]*User),
		byEmail: make(map[string]string),
	}
}

func (r *memoryRepository) GetByEmail(ctx context.Context, email string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, ErrNotFound
	}
	out := *r.byID[id]
	return &out, nil
}

func (r *memoryRepository) GetByID(ctx context.Context, id string) (*User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := *u
	return &out, nil
}

func (r *memoryRepository) Create(ctx context.Context, u *User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[u.Email]; taken {
		return ErrEmailAlreadyUsed
	}

	u.ID = uuid.NewString()
	u.CreatedAt = time.Now().UTC()

	stored := *u
	r.byID[u.ID] = &stored
	r.byEmail[u.Email] = u.ID
	return nil
}

func (r *memoryRepository) UpdateLastLogin(ctx context.Context, id string, t time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	u, ok := r.byID[id]
	if !ok {
		return ErrNotFound
	}
	u.LastLoginAt = &t
	return nil
}
