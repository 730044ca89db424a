package memory

import (
	"context"
	"sync"
	"time"

	"helpdesk_bot/internal/domain/user"
)

type externalKey struct {
	source     string
	externalID int64
}

// UserRepository is an in-memory user.Repository.
type UserRepository struct {
	mu         sync.RWMutex
	users      map[int64]*user.User
	byExternal map[externalKey]int64
	nextID     int64
}

func NewUserRepository() *UserRepository {
	return &UserRepository{
		users:      make(map[int64]*user.User),
		byExternal: make(map[externalKey]int64),
		nextID:     1,
	}
}

func (r *UserRepository) Create(_ context.Context, u *user.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := externalKey{source: u.Source, externalID: u.ExternalID}
	if id, ok := r.byExternal[key]; ok {
		existing := r.users[id]
		existing.Username = u.Username
		existing.FullName = u.FullName
		*u = *existing
		return nil
	}

	u.ID = r.nextID
	r.nextID++
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now()
	}
	stored := *u
	r.users[u.ID] = &stored
	r.byExternal[key] = u.ID
	return nil
}

func (r *UserRepository) GetByID(_ context.Context, id int64) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	u, ok := r.users[id]
	if !ok {
		return nil, user.ErrNotFound
	}
	out := *u
	return &out, nil
}

func (r *UserRepository) GetByExternalID(_ context.Context, source string, externalID int64) (*user.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byExternal[externalKey{source: source, externalID: externalID}]
	if !ok {
		return nil, user.ErrNotFound
	}
	out := *r.users[id]
	return &out, nil
}
