package identity

import (
	"context"
	"sync"
	"time"
)

type memoryRepository struct {
	mu         sync.RWMutex
	users      map[string]User
	byEmail    map[string]string
	identities map[string]string
}

// NewMemoryRepository builds an in-memory user store for development and tests.
func NewMemoryRepository() Repository {
	return &memoryRepository{
		users:      make(map[string]User),
		byEmail:    make(map[string]string),
		identities: make(map[string]string),
	}
}

func identityKey(provider, subject string) string { return provider + "\x00" + subject }

func (r *memoryRepository) Create(_ context.Context, user User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.createLocked(user)
}

func (r *memoryRepository) createLocked(user User) error {
	if _, exists := r.users[user.ID]; exists {
		return ErrDuplicate
	}
	if user.Email != "" {
		if _, exists := r.byEmail[user.Email]; exists {
			return ErrDuplicate
		}
		r.byEmail[user.Email] = user.ID
	}
	r.users[user.ID] = user
	return nil
}

func (r *memoryRepository) CreateFederated(_ context.Context, user User, provider, subject string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.identities[identityKey(provider, subject)]; exists {
		return ErrDuplicate
	}
	if err := r.createLocked(user); err != nil {
		return err
	}
	r.identities[identityKey(provider, subject)] = user.ID
	return nil
}

func (r *memoryRepository) FindByEmail(_ context.Context, email string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byEmail[email]
	if !ok {
		return User{}, ErrNotFound
	}
	return r.users[id], nil
}

func (r *memoryRepository) FindByID(_ context.Context, id string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return User{}, ErrNotFound
	}
	return user, nil
}

func (r *memoryRepository) FindByFederated(_ context.Context, provider, subject string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.identities[identityKey(provider, subject)]
	if !ok {
		return User{}, ErrNotFound
	}
	return r.users[id], nil
}

func (r *memoryRepository) LinkFederated(_ context.Context, userID, provider, subject string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[userID]; !ok {
		return ErrNotFound
	}
	key := identityKey(provider, subject)
	if _, exists := r.identities[key]; exists {
		return ErrDuplicate
	}
	r.identities[key] = userID
	return nil
}

func (r *memoryRepository) TouchLogin(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return ErrNotFound
	}
	user.LastLogin = at.UTC()
	r.users[id] = user
	return nil
}
