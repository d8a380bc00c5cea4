package identity

import (
	"context"
	"sort"
	"sync"

	"github.com/syno-oncall/oncall/internal/contact"
)

type memoryRepository struct {
	mu       sync.RWMutex
	users    map[int64]User
	contacts map[int64]map[int]string
	modes    map[string]int
}

// NewMemoryRepository builds an in-memory user store for tests and local
// development. Contact modes come from contact.DefaultModes.
func NewMemoryRepository() Repository {
	modes := make(map[string]int, len(contact.DefaultModes))
	for _, m := range contact.DefaultModes {
		modes[m.Name] = m.ID
	}
	return &memoryRepository{
		users:    make(map[int64]User),
		contacts: make(map[int64]map[int]string),
		modes:    modes,
	}
}

func (r *memoryRepository) FindByID(_ context.Context, id int64) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	user, ok := r.users[id]
	if !ok {
		return User{}, ErrUserNotFound
	}
	return user, nil
}

func (r *memoryRepository) FindByName(_ context.Context, name string) (User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, user := range r.users {
		if user.Name == name {
			return user, nil
		}
	}
	return User{}, ErrUserNotFound
}

func (r *memoryRepository) Create(_ context.Context, user User, contactModes []int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.users[user.ID]; exists {
		return ErrUserExists
	}
	for _, existing := range r.users {
		if existing.Name == user.Name {
			return ErrUserExists
		}
	}
	r.users[user.ID] = user
	rows := make(map[int]string, len(contactModes))
	for _, modeID := range contactModes {
		rows[modeID] = ""
	}
	r.contacts[user.ID] = rows
	return nil
}

func (r *memoryRepository) UpdatePasswordHash(_ context.Context, id int64, hash []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	user, ok := r.users[id]
	if !ok {
		return ErrUserNotFound
	}
	user.PasswordHash = hash
	r.users[id] = user
	return nil
}

func (r *memoryRepository) Contacts(_ context.Context, userID int64) ([]Contact, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make(map[int]string, len(r.modes))
	for name, id := range r.modes {
		names[id] = name
	}
	out := make([]Contact, 0, len(r.contacts[userID]))
	for modeID, dest := range r.contacts[userID] {
		out = append(out, Contact{ModeID: modeID, Mode: names[modeID], Destination: dest})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ModeID < out[j].ModeID })
	return out, nil
}

func (r *memoryRepository) SetContact(_ context.Context, userID int64, mode, destination string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	modeID, ok := r.modes[mode]
	if !ok {
		return ErrModeNotFound
	}
	rows, ok := r.contacts[userID]
	if !ok {
		rows = make(map[int]string)
		r.contacts[userID] = rows
	}
	rows[modeID] = destination
	return nil
}
