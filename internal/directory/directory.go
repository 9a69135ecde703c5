// Package directory resolves user identities to their profile and role.
package directory

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/emr-backend/internal/access"
)

var ErrUserNotFound = errors.New("user not found")

type User struct {
	ID         uuid.UUID
	Username   string
	FirstName  string
	LastName   string
	Email      *string
	Role       access.Role
	Speciality *string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (u User) Actor() access.Actor {
	return access.Actor{ID: u.ID, Role: u.Role}
}

func (u User) DisplayName() string {
	switch {
	case u.FirstName == "" && u.LastName == "":
		return u.Username
	case u.LastName == "":
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}

// Directory looks users up by id.
type Directory interface {
	GetUser(ctx context.Context, id uuid.UUID) (*User, error)
}

// Memory is an in-process Directory.
type Memory struct {
	mu    sync.RWMutex
	users map[uuid.UUID]User
}

func NewMemory(users ...User) *Memory {
	m := &Memory{users: make(map[uuid.UUID]User, len(users))}
	for _, u := range users {
		m.users[u.ID] = u
	}
	return m
}

func (m *Memory) Put(u User) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
}

func (m *Memory) GetUser(_ context.Context, id uuid.UUID) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrUserNotFound
	}
	return &u, nil
}
