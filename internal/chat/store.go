package chat

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

type Message struct {
	ID         int64
	SenderID   uuid.UUID
	ReceiverID uuid.UUID
	Body       string
	CreatedAt  time.Time
	IsRead     bool
}

// Store persists chat messages. Messages are immutable apart from IsRead.
type Store interface {
	// Insert assigns ID and CreatedAt.
	Insert(ctx context.Context, m *Message) error
	// History returns every message exchanged by a and b, oldest first.
	History(ctx context.Context, a, b uuid.UUID) ([]Message, error)
	// Conversations returns the distinct users that user has exchanged
	// messages with, most recent first.
	Conversations(ctx context.Context, user uuid.UUID) ([]uuid.UUID, error)
	// MarkRead flags messages sent by counterpart to reader as read.
	MarkRead(ctx context.Context, reader, counterpart uuid.UUID) (int64, error)
}

// MemoryStore is an in-process Store.
type MemoryStore struct {
	mu       sync.Mutex
	messages []Message
	now      func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: time.Now}
}

func (s *MemoryStore) Insert(_ context.Context, m *Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m.ID = int64(len(s.messages) + 1)
	m.CreatedAt = s.now()
	if n := len(s.messages); n > 0 && m.CreatedAt.Before(s.messages[n-1].CreatedAt) {
		m.CreatedAt = s.messages[n-1].CreatedAt
	}
	s.messages = append(s.messages, *m)
	return nil
}

func (s *MemoryStore) History(_ context.Context, a, b uuid.UUID) ([]Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Message
	for _, m := range s.messages {
		if (m.SenderID == a && m.ReceiverID == b) || (m.SenderID == b && m.ReceiverID == a) {
			out = append(out, m)
		}
	}
	return out, nil
}

func (s *MemoryStore) Conversations(_ context.Context, user uuid.UUID) ([]uuid.UUID, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	last := make(map[uuid.UUID]int64)
	for _, m := range s.messages {
		switch user {
		case m.SenderID:
			last[m.ReceiverID] = m.ID
		case m.ReceiverID:
			last[m.SenderID] = m.ID
		}
	}

	out := make([]uuid.UUID, 0, len(last))
	for id := range last {
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return last[out[i]] > last[out[j]] })
	return out, nil
}

func (s *MemoryStore) MarkRead(_ context.Context, reader, counterpart uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var n int64
	for i := range s.messages {
		m := &s.messages[i]
		if m.ReceiverID == reader && m.SenderID == counterpart && !m.IsRead {
			m.IsRead = true
			n++
		}
	}
	return n, nil
}
