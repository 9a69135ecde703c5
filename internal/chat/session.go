package chat

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
)

type State int32

const (
	StateConnecting State = iota
	StateAuthenticating
	StateAuthorized
	StateOpen
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "connecting"
	case StateAuthenticating:
		return "authenticating"
	case StateAuthorized:
		return "authorized"
	case StateOpen:
		return "open"
	case StateClosed:
		return "closed"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// Session is one duplex connection bound to a room. Outbound frames are
// queued on Send; the transport drains it until it is closed.
type Session struct {
	ID     uuid.UUID
	Room   Room
	UserID uuid.UUID

	Send chan []byte

	state     atomic.Int32
	closeOnce sync.Once
}

func newSession(room Room, buffer int) *Session {
	return &Session{
		ID:   uuid.New(),
		Room: room,
		Send: make(chan []byte, buffer),
	}
}

func (s *Session) State() State {
	return State(s.state.Load())
}

func (s *Session) setState(st State) {
	s.state.Store(int32(st))
}

// close marks the session closed and closes Send exactly once. It reports
// whether this call did the closing.
func (s *Session) close() bool {
	closed := false
	s.closeOnce.Do(func() {
		s.setState(StateClosed)
		close(s.Send)
		closed = true
	})
	return closed
}
