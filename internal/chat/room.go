// Package chat implements the two-party chat gateway: credential gating,
// per-pair rooms, persistence and relay of messages to connected members.
package chat

import (
	"strings"

	"github.com/google/uuid"
)

// RoomKey identifies a conversation independently of participant order.
type RoomKey string

// Room is the unordered pair of participants. A sorts before B.
type Room struct {
	Key RoomKey
	A   uuid.UUID
	B   uuid.UUID
}

func NewRoom(x, y uuid.UUID) Room {
	a, b := x, y
	if strings.Compare(a.String(), b.String()) > 0 {
		a, b = b, a
	}
	return Room{
		Key: RoomKey("chat_" + a.String() + "_" + b.String()),
		A:   a,
		B:   b,
	}
}

func (r Room) Has(id uuid.UUID) bool {
	return id == r.A || id == r.B
}

// Counterpart returns the other participant. ok is false when id is not a
// member.
func (r Room) Counterpart(id uuid.UUID) (other uuid.UUID, ok bool) {
	switch id {
	case r.A:
		return r.B, true
	case r.B:
		return r.A, true
	}
	return uuid.Nil, false
}
