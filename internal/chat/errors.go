package chat

import (
	"errors"
	"fmt"

	"github.com/gorilla/websocket"
)

// Close codes sent to clients whose handshake is refused.
const (
	CloseNoCredential      = 4400
	CloseInvalidCredential = 4401
	CloseNotParticipant    = 4403
)

// CloseError is a refused handshake. Code and Reason are written in the
// close control frame.
type CloseError struct {
	Code   int
	Reason string
}

func (e *CloseError) Error() string {
	return fmt.Sprintf("chat: %s (%d)", e.Reason, e.Code)
}

var (
	ErrNoCredential      = &CloseError{Code: CloseNoCredential, Reason: "no credential"}
	ErrInvalidCredential = &CloseError{Code: CloseInvalidCredential, Reason: "invalid credential"}
	ErrNotParticipant    = &CloseError{Code: CloseNotParticipant, Reason: "not a participant"}
	ErrUnavailable       = &CloseError{Code: websocket.CloseInternalServerErr, Reason: "unavailable"}

	ErrSessionClosed = errors.New("chat: session is not open")
)
