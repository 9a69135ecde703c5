package chat

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/hackgods/emr-backend/internal/access"
	"github.com/hackgods/emr-backend/internal/directory"
)

// CredentialVerifier resolves a bearer token to the user it was issued to.
type CredentialVerifier interface {
	Verify(token string) (uuid.UUID, error)
}

// Frame is the relay payload sent to every room member.
type Frame struct {
	Sender  uuid.UUID `json:"sender"`
	Message string    `json:"message"`
}

type inbound struct {
	Message *string `json:"message"`
}

const defaultSendBuffer = 64

type Gateway struct {
	verifier   CredentialVerifier
	dir        directory.Directory
	store      Store
	fanout     Fanout
	observer   Observer
	reg        *registry
	sendBuffer int
}

type Option func(*Gateway)

func WithObserver(o Observer) Option {
	return func(g *Gateway) { g.observer = o }
}

// WithFanout replaces in-process delivery, for example with a RedisFanout.
func WithFanout(f Fanout) Option {
	return func(g *Gateway) { g.fanout = f }
}

// WithSendBuffer sets the number of frames queued per session before
// further frames to it are skipped.
func WithSendBuffer(n int) Option {
	return func(g *Gateway) { g.sendBuffer = n }
}

func NewGateway(verifier CredentialVerifier, dir directory.Directory, store Store, opts ...Option) *Gateway {
	g := &Gateway{
		verifier:   verifier,
		dir:        dir,
		store:      store,
		observer:   NopObserver{},
		reg:        newRegistry(),
		sendBuffer: defaultSendBuffer,
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.fanout == nil {
		g.fanout = NewLocalFanout(g)
	}
	return g
}

// Connect authenticates token and admits its holder to the room of a and
// b. A refused handshake returns one of the *CloseError sentinels; the
// session is then already closed.
func (g *Gateway) Connect(ctx context.Context, a, b uuid.UUID, token string) (*Session, error) {
	room := NewRoom(a, b)
	s := newSession(room, g.sendBuffer)

	s.setState(StateAuthenticating)
	if token == "" {
		return nil, g.reject(s, ErrNoCredential)
	}

	userID, err := g.verifier.Verify(token)
	if err != nil {
		return nil, g.reject(s, ErrInvalidCredential)
	}

	user, err := g.dir.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, directory.ErrUserNotFound) {
			return nil, g.reject(s, ErrInvalidCredential)
		}
		g.reject(s, ErrUnavailable)
		return nil, fmt.Errorf("look up chat user %s: %w", userID, err)
	}
	s.UserID = user.ID
	s.setState(StateAuthorized)

	if err := access.Authorize(user.Actor(), access.JoinChat, access.Conversation(room.A, room.B)); err != nil {
		return nil, g.reject(s, ErrNotParticipant)
	}

	g.reg.add(s)
	s.setState(StateOpen)
	g.observer.Connected(s)
	return s, nil
}

func (g *Gateway) reject(s *Session, cerr *CloseError) error {
	s.close()
	g.observer.Rejected(s.Room, cerr)
	return cerr
}

// Disconnect removes s from its room and closes it. Calling it again, or
// for a session that never joined, is a no-op.
func (g *Gateway) Disconnect(s *Session) {
	if s == nil {
		return
	}
	if g.reg.remove(s) {
		g.observer.Disconnected(s)
	}
}

// Receive handles one inbound frame from s. Frames that are not a JSON
// object with a string "message" are dropped without closing the session.
// Accepted messages are persisted and then broadcast to every member of the
// room, the sender included.
func (g *Gateway) Receive(ctx context.Context, s *Session, raw []byte) error {
	if s.State() != StateOpen {
		return ErrSessionClosed
	}

	var in inbound
	if err := json.Unmarshal(raw, &in); err != nil {
		g.observer.FrameDropped(s, DropMalformed, err)
		return nil
	}
	if in.Message == nil {
		g.observer.FrameDropped(s, DropMissingMessage, nil)
		return nil
	}

	receiver, _ := s.Room.Counterpart(s.UserID)
	msg := Message{
		SenderID:   s.UserID,
		ReceiverID: receiver,
		Body:       *in.Message,
	}
	if err := g.store.Insert(ctx, &msg); err != nil {
		g.observer.FrameDropped(s, DropPersistFailed, err)
		return nil
	}

	frame, err := json.Marshal(Frame{Sender: s.UserID, Message: msg.Body})
	if err != nil {
		g.observer.FrameDropped(s, DropMalformed, err)
		return nil
	}

	if err := g.fanout.Publish(ctx, s.Room.Key, frame); err != nil {
		g.observer.FrameDropped(s, DropPublishFailed, err)
		return nil
	}

	g.observer.Relayed(s, msg)
	return nil
}

// Deliver queues frame for every local member of the room.
func (g *Gateway) Deliver(key RoomKey, frame []byte) {
	_, skipped := g.reg.deliver(key, frame)
	for _, s := range skipped {
		g.observer.DeliverySkipped(key, s)
	}
}

// Members returns how many sessions are connected to the room locally.
func (g *Gateway) Members(key RoomKey) int {
	return g.reg.members(key)
}

// Rooms returns the number of rooms with at least one local member.
func (g *Gateway) Rooms() int {
	return g.reg.rooms()
}
