package chat

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"

	"github.com/hackgods/emr-backend/internal/access"
	"github.com/hackgods/emr-backend/internal/auth"
	"github.com/hackgods/emr-backend/internal/directory"
)

// tokenVerifier accepts tokens of the form registered with issue.
type tokenVerifier map[string]uuid.UUID

func (v tokenVerifier) Verify(token string) (uuid.UUID, error) {
	id, ok := v[token]
	if !ok {
		return uuid.Nil, auth.ErrInvalidToken
	}
	return id, nil
}

type recordingObserver struct {
	NopObserver
	mu        sync.Mutex
	rejected  []*CloseError
	dropped   []DropReason
	relayed   []Message
	skipped   int
	connected int
	closed    int
}

func (o *recordingObserver) Connected(*Session) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.connected++
}

func (o *recordingObserver) Rejected(_ Room, err *CloseError) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rejected = append(o.rejected, err)
}

func (o *recordingObserver) Disconnected(*Session) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.closed++
}

func (o *recordingObserver) FrameDropped(_ *Session, reason DropReason, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.dropped = append(o.dropped, reason)
}

func (o *recordingObserver) Relayed(_ *Session, m Message) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.relayed = append(o.relayed, m)
}

func (o *recordingObserver) DeliverySkipped(RoomKey, *Session) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.skipped++
}

func (o *recordingObserver) drops() []DropReason {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]DropReason(nil), o.dropped...)
}

type failingStore struct {
	*MemoryStore
}

func (failingStore) Insert(context.Context, *Message) error {
	return errors.New("disk full")
}

type people struct {
	doctor   directory.User
	patient  directory.User
	outsider directory.User
	tokens   tokenVerifier
	dir      *directory.Memory
}

func newPeople() people {
	p := people{
		doctor:   directory.User{ID: uuid.New(), Username: "dr.kim", Role: access.RoleDoctor},
		patient:  directory.User{ID: uuid.New(), Username: "pat", Role: access.RolePatient},
		outsider: directory.User{ID: uuid.New(), Username: "nurse.lee", Role: access.RoleNurse},
	}
	p.dir = directory.NewMemory(p.doctor, p.patient, p.outsider)
	p.tokens = tokenVerifier{
		"doctor-token":   p.doctor.ID,
		"patient-token":  p.patient.ID,
		"outsider-token": p.outsider.ID,
		"ghost-token":    uuid.New(),
	}
	return p
}
