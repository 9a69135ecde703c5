package chat

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRoom_OrderIndependent(t *testing.T) {
	a, b := uuid.New(), uuid.New()

	r1 := NewRoom(a, b)
	r2 := NewRoom(b, a)

	assert.Equal(t, r1, r2)
	assert.True(t, r1.Has(a))
	assert.True(t, r1.Has(b))
	assert.False(t, r1.Has(uuid.New()))

	other, ok := r1.Counterpart(a)
	assert.True(t, ok)
	assert.Equal(t, b, other)

	_, ok = r1.Counterpart(uuid.New())
	assert.False(t, ok)
}

func TestConnect_Refusals(t *testing.T) {
	p := newPeople()
	obs := &recordingObserver{}
	gw := NewGateway(p.tokens, p.dir, NewMemoryStore(), WithObserver(obs))
	ctx := context.Background()

	tests := []struct {
		name  string
		token string
		want  *CloseError
	}{
		{"no token", "", ErrNoCredential},
		{"unknown token", "forged", ErrInvalidCredential},
		{"token for missing user", "ghost-token", ErrInvalidCredential},
		{"third party", "outsider-token", ErrNotParticipant},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := gw.Connect(ctx, p.doctor.ID, p.patient.ID, tt.token)
			assert.Nil(t, s)
			assert.ErrorIs(t, err, tt.want)

			var cerr *CloseError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.want.Code, cerr.Code)
		})
	}

	assert.Equal(t, 0, gw.Members(NewRoom(p.doctor.ID, p.patient.ID).Key))
	assert.Len(t, obs.rejected, len(tests))
	assert.Equal(t, 4400, ErrNoCredential.Code)
	assert.Equal(t, 4401, ErrInvalidCredential.Code)
	assert.Equal(t, 4403, ErrNotParticipant.Code)
}

func TestConnect_AdmitsParticipant(t *testing.T) {
	p := newPeople()
	gw := NewGateway(p.tokens, p.dir, NewMemoryStore())

	s, err := gw.Connect(context.Background(), p.doctor.ID, p.patient.ID, "doctor-token")
	require.NoError(t, err)

	assert.Equal(t, StateOpen, s.State())
	assert.Equal(t, p.doctor.ID, s.UserID)
	assert.Equal(t, 1, gw.Members(NewRoom(p.patient.ID, p.doctor.ID).Key))
	assert.Equal(t, 1, gw.Rooms())
}

func TestReceive_PersistsAndRelaysToEveryMember(t *testing.T) {
	p := newPeople()
	store := NewMemoryStore()
	gw := NewGateway(p.tokens, p.dir, store)
	ctx := context.Background()

	doc, err := gw.Connect(ctx, p.doctor.ID, p.patient.ID, "doctor-token")
	require.NoError(t, err)
	pat, err := gw.Connect(ctx, p.patient.ID, p.doctor.ID, "patient-token")
	require.NoError(t, err)

	require.NoError(t, gw.Receive(ctx, doc, []byte(`{"message":"hello"}`)))

	history, err := store.History(ctx, p.doctor.ID, p.patient.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, p.doctor.ID, history[0].SenderID)
	assert.Equal(t, p.patient.ID, history[0].ReceiverID)
	assert.Equal(t, "hello", history[0].Body)

	for _, s := range []*Session{doc, pat} {
		require.Len(t, s.Send, 1)
		var f Frame
		require.NoError(t, json.Unmarshal(<-s.Send, &f))
		assert.Equal(t, Frame{Sender: p.doctor.ID, Message: "hello"}, f)
	}
}

func TestReceive_DropsBadFrames(t *testing.T) {
	p := newPeople()
	store := NewMemoryStore()
	obs := &recordingObserver{}
	gw := NewGateway(p.tokens, p.dir, store, WithObserver(obs))
	ctx := context.Background()

	s, err := gw.Connect(ctx, p.doctor.ID, p.patient.ID, "doctor-token")
	require.NoError(t, err)

	for _, raw := range []string{`not json`, `{"text":"hi"}`, `{"message":42}`, `[]`} {
		assert.NoError(t, gw.Receive(ctx, s, []byte(raw)), raw)
	}

	assert.Equal(t, StateOpen, s.State())
	assert.Empty(t, s.Send)
	assert.Equal(t, []DropReason{DropMalformed, DropMissingMessage, DropMalformed, DropMalformed}, obs.drops())

	history, err := store.History(ctx, p.doctor.ID, p.patient.ID)
	require.NoError(t, err)
	assert.Empty(t, history)

	// the session keeps working afterwards
	require.NoError(t, gw.Receive(ctx, s, []byte(`{"message":"still here"}`)))
	assert.Len(t, s.Send, 1)
}

func TestReceive_PersistFailureDropsFrame(t *testing.T) {
	p := newPeople()
	obs := &recordingObserver{}
	gw := NewGateway(p.tokens, p.dir, failingStore{NewMemoryStore()}, WithObserver(obs))
	ctx := context.Background()

	s, err := gw.Connect(ctx, p.doctor.ID, p.patient.ID, "doctor-token")
	require.NoError(t, err)

	assert.NoError(t, gw.Receive(ctx, s, []byte(`{"message":"lost"}`)))
	assert.Empty(t, s.Send)
	assert.Equal(t, StateOpen, s.State())
	assert.Equal(t, []DropReason{DropPersistFailed}, obs.drops())
}

func TestDisconnect_Idempotent(t *testing.T) {
	p := newPeople()
	obs := &recordingObserver{}
	gw := NewGateway(p.tokens, p.dir, NewMemoryStore(), WithObserver(obs))
	ctx := context.Background()

	s, err := gw.Connect(ctx, p.doctor.ID, p.patient.ID, "doctor-token")
	require.NoError(t, err)

	gw.Disconnect(s)
	gw.Disconnect(s)
	gw.Disconnect(nil)

	assert.Equal(t, StateClosed, s.State())
	assert.Equal(t, 0, gw.Rooms())
	assert.Equal(t, 1, obs.closed)

	_, open := <-s.Send
	assert.False(t, open)

	assert.ErrorIs(t, gw.Receive(ctx, s, []byte(`{"message":"late"}`)), ErrSessionClosed)
}

func TestDeliver_SkipsSlowMembers(t *testing.T) {
	p := newPeople()
	obs := &recordingObserver{}
	gw := NewGateway(p.tokens, p.dir, NewMemoryStore(), WithObserver(obs), WithSendBuffer(1))
	ctx := context.Background()

	s, err := gw.Connect(ctx, p.doctor.ID, p.patient.ID, "doctor-token")
	require.NoError(t, err)

	require.NoError(t, gw.Receive(ctx, s, []byte(`{"message":"one"}`)))
	require.NoError(t, gw.Receive(ctx, s, []byte(`{"message":"two"}`)))

	assert.Len(t, s.Send, 1)
	assert.Equal(t, 1, obs.skipped)
	assert.Len(t, obs.relayed, 2)
}

func TestGateway_ConcurrentConnectDisconnectAndBroadcast(t *testing.T) {
	p := newPeople()
	gw := NewGateway(p.tokens, p.dir, NewMemoryStore(), WithSendBuffer(1024))
	ctx := context.Background()

	sender, err := gw.Connect(ctx, p.doctor.ID, p.patient.ID, "doctor-token")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			s, err := gw.Connect(ctx, p.doctor.ID, p.patient.ID, "patient-token")
			if assert.NoError(t, err) {
				gw.Disconnect(s)
			}
		}()
		go func() {
			defer wg.Done()
			assert.NoError(t, gw.Receive(ctx, sender, []byte(`{"message":"ping"}`)))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, gw.Members(sender.Room.Key))
	assert.Len(t, sender.Send, 20)
}
