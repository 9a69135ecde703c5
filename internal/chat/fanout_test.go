package chat

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedisFanout_RelaysAcrossInstances(t *testing.T) {
	mr := miniredis.RunT(t)
	p := newPeople()
	store := NewMemoryStore()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	newInstance := func() *Gateway {
		rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
		t.Cleanup(func() { _ = rdb.Close() })

		fanout := NewRedisFanout(rdb, zerolog.Nop())
		gw := NewGateway(p.tokens, p.dir, store, WithFanout(fanout))

		ready := make(chan struct{})
		go func() { _ = fanout.Run(ctx, gw, ready) }()
		select {
		case <-ready:
		case <-time.After(2 * time.Second):
			t.Fatal("fanout did not subscribe")
		}
		return gw
	}

	west := newInstance()
	east := newInstance()

	doc, err := west.Connect(ctx, p.doctor.ID, p.patient.ID, "doctor-token")
	require.NoError(t, err)
	pat, err := east.Connect(ctx, p.doctor.ID, p.patient.ID, "patient-token")
	require.NoError(t, err)

	require.NoError(t, west.Receive(ctx, doc, []byte(`{"message":"lab results are in"}`)))

	want := Frame{Sender: p.doctor.ID, Message: "lab results are in"}
	for _, s := range []*Session{doc, pat} {
		select {
		case raw := <-s.Send:
			var f Frame
			require.NoError(t, json.Unmarshal(raw, &f))
			assert.Equal(t, want, f)
		case <-time.After(2 * time.Second):
			t.Fatalf("no frame delivered to %s", s.UserID)
		}
	}

	history, err := store.History(ctx, p.doctor.ID, p.patient.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestRedisFanout_StopsOnCancel(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	fanout := NewRedisFanout(rdb, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	ready := make(chan struct{})
	go func() { done <- fanout.Run(ctx, NewGateway(nil, nil, nil), ready) }()
	<-ready
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
