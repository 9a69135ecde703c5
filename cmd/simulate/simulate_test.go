package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/hackgods/emr-backend/internal/appointment"
)

func TestClassify(t *testing.T) {
	conflict := []byte(`{"error":"slot_conflict","details":"time slot is already booked"}`)

	assert.Equal(t, outcomeSuccess, classify(http.StatusCreated, nil, http.StatusCreated, "slot_conflict"))
	assert.Equal(t, outcomeConflict, classify(http.StatusBadRequest, conflict, http.StatusCreated, "slot_conflict"))
	assert.Equal(t, outcomeError, classify(http.StatusBadRequest, []byte(`{"error":"invalid_date"}`), http.StatusCreated, "slot_conflict"))
	assert.Equal(t, outcomeError, classify(http.StatusInternalServerError, conflict, http.StatusCreated, "slot_conflict"))
	assert.Equal(t, outcomeError, classify(http.StatusNotFound, nil, http.StatusOK, ""))
}

func TestStartTimesAndDays(t *testing.T) {
	starts := startTimes(appointment.DefaultSlotPolicy())
	assert.Len(t, starts, 16)
	assert.Equal(t, "09:00", starts[0])
	assert.Equal(t, "16:30", starts[len(starts)-1])

	from := time.Date(2030, 12, 30, 15, 0, 0, 0, time.UTC)
	assert.Equal(t, []string{"2030-12-31", "2031-01-01"}, bookingDays(from, 2))
}

func TestOperationMetrics(t *testing.T) {
	var om OperationMetrics
	for i := 1; i <= 20; i++ {
		res := outcomeSuccess
		if i%5 == 0 {
			res = outcomeConflict
		}
		om.Record(time.Duration(i)*time.Millisecond, res)
	}
	om.Record(time.Second, outcomeError)

	assert.EqualValues(t, 21, om.Total)
	assert.EqualValues(t, 16, om.Success)
	assert.EqualValues(t, 4, om.Conflict)
	assert.EqualValues(t, 1, om.Error)

	_, min, max, p50, _ := om.Stats()
	assert.Equal(t, time.Millisecond, min)
	assert.Equal(t, time.Second, max)
	assert.Equal(t, 11*time.Millisecond, p50)

	sim := &Simulator{config: SimConfig{Duration: time.Second, Workers: 2}}
	sim.metrics.Booking.Record(time.Millisecond, outcomeConflict)
	var buf bytes.Buffer
	sim.PrintReport(&buf)
	assert.Contains(t, buf.String(), "Booking:")
	assert.Contains(t, buf.String(), "Conflicts: 1 (100.0%)")
	assert.NotContains(t, buf.String(), "Confirm:")
}

func TestRace_CountsOneWinner(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/appointments", r.URL.Path)
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"id":"` + uuid.NewString() + `"}`))
			return
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"slot_conflict"}`))
	}))
	defer srv.Close()

	sim := &Simulator{
		config: SimConfig{APIBaseURL: srv.URL, Workers: 8, Duration: 5 * time.Second},
		pool: &DataPool{
			Patients:      []uuid.UUID{uuid.New()},
			Practitioners: []Practitioner{{ID: uuid.New(), Token: "tok"}},
		},
		starts: []string{"10:00"},
		days:   []string{"2030-01-07"},
		client: srv.Client(),
		log:    zerolog.Nop(),
	}

	sim.Race()

	assert.EqualValues(t, 8, sim.metrics.Booking.Total)
	assert.EqualValues(t, 1, sim.metrics.Booking.Success)
	assert.EqualValues(t, 7, sim.metrics.Booking.Conflict)
}
