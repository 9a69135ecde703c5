package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/emr-backend/internal/appointment"
)

type Practitioner struct {
	ID    uuid.UUID
	Token string
}

type booked struct {
	ID           uuid.UUID
	Practitioner Practitioner
}

type DataPool struct {
	Patients      []uuid.UUID
	Practitioners []Practitioner

	mu           sync.RWMutex
	appointments []booked
}

func (dp *DataPool) AddAppointment(b booked) {
	dp.mu.Lock()
	defer dp.mu.Unlock()
	dp.appointments = append(dp.appointments, b)
}

func (dp *DataPool) RandomAppointment(rng *rand.Rand) (booked, bool) {
	dp.mu.RLock()
	defer dp.mu.RUnlock()
	if len(dp.appointments) == 0 {
		return booked{}, false
	}
	return dp.appointments[rng.Intn(len(dp.appointments))], true
}

type Metrics struct {
	Booking       OperationMetrics
	Update        OperationMetrics
	Slots         OperationMetrics
	ReadByID      OperationMetrics
	ListByPatient OperationMetrics
}

type Simulator struct {
	config  SimConfig
	pool    *DataPool
	starts  []string
	days    []string
	client  *http.Client
	metrics Metrics
	log     zerolog.Logger
}

// startTimes lists every slot start of the clinic day as HH:MM.
func startTimes(p appointment.SlotPolicy) []string {
	var out []string
	for cur := p.Open; cur+appointment.ClockTime(p.Width) <= p.Close; cur += appointment.ClockTime(p.Width) {
		out = append(out, cur.String())
	}
	return out
}

// bookingDays returns the n days after from as YYYY-MM-DD.
func bookingDays(from time.Time, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = appointment.FormatDate(from.AddDate(0, 0, i+1))
	}
	return out
}

func (s *Simulator) Run() {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	s.log.Info().Dur("duration", s.config.Duration).Int("workers", s.config.Workers).Msg("starting simulation")

	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			s.worker(ctx, workerID)
		}(i)
	}

	wg.Wait()
	s.log.Info().Msg("simulation complete")
}

// Race fires one booking per worker for a single practitioner, patient and
// window. Exactly one should succeed; the rest must be slot conflicts.
func (s *Simulator) Race() {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	as := s.randomPractitioner(rng)
	reqBody := map[string]any{
		"patient_id": s.pool.Patients[rng.Intn(len(s.pool.Patients))].String(),
		"date":       s.days[rng.Intn(len(s.days))],
		"time":       s.starts[rng.Intn(len(s.starts))],
	}

	s.log.Info().
		Str("practitioner_id", as.ID.String()).
		Interface("window", reqBody).
		Int("workers", s.config.Workers).
		Msg("starting booking race")

	ctx, cancel := context.WithTimeout(context.Background(), s.config.Duration)
	defer cancel()

	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < s.config.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			res, _, latency := s.call(ctx, as, http.MethodPost, "/api/appointments", reqBody, http.StatusCreated, "slot_conflict")
			s.metrics.Booking.Record(latency, res)
		}()
	}
	close(start)
	wg.Wait()

	if n := s.metrics.Booking.Success; n != 1 {
		s.log.Error().Int64("successes", n).Msg("booking race did not produce exactly one appointment")
	}
}

func (s *Simulator) worker(ctx context.Context, workerID int) {
	rng := rand.New(rand.NewSource(time.Now().UnixNano() + int64(workerID)))

	for {
		select {
		case <-ctx.Done():
			return
		default:
			r := rng.Float64()
			switch {
			case r < s.config.BookingRatio:
				s.doBooking(ctx, rng)
			case r < s.config.BookingRatio+s.config.UpdateRatio:
				s.doConfirm(ctx, rng)
			default:
				switch rng.Intn(3) {
				case 0:
					s.doSlots(ctx, rng)
				case 1:
					s.doReadByID(ctx, rng)
				case 2:
					s.doListByPatient(ctx, rng)
				}
			}
		}
	}
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeConflict
	outcomeError
)

// call sends one request as the practitioner and classifies the reply.
// conflictCode names the error code that counts as an expected rejection.
func (s *Simulator) call(ctx context.Context, as Practitioner, method, path string, body any, want int, conflictCode string) (outcome, []byte, time.Duration) {
	var rdr io.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		rdr = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.config.APIBaseURL+path, rdr)
	if err != nil {
		return outcomeError, nil, 0
	}
	req.Header.Set("Authorization", "Bearer "+as.Token)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := s.client.Do(req)
	latency := time.Since(start)
	if err != nil {
		return outcomeError, nil, latency
	}
	defer resp.Body.Close()

	payload, _ := io.ReadAll(resp.Body)
	return classify(resp.StatusCode, payload, want, conflictCode), payload, latency
}

func classify(status int, payload []byte, want int, conflictCode string) outcome {
	if status == want {
		return outcomeSuccess
	}
	if conflictCode != "" && status < http.StatusInternalServerError {
		var e struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(payload, &e) == nil && e.Error == conflictCode {
			return outcomeConflict
		}
	}
	return outcomeError
}

func (s *Simulator) randomPractitioner(rng *rand.Rand) Practitioner {
	return s.pool.Practitioners[rng.Intn(len(s.pool.Practitioners))]
}

func (s *Simulator) doBooking(ctx context.Context, rng *rand.Rand) {
	as := s.randomPractitioner(rng)
	reqBody := map[string]any{
		"patient_id": s.pool.Patients[rng.Intn(len(s.pool.Patients))].String(),
		"date":       s.days[rng.Intn(len(s.days))],
		"time":       s.starts[rng.Intn(len(s.starts))],
	}

	res, payload, latency := s.call(ctx, as, http.MethodPost, "/api/appointments", reqBody, http.StatusCreated, "slot_conflict")
	if res == outcomeSuccess {
		var appt struct {
			ID uuid.UUID `json:"id"`
		}
		if json.Unmarshal(payload, &appt) == nil && appt.ID != uuid.Nil {
			s.pool.AddAppointment(booked{ID: appt.ID, Practitioner: as})
		}
	}
	s.metrics.Booking.Record(latency, res)
}

func (s *Simulator) doConfirm(ctx context.Context, rng *rand.Rand) {
	appt, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}

	path := fmt.Sprintf("/api/appointments/%s", appt.ID)
	res, _, latency := s.call(ctx, appt.Practitioner, http.MethodPatch, path, map[string]string{"status": "Confirmed"}, http.StatusOK, "invalid_status_transition")
	s.metrics.Update.Record(latency, res)
}

func (s *Simulator) doSlots(ctx context.Context, rng *rand.Rand) {
	as := s.randomPractitioner(rng)
	path := fmt.Sprintf("/api/appointments/available-slots?date=%s", s.days[rng.Intn(len(s.days))])
	res, _, latency := s.call(ctx, as, http.MethodGet, path, nil, http.StatusOK, "")
	s.metrics.Slots.Record(latency, res)
}

func (s *Simulator) doReadByID(ctx context.Context, rng *rand.Rand) {
	appt, ok := s.pool.RandomAppointment(rng)
	if !ok {
		return
	}
	res, _, latency := s.call(ctx, appt.Practitioner, http.MethodGet, "/api/appointments/"+appt.ID.String(), nil, http.StatusOK, "")
	s.metrics.ReadByID.Record(latency, res)
}

func (s *Simulator) doListByPatient(ctx context.Context, rng *rand.Rand) {
	as := s.randomPractitioner(rng)
	patientID := s.pool.Patients[rng.Intn(len(s.pool.Patients))]
	res, _, latency := s.call(ctx, as, http.MethodGet, "/api/appointments?patient_id="+patientID.String(), nil, http.StatusOK, "")
	s.metrics.ListByPatient.Record(latency, res)
}
