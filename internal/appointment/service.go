package appointment

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	redisclient "github.com/hackgods/emr-backend/internal/redis"
)

const (
	EventAppointmentCreated = "APPOINTMENT_CREATED"
	EventAppointmentUpdated = "APPOINTMENT_UPDATED"
	EventAppointmentDeleted = "APPOINTMENT_DELETED"
)

var (
	ErrInvalidInput            = errors.New("invalid input")
	ErrInvalidDate             = fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
	ErrSlotConflict            = errors.New("time slot is already booked")
	ErrInvalidStatusTransition = errors.New("invalid status transition")
	ErrScheduleBusy            = errors.New("schedule is being modified, please retry")
)

type Service struct {
	repo   Repository
	locker redisclient.Locker
	policy SlotPolicy
	log    zerolog.Logger
}

func NewService(repo Repository, locker redisclient.Locker, policy SlotPolicy, log zerolog.Logger) *Service {
	return &Service{
		repo:   repo,
		locker: locker,
		policy: policy,
		log:    log.With().Str("component", "appointment").Logger(),
	}
}

func (s *Service) Policy() SlotPolicy {
	return s.policy
}

// Slots returns every step of the clinic day for the practitioner, tagged
// available or booked.
func (s *Service) Slots(ctx context.Context, practitionerID uuid.UUID, date string) ([]Slot, error) {
	day, err := ParseDate(date)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.ListByPractitionerDate(ctx, practitionerID, day)
	if err != nil {
		return nil, fmt.Errorf("load day schedule: %w", err)
	}

	return s.policy.Slots(existing), nil
}

// AvailableSlots returns the HH:MM start labels of the free steps, in order.
func (s *Service) AvailableSlots(ctx context.Context, practitionerID uuid.UUID, date string) ([]string, error) {
	slots, err := s.Slots(ctx, practitionerID, date)
	if err != nil {
		return nil, err
	}

	labels := make([]string, 0, len(slots))
	for _, slot := range slots {
		if slot.Available {
			labels = append(labels, slot.Label())
		}
	}
	return labels, nil
}

type CreateInput struct {
	PractitionerID uuid.UUID
	PatientID      uuid.UUID
	Date           string
	Time           string
	Duration       int // minutes, 0 means DefaultDuration
	Type           Type
	Status         Status
	Symptoms       *string
	Notes          *string
}

// CreateAppointment books a window for a patient with the requesting
// practitioner as owner. The overlap check and the insert run under a
// per-(practitioner, date) lock so concurrent bookings cannot both pass.
func (s *Service) CreateAppointment(ctx context.Context, in CreateInput) (*Appointment, error) {
	appt, err := s.buildAppointment(in)
	if err != nil {
		return nil, err
	}

	if _, err := s.repo.GetPatientByID(ctx, in.PatientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	err = s.withSchedule(ctx, appt.PractitionerID, appt.Date, func(lockCtx context.Context) error {
		if err := s.repo.Book(lockCtx, appt, s.conflictGuard(*appt)); err != nil {
			return err
		}

		s.logEvent(lockCtx, appt.ID, EventAppointmentCreated, map[string]any{
			"practitioner_id": appt.PractitionerID.String(),
			"patient_id":      appt.PatientID.String(),
			"date":            FormatDate(appt.Date),
			"time":            appt.Start.String(),
			"duration":        appt.Duration,
		})
		return nil
	})
	if err != nil {
		return nil, err
	}

	return appt, nil
}

func (s *Service) buildAppointment(in CreateInput) (*Appointment, error) {
	day, err := ParseDate(in.Date)
	if err != nil {
		return nil, err
	}
	start, err := ParseClock(in.Time)
	if err != nil {
		return nil, err
	}
	if in.PractitionerID == uuid.Nil || in.PatientID == uuid.Nil {
		return nil, fmt.Errorf("%w: practitioner and patient are required", ErrInvalidInput)
	}

	appt := &Appointment{
		PractitionerID: in.PractitionerID,
		PatientID:      in.PatientID,
		Date:           day,
		Start:          start,
		Duration:       in.Duration,
		Type:           in.Type,
		Status:         in.Status,
		Symptoms:       in.Symptoms,
		Notes:          in.Notes,
	}
	if appt.Duration == 0 {
		appt.Duration = DefaultDuration
	}
	if appt.Type == "" {
		appt.Type = TypeConsultation
	}
	if appt.Status == "" {
		appt.Status = StatusScheduled
	}

	if err := validateWindow(appt.Start, appt.Duration); err != nil {
		return nil, err
	}
	if !appt.Type.Valid() {
		return nil, fmt.Errorf("%w: unknown appointment type %q", ErrInvalidInput, appt.Type)
	}
	if !appt.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, appt.Status)
	}

	return appt, nil
}

func validateWindow(start ClockTime, duration int) error {
	if duration <= 0 {
		return fmt.Errorf("%w: duration must be positive, got %d", ErrInvalidInput, duration)
	}
	if duration > int(endOfDay-start) {
		return fmt.Errorf("%w: appointment at %s for %d minutes runs past midnight", ErrInvalidInput, start, duration)
	}
	return nil
}

type UpdateInput struct {
	Date     *string
	Time     *string
	Duration *int
	Type     *Type
	Status   *Status
	Symptoms *string
	Notes    *string
}

// UpdateAppointment applies the non-nil fields of in. Status changes must
// follow the lifecycle, and a moved or resized window is re-checked for
// overlap under the schedule lock.
func (s *Service) UpdateAppointment(ctx context.Context, id uuid.UUID, in UpdateInput) (*Appointment, error) {
	cur, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}

	next := *cur
	if in.Date != nil {
		if next.Date, err = ParseDate(*in.Date); err != nil {
			return nil, err
		}
	}
	if in.Time != nil {
		if next.Start, err = ParseClock(*in.Time); err != nil {
			return nil, err
		}
	}
	if in.Duration != nil {
		next.Duration = *in.Duration
	}
	if in.Type != nil {
		if !in.Type.Valid() {
			return nil, fmt.Errorf("%w: unknown appointment type %q", ErrInvalidInput, *in.Type)
		}
		next.Type = *in.Type
	}
	if in.Status != nil {
		if !in.Status.Valid() {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *in.Status)
		}
		if !cur.Status.CanTransition(*in.Status) {
			return nil, fmt.Errorf("%w: %s to %s", ErrInvalidStatusTransition, cur.Status, *in.Status)
		}
		next.Status = *in.Status
	}
	if in.Symptoms != nil {
		next.Symptoms = in.Symptoms
	}
	if in.Notes != nil {
		next.Notes = in.Notes
	}

	if err := validateWindow(next.Start, next.Duration); err != nil {
		return nil, err
	}

	moved := !next.Date.Equal(cur.Date) || next.Start != cur.Start || next.Duration != cur.Duration
	if moved && cur.Status.Terminal() {
		return nil, fmt.Errorf("%w: cannot reschedule a %s appointment", ErrInvalidInput, cur.Status)
	}

	payload := map[string]any{
		"from_status": string(cur.Status),
		"to_status":   string(next.Status),
		"date":        FormatDate(next.Date),
		"time":        next.Start.String(),
		"duration":    next.Duration,
	}

	if !moved {
		if err := s.repo.Update(ctx, &next, nil); err != nil {
			return nil, err
		}
		s.logEvent(ctx, next.ID, EventAppointmentUpdated, payload)
		return &next, nil
	}

	err = s.withSchedule(ctx, next.PractitionerID, next.Date, func(lockCtx context.Context) error {
		if err := s.repo.Update(lockCtx, &next, s.conflictGuard(next)); err != nil {
			return err
		}
		s.logEvent(lockCtx, next.ID, EventAppointmentUpdated, payload)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return &next, nil
}

// DeleteAppointment hard-deletes an appointment.
func (s *Service) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return err
		}
		return fmt.Errorf("delete appointment: %w", err)
	}

	s.logEvent(ctx, id, EventAppointmentDeleted, map[string]any{})
	return nil
}

func (s *Service) GetAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get appointment: %w", err)
	}
	return appt, nil
}

func (s *Service) ListAppointments(ctx context.Context, f Filter) ([]Appointment, error) {
	if f.Status != nil && !f.Status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, *f.Status)
	}
	list, err := s.repo.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return list, nil
}

func (s *Service) ListPatientsForPractitioner(ctx context.Context, practitionerID uuid.UUID) ([]Patient, error) {
	list, err := s.repo.ListPatientsForPractitioner(ctx, practitionerID)
	if err != nil {
		return nil, fmt.Errorf("list patients for practitioner: %w", err)
	}
	return list, nil
}

func (s *Service) ListPractitionersForPatient(ctx context.Context, patientID uuid.UUID) ([]Practitioner, error) {
	list, err := s.repo.ListPractitionersForPatient(ctx, patientID)
	if err != nil {
		return nil, fmt.Errorf("list practitioners for patient: %w", err)
	}
	return list, nil
}

func (s *Service) conflictGuard(candidate Appointment) Guard {
	return func(existing []Appointment) error {
		if other, ok := s.policy.Conflict(candidate, existing); ok {
			iv := other.Interval()
			return fmt.Errorf("%w: overlaps %s-%s", ErrSlotConflict, iv.Start, iv.End)
		}
		return nil
	}
}

func scheduleLockKey(practitionerID uuid.UUID, date time.Time) string {
	return "lock:" + scheduleKey(practitionerID, date)
}

func (s *Service) withSchedule(ctx context.Context, practitionerID uuid.UUID, date time.Time, fn func(ctx context.Context) error) error {
	err := s.locker.WithLock(ctx, scheduleLockKey(practitionerID, date), fn)
	if errors.Is(err, redisclient.ErrLockNotAcquired) {
		return ErrScheduleBusy
	}
	return err
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		s.log.Error().Err(err).Str("event", eventType).Msg("marshal event payload")
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		s.log.Error().Err(err).
			Str("event", eventType).
			Str("appointment_id", appointmentID.String()).
			Msg("insert event log")
	}
}
