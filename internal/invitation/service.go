package invitation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/hackgods/emr-backend/internal/access"
	"github.com/hackgods/emr-backend/internal/appointment"
	"github.com/hackgods/emr-backend/internal/directory"
	"github.com/hackgods/emr-backend/internal/mail"
)

// Patients looks up the patient an invitation is addressed to.
type Patients interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*appointment.Patient, error)
}

type Service struct {
	repo     Repository
	patients Patients
	dir      directory.Directory
	mailer   mail.Mailer
	log      zerolog.Logger
	now      func() time.Time
}

func NewService(repo Repository, patients Patients, dir directory.Directory, mailer mail.Mailer, log zerolog.Logger) *Service {
	return &Service{
		repo:     repo,
		patients: patients,
		dir:      dir,
		mailer:   mailer,
		log:      log.With().Str("component", "invitation").Logger(),
		now:      time.Now,
	}
}

type CreateInput struct {
	PatientID      uuid.UUID
	PreferredDates []string // YYYY-MM-DD
}

// Create records an invitation from actor to the patient and emails the
// patient. Mail problems are logged and never fail the call.
func (s *Service) Create(ctx context.Context, actor access.Actor, in CreateInput) (*Invitation, error) {
	if err := access.Authorize(actor, access.CreateInvitation, access.Resource{}); err != nil {
		return nil, err
	}

	dates := make([]time.Time, 0, len(in.PreferredDates))
	for _, raw := range in.PreferredDates {
		d, err := appointment.ParseDate(raw)
		if err != nil {
			return nil, err
		}
		dates = append(dates, d)
	}

	patient, err := s.patients.GetPatientByID(ctx, in.PatientID)
	if err != nil {
		if errors.Is(err, appointment.ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	inv := &Invitation{
		PatientID:      patient.ID,
		DoctorID:       actor.ID,
		PreferredDates: dates,
		Status:         StatusPending,
	}
	if err := s.repo.Create(ctx, inv); err != nil {
		return nil, fmt.Errorf("create invitation: %w", err)
	}

	s.notify(ctx, inv, patient)
	return inv, nil
}

func (s *Service) notify(ctx context.Context, inv *Invitation, patient *appointment.Patient) {
	if patient.Email == nil || *patient.Email == "" {
		s.log.Warn().Str("patient_id", patient.ID.String()).Msg("patient has no email address, invitation not mailed")
		return
	}

	sender := "Your care team"
	role := ""
	if doctor, err := s.dir.GetUser(ctx, inv.DoctorID); err == nil {
		sender = doctor.DisplayName()
		role = string(doctor.Role)
	} else {
		s.log.Warn().Err(err).Str("doctor_id", inv.DoctorID.String()).Msg("resolve inviting practitioner")
	}

	msg := mail.Message{
		To:      *patient.Email,
		Subject: "Appointment Invitation from " + sender,
		Body:    invitationBody(patient, inv.PreferredDates, sender, role),
	}

	if err := s.mailer.Send(ctx, msg); err != nil {
		s.log.Error().Err(err).
			Str("invitation_id", inv.ID.String()).
			Str("to", msg.To).
			Msg("failed to send invitation email")
		return
	}
	s.log.Info().Str("invitation_id", inv.ID.String()).Str("to", msg.To).Msg("invitation email sent")
}

func invitationBody(patient *appointment.Patient, dates []time.Time, sender, role string) string {
	name := patient.FirstName
	if name == "" {
		name = "Patient"
	}

	list := "No specific dates suggested"
	if len(dates) > 0 {
		lines := make([]string, len(dates))
		for i, d := range dates {
			lines[i] = "- " + d.Format("January 02, 2006")
		}
		list = strings.Join(lines, "\n")
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Dear %s,\n\n", name)
	b.WriteString("You have been invited to schedule an appointment at our clinic.\n\n")
	b.WriteString("The following dates have been suggested for your appointment:\n")
	b.WriteString(list + "\n\n")
	b.WriteString("Please log in to the patient portal to confirm your availability or suggest alternative dates.\n\n")
	b.WriteString("Best regards,\n")
	b.WriteString(sender)
	if role != "" {
		b.WriteString("\n" + strings.ToUpper(role[:1]) + role[1:])
	}
	return b.String()
}

// List returns the invitations sent by actor, newest first.
func (s *Service) List(ctx context.Context, actor access.Actor) ([]Invitation, error) {
	if err := access.Authorize(actor, access.ViewInvitation, access.Resource{}); err != nil {
		return nil, err
	}
	list, err := s.repo.ListByDoctor(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	return list, nil
}

func (s *Service) Get(ctx context.Context, actor access.Actor, id uuid.UUID) (*Invitation, error) {
	if err := access.Authorize(actor, access.ViewInvitation, access.Resource{}); err != nil {
		return nil, err
	}
	inv, err := s.repo.Get(ctx, id)
	if err != nil {
		if errors.Is(err, ErrInvitationNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("get invitation: %w", err)
	}
	return inv, nil
}

// ExpireStale expires pending invitations whose preferred dates have all
// passed and returns how many changed.
func (s *Service) ExpireStale(ctx context.Context) (int, error) {
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	ids, err := s.repo.ExpireStale(ctx, today)
	if err != nil {
		return 0, fmt.Errorf("expire stale invitations: %w", err)
	}
	for _, id := range ids {
		s.log.Info().Str("invitation_id", id.String()).Msg("invitation expired")
	}
	return len(ids), nil
}
