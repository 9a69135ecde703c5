package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/hackgods/emr-backend/internal/appointment"
	"github.com/hackgods/emr-backend/internal/chat"
	"github.com/hackgods/emr-backend/internal/directory"
	"github.com/hackgods/emr-backend/internal/invitation"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

type CreateAppointmentRequest struct {
	PatientID string  `json:"patient_id"`
	Date      string  `json:"date"`
	Time      string  `json:"time"`
	Duration  int     `json:"duration"`
	Type      string  `json:"type"`
	Status    string  `json:"status"`
	Symptoms  *string `json:"symptoms"`
	Notes     *string `json:"notes"`
}

// UpdateAppointmentRequest carries only the fields being changed.
type UpdateAppointmentRequest struct {
	Date     *string `json:"date"`
	Time     *string `json:"time"`
	Duration *int    `json:"duration"`
	Type     *string `json:"type"`
	Status   *string `json:"status"`
	Symptoms *string `json:"symptoms"`
	Notes    *string `json:"notes"`
}

type AppointmentResponse struct {
	ID             uuid.UUID `json:"id"`
	PractitionerID uuid.UUID `json:"practitioner_id"`
	PatientID      uuid.UUID `json:"patient_id"`
	Date           string    `json:"date"`
	Time           string    `json:"time"`
	EndTime        string    `json:"end_time"`
	Duration       int       `json:"duration"`
	Type           string    `json:"type"`
	Status         string    `json:"status"`
	Symptoms       *string   `json:"symptoms,omitempty"`
	Notes          *string   `json:"notes,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

func toAppointmentResponse(a appointment.Appointment) AppointmentResponse {
	iv := a.Interval()
	return AppointmentResponse{
		ID:             a.ID,
		PractitionerID: a.PractitionerID,
		PatientID:      a.PatientID,
		Date:           appointment.FormatDate(a.Date),
		Time:           iv.Start.String(),
		EndTime:        iv.End.String(),
		Duration:       a.Duration,
		Type:           string(a.Type),
		Status:         string(a.Status),
		Symptoms:       a.Symptoms,
		Notes:          a.Notes,
		CreatedAt:      a.CreatedAt,
		UpdatedAt:      a.UpdatedAt,
	}
}

type AvailableSlotsResponse struct {
	Date           string    `json:"date"`
	PractitionerID uuid.UUID `json:"practitioner_id"`
	AvailableSlots []string  `json:"available_slots"`
}

type PatientResponse struct {
	ID        uuid.UUID `json:"id"`
	FirstName string    `json:"first_name"`
	LastName  string    `json:"last_name"`
	Email     *string   `json:"email,omitempty"`
	Phone     *string   `json:"phone,omitempty"`
	Category  string    `json:"category"`
}

func toPatientResponse(p appointment.Patient) PatientResponse {
	return PatientResponse{
		ID:        p.ID,
		FirstName: p.FirstName,
		LastName:  p.LastName,
		Email:     p.Email,
		Phone:     p.Phone,
		Category:  p.Category,
	}
}

type PractitionerResponse struct {
	ID         uuid.UUID `json:"id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Role       string    `json:"role"`
	Speciality *string   `json:"speciality,omitempty"`
}

type CreateInvitationRequest struct {
	PatientID      string   `json:"patient_id"`
	PreferredDates []string `json:"preferred_dates"`
}

type InvitationResponse struct {
	ID             uuid.UUID `json:"id"`
	PatientID      uuid.UUID `json:"patient_id"`
	DoctorID       uuid.UUID `json:"doctor_id"`
	InvitedDate    string    `json:"invited_date"`
	PreferredDates []string  `json:"preferred_dates"`
	Status         string    `json:"status"`
	CreatedAt      time.Time `json:"created_at"`
}

func toInvitationResponse(inv invitation.Invitation) InvitationResponse {
	dates := make([]string, len(inv.PreferredDates))
	for i, d := range inv.PreferredDates {
		dates[i] = appointment.FormatDate(d)
	}
	return InvitationResponse{
		ID:             inv.ID,
		PatientID:      inv.PatientID,
		DoctorID:       inv.DoctorID,
		InvitedDate:    appointment.FormatDate(inv.InvitedDate),
		PreferredDates: dates,
		Status:         string(inv.Status),
		CreatedAt:      inv.CreatedAt,
	}
}

type MessageResponse struct {
	ID        int64     `json:"id"`
	Sender    uuid.UUID `json:"sender"`
	Receiver  uuid.UUID `json:"receiver"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
	IsRead    bool      `json:"is_read"`
}

func toMessageResponse(m chat.Message) MessageResponse {
	return MessageResponse{
		ID:        m.ID,
		Sender:    m.SenderID,
		Receiver:  m.ReceiverID,
		Message:   m.Body,
		Timestamp: m.CreatedAt,
		IsRead:    m.IsRead,
	}
}

type UserResponse struct {
	ID         uuid.UUID `json:"id"`
	Username   string    `json:"username"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Role       string    `json:"role"`
	Speciality *string   `json:"speciality,omitempty"`
}

func toUserResponse(u directory.User) UserResponse {
	return UserResponse{
		ID:         u.ID,
		Username:   u.Username,
		FirstName:  u.FirstName,
		LastName:   u.LastName,
		Role:       string(u.Role),
		Speciality: u.Speciality,
	}
}

type MarkReadResponse struct {
	Updated int64 `json:"updated"`
}
