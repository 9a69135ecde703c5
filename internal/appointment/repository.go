package appointment

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound      = errors.New("patient not found")
	ErrPractitionerNotFound = errors.New("practitioner not found")
	ErrAppointmentNotFound  = errors.New("appointment not found")
)

// Guard inspects the appointments already booked for a practitioner on a
// day and vetoes a write by returning an error. Repositories run it inside
// the same transaction as the write.
type Guard func(existing []Appointment) error

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)

	ListByPractitionerDate(ctx context.Context, practitionerID uuid.UUID, date time.Time) ([]Appointment, error)
	List(ctx context.Context, f Filter) ([]Appointment, error)

	// Book inserts a under an exclusive hold on (practitioner, date) after
	// guard accepts the existing bookings.
	Book(ctx context.Context, a *Appointment, guard Guard) error
	// Update rewrites a. A non-nil guard is evaluated against the target
	// day's bookings under the same hold as Book.
	Update(ctx context.Context, a *Appointment, guard Guard) error
	Delete(ctx context.Context, id uuid.UUID) error

	ListPatientsForPractitioner(ctx context.Context, practitionerID uuid.UUID) ([]Patient, error)
	ListPractitionersForPatient(ctx context.Context, patientID uuid.UUID) ([]Practitioner, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
