package appointment

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusScheduled  Status = "Scheduled"
	StatusConfirmed  Status = "Confirmed"
	StatusInProgress Status = "In Progress"
	StatusCompleted  Status = "Completed"
	StatusCancelled  Status = "Cancelled"
)

var transitions = map[Status][]Status{
	StatusScheduled:  {StatusConfirmed, StatusInProgress, StatusCancelled},
	StatusConfirmed:  {StatusCompleted, StatusCancelled},
	StatusInProgress: {StatusCompleted, StatusCancelled},
}

func (s Status) Valid() bool {
	switch s {
	case StatusScheduled, StatusConfirmed, StatusInProgress, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Terminal reports whether no further transitions are allowed from s.
func (s Status) Terminal() bool {
	return len(transitions[s]) == 0
}

// CanTransition reports whether an appointment may move from s to next.
// Staying in the same status is always allowed.
func (s Status) CanTransition(next Status) bool {
	if s == next {
		return true
	}
	for _, to := range transitions[s] {
		if to == next {
			return true
		}
	}
	return false
}

type Type string

const (
	TypeConsultation Type = "Consultation"
	TypeFollowUp     Type = "Follow-up"
	TypeEmergency    Type = "Emergency"
	TypeRoutineCheck Type = "Routine Check"
	TypeSurgery      Type = "Surgery"
	TypeLabTest      Type = "Lab Test"
)

func (t Type) Valid() bool {
	switch t {
	case TypeConsultation, TypeFollowUp, TypeEmergency, TypeRoutineCheck, TypeSurgery, TypeLabTest:
		return true
	}
	return false
}

const DefaultDuration = 30

type Patient struct {
	ID        uuid.UUID
	FirstName string
	LastName  string
	Email     *string
	Phone     *string
	Category  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (p Patient) FullName() string {
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// Practitioner is the scheduling view of a doctor or nurse account.
type Practitioner struct {
	ID         uuid.UUID
	FirstName  string
	LastName   string
	Role       string
	Speciality *string
}

type Appointment struct {
	ID             uuid.UUID
	PractitionerID uuid.UUID
	PatientID      uuid.UUID
	Date           time.Time // midnight UTC of the calendar day
	Start          ClockTime
	Duration       int // minutes
	Type           Type
	Status         Status
	Symptoms       *string
	Notes          *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Interval returns the half-open window the appointment occupies.
func (a Appointment) Interval() Interval {
	return Interval{Start: a.Start, End: a.Start + ClockTime(a.Duration)}
}

type Filter struct {
	PractitionerID *uuid.UUID
	PatientID      *uuid.UUID
	Status         *Status
	Date           *time.Time
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
