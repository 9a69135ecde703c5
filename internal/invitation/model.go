package invitation

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending  Status = "Pending"
	StatusAccepted Status = "Accepted"
	StatusDeclined Status = "Declined"
	StatusExpired  Status = "Expired"
)

// Invitation asks a patient to book, suggesting dates that suit the doctor.
type Invitation struct {
	ID             uuid.UUID
	PatientID      uuid.UUID
	DoctorID       uuid.UUID
	InvitedDate    time.Time
	PreferredDates []time.Time
	Status         Status
	CreatedAt      time.Time
}

// openTTL bounds how long an invitation without preferred dates stays
// pending.
const openTTL = 30 * 24 * time.Hour

// Stale reports whether a pending invitation should expire as of today.
func (i Invitation) Stale(today time.Time) bool {
	if i.Status != StatusPending {
		return false
	}
	if len(i.PreferredDates) == 0 {
		return i.InvitedDate.Add(openTTL).Before(today)
	}
	for _, d := range i.PreferredDates {
		if !d.Before(today) {
			return false
		}
	}
	return true
}
