package appointment

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryRepository is a Repository held in process memory. Book and Update
// run their guard under the repository mutex, so it gives the same
// check-and-write atomicity as the Postgres implementation.
type MemoryRepository struct {
	mu            sync.Mutex
	patients      map[uuid.UUID]Patient
	practitioners map[uuid.UUID]Practitioner
	appointments  map[uuid.UUID]Appointment
	events        []EventLog
	now           func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		patients:      make(map[uuid.UUID]Patient),
		practitioners: make(map[uuid.UUID]Practitioner),
		appointments:  make(map[uuid.UUID]Appointment),
		now:           time.Now,
	}
}

func (r *MemoryRepository) AddPatient(p Patient) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.patients[p.ID] = p
}

func (r *MemoryRepository) AddPractitioner(p Practitioner) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.practitioners[p.ID] = p
}

// Events returns a copy of the recorded event log.
func (r *MemoryRepository) Events() []EventLog {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]EventLog(nil), r.events...)
}

func (r *MemoryRepository) GetPatientByID(_ context.Context, id uuid.UUID) (*Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.patients[id]
	if !ok {
		return nil, ErrPatientNotFound
	}
	return &p, nil
}

func (r *MemoryRepository) GetAppointmentByID(_ context.Context, id uuid.UUID) (*Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.appointments[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	return &a, nil
}

func (r *MemoryRepository) ListByPractitionerDate(_ context.Context, practitionerID uuid.UUID, date time.Time) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dayLocked(practitionerID, date), nil
}

func (r *MemoryRepository) dayLocked(practitionerID uuid.UUID, date time.Time) []Appointment {
	return r.filterLocked(Filter{PractitionerID: &practitionerID, Date: &date})
}

func (r *MemoryRepository) filterLocked(f Filter) []Appointment {
	var out []Appointment
	for _, a := range r.appointments {
		if f.PractitionerID != nil && a.PractitionerID != *f.PractitionerID {
			continue
		}
		if f.PatientID != nil && a.PatientID != *f.PatientID {
			continue
		}
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		if f.Date != nil && !a.Date.Equal(*f.Date) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Date.Equal(out[j].Date) {
			return out[i].Date.Before(out[j].Date)
		}
		return out[i].Start < out[j].Start
	})
	return out
}

func (r *MemoryRepository) List(_ context.Context, f Filter) ([]Appointment, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.filterLocked(f), nil
}

func (r *MemoryRepository) Book(_ context.Context, a *Appointment, guard Guard) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if guard != nil {
		if err := guard(r.dayLocked(a.PractitionerID, a.Date)); err != nil {
			return err
		}
	}
	if _, ok := r.patients[a.PatientID]; !ok {
		return ErrPatientNotFound
	}

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}
	now := r.now()
	a.CreatedAt, a.UpdatedAt = now, now
	r.appointments[a.ID] = *a
	return nil
}

func (r *MemoryRepository) Update(_ context.Context, a *Appointment, guard Guard) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.appointments[a.ID]
	if !ok {
		return ErrAppointmentNotFound
	}
	if guard != nil {
		if err := guard(r.dayLocked(a.PractitionerID, a.Date)); err != nil {
			return err
		}
	}

	a.CreatedAt = cur.CreatedAt
	a.UpdatedAt = r.now()
	r.appointments[a.ID] = *a
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.appointments[id]; !ok {
		return ErrAppointmentNotFound
	}
	delete(r.appointments, id)
	return nil
}

func (r *MemoryRepository) ListPatientsForPractitioner(_ context.Context, practitionerID uuid.UUID) ([]Patient, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[uuid.UUID]bool)
	var out []Patient
	for _, a := range r.appointments {
		if a.PractitionerID != practitionerID || seen[a.PatientID] {
			continue
		}
		seen[a.PatientID] = true
		if p, ok := r.patients[a.PatientID]; ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FullName() < out[j].FullName() })
	return out, nil
}

func (r *MemoryRepository) ListPractitionersForPatient(_ context.Context, patientID uuid.UUID) ([]Practitioner, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	seen := make(map[uuid.UUID]bool)
	var out []Practitioner
	for _, a := range r.appointments {
		if a.PatientID != patientID || seen[a.PractitionerID] {
			continue
		}
		seen[a.PractitionerID] = true
		if p, ok := r.practitioners[a.PractitionerID]; ok {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LastName < out[j].LastName })
	return out, nil
}

func (r *MemoryRepository) InsertEvent(_ context.Context, ev EventLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ev.ID = int64(len(r.events) + 1)
	r.events = append(r.events, ev)
	return nil
}
