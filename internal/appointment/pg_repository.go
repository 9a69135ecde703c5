package appointment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

// querier is satisfied by both the pool and a transaction.
type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

const appointmentColumns = `id, practitioner_id, patient_id, appt_date, start_minute, duration_minutes,
		type, status, symptoms, notes, created_at, updated_at`

// Helpers

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient

	err := row.Scan(
		&p.ID,
		&p.FirstName,
		&p.LastName,
		&p.Email,
		&p.Phone,
		&p.Category,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrPatientNotFound
		}
		return nil, err
	}

	return &p, nil
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var start int

	err := row.Scan(
		&a.ID,
		&a.PractitionerID,
		&a.PatientID,
		&a.Date,
		&start,
		&a.Duration,
		&a.Type,
		&a.Status,
		&a.Symptoms,
		&a.Notes,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAppointmentNotFound
		}
		return nil, err
	}

	a.Start = ClockTime(start)
	return &a, nil
}

func collectAppointments(rows pgx.Rows) ([]Appointment, error) {
	defer rows.Close()

	var result []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *a)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return result, nil
}

func scheduleKey(practitionerID uuid.UUID, date time.Time) string {
	return "schedule:" + practitionerID.String() + ":" + FormatDate(date)
}

// Interface methods

func (r *PgRepository) GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, first_name, last_name, email, phone, category, created_at, updated_at
		FROM patients
		WHERE id = $1
	`, id)
	return scanPatient(row)
}

// CreatePatient inserts p, assigning an id when it has none.
func (r *PgRepository) CreatePatient(ctx context.Context, p *Patient) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO patients (id, first_name, last_name, email, phone, category, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, now(), now())
		RETURNING id, first_name, last_name, email, phone, category, created_at, updated_at
	`, p.ID, p.FirstName, p.LastName, p.Email, p.Phone, p.Category)

	created, err := scanPatient(row)
	if err != nil {
		return fmt.Errorf("insert patient: %w", err)
	}

	*p = *created
	return nil
}

func (r *PgRepository) GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE id = $1
	`, id)
	return scanAppointment(row)
}

func (r *PgRepository) ListByPractitionerDate(ctx context.Context, practitionerID uuid.UUID, date time.Time) ([]Appointment, error) {
	return listByPractitionerDate(ctx, r.pool, practitionerID, date)
}

func listByPractitionerDate(ctx context.Context, q querier, practitionerID uuid.UUID, date time.Time) ([]Appointment, error) {
	rows, err := q.Query(ctx, `
		SELECT `+appointmentColumns+`
		FROM appointments
		WHERE practitioner_id = $1
		  AND appt_date = $2
		ORDER BY start_minute
	`, practitionerID, date)
	if err != nil {
		return nil, fmt.Errorf("list appointments for practitioner day: %w", err)
	}
	return collectAppointments(rows)
}

func (r *PgRepository) List(ctx context.Context, f Filter) ([]Appointment, error) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}

	if f.PractitionerID != nil {
		add("practitioner_id = $%d", *f.PractitionerID)
	}
	if f.PatientID != nil {
		add("patient_id = $%d", *f.PatientID)
	}
	if f.Status != nil {
		add("status = $%d", string(*f.Status))
	}
	if f.Date != nil {
		add("appt_date = $%d", *f.Date)
	}

	query := `SELECT ` + appointmentColumns + ` FROM appointments`
	if len(conds) > 0 {
		query += ` WHERE ` + strings.Join(conds, " AND ")
	}
	query += ` ORDER BY appt_date, start_minute`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	return collectAppointments(rows)
}

// lockDay takes a transaction-scoped advisory lock on the practitioner's day
// and returns the bookings already on it.
func lockDay(ctx context.Context, tx pgx.Tx, practitionerID uuid.UUID, date time.Time) ([]Appointment, error) {
	if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, scheduleKey(practitionerID, date)); err != nil {
		return nil, fmt.Errorf("lock schedule: %w", err)
	}
	return listByPractitionerDate(ctx, tx, practitionerID, date)
}

func (r *PgRepository) Book(ctx context.Context, a *Appointment, guard Guard) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin booking: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	existing, err := lockDay(ctx, tx, a.PractitionerID, a.Date)
	if err != nil {
		return err
	}
	if guard != nil {
		if err := guard(existing); err != nil {
			return err
		}
	}

	if a.ID == uuid.Nil {
		a.ID = uuid.New()
	}

	row := tx.QueryRow(ctx, `
		INSERT INTO appointments (id, practitioner_id, patient_id, appt_date, start_minute, duration_minutes,
		                          type, status, symptoms, notes, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, now(), now())
		RETURNING `+appointmentColumns,
		a.ID, a.PractitionerID, a.PatientID, a.Date, int(a.Start), a.Duration,
		string(a.Type), string(a.Status), a.Symptoms, a.Notes)

	created, err := scanAppointment(row)
	if err != nil {
		return fmt.Errorf("insert appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit booking: %w", err)
	}

	*a = *created
	return nil
}

func (r *PgRepository) Update(ctx context.Context, a *Appointment, guard Guard) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin update: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if guard != nil {
		existing, err := lockDay(ctx, tx, a.PractitionerID, a.Date)
		if err != nil {
			return err
		}
		if err := guard(existing); err != nil {
			return err
		}
	}

	row := tx.QueryRow(ctx, `
		UPDATE appointments
		SET appt_date = $2,
		    start_minute = $3,
		    duration_minutes = $4,
		    type = $5,
		    status = $6,
		    symptoms = $7,
		    notes = $8,
		    updated_at = now()
		WHERE id = $1
		RETURNING `+appointmentColumns,
		a.ID, a.Date, int(a.Start), a.Duration, string(a.Type), string(a.Status), a.Symptoms, a.Notes)

	updated, err := scanAppointment(row)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return err
		}
		return fmt.Errorf("update appointment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit update: %w", err)
	}

	*a = *updated
	return nil
}

func (r *PgRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrAppointmentNotFound
	}
	return nil
}

func (r *PgRepository) ListPatientsForPractitioner(ctx context.Context, practitionerID uuid.UUID) ([]Patient, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT p.id, p.first_name, p.last_name, p.email, p.phone, p.category, p.created_at, p.updated_at
		FROM patients p
		JOIN appointments a ON a.patient_id = p.id
		WHERE a.practitioner_id = $1
		ORDER BY p.last_name, p.first_name
	`, practitionerID)
	if err != nil {
		return nil, fmt.Errorf("list patients for practitioner: %w", err)
	}
	defer rows.Close()

	var result []Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *p)
	}

	return result, rows.Err()
}

func (r *PgRepository) ListPractitionersForPatient(ctx context.Context, patientID uuid.UUID) ([]Practitioner, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT DISTINCT u.id, u.first_name, u.last_name, u.role, u.speciality
		FROM users u
		JOIN appointments a ON a.practitioner_id = u.id
		WHERE a.patient_id = $1
		ORDER BY u.last_name, u.first_name
	`, patientID)
	if err != nil {
		return nil, fmt.Errorf("list practitioners for patient: %w", err)
	}
	defer rows.Close()

	var result []Practitioner
	for rows.Next() {
		var p Practitioner
		if err := rows.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Role, &p.Speciality); err != nil {
			return nil, err
		}
		result = append(result, p)
	}

	return result, rows.Err()
}

func (r *PgRepository) InsertEvent(ctx context.Context, ev EventLog) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO event_logs (event_type, appointment_id, payload, created_at)
		VALUES ($1, $2, $3, COALESCE($4, now()))
	`, ev.EventType, ev.AppointmentID, ev.Payload, nullableTime(ev.CreatedAt))
	if err != nil {
		return fmt.Errorf("insert event log: %w", err)
	}

	return nil
}

func nullableTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
