package invitation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrInvitationNotFound = errors.New("invitation not found")

type Repository interface {
	Create(ctx context.Context, inv *Invitation) error
	Get(ctx context.Context, id uuid.UUID) (*Invitation, error)
	ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Invitation, error)
	// ExpireStale moves every stale pending invitation to Expired and
	// returns their ids.
	ExpireStale(ctx context.Context, today time.Time) ([]uuid.UUID, error)
}

type PgRepository struct {
	pool *pgxpool.Pool
}

func NewPgRepository(pool *pgxpool.Pool) *PgRepository {
	return &PgRepository{pool: pool}
}

func scanInvitation(row pgx.Row) (*Invitation, error) {
	var inv Invitation

	err := row.Scan(
		&inv.ID,
		&inv.PatientID,
		&inv.DoctorID,
		&inv.InvitedDate,
		&inv.PreferredDates,
		&inv.Status,
		&inv.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvitationNotFound
		}
		return nil, err
	}

	return &inv, nil
}

func (r *PgRepository) Create(ctx context.Context, inv *Invitation) error {
	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	if inv.PreferredDates == nil {
		inv.PreferredDates = []time.Time{}
	}

	row := r.pool.QueryRow(ctx, `
		INSERT INTO invitations (id, patient_id, doctor_id, invited_date, preferred_dates, status, created_at)
		VALUES ($1, $2, $3, CURRENT_DATE, $4, $5, now())
		RETURNING id, patient_id, doctor_id, invited_date, preferred_dates, status, created_at
	`, inv.ID, inv.PatientID, inv.DoctorID, inv.PreferredDates, string(inv.Status))

	created, err := scanInvitation(row)
	if err != nil {
		return fmt.Errorf("insert invitation: %w", err)
	}

	*inv = *created
	return nil
}

func (r *PgRepository) Get(ctx context.Context, id uuid.UUID) (*Invitation, error) {
	row := r.pool.QueryRow(ctx, `
		SELECT id, patient_id, doctor_id, invited_date, preferred_dates, status, created_at
		FROM invitations
		WHERE id = $1
	`, id)
	return scanInvitation(row)
}

func (r *PgRepository) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]Invitation, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT id, patient_id, doctor_id, invited_date, preferred_dates, status, created_at
		FROM invitations
		WHERE doctor_id = $1
		ORDER BY created_at DESC
	`, doctorID)
	if err != nil {
		return nil, fmt.Errorf("list invitations: %w", err)
	}
	defer rows.Close()

	var out []Invitation
	for rows.Next() {
		inv, err := scanInvitation(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}

	return out, rows.Err()
}

func (r *PgRepository) ExpireStale(ctx context.Context, today time.Time) ([]uuid.UUID, error) {
	rows, err := r.pool.Query(ctx, `
		UPDATE invitations
		SET status = 'Expired'
		WHERE status = 'Pending'
		  AND (
		        (cardinality(preferred_dates) > 0
		         AND (SELECT max(d) FROM unnest(preferred_dates) AS d) < $1)
		     OR (cardinality(preferred_dates) = 0
		         AND invited_date < $2)
		  )
		RETURNING id
	`, today, today.Add(-openTTL))
	if err != nil {
		return nil, fmt.Errorf("expire invitations: %w", err)
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// MemoryRepository is an in-process Repository.
type MemoryRepository struct {
	mu    sync.Mutex
	items map[uuid.UUID]Invitation
	now   func() time.Time
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{items: make(map[uuid.UUID]Invitation), now: time.Now}
}

func (r *MemoryRepository) Create(_ context.Context, inv *Invitation) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if inv.ID == uuid.Nil {
		inv.ID = uuid.New()
	}
	now := r.now().UTC()
	inv.CreatedAt = now
	if inv.InvitedDate.IsZero() {
		inv.InvitedDate = now.Truncate(24 * time.Hour)
	}
	r.items[inv.ID] = *inv
	return nil
}

func (r *MemoryRepository) Get(_ context.Context, id uuid.UUID) (*Invitation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	inv, ok := r.items[id]
	if !ok {
		return nil, ErrInvitationNotFound
	}
	return &inv, nil
}

func (r *MemoryRepository) ListByDoctor(_ context.Context, doctorID uuid.UUID) ([]Invitation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Invitation
	for _, inv := range r.items {
		if inv.DoctorID == doctorID {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (r *MemoryRepository) ExpireStale(_ context.Context, today time.Time) ([]uuid.UUID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var ids []uuid.UUID
	for id, inv := range r.items {
		if inv.Stale(today) {
			inv.Status = StatusExpired
			r.items[id] = inv
			ids = append(ids, id)
		}
	}
	return ids, nil
}
