package directory

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgDirectory struct {
	pool *pgxpool.Pool
}

func NewPgDirectory(pool *pgxpool.Pool) *PgDirectory {
	return &PgDirectory{pool: pool}
}

func scanUser(row pgx.Row) (*User, error) {
	var u User

	err := row.Scan(
		&u.ID,
		&u.Username,
		&u.FirstName,
		&u.LastName,
		&u.Email,
		&u.Role,
		&u.Speciality,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	return &u, nil
}

func (d *PgDirectory) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	row := d.pool.QueryRow(ctx, `
		SELECT id, username, first_name, last_name, email, role, speciality, created_at, updated_at
		FROM users
		WHERE id = $1
	`, id)
	return scanUser(row)
}

// CreateUser inserts u, assigning an id when it has none.
func (d *PgDirectory) CreateUser(ctx context.Context, u *User) error {
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}

	row := d.pool.QueryRow(ctx, `
		INSERT INTO users (id, username, first_name, last_name, email, role, speciality, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING id, username, first_name, last_name, email, role, speciality, created_at, updated_at
	`, u.ID, u.Username, u.FirstName, u.LastName, u.Email, string(u.Role), u.Speciality)

	created, err := scanUser(row)
	if err != nil {
		return fmt.Errorf("insert user %s: %w", u.Username, err)
	}

	*u = *created
	return nil
}
