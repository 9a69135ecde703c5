package chat

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PgStore struct {
	pool *pgxpool.Pool
}

func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func scanMessage(row pgx.Row) (Message, error) {
	var m Message
	err := row.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Body, &m.CreatedAt, &m.IsRead)
	return m, err
}

func (s *PgStore) Insert(ctx context.Context, m *Message) error {
	row := s.pool.QueryRow(ctx, `
		INSERT INTO chat_messages (sender_id, receiver_id, body)
		VALUES ($1, $2, $3)
		RETURNING id, sender_id, receiver_id, body, created_at, is_read
	`, m.SenderID, m.ReceiverID, m.Body)

	saved, err := scanMessage(row)
	if err != nil {
		return fmt.Errorf("insert chat message: %w", err)
	}

	*m = saved
	return nil
}

func (s *PgStore) History(ctx context.Context, a, b uuid.UUID) ([]Message, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, sender_id, receiver_id, body, created_at, is_read
		FROM chat_messages
		WHERE (sender_id = $1 AND receiver_id = $2)
		   OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at, id
	`, a, b)
	if err != nil {
		return nil, fmt.Errorf("query chat history: %w", err)
	}
	defer rows.Close()

	var out []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}

	return out, rows.Err()
}

func (s *PgStore) Conversations(ctx context.Context, user uuid.UUID) ([]uuid.UUID, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT counterpart
		FROM (
			SELECT CASE WHEN sender_id = $1 THEN receiver_id ELSE sender_id END AS counterpart,
			       max(created_at) AS last_at
			FROM chat_messages
			WHERE sender_id = $1 OR receiver_id = $1
			GROUP BY 1
		) c
		ORDER BY last_at DESC
	`, user)
	if err != nil {
		return nil, fmt.Errorf("query conversations: %w", err)
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}

	return out, rows.Err()
}

func (s *PgStore) MarkRead(ctx context.Context, reader, counterpart uuid.UUID) (int64, error) {
	tag, err := s.pool.Exec(ctx, `
		UPDATE chat_messages
		SET is_read = true
		WHERE receiver_id = $1
		  AND sender_id = $2
		  AND NOT is_read
	`, reader, counterpart)
	if err != nil {
		return 0, fmt.Errorf("mark messages read: %w", err)
	}
	return tag.RowsAffected(), nil
}
