package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/tradielink/internal/models"
)

type ThreadStore struct {
	pool *pgxpool.Pool
}

func NewThreadStore(pool *pgxpool.Pool) *ThreadStore {
	return &ThreadStore{pool: pool}
}

// Open upserts on UNIQUE (builder_id, tradie_id). The no-op DO UPDATE makes
// RETURNING yield the existing row on conflict, and xmax = 0 tells us the
// row was inserted by this statement.
func (s *ThreadStore) Open(ctx context.Context, builderID, tradieID, senderID int64, firstBody string, at time.Time) (*models.Thread, bool, error) {
	var (
		th      models.Thread
		created bool
	)

	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		err := tx.QueryRow(ctx, `
			INSERT INTO message_threads (builder_id, tradie_id, created_at)
			VALUES ($1, $2, $3)
			ON CONFLICT (builder_id, tradie_id)
			DO UPDATE SET builder_id = EXCLUDED.builder_id
			RETURNING id, builder_id, tradie_id, created_at, (xmax = 0)`,
			builderID, tradieID, at,
		).Scan(&th.ID, &th.BuilderID, &th.TradieID, &th.CreatedAt, &created)
		if err != nil {
			return fmt.Errorf("upsert thread: %w", err)
		}

		if firstBody == "" {
			return nil
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO messages (thread_id, sender_id, body, created_at)
			VALUES ($1, $2, $3, $4)`,
			th.ID, senderID, firstBody, at,
		); err != nil {
			return fmt.Errorf("insert first message: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, false, err
	}
	return &th, created, nil
}

func (s *ThreadStore) GetByID(ctx context.Context, threadID int64) (*models.Thread, error) {
	query := `
		SELECT id, builder_id, tradie_id, created_at
		FROM message_threads
		WHERE id = $1`

	var th models.Thread
	err := s.pool.QueryRow(ctx, query, threadID).Scan(
		&th.ID,
		&th.BuilderID,
		&th.TradieID,
		&th.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get thread: %w", err)
	}
	return &th, nil
}

// ListForUser joins each thread with the peer's profile and the thread's
// newest message. Ordering and view filtering happen in the messaging
// service, which also needs closures and unread counts to decide.
func (s *ThreadStore) ListForUser(ctx context.Context, userID int64) ([]models.ThreadRow, error) {
	query := `
		SELECT t.id, t.builder_id, t.tradie_id, t.created_at,
		       p.id, p.role, p.first_name, p.last_name, p.company_name, p.occupation,
		       lm.body, lm.created_at
		FROM message_threads t
		JOIN users p
		  ON p.id = CASE WHEN t.builder_id = $1 THEN t.tradie_id ELSE t.builder_id END
		LEFT JOIN LATERAL (
			SELECT m.body, m.created_at
			FROM messages m
			WHERE m.thread_id = t.id
			ORDER BY m.created_at DESC, m.id DESC
			LIMIT 1
		) lm ON true
		WHERE t.builder_id = $1 OR t.tradie_id = $1`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list threads: %w", err)
	}
	defer rows.Close()

	threads := make([]models.ThreadRow, 0)
	for rows.Next() {
		var r models.ThreadRow
		if err := rows.Scan(
			&r.ID,
			&r.BuilderID,
			&r.TradieID,
			&r.CreatedAt,
			&r.Peer.ID,
			&r.Peer.Role,
			&r.Peer.FirstName,
			&r.Peer.LastName,
			&r.Peer.CompanyName,
			&r.Peer.Occupation,
			&r.LastMessage,
			&r.LastMessageAt,
		); err != nil {
			return nil, fmt.Errorf("scan thread: %w", err)
		}
		threads = append(threads, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate threads: %w", err)
	}

	return threads, nil
}
