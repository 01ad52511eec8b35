package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ClosureStore struct {
	pool *pgxpool.Pool
}

func NewClosureStore(pool *pgxpool.Pool) *ClosureStore {
	return &ClosureStore{pool: pool}
}

// CloseBoth archives the conversation for both participants. Both rows are
// written in one statement so neither side can see a half-closed thread.
func (s *ClosureStore) CloseBoth(ctx context.Context, userID, peerID int64, at time.Time) error {
	query := `
		INSERT INTO thread_closures (user_id, peer_id, closed_at)
		VALUES ($1, $2, $3), ($2, $1, $3)
		ON CONFLICT (user_id, peer_id)
		DO UPDATE SET closed_at = EXCLUDED.closed_at`

	if _, err := s.pool.Exec(ctx, query, userID, peerID, at); err != nil {
		return fmt.Errorf("close thread: %w", err)
	}
	return nil
}

func (s *ClosureStore) ListForUser(ctx context.Context, userID int64) (map[int64]time.Time, error) {
	query := `
		SELECT peer_id, closed_at
		FROM thread_closures
		WHERE user_id = $1`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("list closures: %w", err)
	}

	closures := make(map[int64]time.Time)
	var (
		peerID   int64
		closedAt time.Time
	)
	_, err = pgx.ForEachRow(rows, []any{&peerID, &closedAt}, func() error {
		closures[peerID] = closedAt
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan closures: %w", err)
	}
	return closures, nil
}
