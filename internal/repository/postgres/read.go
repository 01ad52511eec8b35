package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

type ReadCursorStore struct {
	pool *pgxpool.Pool
}

func NewReadCursorStore(pool *pgxpool.Pool) *ReadCursorStore {
	return &ReadCursorStore{pool: pool}
}

// MarkRead moves the cursor to at. GREATEST keeps it from going backwards
// when two requests from the same user race.
func (s *ReadCursorStore) MarkRead(ctx context.Context, userID, peerID int64, at time.Time) error {
	query := `
		INSERT INTO message_reads (user_id, peer_id, last_read_at)
		VALUES ($1, $2, $3)
		ON CONFLICT (user_id, peer_id)
		DO UPDATE SET last_read_at = GREATEST(message_reads.last_read_at, EXCLUDED.last_read_at)`

	if _, err := s.pool.Exec(ctx, query, userID, peerID, at); err != nil {
		return fmt.Errorf("mark read: %w", err)
	}
	return nil
}
