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

// TypingStore keeps typing intents in the typing_status table. Rows are
// overwritten in place, never appended.
type TypingStore struct {
	pool *pgxpool.Pool
}

func NewTypingStore(pool *pgxpool.Pool) *TypingStore {
	return &TypingStore{pool: pool}
}

func (s *TypingStore) SetTyping(ctx context.Context, fromUserID, toUserID int64, isTyping bool, at time.Time) error {
	query := `
		INSERT INTO typing_status (from_user_id, to_user_id, is_typing, updated_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (from_user_id, to_user_id)
		DO UPDATE SET is_typing = EXCLUDED.is_typing, updated_at = EXCLUDED.updated_at`

	if _, err := s.pool.Exec(ctx, query, fromUserID, toUserID, isTyping, at); err != nil {
		return fmt.Errorf("set typing: %w", err)
	}
	return nil
}

func (s *TypingStore) GetTyping(ctx context.Context, fromUserID, toUserID int64) (*models.TypingIntent, error) {
	query := `
		SELECT from_user_id, to_user_id, is_typing, updated_at
		FROM typing_status
		WHERE from_user_id = $1 AND to_user_id = $2`

	var ti models.TypingIntent
	err := s.pool.QueryRow(ctx, query, fromUserID, toUserID).Scan(
		&ti.FromUserID,
		&ti.ToUserID,
		&ti.IsTyping,
		&ti.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get typing: %w", err)
	}
	return &ti, nil
}
