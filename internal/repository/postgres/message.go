package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/lalith-99/tradielink/internal/models"
)

type MessageStore struct {
	pool *pgxpool.Pool
}

func NewMessageStore(pool *pgxpool.Pool) *MessageStore {
	return &MessageStore{pool: pool}
}

func (s *MessageStore) Create(ctx context.Context, threadID, senderID int64, body string, at time.Time) (*models.Message, error) {
	query := `
		INSERT INTO messages (thread_id, sender_id, body, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING id, thread_id, sender_id, body, created_at`

	var msg models.Message
	err := s.pool.QueryRow(ctx, query, threadID, senderID, body, at).Scan(
		&msg.ID,
		&msg.ThreadID,
		&msg.SenderID,
		&msg.Body,
		&msg.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert message: %w", err)
	}
	return &msg, nil
}

// ListByThread returns the whole conversation. Threads are two-party and
// the client renders all of it, so there is no pagination.
func (s *MessageStore) ListByThread(ctx context.Context, threadID int64) ([]models.Message, error) {
	query := `
		SELECT m.id, m.thread_id, m.sender_id, u.role, u.first_name, u.last_name, m.body, m.created_at
		FROM messages m
		JOIN users u ON u.id = m.sender_id
		WHERE m.thread_id = $1
		ORDER BY m.created_at ASC, m.id ASC`

	rows, err := s.pool.Query(ctx, query, threadID)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	messages := make([]models.Message, 0)
	for rows.Next() {
		var (
			msg         models.Message
			first, last string
		)
		if err := rows.Scan(
			&msg.ID,
			&msg.ThreadID,
			&msg.SenderID,
			&msg.SenderRole,
			&first,
			&last,
			&msg.Body,
			&msg.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		msg.SenderName = strings.TrimSpace(first + " " + last)
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}

	return messages, nil
}

// UnreadCounts counts, per thread, the peer's messages newer than the
// user's read cursor for that peer. A missing cursor means epoch, so
// everything the peer sent is unread. The user's own messages never count.
func (s *MessageStore) UnreadCounts(ctx context.Context, userID int64) (map[int64]int, error) {
	query := `
		SELECT t.id, COUNT(m.id)
		FROM message_threads t
		JOIN messages m
		  ON m.thread_id = t.id AND m.sender_id <> $1
		LEFT JOIN message_reads r
		  ON r.user_id = $1 AND r.peer_id = m.sender_id
		WHERE (t.builder_id = $1 OR t.tradie_id = $1)
		  AND m.created_at > COALESCE(r.last_read_at, 'epoch'::timestamptz)
		GROUP BY t.id`

	rows, err := s.pool.Query(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("count unread: %w", err)
	}
	defer rows.Close()

	counts := make(map[int64]int)
	for rows.Next() {
		var (
			threadID int64
			n        int
		)
		if err := rows.Scan(&threadID, &n); err != nil {
			return nil, fmt.Errorf("scan unread count: %w", err)
		}
		counts[threadID] = n
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unread counts: %w", err)
	}

	return counts, nil
}
