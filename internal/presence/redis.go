// Package presence keeps typing intents in Redis. It is the alternative to
// the typing_status table for deployments that already run Redis: keys
// expire on their own, so stale intents do not accumulate.
package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lalith-99/tradielink/internal/models"
	"github.com/redis/go-redis/v9"
)

const keyPrefix = "typing:"

// RedisStore implements repository.TypingRepository.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to redisURL and pings it. ttl is how long a key
// lives after its last write; readers still apply their own freshness check.
func NewRedisStore(ctx context.Context, redisURL string, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}

	return NewRedisStoreWithClient(client, ttl), nil
}

func NewRedisStoreWithClient(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func key(fromUserID, toUserID int64) string {
	return fmt.Sprintf("%s%d:%d", keyPrefix, fromUserID, toUserID)
}

func (s *RedisStore) SetTyping(ctx context.Context, fromUserID, toUserID int64, isTyping bool, at time.Time) error {
	data, err := json.Marshal(models.TypingIntent{
		FromUserID: fromUserID,
		ToUserID:   toUserID,
		IsTyping:   isTyping,
		UpdatedAt:  at,
	})
	if err != nil {
		return fmt.Errorf("marshal typing intent: %w", err)
	}

	if err := s.client.Set(ctx, key(fromUserID, toUserID), data, s.ttl).Err(); err != nil {
		return fmt.Errorf("set typing: %w", err)
	}
	return nil
}

func (s *RedisStore) GetTyping(ctx context.Context, fromUserID, toUserID int64) (*models.TypingIntent, error) {
	raw, err := s.client.Get(ctx, key(fromUserID, toUserID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get typing: %w", err)
	}

	var ti models.TypingIntent
	if err := json.Unmarshal(raw, &ti); err != nil {
		return nil, fmt.Errorf("unmarshal typing intent: %w", err)
	}
	return &ti, nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.client.Close()
}
