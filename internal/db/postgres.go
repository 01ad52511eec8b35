package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// PoolSize bounds the connection pool. Zero values fall back to 20/4.
type PoolSize struct {
	MaxConns int32
	MinConns int32
}

type DB struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// New creates a database connection pool from a Postgres connection URL
// and verifies it with a ping.
func New(ctx context.Context, databaseURL string, size PoolSize, logger *zap.Logger) (*DB, error) {
	poolConfig, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	// Every client polls the thread list and the open thread every 2.5s,
	// so the pool sees many short queries rather than long transactions.
	// MinConns keeps a few warm for that steady trickle.
	poolConfig.MaxConns = 20
	poolConfig.MinConns = 4
	if size.MaxConns > 0 {
		poolConfig.MaxConns = size.MaxConns
	}
	if size.MinConns > 0 {
		poolConfig.MinConns = min(size.MinConns, poolConfig.MaxConns)
	}
	poolConfig.MaxConnLifetime = 1 * time.Hour
	poolConfig.MaxConnIdleTime = 15 * time.Minute
	poolConfig.HealthCheckPeriod = 30 * time.Second

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Close a pool that cannot ping rather than leak it.
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping DB: %w", err)
	}

	logger.Info("DB connection established",
		zap.String("host", poolConfig.ConnConfig.Host),
		zap.String("database", poolConfig.ConnConfig.Database),
		zap.Int32("max_conns", poolConfig.MaxConns),
	)
	return &DB{
		pool:   pool,
		logger: logger,
	}, nil
}

func (db *DB) Close() {
	db.logger.Info("closing database connection pool")
	db.pool.Close()
}

func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Health pings the pool. It backs the "database" entry of GET /health.
func (db *DB) Health(ctx context.Context) error {
	if err := db.pool.Ping(ctx); err != nil {
		db.logger.Warn("database ping failed", zap.Error(err))
		return err
	}
	return nil
}
