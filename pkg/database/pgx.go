package database

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGXPool wraps a pgx connection pool. This backs the client data-access
// strategy; it runs the same queries as the direct pool and must be
// observably identical to callers.
type PGXPool struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

// NewPGXPool opens and verifies a pgx connection pool
func NewPGXPool(ctx context.Context, databaseURL string, logger *slog.Logger) (*PGXPool, error) {
	if logger == nil {
		logger = slog.Default()
	}

	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid database url: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create pgx pool: %w", err)
	}

	ctxTest, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := pool.Ping(ctxTest); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	logger.Info("pgx client connected successfully")
	return &PGXPool{pool: pool, logger: logger}, nil
}

// Pool returns the underlying pgx pool
func (p *PGXPool) Pool() *pgxpool.Pool {
	return p.pool
}

// Close closes the pool
func (p *PGXPool) Close() {
	if p.pool != nil {
		p.pool.Close()
	}
}

// Health checks the database health
func (p *PGXPool) Health(ctx context.Context) error {
	ctxTest, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return p.pool.Ping(ctxTest)
}
