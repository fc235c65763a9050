package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	appLog "confprog/internal/log"
	"confprog/internal/store/migrations"
)

// Postgres keeps documents in a single JSONB table.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres connects, pings and applies migrations.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, errors.New("postgres DSN is empty")
	}

	startupCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	pool, err := pgxpool.New(startupCtx, dsn)
	if err != nil {
		return nil, fmt.Errorf("connect to db: %w", err)
	}
	if err := pool.Ping(startupCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("db ping: %w", err)
	}
	if err := migrations.Apply(startupCtx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("apply migrations: %w", err)
	}

	appLog.Info("postgres store ready")
	return NewPostgresWithPool(pool), nil
}

// NewPostgresWithPool wraps an existing pool. Migrations must already be
// applied.
func NewPostgresWithPool(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (p *Postgres) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if key == "" {
		return nil, false, ErrEmptyKey
	}

	const query = `SELECT body FROM documents WHERE key = $1`

	var body []byte
	if err := p.pool.QueryRow(ctx, query, key).Scan(&body); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("get document %s: %w", key, err)
	}
	return body, true, nil
}

func (p *Postgres) Set(ctx context.Context, key string, body []byte) error {
	if key == "" {
		return ErrEmptyKey
	}

	const stmt = `
INSERT INTO documents (key, body, updated_at)
VALUES ($1, $2, NOW())
ON CONFLICT (key) DO UPDATE SET body = EXCLUDED.body, updated_at = EXCLUDED.updated_at`

	if _, err := p.pool.Exec(ctx, stmt, key, string(body)); err != nil {
		return fmt.Errorf("set document %s: %w", key, err)
	}
	return nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

var _ DocumentStore = (*Postgres)(nil)
