package solution

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// PostgresBackend keeps documents in the drafter_solutions table.
type PostgresBackend struct {
	db *sql.DB

	schemaOnce sync.Once
	schemaErr  error
}

// NewPostgresBackend connects through the pgx driver and pings the server.
func NewPostgresBackend(ctx context.Context, dsn string) (*PostgresBackend, error) {
	db, err := sql.Open("pgx", strings.TrimSpace(dsn))
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return &PostgresBackend{db: db}, nil
}

func (b *PostgresBackend) ensureSchema(ctx context.Context) error {
	b.schemaOnce.Do(func() {
		_, b.schemaErr = b.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS drafter_solutions (
    name TEXT PRIMARY KEY,
    document BYTEA NOT NULL,
    updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
);
`)
	})
	return b.schemaErr
}

func (b *PostgresBackend) Put(ctx context.Context, name string, data []byte) error {
	if err := CheckName(name); err != nil {
		return err
	}
	if err := b.ensureSchema(ctx); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	if data == nil {
		data = []byte{}
	}
	_, err := b.db.ExecContext(ctx, `
INSERT INTO drafter_solutions (name, document, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (name)
DO UPDATE SET document=EXCLUDED.document, updated_at=EXCLUDED.updated_at
`, name, data, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("put %s: %w", name, err)
	}
	return nil
}

func (b *PostgresBackend) Get(ctx context.Context, name string) ([]byte, error) {
	if err := CheckName(name); err != nil {
		return nil, err
	}
	if err := b.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	var data []byte
	err := b.db.QueryRowContext(ctx, `SELECT document FROM drafter_solutions WHERE name=$1`, name).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", name, err)
	}
	return data, nil
}

func (b *PostgresBackend) List(ctx context.Context) ([]string, error) {
	if err := b.ensureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	rows, err := b.db.QueryContext(ctx, `SELECT name FROM drafter_solutions ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list solutions: %w", err)
	}
	defer rows.Close()
	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("list solutions: %w", err)
		}
		names = append(names, n)
	}
	return names, rows.Err()
}

func (b *PostgresBackend) Close() error { return b.db.Close() }
