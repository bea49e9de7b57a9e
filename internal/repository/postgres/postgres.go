package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// DB manages the PostgreSQL connection pool.
type DB struct {
	pool *pgxpool.Pool
}

// New connects to connString and ensures the schema is initialized.
func New(ctx context.Context, connString string) (*DB, error) {
	pool, err := pgxpool.New(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to reach database: %w", err)
	}

	if err := initSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to initialize database schema: %w", err)
	}

	return &DB{pool: pool}, nil
}

// initSchema creates the tables if they don't exist (auto-migration).
func initSchema(ctx context.Context, pool *pgxpool.Pool) error {
	query := `
		CREATE TABLE IF NOT EXISTS category (
			id BIGSERIAL PRIMARY KEY,
			name TEXT NOT NULL UNIQUE
		);
		CREATE TABLE IF NOT EXISTS evidence (
			id BIGSERIAL PRIMARY KEY,
			created_at TIMESTAMPTZ NOT NULL,
			last_modified_at TIMESTAMPTZ NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			done BOOLEAN NOT NULL DEFAULT FALSE,
			file_urls TEXT NOT NULL DEFAULT '[]',
			title TEXT NOT NULL DEFAULT '',
			category_id BIGINT NOT NULL REFERENCES category(id) ON DELETE CASCADE,
			user_id BIGINT NOT NULL,
			scope_day TEXT NOT NULL,
			daily_key TEXT UNIQUE
		);
		CREATE INDEX IF NOT EXISTS idx_evidence_scope ON evidence (user_id, category_id, scope_day);
		CREATE INDEX IF NOT EXISTS idx_evidence_created ON evidence (created_at);
	`
	_, err := pool.Exec(ctx, query)
	return err
}

// Close releases every pooled connection.
func (db *DB) Close() {
	db.pool.Close()
}

// Pool returns the pool for use by repositories.
func (db *DB) Pool() *pgxpool.Pool {
	return db.pool
}

// Reset drops all tables. Used by tests.
func (db *DB) Reset(ctx context.Context) error {
	_, err := db.pool.Exec(ctx, `DROP TABLE IF EXISTS evidence; DROP TABLE IF EXISTS category;`)
	if err != nil {
		return err
	}
	return initSchema(ctx, db.pool)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
