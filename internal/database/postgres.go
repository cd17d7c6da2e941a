// Package database implements the PostgreSQL repositories behind the domain
// contracts: the reputation ledger, the vote store, and the annotated
// question queries.
package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Connect opens a pgx connection pool and verifies connectivity.
func Connect(ctx context.Context, databaseURL string) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database URL: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	slog.Info("Database connected", "min_conns", poolCfg.MinConns, "max_conns", poolCfg.MaxConns)
	return pool, nil
}

// RunMigrations applies the schema. Statements are idempotent so a restart
// replays them safely.
func RunMigrations(ctx context.Context, pool *pgxpool.Pool) error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			email TEXT UNIQUE NOT NULL,
			username TEXT NOT NULL,
			reputation INTEGER NOT NULL DEFAULT 0 CHECK (reputation >= 0),
			is_staff BOOLEAN NOT NULL DEFAULT FALSE,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE TABLE IF NOT EXISTS reputation_actions (
			action TEXT PRIMARY KEY,
			amount INTEGER NOT NULL
		)`,
		`INSERT INTO reputation_actions (action, amount)
			VALUES ('CREATE_QUESTION', -10), ('VOTE_QUESTION', 1)
			ON CONFLICT (action) DO NOTHING`,
		`CREATE TABLE IF NOT EXISTS questions (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			text TEXT NOT NULL,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			closed BOOLEAN NOT NULL DEFAULT FALSE,
			time_created TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			closed_date TIMESTAMPTZ
		)`,
		`CREATE INDEX IF NOT EXISTS idx_questions_user ON questions(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_questions_time_created ON questions(time_created DESC)`,
		`CREATE TABLE IF NOT EXISTS tags (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			name TEXT UNIQUE NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS question_tags (
			question_id UUID NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
			tag_id UUID NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
			PRIMARY KEY (question_id, tag_id)
		)`,
		`CREATE TABLE IF NOT EXISTS answers (
			id UUID PRIMARY KEY DEFAULT gen_random_uuid(),
			question_id UUID NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			text TEXT NOT NULL,
			time_created TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,
		`CREATE INDEX IF NOT EXISTS idx_answers_question ON answers(question_id)`,
		`CREATE TABLE IF NOT EXISTS votes (
			user_id UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			question_id UUID NOT NULL REFERENCES questions(id) ON DELETE CASCADE,
			up BOOLEAN NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (user_id, question_id)
		)`,
		`CREATE INDEX IF NOT EXISTS idx_votes_question ON votes(question_id)`,
	}

	for _, migration := range migrations {
		if _, err := pool.Exec(ctx, migration); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}

	slog.Info("Database migrations completed")
	return nil
}
