// Package repository provides data access layer implementations.
package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog/log"
)

// Execer runs schema statements. *pgxpool.Pool satisfies it.
type Execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

var migrations = []struct {
	name string
	sql  string
}{
	{
		name: "game_sessions table",
		sql: `
			CREATE TABLE IF NOT EXISTS game_sessions (
				session_id BIGINT PRIMARY KEY,
				account VARCHAR(64) NOT NULL,
				game_type SMALLINT NOT NULL,
				bet BIGINT NOT NULL DEFAULT 0,
				payout BIGINT,
				final_chips BIGINT,
				status VARCHAR(16) NOT NULL,
				started_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				completed_at TIMESTAMPTZ
			);
			CREATE INDEX IF NOT EXISTS idx_game_sessions_account_time ON game_sessions(account, started_at DESC);
		`,
	},
	{
		name: "submissions table",
		sql: `
			CREATE TABLE IF NOT EXISTS submissions (
				account VARCHAR(64) NOT NULL,
				nonce BIGINT NOT NULL,
				kind VARCHAR(32) NOT NULL,
				status VARCHAR(16) NOT NULL,
				error TEXT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				PRIMARY KEY (account, nonce)
			);
			CREATE INDEX IF NOT EXISTS idx_submissions_status ON submissions(account, status);
		`,
	},
}

// Migrate creates the schema. Every statement is idempotent.
func Migrate(ctx context.Context, db Execer) error {
	log.Info().Msg("Running database migrations...")
	for i, m := range migrations {
		if _, err := db.Exec(ctx, m.sql); err != nil {
			return fmt.Errorf("migration %d (%s): %w", i+1, m.name, err)
		}
		log.Info().Int("migration", i+1).Str("name", m.name).Msg("Migration applied")
	}
	log.Info().Msg("All migrations completed successfully")
	return nil
}
