package database

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// NewPool connects to Postgres and verifies the connection within timeout.
func NewPool(ctx context.Context, dsn string, timeout time.Duration) (*pgxpool.Pool, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, err
	}

	db, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, err
	}

	if err := db.Ping(ctx); err != nil {
		db.Close()
		return nil, err
	}

	return db, nil
}

// Player IDs are opaque strings issued by the auth service, so they are
// stored as TEXT with no foreign key.
var migrations = []struct {
	name string
	sql  string
}{
	{"pgcrypto", `CREATE EXTENSION IF NOT EXISTS pgcrypto;`},
	{"matches", `
CREATE TABLE IF NOT EXISTS matches (
    id                UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    starting_score    INT NOT NULL,
    best_of           INT NOT NULL,
    double_out        BOOLEAN NOT NULL DEFAULT TRUE,
    player1_id        TEXT NOT NULL,
    player2_id        TEXT,
    player1_legs_won  INT NOT NULL DEFAULT 0,
    player2_legs_won  INT NOT NULL DEFAULT 0,
    current_player_id TEXT,
    status            TEXT NOT NULL DEFAULT 'waiting'
                      CHECK (status IN ('waiting', 'in_progress', 'completed', 'abandoned')),
    winner_id         TEXT,
    version           BIGINT NOT NULL DEFAULT 1,
    created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
    started_at        TIMESTAMPTZ,
    ended_at          TIMESTAMPTZ
);
`},
	{"matches_lobby_idx", `
CREATE INDEX IF NOT EXISTS matches_open_lobbies_idx
    ON matches (created_at DESC) WHERE status = 'waiting';
`},
	{"legs", `
CREATE TABLE IF NOT EXISTS legs (
    id                     UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    match_id               UUID NOT NULL REFERENCES matches(id) ON DELETE CASCADE,
    leg_number             INT NOT NULL,
    starter_id             TEXT NOT NULL,
    player1_id             TEXT NOT NULL,
    player1_starting_score INT NOT NULL,
    player1_remaining      INT NOT NULL CHECK (player1_remaining >= 0),
    player1_darts_thrown   INT NOT NULL DEFAULT 0,
    player1_total_scored   INT NOT NULL DEFAULT 0,
    player2_id             TEXT NOT NULL,
    player2_starting_score INT NOT NULL,
    player2_remaining      INT NOT NULL CHECK (player2_remaining >= 0),
    player2_darts_thrown   INT NOT NULL DEFAULT 0,
    player2_total_scored   INT NOT NULL DEFAULT 0,
    winner_id              TEXT,
    created_at             TIMESTAMPTZ NOT NULL DEFAULT now(),
    completed_at           TIMESTAMPTZ,
    UNIQUE (match_id, leg_number)
);
`},
	{"legs_one_open_idx", `
CREATE UNIQUE INDEX IF NOT EXISTS legs_one_open_per_match_idx
    ON legs (match_id) WHERE winner_id IS NULL;
`},
	{"visits", `
CREATE TABLE IF NOT EXISTS visits (
    id               UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    leg_id           UUID NOT NULL REFERENCES legs(id) ON DELETE CASCADE,
    match_id         UUID NOT NULL REFERENCES matches(id) ON DELETE CASCADE,
    player_id        TEXT NOT NULL,
    visit_number     INT NOT NULL,
    dart1_face       INT,
    dart1_multiplier INT,
    dart2_face       INT,
    dart2_multiplier INT,
    dart3_face       INT,
    dart3_multiplier INT,
    total_scored     INT NOT NULL,
    remaining_before INT NOT NULL,
    remaining_after  INT NOT NULL,
    is_bust          BOOLEAN NOT NULL DEFAULT FALSE,
    is_checkout      BOOLEAN NOT NULL DEFAULT FALSE,
    created_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
    UNIQUE (leg_id, player_id, visit_number)
);
`},
	{"checkouts", `
CREATE TABLE IF NOT EXISTS checkouts (
    id             UUID PRIMARY KEY DEFAULT gen_random_uuid(),
    player_id      TEXT NOT NULL,
    match_id       UUID NOT NULL REFERENCES matches(id) ON DELETE CASCADE,
    leg_id         UUID NOT NULL REFERENCES legs(id) ON DELETE CASCADE,
    checkout_score INT NOT NULL,
    darts_used     INT NOT NULL,
    route          TEXT NOT NULL,
    created_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);
`},
	{"checkouts_player_idx", `
CREATE INDEX IF NOT EXISTS checkouts_player_idx ON checkouts (player_id, created_at DESC);
`},
}

// Migrate creates the match tables if they do not exist yet.
func Migrate(ctx context.Context, db *pgxpool.Pool, logger *slog.Logger) error {
	for _, m := range migrations {
		if _, err := db.Exec(ctx, m.sql); err != nil {
			logger.Error("migration failed", "step", m.name, "error", err)
			return err
		}
	}

	logger.Info("match-api migrations applied", "steps", len(migrations))
	return nil
}
