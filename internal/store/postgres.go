package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/merev/ds-match-api/internal/match"
	"github.com/merev/ds-match-api/internal/scoring"
)

// Postgres is a match.Store on a pgx pool. LockMatch takes a row lock, so
// writes to one match are serialized by the database.
type Postgres struct {
	db *pgxpool.Pool
}

func NewPostgres(db *pgxpool.Pool) *Postgres {
	return &Postgres{db: db}
}

func (s *Postgres) WithTx(ctx context.Context, fn func(tx match.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	// Ensure rollback if we return before Commit
	defer func() {
		_ = tx.Rollback(ctx)
	}()

	if err := fn(&pgTx{tx: tx}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (s *Postgres) ListLobbies(ctx context.Context, limit int) ([]match.Match, error) {
	rows, err := s.db.Query(ctx, `
SELECT `+matchColumns+`
FROM matches
WHERE status = 'waiting' AND player2_id IS NULL
ORDER BY created_at DESC
LIMIT $1;
`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	lobbies := make([]match.Match, 0)
	for rows.Next() {
		m, err := scanMatch(rows)
		if err != nil {
			return nil, err
		}
		lobbies = append(lobbies, m)
	}
	return lobbies, rows.Err()
}

// -----------------------------------------------------------------------------
// Matches
// -----------------------------------------------------------------------------

const matchColumns = `id::text, starting_score, best_of, double_out, player1_id, player2_id,
       player1_legs_won, player2_legs_won, current_player_id, status, winner_id,
       version, created_at, started_at, ended_at`

type pgTx struct {
	tx pgx.Tx
}

func scanMatch(row pgx.Row) (match.Match, error) {
	var (
		m                         match.Match
		player2, current, winner *string
		status                    string
	)
	err := row.Scan(
		&m.ID,
		&m.Config.StartingScore,
		&m.Config.BestOf,
		&m.Config.DoubleOut,
		&m.Player1ID,
		&player2,
		&m.Player1LegsWon,
		&m.Player2LegsWon,
		&current,
		&status,
		&winner,
		&m.Version,
		&m.CreatedAt,
		&m.StartedAt,
		&m.EndedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return match.Match{}, match.ErrMatchNotFound
		}
		return match.Match{}, err
	}
	m.Player2ID = deref(player2)
	m.CurrentPlayerID = deref(current)
	m.WinnerID = deref(winner)
	m.Status = match.Status(status)
	return m, nil
}

func (t *pgTx) GetMatch(ctx context.Context, id string) (match.Match, error) {
	if !isUUID(id) {
		return match.Match{}, match.ErrMatchNotFound
	}
	return scanMatch(t.tx.QueryRow(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = $1;`, id))
}

func (t *pgTx) LockMatch(ctx context.Context, id string) (match.Match, error) {
	if !isUUID(id) {
		return match.Match{}, match.ErrMatchNotFound
	}
	return scanMatch(t.tx.QueryRow(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = $1 FOR UPDATE;`, id))
}

func (t *pgTx) InsertMatch(ctx context.Context, m match.Match) error {
	_, err := t.tx.Exec(ctx, `
INSERT INTO matches (id, starting_score, best_of, double_out, player1_id, status, version, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
`, m.ID, m.Config.StartingScore, m.Config.BestOf, m.Config.DoubleOut, m.Player1ID, string(m.Status), m.Version, m.CreatedAt)
	return err
}

func (t *pgTx) UpdateMatch(ctx context.Context, m match.Match) error {
	tag, err := t.tx.Exec(ctx, `
UPDATE matches
SET player1_legs_won = $2,
    player2_legs_won = $3,
    current_player_id = $4,
    status = $5,
    winner_id = $6,
    version = $7,
    ended_at = $8
WHERE id = $1;
`, m.ID, m.Player1LegsWon, m.Player2LegsWon, nullable(m.CurrentPlayerID), string(m.Status), nullable(m.WinnerID), m.Version, m.EndedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return match.ErrMatchNotFound
	}
	return nil
}

func (t *pgTx) ClaimLobby(ctx context.Context, id, challengerID, firstPlayerID string, startedAt time.Time) (match.Match, error) {
	if !isUUID(id) {
		return match.Match{}, match.ErrMatchNotFound
	}
	m, err := scanMatch(t.tx.QueryRow(ctx, `
UPDATE matches
SET player2_id = $2,
    status = 'in_progress',
    current_player_id = $3,
    started_at = $4,
    version = version + 1
WHERE id = $1 AND status = 'waiting' AND player2_id IS NULL
RETURNING `+matchColumns+`;
`, id, challengerID, firstPlayerID, startedAt))
	if errors.Is(err, match.ErrMatchNotFound) {
		return match.Match{}, match.ErrLobbyUnavailable
	}
	return m, err
}

func (t *pgTx) DeleteLobby(ctx context.Context, id, hostID string) error {
	if !isUUID(id) {
		return match.ErrLobbyUnavailable
	}
	tag, err := t.tx.Exec(ctx, `
DELETE FROM matches
WHERE id = $1 AND player1_id = $2 AND status = 'waiting' AND player2_id IS NULL;
`, id, hostID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return match.ErrLobbyUnavailable
	}
	return nil
}

// -----------------------------------------------------------------------------
// Legs
// -----------------------------------------------------------------------------

const legColumns = `id::text, match_id::text, leg_number, starter_id,
       player1_id, player1_starting_score, player1_remaining, player1_darts_thrown, player1_total_scored,
       player2_id, player2_starting_score, player2_remaining, player2_darts_thrown, player2_total_scored,
       winner_id, created_at, completed_at`

func scanLeg(row pgx.Row) (match.Leg, error) {
	var (
		l      match.Leg
		winner *string
		p1, p2 = &l.Players[0], &l.Players[1]
	)
	err := row.Scan(
		&l.ID, &l.MatchID, &l.Number, &l.StarterID,
		&p1.PlayerID, &p1.StartingScore, &p1.Remaining, &p1.DartsThrown, &p1.TotalScored,
		&p2.PlayerID, &p2.StartingScore, &p2.Remaining, &p2.DartsThrown, &p2.TotalScored,
		&winner, &l.CreatedAt, &l.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return match.Leg{}, match.ErrLegNotFound
		}
		return match.Leg{}, err
	}
	l.WinnerID = deref(winner)
	return l, nil
}

func (t *pgTx) GetLeg(ctx context.Context, id string) (match.Leg, error) {
	if !isUUID(id) {
		return match.Leg{}, match.ErrLegNotFound
	}
	return scanLeg(t.tx.QueryRow(ctx, `SELECT `+legColumns+` FROM legs WHERE id = $1;`, id))
}

func (t *pgTx) LatestLeg(ctx context.Context, matchID string) (match.Leg, error) {
	if !isUUID(matchID) {
		return match.Leg{}, match.ErrLegNotFound
	}
	return scanLeg(t.tx.QueryRow(ctx, `
SELECT `+legColumns+`
FROM legs
WHERE match_id = $1
ORDER BY leg_number DESC
LIMIT 1;
`, matchID))
}

func (t *pgTx) InsertLeg(ctx context.Context, l match.Leg) error {
	p1, p2 := l.Players[0], l.Players[1]
	_, err := t.tx.Exec(ctx, `
INSERT INTO legs (
    id, match_id, leg_number, starter_id,
    player1_id, player1_starting_score, player1_remaining, player1_darts_thrown, player1_total_scored,
    player2_id, player2_starting_score, player2_remaining, player2_darts_thrown, player2_total_scored,
    created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15);
`, l.ID, l.MatchID, l.Number, l.StarterID,
		p1.PlayerID, p1.StartingScore, p1.Remaining, p1.DartsThrown, p1.TotalScored,
		p2.PlayerID, p2.StartingScore, p2.Remaining, p2.DartsThrown, p2.TotalScored,
		l.CreatedAt)
	return err
}

func (t *pgTx) UpdateLeg(ctx context.Context, l match.Leg) error {
	p1, p2 := l.Players[0], l.Players[1]
	tag, err := t.tx.Exec(ctx, `
UPDATE legs
SET player1_remaining = $2,
    player1_darts_thrown = $3,
    player1_total_scored = $4,
    player2_remaining = $5,
    player2_darts_thrown = $6,
    player2_total_scored = $7,
    winner_id = $8,
    completed_at = $9
WHERE id = $1;
`, l.ID,
		p1.Remaining, p1.DartsThrown, p1.TotalScored,
		p2.Remaining, p2.DartsThrown, p2.TotalScored,
		nullable(l.WinnerID), l.CompletedAt)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return match.ErrLegNotFound
	}
	return nil
}

// -----------------------------------------------------------------------------
// Visits & checkouts
// -----------------------------------------------------------------------------

func (t *pgTx) ListVisits(ctx context.Context, legID string) ([]match.Visit, error) {
	rows, err := t.tx.Query(ctx, `
SELECT id::text, leg_id::text, match_id::text, player_id, visit_number,
       dart1_face, dart1_multiplier, dart2_face, dart2_multiplier, dart3_face, dart3_multiplier,
       total_scored, remaining_before, remaining_after, is_bust, is_checkout, created_at
FROM visits
WHERE leg_id = $1
ORDER BY visit_number ASC, created_at ASC, id ASC;
`, legID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	visits := make([]match.Visit, 0)
	for rows.Next() {
		var (
			v     match.Visit
			faces [scoring.MaxDartsPerVisit]*int
			mults [scoring.MaxDartsPerVisit]*int
		)
		if err := rows.Scan(
			&v.ID, &v.LegID, &v.MatchID, &v.PlayerID, &v.Number,
			&faces[0], &mults[0], &faces[1], &mults[1], &faces[2], &mults[2],
			&v.TotalScored, &v.RemainingBefore, &v.RemainingAfter, &v.IsBust, &v.IsCheckout, &v.CreatedAt,
		); err != nil {
			return nil, err
		}
		for i := range faces {
			if faces[i] == nil || mults[i] == nil {
				break
			}
			v.Darts = append(v.Darts, scoring.Dart{Face: *faces[i], Multiplier: scoring.Multiplier(*mults[i])})
		}
		visits = append(visits, v)
	}
	return visits, rows.Err()
}

func (t *pgTx) CountVisits(ctx context.Context, legID, playerID string) (int, error) {
	var n int
	err := t.tx.QueryRow(ctx, `
SELECT COUNT(*) FROM visits WHERE leg_id = $1 AND player_id = $2;
`, legID, playerID).Scan(&n)
	return n, err
}

func (t *pgTx) InsertVisit(ctx context.Context, v match.Visit) error {
	args := []any{v.ID, v.LegID, v.MatchID, v.PlayerID, v.Number}
	for i := range scoring.MaxDartsPerVisit {
		if i < len(v.Darts) {
			args = append(args, v.Darts[i].Face, int(v.Darts[i].Multiplier))
		} else {
			args = append(args, nil, nil)
		}
	}
	args = append(args, v.TotalScored, v.RemainingBefore, v.RemainingAfter, v.IsBust, v.IsCheckout, v.CreatedAt)

	_, err := t.tx.Exec(ctx, `
INSERT INTO visits (
    id, leg_id, match_id, player_id, visit_number,
    dart1_face, dart1_multiplier, dart2_face, dart2_multiplier, dart3_face, dart3_multiplier,
    total_scored, remaining_before, remaining_after, is_bust, is_checkout, created_at
)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17);
`, args...)
	return err
}

func (t *pgTx) InsertCheckout(ctx context.Context, c match.Checkout) error {
	_, err := t.tx.Exec(ctx, `
INSERT INTO checkouts (id, player_id, match_id, leg_id, checkout_score, darts_used, route, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8);
`, c.ID, c.PlayerID, c.MatchID, c.LegID, c.Score, c.DartsUsed, c.Route, c.CreatedAt)
	return err
}

// isUUID reports whether id can be bound to a UUID column. Anything else
// cannot name a row, and pgx would fail to encode it.
func isUUID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
