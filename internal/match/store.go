package match

import (
	"context"
	"time"
)

// Store is the persistence boundary. Every mutation runs in WithTx; if fn
// returns an error nothing it wrote is kept.
type Store interface {
	WithTx(ctx context.Context, fn func(tx Tx) error) error
	ListLobbies(ctx context.Context, limit int) ([]Match, error)
}

// Tx is a unit of work against the store. Lookups return ErrMatchNotFound
// or ErrLegNotFound when the row does not exist.
type Tx interface {
	GetMatch(ctx context.Context, id string) (Match, error)
	// LockMatch reads the match and holds it until the transaction ends.
	LockMatch(ctx context.Context, id string) (Match, error)
	InsertMatch(ctx context.Context, m Match) error
	UpdateMatch(ctx context.Context, m Match) error
	// ClaimLobby seats the challenger only if the match is still waiting
	// without one, otherwise ErrLobbyUnavailable.
	ClaimLobby(ctx context.Context, id, challengerID, firstPlayerID string, startedAt time.Time) (Match, error)
	// DeleteLobby removes a waiting match owned by hostID, otherwise
	// ErrLobbyUnavailable.
	DeleteLobby(ctx context.Context, id, hostID string) error

	GetLeg(ctx context.Context, id string) (Leg, error)
	LatestLeg(ctx context.Context, matchID string) (Leg, error)
	InsertLeg(ctx context.Context, l Leg) error
	UpdateLeg(ctx context.Context, l Leg) error

	ListVisits(ctx context.Context, legID string) ([]Visit, error)
	CountVisits(ctx context.Context, legID, playerID string) (int, error)
	InsertVisit(ctx context.Context, v Visit) error

	InsertCheckout(ctx context.Context, c Checkout) error
}
