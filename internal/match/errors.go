package match

import (
	"errors"
	"fmt"

	"github.com/merev/ds-match-api/internal/scoring"
)

var (
	ErrNotYourTurn        = errors.New("not this player's turn")
	ErrLegAlreadyClosed   = errors.New("leg already closed")
	ErrMatchNotFound      = errors.New("match not found")
	ErrLegNotFound        = errors.New("leg not found")
	ErrLobbyUnavailable   = errors.New("lobby no longer available")
	ErrMatchNotInProgress = errors.New("match is not in progress")
	ErrNotAParticipant    = errors.New("player is not part of this match")
	ErrInvalidConfig      = errors.New("invalid match config")

	ErrInvalidDart  = scoring.ErrInvalidDart
	ErrInvalidVisit = scoring.ErrInvalidVisit
)

// PersistenceError wraps a store or transport failure.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persistence failure during %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// AsPersistenceError attempts to unwrap err into a PersistenceError.
func AsPersistenceError(err error) (*PersistenceError, bool) {
	var pErr *PersistenceError
	if errors.As(err, &pErr) {
		return pErr, true
	}
	return nil, false
}

var domainErrors = []error{
	ErrNotYourTurn,
	ErrLegAlreadyClosed,
	ErrMatchNotFound,
	ErrLegNotFound,
	ErrLobbyUnavailable,
	ErrMatchNotInProgress,
	ErrNotAParticipant,
	ErrInvalidConfig,
	ErrInvalidDart,
	ErrInvalidVisit,
}

// IsDomainError reports whether err is one of the rule violations above.
func IsDomainError(err error) bool {
	for _, target := range domainErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// persistence passes rule violations through and wraps anything else.
func persistence(op string, err error) error {
	if err == nil || IsDomainError(err) {
		return err
	}
	if _, ok := AsPersistenceError(err); ok {
		return err
	}
	return &PersistenceError{Op: op, Err: err}
}
