package client

import (
	"github.com/merev/ds-match-api/internal/match"
	"github.com/merev/ds-match-api/internal/scoring"
)

// Wire types returned and accepted by Client. They are aliases, so values
// move between the server packages and callers without conversion.
type (
	Match              = match.Match
	Config             = match.Config
	Status             = match.Status
	Leg                = match.Leg
	LegPlayer          = match.LegPlayer
	Visit              = match.Visit
	Suggestion         = match.Suggestion
	Snapshot           = match.Snapshot
	VisitResult        = match.VisitResult
	CreateLobbyRequest = match.CreateLobbyRequest
	CheckoutResponse   = match.CheckoutResponse
	PersistenceError   = match.PersistenceError

	Dart       = scoring.Dart
	Multiplier = scoring.Multiplier
)

const (
	StatusWaiting    = match.StatusWaiting
	StatusInProgress = match.StatusInProgress
	StatusCompleted  = match.StatusCompleted
	StatusAbandoned  = match.StatusAbandoned

	Single = scoring.Single
	Double = scoring.Double
	Treble = scoring.Treble

	Miss = scoring.Miss
	Bull = scoring.Bull
)

// Errors an APIError unwraps to, for use with errors.Is.
var (
	ErrNotYourTurn        = match.ErrNotYourTurn
	ErrLegAlreadyClosed   = match.ErrLegAlreadyClosed
	ErrMatchNotFound      = match.ErrMatchNotFound
	ErrLegNotFound        = match.ErrLegNotFound
	ErrLobbyUnavailable   = match.ErrLobbyUnavailable
	ErrInvalidDart        = match.ErrInvalidDart
	ErrInvalidVisit       = match.ErrInvalidVisit
	ErrInvalidConfig      = match.ErrInvalidConfig
	ErrMatchNotInProgress = match.ErrMatchNotInProgress
	ErrNotAParticipant    = match.ErrNotAParticipant
)

// AsPersistenceError reports whether err is a transport or server-side
// failure that is worth retrying.
func AsPersistenceError(err error) (*PersistenceError, bool) {
	return match.AsPersistenceError(err)
}
