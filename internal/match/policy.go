package match

import "fmt"

// TurnPolicy decides who throws first in every leg after the first.
type TurnPolicy string

const (
	// TurnContinue keeps alternating: the opponent of whoever checked out
	// opens the next leg.
	TurnContinue TurnPolicy = "continue"
	// TurnAlternate alternates the leg starter regardless of who won.
	TurnAlternate TurnPolicy = "alternate"
	// TurnWinner lets the leg winner open the next leg.
	TurnWinner TurnPolicy = "winner"
)

func ParseTurnPolicy(s string) (TurnPolicy, error) {
	switch p := TurnPolicy(s); p {
	case TurnContinue, TurnAlternate, TurnWinner:
		return p, nil
	case "":
		return TurnContinue, nil
	}
	return "", fmt.Errorf("unknown turn policy %q", s)
}

func (p TurnPolicy) nextStarter(m Match, closed Leg) string {
	switch p {
	case TurnAlternate:
		return m.Opponent(closed.StarterID)
	case TurnWinner:
		return closed.WinnerID
	default:
		return m.Opponent(closed.WinnerID)
	}
}

// FirstThrow decides who opens leg 1.
type FirstThrow string

const (
	FirstThrowHost       FirstThrow = "host"
	FirstThrowChallenger FirstThrow = "challenger"
)

func ParseFirstThrow(s string) (FirstThrow, error) {
	switch f := FirstThrow(s); f {
	case FirstThrowHost, FirstThrowChallenger:
		return f, nil
	case "":
		return FirstThrowChallenger, nil
	}
	return "", fmt.Errorf("unknown first throw %q", s)
}

func (f FirstThrow) player(hostID, challengerID string) string {
	if f == FirstThrowHost {
		return hostID
	}
	return challengerID
}
