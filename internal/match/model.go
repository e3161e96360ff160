package match

import (
	"fmt"
	"time"

	"github.com/merev/ds-match-api/internal/scoring"
)

// Status is the lifecycle of a match. It only moves forward.
type Status string

const (
	StatusWaiting    Status = "waiting"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
	StatusAbandoned  Status = "abandoned"
)

// Terminal reports whether no further play is accepted.
func (s Status) Terminal() bool {
	return s == StatusCompleted || s == StatusAbandoned
}

// Config is the game mode a lobby is created with.
type Config struct {
	StartingScore int  `json:"startingScore"` // 301, 501, ...
	BestOf        int  `json:"bestOf"`
	DoubleOut     bool `json:"doubleOut"`
}

const (
	DefaultStartingScore = 501
	DefaultBestOf        = 5
	maxStartingScore     = 1001
	maxBestOf            = 21
)

// WinThreshold is the number of legs needed to win: ceil(BestOf/2).
func (c Config) WinThreshold() int {
	return (c.BestOf + 1) / 2
}

func (c Config) Validate() error {
	if c.StartingScore < 2 || c.StartingScore > maxStartingScore {
		return fmt.Errorf("%w: startingScore must be between 2 and %d", ErrInvalidConfig, maxStartingScore)
	}
	if c.BestOf < 1 || c.BestOf > maxBestOf {
		return fmt.Errorf("%w: bestOf must be between 1 and %d", ErrInvalidConfig, maxBestOf)
	}
	return nil
}

// Match is one play session between two players. Player2ID is empty while
// the lobby is waiting for a challenger.
type Match struct {
	ID              string     `json:"id"`
	Config          Config     `json:"config"`
	Player1ID       string     `json:"player1Id"`
	Player2ID       string     `json:"player2Id,omitempty"`
	Player1LegsWon  int        `json:"player1LegsWon"`
	Player2LegsWon  int        `json:"player2LegsWon"`
	CurrentPlayerID string     `json:"currentPlayerId,omitempty"`
	Status          Status     `json:"status"`
	WinnerID        string     `json:"winnerId,omitempty"`
	Version         int64      `json:"version"`
	CreatedAt       time.Time  `json:"createdAt"`
	StartedAt       *time.Time `json:"startedAt,omitempty"`
	EndedAt         *time.Time `json:"endedAt,omitempty"`
}

// Seat is a player's position in a match: 0 for the host, 1 for the
// challenger.
type Seat int

func (m *Match) SeatOf(playerID string) (Seat, bool) {
	switch {
	case playerID == "":
		return 0, false
	case playerID == m.Player1ID:
		return 0, true
	case playerID == m.Player2ID:
		return 1, true
	}
	return 0, false
}

func (m *Match) Opponent(playerID string) string {
	if playerID == m.Player1ID {
		return m.Player2ID
	}
	return m.Player1ID
}

func (m *Match) LegsWon(playerID string) int {
	if playerID == m.Player1ID {
		return m.Player1LegsWon
	}
	return m.Player2LegsWon
}

func (m *Match) addLegWon(playerID string) int {
	if playerID == m.Player1ID {
		m.Player1LegsWon++
		return m.Player1LegsWon
	}
	m.Player2LegsWon++
	return m.Player2LegsWon
}

// LegPlayer is one player's running totals inside a leg.
type LegPlayer struct {
	PlayerID      string `json:"playerId"`
	StartingScore int    `json:"startingScore"`
	Remaining     int    `json:"remaining"`
	DartsThrown   int    `json:"dartsThrown"`
	TotalScored   int    `json:"totalScored"`
}

// Average is the three-dart average for the leg so far.
func (p LegPlayer) Average() float64 {
	return scoring.Average(p.TotalScored, p.DartsThrown)
}

// Leg is one game down to zero. It is open until WinnerID is set.
type Leg struct {
	ID          string       `json:"id"`
	MatchID     string       `json:"matchId"`
	Number      int          `json:"number"`
	StarterID   string       `json:"starterId"`
	Players     [2]LegPlayer `json:"players"`
	WinnerID    string       `json:"winnerId,omitempty"`
	CreatedAt   time.Time    `json:"createdAt"`
	CompletedAt *time.Time   `json:"completedAt,omitempty"`
}

func (l *Leg) Open() bool { return l.WinnerID == "" }

// Player returns the totals for playerID, or nil.
func (l *Leg) Player(playerID string) *LegPlayer {
	for i := range l.Players {
		if l.Players[i].PlayerID == playerID {
			return &l.Players[i]
		}
	}
	return nil
}

func newLeg(id string, m Match, number int, starterID string, now time.Time) Leg {
	start := m.Config.StartingScore
	return Leg{
		ID:        id,
		MatchID:   m.ID,
		Number:    number,
		StarterID: starterID,
		Players: [2]LegPlayer{
			{PlayerID: m.Player1ID, StartingScore: start, Remaining: start},
			{PlayerID: m.Player2ID, StartingScore: start, Remaining: start},
		},
		CreatedAt: now,
	}
}

// Visit is one recorded turn. Visits are append-only.
type Visit struct {
	ID              string         `json:"id"`
	LegID           string         `json:"legId"`
	MatchID         string         `json:"matchId"`
	PlayerID        string         `json:"playerId"`
	Number          int            `json:"number"` // per player within the leg
	Darts           []scoring.Dart `json:"darts"`
	TotalScored     int            `json:"totalScored"`
	RemainingBefore int            `json:"remainingBefore"`
	RemainingAfter  int            `json:"remainingAfter"`
	IsBust          bool           `json:"isBust"`
	IsCheckout      bool           `json:"isCheckout"`
	CreatedAt       time.Time      `json:"createdAt"`
}

// Checkout is a finished leg kept for checkout history.
type Checkout struct {
	ID        string    `json:"id"`
	PlayerID  string    `json:"playerId"`
	MatchID   string    `json:"matchId"`
	LegID     string    `json:"legId"`
	Score     int       `json:"score"`
	DartsUsed int       `json:"dartsUsed"`
	Route     string    `json:"route"`
	CreatedAt time.Time `json:"createdAt"`
}

// Suggestion is the advisory route for the player on throw.
type Suggestion struct {
	PlayerID  string `json:"playerId"`
	Remaining int    `json:"remaining"`
	Route     string `json:"route"`
}

// Snapshot is the full state a client renders from.
type Snapshot struct {
	Match      Match              `json:"match"`
	Leg        *Leg               `json:"leg,omitempty"`
	Visits     []Visit            `json:"visits"`
	Averages   map[string]float64 `json:"averages"`
	Suggestion *Suggestion        `json:"suggestion,omitempty"`
}

// VisitResult is what RecordVisit hands back to the thrower.
type VisitResult struct {
	Visit   Visit `json:"visit"`
	Leg     Leg   `json:"leg"`
	NextLeg *Leg  `json:"nextLeg,omitempty"`
	Match   Match `json:"match"`
}

// CreateLobbyRequest is the body of POST /api/lobbies.
type CreateLobbyRequest struct {
	StartingScore int   `json:"startingScore"`
	BestOf        int   `json:"bestOf"`
	DoubleOut     *bool `json:"doubleOut"`
}

// Config fills defaults: 501, best of 5, double-out on.
func (r CreateLobbyRequest) Config() Config {
	cfg := Config{
		StartingScore: r.StartingScore,
		BestOf:        r.BestOf,
		DoubleOut:     true,
	}
	if cfg.StartingScore == 0 {
		cfg.StartingScore = DefaultStartingScore
	}
	if cfg.BestOf == 0 {
		cfg.BestOf = DefaultBestOf
	}
	if r.DoubleOut != nil {
		cfg.DoubleOut = *r.DoubleOut
	}
	return cfg
}

// RecordVisitRequest is the body of POST /api/matches/{id}/visits. LegID is
// optional; when set, the visit is rejected if that leg is already closed.
type RecordVisitRequest struct {
	LegID string         `json:"legId,omitempty"`
	Darts []scoring.Dart `json:"darts"`
}
