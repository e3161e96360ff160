package match

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/merev/ds-match-api/internal/events"
	"github.com/merev/ds-match-api/internal/logging"
	"github.com/merev/ds-match-api/internal/scoring"
)

const defaultLobbyLimit = 50

// Recorder receives gameplay metrics.
type Recorder interface {
	RecordVisit(outcome string)
	RecordLegCompleted()
	RecordMatchFinished(status string)
}

type noopRecorder struct{}

func (noopRecorder) RecordVisit(string)         {}
func (noopRecorder) RecordLegCompleted()        {}
func (noopRecorder) RecordMatchFinished(string) {}

type noopPublisher struct{}

func (noopPublisher) Publish(...events.Event) {}

// Options configures a Service. Zero values get defaults.
type Options struct {
	TurnPolicy TurnPolicy
	FirstThrow FirstThrow
	Logger     *slog.Logger
	Metrics    Recorder
	Events     events.Publisher
	Now        func() time.Time
	NewID      func() string
}

// Service is the single authority over match state. Each operation runs in
// one store transaction and publishes its events after commit.
type Service struct {
	store      Store
	turns      TurnPolicy
	firstThrow FirstThrow
	logger     *slog.Logger
	metrics    Recorder
	events     events.Publisher
	now        func() time.Time
	newID      func() string
}

func NewService(store Store, opts Options) *Service {
	s := &Service{
		store:      store,
		turns:      opts.TurnPolicy,
		firstThrow: opts.FirstThrow,
		logger:     opts.Logger,
		metrics:    opts.Metrics,
		events:     opts.Events,
		now:        opts.Now,
		newID:      opts.NewID,
	}
	if s.turns == "" {
		s.turns = TurnContinue
	}
	if s.firstThrow == "" {
		s.firstThrow = FirstThrowChallenger
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	if s.metrics == nil {
		s.metrics = noopRecorder{}
	}
	if s.events == nil {
		s.events = noopPublisher{}
	}
	if s.now == nil {
		s.now = func() time.Time { return time.Now().UTC() }
	}
	if s.newID == nil {
		s.newID = uuid.NewString
	}
	return s
}

// CreateLobby opens a waiting match hosted by hostID.
func (s *Service) CreateLobby(ctx context.Context, hostID string, cfg Config) (Match, error) {
	if err := cfg.Validate(); err != nil {
		return Match{}, err
	}

	m := Match{
		ID:        s.newID(),
		Config:    cfg,
		Player1ID: hostID,
		Status:    StatusWaiting,
		Version:   1,
		CreatedAt: s.now(),
	}
	err := s.store.WithTx(ctx, func(tx Tx) error {
		return tx.InsertMatch(ctx, m)
	})
	if err != nil {
		return Match{}, persistence("create lobby", err)
	}

	s.log(ctx).Info("lobby created",
		logging.FieldMatchID, m.ID,
		logging.FieldPlayerID, hostID,
		"starting_score", cfg.StartingScore,
		"best_of", cfg.BestOf,
	)
	s.publish(m, events.LobbyCreated, m)
	return m, nil
}

// ListLobbies returns open lobbies, newest first.
func (s *Service) ListLobbies(ctx context.Context) ([]Match, error) {
	lobbies, err := s.store.ListLobbies(ctx, defaultLobbyLimit)
	if err != nil {
		return nil, persistence("list lobbies", err)
	}
	return lobbies, nil
}

// JoinLobby seats challengerID and starts the match. Of two racing
// challengers exactly one wins; the other gets ErrLobbyUnavailable.
func (s *Service) JoinLobby(ctx context.Context, matchID, challengerID string) (Match, error) {
	var (
		m   Match
		leg Leg
	)
	err := s.store.WithTx(ctx, func(tx Tx) error {
		current, err := tx.GetMatch(ctx, matchID)
		if err != nil {
			return err
		}
		if current.Player1ID == challengerID {
			return fmt.Errorf("%w: cannot join your own lobby", ErrLobbyUnavailable)
		}

		first := s.firstThrow.player(current.Player1ID, challengerID)
		m, err = tx.ClaimLobby(ctx, matchID, challengerID, first, s.now())
		if err != nil {
			return err
		}

		leg = newLeg(s.newID(), m, 1, first, s.now())
		return tx.InsertLeg(ctx, leg)
	})
	if err != nil {
		return Match{}, persistence("join lobby", err)
	}

	s.log(ctx).Info("match started",
		logging.FieldMatchID, m.ID,
		logging.FieldPlayerID, challengerID,
		"first_player_id", m.CurrentPlayerID,
	)
	s.publish(m, events.MatchStarted, m)
	s.publish(m, events.LegStarted, leg)
	return m, nil
}

// CancelLobby deletes a lobby nobody has joined yet. Only the host may.
func (s *Service) CancelLobby(ctx context.Context, matchID, hostID string) error {
	var m Match
	err := s.store.WithTx(ctx, func(tx Tx) error {
		var err error
		m, err = tx.GetMatch(ctx, matchID)
		if err != nil {
			return err
		}
		if m.Player1ID != hostID {
			return ErrNotAParticipant
		}
		return tx.DeleteLobby(ctx, matchID, hostID)
	})
	if err != nil {
		return persistence("cancel lobby", err)
	}

	s.log(ctx).Info("lobby cancelled", logging.FieldMatchID, matchID)
	s.publish(m, events.LobbyCancelled, map[string]string{"id": matchID})
	return nil
}

// GetMatch returns the match with its current (or final) leg.
func (s *Service) GetMatch(ctx context.Context, matchID string) (Snapshot, error) {
	var snap Snapshot
	err := s.store.WithTx(ctx, func(tx Tx) error {
		m, err := tx.GetMatch(ctx, matchID)
		if err != nil {
			return err
		}
		snap = Snapshot{Match: m, Visits: []Visit{}, Averages: map[string]float64{}}

		leg, err := tx.LatestLeg(ctx, matchID)
		if errors.Is(err, ErrLegNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		snap.Leg = &leg

		visits, err := tx.ListVisits(ctx, leg.ID)
		if err != nil {
			return err
		}
		snap.Visits = visits
		return nil
	})
	if err != nil {
		return Snapshot{}, persistence("get match", err)
	}

	if snap.Leg != nil {
		for _, p := range snap.Leg.Players {
			if p.PlayerID != "" {
				snap.Averages[p.PlayerID] = p.Average()
			}
		}
		if snap.Match.Status == StatusInProgress && snap.Leg.Open() {
			if p := snap.Leg.Player(snap.Match.CurrentPlayerID); p != nil {
				if route, ok := scoring.Suggest(p.Remaining); ok {
					snap.Suggestion = &Suggestion{PlayerID: p.PlayerID, Remaining: p.Remaining, Route: route}
				}
			}
		}
	}
	return snap, nil
}

// RecordVisit scores a visit for playerID and applies it: leg totals, turn
// change, leg and match completion. legID may be empty to mean the
// current leg.
func (s *Service) RecordVisit(ctx context.Context, matchID, legID, playerID string, darts []scoring.Dart) (VisitResult, error) {
	var res VisitResult
	err := s.store.WithTx(ctx, func(tx Tx) error {
		m, err := tx.LockMatch(ctx, matchID)
		if err != nil {
			return err
		}
		if _, ok := m.SeatOf(playerID); !ok {
			return ErrNotAParticipant
		}

		var leg Leg
		if legID != "" {
			leg, err = tx.GetLeg(ctx, legID)
			if err == nil && leg.MatchID != matchID {
				err = ErrLegNotFound
			}
			if err != nil {
				return err
			}
			if !leg.Open() {
				return ErrLegAlreadyClosed
			}
		}
		if m.Status != StatusInProgress {
			return ErrMatchNotInProgress
		}
		if legID == "" {
			leg, err = tx.LatestLeg(ctx, matchID)
			if err != nil {
				return err
			}
			if !leg.Open() {
				return ErrLegAlreadyClosed
			}
		}
		if m.CurrentPlayerID != playerID {
			return ErrNotYourTurn
		}

		thrower := leg.Player(playerID)
		outcome, err := scoring.Evaluate(thrower.Remaining, darts, m.Config.DoubleOut)
		if err != nil {
			return err
		}

		prior, err := tx.CountVisits(ctx, leg.ID, playerID)
		if err != nil {
			return err
		}

		now := s.now()
		visit := Visit{
			ID:              s.newID(),
			LegID:           leg.ID,
			MatchID:         m.ID,
			PlayerID:        playerID,
			Number:          prior + 1,
			Darts:           outcome.Darts,
			TotalScored:     outcome.Scored,
			RemainingBefore: outcome.RemainingBefore,
			RemainingAfter:  outcome.RemainingAfter,
			IsBust:          outcome.IsBust(),
			IsCheckout:      outcome.IsCheckout(),
			CreatedAt:       now,
		}
		if err := tx.InsertVisit(ctx, visit); err != nil {
			return err
		}

		thrower.Remaining = outcome.RemainingAfter
		thrower.DartsThrown += scoring.MaxDartsPerVisit
		thrower.TotalScored += outcome.Scored

		var next *Leg
		if outcome.IsCheckout() {
			next, err = s.closeLeg(ctx, tx, &m, &leg, outcome, now)
			if err != nil {
				return err
			}
		} else {
			m.CurrentPlayerID = m.Opponent(playerID)
			if err := tx.UpdateLeg(ctx, leg); err != nil {
				return err
			}
		}
		m.Version++
		if err := tx.UpdateMatch(ctx, m); err != nil {
			return err
		}

		res = VisitResult{Visit: visit, Leg: leg, NextLeg: next, Match: m}
		return nil
	})
	if err != nil {
		if IsDomainError(err) {
			s.log(ctx).Info("visit rejected",
				logging.FieldMatchID, matchID,
				logging.FieldPlayerID, playerID,
				"reason", err.Error(),
			)
		}
		return VisitResult{}, persistence("record visit", err)
	}

	s.afterVisit(ctx, res)
	return res, nil
}

// closeLeg marks leg won by the thrower, records the checkout and either
// finishes the match or opens the next leg. The closed leg is written
// before the next one is inserted: a match has at most one open leg.
func (s *Service) closeLeg(ctx context.Context, tx Tx, m *Match, leg *Leg, outcome scoring.Result, now time.Time) (*Leg, error) {
	winnerID := m.CurrentPlayerID
	leg.WinnerID = winnerID
	leg.CompletedAt = &now
	if err := tx.UpdateLeg(ctx, *leg); err != nil {
		return nil, err
	}

	checkout := Checkout{
		ID:        s.newID(),
		PlayerID:  winnerID,
		MatchID:   m.ID,
		LegID:     leg.ID,
		Score:     outcome.RemainingBefore,
		DartsUsed: len(outcome.Darts),
		Route:     scoring.Route(outcome.Darts),
		CreatedAt: now,
	}
	if err := tx.InsertCheckout(ctx, checkout); err != nil {
		return nil, err
	}

	if m.addLegWon(winnerID) >= m.Config.WinThreshold() {
		m.Status = StatusCompleted
		m.WinnerID = winnerID
		m.CurrentPlayerID = ""
		m.EndedAt = &now
		return nil, nil
	}

	starter := s.turns.nextStarter(*m, *leg)
	next := newLeg(s.newID(), *m, leg.Number+1, starter, now)
	if err := tx.InsertLeg(ctx, next); err != nil {
		return nil, err
	}
	m.CurrentPlayerID = starter
	return &next, nil
}

func (s *Service) afterVisit(ctx context.Context, res VisitResult) {
	visit := res.Visit
	outcome := scoring.OutcomeNormal
	switch {
	case visit.IsBust:
		outcome = scoring.OutcomeBust
	case visit.IsCheckout:
		outcome = scoring.OutcomeCheckout
	}
	s.metrics.RecordVisit(string(outcome))

	logger := s.log(ctx).With(logging.FieldMatchID, res.Match.ID, logging.FieldPlayerID, visit.PlayerID)
	logger.Debug("visit recorded",
		"leg", res.Leg.Number,
		"outcome", outcome,
		"scored", visit.TotalScored,
		"remaining", visit.RemainingAfter,
	)

	s.publish(res.Match, events.VisitRecorded, map[string]any{"visit": visit, "leg": res.Leg})
	if !visit.IsCheckout {
		return
	}

	s.metrics.RecordLegCompleted()
	logger.Info("leg won", "leg", res.Leg.Number, "checkout", visit.RemainingBefore)
	s.publish(res.Match, events.LegClosed, res.Leg)

	if res.NextLeg != nil {
		s.publish(res.Match, events.LegStarted, *res.NextLeg)
		return
	}
	s.metrics.RecordMatchFinished(string(StatusCompleted))
	logger.Info("match completed",
		"player1_legs", res.Match.Player1LegsWon,
		"player2_legs", res.Match.Player2LegsWon,
	)
	s.publish(res.Match, events.MatchCompleted, res.Match)
}

// Forfeit ends an in-progress match; the opponent of playerID wins.
func (s *Service) Forfeit(ctx context.Context, matchID, playerID string) (Match, error) {
	var m Match
	err := s.store.WithTx(ctx, func(tx Tx) error {
		var err error
		m, err = tx.LockMatch(ctx, matchID)
		if err != nil {
			return err
		}
		if _, ok := m.SeatOf(playerID); !ok {
			return ErrNotAParticipant
		}
		if m.Status != StatusInProgress {
			return ErrMatchNotInProgress
		}

		now := s.now()
		m.Status = StatusAbandoned
		m.WinnerID = m.Opponent(playerID)
		m.CurrentPlayerID = ""
		m.EndedAt = &now
		m.Version++
		return tx.UpdateMatch(ctx, m)
	})
	if err != nil {
		return Match{}, persistence("forfeit", err)
	}

	s.metrics.RecordMatchFinished(string(StatusAbandoned))
	s.log(ctx).Info("match forfeited",
		logging.FieldMatchID, matchID,
		logging.FieldPlayerID, playerID,
		"winner_id", m.WinnerID,
	)
	s.publish(m, events.MatchAbandoned, m)
	return m, nil
}

func (s *Service) publish(m Match, typ events.Type, payload any) {
	s.events.Publish(events.Event{
		Type:       typ,
		MatchID:    m.ID,
		Version:    m.Version,
		OccurredAt: s.now(),
		Payload:    payload,
	})
}

func (s *Service) log(ctx context.Context) *slog.Logger {
	return logging.FromContext(ctx, s.logger)
}
