// Package store implements match.Store on Postgres and in memory.
package store

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/merev/ds-match-api/internal/match"
)

// ErrOpenLegExists mirrors the one-open-leg-per-match index of the schema.
var ErrOpenLegExists = errors.New("store: match already has an open leg")

// Memory is a match.Store held in process memory. Transactions are
// serialized by one lock. Writes are buffered in the transaction and applied
// to the live state only when fn succeeds.
type Memory struct {
	mu    sync.Mutex
	state memState
}

type memState struct {
	matches   map[string]match.Match
	legs      map[string]match.Leg
	matchLegs map[string][]string      // leg IDs by match ID, insertion order
	visits    map[string][]match.Visit // by leg ID
	checkouts []match.Checkout
}

func NewMemory() *Memory {
	return &Memory{state: memState{
		matches:   make(map[string]match.Match),
		legs:      make(map[string]match.Leg),
		matchLegs: make(map[string][]string),
		visits:    make(map[string][]match.Visit),
	}}
}

func (m *Memory) WithTx(ctx context.Context, fn func(tx match.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := newMemTx(&m.state)
	if err := fn(tx); err != nil {
		return err
	}
	tx.commit()
	return nil
}

func (m *Memory) ListLobbies(ctx context.Context, limit int) ([]match.Match, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	lobbies := make([]match.Match, 0)
	for _, mt := range m.state.matches {
		if mt.Status == match.StatusWaiting && mt.Player2ID == "" {
			lobbies = append(lobbies, mt)
		}
	}
	slices.SortFunc(lobbies, func(a, b match.Match) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(lobbies) > limit {
		lobbies = lobbies[:limit]
	}
	return lobbies, nil
}

// Checkouts returns the recorded checkout history for a player.
func (m *Memory) Checkouts(playerID string) []match.Checkout {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []match.Checkout
	for _, c := range m.state.checkouts {
		if c.PlayerID == playerID {
			out = append(out, c)
		}
	}
	return out
}

// memTx reads through to the live state and keeps its own writes until
// commit. Read-only transactions copy nothing.
type memTx struct {
	base *memState

	matches   map[string]match.Match
	deleted   map[string]bool
	legs      map[string]match.Leg
	matchLegs map[string][]string
	visits    map[string][]match.Visit
	checkouts []match.Checkout
}

func newMemTx(base *memState) *memTx {
	return &memTx{
		base:      base,
		matches:   make(map[string]match.Match),
		deleted:   make(map[string]bool),
		legs:      make(map[string]match.Leg),
		matchLegs: make(map[string][]string),
		visits:    make(map[string][]match.Visit),
	}
}

func (t *memTx) commit() {
	for id := range t.deleted {
		delete(t.base.matches, id)
	}
	for id, m := range t.matches {
		t.base.matches[id] = m
	}
	for id, l := range t.legs {
		t.base.legs[id] = l
	}
	for matchID, ids := range t.matchLegs {
		t.base.matchLegs[matchID] = append(t.base.matchLegs[matchID], ids...)
	}
	for legID, vs := range t.visits {
		t.base.visits[legID] = append(t.base.visits[legID], vs...)
	}
	t.base.checkouts = append(t.base.checkouts, t.checkouts...)
}

func (t *memTx) match(id string) (match.Match, bool) {
	if t.deleted[id] {
		return match.Match{}, false
	}
	if m, ok := t.matches[id]; ok {
		return m, true
	}
	m, ok := t.base.matches[id]
	return m, ok
}

func (t *memTx) leg(id string) (match.Leg, bool) {
	if l, ok := t.legs[id]; ok {
		return l, true
	}
	l, ok := t.base.legs[id]
	return l, ok
}

func (t *memTx) legsOf(matchID string) []match.Leg {
	ids := append(slices.Clone(t.base.matchLegs[matchID]), t.matchLegs[matchID]...)
	legs := make([]match.Leg, 0, len(ids))
	for _, id := range ids {
		if l, ok := t.leg(id); ok {
			legs = append(legs, l)
		}
	}
	return legs
}

func (t *memTx) visitsOf(legID string) []match.Visit {
	return append(slices.Clone(t.base.visits[legID]), t.visits[legID]...)
}

func (t *memTx) GetMatch(_ context.Context, id string) (match.Match, error) {
	m, ok := t.match(id)
	if !ok {
		return match.Match{}, match.ErrMatchNotFound
	}
	return m, nil
}

func (t *memTx) LockMatch(ctx context.Context, id string) (match.Match, error) {
	return t.GetMatch(ctx, id)
}

func (t *memTx) InsertMatch(_ context.Context, m match.Match) error {
	delete(t.deleted, m.ID)
	t.matches[m.ID] = m
	return nil
}

func (t *memTx) UpdateMatch(_ context.Context, m match.Match) error {
	if _, ok := t.match(m.ID); !ok {
		return match.ErrMatchNotFound
	}
	t.matches[m.ID] = m
	return nil
}

func (t *memTx) ClaimLobby(_ context.Context, id, challengerID, firstPlayerID string, startedAt time.Time) (match.Match, error) {
	m, ok := t.match(id)
	if !ok {
		return match.Match{}, match.ErrMatchNotFound
	}
	if m.Status != match.StatusWaiting || m.Player2ID != "" {
		return match.Match{}, match.ErrLobbyUnavailable
	}
	m.Player2ID = challengerID
	m.Status = match.StatusInProgress
	m.CurrentPlayerID = firstPlayerID
	m.StartedAt = &startedAt
	m.Version++
	t.matches[id] = m
	return m, nil
}

func (t *memTx) DeleteLobby(_ context.Context, id, hostID string) error {
	m, ok := t.match(id)
	if !ok || m.Player1ID != hostID || m.Status != match.StatusWaiting || m.Player2ID != "" {
		return match.ErrLobbyUnavailable
	}
	delete(t.matches, id)
	t.deleted[id] = true
	return nil
}

func (t *memTx) GetLeg(_ context.Context, id string) (match.Leg, error) {
	l, ok := t.leg(id)
	if !ok {
		return match.Leg{}, match.ErrLegNotFound
	}
	return l, nil
}

func (t *memTx) LatestLeg(_ context.Context, matchID string) (match.Leg, error) {
	legs := t.legsOf(matchID)
	if len(legs) == 0 {
		return match.Leg{}, match.ErrLegNotFound
	}
	return slices.MaxFunc(legs, func(a, b match.Leg) int {
		return cmp.Compare(a.Number, b.Number)
	}), nil
}

func (t *memTx) InsertLeg(_ context.Context, l match.Leg) error {
	for _, other := range t.legsOf(l.MatchID) {
		if other.Number == l.Number {
			return fmt.Errorf("store: leg %d of match %s already exists", l.Number, l.MatchID)
		}
		if l.Open() && other.Open() {
			return ErrOpenLegExists
		}
	}
	t.legs[l.ID] = l
	t.matchLegs[l.MatchID] = append(t.matchLegs[l.MatchID], l.ID)
	return nil
}

func (t *memTx) UpdateLeg(_ context.Context, l match.Leg) error {
	if _, ok := t.leg(l.ID); !ok {
		return match.ErrLegNotFound
	}
	t.legs[l.ID] = l
	return nil
}

func (t *memTx) ListVisits(_ context.Context, legID string) ([]match.Visit, error) {
	visits := t.visitsOf(legID)
	slices.SortStableFunc(visits, func(a, b match.Visit) int {
		return cmp.Compare(a.Number, b.Number)
	})
	if visits == nil {
		visits = []match.Visit{}
	}
	return visits, nil
}

func (t *memTx) CountVisits(_ context.Context, legID, playerID string) (int, error) {
	n := 0
	for _, v := range t.visitsOf(legID) {
		if v.PlayerID == playerID {
			n++
		}
	}
	return n, nil
}

func (t *memTx) InsertVisit(_ context.Context, v match.Visit) error {
	t.visits[v.LegID] = append(t.visits[v.LegID], v)
	return nil
}

func (t *memTx) InsertCheckout(_ context.Context, c match.Checkout) error {
	t.checkouts = append(t.checkouts, c)
	return nil
}
