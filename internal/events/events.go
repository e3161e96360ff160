// Package events is the in-process bus the match service publishes state
// changes on. Subscribers receive events for one match, or the lobby feed.
package events

import (
	"sync"
	"time"
)

// Type names an event on the wire.
type Type string

const (
	LobbyCreated   Type = "lobby_created"
	LobbyCancelled Type = "lobby_cancelled"
	MatchStarted   Type = "match_started"
	VisitRecorded  Type = "visit_recorded"
	LegClosed      Type = "leg_closed"
	LegStarted     Type = "leg_started"
	MatchCompleted Type = "match_completed"
	MatchAbandoned Type = "match_abandoned"
)

// Event is a single state change. Version is the match version after the
// change; a client that sees a gap refetches the match.
type Event struct {
	Type       Type      `json:"type"`
	MatchID    string    `json:"matchId"`
	Version    int64     `json:"version"`
	OccurredAt time.Time `json:"occurredAt"`
	Payload    any       `json:"payload,omitempty"`
}

// IsLobbyEvent reports whether the event belongs on the lobby feed.
func (e Event) IsLobbyEvent() bool {
	switch e.Type {
	case LobbyCreated, LobbyCancelled, MatchStarted:
		return true
	}
	return false
}

// Publisher is what the match service depends on.
type Publisher interface {
	Publish(evts ...Event)
}

// Filter selects events for a subscriber.
type Filter struct {
	MatchID string
	Lobby   bool
}

func (f Filter) matches(e Event) bool {
	if f.Lobby && e.IsLobbyEvent() {
		return true
	}
	return f.MatchID != "" && f.MatchID == e.MatchID
}

const defaultBuffer = 64

type subscriber struct {
	filter Filter
	ch     chan Event
}

// Bus fans events out to subscribers. Publish never blocks: a subscriber
// whose buffer is full misses the event and is expected to refetch.
type Bus struct {
	mu      sync.RWMutex
	subs    map[*subscriber]struct{}
	buffer  int
	dropped func(Event)
}

// NewBus creates a bus. onDrop, if non-nil, is called for every event a
// slow subscriber missed.
func NewBus(onDrop func(Event)) *Bus {
	return &Bus{
		subs:    make(map[*subscriber]struct{}),
		buffer:  defaultBuffer,
		dropped: onDrop,
	}
}

// Subscribe returns a channel of matching events and a cancel func that
// closes it.
func (b *Bus) Subscribe(filter Filter) (<-chan Event, func()) {
	sub := &subscriber{filter: filter, ch: make(chan Event, b.buffer)}

	b.mu.Lock()
	b.subs[sub] = struct{}{}
	b.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, sub)
			b.mu.Unlock()
			close(sub.ch)
		})
	}
	return sub.ch, cancel
}

// Publish delivers events in order to every matching subscriber.
func (b *Bus) Publish(evts ...Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, e := range evts {
		for sub := range b.subs {
			if !sub.filter.matches(e) {
				continue
			}
			select {
			case sub.ch <- e:
			default:
				if b.dropped != nil {
					b.dropped(e)
				}
			}
		}
	}
}

// Subscribers reports the number of live subscriptions.
func (b *Bus) Subscribers() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs)
}
