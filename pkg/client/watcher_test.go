package client

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/merev/ds-match-api/internal/match"
	"github.com/merev/ds-match-api/internal/scoring"
)

type snapshots struct {
	mu   sync.Mutex
	seen []match.Snapshot
}

func (s *snapshots) add(snap match.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seen = append(s.seen, snap)
}

func (s *snapshots) last() (match.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.seen) == 0 {
		return match.Snapshot{}, false
	}
	return s.seen[len(s.seen)-1], true
}

func (s *snapshots) versions() []int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]int64, 0, len(s.seen))
	for _, snap := range s.seen {
		out = append(out, snap.Match.Version)
	}
	return out
}

func stopWatcher(t *testing.T, w *Watcher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, w.Stop(ctx))
}

func TestWatcherFollowsPushedEvents(t *testing.T) {
	srv := newTestServer(t)
	_, challenger, m := startMatch(t, srv, match.CreateLobbyRequest{})

	got := &snapshots{}
	// A long poll interval leaves the stream as the only prompt source.
	w := New(srv.URL, hostID).Watch(m.ID, got.add, WithPollInterval(time.Hour))
	w.Start(context.Background())
	defer stopWatcher(t, w)

	require.Eventually(t, func() bool { return w.Version() == m.Version }, 2*time.Second, 10*time.Millisecond)
	require.Eventually(t, func() bool { return srv.bus.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	_, err := challenger.RecordVisit(context.Background(), m.ID, "", []scoring.Dart{{Face: 20, Multiplier: scoring.Treble}})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		snap, ok := got.last()
		return ok && len(snap.Visits) == 1
	}, 2*time.Second, 10*time.Millisecond)

	snap, _ := got.last()
	assert.Equal(t, hostID, snap.Match.CurrentPlayerID)
	assert.Equal(t, 441, snap.Visits[0].RemainingAfter)
}

func TestWatcherPollsWithoutStream(t *testing.T) {
	srv := newTestServer(t)
	_, challenger, m := startMatch(t, srv, match.CreateLobbyRequest{})

	got := &snapshots{}
	w := New(srv.URL, "").Watch(m.ID, got.add, WithoutStream(), WithPollInterval(20*time.Millisecond))
	w.Start(context.Background())
	defer stopWatcher(t, w)

	require.Eventually(t, func() bool { return w.Version() == m.Version }, 2*time.Second, 10*time.Millisecond)
	assert.Zero(t, srv.bus.Subscribers())

	_, err := challenger.RecordVisit(context.Background(), m.ID, "", []scoring.Dart{{Face: 1, Multiplier: scoring.Single}})
	require.NoError(t, err)

	require.Eventually(t, func() bool { return w.Version() == m.Version+1 }, 2*time.Second, 10*time.Millisecond)

	versions := got.versions()
	for i := 1; i < len(versions); i++ {
		assert.Greater(t, versions[i], versions[i-1])
	}
}

func TestWatcherLogsPollFailuresAndRetries(t *testing.T) {
	var calls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"match":{"id":"m","version":7,"status":"in_progress"},"visits":[],"averages":{}}`))
	}))
	defer srv.Close()

	var (
		buf bytes.Buffer
		mu  sync.Mutex
	)
	logger := slog.New(slog.NewTextHandler(&lockedWriter{w: &buf, mu: &mu}, nil))

	got := &snapshots{}
	w := New(srv.URL, "").Watch("m", got.add, WithoutStream(), WithPollInterval(10*time.Millisecond), WithLogger(logger))
	w.Start(context.Background())
	defer stopWatcher(t, w)

	require.Eventually(t, func() bool { return w.Version() == 7 }, 2*time.Second, 10*time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "match refresh failed")
	assert.Len(t, got.versions(), 1)
}

func TestWatcherStopsWithContext(t *testing.T) {
	srv := newTestServer(t)
	_, _, m := startMatch(t, srv, match.CreateLobbyRequest{})

	ctx, cancel := context.WithCancel(context.Background())
	w := New(srv.URL, "").Watch(m.ID, nil)
	w.Start(ctx)
	require.Eventually(t, func() bool { return srv.bus.Subscribers() == 1 }, 2*time.Second, 10*time.Millisecond)

	cancel()
	stopWatcher(t, w)
	require.Eventually(t, func() bool { return srv.bus.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestStreamURL(t *testing.T) {
	assert.Equal(t, "ws://localhost:8081/api/matches/abc/ws", New("http://localhost:8081", "").Watch("abc", nil).streamURL())
	assert.Equal(t, "wss://darts.example/api/matches/abc/ws", New("https://darts.example/", "").Watch("abc", nil).streamURL())
}

type lockedWriter struct {
	w  *bytes.Buffer
	mu *sync.Mutex
}

func (l *lockedWriter) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.w.Write(p)
}
