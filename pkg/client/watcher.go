package client

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/merev/ds-match-api/internal/events"
	"github.com/merev/ds-match-api/internal/logging"
)

// DefaultPollInterval is how often a Watcher refetches when no push arrives.
const DefaultPollInterval = 3 * time.Second

// Watcher keeps a match snapshot current for a read-only client. Pushed
// events trigger a refetch; a periodic poll covers anything the stream
// missed. Snapshots reach the callback in strictly increasing version order.
type Watcher struct {
	client   *Client
	matchID  string
	onChange func(Snapshot)
	interval time.Duration
	logger   *slog.Logger
	dialer   *websocket.Dialer
	stream   bool

	deliverMu   sync.Mutex
	lastVersion int64

	refresh  chan struct{}
	done     chan struct{}
	wg       sync.WaitGroup
	stopOnce sync.Once
	startMu  sync.Mutex
	started  bool

	connMu sync.Mutex
	conn   *websocket.Conn
}

type WatchOption func(*Watcher)

func WithPollInterval(d time.Duration) WatchOption {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

func WithLogger(logger *slog.Logger) WatchOption {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// WithoutStream disables the WebSocket and relies on polling alone.
func WithoutStream() WatchOption {
	return func(w *Watcher) { w.stream = false }
}

// Watch builds a Watcher for matchID. Call Start to begin.
func (c *Client) Watch(matchID string, onChange func(Snapshot), opts ...WatchOption) *Watcher {
	w := &Watcher{
		client:   c,
		matchID:  matchID,
		onChange: onChange,
		interval: DefaultPollInterval,
		logger:   slog.New(slog.DiscardHandler),
		dialer:   websocket.DefaultDialer,
		stream:   true,
		refresh:  make(chan struct{}, 1),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Start fetches once and then follows the match until ctx ends or Stop.
func (w *Watcher) Start(ctx context.Context) {
	w.startMu.Lock()
	if w.started {
		w.startMu.Unlock()
		return
	}
	w.started = true
	w.startMu.Unlock()

	w.wg.Add(1)
	go w.pollLoop(ctx)
	if w.stream {
		w.wg.Add(1)
		go w.streamLoop(ctx)
	}
}

// Stop ends both loops and waits for them.
func (w *Watcher) Stop(ctx context.Context) error {
	w.stopOnce.Do(func() {
		close(w.done)
		w.connMu.Lock()
		if w.conn != nil {
			_ = w.conn.Close()
		}
		w.connMu.Unlock()
	})

	finished := make(chan struct{})
	go func() {
		w.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Version is the last version delivered to the callback.
func (w *Watcher) Version() int64 {
	w.deliverMu.Lock()
	defer w.deliverMu.Unlock()
	return w.lastVersion
}

func (w *Watcher) pollLoop(ctx context.Context) {
	defer w.wg.Done()

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.fetch(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case <-ticker.C:
			w.fetch(ctx)
		case <-w.refresh:
			w.fetch(ctx)
		}
	}
}

func (w *Watcher) fetch(ctx context.Context) {
	snap, err := w.client.GetMatch(ctx, w.matchID)
	if err != nil {
		if ctx.Err() == nil {
			w.logger.Warn("match refresh failed", logging.FieldMatchID, w.matchID, "err", err)
		}
		return
	}

	w.deliverMu.Lock()
	defer w.deliverMu.Unlock()
	if snap.Match.Version <= w.lastVersion {
		return
	}
	w.lastVersion = snap.Match.Version
	if w.onChange != nil {
		w.onChange(snap)
	}
}

// requestRefresh asks the poll loop to fetch now; requests coalesce.
func (w *Watcher) requestRefresh() {
	select {
	case w.refresh <- struct{}{}:
	default:
	}
}

func (w *Watcher) streamLoop(ctx context.Context) {
	defer w.wg.Done()

	for {
		if err := w.follow(ctx); err != nil && ctx.Err() == nil && !w.stopped() {
			w.logger.Warn("match stream dropped", logging.FieldMatchID, w.matchID, "err", err)
		}
		// Anything missed while disconnected is picked up by this refresh.
		w.requestRefresh()

		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case <-time.After(w.interval):
		}
	}
}

func (w *Watcher) follow(ctx context.Context) error {
	conn, _, err := w.dialer.DialContext(ctx, w.streamURL(), http.Header{})
	if err != nil {
		return err
	}
	w.connMu.Lock()
	if w.stopped() {
		w.connMu.Unlock()
		return conn.Close()
	}
	w.conn = conn
	w.connMu.Unlock()

	stop := make(chan struct{})
	defer func() {
		close(stop)
		w.connMu.Lock()
		w.conn = nil
		w.connMu.Unlock()
		_ = conn.Close()
	}()
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-stop:
		}
	}()

	for {
		var evt events.Event
		if err := conn.ReadJSON(&evt); err != nil {
			return err
		}
		if evt.Version > w.Version() {
			w.requestRefresh()
		}
	}
}

func (w *Watcher) stopped() bool {
	select {
	case <-w.done:
		return true
	default:
		return false
	}
}

func (w *Watcher) streamURL() string {
	base := w.client.baseURL
	switch {
	case strings.HasPrefix(base, "https://"):
		base = "wss://" + strings.TrimPrefix(base, "https://")
	case strings.HasPrefix(base, "http://"):
		base = "ws://" + strings.TrimPrefix(base, "http://")
	}
	return base + "/api/matches/" + url.PathEscape(w.matchID) + "/ws"
}
