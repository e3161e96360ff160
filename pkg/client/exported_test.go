package client_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/merev/ds-match-api/pkg/client"
)

// Everything below names only pkg/client identifiers, the way a caller in
// another module would.
func TestClientUsableFromOutsideModule(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/api/matches/m1/visits":
			var body struct {
				Darts []client.Dart `json:"darts"`
			}
			if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Darts) != 1 {
				w.WriteHeader(http.StatusBadRequest)
				return
			}
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"error":"not this player's turn","code":"not_your_turn","requestId":"req-1"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/api/matches/m1":
			_ = json.NewEncoder(w).Encode(client.Snapshot{
				Match:  client.Match{ID: "m1", Status: client.StatusInProgress, Version: 1},
				Visits: []client.Visit{},
			})
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte(`{"error":"storage temporarily unavailable, retry","code":"persistence_failure"}`))
		}
	}))
	t.Cleanup(srv.Close)

	c := client.New(srv.URL, "3d5a1c9e-58b2-4f7c-9e21-6a0b4c8d2e01")
	ctx := context.Background()

	_, err := c.RecordVisit(ctx, "m1", "", []client.Dart{{Face: 20, Multiplier: client.Treble}})
	assert.ErrorIs(t, err, client.ErrNotYourTurn)
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, "req-1", apiErr.RequestID)

	_, err = c.ListLobbies(ctx)
	_, retry := client.AsPersistenceError(err)
	assert.True(t, retry)

	got := make(chan client.Snapshot, 4)
	w := c.Watch("m1", func(s client.Snapshot) { got <- s },
		client.WithPollInterval(10*time.Millisecond), client.WithoutStream())
	w.Start(ctx)
	t.Cleanup(func() { _ = w.Stop(context.Background()) })

	select {
	case snap := <-got:
		assert.Equal(t, client.StatusInProgress, snap.Match.Status)
		assert.EqualValues(t, 1, snap.Match.Version)
	case <-time.After(2 * time.Second):
		t.Fatal("no snapshot delivered")
	}
}
