// Package client is a Go client for the match API. Clients are pure
// presentation: they issue commands and render the snapshots they get back.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/merev/ds-match-api/internal/match"
)

const (
	headerPlayerID = "X-Player-ID"
	defaultTimeout = 10 * time.Second
)

// Client calls the match API as one player.
type Client struct {
	baseURL  string
	playerID string
	http     *http.Client
}

type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// New returns a client for baseURL (e.g. http://localhost:8081) acting as
// playerID. playerID may be empty for read-only use.
func New(baseURL, playerID string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		playerID: playerID,
		http:     &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) PlayerID() string { return c.playerID }

func (c *Client) CreateLobby(ctx context.Context, req CreateLobbyRequest) (Match, error) {
	var m Match
	err := c.do(ctx, http.MethodPost, "/api/lobbies", req, &m)
	return m, err
}

func (c *Client) ListLobbies(ctx context.Context) ([]Match, error) {
	var lobbies []Match
	err := c.do(ctx, http.MethodGet, "/api/lobbies", nil, &lobbies)
	return lobbies, err
}

func (c *Client) JoinLobby(ctx context.Context, matchID string) (Match, error) {
	var m Match
	err := c.do(ctx, http.MethodPost, "/api/lobbies/"+url.PathEscape(matchID)+"/join", nil, &m)
	return m, err
}

func (c *Client) CancelLobby(ctx context.Context, matchID string) error {
	return c.do(ctx, http.MethodDelete, "/api/lobbies/"+url.PathEscape(matchID), nil, nil)
}

func (c *Client) GetMatch(ctx context.Context, matchID string) (Snapshot, error) {
	var snap Snapshot
	err := c.do(ctx, http.MethodGet, "/api/matches/"+url.PathEscape(matchID), nil, &snap)
	return snap, err
}

// RecordVisit submits a visit. legID may be empty for the current leg; when
// set, a visit aimed at a leg that has since closed is rejected.
func (c *Client) RecordVisit(ctx context.Context, matchID, legID string, darts []Dart) (VisitResult, error) {
	var res VisitResult
	body := match.RecordVisitRequest{LegID: legID, Darts: darts}
	err := c.do(ctx, http.MethodPost, "/api/matches/"+url.PathEscape(matchID)+"/visits", body, &res)
	return res, err
}

func (c *Client) Forfeit(ctx context.Context, matchID string) (Match, error) {
	var m Match
	err := c.do(ctx, http.MethodPost, "/api/matches/"+url.PathEscape(matchID)+"/forfeit", nil, &m)
	return m, err
}

func (c *Client) Checkout(ctx context.Context, remaining int) (CheckoutResponse, error) {
	var resp CheckoutResponse
	err := c.do(ctx, http.MethodGet, "/api/checkouts/"+strconv.Itoa(remaining), nil, &resp)
	return resp, err
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.playerID != "" {
		req.Header.Set(headerPlayerID, c.playerID)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &PersistenceError{Op: method + " " + path, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		return decodeAPIError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
