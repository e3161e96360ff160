package match_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/merev/ds-match-api/internal/http/middleware"
	"github.com/merev/ds-match-api/internal/match"
	"github.com/merev/ds-match-api/internal/scoring"
	"github.com/merev/ds-match-api/internal/store"
)

const (
	hostUUID       = "0b6f6c8e-1f0e-4f43-9a55-3c1c8d2f0a01"
	challengerUUID = "0b6f6c8e-1f0e-4f43-9a55-3c1c8d2f0a02"
)

func newTestRouter(st match.Store) http.Handler {
	h := match.NewHandler(match.NewService(st, match.Options{}), 0, nil)

	r := chi.NewRouter()
	r.Use(middleware.RequestLogging(nil, nil))
	r.Use(middleware.Identity)
	r.Get("/api/lobbies", h.ListLobbies)
	r.Post("/api/lobbies", h.CreateLobby)
	r.Post("/api/lobbies/{id}/join", h.JoinLobby)
	r.Delete("/api/lobbies/{id}", h.CancelLobby)
	r.Get("/api/matches/{id}", h.GetMatch)
	r.Post("/api/matches/{id}/visits", h.RecordVisit)
	r.Post("/api/matches/{id}/forfeit", h.Forfeit)
	r.Get("/api/checkouts/{remaining}", h.CheckoutSuggestion)
	return r
}

func call(t *testing.T, h http.Handler, method, path, playerID string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if playerID != "" {
		req.Header.Set(middleware.HeaderPlayerID, playerID)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&v))
	return v
}

func TestHandlerLobbyToFirstVisit(t *testing.T) {
	h := newTestRouter(store.NewMemory())

	rr := call(t, h, http.MethodPost, "/api/lobbies", hostUUID, map[string]any{"startingScore": 301, "bestOf": 3})
	require.Equal(t, http.StatusCreated, rr.Code)
	lobby := decode[match.Match](t, rr)
	assert.Equal(t, 301, lobby.Config.StartingScore)
	assert.True(t, lobby.Config.DoubleOut)

	rr = call(t, h, http.MethodGet, "/api/lobbies", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, decode[[]match.Match](t, rr), 1)

	rr = call(t, h, http.MethodPost, "/api/lobbies/"+lobby.ID+"/join", challengerUUID, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	started := decode[match.Match](t, rr)
	assert.Equal(t, match.StatusInProgress, started.Status)

	rr = call(t, h, http.MethodPost, "/api/matches/"+lobby.ID+"/visits", challengerUUID, map[string]any{
		"darts": []map[string]int{{"face": 20, "multiplier": 3}, {"face": 20, "multiplier": 3}, {"face": 20, "multiplier": 3}},
	})
	require.Equal(t, http.StatusOK, rr.Code)
	res := decode[match.VisitResult](t, rr)
	assert.Equal(t, 121, res.Visit.RemainingAfter)
	assert.Equal(t, hostUUID, res.Match.CurrentPlayerID)

	rr = call(t, h, http.MethodGet, "/api/matches/"+lobby.ID, "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	snap := decode[match.Snapshot](t, rr)
	assert.Len(t, snap.Visits, 1)
	assert.Equal(t, 180.0, snap.Averages[challengerUUID])
}

func TestHandlerErrorCodes(t *testing.T) {
	h := newTestRouter(store.NewMemory())

	rr := call(t, h, http.MethodPost, "/api/lobbies", hostUUID, map[string]any{"startingScore": 40, "bestOf": 3})
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decode[match.Match](t, rr).ID
	require.Equal(t, http.StatusOK, call(t, h, http.MethodPost, "/api/lobbies/"+id+"/join", challengerUUID, nil).Code)

	tests := []struct {
		name       string
		method     string
		path       string
		player     string
		body       any
		wantStatus int
		wantCode   string
	}{
		{"out of turn", http.MethodPost, "/api/matches/" + id + "/visits", hostUUID,
			map[string]any{"darts": []map[string]int{{"face": 20, "multiplier": 1}}}, http.StatusConflict, "not_your_turn"},
		{"invalid dart", http.MethodPost, "/api/matches/" + id + "/visits", challengerUUID,
			map[string]any{"darts": []map[string]int{{"face": 25, "multiplier": 3}}}, http.StatusBadRequest, "invalid_dart"},
		{"too many darts", http.MethodPost, "/api/matches/" + id + "/visits", challengerUUID,
			map[string]any{"darts": []map[string]int{{"face": 1, "multiplier": 1}, {"face": 1, "multiplier": 1}, {"face": 1, "multiplier": 1}, {"face": 1, "multiplier": 1}}},
			http.StatusBadRequest, "invalid_visit"},
		{"unknown match", http.MethodGet, "/api/matches/nope", "", nil, http.StatusNotFound, "match_not_found"},
		{"join started", http.MethodPost, "/api/lobbies/" + id + "/join", "0b6f6c8e-1f0e-4f43-9a55-3c1c8d2f0a03", nil,
			http.StatusConflict, "lobby_unavailable"},
		{"outsider forfeit", http.MethodPost, "/api/matches/" + id + "/forfeit", "0b6f6c8e-1f0e-4f43-9a55-3c1c8d2f0a03", nil,
			http.StatusForbidden, "not_a_participant"},
		{"bad config", http.MethodPost, "/api/lobbies", hostUUID, map[string]any{"bestOf": 40},
			http.StatusBadRequest, "invalid_config"},
		{"malformed identity", http.MethodPost, "/api/lobbies", "not-a-uuid", map[string]any{},
			http.StatusUnauthorized, "unauthenticated"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := call(t, h, tc.method, tc.path, tc.player, tc.body)
			assert.Equal(t, tc.wantStatus, rr.Code)
			body := decode[map[string]string](t, rr)
			assert.Equal(t, tc.wantCode, body["code"])
			assert.NotEmpty(t, body["requestId"])
		})
	}
}

func TestHandlerRejectsMalformedBody(t *testing.T) {
	h := newTestRouter(store.NewMemory())

	req := httptest.NewRequest(http.MethodPost, "/api/lobbies", bytes.NewBufferString("{"))
	req.Header.Set(middleware.HeaderPlayerID, hostUUID)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, "invalid_request", decode[map[string]string](t, rr)["code"])
}

func TestHandlerRejectsOversizedBody(t *testing.T) {
	h := newTestRouter(store.NewMemory())

	body := `{"startingScore": 501, "pad": "` + strings.Repeat("x", 8<<10) + `"}`
	req := httptest.NewRequest(http.MethodPost, "/api/lobbies", strings.NewReader(body))
	req.Header.Set(middleware.HeaderPlayerID, hostUUID)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rr.Code)
	assert.Equal(t, "request_too_large", decode[map[string]string](t, rr)["code"])
}

func TestHandlerAcceptsMissWithoutMultiplier(t *testing.T) {
	h := newTestRouter(store.NewMemory())

	rr := call(t, h, http.MethodPost, "/api/lobbies", hostUUID, map[string]any{})
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decode[match.Match](t, rr).ID
	require.Equal(t, http.StatusOK, call(t, h, http.MethodPost, "/api/lobbies/"+id+"/join", challengerUUID, nil).Code)

	rr = call(t, h, http.MethodPost, "/api/matches/"+id+"/visits", challengerUUID, map[string]any{
		"darts": []map[string]int{{"face": 20, "multiplier": 1}, {"face": 0}, {"face": 0}},
	})
	require.Equal(t, http.StatusOK, rr.Code)
	res := decode[match.VisitResult](t, rr)
	assert.Equal(t, 20, res.Visit.TotalScored)
	require.Len(t, res.Visit.Darts, 3)
	assert.Equal(t, scoring.Single, res.Visit.Darts[1].Multiplier)
}

func TestHandlerUnknownMatchIDs(t *testing.T) {
	h := newTestRouter(store.NewMemory())

	rr := call(t, h, http.MethodGet, "/api/matches/abc", "", nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "match_not_found", decode[map[string]string](t, rr)["code"])

	rr = call(t, h, http.MethodPost, "/api/lobbies", hostUUID, map[string]any{})
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decode[match.Match](t, rr).ID
	require.Equal(t, http.StatusOK, call(t, h, http.MethodPost, "/api/lobbies/"+id+"/join", challengerUUID, nil).Code)

	rr = call(t, h, http.MethodPost, "/api/matches/"+id+"/visits", challengerUUID, map[string]any{
		"legId": "not-a-leg",
		"darts": []map[string]int{{"face": 20, "multiplier": 1}},
	})
	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "leg_not_found", decode[map[string]string](t, rr)["code"])
}

func TestHandlerCancelLobby(t *testing.T) {
	h := newTestRouter(store.NewMemory())

	rr := call(t, h, http.MethodPost, "/api/lobbies", hostUUID, map[string]any{})
	require.Equal(t, http.StatusCreated, rr.Code)
	id := decode[match.Match](t, rr).ID

	assert.Equal(t, http.StatusForbidden, call(t, h, http.MethodDelete, "/api/lobbies/"+id, challengerUUID, nil).Code)
	assert.Equal(t, http.StatusNoContent, call(t, h, http.MethodDelete, "/api/lobbies/"+id, hostUUID, nil).Code)
	assert.Equal(t, http.StatusNotFound, call(t, h, http.MethodGet, "/api/matches/"+id, "", nil).Code)
}

func TestHandlerPersistenceFailure(t *testing.T) {
	st := &mockStore{}
	st.On("WithTx", mock.Anything, mock.Anything).Return(errors.New("db down"))
	h := newTestRouter(st)

	rr := call(t, h, http.MethodGet, "/api/matches/any", "", nil)

	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
	body := decode[map[string]string](t, rr)
	assert.Equal(t, "persistence_failure", body["code"])
	assert.NotContains(t, body["error"], "db down")
}

func TestHandlerCheckoutSuggestion(t *testing.T) {
	h := newTestRouter(store.NewMemory())

	rr := call(t, h, http.MethodGet, "/api/checkouts/170", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	resp := decode[match.CheckoutResponse](t, rr)
	assert.True(t, resp.Possible)
	assert.Equal(t, "T20 T20 Bull", resp.Route)
	assert.Len(t, resp.Darts, 3)

	rr = call(t, h, http.MethodGet, "/api/checkouts/169", "", nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.False(t, decode[match.CheckoutResponse](t, rr).Possible)

	rr = call(t, h, http.MethodGet, "/api/checkouts/abc", "", nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}
