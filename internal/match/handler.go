package match

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/merev/ds-match-api/internal/http/middleware"
	"github.com/merev/ds-match-api/internal/logging"
	"github.com/merev/ds-match-api/internal/scoring"
)

const (
	defaultRequestTimeout = 3 * time.Second
	maxBodyBytes          = 4 << 10
)

type Handler struct {
	svc     *Service
	timeout time.Duration
	logger  *slog.Logger
}

func NewHandler(svc *Service, timeout time.Duration, logger *slog.Logger) *Handler {
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Handler{svc: svc, timeout: timeout, logger: logger}
}

// POST /api/lobbies
func (h *Handler) CreateLobby(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	playerID, _ := middleware.PlayerID(ctx)

	var req CreateLobbyRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	m, err := h.svc.CreateLobby(ctx, playerID, req.Config())
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusCreated, m)
}

// GET /api/lobbies
func (h *Handler) ListLobbies(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	lobbies, err := h.svc.ListLobbies(ctx)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, lobbies)
}

// POST /api/lobbies/{id}/join
func (h *Handler) JoinLobby(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	playerID, _ := middleware.PlayerID(ctx)
	m, err := h.svc.JoinLobby(ctx, chi.URLParam(r, "id"), playerID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, m)
}

// DELETE /api/lobbies/{id}
func (h *Handler) CancelLobby(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	playerID, _ := middleware.PlayerID(ctx)
	if err := h.svc.CancelLobby(ctx, chi.URLParam(r, "id"), playerID); err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// GET /api/matches/{id}
func (h *Handler) GetMatch(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	snap, err := h.svc.GetMatch(ctx, chi.URLParam(r, "id"))
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, snap)
}

// POST /api/matches/{id}/visits
func (h *Handler) RecordVisit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	playerID, _ := middleware.PlayerID(ctx)

	var req RecordVisitRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	res, err := h.svc.RecordVisit(ctx, chi.URLParam(r, "id"), req.LegID, playerID, req.Darts)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, res)
}

// POST /api/matches/{id}/forfeit
func (h *Handler) Forfeit(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	playerID, _ := middleware.PlayerID(ctx)
	m, err := h.svc.Forfeit(ctx, chi.URLParam(r, "id"), playerID)
	if err != nil {
		h.writeServiceError(w, r, err)
		return
	}

	h.writeJSON(w, r, http.StatusOK, m)
}

// CheckoutResponse is the body of GET /api/checkouts/{remaining}.
type CheckoutResponse struct {
	Remaining int            `json:"remaining"`
	Route     string         `json:"route,omitempty"`
	Darts     []scoring.Dart `json:"darts,omitempty"`
	Possible  bool           `json:"possible"`
}

// GET /api/checkouts/{remaining}
func (h *Handler) CheckoutSuggestion(w http.ResponseWriter, r *http.Request) {
	remaining, err := strconv.Atoi(chi.URLParam(r, "remaining"))
	if err != nil {
		h.writeError(w, r, http.StatusBadRequest, "invalid_request", "remaining must be an integer")
		return
	}

	resp := CheckoutResponse{Remaining: remaining}
	if darts, ok := scoring.SuggestDarts(remaining); ok {
		resp.Possible = true
		resp.Darts = darts
		resp.Route = scoring.Route(darts)
	}
	h.writeJSON(w, r, http.StatusOK, resp)
}

// errorKind maps a service error to its HTTP status and machine code.
func errorKind(err error) (int, string) {
	switch {
	case errors.Is(err, ErrNotYourTurn):
		return http.StatusConflict, "not_your_turn"
	case errors.Is(err, ErrLegAlreadyClosed):
		return http.StatusConflict, "leg_already_closed"
	case errors.Is(err, ErrMatchNotFound):
		return http.StatusNotFound, "match_not_found"
	case errors.Is(err, ErrLegNotFound):
		return http.StatusNotFound, "leg_not_found"
	case errors.Is(err, ErrLobbyUnavailable):
		return http.StatusConflict, "lobby_unavailable"
	case errors.Is(err, ErrInvalidDart):
		return http.StatusBadRequest, "invalid_dart"
	case errors.Is(err, ErrInvalidVisit):
		return http.StatusBadRequest, "invalid_visit"
	case errors.Is(err, ErrInvalidConfig):
		return http.StatusBadRequest, "invalid_config"
	case errors.Is(err, ErrMatchNotInProgress):
		return http.StatusConflict, "match_not_in_progress"
	case errors.Is(err, ErrNotAParticipant):
		return http.StatusForbidden, "not_a_participant"
	}
	return http.StatusServiceUnavailable, "persistence_failure"
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := errorKind(err)
	if status >= http.StatusInternalServerError {
		logging.FromContext(r.Context(), h.logger).Error("request failed", "err", err)
		h.writeError(w, r, status, code, "storage temporarily unavailable, retry")
		return
	}
	h.writeError(w, r, status, code, err.Error())
}

// decodeBody reads a JSON body of at most maxBodyBytes into v and writes the
// error response itself when it cannot.
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(v)
	if err == nil {
		return true
	}
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		h.writeError(w, r, http.StatusRequestEntityTooLarge, "request_too_large", "request body too large")
		return false
	}
	h.writeError(w, r, http.StatusBadRequest, "invalid_request", "invalid JSON body")
	return false
}

func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	body := map[string]string{"error": message, "code": code}
	if reqID := middleware.RequestIDFromContext(r.Context()); reqID != "" {
		body["requestId"] = reqID
	}
	h.writeJSON(w, r, status, body)
}

func (h *Handler) writeJSON(w http.ResponseWriter, r *http.Request, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.FromContext(r.Context(), h.logger).Error("failed to encode response", "err", err)
	}
}
