package client

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// APIError is a non-2xx response. It unwraps to the matching match error,
// so errors.Is(err, ErrNotYourTurn) works across the wire.
type APIError struct {
	Status    int
	Code      string
	Message   string
	RequestID string
}

func (e *APIError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("match api: %d %s: %s (request %s)", e.Status, e.Code, e.Message, e.RequestID)
	}
	return fmt.Sprintf("match api: %d %s: %s", e.Status, e.Code, e.Message)
}

var codeErrors = map[string]error{
	"not_your_turn":         ErrNotYourTurn,
	"leg_already_closed":    ErrLegAlreadyClosed,
	"match_not_found":       ErrMatchNotFound,
	"leg_not_found":         ErrLegNotFound,
	"lobby_unavailable":     ErrLobbyUnavailable,
	"invalid_dart":          ErrInvalidDart,
	"invalid_visit":         ErrInvalidVisit,
	"invalid_config":        ErrInvalidConfig,
	"match_not_in_progress": ErrMatchNotInProgress,
	"not_a_participant":     ErrNotAParticipant,
}

func (e *APIError) Unwrap() error {
	return codeErrors[e.Code]
}

func decodeAPIError(resp *http.Response) error {
	apiErr := &APIError{Status: resp.StatusCode, Code: "unknown", Message: http.StatusText(resp.StatusCode)}

	var body struct {
		Error     string `json:"error"`
		Code      string `json:"code"`
		RequestID string `json:"requestId"`
	}
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if json.Unmarshal(raw, &body) == nil {
		if body.Code != "" {
			apiErr.Code = body.Code
		}
		if body.Error != "" {
			apiErr.Message = body.Error
		}
		apiErr.RequestID = body.RequestID
	}

	if resp.StatusCode >= http.StatusInternalServerError {
		return &PersistenceError{Op: resp.Request.Method + " " + resp.Request.URL.Path, Err: apiErr}
	}
	return apiErr
}
