package middleware

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"

	"github.com/merev/ds-match-api/internal/logging"
)

type playerIDKey struct{}

// Identity reads the caller's player ID from X-Player-ID. The auth gateway
// in front of this service owns authentication; here the header is trusted
// once it parses as a UUID. Requests without it pass through anonymous.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw := r.Header.Get(HeaderPlayerID)
		if raw == "" {
			next.ServeHTTP(w, r)
			return
		}

		id, err := uuid.Parse(raw)
		if err != nil {
			writeUnauthenticated(w, r, "X-Player-ID must be a UUID")
			return
		}

		playerID := id.String()
		logger := logging.FromContext(r.Context(), nil).With(logging.FieldPlayerID, playerID)
		ctx := context.WithValue(r.Context(), playerIDKey{}, playerID)
		ctx = logging.WithLogger(ctx, logger)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequirePlayer rejects anonymous requests with 401.
func RequirePlayer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := PlayerID(r.Context()); !ok {
			writeUnauthenticated(w, r, "missing X-Player-ID header")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// PlayerID returns the authenticated caller, if any.
func PlayerID(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	id, ok := ctx.Value(playerIDKey{}).(string)
	return id, ok && id != ""
}

// WithPlayerID is used by tests and in-process callers.
func WithPlayerID(ctx context.Context, playerID string) context.Context {
	return context.WithValue(ctx, playerIDKey{}, playerID)
}

func writeUnauthenticated(w http.ResponseWriter, r *http.Request, message string) {
	body := map[string]string{"error": message, "code": "unauthenticated"}
	if reqID := RequestIDFromContext(r.Context()); reqID != "" {
		body["requestId"] = reqID
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(body)
}
