package http

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/merev/ds-match-api/internal/http/middleware"
	"github.com/merev/ds-match-api/internal/match"
	"github.com/merev/ds-match-api/internal/metrics"
	"github.com/merev/ds-match-api/internal/realtime"
)

// Deps are the handlers the router mounts. Metrics may be nil.
type Deps struct {
	Matches  *match.Handler
	Realtime *realtime.Hub
	Metrics  *metrics.Recorder
	Logger   *slog.Logger
}

func NewRouter(d Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Recoverer)
	if d.Metrics != nil {
		r.Use(middleware.RequestLogging(d.Logger, d.Metrics))
	} else {
		r.Use(middleware.RequestLogging(d.Logger, nil))
	}
	r.Use(middleware.Identity)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	if d.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", d.Metrics.Handler())
	}

	r.Route("/api", func(api chi.Router) {
		api.Get("/lobbies", d.Matches.ListLobbies)                      // GET /api/lobbies
		api.Get("/lobbies/ws", d.Realtime.ServeLobby)                   // GET /api/lobbies/ws
		api.Get("/matches/{id}", d.Matches.GetMatch)                    // GET /api/matches/:id
		api.Get("/matches/{id}/ws", d.Realtime.ServeMatch)              // GET /api/matches/:id/ws
		api.Get("/checkouts/{remaining}", d.Matches.CheckoutSuggestion) // GET /api/checkouts/:remaining

		api.Group(func(player chi.Router) {
			player.Use(middleware.RequirePlayer)
			player.Post("/lobbies", d.Matches.CreateLobby)             // POST /api/lobbies
			player.Post("/lobbies/{id}/join", d.Matches.JoinLobby)     // POST /api/lobbies/:id/join
			player.Delete("/lobbies/{id}", d.Matches.CancelLobby)      // DELETE /api/lobbies/:id
			player.Post("/matches/{id}/visits", d.Matches.RecordVisit) // POST /api/matches/:id/visits
			player.Post("/matches/{id}/forfeit", d.Matches.Forfeit)    // POST /api/matches/:id/forfeit
		})
	})

	return r
}
