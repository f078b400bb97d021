// Package adminapi is the simulation's read-only observability surface:
// a chi HTTP router exposing Prometheus metrics, pprof, a point-in-time
// snapshot and leaderboard, and a websocket feed spectators/dashboards
// can subscribe to for a periodic push of the same state. It never
// accepts player input — replication traffic is the UDP transport in
// internal/replication, not this HTTP server.
package adminapi

import (
	"encoding/json"
	"net/http"
	"net/http/pprof"

	"deadfall/internal/ai"
	"deadfall/internal/spatial"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// StateProvider is the minimal read surface the router needs from the
// running simulation, kept as an interface so it can be faked in tests
// without spinning up a full server.
type StateProvider interface {
	Snapshot() *ai.Snapshot
	Leaderboard() []spatial.SkipListEntry
}

// RouterConfig carries the router's dependencies.
type RouterConfig struct {
	State StateProvider
	Hub   *Hub

	// CORSOrigins defaults to localhost-only if nil, since this surface
	// is meant for local dashboards, not public consumption.
	CORSOrigins []string
}

// NewRouter builds the admin HTTP router. It is pure: no goroutines, no listeners, safe to mount in
// httptest.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	origins := cfg.CORSOrigins
	if origins == nil {
		origins = []string{"http://localhost:*", "http://127.0.0.1:*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET"},
	}))

	r.Handle("/metrics", promhttp.Handler())

	r.Get("/debug/pprof/", pprof.Index)
	r.Get("/debug/pprof/cmdline", pprof.Cmdline)
	r.Get("/debug/pprof/profile", pprof.Profile)
	r.Get("/debug/pprof/symbol", pprof.Symbol)
	r.Get("/debug/pprof/trace", pprof.Trace)

	r.Route("/api", func(r chi.Router) {
		r.Get("/snapshot", handleSnapshot(cfg.State))
		r.Get("/leaderboard", handleLeaderboard(cfg.State))
		r.Get("/stats", handleStats(cfg.State))
	})

	if cfg.Hub != nil {
		r.Get("/ws/spectate", cfg.Hub.ServeHTTP)
	}

	return r
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func handleSnapshot(state StateProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, state.Snapshot())
	}
}

func handleLeaderboard(state StateProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, state.Leaderboard())
	}
}

func handleStats(state StateProvider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := state.Snapshot()
		alive := 0
		for _, p := range snap.Players {
			if p.Alive {
				alive++
			}
		}
		writeJSON(w, map[string]interface{}{
			"player_count":   len(snap.Players),
			"alive_count":    alive,
			"bullet_count":   len(snap.Bullets),
			"platform_count": len(snap.Platforms),
			"sequence":       snap.Sequence,
		})
	}
}
