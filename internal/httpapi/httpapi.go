// Package httpapi serves the read-only admin surface: room and game
// listings, counters, and a websocket feed of lobby lifecycle events.
package httpapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"gamehall/lobby/internal/accounts"
	"gamehall/lobby/internal/catalog"
	"gamehall/lobby/internal/events"
	"gamehall/lobby/internal/rooms"
)

// ResultCounter exposes how many match outcomes have been journalled.
type ResultCounter interface {
	Count() int
}

// Deps bundles the lobby collaborators the admin API reads from.
type Deps struct {
	Registry *rooms.Registry
	Games    *catalog.Store
	Accounts *accounts.Store
	Bus      *events.Bus
	Results  ResultCounter
	Logger   *zap.Logger
}

type api struct {
	deps     Deps
	log      *zap.Logger
	upgrader websocket.Upgrader
}

// NewRouter builds the admin HTTP handler.
func NewRouter(deps Deps) http.Handler {
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	a := &api{
		deps: deps,
		log:  deps.Logger,
		upgrader: websocket.Upgrader{
			// The admin port is expected to be firewalled; origin checks
			// would only get in the way of internal dashboards.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", a.health)
	r.Get("/api/rooms", a.listRooms)
	r.Get("/api/games", a.listGames)
	r.Get("/api/stats", a.stats)
	r.Get("/events", a.eventFeed)
	return r
}

func (a *api) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *api) listRooms(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"rooms": a.deps.Registry.List()})
}

func (a *api) listGames(w http.ResponseWriter, _ *http.Request) {
	type view struct {
		ID         int    `json:"id"`
		Name       string `json:"name"`
		Version    string `json:"version"`
		MinPlayers int    `json:"min_players"`
		MaxPlayers int    `json:"max_players"`
	}
	manifests := a.deps.Games.List()
	views := make([]view, 0, len(manifests))
	for _, m := range manifests {
		views = append(views, view{
			ID: m.ID, Name: m.Name, Version: m.Version,
			MinPlayers: m.MinPlayers, MaxPlayers: m.MaxPlayers,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"games": views})
}

func (a *api) stats(w http.ResponseWriter, _ *http.Request) {
	snapshot := a.deps.Registry.List()
	running := 0
	for _, room := range snapshot {
		if room.State == rooms.StateRunning {
			running++
		}
	}
	stats := map[string]int{
		"rooms":         len(snapshot),
		"rooms_running": running,
		"online":        len(a.deps.Accounts.Online("")),
	}
	if a.deps.Results != nil {
		stats["results"] = a.deps.Results.Count()
	}
	writeJSON(w, http.StatusOK, stats)
}

// eventFeed upgrades to a websocket and streams bus events as JSON until the
// client goes away or falls too far behind.
func (a *api) eventFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		a.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	feed, cancel := a.deps.Bus.Subscribe(64)
	defer cancel()

	//1.- Drain client frames so close handshakes are noticed promptly.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-gone:
			return
		case event, ok := <-feed:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
			if err := conn.WriteJSON(event); err != nil {
				return
			}
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
