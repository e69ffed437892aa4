package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/coder/quartz"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lovza/sumo-server/internal/arena"
)

// Server owns the HTTP surface: the WebSocket endpoint, the lobby listing,
// health and metrics. It also spawns the per-room loops, which share its
// lifetime.
type Server struct {
	addr      string
	webAppURL string
	upgrader  websocket.Upgrader
	registry  *Registry
	clock     quartz.Clock
	limiter   *IPRateLimiter
	logger    *log.Logger
	ctx       context.Context
	cancel    context.CancelFunc
}

// NewServer creates a server around an existing registry. webAppURL may be
// empty; when set, lobby entries carry deep links into it.
func NewServer(addr, webAppURL string, registry *Registry, clock quartz.Clock, logger *log.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())

	return &Server{
		addr:      addr,
		webAppURL: webAppURL,
		upgrader: websocket.Upgrader{
			// Clients connect from arbitrary web-app origins.
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
		registry: registry,
		clock:    clock,
		limiter:  NewIPRateLimiter(upgradesPerSecond, upgradeBurst),
		logger:   logger.WithPrefix("server"),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// StartRoomLoop spawns the single loop goroutine for a freshly created room.
// It implements LoopStarter for sessions and the supervisor.
func (s *Server) StartRoomLoop(room *arena.Room) {
	go newRoomLoop(room, s.registry, s.clock, s.logger).run(s.ctx)
}

// Router builds the HTTP handler. It is pure (no goroutines, no listeners)
// so tests can mount it on httptest.NewServer.
func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "OPTIONS"},
		AllowedHeaders: []string{"*"},
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/rooms", s.handleRooms)
	r.Handle("/metrics", promhttp.Handler())
	r.With(s.limiter.Middleware).Get("/ws", s.handleWebSocket)

	return r
}

// Start serves HTTP until the context is cancelled, then shuts down
// gracefully.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{Addr: s.addr, Handler: s.Router()}

	go func() {
		select {
		case <-ctx.Done():
		case <-s.ctx.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		s.Stop()
	}()

	s.logger.Info("Starting server", "addr", s.addr)
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Stop cancels every room loop and the rate limiter. Idempotent.
func (s *Server) Stop() {
	s.cancel()
	s.limiter.Stop()
}

// handleWebSocket upgrades the connection and hands it to a session.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("Failed to upgrade connection", "error", err)
		return
	}

	NewSession(conn, s.registry, s, s.logger).Start()
}

// handleHealth handles health check requests
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, map[string]string{"status": "ok"})
}

// LobbyEntry is one row of the public room listing.
type LobbyEntry struct {
	ID          string      `json:"id"`
	PlayerCount int         `json:"player_count"`
	MaxPlayers  int         `json:"max_players"`
	OwnerName   string      `json:"owner_name"`
	State       arena.State `json:"state"`
	IsBotRoom   bool        `json:"is_bot_room"`
	JoinURL     string      `json:"join_url,omitempty"`
}

// LobbyResponse is the GET /rooms body.
type LobbyResponse struct {
	Rooms []LobbyEntry `json:"rooms"`
}

// handleRooms lists public waiting rooms with a free slot.
func (s *Server) handleRooms(w http.ResponseWriter, r *http.Request) {
	payloads := s.registry.LobbyRooms()

	entries := make([]LobbyEntry, 0, len(payloads))
	for _, pl := range payloads {
		entry := LobbyEntry{
			ID:          pl.ID,
			PlayerCount: pl.PlayerCount,
			MaxPlayers:  arena.MaxPlayers,
			OwnerName:   pl.Players[pl.OwnerID].Name,
			State:       pl.State,
			IsBotRoom:   pl.IsBotRoom,
		}
		if s.webAppURL != "" {
			entry.JoinURL = s.webAppURL + "?startapp=room_" + pl.ID
		}
		entries = append(entries, entry)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	writeJSON(w, LobbyResponse{Rooms: entries})
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(v)
}
