// Package server wires the stores, services, and WebSocket hub into an
// HTTP handler.
package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/calebmorris/choreboard/internal/chore"
	"github.com/calebmorris/choreboard/internal/middleware"
	"github.com/calebmorris/choreboard/internal/points"
	"github.com/calebmorris/choreboard/internal/recurrence"
	"github.com/calebmorris/choreboard/internal/store"
	syncer "github.com/calebmorris/choreboard/internal/sync"
)

type Server struct {
	db     *sql.DB
	hub    *syncer.Hub
	disp   *syncer.Dispatcher
	engine *recurrence.Engine
	logger *slog.Logger
}

func New(db *sql.DB, logger *slog.Logger) *Server {
	hub := syncer.NewHub(logger.With("component", "sync"))

	memberStore := store.NewMemberStore(db)
	choreStore := store.NewChoreStore(db)
	rewardStore := store.NewRewardStore(db)
	todoStore := store.NewTodoStore(db)
	eventStore := store.NewEventStore(db)
	settingsStore := store.NewSettingsStore(db)
	snapshotStore := store.NewSnapshotStore(db)

	engine := recurrence.NewEngine(choreStore, logger.With("component", "recurrence"))
	lifecycle := chore.NewService(choreStore, memberStore, engine, logger.With("component", "chore"))
	ledger := points.NewLedger(db, rewardStore, logger.With("component", "points"))

	disp := syncer.NewDispatcher(syncer.DispatcherDeps{
		Members:   memberStore,
		Chores:    choreStore,
		Rewards:   rewardStore,
		Todos:     todoStore,
		Events:    eventStore,
		Settings:  settingsStore,
		Snapshots: snapshotStore,
		Lifecycle: lifecycle,
		Ledger:    ledger,
		Engine:    engine,
		Logger:    logger.With("component", "dispatcher"),
	})

	return &Server{
		db:     db,
		hub:    hub,
		disp:   disp,
		engine: engine,
		logger: logger,
	}
}

// Engine returns the recurrence engine for the periodic tick.
func (s *Server) Engine() *recurrence.Engine {
	return s.engine
}

// Hub returns the sync hub, used by the tick to push snapshots after
// time-driven changes.
func (s *Server) Hub() *syncer.Hub {
	return s.hub
}

// Dispatcher returns the command dispatcher.
func (s *Server) Dispatcher() *syncer.Dispatcher {
	return s.disp
}

func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", s.healthHandler)
	mux.HandleFunc("GET /ws", syncer.HandleWebSocket(s.hub, s.disp, s.logger.With("component", "websocket")))

	return middleware.RequestLogger(s.logger.With("component", "http"))(mux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}
