package main

import (
	"encoding/json"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"barrelkv"
)

// statsServer is a read-only introspection side-channel, matching the
// shape of _examples/catalinm00-KVDB/internal/platform/server/server.go's
// chi router. It never exposes the key-value data plane itself — only
// operational counters and a manual merge trigger, per SPEC_FULL.md §2.
type statsServer struct {
	db       *barrelkv.DB
	addr     string
	engine   *chi.Mux
	corrID   string
	requests *log.Logger
}

func newStatsServer(db *barrelkv.DB, addr, corrID string, logger *log.Logger) *statsServer {
	s := &statsServer{db: db, addr: addr, engine: chi.NewRouter(), corrID: corrID, requests: logger}
	s.engine.Use(middleware.Logger)
	s.registerRoutes()
	return s
}

func (s *statsServer) registerRoutes() {
	s.engine.Get("/healthz", s.handleHealthz)
	s.engine.Get("/stats", s.handleStats)
	s.engine.Post("/merge", s.handleMerge)
}

func (s *statsServer) Run() error {
	s.requests.Printf("[%s] stats server listening on %s", s.corrID, s.addr)
	return http.ListenAndServe(s.addr, s.engine)
}

func (s *statsServer) handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

func (s *statsServer) handleStats(w http.ResponseWriter, r *http.Request) {
	stats := s.db.Stats()
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

func (s *statsServer) handleMerge(w http.ResponseWriter, r *http.Request) {
	reopen := r.URL.Query().Get("reopen") != "false"
	if err := s.db.Merge(reopen); err != nil {
		s.requests.Printf("[%s] merge failed: %v", s.corrID, err)
		http.Error(w, err.Error(), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
