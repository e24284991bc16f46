// Package dbserver is the cluster database's replication HTTP endpoint
// (spec §4.1): a joining slave pulls a full snapshot, then streams the
// redo log onward from the snapshot's token, both gated behind the
// database-ready barrier bootstrap signals once its branch of the
// startup sequencer (pkg/bootstrap) has populated or received the DB.
// Routing uses gorilla/mux, here serving a cluster-internal replication
// contract instead of a REST-over-session API.
package dbserver

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/xapi-core/xapi-core/internal/common/logger"
	"github.com/xapi-core/xapi-core/pkg/db"
	"github.com/xapi-core/xapi-core/pkg/events"
	"github.com/xapi-core/xapi-core/pkg/model"
)

// allClasses is every class the replication stream subscribes to on a
// slave's behalf; a slave has no narrower interest than "everything",
// unlike a UI client's class-filtered subscription.
var allClasses = []string{
	string(model.ClassPool), string(model.ClassHost), string(model.ClassVM),
	string(model.ClassVBD), string(model.ClassVIF), string(model.ClassVDI),
	string(model.ClassSR), string(model.ClassPBD), string(model.ClassPCI),
	string(model.ClassVGPU), string(model.ClassPUSB), string(model.ClassVUSB),
	string(model.ClassVTPM), string(model.ClassNetwork), string(model.ClassPIF),
	string(model.ClassTask),
}

// Server exposes /replication/pull and /replication/stream over HTTP.
type Server struct {
	store  *db.Store
	ready  *ReadyGate
	log    *logger.Logger
	router *mux.Router
}

func NewServer(store *db.Store, ready *ReadyGate, log *logger.Logger) *Server {
	s := &Server{store: store, ready: ready, log: log}
	r := mux.NewRouter()
	r.HandleFunc("/replication/pull", s.handlePull).Methods(http.MethodGet)
	r.HandleFunc("/replication/stream", s.handleStream).Methods(http.MethodGet)
	s.router = r
	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// pullResponse is the full-snapshot shape a joining slave decodes before
// replaying the redo log from Token onward.
type pullResponse struct {
	Token  events.Token   `json:"token"`
	Tables map[string]any `json:"tables"`
}

func (s *Server) handlePull(w http.ResponseWriter, r *http.Request) {
	if err := s.ready.WaitReady(r.Context()); err != nil {
		http.Error(w, "database not ready", http.StatusServiceUnavailable)
		return
	}

	snapshot := s.store.Snapshot()
	tables := make(map[string]any, len(snapshot))
	for class, rows := range snapshot {
		tables[string(class)] = rows
	}

	writeJSON(w, pullResponse{Token: s.store.NextToken(), Tables: tables})
}

// streamResponse is one long-poll reply, matching the events package's
// from-token/timeout contract.
type streamResponse struct {
	Events []events.Event `json:"events"`
	Next   events.Token   `json:"next"`
}

func (s *Server) handleStream(w http.ResponseWriter, r *http.Request) {
	if err := s.ready.WaitReady(r.Context()); err != nil {
		http.Error(w, "database not ready", http.StatusServiceUnavailable)
		return
	}

	from, err := parseToken(r.URL.Query().Get("from"))
	if err != nil {
		http.Error(w, "invalid from token", http.StatusBadRequest)
		return
	}

	evs, next := s.store.Bus.Wait(r.Context(), from, allClasses)
	writeJSON(w, streamResponse{Events: evs, Next: next})
}

func parseToken(raw string) (events.Token, error) {
	if raw == "" {
		return 0, nil
	}
	n, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, err
	}
	return events.Token(n), nil
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// WaitReady exposes the gate so callers holding only a *Server (not the
// ReadyGate itself) can block until replication is servable, e.g. a
// health check endpoint.
func (s *Server) WaitReady(ctx context.Context) error {
	return s.ready.WaitReady(ctx)
}
