// Package api exposes the validator registry over HTTP.
//
// Mutating endpoints identify the caller through the X-Roster-Caller
// header. The header names an identity, it does not authenticate it;
// the listener is expected to face trusted operators only.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"ValRoster/internal/logger"
	"ValRoster/internal/registry"
)

// Roster is the registry surface the server exposes. *registry.Registry
// implements it.
type Roster interface {
	Add(caller, owner registry.OwnerID, weight uint32, key registry.PubKey, proof registry.ProofOfPossession) error
	Activate(caller, owner registry.OwnerID) error
	Deactivate(caller, owner registry.OwnerID) error
	Remove(caller, owner registry.OwnerID) error
	ChangeWeight(caller, owner registry.OwnerID, weight uint32) error
	ChangeKey(caller, owner registry.OwnerID, key registry.PubKey, proof registry.ProofOfPossession) error
	Commit(caller registry.OwnerID) (uint64, error)
	Counter() uint64
	Count() int
	Committee() []registry.CommitteeMember
	Get(owner registry.OwnerID) (registry.Record, bool)
	Records() []registry.Record
}

// Snapshotter serves full-state export and import for backup and
// bootstrap. May be nil, in which case the snapshot endpoints report
// the feature as unavailable.
type Snapshotter interface {
	ExportSnapshot() ([]byte, error)
	ImportSnapshot(data []byte) error
}

// Server exposes the validator registry over HTTP.
type Server struct {
	addr      string       // addr is the listen address, e.g. ":8080"
	roster    Roster       // roster executes registry reads and mutations
	snapshots Snapshotter  // snapshots serves state export/import, may be nil
	server    *http.Server // server is the underlying HTTP server
}

// New creates an API server. Call Start to begin listening.
func New(addr string, roster Roster, snapshots Snapshotter) *Server {
	return &Server{
		addr:      addr,
		roster:    roster,
		snapshots: snapshots,
	}
}

// Start launches the HTTP server in a background goroutine.
func (s *Server) Start() error {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /validators", s.handleAddValidator)
	mux.HandleFunc("GET /validators", s.handleListValidators)
	mux.HandleFunc("GET /validators/{owner}", s.handleGetValidator)
	mux.HandleFunc("DELETE /validators/{owner}", s.handleRemoveValidator)
	mux.HandleFunc("POST /validators/{owner}/activate", s.handleActivate)
	mux.HandleFunc("POST /validators/{owner}/deactivate", s.handleDeactivate)
	mux.HandleFunc("POST /validators/{owner}/weight", s.handleChangeWeight)
	mux.HandleFunc("POST /validators/{owner}/key", s.handleChangeKey)
	mux.HandleFunc("POST /commit", s.handleCommit)
	mux.HandleFunc("GET /committee", s.handleCommittee)
	mux.HandleFunc("GET /status", s.handleStatus)
	mux.HandleFunc("GET /health", s.handleHealth)
	mux.HandleFunc("GET /snapshot", s.handleExportSnapshot)
	mux.HandleFunc("POST /snapshot", s.handleImportSnapshot)

	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http api started", "addr", s.addr)

		if err := s.server.ListenAndServe(); err != http.ErrServerClosed {
			logger.Error("http api failed", "err", err)
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server.
func (s *Server) Stop() error {
	if s.server == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return s.server.Shutdown(ctx)
}

// writeJSON writes data as a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		logger.Error("failed to encode json response", "err", err)
	}
}

// writeError writes an error message as a JSON response.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// writeRosterError maps registry errors onto HTTP status codes.
func writeRosterError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, registry.ErrUnauthorized):
		writeError(w, http.StatusForbidden, err.Error())
	case errors.Is(err, registry.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, registry.ErrAlreadyExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, registry.ErrInvalidInput):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}
