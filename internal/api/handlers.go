package api

import (
	"encoding/hex"
	"io"
	"net/http"

	"ValRoster/internal/logger"
	"ValRoster/internal/registry"
)

const (
	// maxBodySize limits JSON request bodies.
	maxBodySize = 1 << 20

	// maxSnapshotSize limits uploaded snapshot payloads.
	maxSnapshotSize = 64 << 20
)

// addValidatorRequest is the body of POST /validators.
type addValidatorRequest struct {
	Owner  string `json:"owner"`  // Owner is the hex-encoded record key
	Weight uint32 `json:"weight"` // Weight is the initial voting weight
	PubKey string `json:"pubKey"` // PubKey is the hex-encoded BLS public key
	Proof  string `json:"pop"`    // Proof is the hex-encoded proof of possession
}

// changeWeightRequest is the body of POST /validators/{owner}/weight.
type changeWeightRequest struct {
	Weight uint32 `json:"weight"` // Weight is the new voting weight
}

// changeKeyRequest is the body of POST /validators/{owner}/key.
type changeKeyRequest struct {
	PubKey string `json:"pubKey"` // PubKey is the hex-encoded replacement key
	Proof  string `json:"pop"`    // Proof is the hex-encoded proof for PubKey
}

// handleAddValidator registers a new validator record.
func (s *Server) handleAddValidator(w http.ResponseWriter, r *http.Request) {
	caller, err := readCaller(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req addValidatorRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	owner, key, proof, err := parseValidatorFields(req.Owner, req.PubKey, req.Proof)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.roster.Add(caller, owner, req.Weight, key, proof); err != nil {
		writeRosterError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status": "ok",
		"owner":  req.Owner,
	})
}

// handleListValidators returns every physically present record, including
// records flagged for deletion that have not been purged yet.
func (s *Server) handleListValidators(w http.ResponseWriter, r *http.Request) {
	counter := s.roster.Counter()
	records := s.roster.Records()

	out := make([]map[string]any, len(records))
	for i, rec := range records {
		out[i] = recordJSON(rec, counter)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"counter":    counter,
		"count":      len(records),
		"validators": out,
	})
}

// handleGetValidator returns a single record by owner.
func (s *Server) handleGetValidator(w http.ResponseWriter, r *http.Request) {
	owner, err := parseOwner(r.PathValue("owner"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, ok := s.roster.Get(owner)
	if !ok {
		writeError(w, http.StatusNotFound, "validator not found")
		return
	}

	writeJSON(w, http.StatusOK, recordJSON(rec, s.roster.Counter()))
}

// handleRemoveValidator flags a record for deletion.
func (s *Server) handleRemoveValidator(w http.ResponseWriter, r *http.Request) {
	s.handleOwnerAction(w, r, s.roster.Remove)
}

// handleActivate marks a validator as committee-eligible.
func (s *Server) handleActivate(w http.ResponseWriter, r *http.Request) {
	s.handleOwnerAction(w, r, s.roster.Activate)
}

// handleDeactivate clears the committee-eligible flag.
func (s *Server) handleDeactivate(w http.ResponseWriter, r *http.Request) {
	s.handleOwnerAction(w, r, s.roster.Deactivate)
}

// handleOwnerAction runs a caller+owner mutation shared by the
// activate, deactivate and remove endpoints.
func (s *Server) handleOwnerAction(w http.ResponseWriter, r *http.Request, action func(caller, owner registry.OwnerID) error) {
	caller, err := readCaller(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	owner, err := parseOwner(r.PathValue("owner"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := action(caller, owner); err != nil {
		writeRosterError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleChangeWeight updates a validator's voting weight.
func (s *Server) handleChangeWeight(w http.ResponseWriter, r *http.Request) {
	caller, err := readCaller(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	owner, err := parseOwner(r.PathValue("owner"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req changeWeightRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.roster.ChangeWeight(caller, owner, req.Weight); err != nil {
		writeRosterError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleChangeKey rotates a validator's BLS key.
func (s *Server) handleChangeKey(w http.ResponseWriter, r *http.Request) {
	caller, err := readCaller(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	owner, err := parseOwner(r.PathValue("owner"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	var req changeKeyRequest
	if err := decodeBody(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	key, err := parseKey(req.PubKey)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	proof, err := parseProof(req.Proof)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := verifyKeyProof(key, proof); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.roster.ChangeKey(caller, owner, key, proof); err != nil {
		writeRosterError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleCommit advances the commit counter, publishing every pending
// attribute change at once.
func (s *Server) handleCommit(w http.ResponseWriter, r *http.Request) {
	caller, err := readCaller(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	counter, err := s.roster.Commit(caller)
	if err != nil {
		writeRosterError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"counter": counter})
}

// handleCommittee returns the currently readable committee.
func (s *Server) handleCommittee(w http.ResponseWriter, r *http.Request) {
	members := s.roster.Committee()

	out := make([]map[string]any, len(members))
	for i, m := range members {
		out[i] = map[string]any{
			"owner":  hex.EncodeToString(m.Owner[:]),
			"weight": m.Weight,
			"pubKey": hex.EncodeToString(m.PubKey[:]),
			"pop":    hex.EncodeToString(m.Proof[:]),
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"counter": s.roster.Counter(),
		"members": out,
	})
}

// handleStatus returns a summary of the registry state.
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"counter":       s.roster.Counter(),
		"records":       s.roster.Count(),
		"committeeSize": len(s.roster.Committee()),
	})
}

// handleHealth returns a simple liveness check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleExportSnapshot streams a compressed snapshot of the full state.
func (s *Server) handleExportSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		writeError(w, http.StatusServiceUnavailable, "snapshots not available")
		return
	}

	data, err := s.snapshots.ExportSnapshot()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusOK)

	if _, err := w.Write(data); err != nil {
		logger.Error("failed to write snapshot response", "err", err)
	}
}

// handleImportSnapshot replaces the full state with an uploaded snapshot.
func (s *Server) handleImportSnapshot(w http.ResponseWriter, r *http.Request) {
	if s.snapshots == nil {
		writeError(w, http.StatusServiceUnavailable, "snapshots not available")
		return
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, maxSnapshotSize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, "empty body")
		return
	}

	if err := s.snapshots.ImportSnapshot(data); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"counter": s.roster.Counter(),
	})
}

// recordJSON renders a record with its latest, snapshot and readable
// attribute sets.
func recordJSON(rec registry.Record, counter uint64) map[string]any {
	return map[string]any{
		"owner":      hex.EncodeToString(rec.Owner[:]),
		"ownerIndex": rec.OwnerIndex,
		"activeFrom": rec.ActiveFrom,
		"latest":     attrsJSON(rec.Latest),
		"snapshot":   attrsJSON(rec.Snapshot),
		"readable":   attrsJSON(rec.Readable(counter)),
	}
}

// attrsJSON renders one attribute set.
func attrsJSON(attrs registry.Attributes) map[string]any {
	return map[string]any{
		"active":  attrs.Active,
		"removed": attrs.Removed,
		"weight":  attrs.Weight,
		"pubKey":  hex.EncodeToString(attrs.PubKey[:]),
		"pop":     hex.EncodeToString(attrs.Proof[:]),
	}
}
