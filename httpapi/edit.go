package httpapi

import (
	"net/http"

	"github.com/lmlang/graphlang/editlog"
	"github.com/lmlang/graphlang/editservice"
	"github.com/lmlang/graphlang/typecheck"
)

func (s *Server) registerEditRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /programs/{id}/edit", s.handleProposeEdit)
	mux.HandleFunc("POST /programs/{id}/verify", s.handleVerify)
	mux.HandleFunc("POST /programs/{id}/undo", s.handleUndo)
	mux.HandleFunc("POST /programs/{id}/redo", s.handleRedo)
	mux.HandleFunc("POST /programs/{id}/checkpoints", s.handleCreateCheckpoint)
	mux.HandleFunc("GET /programs/{id}/checkpoints", s.handleListCheckpoints)
	mux.HandleFunc("POST /programs/{id}/diff", s.handleDiff)
	mux.HandleFunc("POST /programs/{id}/flush_propagation", s.handleFlushPropagation)
}

type proposeEditRequest struct {
	Mutations      []editlog.Mutation `json:"mutations"`
	DryRun         bool               `json:"dry_run,omitempty"`
	Description    string             `json:"description,omitempty"`
	ExpectedHashes []string           `json:"expected_hashes,omitempty"`
}

func (s *Server) handleProposeEdit(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.serviceOrNotFound(w, r)
	if !ok {
		return
	}
	var req proposeEditRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	result, err := svc.ProposeEdit(r.Context(), editservice.ProposeEditRequest{
		Mutations:      req.Mutations,
		DryRun:         req.DryRun,
		Description:    req.Description,
		ExpectedHashes: req.ExpectedHashes,
	})
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	status := http.StatusOK
	if !result.Valid {
		status = http.StatusBadRequest
	}
	writeJSON(w, status, result)
}

type verifyScope string

const (
	verifyScopeLocal verifyScope = "Local"
	verifyScopeFull  verifyScope = "Full"
)

type verifyRequest struct {
	Scope          verifyScope `json:"scope"`
	AffectedNodes  []uint32    `json:"affected_nodes,omitempty"`
}

type verifyResponse struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// handleVerify runs whole-graph validation regardless of the requested
// scope: typecheck.ValidateGraph is already a full sweep, and scoping it
// to a caller-chosen node subset would only suppress unrelated errors
// from the response without changing which mutations are safe to
// commit. The scope and affected_nodes fields are accepted but narrow
// neither what is checked nor what is reported.
func (s *Server) handleVerify(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.serviceOrNotFound(w, r)
	if !ok {
		return
	}
	var req verifyRequest
	if err := decodeJSON(r, &req); err != nil && err.Error() != "EOF" {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}

	errs := typecheck.ValidateGraph(svc.Graph())
	resp := verifyResponse{Valid: len(errs) == 0}
	for _, e := range errs {
		resp.Errors = append(resp.Errors, e.Error())
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleUndo(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.serviceOrNotFound(w, r)
	if !ok {
		return
	}
	entry, err := svc.Undo(r.Context())
	if err != nil {
		writeError(w, http.StatusConflict, "undo_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleRedo(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.serviceOrNotFound(w, r)
	if !ok {
		return
	}
	entry, err := svc.Redo(r.Context())
	if err != nil {
		writeError(w, http.StatusConflict, "redo_failed", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

type createCheckpointRequest struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
}

func (s *Server) handleCreateCheckpoint(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.serviceOrNotFound(w, r)
	if !ok {
		return
	}
	var req createCheckpointRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "missing_field", "name is required")
		return
	}
	cp := svc.CreateCheckpoint(req.Name, req.Description)
	writeJSON(w, http.StatusCreated, cp)
}

func (s *Server) handleListCheckpoints(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.serviceOrNotFound(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, svc.ListCheckpoints())
}

type diffRequest struct {
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

func (s *Server) handleDiff(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.serviceOrNotFound(w, r)
	if !ok {
		return
	}
	var req diffRequest
	if err := decodeJSON(r, &req); err != nil && err.Error() != "EOF" {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	diff, err := svc.DiffVersions(req.From, req.To)
	if err != nil {
		writeError(w, http.StatusNotFound, "not_found", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, diff)
}

func (s *Server) handleFlushPropagation(w http.ResponseWriter, r *http.Request) {
	svc, ok := s.serviceOrNotFound(w, r)
	if !ok {
		return
	}
	report, err := svc.FlushPropagation(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}
