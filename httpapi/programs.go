package httpapi

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/lmlang/graphlang/program"
)

func (s *Server) registerProgramRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /programs", s.handleCreateProgram)
	mux.HandleFunc("GET /programs", s.handleListPrograms)
	mux.HandleFunc("DELETE /programs/{id}", s.handleDeleteProgram)
}

type createProgramRequest struct {
	Name string `json:"name"`
}

type programResponse struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (s *Server) handleCreateProgram(w http.ResponseWriter, r *http.Request) {
	var req createProgramRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "missing_field", "name is required")
		return
	}

	programID := uuid.NewString()
	g := program.New(req.Name)
	s.register(programID, g)

	writeJSON(w, http.StatusCreated, programResponse{ID: programID, Name: req.Name})
}

func (s *Server) handleListPrograms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.list())
}

func (s *Server) handleDeleteProgram(w http.ResponseWriter, r *http.Request) {
	programID := r.PathValue("id")
	if _, ok := s.lookup(programID); !ok {
		writeError(w, http.StatusNotFound, "not_found", errProgramNotFound.Error())
		return
	}
	if s.isActive(programID) {
		writeError(w, http.StatusConflict, "program_active", errProgramIsActive.Error())
		return
	}

	if err := s.store.DeleteProgram(r.Context(), programID); err != nil {
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
		return
	}
	s.remove(programID)
	w.WriteHeader(http.StatusNoContent)
}
