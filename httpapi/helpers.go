package httpapi

import (
	"net/http"
	"strconv"

	"github.com/lmlang/graphlang/editservice"
)

func (s *Server) serviceOrNotFound(w http.ResponseWriter, r *http.Request) (*editservice.Service, bool) {
	programID := r.PathValue("id")
	svc, ok := s.lookup(programID)
	if !ok {
		writeError(w, http.StatusNotFound, "not_found", errProgramNotFound.Error())
		return nil, false
	}
	return svc, true
}

func parseUint32PathValue(w http.ResponseWriter, r *http.Request, name string) (uint32, bool) {
	raw := r.PathValue(name)
	n, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid_id", "malformed "+name+" path parameter")
		return 0, false
	}
	return uint32(n), true
}
