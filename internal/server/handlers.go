package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/jonathan/hiring-workflow/internal/types"
)

// maxBodyBytes bounds request bodies; the largest payload is a feedback
// comment of 1000 characters.
const maxBodyBytes = 64 << 10

// applicationID parses the {id} path value.
func (s *Server) applicationID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid application ID")
		return uuid.Nil, false
	}
	return id, true
}

// stageRef parses the {id} and {stage} path values. Range checks are left to
// the workflow so every entry point reports them the same way.
func (s *Server) stageRef(w http.ResponseWriter, r *http.Request) (uuid.UUID, int, bool) {
	id, ok := s.applicationID(w, r)
	if !ok {
		return uuid.Nil, 0, false
	}
	stage, err := strconv.Atoi(r.PathValue("stage"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid stage number")
		return uuid.Nil, 0, false
	}
	return id, stage, true
}

// decodeBody reads a JSON request body into v. An empty body leaves v unchanged.
func (s *Server) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil && !errors.Is(err, io.EOF) {
		s.errorResponse(w, http.StatusBadRequest, "Invalid request body")
		return false
	}
	return true
}

// respond writes the application projection or the error.
func (s *Server) respond(w http.ResponseWriter, r *http.Request, app *types.Application, err error) {
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, app)
}

func (s *Server) handleGetApplication(w http.ResponseWriter, r *http.Request, _ *types.User) {
	id, ok := s.applicationID(w, r)
	if !ok {
		return
	}
	app, err := s.workflow.GetApplication(r.Context(), id)
	s.respond(w, r, app, err)
}

func (s *Server) handleStageOverview(w http.ResponseWriter, r *http.Request, _ *types.User) {
	id, ok := s.applicationID(w, r)
	if !ok {
		return
	}
	overview, err := s.workflow.GetStageOverview(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, overview)
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request, actor *types.User) {
	id, ok := s.applicationID(w, r)
	if !ok {
		return
	}
	app, err := s.workflow.ForwardToNextStage(r.Context(), id, actor)
	s.respond(w, r, app, err)
}
