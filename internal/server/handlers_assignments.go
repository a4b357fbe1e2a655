package server

import (
	"net/http"

	"github.com/jonathan/hiring-workflow/internal/types"
)

func (s *Server) handleAssignStage(w http.ResponseWriter, r *http.Request, actor *types.User) {
	id, stage, ok := s.stageRef(w, r)
	if !ok {
		return
	}
	var req types.AssignStageRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	app, err := s.workflow.AssignStage(r.Context(), id, stage, actor, req)
	s.respond(w, r, app, err)
}

func (s *Server) handleReassignStage(w http.ResponseWriter, r *http.Request, actor *types.User) {
	id, stage, ok := s.stageRef(w, r)
	if !ok {
		return
	}
	var req types.ReassignStageRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	app, err := s.workflow.ReassignStage(r.Context(), id, stage, actor, req)
	s.respond(w, r, app, err)
}

func (s *Server) handleBulkAssign(w http.ResponseWriter, r *http.Request, actor *types.User) {
	id, ok := s.applicationID(w, r)
	if !ok {
		return
	}
	var req types.BulkAssignRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	result, err := s.workflow.BulkAssignStages(r.Context(), id, actor, req)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, result)
}

func (s *Server) handleListStageAssignments(w http.ResponseWriter, r *http.Request, actor *types.User) {
	id, ok := s.applicationID(w, r)
	if !ok {
		return
	}
	views, err := s.workflow.ListStageAssignments(r.Context(), id, actor)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"assignments": views, "total": len(views)})
}

func (s *Server) handleAssignees(w http.ResponseWriter, r *http.Request, actor *types.User) {
	users, err := s.workflow.ListAssignees(r.Context(), actor)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"assignees": users, "total": len(users)})
}

func (s *Server) handleMyAssignments(w http.ResponseWriter, r *http.Request, actor *types.User) {
	views, err := s.workflow.ListMyAssignments(r.Context(), actor)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"assignments": views, "total": len(views)})
}
