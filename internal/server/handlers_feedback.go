package server

import (
	"net/http"
	"time"

	"github.com/jonathan/hiring-workflow/internal/types"
)

const dateLayout = "2006-01-02"

func (s *Server) handleSubmitFeedback(w http.ResponseWriter, r *http.Request, actor *types.User) {
	id, stage, ok := s.stageRef(w, r)
	if !ok {
		return
	}
	var sub types.FeedbackSubmission
	if !s.decodeBody(w, r, &sub) {
		return
	}
	app, err := s.workflow.SubmitFeedback(r.Context(), id, stage, actor, sub)
	s.respond(w, r, app, err)
}

func (s *Server) handleGetFeedback(w http.ResponseWriter, r *http.Request, actor *types.User) {
	id, stage, ok := s.stageRef(w, r)
	if !ok {
		return
	}
	view, err := s.workflow.GetFeedback(r.Context(), id, stage, actor)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, view)
}

func (s *Server) handleStartStage(w http.ResponseWriter, r *http.Request, actor *types.User) {
	id, stage, ok := s.stageRef(w, r)
	if !ok {
		return
	}
	app, err := s.workflow.StartStage(r.Context(), id, stage, actor)
	s.respond(w, r, app, err)
}

func (s *Server) handleUpdateStageStatus(w http.ResponseWriter, r *http.Request, actor *types.User) {
	id, stage, ok := s.stageRef(w, r)
	if !ok {
		return
	}
	var req types.StageStatusRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	if err := req.Validate(); err != nil {
		s.errorResponse(w, http.StatusBadRequest, "status is required")
		return
	}
	app, err := s.workflow.UpdateStageStatus(r.Context(), id, stage, actor, req.Status)
	s.respond(w, r, app, err)
}

func (s *Server) handleForwardToHR(w http.ResponseWriter, r *http.Request, actor *types.User) {
	id, stage, ok := s.stageRef(w, r)
	if !ok {
		return
	}
	app, err := s.workflow.ForwardStageToHR(r.Context(), id, stage, actor)
	s.respond(w, r, app, err)
}

func (s *Server) handleApprove(w http.ResponseWriter, r *http.Request, actor *types.User) {
	id, stage, ok := s.stageRef(w, r)
	if !ok {
		return
	}
	app, err := s.workflow.ApproveStageByHR(r.Context(), id, stage, actor)
	s.respond(w, r, app, err)
}

func (s *Server) handleReject(w http.ResponseWriter, r *http.Request, actor *types.User) {
	id, stage, ok := s.stageRef(w, r)
	if !ok {
		return
	}
	var req types.RejectStageRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	app, err := s.workflow.RejectStageByHR(r.Context(), id, stage, actor, req.Reason)
	s.respond(w, r, app, err)
}

// handleStatistics accepts optional start_date and end_date (YYYY-MM-DD,
// UTC). The end date includes the whole day.
func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request, actor *types.User) {
	var filter types.StatisticsFilter
	q := r.URL.Query()

	if v := q.Get("start_date"); v != "" {
		start, err := time.Parse(dateLayout, v)
		if err != nil {
			s.errorResponse(w, http.StatusBadRequest, "Invalid start_date, expected YYYY-MM-DD")
			return
		}
		filter.Start = &start
	}
	if v := q.Get("end_date"); v != "" {
		day, err := time.Parse(dateLayout, v)
		if err != nil {
			s.errorResponse(w, http.StatusBadRequest, "Invalid end_date, expected YYYY-MM-DD")
			return
		}
		end := day.Add(24*time.Hour - time.Nanosecond)
		filter.End = &end
	}

	stats, err := s.workflow.FeedbackStatistics(r.Context(), actor, filter)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, stats)
}

// handleTemplates returns the templates flat and grouped by category.
func (s *Server) handleTemplates(w http.ResponseWriter, _ *http.Request, _ *types.User) {
	s.jsonResponse(w, http.StatusOK, map[string]any{
		"templates":  s.templates.All(),
		"categories": s.templates.Grouped(),
	})
}
