package server

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/jonathan/hiring-workflow/internal/workflow"
)

// HTTPStatus returns the HTTP status code for a workflow error.
func HTTPStatus(err error) int {
	var (
		notFound   *workflow.NotFoundError
		invalid    *workflow.InvalidStateError
		forbidden  *workflow.ForbiddenError
		validation *workflow.ValidationError
	)
	switch {
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.As(err, &invalid):
		return http.StatusConflict
	case errors.As(err, &forbidden):
		return http.StatusForbidden
	case errors.As(err, &validation):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// errorBody is the JSON error envelope.
type errorBody struct {
	Error     string                   `json:"error"`
	Conflicts []workflow.StageConflict `json:"conflicts,omitempty"`
}

// writeError maps err to a status and writes the error envelope. Internal
// errors are logged and replaced by a generic message.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := HTTPStatus(err)
	if status == http.StatusInternalServerError {
		s.logger.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("error", err))
		s.errorResponse(w, status, "internal server error")
		return
	}

	body := errorBody{Error: err.Error()}
	var invalid *workflow.InvalidStateError
	if errors.As(err, &invalid) {
		body.Conflicts = invalid.Conflicts
	}
	s.jsonResponse(w, status, body)
}
