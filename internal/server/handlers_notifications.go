package server

import (
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"github.com/jonathan/hiring-workflow/internal/types"
)

func (s *Server) handleListNotifications(w http.ResponseWriter, r *http.Request, actor *types.User) {
	q := r.URL.Query()

	unreadOnly := false
	if v := q.Get("unread_only"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.errorResponse(w, http.StatusBadRequest, "Invalid unread_only")
			return
		}
		unreadOnly = b
	}
	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			s.errorResponse(w, http.StatusBadRequest, "Invalid limit")
			return
		}
		limit = n
	}

	items, err := s.inbox.List(r.Context(), actor.ID, unreadOnly, limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]any{"notifications": items, "total": len(items)})
}

func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request, actor *types.User) {
	n, err := s.inbox.UnreadCount(r.Context(), actor.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]int{"unread_count": n})
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request, actor *types.User) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		s.errorResponse(w, http.StatusBadRequest, "Invalid notification ID")
		return
	}
	if err := s.inbox.MarkRead(r.Context(), id, actor.ID); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]string{"status": "read"})
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request, actor *types.User) {
	n, err := s.inbox.MarkAllRead(r.Context(), actor.ID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	s.jsonResponse(w, http.StatusOK, map[string]int{"marked_read": n})
}
