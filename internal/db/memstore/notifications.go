package memstore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/hiring-workflow/internal/types"
)

// CreateNotification stores a notification.
func (s *Store) CreateNotification(_ context.Context, n *types.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	s.notifications = append(s.notifications, *n)
	return nil
}

// ListNotifications returns a user's notifications, newest first.
func (s *Store) ListNotifications(_ context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]types.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []types.Notification{}
	for i := len(s.notifications) - 1; i >= 0; i-- {
		n := s.notifications[i]
		if n.UserID != userID || (unreadOnly && n.IsRead) {
			continue
		}
		out = append(out, n)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// CountUnread returns the number of unread notifications for a user.
func (s *Store) CountUnread(_ context.Context, userID uuid.UUID) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for _, n := range s.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

// MarkNotificationRead marks one of the user's notifications read. It reports
// false when the notification does not exist or belongs to someone else.
func (s *Store) MarkNotificationRead(_ context.Context, id, userID uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.notifications {
		n := &s.notifications[i]
		if n.ID != id || n.UserID != userID {
			continue
		}
		if !n.IsRead {
			t := at
			n.IsRead = true
			n.ReadAt = &t
		}
		return true, nil
	}
	return false, nil
}

// MarkAllNotificationsRead marks every unread notification of the user read.
func (s *Store) MarkAllNotificationsRead(_ context.Context, userID uuid.UUID, at time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	count := 0
	for i := range s.notifications {
		n := &s.notifications[i]
		if n.UserID == userID && !n.IsRead {
			t := at
			n.IsRead = true
			n.ReadAt = &t
			count++
		}
	}
	return count, nil
}

// LastDeadlineWarning returns when the newest deadline warning for the stage
// was created, or nil.
func (s *Store) LastDeadlineWarning(_ context.Context, appID uuid.UUID, stage int) (*time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var last *time.Time
	for _, n := range s.notifications {
		if n.Type != types.NotificationDeadlineWarning || n.ApplicationID != appID || n.StageNumber != stage {
			continue
		}
		if last == nil || n.CreatedAt.After(*last) {
			t := n.CreatedAt
			last = &t
		}
	}
	return last, nil
}
