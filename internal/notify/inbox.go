package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/hiring-workflow/internal/types"
	"github.com/jonathan/hiring-workflow/internal/workflow"
)

// DefaultListLimit is the page size when the caller does not give one.
const DefaultListLimit = 50

const maxListLimit = 200

// Inbox is the recipient-facing view of notifications.
type Inbox struct {
	store Store
	now   func() time.Time
}

// NewInbox creates an inbox over store.
func NewInbox(store Store) *Inbox {
	return &Inbox{store: store, now: time.Now}
}

// List returns the user's notifications, newest first.
func (i *Inbox) List(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]types.Notification, error) {
	if limit < 0 || limit > maxListLimit {
		return nil, &workflow.ValidationError{Field: "limit", Message: fmt.Sprintf("must be between 1 and %d", maxListLimit)}
	}
	if limit == 0 {
		limit = DefaultListLimit
	}
	list, err := i.store.ListNotifications(ctx, userID, unreadOnly, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return list, nil
}

// UnreadCount returns how many notifications the user has not read.
func (i *Inbox) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	n, err := i.store.CountUnread(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to count notifications: %w", err)
	}
	return n, nil
}

// MarkRead marks one of the user's notifications read.
func (i *Inbox) MarkRead(ctx context.Context, id, userID uuid.UUID) error {
	ok, err := i.store.MarkNotificationRead(ctx, id, userID, i.now())
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	if !ok {
		return &workflow.NotFoundError{Resource: "notification", ID: id.String()}
	}
	return nil
}

// MarkAllRead marks all of the user's notifications read and returns how many changed.
func (i *Inbox) MarkAllRead(ctx context.Context, userID uuid.UUID) (int, error) {
	n, err := i.store.MarkAllNotificationsRead(ctx, userID, i.now())
	if err != nil {
		return 0, fmt.Errorf("failed to mark notifications read: %w", err)
	}
	return n, nil
}
