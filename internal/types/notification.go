package types

import (
	"time"

	"github.com/google/uuid"
)

// NotificationType classifies an inbox message.
type NotificationType string

// NotificationType constants
const (
	NotificationAssignment      NotificationType = "assignment"
	NotificationReassignment    NotificationType = "reassignment"
	NotificationBulkAssignment  NotificationType = "bulk_assignment"
	NotificationDeadlineWarning NotificationType = "deadline_warning"
)

// Notification is a message in an evaluator's inbox.
type Notification struct {
	ID            uuid.UUID        `json:"id"`
	UserID        uuid.UUID        `json:"user_id"`
	Type          NotificationType `json:"type"`
	Title         string           `json:"title"`
	Message       string           `json:"message"`
	ApplicationID uuid.UUID        `json:"application_id"`
	StageNumber   int              `json:"stage_number"`
	IsRead        bool             `json:"is_read"`
	CreatedAt     time.Time        `json:"created_at"`
	ReadAt        *time.Time       `json:"read_at,omitempty"`
}
