// Package notify delivers workflow notifications to evaluators' inboxes and
// warns assignees about approaching stage deadlines.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/hiring-workflow/internal/types"
	"github.com/jonathan/hiring-workflow/internal/workflow"
)

// Store persists notifications.
type Store interface {
	CreateNotification(ctx context.Context, n *types.Notification) error
	ListNotifications(ctx context.Context, userID uuid.UUID, unreadOnly bool, limit int) ([]types.Notification, error)
	CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
	// MarkNotificationRead reports false when no notification with id belongs to userID.
	MarkNotificationRead(ctx context.Context, id, userID uuid.UUID, at time.Time) (bool, error)
	MarkAllNotificationsRead(ctx context.Context, userID uuid.UUID, at time.Time) (int, error)
	// LastDeadlineWarning returns nil when no warning exists for the stage.
	LastDeadlineWarning(ctx context.Context, appID uuid.UUID, stage int) (*time.Time, error)
}

// Dispatcher writes notifications for workflow events. Delivery is best
// effort: failures are logged and never returned to the caller.
type Dispatcher struct {
	store  Store
	dir    workflow.Directory
	logger *slog.Logger
	now    func() time.Time
}

// NewDispatcher creates a dispatcher.
func NewDispatcher(store Store, dir workflow.Directory, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{store: store, dir: dir, logger: logger, now: time.Now}
}

// Assigned implements workflow.Notifier.
func (d *Dispatcher) Assigned(ctx context.Context, n workflow.Notice) {
	if len(n.Stages) == 0 {
		return
	}
	stage := n.Stages[0]
	candidate, job := d.subject(ctx, n.Application)
	name := types.StageName(stage)
	d.send(ctx, &types.Notification{
		UserID:        n.Assignee,
		Type:          types.NotificationAssignment,
		Title:         fmt.Sprintf("New Stage Assignment: %s", name),
		Message:       fmt.Sprintf("%s assigned you to %s for %s (%s)", actorName(n.Actor), name, candidate, job),
		ApplicationID: n.Application.ID,
		StageNumber:   stage,
	})
}

// BulkAssigned implements workflow.Notifier.
func (d *Dispatcher) BulkAssigned(ctx context.Context, n workflow.Notice) {
	if len(n.Stages) == 0 {
		return
	}
	candidate, job := d.subject(ctx, n.Application)
	names := make([]string, len(n.Stages))
	for i, s := range n.Stages {
		names[i] = types.StageName(s)
	}
	d.send(ctx, &types.Notification{
		UserID: n.Assignee,
		Type:   types.NotificationBulkAssignment,
		Title:  fmt.Sprintf("Bulk Assignment: %d Stages", len(n.Stages)),
		Message: fmt.Sprintf("%s assigned you to %d stages (%s) for %s (%s)",
			actorName(n.Actor), len(n.Stages), strings.Join(names, ", "), candidate, job),
		ApplicationID: n.Application.ID,
		StageNumber:   0,
	})
}

// Reassigned implements workflow.Notifier. Both the previous and the new
// assignee are told.
func (d *Dispatcher) Reassigned(ctx context.Context, n workflow.Notice) {
	if len(n.Stages) == 0 {
		return
	}
	stage := n.Stages[0]
	candidate, job := d.subject(ctx, n.Application)
	name := types.StageName(stage)
	by := actorName(n.Actor)

	d.send(ctx, &types.Notification{
		UserID: n.Previous,
		Type:   types.NotificationReassignment,
		Title:  fmt.Sprintf("Stage Reassigned: %s", name),
		Message: fmt.Sprintf("%s reassigned %s for %s (%s) to another team member. Reason: %s",
			by, name, candidate, job, n.Reason),
		ApplicationID: n.Application.ID,
		StageNumber:   stage,
	})
	d.send(ctx, &types.Notification{
		UserID: n.Assignee,
		Type:   types.NotificationReassignment,
		Title:  fmt.Sprintf("New Stage Assignment: %s", name),
		Message: fmt.Sprintf("%s assigned you to %s for %s (%s) (reassigned). Reason: %s",
			by, name, candidate, job, n.Reason),
		ApplicationID: n.Application.ID,
		StageNumber:   stage,
	})
}

// DeadlineWarning tells the assignee of e that its deadline is close.
func (d *Dispatcher) DeadlineWarning(ctx context.Context, e workflow.DeadlineEntry, now time.Time) error {
	candidate, job := d.names(ctx, e.CandidateID, e.JobID)
	name := types.StageName(e.Stage)
	hours := int(e.Deadline.Sub(now).Hours())
	n := &types.Notification{
		ID:            uuid.New(),
		UserID:        e.AssignedTo,
		Type:          types.NotificationDeadlineWarning,
		Title:         fmt.Sprintf("Deadline Approaching: %s", name),
		Message:       fmt.Sprintf("The deadline for %s for %s (%s) is in %d hours", name, candidate, job, hours),
		ApplicationID: e.ApplicationID,
		StageNumber:   e.Stage,
		CreatedAt:     now,
	}
	if err := d.store.CreateNotification(ctx, n); err != nil {
		return fmt.Errorf("failed to create deadline warning: %w", err)
	}
	return nil
}

func (d *Dispatcher) send(ctx context.Context, n *types.Notification) {
	n.ID = uuid.New()
	if n.CreatedAt.IsZero() {
		n.CreatedAt = d.now()
	}
	if err := d.store.CreateNotification(ctx, n); err != nil {
		d.logger.Error("notification dispatch failed",
			slog.String("application_id", n.ApplicationID.String()),
			slog.Int("stage", n.StageNumber),
			slog.String("recipient", n.UserID.String()),
			slog.String("type", string(n.Type)),
			slog.String("error", err.Error()))
	}
}

// subject resolves the candidate name and job title of an application.
func (d *Dispatcher) subject(ctx context.Context, app *types.Application) (string, string) {
	if app == nil {
		return types.UnknownUser, "Unknown Job"
	}
	return d.names(ctx, app.CandidateID, app.JobID)
}

func (d *Dispatcher) names(ctx context.Context, candidateID, jobID uuid.UUID) (string, string) {
	candidate, title := types.UnknownUser, "Unknown Job"
	if u, err := d.dir.GetUser(ctx, candidateID); err == nil && u != nil {
		candidate = u.Username
	}
	if j, err := d.dir.GetJob(ctx, jobID); err == nil && j != nil {
		title = j.Title
	}
	return candidate, title
}

func actorName(u *types.User) string {
	if u == nil || u.Username == "" {
		return "Someone"
	}
	return u.Username
}
