package workflow

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/hiring-workflow/internal/types"
)

// Applications is the application record store. Every mutating method applies
// its precondition and its effect as one conditional write and reports whether
// the write matched. A false result with a nil error means the precondition did
// not hold at write time. No mutator matches a rejected or completed
// application.
type Applications interface {
	// GetApplication returns nil, nil when the application does not exist.
	GetApplication(ctx context.Context, id uuid.UUID) (*types.Application, error)

	// AssignStage requires the stage to be pending with no assignee.
	AssignStage(ctx context.Context, w StageAssignment) (bool, error)
	// ReassignStage requires the stage to be assigned to w.From and reassignable.
	ReassignStage(ctx context.Context, w StageReassignment) (bool, error)
	// PutFeedback requires the stage to accept feedback and the stored edit
	// count to equal w.PrevEditCount (no feedback when negative).
	PutFeedback(ctx context.Context, w FeedbackWrite) (bool, error)
	// SetStageStatus requires the stage status to equal w.From.
	SetStageStatus(ctx context.Context, w StatusChange) (bool, error)
	// ApproveStage requires a forwarded stage equal to the current stage of an
	// application that is neither rejected nor completed.
	ApproveStage(ctx context.Context, appID uuid.UUID, stage int, at time.Time) (bool, error)
	// RejectStage requires a forwarded stage equal to the current stage.
	RejectStage(ctx context.Context, appID uuid.UUID, stage int, reason string, at time.Time) (bool, error)
	// AdvanceStage requires current_stage == from, from < StageCount and stage
	// from to be completed.
	AdvanceStage(ctx context.Context, appID uuid.UUID, from int, at time.Time) (bool, error)

	// ScanFeedback calls fn for every stored stage feedback document.
	ScanFeedback(ctx context.Context, fn func(FeedbackEntry) error) error
	// ListDeadlines returns assigned or in-progress stages whose deadline is in [from, to].
	ListDeadlines(ctx context.Context, from, to time.Time) ([]DeadlineEntry, error)
}

// AuditTrail is the append-only assignment history.
type AuditTrail interface {
	AppendAssignment(ctx context.Context, a *types.Assignment) error
	// UpdateAssignmentStatus moves the newest open record of assignee on the
	// stage to status, stamping completed_at when status is completed.
	UpdateAssignmentStatus(ctx context.Context, appID uuid.UUID, stage int, assignee uuid.UUID, status types.AssignmentStatus, at time.Time) error
	ListByApplication(ctx context.Context, appID uuid.UUID) ([]types.Assignment, error)
	ListByAssignee(ctx context.Context, userID uuid.UUID) ([]types.Assignment, error)
	WasAssigned(ctx context.Context, appID uuid.UUID, stage int, userID uuid.UUID) (bool, error)
}

// Directory resolves identities and job display data. Both methods return
// nil, nil for unknown ids.
type Directory interface {
	GetUser(ctx context.Context, id uuid.UUID) (*types.User, error)
	GetJob(ctx context.Context, id uuid.UUID) (*types.Job, error)
	// ListUsers returns every user ordered by username.
	ListUsers(ctx context.Context) ([]types.User, error)
}

// Notifier receives assignment events. Implementations must not fail the caller.
type Notifier interface {
	Assigned(ctx context.Context, n Notice)
	BulkAssigned(ctx context.Context, n Notice)
	Reassigned(ctx context.Context, n Notice)
}

// Notice describes an assignment event for the notifier.
type Notice struct {
	Application *types.Application
	Stages      []int
	Assignee    uuid.UUID
	Previous    uuid.UUID
	Actor       *types.User
	Reason      string
}

// StageAssignment is the write for assigning a pending stage.
type StageAssignment struct {
	ApplicationID uuid.UUID
	Stage         int
	Assignee      uuid.UUID
	Deadline      *time.Time
	At            time.Time
}

// StageReassignment is the write for replacing a stage's assignee.
type StageReassignment struct {
	ApplicationID uuid.UUID
	Stage         int
	From          uuid.UUID
	To            uuid.UUID
	At            time.Time
}

// FeedbackWrite stores feedback and marks the stage completed.
type FeedbackWrite struct {
	ApplicationID uuid.UUID
	Stage         int
	Feedback      types.StageFeedback
	PrevEditCount int
	// Assignee, when set, must be the stage's current assignee.
	Assignee *uuid.UUID
	At       time.Time
}

// StatusChange moves a stage between two statuses.
type StatusChange struct {
	ApplicationID uuid.UUID
	Stage         int
	From          types.StageStatus
	To            types.StageStatus
	// Assignee, when set, must be the stage's current assignee.
	Assignee *uuid.UUID
	// Current requires Stage to be the application's current stage.
	Current bool
	At      time.Time
}

// FeedbackEntry is one raw stored feedback document.
type FeedbackEntry struct {
	ApplicationID uuid.UUID
	Stage         int
	Raw           []byte
}

// DeadlineEntry is an active stage with a deadline.
type DeadlineEntry struct {
	ApplicationID uuid.UUID
	CandidateID   uuid.UUID
	JobID         uuid.UUID
	Stage         int
	AssignedTo    uuid.UUID
	Deadline      time.Time
}
