package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// AssignmentStatus is the state of an audit trail record.
type AssignmentStatus string

// AssignmentStatus constants
const (
	AssignmentStatusAssigned   AssignmentStatus = "assigned"
	AssignmentStatusInProgress AssignmentStatus = "in_progress"
	AssignmentStatusCompleted  AssignmentStatus = "completed"
)

// Assignment is one append-only audit record of an assignment or reassignment.
type Assignment struct {
	ID                 uuid.UUID        `json:"id"`
	ApplicationID      uuid.UUID        `json:"application_id"`
	StageNumber        int              `json:"stage_number"`
	AssignedTo         uuid.UUID        `json:"assigned_to"`
	AssignedBy         uuid.UUID        `json:"assigned_by"`
	AssignedAt         time.Time        `json:"assigned_at"`
	Status             AssignmentStatus `json:"status"`
	Deadline           *time.Time       `json:"deadline,omitempty"`
	Notes              string           `json:"notes,omitempty"`
	ReassignedFrom     *uuid.UUID       `json:"reassigned_from,omitempty"`
	ReassignmentReason string           `json:"reassignment_reason,omitempty"`
	CompletedAt        *time.Time       `json:"completed_at,omitempty"`
}

// AssignStageRequest is the payload for assigning one stage.
type AssignStageRequest struct {
	AssignedTo uuid.UUID  `json:"assigned_to" validate:"required"`
	Deadline   *time.Time `json:"deadline,omitempty"`
	Notes      string     `json:"notes,omitempty" validate:"max=500"`
}

// Validate validates the request using struct tags.
func (r *AssignStageRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// ReassignStageRequest is the payload for moving a stage to another evaluator.
type ReassignStageRequest struct {
	NewAssignedTo uuid.UUID `json:"new_assigned_to" validate:"required"`
	Reason        string    `json:"reason" validate:"required,min=1,max=500"`
}

// Validate validates the request using struct tags.
func (r *ReassignStageRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// BulkAssignRequest is the payload for assigning several stages to one evaluator.
type BulkAssignRequest struct {
	StageNumbers []int      `json:"stage_numbers"`
	AssignedTo   uuid.UUID  `json:"assigned_to" validate:"required"`
	Deadline     *time.Time `json:"deadline,omitempty"`
	Notes        string     `json:"notes,omitempty" validate:"max=500"`
}

// Validate validates the request using struct tags. Stage numbers are checked
// by the workflow so the caller gets a specific reason.
func (r *BulkAssignRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// StageRef names a stage in a bulk result.
type StageRef struct {
	StageNumber int    `json:"stage_number"`
	StageName   string `json:"stage_name"`
	Error       string `json:"error,omitempty"`
}

// BulkAssignResult reports the per-stage outcome of a bulk assignment.
type BulkAssignResult struct {
	SuccessCount          int          `json:"success_count"`
	FailedCount           int          `json:"failed_count"`
	TotalRequested        int          `json:"total_requested"`
	SuccessfulAssignments []StageRef   `json:"successful_assignments"`
	FailedAssignments     []StageRef   `json:"failed_assignments"`
	Application           *Application `json:"application"`
}

// AssignmentView is an audit record joined with display data.
type AssignmentView struct {
	Assignment
	StageName          string          `json:"stage_name"`
	CandidateID        uuid.UUID       `json:"candidate_id"`
	CandidateName      string          `json:"candidate_name,omitempty"`
	JobID              uuid.UUID       `json:"job_id"`
	JobTitle           string          `json:"job_title,omitempty"`
	AssigneeName       string          `json:"assignee_name,omitempty"`
	AssignerName       string          `json:"assigner_name,omitempty"`
	ReassignedFromName string          `json:"reassigned_from_name,omitempty"`
	CurrentStage       int             `json:"current_stage"`
	StageStatus        StageStatus     `json:"stage_status"`
	FeedbackSubmitted  *time.Time      `json:"feedback_submitted_at,omitempty"`
	ApprovalStatus     *ApprovalStatus `json:"approval_status,omitempty"`
	PerformanceRating  *int            `json:"performance_rating,omitempty"`
}

// StageStatusRequest is the payload for an assignee moving their stage forward.
type StageStatusRequest struct {
	Status StageStatus `json:"status" validate:"required"`
}

// Validate validates the request using struct tags.
func (r *StageStatusRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// RejectStageRequest is the payload for rejecting a forwarded stage.
type RejectStageRequest struct {
	Reason string `json:"reason" validate:"required,min=1,max=500"`
}

// Validate validates the request using struct tags.
func (r *RejectStageRequest) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}
