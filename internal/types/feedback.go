package types

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
)

// ApprovalStatus is an evaluator's verdict on a stage.
type ApprovalStatus string

// ApprovalStatus constants
const (
	ApprovalApproved ApprovalStatus = "Approved"
	ApprovalRejected ApprovalStatus = "Rejected"
)

// StageFeedback is the evaluation stored on a stage.
type StageFeedback struct {
	ApprovalStatus    ApprovalStatus `json:"approval_status"`
	PerformanceRating int            `json:"performance_rating"`
	Comments          string         `json:"comments"`
	SubmittedBy       uuid.UUID      `json:"submitted_by"`
	SubmittedAt       time.Time      `json:"submitted_at"`
	EditedAt          *time.Time     `json:"edited_at,omitempty"`
	EditedBy          *uuid.UUID     `json:"edited_by,omitempty"`
	EditCount         int            `json:"edit_count"`
}

// Clone returns a deep copy of the feedback.
func (f StageFeedback) Clone() StageFeedback {
	c := f
	if f.EditedAt != nil {
		t := *f.EditedAt
		c.EditedAt = &t
	}
	if f.EditedBy != nil {
		id := *f.EditedBy
		c.EditedBy = &id
	}
	return c
}

// FeedbackSubmission is the payload an evaluator sends for a stage.
type FeedbackSubmission struct {
	ApprovalStatus    ApprovalStatus `json:"approval_status" validate:"required,oneof=Approved Rejected"`
	PerformanceRating int            `json:"performance_rating" validate:"required,min=1,max=10"`
	Comments          string         `json:"comments" validate:"required,min=1,max=1000"`
}

// Validate validates the submission using struct tags.
func (r *FeedbackSubmission) Validate() error {
	validate := validator.New()
	return validate.Struct(r)
}

// FeedbackView is feedback as returned to a viewer, with submitter identity
// and the viewer's edit permission attached.
type FeedbackView struct {
	StageFeedback
	StageNumber    int    `json:"stage_number"`
	StageName      string `json:"stage_name"`
	SubmitterName  string `json:"submitter_name"`
	SubmitterEmail string `json:"submitter_email,omitempty"`
	CanEdit        bool   `json:"can_edit"`
	ReadOnly       bool   `json:"read_only"`
}

// FeedbackTemplate is a canned comment an evaluator may start from.
type FeedbackTemplate struct {
	ID           string `json:"id" yaml:"id"`
	Name         string `json:"name" yaml:"name"`
	Category     string `json:"category_key" yaml:"category"`
	CategoryName string `json:"category_name" yaml:"-"`
	Content      string `json:"content" yaml:"content"`
}
