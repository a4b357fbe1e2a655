package workflow

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// NotFoundError indicates an application, user, feedback or notification is absent.
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	if e.ID == "" {
		return fmt.Sprintf("%s not found", e.Resource)
	}
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

// InvalidStateError indicates the stage or assignment is not in the status the
// operation requires.
type InvalidStateError struct {
	Reason    string
	Conflicts []StageConflict
}

// StageConflict names a stage whose current status blocked an operation.
type StageConflict struct {
	StageNumber int    `json:"stage_number"`
	StageName   string `json:"stage_name"`
	Status      string `json:"status"`
}

func (e *InvalidStateError) Error() string {
	return e.Reason
}

// ForbiddenError indicates a role or ownership mismatch.
type ForbiddenError struct {
	Reason string
}

func (e *ForbiddenError) Error() string {
	return e.Reason
}

// ValidationError indicates malformed input.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsNotFound reports whether err is or wraps a *NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsInvalidState reports whether err is or wraps an *InvalidStateError.
func IsInvalidState(err error) bool {
	var target *InvalidStateError
	return errors.As(err, &target)
}

// IsForbidden reports whether err is or wraps a *ForbiddenError.
func IsForbidden(err error) bool {
	var target *ForbiddenError
	return errors.As(err, &target)
}

// IsValidation reports whether err is or wraps a *ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

func applicationNotFound(id uuid.UUID) error {
	return &NotFoundError{Resource: "application", ID: id.String()}
}

func userNotFound(id uuid.UUID) error {
	return &NotFoundError{Resource: "user", ID: id.String()}
}

func invalidStage(n int) error {
	return &ValidationError{Field: "stage_number", Message: fmt.Sprintf("stage number must be between 1 and 7, got %d", n)}
}
