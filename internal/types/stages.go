package types

import "fmt"

// StageCount is the number of evaluation stages every application passes through.
const StageCount = 7

// StageStatus is the lifecycle state of a single stage.
type StageStatus string

// StageStatus constants
const (
	StageStatusPending    StageStatus = "pending"
	StageStatusAssigned   StageStatus = "assigned"
	StageStatusInProgress StageStatus = "in_progress"
	StageStatusCompleted  StageStatus = "completed"
	StageStatusForwarded  StageStatus = "forwarded"
	StageStatusApproved   StageStatus = "approved"
	StageStatusRejected   StageStatus = "rejected"
)

// Valid reports whether s is a known stage status.
func (s StageStatus) Valid() bool {
	switch s {
	case StageStatusPending, StageStatusAssigned, StageStatusInProgress, StageStatusCompleted,
		StageStatusForwarded, StageStatusApproved, StageStatusRejected:
		return true
	}
	return false
}

// AcceptsFeedback reports whether feedback may be written while a stage is in status s.
// Once a stage has been forwarded for a decision its feedback is locked.
func (s StageStatus) AcceptsFeedback() bool {
	switch s {
	case StageStatusPending, StageStatusAssigned, StageStatusInProgress, StageStatusCompleted:
		return true
	}
	return false
}

// Reassignable reports whether the assignee of a stage in status s may be replaced.
func (s StageStatus) Reassignable() bool {
	return s == StageStatusAssigned || s == StageStatusInProgress
}

// ApplicationStatus is the overall state of an application.
type ApplicationStatus string

// ApplicationStatus constants
const (
	ApplicationStatusPending    ApplicationStatus = "pending"
	ApplicationStatusInProgress ApplicationStatus = "in_progress"
	ApplicationStatusRejected   ApplicationStatus = "rejected"
	ApplicationStatusCompleted  ApplicationStatus = "completed"
)

var stageNames = [StageCount]string{
	"Resume Screening",
	"HR Telephonic Interview",
	"Practical Lab Test",
	"Technical Interview",
	"BU Lead Round",
	"HR Head Round",
	"CEO Round",
}

// ValidStage reports whether n is a stage number in [1, StageCount].
func ValidStage(n int) bool {
	return n >= 1 && n <= StageCount
}

// StageName returns the display name of stage n.
func StageName(n int) string {
	if !ValidStage(n) {
		return fmt.Sprintf("Stage %d", n)
	}
	return stageNames[n-1]
}
