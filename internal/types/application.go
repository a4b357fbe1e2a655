package types

import (
	"time"

	"github.com/google/uuid"
)

// Application is the current-state projection of one job application.
type Application struct {
	ID           uuid.UUID         `json:"id"`
	CandidateID  uuid.UUID         `json:"candidate_id"`
	JobID        uuid.UUID         `json:"job_id"`
	ResumeFile   string            `json:"resume_file,omitempty"`
	CurrentStage int               `json:"current_stage"`
	Status       ApplicationStatus `json:"status"`
	Stages       []StageState      `json:"stages"`
	CreatedAt    time.Time         `json:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at"`
}

// StageState is the mutable state of one stage inside an application.
type StageState struct {
	Number          int            `json:"stage_number"`
	Name            string         `json:"stage_name"`
	Status          StageStatus    `json:"status"`
	AssignedTo      *uuid.UUID     `json:"assigned_to,omitempty"`
	Deadline        *time.Time     `json:"deadline,omitempty"`
	Feedback        *StageFeedback `json:"feedback,omitempty"`
	RejectionReason string         `json:"rejection_reason,omitempty"`
}

// NewApplication returns an application at stage 1 with every stage pending.
func NewApplication(id, candidateID, jobID uuid.UUID, resumeFile string, now time.Time) *Application {
	app := &Application{
		ID:           id,
		CandidateID:  candidateID,
		JobID:        jobID,
		ResumeFile:   resumeFile,
		CurrentStage: 1,
		Status:       ApplicationStatusPending,
		Stages:       make([]StageState, StageCount),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	for i := range app.Stages {
		app.Stages[i] = StageState{
			Number: i + 1,
			Name:   StageName(i + 1),
			Status: StageStatusPending,
		}
	}
	return app
}

// Stage returns the state of stage n, or nil when n is out of range.
func (a *Application) Stage(n int) *StageState {
	if !ValidStage(n) || len(a.Stages) < n {
		return nil
	}
	return &a.Stages[n-1]
}

// Clone returns a deep copy of the application.
func (a *Application) Clone() *Application {
	if a == nil {
		return nil
	}
	c := *a
	c.Stages = make([]StageState, len(a.Stages))
	for i, s := range a.Stages {
		c.Stages[i] = s.clone()
	}
	return &c
}

func (s StageState) clone() StageState {
	c := s
	if s.AssignedTo != nil {
		id := *s.AssignedTo
		c.AssignedTo = &id
	}
	if s.Deadline != nil {
		d := *s.Deadline
		c.Deadline = &d
	}
	if s.Feedback != nil {
		fb := s.Feedback.Clone()
		c.Feedback = &fb
	}
	return c
}

// StageOverview summarizes every stage of an application.
type StageOverview struct {
	ApplicationID uuid.UUID           `json:"application_id"`
	CurrentStage  int                 `json:"current_stage"`
	OverallStatus ApplicationStatus   `json:"overall_status"`
	TotalStages   int                 `json:"total_stages"`
	Stages        []StageOverviewItem `json:"stages"`
}

// StageOverviewItem is one row of a StageOverview.
type StageOverviewItem struct {
	StageNumber  int         `json:"stage_number"`
	StageName    string      `json:"stage_name"`
	Status       StageStatus `json:"status"`
	AssignedTo   *uuid.UUID  `json:"assigned_to,omitempty"`
	AssigneeName string      `json:"assignee_name,omitempty"`
	Deadline     *time.Time  `json:"deadline,omitempty"`
	HasFeedback  bool        `json:"has_feedback"`
}
