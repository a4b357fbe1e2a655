// Package memstore provides in-memory implementations of the workflow stores.
// It backs the server when no DATABASE_URL is configured and is used by tests.
// A single mutex stands in for the row-level atomicity of the SQL store: every
// conditional write checks its precondition and applies its effect while
// holding it.
package memstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/hiring-workflow/internal/types"
	"github.com/jonathan/hiring-workflow/internal/workflow"
)

// Store holds applications, audit records, directory entries and notifications.
type Store struct {
	mu            sync.Mutex
	apps          map[uuid.UUID]*types.Application
	assignments   []types.Assignment
	users         map[uuid.UUID]types.User
	jobs          map[uuid.UUID]types.Job
	notifications []types.Notification
}

// New returns an empty store.
func New() *Store {
	return &Store{
		apps:  make(map[uuid.UUID]*types.Application),
		users: make(map[uuid.UUID]types.User),
		jobs:  make(map[uuid.UUID]types.Job),
	}
}

// AddUser registers a user in the directory.
func (s *Store) AddUser(u types.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.ID] = u
}

// AddJob registers a job in the directory.
func (s *Store) AddJob(j types.Job) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[j.ID] = j
}

// CreateUser registers a user, failing when the id is taken.
func (s *Store) CreateUser(_ context.Context, u types.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[u.ID]; exists {
		return fmt.Errorf("user %s already exists", u.ID)
	}
	s.users[u.ID] = u
	return nil
}

// CreateJob registers a job, failing when the id is taken.
func (s *Store) CreateJob(_ context.Context, j types.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[j.ID]; exists {
		return fmt.Errorf("job %s already exists", j.ID)
	}
	s.jobs[j.ID] = j
	return nil
}

// CreateApplication stores a new application.
func (s *Store) CreateApplication(_ context.Context, app *types.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.apps[app.ID]; exists {
		return fmt.Errorf("application %s already exists", app.ID)
	}
	s.apps[app.ID] = app.Clone()
	return nil
}

// GetUser implements workflow.Directory.
func (s *Store) GetUser(_ context.Context, id uuid.UUID) (*types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

// ListUsers implements workflow.Directory.
func (s *Store) ListUsers(_ context.Context) ([]types.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]types.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Username != out[j].Username {
			return out[i].Username < out[j].Username
		}
		return out[i].ID.String() < out[j].ID.String()
	})
	return out, nil
}

// GetJob implements workflow.Directory.
func (s *Store) GetJob(_ context.Context, id uuid.UUID) (*types.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	j, ok := s.jobs[id]
	if !ok {
		return nil, nil
	}
	return &j, nil
}

// GetApplication implements workflow.Applications.
func (s *Store) GetApplication(_ context.Context, id uuid.UUID) (*types.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.apps[id].Clone(), nil
}

// mutateStage runs fn on the stored stage under the lock. fn returns whether
// the precondition held and it applied its change.
func (s *Store) mutateStage(appID uuid.UUID, stage int, at time.Time, fn func(app *types.Application, st *types.StageState) bool) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	app, ok := s.apps[appID]
	if !ok {
		return false
	}
	st := app.Stage(stage)
	if st == nil || terminal(app) {
		return false
	}
	if !fn(app, st) {
		return false
	}
	app.UpdatedAt = at
	return true
}

func assignedTo(st *types.StageState, user *uuid.UUID) bool {
	if user == nil {
		return true
	}
	return st.AssignedTo != nil && *st.AssignedTo == *user
}

func terminal(app *types.Application) bool {
	return app.Status == types.ApplicationStatusRejected || app.Status == types.ApplicationStatusCompleted
}

// AssignStage implements workflow.Applications.
func (s *Store) AssignStage(_ context.Context, w workflow.StageAssignment) (bool, error) {
	return s.mutateStage(w.ApplicationID, w.Stage, w.At, func(app *types.Application, st *types.StageState) bool {
		if st.Status != types.StageStatusPending || st.AssignedTo != nil {
			return false
		}
		assignee := w.Assignee
		st.AssignedTo = &assignee
		st.Status = types.StageStatusAssigned
		if w.Deadline != nil {
			d := *w.Deadline
			st.Deadline = &d
		}
		if app.Status == types.ApplicationStatusPending {
			app.Status = types.ApplicationStatusInProgress
		}
		return true
	}), nil
}

// ReassignStage implements workflow.Applications.
func (s *Store) ReassignStage(_ context.Context, w workflow.StageReassignment) (bool, error) {
	return s.mutateStage(w.ApplicationID, w.Stage, w.At, func(_ *types.Application, st *types.StageState) bool {
		if !st.Status.Reassignable() || !assignedTo(st, &w.From) {
			return false
		}
		to := w.To
		st.AssignedTo = &to
		st.Status = types.StageStatusAssigned
		return true
	}), nil
}

// PutFeedback implements workflow.Applications.
func (s *Store) PutFeedback(_ context.Context, w workflow.FeedbackWrite) (bool, error) {
	return s.mutateStage(w.ApplicationID, w.Stage, w.At, func(_ *types.Application, st *types.StageState) bool {
		if !st.Status.AcceptsFeedback() || !assignedTo(st, w.Assignee) {
			return false
		}
		if w.PrevEditCount < 0 {
			if st.Feedback != nil {
				return false
			}
		} else if st.Feedback == nil || st.Feedback.EditCount != w.PrevEditCount {
			return false
		}
		fb := w.Feedback.Clone()
		st.Feedback = &fb
		st.Status = types.StageStatusCompleted
		return true
	}), nil
}

// SetStageStatus implements workflow.Applications.
func (s *Store) SetStageStatus(_ context.Context, w workflow.StatusChange) (bool, error) {
	return s.mutateStage(w.ApplicationID, w.Stage, w.At, func(app *types.Application, st *types.StageState) bool {
		if st.Status != w.From || !assignedTo(st, w.Assignee) || (w.Current && app.CurrentStage != w.Stage) {
			return false
		}
		st.Status = w.To
		return true
	}), nil
}

// ApproveStage implements workflow.Applications.
func (s *Store) ApproveStage(_ context.Context, appID uuid.UUID, stage int, at time.Time) (bool, error) {
	return s.mutateStage(appID, stage, at, func(app *types.Application, st *types.StageState) bool {
		if st.Status != types.StageStatusForwarded || app.CurrentStage != stage {
			return false
		}
		st.Status = types.StageStatusApproved
		if stage < types.StageCount {
			app.CurrentStage = stage + 1
		} else {
			app.Status = types.ApplicationStatusCompleted
		}
		return true
	}), nil
}

// RejectStage implements workflow.Applications.
func (s *Store) RejectStage(_ context.Context, appID uuid.UUID, stage int, reason string, at time.Time) (bool, error) {
	return s.mutateStage(appID, stage, at, func(app *types.Application, st *types.StageState) bool {
		if st.Status != types.StageStatusForwarded || app.CurrentStage != stage {
			return false
		}
		st.Status = types.StageStatusRejected
		st.RejectionReason = reason
		app.Status = types.ApplicationStatusRejected
		return true
	}), nil
}

// AdvanceStage implements workflow.Applications.
func (s *Store) AdvanceStage(_ context.Context, appID uuid.UUID, from int, at time.Time) (bool, error) {
	return s.mutateStage(appID, from, at, func(app *types.Application, st *types.StageState) bool {
		if app.CurrentStage != from || from >= types.StageCount || st.Status != types.StageStatusCompleted {
			return false
		}
		app.CurrentStage = from + 1
		return true
	}), nil
}

// ScanFeedback implements workflow.Applications.
func (s *Store) ScanFeedback(ctx context.Context, fn func(workflow.FeedbackEntry) error) error {
	s.mu.Lock()
	var entries []workflow.FeedbackEntry
	for _, app := range s.apps {
		for _, st := range app.Stages {
			if st.Feedback == nil {
				continue
			}
			raw, err := json.Marshal(st.Feedback)
			if err != nil {
				s.mu.Unlock()
				return fmt.Errorf("failed to encode feedback: %w", err)
			}
			entries = append(entries, workflow.FeedbackEntry{ApplicationID: app.ID, Stage: st.Number, Raw: raw})
		}
	}
	s.mu.Unlock()

	for _, e := range entries {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

// ListDeadlines implements workflow.Applications.
func (s *Store) ListDeadlines(_ context.Context, from, to time.Time) ([]workflow.DeadlineEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []workflow.DeadlineEntry
	for _, app := range s.apps {
		for _, st := range app.Stages {
			if st.Status != types.StageStatusAssigned && st.Status != types.StageStatusInProgress {
				continue
			}
			if st.AssignedTo == nil || st.Deadline == nil {
				continue
			}
			if st.Deadline.Before(from) || st.Deadline.After(to) {
				continue
			}
			out = append(out, workflow.DeadlineEntry{
				ApplicationID: app.ID,
				CandidateID:   app.CandidateID,
				JobID:         app.JobID,
				Stage:         st.Number,
				AssignedTo:    *st.AssignedTo,
				Deadline:      *st.Deadline,
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Deadline.Before(out[j].Deadline) })
	return out, nil
}
