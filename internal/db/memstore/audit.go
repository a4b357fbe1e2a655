package memstore

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/hiring-workflow/internal/types"
)

// AppendAssignment implements workflow.AuditTrail.
func (s *Store) AppendAssignment(_ context.Context, a *types.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec := *a
	if rec.ID == uuid.Nil {
		rec.ID = uuid.New()
	}
	s.assignments = append(s.assignments, rec)
	return nil
}

// UpdateAssignmentStatus implements workflow.AuditTrail.
func (s *Store) UpdateAssignmentStatus(_ context.Context, appID uuid.UUID, stage int, assignee uuid.UUID, status types.AssignmentStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := len(s.assignments) - 1; i >= 0; i-- {
		rec := &s.assignments[i]
		if rec.ApplicationID != appID || rec.StageNumber != stage || rec.AssignedTo != assignee {
			continue
		}
		if rec.Status == types.AssignmentStatusCompleted {
			continue
		}
		rec.Status = status
		if status == types.AssignmentStatusCompleted {
			t := at
			rec.CompletedAt = &t
		}
		return nil
	}
	return nil
}

// ListByApplication implements workflow.AuditTrail, oldest first.
func (s *Store) ListByApplication(_ context.Context, appID uuid.UUID) ([]types.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Assignment
	for _, rec := range s.assignments {
		if rec.ApplicationID == appID {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AssignedAt.Before(out[j].AssignedAt) })
	return out, nil
}

// ListByAssignee implements workflow.AuditTrail, newest first.
func (s *Store) ListByAssignee(_ context.Context, userID uuid.UUID) ([]types.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []types.Assignment
	for _, rec := range s.assignments {
		if rec.AssignedTo == userID {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].AssignedAt.After(out[j].AssignedAt) })
	return out, nil
}

// WasAssigned implements workflow.AuditTrail.
func (s *Store) WasAssigned(_ context.Context, appID uuid.UUID, stage int, userID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, rec := range s.assignments {
		if rec.ApplicationID == appID && rec.StageNumber == stage && rec.AssignedTo == userID {
			return true, nil
		}
	}
	return false, nil
}
