package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/jonathan/hiring-workflow/internal/types"
	"golang.org/x/sync/errgroup"
)

// AssignStage assigns a pending stage to an evaluator.
func (s *Service) AssignStage(ctx context.Context, appID uuid.UUID, stage int, actor *types.User, req types.AssignStageRequest) (*types.Application, error) {
	if !types.ValidStage(stage) {
		return nil, invalidStage(stage)
	}
	if err := req.Validate(); err != nil {
		return nil, requestError(err)
	}

	app, err := s.loadApplication(ctx, appID)
	if err != nil {
		return nil, err
	}
	if err := requireElevated(actor, "assign stages"); err != nil {
		return nil, err
	}
	if err := notTerminal(app); err != nil {
		return nil, err
	}

	st := app.Stage(stage)
	if st.Status != types.StageStatusPending {
		return nil, &InvalidStateError{Reason: fmt.Sprintf("stage %d is not pending (status: %s)", stage, st.Status)}
	}

	assignee, err := s.loadAssignee(ctx, req.AssignedTo)
	if err != nil {
		return nil, err
	}
	if st.AssignedTo != nil {
		return nil, &InvalidStateError{Reason: fmt.Sprintf("stage %d is already assigned", stage)}
	}

	now := s.now()
	matched, err := s.apps.AssignStage(ctx, StageAssignment{
		ApplicationID: appID,
		Stage:         stage,
		Assignee:      assignee.ID,
		Deadline:      req.Deadline,
		At:            now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to assign stage: %w", err)
	}
	if !matched {
		return nil, s.assignConflict(ctx, appID, stage)
	}

	record := &types.Assignment{
		ID:            uuid.New(),
		ApplicationID: appID,
		StageNumber:   stage,
		AssignedTo:    assignee.ID,
		AssignedBy:    actor.ID,
		AssignedAt:    now,
		Status:        types.AssignmentStatusAssigned,
		Deadline:      req.Deadline,
		Notes:         req.Notes,
	}
	s.recordAudit("assign", appID, stage, s.audit.AppendAssignment(ctx, record))

	updated, err := s.reload(ctx, appID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("stage assigned",
		slog.String("application_id", appID.String()),
		slog.Int("stage", stage),
		slog.String("assigned_to", assignee.ID.String()),
		slog.String("assigned_by", actor.ID.String()))

	s.notifier.Assigned(ctx, Notice{
		Application: updated,
		Stages:      []int{stage},
		Assignee:    assignee.ID,
		Actor:       actor,
	})
	return updated, nil
}

// ReassignStage moves an assigned or in-progress stage to another evaluator.
func (s *Service) ReassignStage(ctx context.Context, appID uuid.UUID, stage int, actor *types.User, req types.ReassignStageRequest) (*types.Application, error) {
	if !types.ValidStage(stage) {
		return nil, invalidStage(stage)
	}
	if err := req.Validate(); err != nil {
		return nil, requestError(err)
	}

	app, err := s.loadApplication(ctx, appID)
	if err != nil {
		return nil, err
	}
	if err := requireElevated(actor, "reassign stages"); err != nil {
		return nil, err
	}
	if err := notTerminal(app); err != nil {
		return nil, err
	}

	st := app.Stage(stage)
	if !st.Status.Reassignable() {
		return nil, &InvalidStateError{Reason: fmt.Sprintf("stage %d cannot be reassigned (status: %s)", stage, st.Status)}
	}
	if st.AssignedTo == nil {
		return nil, &InvalidStateError{Reason: fmt.Sprintf("stage %d has no current assignee", stage)}
	}
	previous := *st.AssignedTo

	assignee, err := s.loadAssignee(ctx, req.NewAssignedTo)
	if err != nil {
		return nil, err
	}
	if assignee.ID == previous {
		return nil, &ValidationError{Field: "new_assigned_to", Message: "stage is already assigned to this user"}
	}

	now := s.now()
	matched, err := s.apps.ReassignStage(ctx, StageReassignment{
		ApplicationID: appID,
		Stage:         stage,
		From:          previous,
		To:            assignee.ID,
		At:            now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to reassign stage: %w", err)
	}
	if !matched {
		return nil, s.reassignConflict(ctx, appID, stage)
	}

	record := &types.Assignment{
		ID:                 uuid.New(),
		ApplicationID:      appID,
		StageNumber:        stage,
		AssignedTo:         assignee.ID,
		AssignedBy:         actor.ID,
		AssignedAt:         now,
		Status:             types.AssignmentStatusAssigned,
		Deadline:           st.Deadline,
		ReassignedFrom:     &previous,
		ReassignmentReason: req.Reason,
	}
	s.recordAudit("reassign", appID, stage, s.audit.AppendAssignment(ctx, record))

	updated, err := s.reload(ctx, appID)
	if err != nil {
		return nil, err
	}

	s.logger.Info("stage reassigned",
		slog.String("application_id", appID.String()),
		slog.Int("stage", stage),
		slog.String("from", previous.String()),
		slog.String("to", assignee.ID.String()))

	s.notifier.Reassigned(ctx, Notice{
		Application: updated,
		Stages:      []int{stage},
		Assignee:    assignee.ID,
		Previous:    previous,
		Actor:       actor,
		Reason:      req.Reason,
	})
	return updated, nil
}

// BulkAssignStages assigns several pending stages to one evaluator. The
// pending check covers all stages before any write; after that each stage is
// assigned independently and failures are reported per stage.
func (s *Service) BulkAssignStages(ctx context.Context, appID uuid.UUID, actor *types.User, req types.BulkAssignRequest) (*types.BulkAssignResult, error) {
	stages := uniqueStages(req.StageNumbers)
	if len(stages) == 0 {
		return nil, &ValidationError{Field: "stage_numbers", Message: "At least one stage must be selected"}
	}
	for _, n := range stages {
		if !types.ValidStage(n) {
			return nil, invalidStage(n)
		}
	}
	if err := req.Validate(); err != nil {
		return nil, requestError(err)
	}

	app, err := s.loadApplication(ctx, appID)
	if err != nil {
		return nil, err
	}
	if err := requireElevated(actor, "assign stages"); err != nil {
		return nil, err
	}
	if err := notTerminal(app); err != nil {
		return nil, err
	}
	assignee, err := s.loadAssignee(ctx, req.AssignedTo)
	if err != nil {
		return nil, err
	}

	var conflicts []StageConflict
	for _, n := range stages {
		if st := app.Stage(n); st.Status != types.StageStatusPending {
			conflicts = append(conflicts, StageConflict{StageNumber: n, StageName: st.Name, Status: string(st.Status)})
		}
	}
	if len(conflicts) > 0 {
		return nil, pendingConflict(conflicts)
	}

	now := s.now()
	outcomes := make([]types.StageRef, len(stages))
	succeeded := make([]bool, len(stages))

	var g errgroup.Group
	g.SetLimit(types.StageCount)
	for i, n := range stages {
		g.Go(func() error {
			outcomes[i] = types.StageRef{StageNumber: n, StageName: types.StageName(n)}
			matched, err := s.apps.AssignStage(ctx, StageAssignment{
				ApplicationID: appID,
				Stage:         n,
				Assignee:      assignee.ID,
				Deadline:      req.Deadline,
				At:            now,
			})
			switch {
			case err != nil:
				outcomes[i].Error = err.Error()
				return nil
			case !matched:
				outcomes[i].Error = "stage is no longer pending"
				return nil
			}
			succeeded[i] = true
			record := &types.Assignment{
				ID:            uuid.New(),
				ApplicationID: appID,
				StageNumber:   n,
				AssignedTo:    assignee.ID,
				AssignedBy:    actor.ID,
				AssignedAt:    now,
				Status:        types.AssignmentStatusAssigned,
				Deadline:      req.Deadline,
				Notes:         req.Notes,
			}
			s.recordAudit("bulk_assign", appID, n, s.audit.AppendAssignment(ctx, record))
			return nil
		})
	}
	_ = g.Wait()

	result := &types.BulkAssignResult{
		TotalRequested:        len(stages),
		SuccessfulAssignments: []types.StageRef{},
		FailedAssignments:     []types.StageRef{},
	}
	var assigned []int
	for i, ref := range outcomes {
		if succeeded[i] {
			result.SuccessfulAssignments = append(result.SuccessfulAssignments, ref)
			assigned = append(assigned, ref.StageNumber)
		} else {
			result.FailedAssignments = append(result.FailedAssignments, ref)
		}
	}
	result.SuccessCount = len(result.SuccessfulAssignments)
	result.FailedCount = len(result.FailedAssignments)

	updated, err := s.reload(ctx, appID)
	if err != nil {
		return nil, err
	}
	result.Application = updated

	s.logger.Info("stages bulk assigned",
		slog.String("application_id", appID.String()),
		slog.Int("succeeded", result.SuccessCount),
		slog.Int("failed", result.FailedCount),
		slog.String("assigned_to", assignee.ID.String()))

	if len(assigned) > 0 {
		s.notifier.BulkAssigned(ctx, Notice{
			Application: updated,
			Stages:      assigned,
			Assignee:    assignee.ID,
			Actor:       actor,
		})
	}
	return result, nil
}

// ListStageAssignments returns the audit trail of an application. Non-elevated
// callers only see their own records.
func (s *Service) ListStageAssignments(ctx context.Context, appID uuid.UUID, actor *types.User) ([]types.AssignmentView, error) {
	app, err := s.loadApplication(ctx, appID)
	if err != nil {
		return nil, err
	}
	records, err := s.audit.ListByApplication(ctx, appID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}
	if !actor.Role.IsElevated() {
		own := records[:0]
		for _, r := range records {
			if r.AssignedTo == actor.ID {
				own = append(own, r)
			}
		}
		records = own
	}
	return s.buildViews(ctx, records, map[uuid.UUID]*types.Application{app.ID: app})
}

// ListMyAssignments returns the caller's assignments, newest first. Records
// superseded by a reassignment are left out.
func (s *Service) ListMyAssignments(ctx context.Context, actor *types.User) ([]types.AssignmentView, error) {
	records, err := s.audit.ListByAssignee(ctx, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list assignments: %w", err)
	}

	apps, err := s.loadApplications(ctx, records)
	if err != nil {
		return nil, err
	}

	active := make([]types.Assignment, 0, len(records))
	for _, r := range records {
		app := apps[r.ApplicationID]
		if app == nil {
			continue
		}
		st := app.Stage(r.StageNumber)
		if r.Status != types.AssignmentStatusCompleted && (st.AssignedTo == nil || *st.AssignedTo != actor.ID) {
			continue
		}
		active = append(active, r)
	}
	return s.buildViews(ctx, active, apps)
}

// ListAssignees returns the users a stage can be assigned to, ordered by username.
func (s *Service) ListAssignees(ctx context.Context, actor *types.User) ([]types.User, error) {
	if err := requireElevated(actor, "list assignees"); err != nil {
		return nil, err
	}
	users, err := s.dir.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	out := make([]types.User, 0, len(users))
	for _, u := range users {
		if u.Role.CanBeAssigned() {
			out = append(out, u)
		}
	}
	return out, nil
}

// loadApplications fetches the distinct applications referenced by records.
func (s *Service) loadApplications(ctx context.Context, records []types.Assignment) (map[uuid.UUID]*types.Application, error) {
	apps := make(map[uuid.UUID]*types.Application)
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(8)
	seen := make(map[uuid.UUID]bool)
	for _, r := range records {
		if seen[r.ApplicationID] {
			continue
		}
		seen[r.ApplicationID] = true
		id := r.ApplicationID
		g.Go(func() error {
			app, err := s.apps.GetApplication(gctx, id)
			if err != nil {
				return fmt.Errorf("failed to load application %s: %w", id, err)
			}
			mu.Lock()
			apps[id] = app
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return apps, nil
}

func (s *Service) buildViews(ctx context.Context, records []types.Assignment, apps map[uuid.UUID]*types.Application) ([]types.AssignmentView, error) {
	names := newNameCache(s.dir)
	jobs := make(map[uuid.UUID]string)

	views := make([]types.AssignmentView, 0, len(records))
	for _, r := range records {
		view := types.AssignmentView{
			Assignment:   r,
			StageName:    types.StageName(r.StageNumber),
			AssigneeName: names.name(ctx, r.AssignedTo),
			AssignerName: names.name(ctx, r.AssignedBy),
		}
		if r.ReassignedFrom != nil {
			view.ReassignedFromName = names.name(ctx, *r.ReassignedFrom)
		}
		if app := apps[r.ApplicationID]; app != nil {
			view.CandidateID = app.CandidateID
			view.CandidateName = names.name(ctx, app.CandidateID)
			view.JobID = app.JobID
			view.CurrentStage = app.CurrentStage
			title, ok := jobs[app.JobID]
			if !ok {
				if job, err := s.dir.GetJob(ctx, app.JobID); err == nil && job != nil {
					title = job.Title
				}
				jobs[app.JobID] = title
			}
			view.JobTitle = title

			st := app.Stage(r.StageNumber)
			view.StageStatus = st.Status
			if r.Status == types.AssignmentStatusCompleted && st.Feedback != nil {
				fb := st.Feedback
				view.FeedbackSubmitted = &fb.SubmittedAt
				view.ApprovalStatus = &fb.ApprovalStatus
				view.PerformanceRating = &fb.PerformanceRating
			}
		}
		views = append(views, view)
	}

	sort.SliceStable(views, func(i, j int) bool {
		return views[i].AssignedAt.After(views[j].AssignedAt)
	})
	return views, nil
}

func (s *Service) loadAssignee(ctx context.Context, id uuid.UUID) (*types.User, error) {
	assignee, err := s.loadUser(ctx, id)
	if err != nil {
		return nil, err
	}
	if !assignee.Role.CanBeAssigned() {
		return nil, &ValidationError{
			Field:   "assigned_to",
			Message: fmt.Sprintf("users with role %q cannot be assigned to stages", assignee.Role),
		}
	}
	return assignee, nil
}

// assignConflict explains why a conditional assignment matched nothing.
func (s *Service) assignConflict(ctx context.Context, appID uuid.UUID, stage int) error {
	app, err := s.loadApplication(ctx, appID)
	if err != nil {
		return err
	}
	if err := notTerminal(app); err != nil {
		return err
	}
	st := app.Stage(stage)
	if st.Status != types.StageStatusPending {
		return &InvalidStateError{Reason: fmt.Sprintf("stage %d is not pending (status: %s)", stage, st.Status)}
	}
	return &InvalidStateError{Reason: fmt.Sprintf("stage %d is already assigned", stage)}
}

func (s *Service) reassignConflict(ctx context.Context, appID uuid.UUID, stage int) error {
	app, err := s.loadApplication(ctx, appID)
	if err != nil {
		return err
	}
	if err := notTerminal(app); err != nil {
		return err
	}
	st := app.Stage(stage)
	if !st.Status.Reassignable() {
		return &InvalidStateError{Reason: fmt.Sprintf("stage %d cannot be reassigned (status: %s)", stage, st.Status)}
	}
	return &InvalidStateError{Reason: fmt.Sprintf("stage %d assignee changed concurrently", stage)}
}

func pendingConflict(conflicts []StageConflict) error {
	parts := make([]string, len(conflicts))
	for i, c := range conflicts {
		parts[i] = fmt.Sprintf("Stage %d (%s)", c.StageNumber, c.Status)
	}
	return &InvalidStateError{
		Reason:    "All selected stages must be in pending status. Invalid stages: " + strings.Join(parts, ", "),
		Conflicts: conflicts,
	}
}

func uniqueStages(stages []int) []int {
	seen := make(map[int]bool, len(stages))
	out := make([]int, 0, len(stages))
	for _, n := range stages {
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out
}
