package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/hiring-workflow/internal/types"
)

// SubmitFeedback stores a first submission or an edit of a stage's feedback
// and marks the stage completed.
func (s *Service) SubmitFeedback(ctx context.Context, appID uuid.UUID, stage int, actor *types.User, sub types.FeedbackSubmission) (*types.Application, error) {
	if !types.ValidStage(stage) {
		return nil, invalidStage(stage)
	}
	if err := sub.Validate(); err != nil {
		return nil, requestError(err)
	}

	app, err := s.loadApplication(ctx, appID)
	if err != nil {
		return nil, err
	}
	if err := notTerminal(app); err != nil {
		return nil, err
	}
	st := app.Stage(stage)
	if !st.Status.AcceptsFeedback() {
		return nil, &InvalidStateError{Reason: fmt.Sprintf("feedback for stage %d is locked (status: %s)", stage, st.Status)}
	}

	elevated := actor.Role.IsElevated()
	if !elevated && (st.AssignedTo == nil || *st.AssignedTo != actor.ID) {
		return nil, &ForbiddenError{Reason: "only the assigned evaluator can submit feedback for this stage"}
	}

	now := s.now()
	write := FeedbackWrite{ApplicationID: appID, Stage: stage, At: now, PrevEditCount: -1}
	if !elevated {
		write.Assignee = &actor.ID
	}

	if st.Feedback == nil {
		write.Feedback = types.StageFeedback{
			ApprovalStatus:    sub.ApprovalStatus,
			PerformanceRating: sub.PerformanceRating,
			Comments:          sub.Comments,
			SubmittedBy:       actor.ID,
			SubmittedAt:       now,
		}
	} else {
		if !elevated {
			if err := s.editDenied(st.Feedback, actor, now); err != nil {
				return nil, err
			}
		}
		fb := st.Feedback.Clone()
		fb.ApprovalStatus = sub.ApprovalStatus
		fb.PerformanceRating = sub.PerformanceRating
		fb.Comments = sub.Comments
		fb.EditedAt = &now
		fb.EditedBy = &actor.ID
		fb.EditCount++
		write.Feedback = fb
		write.PrevEditCount = st.Feedback.EditCount
	}

	matched, err := s.apps.PutFeedback(ctx, write)
	if err != nil {
		return nil, fmt.Errorf("failed to save feedback: %w", err)
	}
	if !matched {
		return nil, s.feedbackConflict(ctx, appID, stage, actor)
	}

	if st.AssignedTo != nil {
		s.recordAudit("complete", appID, stage,
			s.audit.UpdateAssignmentStatus(ctx, appID, stage, *st.AssignedTo, types.AssignmentStatusCompleted, now))
	}

	s.logger.Info("feedback saved",
		slog.String("application_id", appID.String()),
		slog.Int("stage", stage),
		slog.String("by", actor.ID.String()),
		slog.Int("edit_count", write.Feedback.EditCount))

	return s.reload(ctx, appID)
}

// CanEdit reports whether user may still edit the feedback of a stage.
func (s *Service) CanEdit(ctx context.Context, appID uuid.UUID, stage int, user *types.User) (bool, error) {
	if !types.ValidStage(stage) {
		return false, invalidStage(stage)
	}
	app, err := s.loadApplication(ctx, appID)
	if err != nil {
		return false, err
	}
	st := app.Stage(stage)
	return feedbackOpen(app, st) && s.canEdit(st.Feedback, user, s.now()), nil
}

// feedbackOpen reports whether the stage's feedback can still be written by anyone.
func feedbackOpen(app *types.Application, st *types.StageState) bool {
	return notTerminal(app) == nil && st.Status.AcceptsFeedback()
}

func (s *Service) canEdit(fb *types.StageFeedback, user *types.User, now time.Time) bool {
	if user.Role.IsElevated() {
		return true
	}
	return fb != nil && s.editDenied(fb, user, now) == nil
}

// editDenied returns the reason a non-elevated user may not edit fb, or nil.
func (s *Service) editDenied(fb *types.StageFeedback, user *types.User, now time.Time) error {
	switch {
	case fb.SubmittedBy != user.ID:
		return &ForbiddenError{Reason: "only the original submitter can edit this feedback"}
	case fb.EditCount >= s.policy.MaxEdits:
		return &ForbiddenError{Reason: fmt.Sprintf("maximum of %d edits reached", s.policy.MaxEdits)}
	case now.After(fb.SubmittedAt.Add(s.policy.EditWindow)):
		return &ForbiddenError{Reason: fmt.Sprintf("edit window of %s has expired", s.policy.EditWindow)}
	}
	return nil
}

// GetFeedback returns a stage's feedback with submitter identity and the
// viewer's edit permission attached.
func (s *Service) GetFeedback(ctx context.Context, appID uuid.UUID, stage int, viewer *types.User) (*types.FeedbackView, error) {
	if !types.ValidStage(stage) {
		return nil, invalidStage(stage)
	}
	app, err := s.loadApplication(ctx, appID)
	if err != nil {
		return nil, err
	}
	st := app.Stage(stage)

	if !viewer.Role.IsElevated() {
		allowed := st.AssignedTo != nil && *st.AssignedTo == viewer.ID
		if !allowed {
			allowed, err = s.audit.WasAssigned(ctx, appID, stage, viewer.ID)
			if err != nil {
				return nil, fmt.Errorf("failed to check assignment history: %w", err)
			}
		}
		if !allowed {
			return nil, &ForbiddenError{Reason: "you can only view feedback for stages assigned to you"}
		}
	}

	if st.Feedback == nil {
		return nil, &NotFoundError{Resource: "feedback", ID: fmt.Sprintf("stage %d", stage)}
	}

	view := &types.FeedbackView{
		StageFeedback: st.Feedback.Clone(),
		StageNumber:   stage,
		StageName:     st.Name,
		SubmitterName: types.UnknownUser,
		CanEdit:       feedbackOpen(app, st) && s.canEdit(st.Feedback, viewer, s.now()),
		ReadOnly:      viewer.Role == types.RoleAdmin,
	}
	submitter, err := s.dir.GetUser(ctx, st.Feedback.SubmittedBy)
	if err != nil {
		return nil, fmt.Errorf("failed to load submitter: %w", err)
	}
	if submitter != nil {
		view.SubmitterName = submitter.Username
		view.SubmitterEmail = submitter.Email
	}
	return view, nil
}

var assigneeTransitions = map[types.StageStatus]types.StageStatus{
	types.StageStatusAssigned:   types.StageStatusInProgress,
	types.StageStatusInProgress: types.StageStatusCompleted,
}

// UpdateStageStatus lets the current assignee move their stage along
// assigned -> in_progress -> completed.
func (s *Service) UpdateStageStatus(ctx context.Context, appID uuid.UUID, stage int, actor *types.User, to types.StageStatus) (*types.Application, error) {
	if !types.ValidStage(stage) {
		return nil, invalidStage(stage)
	}
	if !to.Valid() {
		return nil, &ValidationError{Field: "status", Message: fmt.Sprintf("unknown stage status %q", to)}
	}

	app, err := s.loadApplication(ctx, appID)
	if err != nil {
		return nil, err
	}
	if err := notTerminal(app); err != nil {
		return nil, err
	}
	st := app.Stage(stage)
	if st.AssignedTo == nil || *st.AssignedTo != actor.ID {
		return nil, &ForbiddenError{Reason: "only the assigned evaluator can update stage status"}
	}
	if next, ok := assigneeTransitions[st.Status]; !ok || next != to {
		return nil, &InvalidStateError{Reason: fmt.Sprintf("cannot move stage %d from %s to %s", stage, st.Status, to)}
	}

	now := s.now()
	matched, err := s.apps.SetStageStatus(ctx, StatusChange{
		ApplicationID: appID,
		Stage:         stage,
		From:          st.Status,
		To:            to,
		Assignee:      &actor.ID,
		At:            now,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update stage status: %w", err)
	}
	if !matched {
		return nil, s.statusConflict(ctx, appID, stage, st.Status)
	}

	status := types.AssignmentStatusInProgress
	if to == types.StageStatusCompleted {
		status = types.AssignmentStatusCompleted
	}
	s.recordAudit("status", appID, stage, s.audit.UpdateAssignmentStatus(ctx, appID, stage, actor.ID, status, now))

	return s.reload(ctx, appID)
}

// StartStage marks an assigned stage in progress.
func (s *Service) StartStage(ctx context.Context, appID uuid.UUID, stage int, actor *types.User) (*types.Application, error) {
	return s.UpdateStageStatus(ctx, appID, stage, actor, types.StageStatusInProgress)
}

func (s *Service) feedbackConflict(ctx context.Context, appID uuid.UUID, stage int, actor *types.User) error {
	app, err := s.loadApplication(ctx, appID)
	if err != nil {
		return err
	}
	if err := notTerminal(app); err != nil {
		return err
	}
	st := app.Stage(stage)
	switch {
	case !st.Status.AcceptsFeedback():
		return &InvalidStateError{Reason: fmt.Sprintf("feedback for stage %d is locked (status: %s)", stage, st.Status)}
	case !actor.Role.IsElevated() && (st.AssignedTo == nil || *st.AssignedTo != actor.ID):
		return &ForbiddenError{Reason: "only the assigned evaluator can submit feedback for this stage"}
	}
	return &InvalidStateError{Reason: fmt.Sprintf("feedback for stage %d was modified concurrently", stage)}
}

func (s *Service) statusConflict(ctx context.Context, appID uuid.UUID, stage int, expected types.StageStatus) error {
	app, err := s.loadApplication(ctx, appID)
	if err != nil {
		return err
	}
	if err := notTerminal(app); err != nil {
		return err
	}
	st := app.Stage(stage)
	return &InvalidStateError{Reason: fmt.Sprintf("stage %d status changed from %s to %s", stage, expected, st.Status)}
}
