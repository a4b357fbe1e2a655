package workflow

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jonathan/hiring-workflow/internal/types"
)

// ForwardStageToHR hands the completed current stage over for an HR
// decision. The stage's assignee or an elevated user may forward it.
func (s *Service) ForwardStageToHR(ctx context.Context, appID uuid.UUID, stage int, actor *types.User) (*types.Application, error) {
	if !types.ValidStage(stage) {
		return nil, invalidStage(stage)
	}
	app, err := s.loadApplication(ctx, appID)
	if err != nil {
		return nil, err
	}
	if err := forwardAllowed(app, stage); err != nil {
		return nil, err
	}
	st := app.Stage(stage)

	change := StatusChange{
		ApplicationID: appID,
		Stage:         stage,
		From:          types.StageStatusCompleted,
		To:            types.StageStatusForwarded,
		Current:       true,
		At:            s.now(),
	}
	if !actor.Role.IsElevated() {
		if st.AssignedTo == nil || *st.AssignedTo != actor.ID {
			return nil, &ForbiddenError{Reason: "only the assigned evaluator or HR can forward this stage"}
		}
		change.Assignee = &actor.ID
	}

	matched, err := s.apps.SetStageStatus(ctx, change)
	if err != nil {
		return nil, fmt.Errorf("failed to forward stage: %w", err)
	}
	if !matched {
		return nil, s.forwardConflict(ctx, appID, stage)
	}

	s.logger.Info("stage forwarded",
		slog.String("application_id", appID.String()),
		slog.Int("stage", stage),
		slog.String("by", actor.ID.String()))
	return s.reload(ctx, appID)
}

// ApproveStageByHR approves the forwarded current stage and advances the
// application. Approving the last stage completes the application instead.
func (s *Service) ApproveStageByHR(ctx context.Context, appID uuid.UUID, stage int, actor *types.User) (*types.Application, error) {
	if !types.ValidStage(stage) {
		return nil, invalidStage(stage)
	}
	app, err := s.loadApplication(ctx, appID)
	if err != nil {
		return nil, err
	}
	if err := requireElevated(actor, "approve stages"); err != nil {
		return nil, err
	}
	if err := decisionAllowed(app, stage, "approved"); err != nil {
		return nil, err
	}

	matched, err := s.apps.ApproveStage(ctx, appID, stage, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to approve stage: %w", err)
	}
	if !matched {
		return nil, s.decisionConflict(ctx, appID, stage, "approved")
	}

	s.logger.Info("stage approved",
		slog.String("application_id", appID.String()),
		slog.Int("stage", stage),
		slog.String("by", actor.ID.String()))
	return s.reload(ctx, appID)
}

// RejectStageByHR rejects the forwarded current stage and with it the
// application.
func (s *Service) RejectStageByHR(ctx context.Context, appID uuid.UUID, stage int, actor *types.User, reason string) (*types.Application, error) {
	if !types.ValidStage(stage) {
		return nil, invalidStage(stage)
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, &ValidationError{Field: "reason", Message: "is required"}
	}
	app, err := s.loadApplication(ctx, appID)
	if err != nil {
		return nil, err
	}
	if err := requireElevated(actor, "reject stages"); err != nil {
		return nil, err
	}
	if err := decisionAllowed(app, stage, "rejected"); err != nil {
		return nil, err
	}

	matched, err := s.apps.RejectStage(ctx, appID, stage, reason, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to reject stage: %w", err)
	}
	if !matched {
		return nil, s.decisionConflict(ctx, appID, stage, "rejected")
	}

	s.logger.Info("stage rejected",
		slog.String("application_id", appID.String()),
		slog.Int("stage", stage),
		slog.String("by", actor.ID.String()))
	return s.reload(ctx, appID)
}

// ForwardToNextStage advances current_stage once the current stage is completed.
func (s *Service) ForwardToNextStage(ctx context.Context, appID uuid.UUID, actor *types.User) (*types.Application, error) {
	app, err := s.loadApplication(ctx, appID)
	if err != nil {
		return nil, err
	}
	if err := requireElevated(actor, "forward applications"); err != nil {
		return nil, err
	}
	if err := notTerminal(app); err != nil {
		return nil, err
	}

	current := app.CurrentStage
	if current >= types.StageCount {
		return nil, &InvalidStateError{Reason: "all stages completed"}
	}
	if st := app.Stage(current); st.Status != types.StageStatusCompleted {
		return nil, &InvalidStateError{Reason: fmt.Sprintf("current stage %d must be completed (status: %s)", current, st.Status)}
	}

	matched, err := s.apps.AdvanceStage(ctx, appID, current, s.now())
	if err != nil {
		return nil, fmt.Errorf("failed to advance application: %w", err)
	}
	if !matched {
		return nil, &InvalidStateError{Reason: fmt.Sprintf("application moved past stage %d concurrently", current)}
	}

	s.logger.Info("application advanced",
		slog.String("application_id", appID.String()),
		slog.Int("from", current),
		slog.Int("to", current+1))
	return s.reload(ctx, appID)
}

func notTerminal(app *types.Application) error {
	if app.Status == types.ApplicationStatusRejected || app.Status == types.ApplicationStatusCompleted {
		return &InvalidStateError{Reason: fmt.Sprintf("application is already %s", app.Status)}
	}
	return nil
}

// currentOnly rejects work on any stage but the application's current one.
// Stages left behind by ForwardToNextStage stay completed for good.
func currentOnly(app *types.Application, stage int, verb string) error {
	if stage != app.CurrentStage {
		return &InvalidStateError{Reason: fmt.Sprintf("only the current stage (%d) can be %s", app.CurrentStage, verb)}
	}
	return nil
}

func forwardAllowed(app *types.Application, stage int) error {
	if err := notTerminal(app); err != nil {
		return err
	}
	if st := app.Stage(stage); st.Status != types.StageStatusCompleted {
		return &InvalidStateError{Reason: fmt.Sprintf("stage %d must be completed before forwarding (status: %s)", stage, st.Status)}
	}
	return currentOnly(app, stage, "forwarded")
}

func decisionAllowed(app *types.Application, stage int, verb string) error {
	if err := notTerminal(app); err != nil {
		return err
	}
	if st := app.Stage(stage); st.Status != types.StageStatusForwarded {
		return &InvalidStateError{Reason: fmt.Sprintf("stage %d must be forwarded before a decision (status: %s)", stage, st.Status)}
	}
	return currentOnly(app, stage, verb)
}

func (s *Service) forwardConflict(ctx context.Context, appID uuid.UUID, stage int) error {
	app, err := s.loadApplication(ctx, appID)
	if err != nil {
		return err
	}
	if err := forwardAllowed(app, stage); err != nil {
		return err
	}
	return &InvalidStateError{Reason: fmt.Sprintf("stage %d changed concurrently", stage)}
}

func (s *Service) decisionConflict(ctx context.Context, appID uuid.UUID, stage int, verb string) error {
	app, err := s.loadApplication(ctx, appID)
	if err != nil {
		return err
	}
	if err := decisionAllowed(app, stage, verb); err != nil {
		return err
	}
	return &InvalidStateError{Reason: fmt.Sprintf("stage %d changed concurrently", stage)}
}
