// Package workflow implements the stage assignment, feedback and progression
// rules for job applications.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jonathan/hiring-workflow/internal/types"
)

// Policy holds the temporal limits applied to non-elevated evaluators.
type Policy struct {
	EditWindow time.Duration
	MaxEdits   int
}

// DefaultPolicy returns a 30 minute edit window with at most 3 edits.
func DefaultPolicy() Policy {
	return Policy{EditWindow: 30 * time.Minute, MaxEdits: 3}
}

// Service is the workflow engine. It is safe for concurrent use; all
// coordination happens in the store's conditional writes.
type Service struct {
	apps     Applications
	audit    AuditTrail
	dir      Directory
	notifier Notifier
	policy   Policy
	now      func() time.Time
	logger   *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithPolicy overrides the edit policy.
func WithPolicy(p Policy) Option {
	return func(s *Service) { s.policy = p }
}

// NewService wires the engine to its stores. notifier may be nil.
func NewService(apps Applications, audit AuditTrail, dir Directory, notifier Notifier, opts ...Option) *Service {
	s := &Service{
		apps:     apps,
		audit:    audit,
		dir:      dir,
		notifier: notifier,
		policy:   DefaultPolicy(),
		now:      time.Now,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = noopNotifier{}
	}
	return s
}

// Policy returns the edit policy in effect.
func (s *Service) Policy() Policy {
	return s.policy
}

// GetApplication returns the current projection of an application.
func (s *Service) GetApplication(ctx context.Context, appID uuid.UUID) (*types.Application, error) {
	return s.loadApplication(ctx, appID)
}

// GetStageOverview summarizes every stage of an application.
func (s *Service) GetStageOverview(ctx context.Context, appID uuid.UUID) (*types.StageOverview, error) {
	app, err := s.loadApplication(ctx, appID)
	if err != nil {
		return nil, err
	}

	names := newNameCache(s.dir)
	overview := &types.StageOverview{
		ApplicationID: app.ID,
		CurrentStage:  app.CurrentStage,
		OverallStatus: app.Status,
		TotalStages:   types.StageCount,
		Stages:        make([]types.StageOverviewItem, 0, len(app.Stages)),
	}
	for _, st := range app.Stages {
		item := types.StageOverviewItem{
			StageNumber: st.Number,
			StageName:   st.Name,
			Status:      st.Status,
			AssignedTo:  st.AssignedTo,
			Deadline:    st.Deadline,
			HasFeedback: st.Feedback != nil,
		}
		if st.AssignedTo != nil {
			item.AssigneeName = names.name(ctx, *st.AssignedTo)
		}
		overview.Stages = append(overview.Stages, item)
	}
	return overview, nil
}

func (s *Service) loadApplication(ctx context.Context, appID uuid.UUID) (*types.Application, error) {
	app, err := s.apps.GetApplication(ctx, appID)
	if err != nil {
		return nil, fmt.Errorf("failed to load application: %w", err)
	}
	if app == nil {
		return nil, applicationNotFound(appID)
	}
	return app, nil
}

func (s *Service) loadUser(ctx context.Context, userID uuid.UUID) (*types.User, error) {
	user, err := s.dir.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if user == nil {
		return nil, userNotFound(userID)
	}
	return user, nil
}

func requireElevated(actor *types.User, action string) error {
	if actor == nil || !actor.Role.IsElevated() {
		return &ForbiddenError{Reason: fmt.Sprintf("only HR and admin users can %s", action)}
	}
	return nil
}

// requestError converts a validator failure into a ValidationError naming the first bad field.
func requestError(err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		msg := fmt.Sprintf("failed on '%s' rule", fe.Tag())
		switch fe.Tag() {
		case "required":
			msg = "is required"
		case "min":
			msg = fmt.Sprintf("must be at least %s", fe.Param())
		case "max":
			msg = fmt.Sprintf("must be at most %s", fe.Param())
		case "oneof":
			msg = fmt.Sprintf("must be one of: %s", fe.Param())
		}
		return &ValidationError{Field: fe.Field(), Message: msg}
	}
	return &ValidationError{Message: err.Error()}
}

// reload returns the projection after a successful write.
func (s *Service) reload(ctx context.Context, appID uuid.UUID) (*types.Application, error) {
	return s.loadApplication(ctx, appID)
}

// recordAudit runs an audit write whose failure must not undo the projection.
func (s *Service) recordAudit(op string, appID uuid.UUID, stage int, err error) {
	if err == nil {
		return
	}
	s.logger.Error("audit trail write failed",
		slog.String("op", op),
		slog.String("application_id", appID.String()),
		slog.Int("stage", stage),
		slog.String("error", err.Error()))
}

type noopNotifier struct{}

func (noopNotifier) Assigned(context.Context, Notice)     {}
func (noopNotifier) BulkAssigned(context.Context, Notice) {}
func (noopNotifier) Reassigned(context.Context, Notice)   {}

// nameCache resolves display names once per user within a request.
type nameCache struct {
	dir   Directory
	users map[uuid.UUID]*types.User
}

func newNameCache(dir Directory) *nameCache {
	return &nameCache{dir: dir, users: make(map[uuid.UUID]*types.User)}
}

func (c *nameCache) user(ctx context.Context, id uuid.UUID) *types.User {
	if u, ok := c.users[id]; ok {
		return u
	}
	u, err := c.dir.GetUser(ctx, id)
	if err != nil {
		u = nil
	}
	c.users[id] = u
	return u
}

func (c *nameCache) name(ctx context.Context, id uuid.UUID) string {
	if u := c.user(ctx, id); u != nil {
		return u.Username
	}
	return types.UnknownUser
}
