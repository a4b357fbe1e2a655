package workflow_test

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/hiring-workflow/internal/db/memstore"
	"github.com/jonathan/hiring-workflow/internal/types"
	"github.com/jonathan/hiring-workflow/internal/workflow"
	"github.com/stretchr/testify/require"
)

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type event struct {
	kind   string
	notice workflow.Notice
}

type recordingNotifier struct {
	mu     sync.Mutex
	events []event
}

func (r *recordingNotifier) record(kind string, n workflow.Notice) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event{kind: kind, notice: n})
}

func (r *recordingNotifier) Assigned(_ context.Context, n workflow.Notice)     { r.record("assigned", n) }
func (r *recordingNotifier) BulkAssigned(_ context.Context, n workflow.Notice) { r.record("bulk", n) }
func (r *recordingNotifier) Reassigned(_ context.Context, n workflow.Notice)   { r.record("reassigned", n) }

func (r *recordingNotifier) all() []event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]event(nil), r.events...)
}

type fixture struct {
	ctx      context.Context
	store    *memstore.Store
	svc      *workflow.Service
	clock    *clock
	notifier *recordingNotifier

	admin     *types.User
	hr        *types.User
	member    *types.User
	other     *types.User
	requester *types.User
	candidate *types.User
	job       types.Job
	app       *types.Application
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		ctx:      context.Background(),
		store:    memstore.New(),
		clock:    &clock{t: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)},
		notifier: &recordingNotifier{},
	}

	mk := func(name string, role types.Role) *types.User {
		u := types.User{ID: uuid.New(), Username: name, Email: name + "@example.com", Role: role}
		f.store.AddUser(u)
		return &u
	}
	f.admin = mk("admin", types.RoleAdmin)
	f.hr = mk("hr", types.RoleHR)
	f.member = mk("tariq", types.RoleTeamMember)
	f.other = mk("uma", types.RoleTeamMember)
	f.requester = mk("req", types.RoleRequester)
	f.candidate = mk("casey", types.RoleCandidate)

	f.job = types.Job{ID: uuid.New(), Title: "Backend Engineer", Department: "Platform"}
	f.store.AddJob(f.job)

	f.svc = workflow.NewService(f.store, f.store, f.store, f.notifier,
		workflow.WithClock(f.clock.now),
		workflow.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	f.app = f.newApplication(t)
	return f
}

func (f *fixture) newApplication(t *testing.T) *types.Application {
	t.Helper()
	app := types.NewApplication(uuid.New(), f.candidate.ID, f.job.ID, "resume.pdf", f.clock.now())
	require.NoError(t, f.store.CreateApplication(f.ctx, app))
	return app
}

func (f *fixture) assign(t *testing.T, stage int, to *types.User) *types.Application {
	t.Helper()
	app, err := f.svc.AssignStage(f.ctx, f.app.ID, stage, f.admin, types.AssignStageRequest{AssignedTo: to.ID})
	require.NoError(t, err)
	return app
}

func (f *fixture) submit(t *testing.T, stage int, by *types.User, rating int) *types.Application {
	t.Helper()
	app, err := f.svc.SubmitFeedback(f.ctx, f.app.ID, stage, by, feedback(rating))
	require.NoError(t, err)
	return app
}

func feedback(rating int) types.FeedbackSubmission {
	return types.FeedbackSubmission{ApprovalStatus: types.ApprovalApproved, PerformanceRating: rating, Comments: "Good"}
}
