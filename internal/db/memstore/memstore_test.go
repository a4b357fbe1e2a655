package memstore

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/hiring-workflow/internal/notify"
	"github.com/jonathan/hiring-workflow/internal/types"
	"github.com/jonathan/hiring-workflow/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	_ workflow.Applications = (*Store)(nil)
	_ workflow.AuditTrail   = (*Store)(nil)
	_ workflow.Directory    = (*Store)(nil)
	_ notify.Store          = (*Store)(nil)
)

func newApp(t *testing.T, s *Store) *types.Application {
	t.Helper()
	app := types.NewApplication(uuid.New(), uuid.New(), uuid.New(), "", time.Now())
	require.NoError(t, s.CreateApplication(context.Background(), app))
	return app
}

func TestCreateApplication_Duplicate(t *testing.T) {
	s := New()
	app := newApp(t, s)
	assert.Error(t, s.CreateApplication(context.Background(), app))
}

func TestGetApplication_ReturnsCopy(t *testing.T) {
	s := New()
	app := newApp(t, s)
	ctx := context.Background()

	got, err := s.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	got.Stages[0].Status = types.StageStatusApproved

	again, err := s.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StageStatusPending, again.Stages[0].Status)

	missing, err := s.GetApplication(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestDirectory(t *testing.T) {
	s := New()
	ctx := context.Background()
	u := types.User{ID: uuid.New(), Username: "kai", Role: types.RoleHR}
	require.NoError(t, s.CreateUser(ctx, u))
	assert.Error(t, s.CreateUser(ctx, u))

	got, err := s.GetUser(ctx, u.ID)
	require.NoError(t, err)
	assert.Equal(t, u, *got)

	j := types.Job{ID: uuid.New(), Title: "QA"}
	require.NoError(t, s.CreateJob(ctx, j))
	gotJob, err := s.GetJob(ctx, j.ID)
	require.NoError(t, err)
	assert.Equal(t, "QA", gotJob.Title)

	none, err := s.GetJob(ctx, uuid.New())
	require.NoError(t, err)
	assert.Nil(t, none)

	require.NoError(t, s.CreateUser(ctx, types.User{ID: uuid.New(), Username: "ada", Role: types.RoleCandidate}))
	users, err := s.ListUsers(ctx)
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "ada", users[0].Username)
	assert.Equal(t, u, users[1])
}

func TestPutFeedback_EditCountGuard(t *testing.T) {
	s := New()
	app := newApp(t, s)
	ctx := context.Background()
	now := time.Now()
	fb := types.StageFeedback{ApprovalStatus: types.ApprovalApproved, PerformanceRating: 6, Comments: "ok"}

	ok, err := s.PutFeedback(ctx, workflow.FeedbackWrite{ApplicationID: app.ID, Stage: 2, Feedback: fb, PrevEditCount: 0, At: now})
	require.NoError(t, err)
	assert.False(t, ok, "no feedback to edit yet")

	ok, err = s.PutFeedback(ctx, workflow.FeedbackWrite{ApplicationID: app.ID, Stage: 2, Feedback: fb, PrevEditCount: -1, At: now})
	require.NoError(t, err)
	assert.True(t, ok)

	fb.EditCount = 1
	ok, err = s.PutFeedback(ctx, workflow.FeedbackWrite{ApplicationID: app.ID, Stage: 2, Feedback: fb, PrevEditCount: 0, At: now})
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = s.PutFeedback(ctx, workflow.FeedbackWrite{ApplicationID: app.ID, Stage: 2, Feedback: fb, PrevEditCount: 0, At: now})
	require.NoError(t, err)
	assert.False(t, ok, "stale edit count")

	got, err := s.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StageStatusCompleted, got.Stages[1].Status)
}

func TestApproveStage_LastStageCompletes(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()
	app := types.NewApplication(uuid.New(), uuid.New(), uuid.New(), "", now)
	app.CurrentStage = types.StageCount
	app.Stages[types.StageCount-1].Status = types.StageStatusForwarded
	require.NoError(t, s.CreateApplication(ctx, app))

	ok, err := s.ApproveStage(ctx, app.ID, types.StageCount, now)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := s.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StageCount, got.CurrentStage)
	assert.Equal(t, types.ApplicationStatusCompleted, got.Status)

	ok, err = s.AdvanceStage(ctx, app.ID, types.StageCount, now)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestListDeadlines_Window(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()
	app := newApp(t, s)
	user := uuid.New()

	for stage, in := range map[int]time.Duration{1: time.Hour, 2: 30 * time.Hour, 3: 10 * time.Hour} {
		d := now.Add(in)
		ok, err := s.AssignStage(ctx, workflow.StageAssignment{ApplicationID: app.ID, Stage: stage, Assignee: user, Deadline: &d, At: now})
		require.NoError(t, err)
		require.True(t, ok)
	}

	entries, err := s.ListDeadlines(ctx, now, now.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, 1, entries[0].Stage)
	assert.Equal(t, 3, entries[1].Stage)
}

func TestAuditTrail_UpdatesNewestOpenRecord(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()
	appID, user := uuid.New(), uuid.New()

	require.NoError(t, s.AppendAssignment(ctx, &types.Assignment{ApplicationID: appID, StageNumber: 1, AssignedTo: user, AssignedAt: now, Status: types.AssignmentStatusCompleted}))
	require.NoError(t, s.AppendAssignment(ctx, &types.Assignment{ApplicationID: appID, StageNumber: 1, AssignedTo: user, AssignedAt: now.Add(time.Minute), Status: types.AssignmentStatusAssigned}))

	require.NoError(t, s.UpdateAssignmentStatus(ctx, appID, 1, user, types.AssignmentStatusCompleted, now.Add(time.Hour)))

	list, err := s.ListByApplication(ctx, appID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Nil(t, list[0].CompletedAt)
	require.NotNil(t, list[1].CompletedAt)
	assert.Equal(t, types.AssignmentStatusCompleted, list[1].Status)

	byUser, err := s.ListByAssignee(ctx, user)
	require.NoError(t, err)
	assert.True(t, byUser[0].AssignedAt.After(byUser[1].AssignedAt))
}

func TestDecisionsRequireCurrentStage(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()
	app := types.NewApplication(uuid.New(), uuid.New(), uuid.New(), "", now)
	app.CurrentStage = 2
	app.Stages[0].Status = types.StageStatusCompleted
	app.Stages[2].Status = types.StageStatusForwarded
	require.NoError(t, s.CreateApplication(ctx, app))

	ok, err := s.SetStageStatus(ctx, workflow.StatusChange{ApplicationID: app.ID, Stage: 1, From: types.StageStatusCompleted, To: types.StageStatusForwarded, Current: true, At: now})
	require.NoError(t, err)
	assert.False(t, ok, "stage 1 is behind the current stage")

	ok, err = s.RejectStage(ctx, app.ID, 3, "no", now)
	require.NoError(t, err)
	assert.False(t, ok, "stage 3 is ahead of the current stage")

	got, err := s.GetApplication(ctx, app.ID)
	require.NoError(t, err)
	assert.Equal(t, types.StageStatusCompleted, got.Stages[0].Status)
	assert.Equal(t, types.ApplicationStatusPending, got.Status)
}

func TestTerminalApplicationRejectsWrites(t *testing.T) {
	s := New()
	ctx := context.Background()
	now := time.Now()
	app := types.NewApplication(uuid.New(), uuid.New(), uuid.New(), "", now)
	app.Status = types.ApplicationStatusRejected
	require.NoError(t, s.CreateApplication(ctx, app))

	ok, err := s.AssignStage(ctx, workflow.StageAssignment{ApplicationID: app.ID, Stage: 2, Assignee: uuid.New(), At: now})
	require.NoError(t, err)
	assert.False(t, ok)

	fb := types.StageFeedback{ApprovalStatus: types.ApprovalApproved, PerformanceRating: 5, Comments: "ok", SubmittedAt: now}
	ok, err = s.PutFeedback(ctx, workflow.FeedbackWrite{ApplicationID: app.ID, Stage: 1, Feedback: fb, PrevEditCount: -1, At: now})
	require.NoError(t, err)
	assert.False(t, ok)
}
