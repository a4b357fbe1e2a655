package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/hiring-workflow/internal/db/memstore"
	"github.com/jonathan/hiring-workflow/internal/notify"
	"github.com/jonathan/hiring-workflow/internal/server/ratelimit"
	"github.com/jonathan/hiring-workflow/internal/types"
	"github.com/jonathan/hiring-workflow/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	t       *testing.T
	store   *memstore.Store
	jwt     *JWTService
	handler http.Handler
	hr      types.User
	member  types.User
	other   types.User
	app     *types.Application
}

func newTestEnv(t *testing.T, limiter *ratelimit.Limiter) *testEnv {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	store := memstore.New()

	env := &testEnv{
		t:      t,
		store:  store,
		jwt:    setupTestJWTService(t, 24),
		hr:     types.User{ID: uuid.New(), Username: "hana", Email: "hana@example.com", Role: types.RoleHR},
		member: types.User{ID: uuid.New(), Username: "tariq", Email: "tariq@example.com", Role: types.RoleTeamMember},
		other:  types.User{ID: uuid.New(), Username: "uma", Email: "uma@example.com", Role: types.RoleTeamMember},
	}
	for _, u := range []types.User{env.hr, env.member, env.other} {
		store.AddUser(u)
	}
	candidate := types.User{ID: uuid.New(), Username: "casey", Role: types.RoleCandidate}
	store.AddUser(candidate)
	job := types.Job{ID: uuid.New(), Title: "Backend Engineer"}
	store.AddJob(job)

	env.app = types.NewApplication(uuid.New(), candidate.ID, job.ID, "resume.pdf", time.Now())
	require.NoError(t, store.CreateApplication(context.Background(), env.app))

	dispatcher := notify.NewDispatcher(store, store, logger)
	svc := workflow.NewService(store, store, store, dispatcher, workflow.WithLogger(logger))

	srv, err := New(Config{Port: 0}, Deps{
		Workflow:  svc,
		Directory: store,
		Inbox:     notify.NewInbox(store),
		JWT:       env.jwt,
		Limiter:   limiter,
		Logger:    logger,
	})
	require.NoError(t, err)
	env.handler = srv.Handler()
	return env
}

// do sends a request as user (nil for anonymous) and decodes the JSON reply into out.
func (e *testEnv) do(user *types.User, method, path string, body any, out any) int {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(e.t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if user != nil {
		token, err := e.jwt.GenerateToken(user.ID)
		require.NoError(e.t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	if out != nil {
		require.NoError(e.t, json.Unmarshal(w.Body.Bytes(), out), w.Body.String())
	}
	return w.Code
}

func (e *testEnv) stagePath(stage int, action string) string {
	return fmt.Sprintf("/applications/%s/stages/%d/%s", e.app.ID, stage, action)
}

func TestHealthEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	var resp map[string]string
	assert.Equal(t, http.StatusOK, env.do(nil, http.MethodGet, "/health", nil, &resp))
	assert.Equal(t, "ok", resp["status"])
}

func TestProtectedRoutesRequireAuth(t *testing.T) {
	env := newTestEnv(t, nil)

	var resp map[string]string
	assert.Equal(t, http.StatusUnauthorized, env.do(nil, http.MethodGet, "/assignments/mine", nil, &resp))
	assert.NotEmpty(t, resp["error"])

	ghost := types.User{ID: uuid.New(), Role: types.RoleAdmin}
	assert.Equal(t, http.StatusUnauthorized, env.do(&ghost, http.MethodGet, "/applications/"+env.app.ID.String(), nil, nil))
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, nil)
	req := httptest.NewRequest(http.MethodOptions, "/applications/x", nil)
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Access-Control-Allow-Headers"), "Authorization")
}

func TestStageLifecycle(t *testing.T) {
	env := newTestEnv(t, nil)

	var app types.Application
	code := env.do(&env.hr, http.MethodPost, env.stagePath(1, "assign"),
		types.AssignStageRequest{AssignedTo: env.member.ID, Notes: "please review"}, &app)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, types.StageStatusAssigned, app.Stage(1).Status)
	assert.Equal(t, types.ApplicationStatusInProgress, app.Status)

	var count map[string]int
	require.Equal(t, http.StatusOK, env.do(&env.member, http.MethodGet, "/notifications/unread-count", nil, &count))
	assert.Equal(t, 1, count["unread_count"])

	require.Equal(t, http.StatusOK, env.do(&env.member, http.MethodPost, env.stagePath(1, "start"), nil, &app))
	assert.Equal(t, types.StageStatusInProgress, app.Stage(1).Status)

	sub := types.FeedbackSubmission{ApprovalStatus: types.ApprovalApproved, PerformanceRating: 8, Comments: "Clear communicator."}
	require.Equal(t, http.StatusOK, env.do(&env.member, http.MethodPost, env.stagePath(1, "feedback"), sub, &app))
	assert.Equal(t, types.StageStatusCompleted, app.Stage(1).Status)

	sub.Comments = "Clear communicator, strong SQL."
	require.Equal(t, http.StatusOK, env.do(&env.member, http.MethodPut, env.stagePath(1, "feedback"), sub, &app))
	assert.Equal(t, 1, app.Stage(1).Feedback.EditCount)

	var view types.FeedbackView
	require.Equal(t, http.StatusOK, env.do(&env.member, http.MethodGet, env.stagePath(1, "feedback"), nil, &view))
	assert.Equal(t, "tariq", view.SubmitterName)
	assert.True(t, view.CanEdit)

	require.Equal(t, http.StatusOK, env.do(&env.member, http.MethodPost, env.stagePath(1, "forward"), nil, &app))
	assert.Equal(t, types.StageStatusForwarded, app.Stage(1).Status)

	var errResp map[string]any
	assert.Equal(t, http.StatusConflict, env.do(&env.member, http.MethodPut, env.stagePath(1, "feedback"), sub, &errResp))

	require.Equal(t, http.StatusOK, env.do(&env.hr, http.MethodPost, env.stagePath(1, "approve"), nil, &app))
	assert.Equal(t, types.StageStatusApproved, app.Stage(1).Status)
	assert.Equal(t, 2, app.CurrentStage)

	var overview types.StageOverview
	require.Equal(t, http.StatusOK, env.do(&env.member, http.MethodGet, "/applications/"+env.app.ID.String()+"/stages", nil, &overview))
	assert.Equal(t, 7, overview.TotalStages)
	assert.True(t, overview.Stages[0].HasFeedback)
	assert.Equal(t, "tariq", overview.Stages[0].AssigneeName)

	var mine struct {
		Assignments []types.AssignmentView `json:"assignments"`
		Total       int                    `json:"total"`
	}
	require.Equal(t, http.StatusOK, env.do(&env.member, http.MethodGet, "/assignments/mine", nil, &mine))
	require.Equal(t, 1, mine.Total)
	assert.Equal(t, "Backend Engineer", mine.Assignments[0].JobTitle)
}

func TestRejectStage(t *testing.T) {
	env := newTestEnv(t, nil)
	require.Equal(t, http.StatusOK, env.do(&env.hr, http.MethodPost, env.stagePath(1, "assign"), types.AssignStageRequest{AssignedTo: env.member.ID}, nil))
	sub := types.FeedbackSubmission{ApprovalStatus: types.ApprovalRejected, PerformanceRating: 2, Comments: "Not a fit."}
	require.Equal(t, http.StatusOK, env.do(&env.member, http.MethodPost, env.stagePath(1, "feedback"), sub, nil))
	require.Equal(t, http.StatusOK, env.do(&env.member, http.MethodPost, env.stagePath(1, "forward"), nil, nil))

	var errResp map[string]string
	assert.Equal(t, http.StatusBadRequest, env.do(&env.hr, http.MethodPost, env.stagePath(1, "reject"), map[string]string{"reason": " "}, &errResp))
	assert.Contains(t, errResp["error"], "reason")

	var app types.Application
	require.Equal(t, http.StatusOK, env.do(&env.hr, http.MethodPost, env.stagePath(1, "reject"), types.RejectStageRequest{Reason: "Insufficient experience"}, &app))
	assert.Equal(t, types.ApplicationStatusRejected, app.Status)
	assert.Equal(t, "Insufficient experience", app.Stage(1).RejectionReason)
}

func TestErrorMapping(t *testing.T) {
	env := newTestEnv(t, nil)
	assign := types.AssignStageRequest{AssignedTo: env.member.ID}

	tests := []struct {
		name   string
		user   *types.User
		method string
		path   string
		body   any
		want   int
	}{
		{name: "member cannot assign", user: &env.member, method: http.MethodPost, path: env.stagePath(1, "assign"), body: assign, want: http.StatusForbidden},
		{name: "non-numeric stage", user: &env.hr, method: http.MethodPost, path: fmt.Sprintf("/applications/%s/stages/abc/assign", env.app.ID), body: assign, want: http.StatusBadRequest},
		{name: "stage out of range", user: &env.hr, method: http.MethodPost, path: env.stagePath(9, "assign"), body: assign, want: http.StatusBadRequest},
		{name: "bad application id", user: &env.hr, method: http.MethodGet, path: "/applications/not-a-uuid", want: http.StatusBadRequest},
		{name: "unknown application", user: &env.hr, method: http.MethodGet, path: "/applications/" + uuid.NewString(), want: http.StatusNotFound},
		{name: "malformed body", user: &env.hr, method: http.MethodPost, path: env.stagePath(1, "assign"), body: "{", want: http.StatusBadRequest},
		{name: "missing assignee", user: &env.hr, method: http.MethodPost, path: env.stagePath(1, "assign"), body: map[string]string{}, want: http.StatusBadRequest},
		{name: "feedback by non-assignee", user: &env.other, method: http.MethodPost, path: env.stagePath(2, "feedback"),
			body: types.FeedbackSubmission{ApprovalStatus: types.ApprovalApproved, PerformanceRating: 5, Comments: "ok"}, want: http.StatusForbidden},
		{name: "approve pending stage", user: &env.hr, method: http.MethodPost, path: env.stagePath(1, "approve"), want: http.StatusConflict},
		{name: "status without body", user: &env.member, method: http.MethodPut, path: env.stagePath(1, "status"), want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var resp map[string]any
			assert.Equal(t, tt.want, env.do(tt.user, tt.method, tt.path, tt.body, &resp))
			assert.NotEmpty(t, resp["error"])
		})
	}
}

func TestBulkAssignConflictsInBody(t *testing.T) {
	env := newTestEnv(t, nil)
	require.Equal(t, http.StatusOK, env.do(&env.hr, http.MethodPost, env.stagePath(2, "assign"), types.AssignStageRequest{AssignedTo: env.other.ID}, nil))

	path := fmt.Sprintf("/applications/%s/stages/bulk-assign", env.app.ID)
	req := types.BulkAssignRequest{StageNumbers: []int{1, 2, 3}, AssignedTo: env.member.ID}

	var conflict errorBody
	require.Equal(t, http.StatusConflict, env.do(&env.hr, http.MethodPost, path, req, &conflict))
	require.Len(t, conflict.Conflicts, 1)
	assert.Equal(t, 2, conflict.Conflicts[0].StageNumber)
	assert.Equal(t, "assigned", conflict.Conflicts[0].Status)

	req.StageNumbers = []int{1, 3}
	var result types.BulkAssignResult
	require.Equal(t, http.StatusOK, env.do(&env.hr, http.MethodPost, path, req, &result))
	assert.Equal(t, 2, result.SuccessCount)
	assert.Equal(t, 0, result.FailedCount)

	var trail struct {
		Assignments []types.AssignmentView `json:"assignments"`
		Total       int                    `json:"total"`
	}
	require.Equal(t, http.StatusOK, env.do(&env.hr, http.MethodGet, fmt.Sprintf("/applications/%s/assignments", env.app.ID), nil, &trail))
	assert.Equal(t, 3, trail.Total)
	require.Equal(t, http.StatusOK, env.do(&env.member, http.MethodGet, fmt.Sprintf("/applications/%s/assignments", env.app.ID), nil, &trail))
	assert.Equal(t, 2, trail.Total)
}

func TestReassignStage(t *testing.T) {
	env := newTestEnv(t, nil)
	require.Equal(t, http.StatusOK, env.do(&env.hr, http.MethodPost, env.stagePath(1, "assign"), types.AssignStageRequest{AssignedTo: env.member.ID}, nil))

	var app types.Application
	req := types.ReassignStageRequest{NewAssignedTo: env.other.ID, Reason: "conflict of interest"}
	require.Equal(t, http.StatusOK, env.do(&env.hr, http.MethodPost, env.stagePath(1, "reassign"), req, &app))
	assert.Equal(t, env.other.ID, *app.Stage(1).AssignedTo)

	var list struct {
		Notifications []types.Notification `json:"notifications"`
	}
	require.Equal(t, http.StatusOK, env.do(&env.other, http.MethodGet, "/notifications?unread_only=true", nil, &list))
	require.Len(t, list.Notifications, 1)
	assert.Equal(t, types.NotificationReassignment, list.Notifications[0].Type)
}

func TestAssigneesEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)

	var resp struct {
		Assignees []types.User `json:"assignees"`
		Total     int          `json:"total"`
	}
	require.Equal(t, http.StatusOK, env.do(&env.hr, http.MethodGet, "/assignees", nil, &resp))
	assert.Equal(t, 3, resp.Total)
	names := make([]string, 0, len(resp.Assignees))
	for _, u := range resp.Assignees {
		names = append(names, u.Username)
	}
	assert.Equal(t, []string{"hana", "tariq", "uma"}, names, "candidates are left out")

	assert.Equal(t, http.StatusForbidden, env.do(&env.member, http.MethodGet, "/assignees", nil, nil))
	assert.Equal(t, http.StatusUnauthorized, env.do(nil, http.MethodGet, "/assignees", nil, nil))
}

func TestStatisticsEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	require.Equal(t, http.StatusOK, env.do(&env.hr, http.MethodPost, env.stagePath(1, "assign"), types.AssignStageRequest{AssignedTo: env.member.ID}, nil))
	sub := types.FeedbackSubmission{ApprovalStatus: types.ApprovalApproved, PerformanceRating: 9, Comments: "Excellent."}
	require.Equal(t, http.StatusOK, env.do(&env.member, http.MethodPost, env.stagePath(1, "feedback"), sub, nil))

	var stats types.FeedbackStatistics
	require.Equal(t, http.StatusOK, env.do(&env.hr, http.MethodGet, "/feedback/statistics", nil, &stats))
	assert.Equal(t, 1, stats.Summary.TotalFeedback)
	assert.Equal(t, 100.0, stats.Summary.ApprovalRate)

	today := time.Now().UTC().Format(dateLayout)
	require.Equal(t, http.StatusOK, env.do(&env.hr, http.MethodGet, "/feedback/statistics?start_date="+today+"&end_date="+today, nil, &stats))
	assert.Equal(t, 1, stats.Summary.TotalFeedback, "end date covers the whole day")

	require.Equal(t, http.StatusOK, env.do(&env.hr, http.MethodGet, "/feedback/statistics?end_date=2000-01-01", nil, &stats))
	assert.Equal(t, 0, stats.Summary.TotalFeedback)

	assert.Equal(t, http.StatusBadRequest, env.do(&env.hr, http.MethodGet, "/feedback/statistics?start_date=03/01/2026", nil, nil))
	assert.Equal(t, http.StatusBadRequest, env.do(&env.hr, http.MethodGet, "/feedback/statistics?end_date=2026-13-01", nil, nil))
	assert.Equal(t, http.StatusBadRequest, env.do(&env.hr, http.MethodGet, "/feedback/statistics?start_date=2026-02-01&end_date=2026-01-01", nil, nil))
	assert.Equal(t, http.StatusForbidden, env.do(&env.member, http.MethodGet, "/feedback/statistics", nil, nil))
}

func TestTemplatesEndpoint(t *testing.T) {
	env := newTestEnv(t, nil)
	var resp struct {
		Templates  []types.FeedbackTemplate `json:"templates"`
		Categories []struct {
			Key       string                   `json:"key"`
			Templates []types.FeedbackTemplate `json:"templates"`
		} `json:"categories"`
	}
	require.Equal(t, http.StatusOK, env.do(&env.member, http.MethodGet, "/feedback/templates", nil, &resp))
	assert.Len(t, resp.Templates, 14)
	assert.Len(t, resp.Categories, 4)
}

func TestNotificationEndpoints(t *testing.T) {
	env := newTestEnv(t, nil)
	path := fmt.Sprintf("/applications/%s/stages/bulk-assign", env.app.ID)
	require.Equal(t, http.StatusOK, env.do(&env.hr, http.MethodPost, path, types.BulkAssignRequest{StageNumbers: []int{1, 2}, AssignedTo: env.member.ID}, nil))
	require.Equal(t, http.StatusOK, env.do(&env.hr, http.MethodPost, env.stagePath(3, "assign"), types.AssignStageRequest{AssignedTo: env.member.ID}, nil))

	var list struct {
		Notifications []types.Notification `json:"notifications"`
		Total         int                  `json:"total"`
	}
	require.Equal(t, http.StatusOK, env.do(&env.member, http.MethodGet, "/notifications?limit=1", nil, &list))
	require.Equal(t, 1, list.Total)
	newest := list.Notifications[0]

	assert.Equal(t, http.StatusNotFound, env.do(&env.other, http.MethodPut, "/notifications/"+newest.ID.String()+"/read", nil, nil))
	assert.Equal(t, http.StatusOK, env.do(&env.member, http.MethodPut, "/notifications/"+newest.ID.String()+"/read", nil, nil))

	var marked map[string]int
	require.Equal(t, http.StatusOK, env.do(&env.member, http.MethodPut, "/notifications/read-all", nil, &marked))
	assert.Equal(t, 1, marked["marked_read"])

	var count map[string]int
	require.Equal(t, http.StatusOK, env.do(&env.member, http.MethodGet, "/notifications/unread-count", nil, &count))
	assert.Equal(t, 0, count["unread_count"])

	assert.Equal(t, http.StatusBadRequest, env.do(&env.member, http.MethodGet, "/notifications?limit=abc", nil, nil))
	assert.Equal(t, http.StatusBadRequest, env.do(&env.member, http.MethodGet, "/notifications?limit=500", nil, nil))
	assert.Equal(t, http.StatusBadRequest, env.do(&env.member, http.MethodGet, "/notifications?unread_only=maybe", nil, nil))
	assert.Equal(t, http.StatusBadRequest, env.do(&env.member, http.MethodPut, "/notifications/nope/read", nil, nil))
}

func TestRateLimitMiddleware(t *testing.T) {
	limiter := ratelimit.NewLimiter(&ratelimit.Config{
		Enabled:       true,
		DefaultLimit:  100,
		DefaultWindow: time.Minute,
		Rules:         []ratelimit.Rule{{Path: "/applications/", Method: "POST", Limit: 1, Window: time.Minute}},
	}, ratelimit.NewMemoryStore(0), nil)
	defer limiter.Stop()
	env := newTestEnv(t, limiter)

	require.Equal(t, http.StatusOK, env.do(&env.hr, http.MethodPost, env.stagePath(1, "assign"), types.AssignStageRequest{AssignedTo: env.member.ID}, nil))

	var body map[string]any
	req := httptest.NewRequest(http.MethodPost, env.stagePath(2, "assign"), bytes.NewBufferString(`{}`))
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	require.Equal(t, http.StatusTooManyRequests, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "rate limit exceeded", body["error"])
	assert.Equal(t, "60", w.Header().Get("Retry-After"))
	assert.Equal(t, "1", w.Header().Get("X-RateLimit-Limit"))

	assert.Equal(t, http.StatusOK, env.do(nil, http.MethodGet, "/health", nil, nil))
}
