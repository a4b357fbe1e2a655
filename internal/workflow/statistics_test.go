package workflow_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonathan/hiring-workflow/internal/db/memstore"
	"github.com/jonathan/hiring-workflow/internal/types"
	"github.com/jonathan/hiring-workflow/internal/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// corruptStore adds raw documents to the feedback scan.
type corruptStore struct {
	*memstore.Store
	extra []workflow.FeedbackEntry
}

func (c *corruptStore) ScanFeedback(ctx context.Context, fn func(workflow.FeedbackEntry) error) error {
	if err := c.Store.ScanFeedback(ctx, fn); err != nil {
		return err
	}
	for _, e := range c.extra {
		if err := fn(e); err != nil {
			return err
		}
	}
	return nil
}

func TestFeedbackStatistics(t *testing.T) {
	f := newFixture(t)
	f.assign(t, 1, f.member)
	f.submit(t, 1, f.member, 8)
	f.assign(t, 2, f.member)
	_, err := f.svc.SubmitFeedback(f.ctx, f.app.ID, 2, f.member, types.FeedbackSubmission{
		ApprovalStatus: types.ApprovalRejected, PerformanceRating: 3, Comments: "Weak",
	})
	require.NoError(t, err)

	second := f.newApplication(t)
	_, err = f.svc.AssignStage(f.ctx, second.ID, 1, f.admin, types.AssignStageRequest{AssignedTo: f.other.ID})
	require.NoError(t, err)
	_, err = f.svc.SubmitFeedback(f.ctx, second.ID, 1, f.other, feedback(9))
	require.NoError(t, err)

	stats, err := f.svc.FeedbackStatistics(f.ctx, f.hr, types.StatisticsFilter{})
	require.NoError(t, err)

	assert.Equal(t, 3, stats.Summary.TotalFeedback)
	assert.Equal(t, 2, stats.Summary.ApprovedCount)
	assert.Equal(t, 1, stats.Summary.RejectedCount)
	assert.InDelta(t, 6.67, stats.Summary.AvgRating, 0.001)
	assert.InDelta(t, 66.7, stats.Summary.ApprovalRate, 0.001)

	require.Len(t, stats.RatingDistribution, 10)
	assert.Equal(t, types.RatingBucket{Rating: 3, Count: 1}, stats.RatingDistribution[2])
	assert.Equal(t, types.RatingBucket{Rating: 8, Count: 1}, stats.RatingDistribution[7])
	assert.Equal(t, types.RatingBucket{Rating: 1, Count: 0}, stats.RatingDistribution[0])

	require.Len(t, stats.StageRatings, 2)
	assert.Equal(t, 1, stats.StageRatings[0].Stage)
	assert.InDelta(t, 8.5, stats.StageRatings[0].AvgRating, 0.001)
	assert.Equal(t, 2, stats.StageRatings[0].Count)
	assert.Equal(t, "HR Telephonic Interview", stats.StageRatings[1].StageName)

	require.Len(t, stats.TeamMemberPerformance, 2)
	top := stats.TeamMemberPerformance[0]
	assert.Equal(t, f.member.ID, top.UserID)
	assert.Equal(t, "tariq", top.Username)
	assert.Equal(t, 2, top.TotalFeedback)
	assert.Equal(t, 1, top.Approved)
	assert.Equal(t, 1, top.Rejected)
	assert.Equal(t, 11, top.TotalRating)
	assert.InDelta(t, 5.5, top.AvgRating, 0.001)
}

func TestFeedbackStatistics_Forbidden(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.FeedbackStatistics(f.ctx, f.member, types.StatisticsFilter{})
	assert.True(t, workflow.IsForbidden(err))
}

func TestFeedbackStatistics_DateFilter(t *testing.T) {
	f := newFixture(t)
	f.assign(t, 1, f.member)
	f.submit(t, 1, f.member, 8)
	f.clock.advance(72 * time.Hour)
	f.assign(t, 2, f.member)
	f.submit(t, 2, f.member, 4)

	start := f.clock.now().Add(-time.Hour)
	stats, err := f.svc.ReportStatistics(f.ctx, types.StatisticsFilter{Start: &start})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Summary.TotalFeedback)
	assert.InDelta(t, 4.0, stats.Summary.AvgRating, 0.001)

	end := start
	stats, err = f.svc.ReportStatistics(f.ctx, types.StatisticsFilter{End: &end})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Summary.TotalFeedback)

	early := start.Add(-24 * time.Hour)
	_, err = f.svc.ReportStatistics(f.ctx, types.StatisticsFilter{Start: &start, End: &early})
	assert.True(t, workflow.IsValidation(err))
}

func TestFeedbackStatistics_SkipsMalformedEntries(t *testing.T) {
	f := newFixture(t)
	f.assign(t, 1, f.member)
	f.submit(t, 1, f.member, 8)

	store := &corruptStore{Store: f.store, extra: []workflow.FeedbackEntry{
		{ApplicationID: uuid.New(), Stage: 1, Raw: []byte(`{"approval_status":"Approved","performance_rating":5,"comments":"x","submitted_by":"` + f.other.ID.String() + `"}`)},
		{ApplicationID: uuid.New(), Stage: 2, Raw: []byte(`{"performance_rating": 42}`)},
		{ApplicationID: uuid.New(), Stage: 3, Raw: []byte(`not json`)},
		{ApplicationID: uuid.New(), Stage: 4, Raw: nil},
	}}
	svc := workflow.NewService(store, f.store, f.store, nil, workflow.WithClock(f.clock.now))

	stats, err := svc.ReportStatistics(f.ctx, types.StatisticsFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, stats.Summary.TotalFeedback)
	require.Len(t, stats.TeamMemberPerformance, 1)
}

func TestFeedbackStatistics_UnknownEvaluator(t *testing.T) {
	f := newFixture(t)
	ghost := uuid.New()
	store := &corruptStore{Store: f.store, extra: []workflow.FeedbackEntry{
		{ApplicationID: uuid.New(), Stage: 5, Raw: []byte(`{"approval_status":"Rejected","performance_rating":2,"comments":"x","submitted_by":"` + ghost.String() + `","submitted_at":"2026-01-05T10:00:00Z","edit_count":0}`)},
	}}
	svc := workflow.NewService(store, f.store, f.store, nil)

	stats, err := svc.ReportStatistics(f.ctx, types.StatisticsFilter{})
	require.NoError(t, err)
	require.Len(t, stats.TeamMemberPerformance, 1)
	assert.Equal(t, types.UnknownUser, stats.TeamMemberPerformance[0].Username)
	assert.Equal(t, 0.0, stats.Summary.ApprovalRate)
}

func TestFeedbackStatistics_Empty(t *testing.T) {
	f := newFixture(t)
	stats, err := f.svc.ReportStatistics(f.ctx, types.StatisticsFilter{})
	require.NoError(t, err)
	assert.Equal(t, 0, stats.Summary.TotalFeedback)
	assert.Equal(t, 0.0, stats.Summary.AvgRating)
	assert.Len(t, stats.RatingDistribution, 10)
	assert.Empty(t, stats.StageRatings)
	assert.Empty(t, stats.TeamMemberPerformance)
}
