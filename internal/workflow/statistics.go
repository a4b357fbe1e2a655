package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"github.com/google/uuid"
	"github.com/jonathan/hiring-workflow/internal/schemas"
	"github.com/jonathan/hiring-workflow/internal/types"
)

// FeedbackStatistics aggregates all stage feedback submitted inside filter.
// Only elevated users may request it.
func (s *Service) FeedbackStatistics(ctx context.Context, actor *types.User, filter types.StatisticsFilter) (*types.FeedbackStatistics, error) {
	if err := requireElevated(actor, "view feedback statistics"); err != nil {
		return nil, err
	}
	return s.ReportStatistics(ctx, filter)
}

// ReportStatistics aggregates all stage feedback submitted inside filter
// without a caller check. Stored documents that fail schema validation are
// skipped.
func (s *Service) ReportStatistics(ctx context.Context, filter types.StatisticsFilter) (*types.FeedbackStatistics, error) {
	if filter.Start != nil && filter.End != nil && filter.End.Before(*filter.Start) {
		return nil, &ValidationError{Field: "end_date", Message: "must not be before start_date"}
	}

	schema, err := schemas.StageFeedback()
	if err != nil {
		return nil, fmt.Errorf("failed to load feedback schema: %w", err)
	}

	var agg statsAggregate
	skipped := 0
	err = s.apps.ScanFeedback(ctx, func(e FeedbackEntry) error {
		fb, ok := decodeFeedback(schema, e.Raw)
		if !ok {
			skipped++
			return nil
		}
		if filter.Contains(fb.SubmittedAt) {
			agg.add(e.Stage, fb)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan feedback: %w", err)
	}
	if skipped > 0 {
		s.logger.Warn("skipped malformed feedback entries", slog.Int("count", skipped))
	}

	names := newNameCache(s.dir)
	return agg.report(func(id uuid.UUID) *types.User { return names.user(ctx, id) }), nil
}

func decodeFeedback(schema *schemas.Schema, raw []byte) (types.StageFeedback, bool) {
	var fb types.StageFeedback
	if len(raw) == 0 || schema.Validate(raw) != nil {
		return fb, false
	}
	if err := json.Unmarshal(raw, &fb); err != nil {
		return fb, false
	}
	return fb, true
}

// statsAggregate is a commutative reduction over feedback entries.
type statsAggregate struct {
	total      int
	approved   int
	rejected   int
	ratingSum  int
	histogram  [11]int
	stageSum   [types.StageCount + 1]int
	stageCount [types.StageCount + 1]int
	evaluators map[uuid.UUID]*types.EvaluatorPerformance
}

func (a *statsAggregate) add(stage int, fb types.StageFeedback) {
	if a.evaluators == nil {
		a.evaluators = make(map[uuid.UUID]*types.EvaluatorPerformance)
	}
	a.total++
	a.ratingSum += fb.PerformanceRating
	a.histogram[fb.PerformanceRating]++
	if types.ValidStage(stage) {
		a.stageSum[stage] += fb.PerformanceRating
		a.stageCount[stage]++
	}

	ev, ok := a.evaluators[fb.SubmittedBy]
	if !ok {
		ev = &types.EvaluatorPerformance{UserID: fb.SubmittedBy}
		a.evaluators[fb.SubmittedBy] = ev
	}
	ev.TotalFeedback++
	ev.TotalRating += fb.PerformanceRating

	if fb.ApprovalStatus == types.ApprovalApproved {
		a.approved++
		ev.Approved++
	} else {
		a.rejected++
		ev.Rejected++
	}
}

func (a *statsAggregate) report(lookup func(uuid.UUID) *types.User) *types.FeedbackStatistics {
	out := &types.FeedbackStatistics{
		Summary: types.StatisticsSummary{
			TotalFeedback: a.total,
			ApprovedCount: a.approved,
			RejectedCount: a.rejected,
		},
		RatingDistribution:    make([]types.RatingBucket, 0, 10),
		StageRatings:          []types.StageRating{},
		TeamMemberPerformance: make([]types.EvaluatorPerformance, 0, len(a.evaluators)),
	}
	if a.total > 0 {
		out.Summary.AvgRating = round(float64(a.ratingSum)/float64(a.total), 2)
		out.Summary.ApprovalRate = round(float64(a.approved)*100/float64(a.total), 1)
	}

	for r := 1; r <= 10; r++ {
		out.RatingDistribution = append(out.RatingDistribution, types.RatingBucket{Rating: r, Count: a.histogram[r]})
	}

	for n := 1; n <= types.StageCount; n++ {
		if a.stageCount[n] == 0 {
			continue
		}
		out.StageRatings = append(out.StageRatings, types.StageRating{
			Stage:     n,
			StageName: types.StageName(n),
			AvgRating: round(float64(a.stageSum[n])/float64(a.stageCount[n]), 2),
			Count:     a.stageCount[n],
		})
	}

	for _, ev := range a.evaluators {
		perf := *ev
		perf.AvgRating = round(float64(perf.TotalRating)/float64(perf.TotalFeedback), 2)
		perf.Username = types.UnknownUser
		if u := lookup(perf.UserID); u != nil {
			perf.Username = u.Username
			perf.Email = u.Email
		}
		out.TeamMemberPerformance = append(out.TeamMemberPerformance, perf)
	}
	sort.Slice(out.TeamMemberPerformance, func(i, j int) bool {
		pi, pj := out.TeamMemberPerformance[i], out.TeamMemberPerformance[j]
		if pi.TotalFeedback != pj.TotalFeedback {
			return pi.TotalFeedback > pj.TotalFeedback
		}
		return pi.UserID.String() < pj.UserID.String()
	})
	return out
}

func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}
