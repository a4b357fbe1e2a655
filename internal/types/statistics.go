package types

import (
	"time"

	"github.com/google/uuid"
)

// StatisticsFilter bounds the feedback considered by a statistics report.
// Both ends are inclusive; nil means unbounded.
type StatisticsFilter struct {
	Start *time.Time
	End   *time.Time
}

// Contains reports whether t falls inside the filter.
func (f StatisticsFilter) Contains(t time.Time) bool {
	if f.Start != nil && t.Before(*f.Start) {
		return false
	}
	if f.End != nil && t.After(*f.End) {
		return false
	}
	return true
}

// FeedbackStatistics is the aggregate report over stage feedback.
type FeedbackStatistics struct {
	Summary               StatisticsSummary      `json:"summary"`
	RatingDistribution    []RatingBucket         `json:"rating_distribution"`
	StageRatings          []StageRating          `json:"stage_ratings"`
	TeamMemberPerformance []EvaluatorPerformance `json:"team_member_performance"`
}

// StatisticsSummary holds the report totals.
type StatisticsSummary struct {
	TotalFeedback int     `json:"total_feedback"`
	ApprovedCount int     `json:"approved_count"`
	RejectedCount int     `json:"rejected_count"`
	AvgRating     float64 `json:"avg_rating"`
	ApprovalRate  float64 `json:"approval_rate"`
}

// RatingBucket counts feedback with one rating value.
type RatingBucket struct {
	Rating int `json:"rating"`
	Count  int `json:"count"`
}

// StageRating is the average rating given at one stage.
type StageRating struct {
	Stage     int     `json:"stage"`
	StageName string  `json:"stage_name"`
	AvgRating float64 `json:"avg_rating"`
	Count     int     `json:"count"`
}

// EvaluatorPerformance aggregates the feedback one evaluator submitted.
type EvaluatorPerformance struct {
	UserID        uuid.UUID `json:"user_id"`
	Username      string    `json:"username"`
	Email         string    `json:"email,omitempty"`
	TotalFeedback int       `json:"total_feedback"`
	Approved      int       `json:"approved"`
	Rejected      int       `json:"rejected"`
	TotalRating   int       `json:"total_rating"`
	AvgRating     float64   `json:"avg_rating"`
}
