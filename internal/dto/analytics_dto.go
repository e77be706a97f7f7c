package dto

import "time"

// LetterDistribution maps letter grades to how many graded submissions
// earned them.
type LetterDistribution map[string]int64

// ScoreBucket counts graded submissions inside one percentage range.
type ScoreBucket struct {
	Range string `json:"range"`
	Count int64  `json:"count"`
}

// AnalyticsSummaryResponse aggregates grading metrics across all batches.
type AnalyticsSummaryResponse struct {
	TotalBatches          int64              `json:"total_batches"`
	TotalSubmissions      int64              `json:"total_submissions"`
	GradedSubmissions     int64              `json:"graded_submissions"`
	UngradableSubmissions int64              `json:"ungradable_submissions"`
	AverageScore          float64            `json:"average_score"`
	LetterDistribution    LetterDistribution `json:"letter_distribution"`
	ScoreBuckets          []ScoreBucket      `json:"score_buckets"`
	RecentBatches         []BatchResponse    `json:"recent_batches"`
	GeneratedAt           time.Time          `json:"generated_at"`
	CacheHit              bool               `json:"cache_hit"`
}
