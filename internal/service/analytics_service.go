package service

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/noah-isme/nilai-go-api/internal/dto"
	"github.com/noah-isme/nilai-go-api/internal/models"
	"github.com/noah-isme/nilai-go-api/internal/repository"
)

// analyticsCacheKey names the cached summary. Invalidate deletes it whenever
// a grading run or an override changes the aggregates underneath.
const analyticsCacheKey = "nilai:analytics:summary"

// recentBatchLimit caps how many batches the summary lists.
const recentBatchLimit = 5

// AnalyticsService aggregates grading outcomes across every batch.
type AnalyticsService interface {
	Summary(ctx context.Context) (dto.AnalyticsSummaryResponse, error)
	Invalidate(ctx context.Context)
}

type analyticsService struct {
	repo     repository.AnalyticsRepository
	batches  repository.BatchRepository
	cache    *redis.Client
	cacheTTL time.Duration
	logger   zerolog.Logger
	now      func() time.Time
}

// NewAnalyticsService constructs the analytics service. The cache client may
// be nil; every summary is then computed from the database.
func NewAnalyticsService(
	repo repository.AnalyticsRepository,
	batchRepo repository.BatchRepository,
	cache *redis.Client,
	ttl time.Duration,
	logger zerolog.Logger,
) AnalyticsService {
	return &analyticsService{
		repo:     repo,
		batches:  batchRepo,
		cache:    cache,
		cacheTTL: ttl,
		logger:   logger.With().Str("component", "analytics_service").Logger(),
		now:      time.Now,
	}
}

func (s *analyticsService) Summary(ctx context.Context) (dto.AnalyticsSummaryResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/nilai-go-api/internal/service/analytics")
	ctx, span := tracer.Start(ctx, "analytics.summary")
	span.SetAttributes(attribute.String("analytics.cache_key", analyticsCacheKey))
	defer span.End()

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, analyticsCacheKey).Result()
		if err == nil {
			var response dto.AnalyticsSummaryResponse
			if unmarshalErr := json.Unmarshal([]byte(cached), &response); unmarshalErr == nil {
				response.CacheHit = true
				span.SetAttributes(attribute.Bool("analytics.cache_hit", true))
				return response, nil
			}
		} else if err != redis.Nil {
			s.logger.Warn().Err(err).Msg("failed to read analytics cache")
			span.RecordError(err)
		}
	}

	totalBatches, err := s.repo.CountBatches(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "count_batches_failed")
		return dto.AnalyticsSummaryResponse{}, err
	}

	totalSubmissions, err := s.repo.CountSubmissions(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "count_submissions_failed")
		return dto.AnalyticsSummaryResponse{}, err
	}

	graded, err := s.repo.CountSubmissionsByStatus(ctx, models.SubmissionStatusGraded)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "count_graded_failed")
		return dto.AnalyticsSummaryResponse{}, err
	}

	ungradable, err := s.repo.CountSubmissionsByStatus(ctx, models.SubmissionStatusUngradable)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "count_ungradable_failed")
		return dto.AnalyticsSummaryResponse{}, err
	}

	snapshots, err := s.repo.ListGradeSnapshots(ctx)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list_snapshots_failed")
		return dto.AnalyticsSummaryResponse{}, err
	}

	recent, _, err := s.batches.List(ctx, repository.BatchFilter{Page: 1, PageSize: recentBatchLimit})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "list_recent_batches_failed")
		return dto.AnalyticsSummaryResponse{}, err
	}

	summary := s.buildSummary(totalBatches, totalSubmissions, graded, ungradable, snapshots, recent)
	span.SetAttributes(
		attribute.Int64("analytics.total_batches", totalBatches),
		attribute.Int64("analytics.total_submissions", totalSubmissions),
		attribute.Int("analytics.snapshot_count", len(snapshots)),
	)

	if s.cache != nil {
		payload, err := json.Marshal(summary)
		if err == nil {
			if err := s.cache.Set(ctx, analyticsCacheKey, payload, s.cacheTTL).Err(); err != nil {
				s.logger.Warn().Err(err).Msg("failed to store analytics cache")
				span.RecordError(err)
			}
		}
	}

	return summary, nil
}

// Invalidate drops the cached summary so the next read reflects fresh grades.
func (s *analyticsService) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}

	if err := s.cache.Del(ctx, analyticsCacheKey).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to invalidate analytics cache")
		return
	}

	s.logger.Debug().Str("cache_key", analyticsCacheKey).Msg("analytics cache invalidated")
}

func (s *analyticsService) buildSummary(
	totalBatches, totalSubmissions, graded, ungradable int64,
	snapshots []repository.GradeSnapshot,
	recent []models.GradingBatch,
) dto.AnalyticsSummaryResponse {
	distribution := dto.LetterDistribution{}
	buckets := []dto.ScoreBucket{
		{Range: "90-100"},
		{Range: "75-89"},
		{Range: "60-74"},
		{Range: "0-59"},
	}

	var sum float64
	for _, snapshot := range snapshots {
		sum += snapshot.Percentage
		if snapshot.LetterGrade != "" {
			distribution[snapshot.LetterGrade]++
		}

		switch {
		case snapshot.Percentage >= 90:
			buckets[0].Count++
		case snapshot.Percentage >= 75:
			buckets[1].Count++
		case snapshot.Percentage >= 60:
			buckets[2].Count++
		default:
			buckets[3].Count++
		}
	}

	average := 0.0
	if len(snapshots) > 0 {
		average = math.Round(sum/float64(len(snapshots))*100) / 100
	}

	return dto.AnalyticsSummaryResponse{
		TotalBatches:          totalBatches,
		TotalSubmissions:      totalSubmissions,
		GradedSubmissions:     graded,
		UngradableSubmissions: ungradable,
		AverageScore:          average,
		LetterDistribution:    distribution,
		ScoreBuckets:          buckets,
		RecentBatches:         dto.NewBatchResponseSlice(recent),
		GeneratedAt:           s.now(),
		CacheHit:              false,
	}
}
