package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/nilai-go-api/internal/archive"
	"github.com/noah-isme/nilai-go-api/internal/dto"
	"github.com/noah-isme/nilai-go-api/internal/grading"
	"github.com/noah-isme/nilai-go-api/internal/models"
	"github.com/noah-isme/nilai-go-api/internal/notebook"
	"github.com/noah-isme/nilai-go-api/internal/observability"
	"github.com/noah-isme/nilai-go-api/internal/repository"
)

const defaultGradingWorkers = 4

var (
	// ErrRunInProgress indicates the batch is already being graded.
	ErrRunInProgress = errors.New("grading run already in progress")
	// ErrBatchAlreadyGraded is returned when a completed batch is triggered again without the rerun flag.
	ErrBatchAlreadyGraded = errors.New("batch already graded; request a rerun to grade it again")
)

// ProgressPublisher fans grading progress out to subscribed clients.
type ProgressPublisher interface {
	Publish(ctx context.Context, event dto.ProgressEvent)
}

// AnalyticsInvalidator drops cached aggregates once a run changes them.
type AnalyticsInvalidator interface {
	Invalidate(ctx context.Context)
}

// GradingRunService executes grading runs over uploaded batches. Trigger
// returns as soon as the run is accepted; the submissions grade on a
// bounded worker pool in the background.
type GradingRunService interface {
	Trigger(ctx context.Context, batchID uint, req dto.GradeBatchRequest, actor ActivityActor) (dto.BatchResponse, error)
}

type gradingRunService struct {
	batches     repository.BatchRepository
	submissions repository.SubmissionRepository
	grades      repository.GradeRepository
	criteria    CriteriaService
	engine      *grading.Engine
	progress    ProgressPublisher
	analytics   AnalyticsInvalidator
	activity    ActivityRecorder
	logger      zerolog.Logger
	workers     int
	launch      func(fn func())
	now         func() time.Time
}

// NewGradingRunService constructs a GradingRunService implementation. A
// non-positive workers count falls back to four concurrent graders.
func NewGradingRunService(
	batchRepo repository.BatchRepository,
	submissionRepo repository.SubmissionRepository,
	gradeRepo repository.GradeRepository,
	criteriaService CriteriaService,
	engine *grading.Engine,
	progress ProgressPublisher,
	analytics AnalyticsInvalidator,
	activity ActivityRecorder,
	logger zerolog.Logger,
	workers int,
) GradingRunService {
	if workers <= 0 {
		workers = defaultGradingWorkers
	}

	return &gradingRunService{
		batches:     batchRepo,
		submissions: submissionRepo,
		grades:      gradeRepo,
		criteria:    criteriaService,
		engine:      engine,
		progress:    progress,
		analytics:   analytics,
		activity:    activity,
		logger:      logger.With().Str("component", "grading_run_service").Logger(),
		workers:     workers,
		launch:      func(fn func()) { go fn() },
		now:         time.Now,
	}
}

func (s *gradingRunService) Trigger(ctx context.Context, batchID uint, req dto.GradeBatchRequest, actor ActivityActor) (dto.BatchResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/nilai-go-api/internal/service/grading_run")
	ctx, span := tracer.Start(ctx, "grading.trigger")
	span.SetAttributes(
		attribute.Int64("grading.batch_id", int64(batchID)),
		attribute.Int64("grading.actor_id", int64(actor.ID)),
		attribute.Bool("grading.rerun", req.Rerun),
	)
	defer span.End()

	batch, err := s.batches.GetByID(ctx, batchID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "batch_not_found")
			return dto.BatchResponse{}, ErrBatchNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch_lookup_failed")
		return dto.BatchResponse{}, err
	}

	if batch.Status == models.BatchStatusRunning {
		span.SetStatus(codes.Error, "run_in_progress")
		return dto.BatchResponse{}, ErrRunInProgress
	}

	if batch.Status == models.BatchStatusCompleted && !req.Rerun {
		span.SetStatus(codes.Error, "batch_already_graded")
		return dto.BatchResponse{}, ErrBatchAlreadyGraded
	}

	criteria, err := s.criteria.ResolveCriteria(ctx, batch.CriteriaSetID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "criteria_resolution_failed")
		return dto.BatchResponse{}, err
	}

	startedAt := s.now()
	batch.Status = models.BatchStatusRunning
	batch.StartedAt = &startedAt
	batch.CompletedAt = nil
	batch.GradedCount = 0
	batch.FailedCount = 0
	batch.AverageScore = nil

	if err := s.batches.Update(ctx, &batch); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch_update_failed")
		return dto.BatchResponse{}, err
	}

	s.recordRunActivity(ctx, actor, batch.ID, models.ActionRunStarted, map[string]interface{}{
		"rerun": req.Rerun,
	})

	runCtx := context.WithoutCancel(ctx)
	s.launch(func() { s.execute(runCtx, batch, criteria, actor) })

	s.logger.Info().
		Uint("batch_id", batch.ID).
		Bool("rerun", req.Rerun).
		Msg("grading run started")

	return dto.NewBatchResponse(batch), nil
}

// execute grades every stored submission of the batch and finalizes its
// counters. It runs outside the request lifecycle.
func (s *gradingRunService) execute(ctx context.Context, batch models.GradingBatch, criteria []grading.Criterion, actor ActivityActor) {
	tracer := otel.Tracer("github.com/noah-isme/nilai-go-api/internal/service/grading_run")
	ctx, span := tracer.Start(ctx, "grading.run")
	span.SetAttributes(
		attribute.Int64("grading.batch_id", int64(batch.ID)),
		attribute.Int("grading.workers", s.workers),
	)
	defer span.End()

	observability.ActiveRuns().Inc()
	defer observability.ActiveRuns().Dec()

	subs, err := s.submissions.List(ctx, repository.SubmissionFilter{BatchID: &batch.ID})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission_list_failed")
		s.failRun(ctx, batch, actor, err)
		return
	}

	total := len(subs)
	s.publish(ctx, dto.ProgressEvent{
		BatchID:    batch.ID,
		Stage:      dto.ProgressStageStarted,
		TotalCount: total,
	})

	var (
		mu         sync.Mutex
		graded     int
		failed     int
		percentSum float64
	)

	jobs := make(chan models.Submission)
	var wg sync.WaitGroup
	for i := 0; i < s.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sub := range jobs {
				record, gradeErr := s.gradeOne(ctx, criteria, &sub)

				event := dto.ProgressEvent{
					BatchID:      batch.ID,
					SubmissionID: sub.ID,
					StudentName:  sub.StudentName,
					FileName:     sub.FileName,
					TotalCount:   total,
				}

				mu.Lock()
				if gradeErr != nil {
					failed++
					event.Stage = dto.ProgressStageUngradable
					s.logger.Warn().
						Err(gradeErr).
						Uint("submission_id", sub.ID).
						Str("file", sub.FileName).
						Msg("submission could not be graded")
				} else {
					graded++
					percentSum += record.Percentage
					pct := record.Percentage
					event.Stage = dto.ProgressStageGraded
					event.Percentage = &pct
					event.LetterGrade = record.LetterGrade
				}
				event.GradedCount = graded
				event.FailedCount = failed
				mu.Unlock()

				if gradeErr != nil {
					observability.SubmissionsProcessed().WithLabelValues("ungradable").Inc()
				} else {
					observability.SubmissionsProcessed().WithLabelValues("graded").Inc()
				}

				s.publish(ctx, event)
			}
		}()
	}

	for _, sub := range subs {
		jobs <- sub
	}
	close(jobs)
	wg.Wait()

	completedAt := s.now()
	batch.Status = models.BatchStatusCompleted
	batch.GradedCount = graded
	batch.FailedCount = failed
	batch.SubmissionCount = total
	batch.CompletedAt = &completedAt
	batch.AverageScore = nil
	if graded > 0 {
		avg := math.Round(percentSum/float64(graded)*100) / 100
		batch.AverageScore = &avg
	}

	if err := s.batches.Update(ctx, &batch); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch_finalize_failed")
		s.logger.Error().Err(err).Uint("batch_id", batch.ID).Msg("failed to finalize grading run")
		return
	}

	observability.BatchesFinished().WithLabelValues(models.BatchStatusCompleted).Inc()

	s.publish(ctx, dto.ProgressEvent{
		BatchID:      batch.ID,
		Stage:        dto.ProgressStageCompleted,
		GradedCount:  graded,
		FailedCount:  failed,
		TotalCount:   total,
		AverageScore: batch.AverageScore,
	})

	s.recordRunActivity(ctx, actor, batch.ID, models.ActionRunCompleted, map[string]interface{}{
		"graded": graded,
		"failed": failed,
	})

	if s.analytics != nil {
		s.analytics.Invalidate(ctx)
	}

	s.logger.Info().
		Uint("batch_id", batch.ID).
		Int("graded", graded).
		Int("failed", failed).
		Msg("grading run completed")
}

func (s *gradingRunService) gradeOne(ctx context.Context, criteria []grading.Criterion, sub *models.Submission) (models.GradeRecord, error) {
	start := time.Now()
	defer func() {
		observability.GradingDuration().Observe(time.Since(start).Seconds())
	}()

	raw, err := archive.Decompress(sub.RawSource)
	if err != nil {
		s.markUngradable(ctx, sub, "")
		return models.GradeRecord{}, fmt.Errorf("decompress stored notebook %s: %w", sub.FileName, err)
	}

	doc, err := notebook.Parse(raw, sub.FileName)
	if err != nil {
		s.markUngradable(ctx, sub, parseErrorKind(err))
		return models.GradeRecord{}, err
	}

	result := s.engine.Grade(doc, criteria)

	scores, err := jsonValue(result.Scores)
	if err != nil {
		return models.GradeRecord{}, fmt.Errorf("encode criterion scores: %w", err)
	}

	record := models.GradeRecord{
		SubmissionID: sub.ID,
		TotalPoints:  result.TotalPoints,
		MaxPossible:  result.MaxPossible,
		Percentage:   result.Percentage,
		LetterGrade:  result.LetterGrade,
		Scores:       scores,
		Feedback:     result.Feedback,
		Strengths:    jsonStringList(result.Strengths),
		Improvements: jsonStringList(result.Improvements),
		GradedAt:     s.now(),
	}

	if err := s.grades.Upsert(ctx, &record); err != nil {
		return models.GradeRecord{}, err
	}

	sub.Status = models.SubmissionStatusGraded
	sub.ParseErrorKind = ""
	sub.ParseWarnings = jsonStringList(doc.Warnings)
	sub.CellCount = len(doc.Cells)
	if err := s.submissions.Update(ctx, sub); err != nil {
		return models.GradeRecord{}, err
	}

	return record, nil
}

func (s *gradingRunService) markUngradable(ctx context.Context, sub *models.Submission, kind string) {
	sub.Status = models.SubmissionStatusUngradable
	sub.ParseErrorKind = kind
	sub.ParseWarnings = nil
	sub.CellCount = 0
	if err := s.submissions.Update(ctx, sub); err != nil {
		s.logger.Error().Err(err).Uint("submission_id", sub.ID).Msg("failed to mark submission ungradable")
	}
}

func (s *gradingRunService) failRun(ctx context.Context, batch models.GradingBatch, actor ActivityActor, cause error) {
	completedAt := s.now()
	batch.Status = models.BatchStatusFailed
	batch.CompletedAt = &completedAt
	if err := s.batches.Update(ctx, &batch); err != nil {
		s.logger.Error().Err(err).Uint("batch_id", batch.ID).Msg("failed to mark grading run failed")
	}

	observability.BatchesFinished().WithLabelValues(models.BatchStatusFailed).Inc()

	s.publish(ctx, dto.ProgressEvent{
		BatchID:    batch.ID,
		Stage:      dto.ProgressStageFailed,
		TotalCount: batch.SubmissionCount,
	})

	s.recordRunActivity(ctx, actor, batch.ID, models.ActionRunFailed, map[string]interface{}{
		"error": cause.Error(),
	})

	s.logger.Error().Err(cause).Uint("batch_id", batch.ID).Msg("grading run failed")
}

func (s *gradingRunService) publish(ctx context.Context, event dto.ProgressEvent) {
	if s.progress == nil {
		return
	}

	if event.SentAt.IsZero() {
		event.SentAt = s.now()
	}

	s.progress.Publish(ctx, event)
}

func (s *gradingRunService) recordRunActivity(ctx context.Context, actor ActivityActor, batchID uint, action string, metadata map[string]interface{}) {
	if s.activity == nil {
		return
	}

	id := batchID
	if _, err := s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     action,
		EntityType: models.EntityBatch,
		EntityID:   &id,
		BatchID:    &id,
		Metadata:   metadata,
	}); err != nil {
		s.logger.Warn().Err(err).Uint("batch_id", batchID).Str("action", action).Msg("failed to record run activity")
	}
}

func parseErrorKind(err error) string {
	var parseErr *notebook.ParseError
	if !errors.As(err, &parseErr) {
		return ""
	}

	if errors.Is(parseErr.Reason, notebook.ErrMissingCellArray) {
		return models.ParseErrorMissingCellArray
	}

	return models.ParseErrorNotJSON
}

func jsonValue(v interface{}) (datatypes.JSON, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}

	return datatypes.JSON(data), nil
}

func jsonStringList(items []string) datatypes.JSON {
	if len(items) == 0 {
		return nil
	}

	data, err := json.Marshal(items)
	if err != nil {
		return nil
	}

	return datatypes.JSON(data)
}
