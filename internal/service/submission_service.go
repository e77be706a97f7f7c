package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/noah-isme/nilai-go-api/internal/dto"
	"github.com/noah-isme/nilai-go-api/internal/grading"
	"github.com/noah-isme/nilai-go-api/internal/models"
	"github.com/noah-isme/nilai-go-api/internal/notebook"
	"github.com/noah-isme/nilai-go-api/internal/repository"
)

const maxNotebookUploadBytes int64 = 25 * 1024 * 1024

var (
	// ErrSubmissionNotFound indicates a submission could not be found.
	ErrSubmissionNotFound = errors.New("submission not found")
	// ErrSubmissionNotGraded is returned when an override targets a submission without a grade.
	ErrSubmissionNotGraded = errors.New("submission has not been graded")
	// ErrCriterionNotFound indicates the override names a criterion absent from the grade record.
	ErrCriterionNotFound = errors.New("criterion not found on grade record")
	// ErrScoreExceedsMax is returned when an override awards more than the criterion maximum.
	ErrScoreExceedsMax = errors.New("score exceeds the criterion maximum")
	// ErrNotebookFileRequired signals that the request did not include a notebook upload.
	ErrNotebookFileRequired = errors.New("notebook file is required")
	// ErrNotNotebookFile is returned when the upload is not an .ipynb file.
	ErrNotNotebookFile = errors.New("upload must be an .ipynb notebook")
	// ErrNotebookTooLarge is returned when a single notebook exceeds the 25 MB limit.
	ErrNotebookTooLarge = errors.New("notebook exceeds the upload size limit")
)

// SubmissionService exposes stored submissions, manual score overrides, and
// synchronous ad-hoc grading of a single notebook.
type SubmissionService interface {
	Get(ctx context.Context, id uint) (dto.SubmissionResponse, error)
	List(ctx context.Context, filter dto.SubmissionFilter) ([]dto.SubmissionResponse, error)
	OverrideScore(ctx context.Context, submissionID uint, payload dto.ScoreOverrideRequest, actor ActivityActor) (dto.SubmissionResponse, error)
	GradeNotebook(ctx context.Context, payload dto.GradeUploadRequest, file *multipart.FileHeader) (dto.NotebookGradeResponse, error)
}

type submissionService struct {
	submissions repository.SubmissionRepository
	grades      repository.GradeRepository
	criteria    CriteriaService
	engine      *grading.Engine
	validator   *validator.Validate
	activity    ActivityRecorder
	logger      zerolog.Logger
	now         func() time.Time
}

// NewSubmissionService constructs a SubmissionService implementation.
func NewSubmissionService(
	submissionRepo repository.SubmissionRepository,
	gradeRepo repository.GradeRepository,
	criteriaService CriteriaService,
	engine *grading.Engine,
	validate *validator.Validate,
	activity ActivityRecorder,
	logger zerolog.Logger,
) SubmissionService {
	return &submissionService{
		submissions: submissionRepo,
		grades:      gradeRepo,
		criteria:    criteriaService,
		engine:      engine,
		validator:   validate,
		activity:    activity,
		logger:      logger.With().Str("component", "submission_service").Logger(),
		now:         time.Now,
	}
}

func (s *submissionService) Get(ctx context.Context, id uint) (dto.SubmissionResponse, error) {
	submission, err := s.submissions.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		return dto.SubmissionResponse{}, err
	}

	return dto.NewSubmissionResponse(submission), nil
}

func (s *submissionService) List(ctx context.Context, filter dto.SubmissionFilter) ([]dto.SubmissionResponse, error) {
	if err := s.validator.Struct(filter); err != nil {
		return nil, err
	}

	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{
		BatchID: filter.BatchID,
		Status:  filter.Status,
	})
	if err != nil {
		return nil, err
	}

	return dto.NewSubmissionResponseSlice(submissions), nil
}

func (s *submissionService) OverrideScore(ctx context.Context, submissionID uint, payload dto.ScoreOverrideRequest, actor ActivityActor) (dto.SubmissionResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/nilai-go-api/internal/service/submission")
	ctx, span := tracer.Start(ctx, "submission.override_score")
	span.SetAttributes(
		attribute.Int64("submission.id", int64(submissionID)),
		attribute.Int64("submission.actor_id", int64(actor.ID)),
	)
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.SubmissionResponse{}, err
	}

	submission, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "submission_not_found")
			return dto.SubmissionResponse{}, ErrSubmissionNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission_lookup_failed")
		return dto.SubmissionResponse{}, err
	}

	if submission.Status != models.SubmissionStatusGraded || submission.Grade == nil {
		span.SetStatus(codes.Error, "submission_not_graded")
		return dto.SubmissionResponse{}, ErrSubmissionNotGraded
	}

	record := *submission.Grade
	var scores []grading.CriterionScore
	if err := json.Unmarshal(record.Scores, &scores); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "score_decode_failed")
		return dto.SubmissionResponse{}, fmt.Errorf("failed to decode stored scores: %w", err)
	}

	index := -1
	for i, score := range scores {
		if strings.EqualFold(score.Criterion.Name, payload.CriterionName) {
			index = i
			break
		}
	}
	if index == -1 {
		span.SetStatus(codes.Error, "criterion_not_found")
		return dto.SubmissionResponse{}, ErrCriterionNotFound
	}

	target := scores[index]
	newPoints := *payload.Points
	if newPoints > target.Criterion.MaxPoints+1e-9 {
		span.SetStatus(codes.Error, "score_exceeds_max")
		return dto.SubmissionResponse{}, ErrScoreExceedsMax
	}

	if math.Abs(target.PointsAwarded-newPoints) < 1e-6 {
		span.SetAttributes(attribute.Bool("submission.idempotent", true))
		return dto.NewSubmissionResponse(submission), nil
	}

	previous := target.PointsAwarded
	scores[index].PointsAwarded = newPoints

	var total float64
	for _, score := range scores {
		total += score.PointsAwarded
	}
	total = math.Round(total*100) / 100

	percentage := 0.0
	if record.MaxPossible > 0 {
		percentage = math.Round(total/record.MaxPossible*100*100) / 100
	}

	encoded, err := jsonValue(scores)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "score_encode_failed")
		return dto.SubmissionResponse{}, fmt.Errorf("encode criterion scores: %w", err)
	}

	record.Scores = encoded
	record.TotalPoints = total
	record.Percentage = percentage
	record.LetterGrade = grading.LetterGrade(percentage)
	record.Overridden = true

	if err := s.grades.Update(ctx, &record); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "grade_update_failed")
		return dto.SubmissionResponse{}, err
	}

	adjustment := models.GradeAdjustment{
		GradeRecordID:  record.ID,
		CriterionName:  target.Criterion.Name,
		PreviousPoints: previous,
		NewPoints:      newPoints,
		Reason:         strings.TrimSpace(payload.Reason),
		AdjustedBy:     actor.ID,
	}
	if err := s.grades.CreateAdjustment(ctx, &adjustment); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "adjustment_create_failed")
		return dto.SubmissionResponse{}, err
	}

	s.recordOverrideActivity(ctx, actor, submission, record, target.Criterion.Name, previous, newPoints)

	updated, err := s.submissions.GetByID(ctx, submissionID)
	if err != nil {
		return dto.SubmissionResponse{}, err
	}

	s.logger.Info().
		Uint("submission_id", submissionID).
		Str("criterion", target.Criterion.Name).
		Float64("previous", previous).
		Float64("new", newPoints).
		Msg("score overridden")

	return dto.NewSubmissionResponse(updated), nil
}

func (s *submissionService) GradeNotebook(ctx context.Context, payload dto.GradeUploadRequest, file *multipart.FileHeader) (dto.NotebookGradeResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/nilai-go-api/internal/service/submission")
	ctx, span := tracer.Start(ctx, "submission.grade_notebook")
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.NotebookGradeResponse{}, err
	}

	if file == nil {
		return dto.NotebookGradeResponse{}, ErrNotebookFileRequired
	}

	if file.Size > maxNotebookUploadBytes {
		span.SetStatus(codes.Error, "notebook_too_large")
		return dto.NotebookGradeResponse{}, ErrNotebookTooLarge
	}

	if ext := strings.ToLower(filepath.Ext(file.Filename)); ext != ".ipynb" {
		span.SetStatus(codes.Error, "unsupported_file_type")
		return dto.NotebookGradeResponse{}, ErrNotNotebookFile
	}

	data, err := readNotebookUpload(file)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "notebook_read_failed")
		return dto.NotebookGradeResponse{}, err
	}

	criteria, err := s.criteria.ResolveCriteria(ctx, payload.CriteriaSetID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "criteria_resolution_failed")
		return dto.NotebookGradeResponse{}, err
	}

	doc, err := notebook.Parse(data, file.Filename)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "notebook_parse_failed")
		return dto.NotebookGradeResponse{}, err
	}

	result := s.engine.Grade(doc, criteria)

	span.SetAttributes(attribute.Float64("submission.percentage", result.Percentage))

	s.logger.Info().
		Str("file", file.Filename).
		Float64("percentage", result.Percentage).
		Str("letter", result.LetterGrade).
		Msg("notebook graded synchronously")

	return dto.NewNotebookGradeResponse(result, doc.Warnings), nil
}

func (s *submissionService) recordOverrideActivity(ctx context.Context, actor ActivityActor, submission models.Submission, record models.GradeRecord, criterion string, previous, newPoints float64) {
	if s.activity == nil {
		return
	}

	recordID := record.ID
	batchID := submission.BatchID
	if _, err := s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     models.ActionScoreOverridden,
		EntityType: models.EntityGradeRecord,
		EntityID:   &recordID,
		BatchID:    &batchID,
		Metadata: map[string]interface{}{
			"criterion": criterion,
			"previous":  previous,
			"new":       newPoints,
		},
	}); err != nil {
		s.logger.Warn().Err(err).Uint("submission_id", submission.ID).Msg("failed to record override activity")
	}
}

func readNotebookUpload(file *multipart.FileHeader) ([]byte, error) {
	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open notebook: %w", err)
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxNotebookUploadBytes+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read notebook: %w", err)
	}

	if int64(len(data)) > maxNotebookUploadBytes {
		return nil, ErrNotebookTooLarge
	}

	if len(data) == 0 {
		return nil, ErrNotebookFileRequired
	}

	return data, nil
}
