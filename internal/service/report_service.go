package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/noah-isme/nilai-go-api/internal/grading"
	"github.com/noah-isme/nilai-go-api/internal/models"
	"github.com/noah-isme/nilai-go-api/internal/observability"
	"github.com/noah-isme/nilai-go-api/internal/report"
	"github.com/noah-isme/nilai-go-api/internal/repository"
)

var (
	// ErrUnsupportedReportFormat indicates the requested format is not one of csv, json, or markdown.
	ErrUnsupportedReportFormat = errors.New("unsupported report format")
	// ErrReportStorageUnavailable is returned when storing was requested but no uploader is configured.
	ErrReportStorageUnavailable = errors.New("report storage is not configured")
)

// FileUploader abstracts uploading binary data and returning a URL.
type FileUploader interface {
	Upload(ctx context.Context, name string, reader io.Reader) (string, error)
}

// ReportDocument is a rendered report ready to send to the client. When the
// caller asked to store it, StoredURL carries the upload location.
type ReportDocument struct {
	FileName    string
	Format      string
	ContentType string
	Content     []byte
	StoredURL   string
}

// ReportService renders batch results as downloadable documents.
type ReportService interface {
	Generate(ctx context.Context, batchID uint, format string, store bool, actor ActivityActor) (ReportDocument, error)
}

type reportService struct {
	batches     repository.BatchRepository
	submissions repository.SubmissionRepository
	uploader    FileUploader
	activity    ActivityRecorder
	logger      zerolog.Logger
	now         func() time.Time
}

// NewReportService constructs a ReportService implementation. The uploader
// may be nil; storing reports then returns ErrReportStorageUnavailable.
func NewReportService(
	batchRepo repository.BatchRepository,
	submissionRepo repository.SubmissionRepository,
	uploader FileUploader,
	activity ActivityRecorder,
	logger zerolog.Logger,
) ReportService {
	return &reportService{
		batches:     batchRepo,
		submissions: submissionRepo,
		uploader:    uploader,
		activity:    activity,
		logger:      logger.With().Str("component", "report_service").Logger(),
		now:         time.Now,
	}
}

func (s *reportService) Generate(ctx context.Context, batchID uint, format string, store bool, actor ActivityActor) (ReportDocument, error) {
	tracer := otel.Tracer("github.com/noah-isme/nilai-go-api/internal/service/report")
	ctx, span := tracer.Start(ctx, "report.generate")
	span.SetAttributes(
		attribute.Int64("report.batch_id", int64(batchID)),
		attribute.Bool("report.store", store),
	)
	defer span.End()

	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = report.FormatCSV
	}
	span.SetAttributes(attribute.String("report.format", format))

	if format != report.FormatCSV && format != report.FormatJSON && format != report.FormatMarkdown {
		span.SetStatus(codes.Error, "unsupported_format")
		return ReportDocument{}, ErrUnsupportedReportFormat
	}

	if store && s.uploader == nil {
		span.SetStatus(codes.Error, "storage_unavailable")
		return ReportDocument{}, ErrReportStorageUnavailable
	}

	batch, err := s.batches.GetByID(ctx, batchID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			span.SetStatus(codes.Error, "batch_not_found")
			return ReportDocument{}, ErrBatchNotFound
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch_lookup_failed")
		return ReportDocument{}, err
	}

	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{BatchID: &batch.ID})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission_list_failed")
		return ReportDocument{}, err
	}

	results := resultsFromSubmissions(submissions)
	span.SetAttributes(attribute.Int("report.result_count", len(results)))

	var buf bytes.Buffer
	var contentType string
	switch format {
	case report.FormatCSV:
		contentType = "text/csv"
		err = report.WriteCSV(&buf, results)
	case report.FormatJSON:
		contentType = "application/json"
		err = report.WriteJSON(&buf, results, s.now())
	case report.FormatMarkdown:
		contentType = "text/markdown"
		err = report.WriteMarkdown(&buf, results, s.now())
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "render_failed")
		return ReportDocument{}, err
	}

	doc := ReportDocument{
		FileName:    fmt.Sprintf("batch-%d-report.%s", batch.ID, reportExtension(format)),
		Format:      format,
		ContentType: contentType,
		Content:     buf.Bytes(),
	}

	if store {
		url, err := s.uploader.Upload(ctx, doc.FileName, bytes.NewReader(doc.Content))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "storage_failed")
			return ReportDocument{}, fmt.Errorf("failed to store report: %w", err)
		}
		doc.StoredURL = url
	}

	observability.ReportExports().WithLabelValues(format).Inc()

	s.recordReportActivity(ctx, actor, batch, doc)

	s.logger.Info().
		Uint("batch_id", batch.ID).
		Str("format", format).
		Int("results", len(results)).
		Bool("stored", doc.StoredURL != "").
		Msg("report generated")

	return doc, nil
}

func (s *reportService) recordReportActivity(ctx context.Context, actor ActivityActor, batch models.GradingBatch, doc ReportDocument) {
	if s.activity == nil {
		return
	}

	batchID := batch.ID
	metadata := map[string]interface{}{
		"format":    doc.Format,
		"file_name": doc.FileName,
	}
	if doc.StoredURL != "" {
		metadata["url"] = doc.StoredURL
	}

	if _, err := s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     models.ActionReportExported,
		EntityType: models.EntityBatch,
		EntityID:   &batchID,
		BatchID:    &batchID,
		Metadata:   metadata,
	}); err != nil {
		s.logger.Warn().Err(err).Uint("batch_id", batch.ID).Msg("failed to record report activity")
	}
}

// resultsFromSubmissions rebuilds engine results from stored grade records.
// Ungraded and ungradable submissions are left out of the report body.
func resultsFromSubmissions(submissions []models.Submission) []grading.Result {
	results := make([]grading.Result, 0, len(submissions))
	for _, sub := range submissions {
		if sub.Status != models.SubmissionStatusGraded || sub.Grade == nil {
			continue
		}

		record := *sub.Grade
		var scores []grading.CriterionScore
		if len(record.Scores) > 0 {
			if err := json.Unmarshal(record.Scores, &scores); err != nil {
				scores = nil
			}
		}

		results = append(results, grading.Result{
			StudentIdentifier: sub.StudentName,
			FileName:          sub.FileName,
			Scores:            scores,
			TotalPoints:       record.TotalPoints,
			MaxPossible:       record.MaxPossible,
			Percentage:        record.Percentage,
			LetterGrade:       record.LetterGrade,
			Feedback:          record.Feedback,
			Strengths:         record.StrengthList(),
			Improvements:      record.ImprovementList(),
		})
	}

	return results
}

func reportExtension(format string) string {
	if format == report.FormatMarkdown {
		return "md"
	}
	return format
}
