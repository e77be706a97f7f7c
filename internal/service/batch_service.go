package service

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"mime/multipart"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"gorm.io/gorm"

	"github.com/noah-isme/nilai-go-api/internal/archive"
	"github.com/noah-isme/nilai-go-api/internal/dto"
	"github.com/noah-isme/nilai-go-api/internal/models"
	"github.com/noah-isme/nilai-go-api/internal/notebook"
	"github.com/noah-isme/nilai-go-api/internal/repository"
)

const defaultMaxArchiveBytes int64 = 100 * 1024 * 1024

var (
	// ErrBatchNotFound indicates the grading batch does not exist.
	ErrBatchNotFound = errors.New("grading batch not found")
	// ErrArchiveRequired signals that the request did not include an archive upload.
	ErrArchiveRequired = errors.New("notebook archive is required")
	// ErrArchiveTooLarge is returned when the upload exceeds the configured size limit.
	ErrArchiveTooLarge = errors.New("archive exceeds the upload size limit")
	// ErrNotZipArchive is returned when the upload is not a valid ZIP file.
	ErrNotZipArchive = errors.New("archive must be a ZIP file")
	// ErrDuplicateArchive indicates an identical archive was already uploaded.
	ErrDuplicateArchive = errors.New("an identical archive was already uploaded")
)

// BatchService ingests notebook archives and exposes the resulting batches.
type BatchService interface {
	Upload(ctx context.Context, payload dto.BatchUploadRequest, file *multipart.FileHeader, actor ActivityActor) (dto.BatchResponse, error)
	List(ctx context.Context, req dto.BatchListRequest) (dto.BatchListResponse, error)
	Get(ctx context.Context, id uint) (dto.BatchResponse, error)
	Results(ctx context.Context, batchID uint, filter dto.SubmissionFilter) ([]dto.SubmissionResponse, error)
}

type batchService struct {
	batches     repository.BatchRepository
	submissions repository.SubmissionRepository
	criteria    repository.CriteriaSetRepository
	validator   *validator.Validate
	uploader    FileUploader
	activity    ActivityRecorder
	logger      zerolog.Logger
	maxBytes    int64
}

// NewBatchService constructs a BatchService implementation. The uploader may
// be nil; archives are then kept only in the database. A non-positive
// maxArchiveBytes falls back to the 100 MB default.
func NewBatchService(
	batchRepo repository.BatchRepository,
	submissionRepo repository.SubmissionRepository,
	criteriaRepo repository.CriteriaSetRepository,
	validate *validator.Validate,
	uploader FileUploader,
	activity ActivityRecorder,
	logger zerolog.Logger,
	maxArchiveBytes int64,
) BatchService {
	if maxArchiveBytes <= 0 {
		maxArchiveBytes = defaultMaxArchiveBytes
	}

	return &batchService{
		batches:     batchRepo,
		submissions: submissionRepo,
		criteria:    criteriaRepo,
		validator:   validate,
		uploader:    uploader,
		activity:    activity,
		logger:      logger.With().Str("component", "batch_service").Logger(),
		maxBytes:    maxArchiveBytes,
	}
}

func (s *batchService) Upload(ctx context.Context, payload dto.BatchUploadRequest, file *multipart.FileHeader, actor ActivityActor) (dto.BatchResponse, error) {
	tracer := otel.Tracer("github.com/noah-isme/nilai-go-api/internal/service/batch")
	ctx, span := tracer.Start(ctx, "batch.upload")
	span.SetAttributes(
		attribute.Int64("batch.actor_id", int64(actor.ID)),
	)
	defer span.End()

	if err := s.validator.Struct(payload); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "validation_failed")
		return dto.BatchResponse{}, err
	}

	if file == nil {
		return dto.BatchResponse{}, ErrArchiveRequired
	}

	if file.Size > s.maxBytes {
		span.SetStatus(codes.Error, "archive_too_large")
		return dto.BatchResponse{}, ErrArchiveTooLarge
	}

	data, err := readArchiveUpload(file, s.maxBytes)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "archive_read_failed")
		return dto.BatchResponse{}, err
	}

	if err := ensureZipArchive(file.Filename, data); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "unsupported_archive_type")
		return dto.BatchResponse{}, err
	}

	checksum := sha256Hex(data)
	if _, err := s.batches.GetByChecksum(ctx, checksum); err == nil {
		span.SetStatus(codes.Error, "duplicate_archive")
		return dto.BatchResponse{}, ErrDuplicateArchive
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		span.RecordError(err)
		span.SetStatus(codes.Error, "checksum_lookup_failed")
		return dto.BatchResponse{}, err
	}

	if payload.CriteriaSetID != nil {
		if _, err := s.criteria.GetByID(ctx, *payload.CriteriaSetID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				span.SetStatus(codes.Error, "criteria_set_not_found")
				return dto.BatchResponse{}, ErrCriteriaSetNotFound
			}
			span.RecordError(err)
			span.SetStatus(codes.Error, "criteria_lookup_failed")
			return dto.BatchResponse{}, err
		}
	}

	notebooks, err := archive.ExtractNotebooks(data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "archive_extraction_failed")
		return dto.BatchResponse{}, err
	}

	span.SetAttributes(attribute.Int("batch.notebook_count", len(notebooks)))

	var archiveURL string
	if s.uploader != nil {
		archiveURL, err = s.uploader.Upload(ctx, file.Filename, bytes.NewReader(data))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, "archive_upload_failed")
			return dto.BatchResponse{}, fmt.Errorf("failed to upload archive: %w", err)
		}
	}

	batch := models.GradingBatch{
		Title:           strings.TrimSpace(payload.Title),
		ArchiveName:     file.Filename,
		ArchiveURL:      archiveURL,
		Checksum:        checksum,
		Status:          models.BatchStatusPending,
		CriteriaSetID:   payload.CriteriaSetID,
		SubmissionCount: len(notebooks),
		UploadedBy:      actor.ID,
	}

	if err := s.batches.Create(ctx, &batch); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch_create_failed")
		return dto.BatchResponse{}, err
	}

	submissions, err := buildSubmissions(batch.ID, notebooks)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission_build_failed")
		return dto.BatchResponse{}, err
	}

	if err := s.submissions.CreateMany(ctx, submissions); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "submission_create_failed")
		return dto.BatchResponse{}, err
	}

	stored, err := s.batches.GetByID(ctx, batch.ID)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "batch_fetch_failed")
		return dto.BatchResponse{}, err
	}

	s.recordBatchActivity(ctx, actor, stored, len(notebooks))

	s.logger.Info().
		Uint("batch_id", stored.ID).
		Str("archive", stored.ArchiveName).
		Int("submissions", len(notebooks)).
		Msg("notebook archive ingested")

	return dto.NewBatchResponse(stored), nil
}

func (s *batchService) List(ctx context.Context, req dto.BatchListRequest) (dto.BatchListResponse, error) {
	filter := repository.BatchFilter{
		Page:     req.Page,
		PageSize: req.PageSize,
		Status:   strings.TrimSpace(req.Status),
	}

	batches, total, err := s.batches.List(ctx, filter)
	if err != nil {
		return dto.BatchListResponse{}, err
	}

	pagination := dto.PaginationMeta{
		Page:       maxInt(req.Page, 1),
		PageSize:   req.PageSize,
		TotalItems: total,
	}
	if req.PageSize > 0 {
		pagination.TotalPages = int(math.Ceil(float64(total) / float64(req.PageSize)))
	} else {
		pagination.TotalPages = 1
	}

	return dto.BatchListResponse{
		Items:      dto.NewBatchResponseSlice(batches),
		Pagination: pagination,
	}, nil
}

func (s *batchService) Get(ctx context.Context, id uint) (dto.BatchResponse, error) {
	batch, err := s.batches.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.BatchResponse{}, ErrBatchNotFound
		}
		return dto.BatchResponse{}, err
	}

	return dto.NewBatchResponse(batch), nil
}

func (s *batchService) Results(ctx context.Context, batchID uint, filter dto.SubmissionFilter) ([]dto.SubmissionResponse, error) {
	if _, err := s.batches.GetByID(ctx, batchID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrBatchNotFound
		}
		return nil, err
	}

	submissions, err := s.submissions.List(ctx, repository.SubmissionFilter{
		BatchID: &batchID,
		Status:  filter.Status,
	})
	if err != nil {
		return nil, err
	}

	return dto.NewSubmissionResponseSlice(submissions), nil
}

func (s *batchService) recordBatchActivity(ctx context.Context, actor ActivityActor, batch models.GradingBatch, count int) {
	if s.activity == nil {
		return
	}

	batchID := batch.ID
	if _, err := s.activity.Record(ctx, ActivityEntry{
		ActorID:    actor.ID,
		ActorRole:  actor.Role,
		Action:     models.ActionBatchUploaded,
		EntityType: models.EntityBatch,
		EntityID:   &batchID,
		BatchID:    &batchID,
		Metadata: map[string]interface{}{
			"archive_name": batch.ArchiveName,
			"submissions":  count,
		},
	}); err != nil {
		s.logger.Warn().Err(err).Uint("batch_id", batch.ID).Msg("failed to record batch activity")
	}
}

func buildSubmissions(batchID uint, notebooks []archive.NotebookFile) ([]*models.Submission, error) {
	submissions := make([]*models.Submission, 0, len(notebooks))
	for _, nb := range notebooks {
		compressed, err := archive.Compress(nb.Content)
		if err != nil {
			return nil, fmt.Errorf("failed to compress notebook %s: %w", nb.Name, err)
		}

		submissions = append(submissions, &models.Submission{
			BatchID:     batchID,
			StudentName: notebook.StudentName(nb.Name),
			FileName:    nb.Name,
			RawSource:   compressed,
			RawSize:     int64(len(nb.Content)),
			Checksum:    sha256Hex(nb.Content),
			Status:      models.SubmissionStatusReceived,
		})
	}

	return submissions, nil
}

func readArchiveUpload(file *multipart.FileHeader, limit int64) ([]byte, error) {
	src, err := file.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read archive: %w", err)
	}

	if int64(len(data)) > limit {
		return nil, ErrArchiveTooLarge
	}

	if len(data) == 0 {
		return nil, ErrArchiveRequired
	}

	return data, nil
}

func ensureZipArchive(filename string, data []byte) error {
	if ext := strings.ToLower(filepath.Ext(filename)); ext != ".zip" {
		return ErrNotZipArchive
	}

	mime := mimetype.Detect(data)
	if !mime.Is("application/zip") && !mime.Is("application/x-zip-compressed") {
		return ErrNotZipArchive
	}

	return nil
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
