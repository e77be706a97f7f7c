package handler

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/nilai-go-api/internal/archive"
	"github.com/noah-isme/nilai-go-api/internal/dto"
	"github.com/noah-isme/nilai-go-api/internal/service"
	"github.com/noah-isme/nilai-go-api/internal/utils"
)

// BatchHandler serves archive uploads, batch listing, grading run triggers,
// and report downloads.
type BatchHandler struct {
	batches service.BatchService
	runs    service.GradingRunService
	reports service.ReportService
	logger  zerolog.Logger
}

// NewBatchHandler constructs the handler instance.
func NewBatchHandler(batches service.BatchService, runs service.GradingRunService, reports service.ReportService, logger zerolog.Logger) *BatchHandler {
	return &BatchHandler{
		batches: batches,
		runs:    runs,
		reports: reports,
		logger:  logger.With().Str("component", "batch_handler").Logger(),
	}
}

// Register wires the open batch routes.
func (h *BatchHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/:id", h.get)
	router.Get("/:id/results", h.results)
	router.Get("/:id/report", h.report)
}

// RegisterProtected wires the batch routes that require authentication.
func (h *BatchHandler) RegisterProtected(router fiber.Router) {
	router.Post("", h.upload)
	router.Post("/:id/grade", h.grade)
}

func (h *BatchHandler) upload(c *fiber.Ctx) error {
	file, err := c.FormFile("archive")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "archive file is required")
	}

	criteriaSetID, err := parseFormUint(c, "criteria_set_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid criteria_set_id")
	}

	payload := dto.BatchUploadRequest{
		Title:         c.FormValue("title"),
		CriteriaSetID: criteriaSetID,
	}

	batch, err := h.batches.Upload(c.Context(), payload, file, activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	requestLogger(h.logger, c).Info().
		Uint("batch_id", batch.ID).
		Str("archive", batch.ArchiveName).
		Int("submissions", batch.SubmissionCount).
		Msg("batch uploaded")

	return utils.SendCreated(c, "batch uploaded", batch)
}

func (h *BatchHandler) list(c *fiber.Ctx) error {
	page, err := parseQueryInt(c, "page")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page")
	}
	if page <= 0 {
		page = 1
	}
	pageSize, err := parseQueryInt(c, "pageSize")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid page size")
	}
	if pageSize <= 0 {
		pageSize = 20
	}

	req := dto.BatchListRequest{
		Page:     page,
		PageSize: pageSize,
		Status:   c.Query("status"),
	}

	result, err := h.batches.List(c.Context(), req)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "batches retrieved", result)
}

func (h *BatchHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid batch id")
	}

	batch, err := h.batches.Get(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "batch retrieved", batch)
}

func (h *BatchHandler) grade(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid batch id")
	}

	var payload dto.GradeBatchRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&payload); err != nil {
			return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
		}
	}

	batch, err := h.runs.Trigger(c.Context(), id, payload, activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	requestLogger(h.logger, c).Info().
		Uint("batch_id", batch.ID).
		Bool("rerun", payload.Rerun).
		Msg("grading run accepted")

	return utils.SendSuccessWithStatus(c, fiber.StatusAccepted, "grading run started", batch)
}

func (h *BatchHandler) results(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid batch id")
	}

	filter := dto.SubmissionFilter{}
	if status := c.Query("status"); status != "" {
		filter.Status = &status
	}

	submissions, err := h.batches.Results(c.Context(), id, filter)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "batch results retrieved", submissions)
}

func (h *BatchHandler) report(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid batch id")
	}

	doc, err := h.reports.Generate(c.Context(), id, c.Query("format"), c.QueryBool("store"), activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	c.Set(fiber.HeaderContentType, doc.ContentType)
	c.Set(fiber.HeaderContentDisposition, fmt.Sprintf("attachment; filename=%q", doc.FileName))
	if doc.StoredURL != "" {
		c.Set("X-Report-URL", doc.StoredURL)
	}

	return c.Send(doc.Content)
}

func (h *BatchHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrBatchNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "batch not found")
	case errors.Is(err, service.ErrCriteriaSetNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "criteria set not found")
	case errors.Is(err, service.ErrArchiveRequired):
		return utils.SendError(c, fiber.StatusBadRequest, "archive file is required")
	case errors.Is(err, service.ErrNotZipArchive):
		return utils.SendError(c, fiber.StatusBadRequest, "archive must be a zip file")
	case errors.Is(err, service.ErrArchiveTooLarge):
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, "archive exceeds the upload size limit")
	case errors.Is(err, service.ErrDuplicateArchive):
		return utils.SendError(c, fiber.StatusConflict, "an identical archive was already uploaded")
	case errors.Is(err, archive.ErrInvalidArchive):
		return utils.SendError(c, fiber.StatusBadRequest, "invalid zip archive")
	case errors.Is(err, archive.ErrDangerousEntry):
		return utils.SendError(c, fiber.StatusBadRequest, "archive contains disallowed entries")
	case errors.Is(err, archive.ErrEntryTooLarge):
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, "archive entry exceeds the notebook size limit")
	case errors.Is(err, archive.ErrNoNotebooks):
		return utils.SendError(c, fiber.StatusBadRequest, "archive contains no notebooks")
	case errors.Is(err, service.ErrRunInProgress):
		return utils.SendError(c, fiber.StatusConflict, "grading run already in progress")
	case errors.Is(err, service.ErrBatchAlreadyGraded):
		return utils.SendError(c, fiber.StatusConflict, "batch already graded; request a rerun to grade it again")
	case errors.Is(err, service.ErrUnsupportedReportFormat):
		return utils.SendError(c, fiber.StatusBadRequest, "unsupported report format")
	case errors.Is(err, service.ErrReportStorageUnavailable):
		return utils.SendError(c, fiber.StatusServiceUnavailable, "report storage is not configured")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
