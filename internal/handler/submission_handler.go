package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/nilai-go-api/internal/dto"
	"github.com/noah-isme/nilai-go-api/internal/notebook"
	"github.com/noah-isme/nilai-go-api/internal/service"
	"github.com/noah-isme/nilai-go-api/internal/utils"
)

// SubmissionHandler serves individual submissions, score overrides, and the
// synchronous single-notebook grading endpoint.
type SubmissionHandler struct {
	service service.SubmissionService
	logger  zerolog.Logger
}

// NewSubmissionHandler constructs the handler instance.
func NewSubmissionHandler(service service.SubmissionService, logger zerolog.Logger) *SubmissionHandler {
	return &SubmissionHandler{
		service: service,
		logger:  logger.With().Str("component", "submission_handler").Logger(),
	}
}

// Register wires the open submission routes.
func (h *SubmissionHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/:id", h.get)
}

// RegisterProtected wires the synchronous grading route, which requires an
// authenticated caller.
func (h *SubmissionHandler) RegisterProtected(router fiber.Router) {
	router.Post("/grade", h.gradeNotebook)
}

// RegisterStaff wires the score override route, restricted to graders.
func (h *SubmissionHandler) RegisterStaff(router fiber.Router) {
	router.Patch("/:id/score", h.overrideScore)
}

func (h *SubmissionHandler) gradeNotebook(c *fiber.Ctx) error {
	file, err := c.FormFile("notebook")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "notebook file is required")
	}

	criteriaSetID, err := parseFormUint(c, "criteria_set_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid criteria_set_id")
	}

	result, err := h.service.GradeNotebook(c.Context(), dto.GradeUploadRequest{CriteriaSetID: criteriaSetID}, file)
	if err != nil {
		return h.handleError(c, err)
	}

	requestLogger(h.logger, c).Info().
		Str("filename", file.Filename).
		Float64("score", result.TotalPoints).
		Msg("notebook graded")

	return utils.SendSuccess(c, "notebook graded", result)
}

func (h *SubmissionHandler) list(c *fiber.Ctx) error {
	batchID, err := parseQueryUint(c, "batch_id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid batch_id")
	}

	filter := dto.SubmissionFilter{BatchID: batchID}
	if status := c.Query("status"); status != "" {
		filter.Status = &status
	}

	submissions, err := h.service.List(c.Context(), filter)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submissions retrieved", submissions)
}

func (h *SubmissionHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	submission, err := h.service.Get(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "submission retrieved", submission)
}

func (h *SubmissionHandler) overrideScore(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid submission id")
	}

	var payload dto.ScoreOverrideRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	submission, err := h.service.OverrideScore(c.Context(), id, payload, activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	requestLogger(h.logger, c).Info().
		Uint("submission_id", id).
		Str("criterion", payload.CriterionName).
		Msg("score overridden")

	return utils.SendSuccess(c, "score overridden", submission)
}

func (h *SubmissionHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	var parseErr *notebook.ParseError
	switch {
	case errors.Is(err, service.ErrSubmissionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "submission not found")
	case errors.Is(err, service.ErrSubmissionNotGraded):
		return utils.SendError(c, fiber.StatusConflict, "submission has not been graded")
	case errors.Is(err, service.ErrCriterionNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "criterion not found on grade record")
	case errors.Is(err, service.ErrScoreExceedsMax):
		return utils.SendError(c, fiber.StatusBadRequest, "score exceeds the criterion maximum")
	case errors.Is(err, service.ErrNotebookFileRequired):
		return utils.SendError(c, fiber.StatusBadRequest, "notebook file is required")
	case errors.Is(err, service.ErrNotNotebookFile):
		return utils.SendError(c, fiber.StatusBadRequest, "upload must be an .ipynb notebook")
	case errors.Is(err, service.ErrNotebookTooLarge):
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, "notebook exceeds the upload size limit")
	case errors.Is(err, service.ErrCriteriaSetNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "criteria set not found")
	case errors.Is(err, notebook.ErrNotJSON):
		return utils.SendError(c, fiber.StatusBadRequest, "notebook is not valid json")
	case errors.Is(err, notebook.ErrMissingCellArray):
		return utils.SendError(c, fiber.StatusBadRequest, "notebook has no cell array")
	case errors.As(err, &parseErr):
		return utils.SendError(c, fiber.StatusBadRequest, "notebook could not be parsed")
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
