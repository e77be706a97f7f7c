package handler

import (
	"errors"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/nilai-go-api/internal/dto"
	"github.com/noah-isme/nilai-go-api/internal/grading"
	"github.com/noah-isme/nilai-go-api/internal/service"
	"github.com/noah-isme/nilai-go-api/internal/utils"
)

// Criteria files are small TOML documents; anything past this is rejected.
const maxCriteriaFileBytes = 1 << 20

// CriteriaHandler serves rubric management endpoints.
type CriteriaHandler struct {
	service service.CriteriaService
	logger  zerolog.Logger
}

// NewCriteriaHandler constructs the handler instance.
func NewCriteriaHandler(service service.CriteriaService, logger zerolog.Logger) *CriteriaHandler {
	return &CriteriaHandler{
		service: service,
		logger:  logger.With().Str("component", "criteria_handler").Logger(),
	}
}

// Register wires the open criteria routes.
func (h *CriteriaHandler) Register(router fiber.Router) {
	router.Get("", h.list)
	router.Get("/:id", h.get)
}

// RegisterProtected wires the rubric mutation routes, restricted to graders.
func (h *CriteriaHandler) RegisterProtected(router fiber.Router) {
	router.Post("", h.create)
	router.Post("/import", h.importTOML)
	router.Put("/:id", h.update)
	router.Delete("/:id", h.remove)
}

func (h *CriteriaHandler) list(c *fiber.Ctx) error {
	sets, err := h.service.List(c.Context())
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "criteria sets retrieved", sets)
}

func (h *CriteriaHandler) get(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid criteria set id")
	}

	set, err := h.service.Get(c.Context(), id)
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "criteria set retrieved", set)
}

func (h *CriteriaHandler) create(c *fiber.Ctx) error {
	var payload dto.CriteriaSetCreateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	set, err := h.service.Create(c.Context(), payload, activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendCreated(c, "criteria set created", set)
}

func (h *CriteriaHandler) update(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid criteria set id")
	}

	var payload dto.CriteriaSetUpdateRequest
	if err := c.BodyParser(&payload); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid request body")
	}

	set, err := h.service.Update(c.Context(), id, payload, activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "criteria set updated", set)
}

func (h *CriteriaHandler) remove(c *fiber.Ctx) error {
	id, err := parseUintParam(c, "id")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid criteria set id")
	}

	if err := h.service.Delete(c.Context(), id, activityActorFromContext(c)); err != nil {
		return h.handleError(c, err)
	}

	return utils.SendSuccess(c, "criteria set deleted", nil)
}

func (h *CriteriaHandler) importTOML(c *fiber.Ctx) error {
	name := strings.TrimSpace(c.FormValue("name"))
	if name == "" {
		return utils.SendError(c, fiber.StatusBadRequest, "criteria set name is required")
	}

	file, err := c.FormFile("file")
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "criteria file is required")
	}
	if file.Size > maxCriteriaFileBytes {
		return utils.SendError(c, fiber.StatusRequestEntityTooLarge, "criteria file exceeds the size limit")
	}

	src, err := file.Open()
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "criteria file could not be read")
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, maxCriteriaFileBytes))
	if err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "criteria file could not be read")
	}

	set, err := h.service.ImportTOML(c.Context(), name, data, activityActorFromContext(c))
	if err != nil {
		return h.handleError(c, err)
	}

	requestLogger(h.logger, c).Info().
		Uint("criteria_set_id", set.ID).
		Str("name", set.Name).
		Msg("criteria set imported")

	return utils.SendCreated(c, "criteria set imported", set)
}

func (h *CriteriaHandler) handleError(c *fiber.Ctx, err error) error {
	var validationErrors validator.ValidationErrors
	switch {
	case errors.Is(err, service.ErrCriteriaSetNotFound):
		return utils.SendError(c, fiber.StatusNotFound, "criteria set not found")
	case errors.Is(err, service.ErrCriteriaNameTaken):
		return utils.SendError(c, fiber.StatusConflict, "criteria set name already in use")
	case errors.Is(err, service.ErrDefaultCriteriaProtected):
		return utils.SendError(c, fiber.StatusForbidden, "default criteria set cannot be deleted")
	case errors.Is(err, grading.ErrNoCriteria):
		return utils.SendError(c, fiber.StatusBadRequest, "criteria list is empty")
	case errors.Is(err, grading.ErrCriterionNameRequired), errors.Is(err, grading.ErrCriterionMaxPoints):
		return utils.SendError(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, grading.ErrInvalidTOML):
		return utils.SendErrorWithDetails(c, fiber.StatusBadRequest, "criteria file is not valid toml", err.Error())
	case errors.As(err, &validationErrors):
		return utils.SendError(c, fiber.StatusBadRequest, validationErrors.Error())
	default:
		h.logger.Error().Err(err).Msg("internal server error")
		return utils.SendError(c, fiber.StatusInternalServerError, "internal server error")
	}
}
