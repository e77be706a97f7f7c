package handler

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/noah-isme/nilai-go-api/internal/service"
)

// ProgressHandler wires the per-batch grading progress websocket.
type ProgressHandler struct {
	service service.ProgressService
	logger  zerolog.Logger
}

// NewProgressHandler constructs the handler instance.
func NewProgressHandler(service service.ProgressService, logger zerolog.Logger) *ProgressHandler {
	return &ProgressHandler{
		service: service,
		logger:  logger.With().Str("component", "progress_handler").Logger(),
	}
}

// Register binds the websocket route under the batches group.
func (h *ProgressHandler) Register(router fiber.Router) {
	router.Use("/:id/progress/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	router.Get("/:id/progress/ws", websocket.New(h.handleConnection))
}

func (h *ProgressHandler) handleConnection(conn *websocket.Conn) {
	batchID, err := strconv.ParseUint(conn.Params("id"), 10, 64)
	if err != nil || batchID == 0 {
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(fiber.StatusBadRequest, "invalid batch id"))
		_ = conn.Close()
		return
	}

	opts := service.ProgressConnectionOptions{
		BatchID: uint(batchID),
		UserID:  websocketUserID(conn),
	}

	h.logger.Info().Uint64("batch_id", batchID).Str("user_id", opts.UserID).Msg("progress websocket connected")
	h.service.ServeConnection(conn, opts)
	h.logger.Info().Uint64("batch_id", batchID).Msg("progress websocket disconnected")
}

func websocketUserID(conn *websocket.Conn) string {
	if value := conn.Locals("user_id"); value != nil {
		switch v := value.(type) {
		case float64:
			return fmt.Sprintf("%d", uint(v))
		case uint:
			return fmt.Sprintf("%d", v)
		case int:
			return fmt.Sprintf("%d", v)
		case string:
			return strings.TrimSpace(v)
		}
	}
	return ""
}
