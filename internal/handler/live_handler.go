package handler

import (
	"learnlink-be/internal/pkg/logger"
	"learnlink-be/internal/pkg/serverutils"
	internalWS "learnlink-be/internal/websocket"
	"learnlink-be/pkg/events"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

type LiveHandler struct {
	hub       *internalWS.Hub
	publisher events.Publisher
	jwtSecret string
	debug     bool
	logger    logger.ILogger
}

// NewLiveHandler builds the live channel endpoints. debug enables the event
// trigger used to exercise invalidation by hand.
func NewLiveHandler(hub *internalWS.Hub, publisher events.Publisher, jwtSecret string, debug bool, log logger.ILogger) *LiveHandler {
	return &LiveHandler{
		hub:       hub,
		publisher: publisher,
		jwtSecret: jwtSecret,
		debug:     debug,
		logger:    log,
	}
}

func (h *LiveHandler) RegisterRoutes(router fiber.Router, jwtMiddleware fiber.Handler) {
	live := router.Group("/live/v1")
	live.Get("/ws", h.ServeWs)
	live.Get("/status", jwtMiddleware, h.Status)

	if h.debug {
		live.Post("/debug/events", jwtMiddleware, h.DebugTriggerEvent)
	}
}

// ServeWs upgrades an authenticated request to the live channel. Browsers
// cannot set headers on a websocket handshake, so the token may come in the
// "token" query parameter.
func (h *LiveHandler) ServeWs(c *fiber.Ctx) error {
	tokenStr := c.Query("token")
	if tokenStr == "" {
		authHeader := c.Get("Authorization")
		if len(authHeader) > 7 && authHeader[:7] == "Bearer " {
			tokenStr = authHeader[7:]
		}
	}
	if tokenStr == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "Missing token (Query 'token' or Header 'Authorization')")
	}

	userID, err := serverutils.ParseUserID(tokenStr, h.jwtSecret)
	if err != nil {
		h.logger.Warn("LiveHandler", "Invalid token in WS handshake", map[string]interface{}{"error": err.Error()})
		return fiber.NewError(fiber.StatusUnauthorized, "Invalid token")
	}

	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}

	return websocket.New(func(conn *websocket.Conn) {
		h.logger.Info("LiveHandler", "Starting live session", map[string]interface{}{"user_id": userID})
		internalWS.ServeWs(h.hub, conn, userID)
		h.logger.Info("LiveHandler", "Live session ended", map[string]interface{}{"user_id": userID})
	})(c)
}

func (h *LiveHandler) Status(c *fiber.Ctx) error {
	return c.JSON(serverutils.SuccessResponse("Live status", fiber.Map{
		"connections": h.hub.Connected(serverutils.UserID(c)),
	}))
}

type debugEventRequest struct {
	Type          string `json:"type" validate:"required"`
	CounterpartID string `json:"counterpart_id" validate:"required"`
	SubjectID     string `json:"subject_id"`
}

// DebugTriggerEvent publishes a connection event as if the caller had made
// the change.
func (h *LiveHandler) DebugTriggerEvent(c *fiber.Ctx) error {
	var req debugEventRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if err := serverutils.ValidateRequest(req); err != nil {
		return err
	}

	evt := events.NewConnectionEvent(req.Type, serverutils.UserID(c), req.CounterpartID, req.SubjectID)
	if err := h.publisher.Publish(c.UserContext(), evt); err != nil {
		return err
	}

	return c.JSON(serverutils.SuccessResponse("Event published", evt.Data))
}
