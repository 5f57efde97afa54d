package detectionHandler

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/sirupsen/logrus"

	"github.com/Sei0217/visually-impaired/internal/api/detection"
	detectionService "github.com/Sei0217/visually-impaired/internal/api/detection/service"
	"github.com/Sei0217/visually-impaired/internal/middleware"
	"github.com/Sei0217/visually-impaired/pkg/utils"
)

const DefaultRequestTimeout = 30 * time.Second

type DetectionHandler struct {
	log              *logrus.Logger
	validator        *validator.Validate
	middleware       middleware.Middleware
	detectionService detectionService.IDetectionService
	utils            utils.IUtils
	limits           detection.Limits
	timeout          time.Duration
}

func New(
	log *logrus.Logger,
	validator *validator.Validate,
	middleware middleware.Middleware,
	ds detectionService.IDetectionService,
	utils utils.IUtils,
	limits detection.Limits,
	timeout time.Duration,
) *DetectionHandler {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}
	return &DetectionHandler{
		detectionService: ds,
		log:              log,
		validator:        validator,
		middleware:       middleware,
		utils:            utils,
		limits:           limits,
		timeout:          timeout,
	}
}

func (h *DetectionHandler) Start(srv fiber.Router) {
	wsMiddleware := func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	}

	srv.Get("/health", h.Health)
	srv.Get("/metrics", h.Metrics)

	api := srv.Group("/api")
	api.Post("/detect", h.middleware.NewRateLimiter, h.Detect)
	api.Get("/history", h.History)
	api.Use("/detect/ws", wsMiddleware)
	api.Get("/detect/ws", websocket.New(h.handleWebSocket))

	// legacy aliases
	srv.Post("/detect", h.middleware.NewRateLimiter, h.Detect)
	srv.Get("/history", h.History)
}
