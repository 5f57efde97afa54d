package handlerUtil

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/utils"
	"github.com/sirupsen/logrus"

	"github.com/Sei0217/visually-impaired/internal/api/detection"
	contextPkg "github.com/Sei0217/visually-impaired/pkg/context"
	"github.com/Sei0217/visually-impaired/pkg/log"
	"github.com/Sei0217/visually-impaired/pkg/response"
)

type ErrorHandler struct {
	logger *logrus.Logger
}

func New(logger *logrus.Logger) *ErrorHandler {
	return &ErrorHandler{
		logger: logger,
	}
}

// Handle answers a failed detection request. Domain failures keep HTTP 200 and
// report themselves through success=false so older clients keep working.
func (h *ErrorHandler) Handle(c *fiber.Ctx, requestID string, err error, path string, operation string) error {
	fields := log.Fields{
		"request_id": requestID,
		"error":      err.Error(),
		"path":       path,
		"operation":  operation,
	}

	var respErr *response.Error
	if errors.As(err, &respErr) {
		fields["code"] = respErr.Code
		if respErr.Code >= fiber.StatusInternalServerError {
			h.logger.WithFields(fields).Error("Operation failed with error response")
		} else {
			h.logger.WithFields(fields).Warn("Operation failed with error response")
		}
		return c.Status(fiber.StatusOK).JSON(detection.AssembleError(respErr.Key))
	}

	h.logger.WithFields(fields).Error("Unexpected error")

	return c.Status(fiber.StatusOK).JSON(detection.AssembleError(response.KeyOf(err)))
}

func (h *ErrorHandler) HandleRequestTimeout(c *fiber.Ctx) error {
	return c.Status(fiber.StatusRequestTimeout).JSON(detection.AssembleError(StatusKey(fiber.StatusRequestTimeout)))
}

// HandleFiberError is installed as the app's ErrorHandler. It covers errors
// raised before or around the handlers: an oversized body rejected by the
// server, unknown routes, and panics caught by the recover middleware.
func (h *ErrorHandler) HandleFiberError(c *fiber.Ctx, err error) error {
	fields := log.Fields{
		"request_id": contextPkg.GetRequestID(contextPkg.FromFiberCtx(c)),
		"error":      err.Error(),
		"path":       c.Path(),
		"method":     c.Method(),
	}

	var fiberErr *fiber.Error
	if !errors.As(err, &fiberErr) {
		h.logger.WithFields(fields).Error("Unhandled error")
		return c.Status(fiber.StatusInternalServerError).JSON(detection.AssembleError(response.KeyOf(detection.ErrInternalServerError)))
	}

	// an oversized upload is the same domain failure the handler reports
	if fiberErr.Code == fiber.StatusRequestEntityTooLarge {
		h.logger.WithFields(fields).Warn("Upload rejected by body limit")
		return c.Status(fiber.StatusOK).JSON(detection.AssembleError(response.KeyOf(detection.ErrFileTooLarge)))
	}

	if fiberErr.Code >= fiber.StatusInternalServerError {
		h.logger.WithFields(fields).Error("Request failed")
	} else {
		h.logger.WithFields(fields).Warn("Request rejected")
	}
	return c.Status(fiberErr.Code).JSON(detection.AssembleError(StatusKey(fiberErr.Code)))
}

// StatusKey turns an HTTP status into an error key, e.g. 404 -> "not_found".
func StatusKey(code int) string {
	return strings.ToLower(strings.ReplaceAll(utils.StatusMessage(code), " ", "_"))
}

func (h *ErrorHandler) HandleSuccess(c *fiber.Ctx, statusCode int, data interface{}) error {
	if data == nil {
		return c.SendStatus(statusCode)
	}
	return c.Status(statusCode).JSON(data)
}
