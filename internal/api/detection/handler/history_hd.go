package detectionHandler

import (
	"github.com/gofiber/fiber/v2"

	"github.com/Sei0217/visually-impaired/internal/api/detection"
	contextPkg "github.com/Sei0217/visually-impaired/pkg/context"
	"github.com/Sei0217/visually-impaired/pkg/log"
)

// History keeps older clients from hitting 404s. Nothing is stored, so the
// answer is always empty; bad paging input is only logged.
func (h *DetectionHandler) History(ctx *fiber.Ctx) error {
	logger := log.WithRequestID(contextPkg.FromFiberCtx(ctx))

	var query detection.HistoryQuery
	if err := ctx.QueryParser(&query); err != nil {
		logger.WithField("error", err.Error()).Warn("Ignoring unparsable history query")
	} else if err := h.validator.Struct(query); err != nil {
		logger.WithField("error", err.Error()).Warn("Ignoring invalid history query")
	}

	return ctx.Status(fiber.StatusOK).JSON(detection.HistoryResponse{
		Total: 0,
		Data:  []interface{}{},
	})
}
