package middleware

import (
	"time"

	"github.com/gofiber/fiber/v2"
	fiberUtils "github.com/gofiber/fiber/v2/utils"

	"github.com/Sei0217/visually-impaired/pkg/utils"
)

const RequestIDKey = "X-Request-ID"

// NewRequestIDMiddleware keeps a client supplied X-Request-ID or mints a ULID,
// and echoes it on the response.
func NewRequestIDMiddleware() fiber.Handler {
	utilsInstance := utils.New()

	return func(c *fiber.Ctx) error {
		// c.Get aliases the request buffer, which fasthttp reuses
		requestID := fiberUtils.CopyString(c.Get(RequestIDKey))

		if requestID == "" {
			requestID, _ = utilsInstance.NewULIDFromTimestamp(time.Now())
		}

		c.Locals(RequestIDKey, requestID)
		c.Set(RequestIDKey, requestID)

		return c.Next()
	}
}
