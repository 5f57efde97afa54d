package context

import (
	"context"

	"github.com/gofiber/fiber/v2"
)

const (
	RequestIDKey    = "request_id"
	requestIDHeader = "X-Request-ID"
	unknownID       = "unknown"
)

type ctxKey string

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ctxKey(RequestIDKey), requestID)
}

func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return unknownID
	}
	requestID, ok := ctx.Value(ctxKey(RequestIDKey)).(string)
	if !ok || requestID == "" {
		return unknownID
	}
	return requestID
}

// FromFiberCtx derives a request scoped context from the fiber user context,
// tagged with the id set by the request-id middleware.
func FromFiberCtx(c *fiber.Ctx) context.Context {
	requestID, ok := c.Locals(requestIDHeader).(string)
	if !ok || requestID == "" {
		requestID = c.Get(requestIDHeader)
	}
	if requestID == "" {
		requestID = unknownID
	}

	return WithRequestID(c.UserContext(), requestID)
}
