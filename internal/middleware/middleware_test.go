package middleware

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/oklog/ulid/v2"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func newApp(m Middleware) *fiber.App {
	app := fiber.New()
	app.Use(m.NewRequestIDMiddleware())
	app.Use(m.NewLoggingMiddleware())
	app.Get("/", m.NewRateLimiter, func(c *fiber.Ctx) error {
		return c.SendString(m.GetRequestID(c))
	})
	return app
}

func TestRequestIDIsMintedAndEchoed(t *testing.T) {
	app := newApp(New(quietLogger(), 100, 100))

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
	require.NoError(t, err)

	id := resp.Header.Get(RequestIDKey)
	_, err = ulid.Parse(id)
	assert.NoError(t, err)

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, id, string(body))
}

func TestRequestIDFromClientIsKept(t *testing.T) {
	app := newApp(New(quietLogger(), 100, 100))

	req := httptest.NewRequest(fiber.MethodGet, "/", nil)
	req.Header.Set(RequestIDKey, "client-42")
	resp, err := app.Test(req)
	require.NoError(t, err)

	assert.Equal(t, "client-42", resp.Header.Get(RequestIDKey))
}

func TestRequestIDOutlivesRequest(t *testing.T) {
	var seen []string
	app := fiber.New()
	app.Use(NewRequestIDMiddleware())
	app.Get("/", func(c *fiber.Ctx) error {
		seen = append(seen, c.Locals(RequestIDKey).(string))
		return nil
	})

	for _, id := range []string{"first-id-0001", "other-id-0002"} {
		req := httptest.NewRequest(fiber.MethodGet, "/", nil)
		req.Header.Set(RequestIDKey, id)
		_, err := app.Test(req)
		require.NoError(t, err)
	}

	assert.Equal(t, []string{"first-id-0001", "other-id-0002"}, seen)
}

func TestRateLimiterRejectsBurst(t *testing.T) {
	app := newApp(New(quietLogger(), 0.001, 1))

	first, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, first.StatusCode)

	second, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusTooManyRequests, second.StatusCode)
}

func TestGetRequestIDDefault(t *testing.T) {
	app := fiber.New()
	m := New(quietLogger(), 1, 1)
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendString(m.GetRequestID(c))
	})

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/", nil))
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, "unknown", string(body))
}

func TestRateLimiterEvictsIdleClients(t *testing.T) {
	clock := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	r := newRateLimiter(1, 1)
	r.now = func() time.Time { return clock }
	r.lastSweep = clock

	first := r.GetLimiterFrom("10.0.0.1")
	r.GetLimiterFrom("10.0.0.2")
	assert.Equal(t, 2, r.size())
	assert.Same(t, first, r.GetLimiterFrom("10.0.0.1"))

	clock = clock.Add(limiterIdleTTL / 2)
	r.GetLimiterFrom("10.0.0.1")

	clock = clock.Add(limiterIdleTTL / 2)
	r.GetLimiterFrom("10.0.0.3")

	// .2 went idle for a full TTL, .1 was seen halfway through
	assert.Equal(t, 2, r.size())
	assert.Same(t, first, r.GetLimiterFrom("10.0.0.1"))
	assert.NotContains(t, r.bucket, "10.0.0.2")
}
