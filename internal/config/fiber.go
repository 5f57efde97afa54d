package config

import (
	"github.com/gofiber/fiber/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"

	"github.com/Sei0217/visually-impaired/pkg/handlerUtil"
)

const appName = "Visually Impaired Detection"

// NewFiber builds the app. bodyLimit is in bytes and caps the whole request
// body. Errors that never reach a handler are answered with the
// success=false envelope.
func NewFiber(logger *logrus.Logger, bodyLimit int) *fiber.App {
	app := fiber.New(
		fiber.Config{
			AppName:               appName,
			BodyLimit:             bodyLimit,
			DisableKeepalive:      false,
			StrictRouting:         true,
			CaseSensitive:         true,
			DisableStartupMessage: logger.GetLevel() < logrus.InfoLevel,
			JSONEncoder:           jsoniter.Marshal,
			JSONDecoder:           jsoniter.Unmarshal,
			ErrorHandler:          handlerUtil.New(logger).HandleFiberError,
		})

	return app
}
