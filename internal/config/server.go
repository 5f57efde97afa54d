package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	detectionHandler "github.com/Sei0217/visually-impaired/internal/api/detection/handler"
	detectionService "github.com/Sei0217/visually-impaired/internal/api/detection/service"
	"github.com/Sei0217/visually-impaired/internal/middleware"
	"github.com/Sei0217/visually-impaired/pkg/detector"
	"github.com/Sei0217/visually-impaired/pkg/redis"
	"github.com/Sei0217/visually-impaired/pkg/utils"
)

const shutdownTimeout = 10 * time.Second

type ServerOption func(*Server) error

type Server struct {
	engine     *fiber.App
	log        *logrus.Logger
	cfg        *Config
	middleware middleware.Middleware
	validator  *validator.Validate
	utils      utils.IUtils
	detector   detector.Detector
	annotator  detectionService.Annotator
	cache      redis.IRedis
	service    detectionService.IDetectionService
	handlers   []handler
}

type handler interface {
	Start(srv fiber.Router)
}

func NewServer(options ...ServerOption) (*Server, error) {
	server := &Server{}

	for _, option := range options {
		if err := option(server); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}

	if server.engine == nil {
		return nil, fmt.Errorf("fiber app is required")
	}
	if server.log == nil {
		return nil, fmt.Errorf("logger is required")
	}
	if server.cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if server.detector == nil {
		return nil, fmt.Errorf("detector is required")
	}
	if server.annotator == nil {
		return nil, fmt.Errorf("annotator is required")
	}
	if server.validator == nil {
		server.validator = NewValidator()
	}
	if server.utils == nil {
		server.utils = utils.NewWithLimit(int64(server.cfg.FileLimit()))
	}
	if server.middleware == nil {
		server.middleware = middleware.New(server.log, server.cfg.RateLimitRPS, server.cfg.RateLimitBurst)
	}

	return server, nil
}

func WithFiber(fiberApp *fiber.App) ServerOption {
	return func(s *Server) error {
		s.engine = fiberApp
		return nil
	}
}

func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) error {
		s.log = logger
		return nil
	}
}

func WithValidator(validator *validator.Validate) ServerOption {
	return func(s *Server) error {
		s.validator = validator
		return nil
	}
}

func WithConfig(cfg *Config) ServerOption {
	return func(s *Server) error {
		s.cfg = cfg
		return nil
	}
}

// WithDetector hands the server a loaded detector. The server closes it on
// Shutdown.
func WithDetector(d detector.Detector) ServerOption {
	return func(s *Server) error {
		if d == nil {
			return fmt.Errorf("detector must not be nil")
		}
		s.detector = d
		return nil
	}
}

func WithAnnotator(a detectionService.Annotator) ServerOption {
	return func(s *Server) error {
		s.annotator = a
		return nil
	}
}

// WithCache enables result caching. The server closes the cache on Shutdown.
func WithCache(cache redis.IRedis) ServerOption {
	return func(s *Server) error {
		s.cache = cache
		return nil
	}
}

func WithMiddleware() ServerOption {
	return func(s *Server) error {
		if s.log == nil {
			return fmt.Errorf("logger must be initialized before middleware")
		}
		if s.cfg == nil {
			return fmt.Errorf("config must be initialized before middleware")
		}
		s.middleware = middleware.New(s.log, s.cfg.RateLimitRPS, s.cfg.RateLimitBurst)
		return nil
	}
}

func WithUtils() ServerOption {
	return func(s *Server) error {
		if s.cfg == nil {
			s.utils = utils.New()
			return nil
		}
		s.utils = utils.NewWithLimit(int64(s.cfg.FileLimit()))
		return nil
	}
}

// RegisterHandler wires services and handlers and installs the global
// middleware chain. It must run before Run or Warmup.
func (s *Server) RegisterHandler() {
	s.engine.Use(recover.New())
	s.engine.Use(cors.New(s.corsConfig()))
	s.engine.Use(s.middleware.NewRequestIDMiddleware())
	s.engine.Use(s.middleware.NewLoggingMiddleware())

	// Detection
	var cache detectionService.ResultCache
	if s.cache != nil {
		cache = s.cache
	}
	s.service = detectionService.NewDetectionService(s.log, s.detector, s.annotator, s.cfg.JPEGQuality, s.cfg.MaxImagePixels, cache, s.cfg.CacheTTL)
	detectionHandlers := detectionHandler.New(s.log, s.validator, s.middleware, s.service, s.utils, s.cfg.Limits(), s.cfg.RequestTimeout)

	s.handlers = append(s.handlers, detectionHandlers)
	for _, h := range s.handlers {
		h.Start(s.engine)
	}
}

func (s *Server) corsConfig() cors.Config {
	c := cors.Config{
		AllowOrigins:     s.cfg.CORSAllowOrigins,
		AllowCredentials: s.cfg.CORSAllowCredentials,
		ExposeHeaders:    middleware.RequestIDKey,
	}
	if s.cfg.CORSAllowMethods != "" {
		c.AllowMethods = s.cfg.CORSAllowMethods
	}
	if s.cfg.CORSAllowHeaders != "" {
		c.AllowHeaders = s.cfg.CORSAllowHeaders
	}
	return c
}

// Warmup runs one dummy inference. A failure is logged and otherwise ignored.
func (s *Server) Warmup(ctx context.Context) {
	if s.service == nil {
		return
	}
	if err := s.service.Warmup(ctx); err != nil {
		s.log.WithField("error", err.Error()).Warn("Detector warmup failed, continuing")
	}
}

func (s *Server) Run() error {
	port := strings.TrimPrefix(s.cfg.Port, ":")
	return s.engine.Listen(fmt.Sprintf(":%s", port))
}

// Shutdown stops accepting requests, waits for in-flight ones, then releases
// the detector and the cache.
func (s *Server) Shutdown() error {
	err := s.engine.ShutdownWithTimeout(shutdownTimeout)
	if cerr := s.detector.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if s.cache != nil {
		if cerr := s.cache.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}
