package main

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/net/context"

	"github.com/Sei0217/visually-impaired/internal/config"
	"github.com/Sei0217/visually-impaired/pkg/annotate"
	"github.com/Sei0217/visually-impaired/pkg/detector"
	"github.com/Sei0217/visually-impaired/pkg/detector/onnx"
	"github.com/Sei0217/visually-impaired/pkg/detector/remote"
	"github.com/Sei0217/visually-impaired/pkg/log"
	"github.com/Sei0217/visually-impaired/pkg/redis"
)

func main() {
	envErr := godotenv.Load()
	logger := log.NewLogger()
	if envErr != nil {
		log.Warn(log.Fields{"error": envErr.Error()}, "No .env file loaded, using process environment")
	}

	validator := config.NewValidator()
	cfg, err := config.Load(validator)
	if err != nil {
		logger.Fatalf("Error loading configuration: %v", err)
	}

	names, err := detector.LoadNames(cfg.ClassNamesPath)
	if err != nil {
		logger.Fatalf("Error loading class names: %v", err)
	}

	model, err := newDetector(cfg, names)
	if err != nil {
		logger.Fatalf("Error initializing %s detector: %v", cfg.DetectorBackend, err)
	}
	logger.WithField("backend", cfg.DetectorBackend).Info("Detector ready")

	annotator := annotate.New(cfg.FontPath, annotate.DefaultFontCandidates)
	if annotator.FontPath() == "" {
		logger.Warn("No TrueType font found, annotations use the built-in bitmap font")
	} else {
		logger.WithField("font", annotator.FontPath()).Info("Annotation font loaded")
	}

	options := []config.ServerOption{
		config.WithFiber(config.NewFiber(logger, cfg.BodyLimit())),
		config.WithLogger(logger),
		config.WithConfig(cfg),
		config.WithValidator(validator),
		config.WithDetector(model),
		config.WithAnnotator(annotator),
		config.WithMiddleware(),
		config.WithUtils(),
	}
	if cfg.RedisAddress != "" {
		options = append(options, config.WithCache(redis.New(redis.Options{
			Address:  cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})))
	} else {
		logger.Info("REDIS_ADDRESS not set, result caching disabled")
	}

	server, err := config.NewServer(options...)
	if err != nil {
		model.Close()
		logger.Fatal(err)
	}

	server.RegisterHandler()

	warmupCtx, cancel := context.WithTimeout(context.Background(), cfg.RequestTimeout)
	server.Warmup(warmupCtx)
	cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := server.Run(); err != nil {
			logger.Fatalf("Error starting server: %v", err)
		}
	}()

	logger.WithField("port", cfg.Port).Info("Server started successfully")

	<-sigChan
	logger.Info("Shutting down server...")
	if err := server.Shutdown(); err != nil {
		logger.Errorf("Error during shutdown: %v", err)
	}
}

func newDetector(cfg *config.Config, names []string) (detector.Detector, error) {
	if cfg.DetectorBackend == config.BackendRemote {
		return remote.New(remote.Options{
			URL:   cfg.RemoteDetectorURL,
			Names: names,
		})
	}

	return onnx.New(onnx.Options{
		ModelPath:      cfg.ModelPath,
		LibPath:        cfg.OnnxLibPath,
		Names:          names,
		PoolSize:       cfg.PoolSize,
		IntraOpThreads: cfg.IntraOpThreads,
		InterOpThreads: cfg.InterOpThreads,
	})
}
