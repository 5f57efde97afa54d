package config

import (
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Sei0217/visually-impaired/internal/api/detection"
	"github.com/Sei0217/visually-impaired/pkg/imgcodec"
)

const (
	BackendONNX   = "onnx"
	BackendRemote = "remote"
)

// Config is read once at startup and never re-read per request.
type Config struct {
	Port              string `validate:"required,numeric"`
	DetectorBackend   string `validate:"oneof=onnx remote"`
	ModelPath         string `validate:"required_if=DetectorBackend onnx"`
	RemoteDetectorURL string `validate:"required_if=DetectorBackend remote"`
	ClassNamesPath    string
	OnnxLibPath       string
	PoolSize          int `validate:"min=1,max=64"`
	IntraOpThreads    int `validate:"min=1"`
	InterOpThreads    int `validate:"min=1"`

	CORSAllowOrigins     string `validate:"required"`
	CORSAllowMethods     string
	CORSAllowHeaders     string
	CORSAllowCredentials bool

	FontPath       string
	ClassAllowList string
	ImgszMin       int           `validate:"min=160,max=640"`
	ImgszMax       int           `validate:"min=160,max=640,gtefield=ImgszMin"`
	ImgszDefault   int           `validate:"min=160,max=640"`
	BodyLimitMB    int           `validate:"min=1,max=512"`
	RequestTimeout time.Duration `validate:"min=1s"`
	RateLimitRPS   float64       `validate:"gt=0"`
	RateLimitBurst int           `validate:"min=1"`
	JPEGQuality    int
	MaxImagePixels int `validate:"min=1"`

	RedisAddress  string
	RedisPassword string
	RedisDB       int           `validate:"min=0"`
	CacheTTL      time.Duration `validate:"min=1s"`
}

func NewValidator() *validator.Validate {
	return validator.New()
}

// Load reads the environment and validates the result.
func Load(v *validator.Validate) (*Config, error) {
	cfg := &Config{
		Port:              getString("APP_PORT", "3000"),
		DetectorBackend:   strings.ToLower(getString("DETECTOR_BACKEND", BackendONNX)),
		ModelPath:         getString("MODEL_PATH", "models/best.onnx"),
		RemoteDetectorURL: os.Getenv("REMOTE_DETECTOR_URL"),
		ClassNamesPath:    os.Getenv("CLASS_NAMES_PATH"),
		OnnxLibPath:       os.Getenv("ONNXRUNTIME_LIB_PATH"),
		PoolSize:          getInt("DETECTOR_POOL_SIZE", 2),
		IntraOpThreads:    getInt("ONNX_INTRA_OP_THREADS", runtime.NumCPU()),
		InterOpThreads:    getInt("ONNX_INTER_OP_THREADS", 1),

		CORSAllowOrigins:     getString("CORS_ALLOW_ORIGINS", "*"),
		CORSAllowMethods:     os.Getenv("CORS_ALLOW_METHODS"),
		CORSAllowHeaders:     os.Getenv("CORS_ALLOW_HEADERS"),
		CORSAllowCredentials: getBool("CORS_ALLOW_CREDENTIALS", false),

		FontPath:       os.Getenv("ANNOTATION_FONT_PATH"),
		ClassAllowList: os.Getenv("CLASS_ALLOW_LIST"),
		ImgszMin:       getInt("IMGSZ_MIN", detection.MinInputSize),
		ImgszMax:       getInt("IMGSZ_MAX", detection.MaxInputSize),
		ImgszDefault:   getInt("IMGSZ_DEFAULT", detection.DefaultInputSize),
		BodyLimitMB:    getInt("BODY_LIMIT_MB", 15),
		RequestTimeout: getDuration("REQUEST_TIMEOUT", 30*time.Second),
		RateLimitRPS:   getFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst: getInt("RATE_LIMIT_BURST", 20),
		JPEGQuality:    imgcodec.ClampQuality(getInt("JPEG_QUALITY", imgcodec.DefaultQuality)),
		MaxImagePixels: getInt("MAX_IMAGE_PIXELS", imgcodec.DefaultMaxPixels),

		RedisAddress:  os.Getenv("REDIS_ADDRESS"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       getInt("REDIS_DB", 0),
		CacheTTL:      getDuration("CACHE_TTL", 10*time.Minute),
	}

	if err := v.Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// browsers reject credentialed responses with a wildcard origin
	if cfg.CORSAllowCredentials && strings.Contains(cfg.CORSAllowOrigins, "*") {
		return nil, fmt.Errorf("invalid configuration: CORS_ALLOW_CREDENTIALS requires explicit CORS_ALLOW_ORIGINS")
	}

	return cfg, nil
}

// Limits is the deployment's parameter range for detection requests.
func (c *Config) Limits() detection.Limits {
	return detection.Limits{
		MinInputSize:     c.ImgszMin,
		MaxInputSize:     c.ImgszMax,
		DefaultInputSize: c.ImgszDefault,
		AllowList:        detection.ParseClassSet(c.ClassAllowList),
	}
}

// multipartOverhead leaves room for form fields and part headers so an upload
// of exactly FileLimit bytes still fits in the request body.
const multipartOverhead = 1024 * 1024

// FileLimit caps the uploaded image itself.
func (c *Config) FileLimit() int {
	return c.BodyLimitMB * 1024 * 1024
}

// BodyLimit caps the whole request body.
func (c *Config) BodyLimit() int {
	return c.FileLimit() + multipartOverhead
}

func getString(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getInt(key string, def int) int {
	v, err := strconv.Atoi(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return v
}

func getFloat(key string, def float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(os.Getenv(key)), 64)
	if err != nil {
		return def
	}
	return v
}

func getBool(key string, def bool) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return v
}

func getDuration(key string, def time.Duration) time.Duration {
	v, err := time.ParseDuration(strings.TrimSpace(os.Getenv(key)))
	if err != nil {
		return def
	}
	return v
}
