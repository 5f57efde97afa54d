package detectionService

import (
	"image"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/net/context"

	"github.com/Sei0217/visually-impaired/internal/api/detection"
	"github.com/Sei0217/visually-impaired/internal/entity"
	"github.com/Sei0217/visually-impaired/pkg/detector"
)

type IDetectionService interface {
	Detect(ctx context.Context, data []byte, params detection.Params) (*detection.DetectionResponse, error)
	Warmup(ctx context.Context) error
	Names() []string
	Metrics() (detector.PoolMetrics, bool)
}

// Annotator draws detections on a copy of img.
type Annotator interface {
	Annotate(img image.Image, detections []entity.Detection) *image.NRGBA
}

// ResultCache keeps encoded responses keyed by request fingerprint. Lookups
// that fail for any reason are treated as misses.
type ResultCache interface {
	GetResult(ctx context.Context, fingerprint string) ([]byte, error)
	SetResult(ctx context.Context, fingerprint string, value []byte, expiration time.Duration) error
}

type detectionService struct {
	log         *logrus.Logger
	detector    detector.Detector
	annotator   Annotator
	jpegQuality int
	maxPixels   int
	cache       ResultCache
	cacheTTL    time.Duration
}

// NewDetectionService builds the pipeline. A nil cache disables result caching
// and a non-positive maxPixels falls back to imgcodec.DefaultMaxPixels.
func NewDetectionService(
	log *logrus.Logger,
	detector detector.Detector,
	annotator Annotator,
	jpegQuality int,
	maxPixels int,
	cache ResultCache,
	cacheTTL time.Duration,
) IDetectionService {
	return &detectionService{
		log:         log,
		detector:    detector,
		annotator:   annotator,
		jpegQuality: jpegQuality,
		maxPixels:   maxPixels,
		cache:       cache,
		cacheTTL:    cacheTTL,
	}
}
