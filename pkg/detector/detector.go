// Package detector defines the contract between the service and an object
// detection backend.
package detector

import (
	"context"
	"image"

	"github.com/Sei0217/visually-impaired/internal/entity"
)

// Options are the per-call inference parameters. A nil Classes slice means
// every class; a non-nil empty slice means none.
type Options struct {
	Confidence    float64
	InputSize     int
	MaxDetections int
	Classes       []int
}

// Detector must be safe for concurrent use once constructed.
type Detector interface {
	Detect(ctx context.Context, img image.Image, opts Options) ([]entity.RawDetection, error)
	// Names maps class index to label. It must not change after construction.
	Names() []string
	Close() error
}

// Renderer is implemented by detectors that can draw their own results.
type Renderer interface {
	Render(img image.Image, detections []entity.Detection) (image.Image, error)
}

type PoolMetrics struct {
	PoolSize        int   `json:"pool_size"`
	InUse           int   `json:"sessions_in_use"`
	TotalAcquired   int64 `json:"total_acquired"`
	TotalReleased   int64 `json:"total_released"`
	AcquireFailures int64 `json:"acquire_failures"`
}

// MetricsReporter is implemented by detectors backed by a session pool.
type MetricsReporter interface {
	Metrics() PoolMetrics
}

// AllowsClass reports whether class idx passes the Classes restriction.
func (o Options) AllowsClass(idx int) bool {
	if o.Classes == nil {
		return true
	}
	for _, c := range o.Classes {
		if c == idx {
			return true
		}
	}
	return false
}
