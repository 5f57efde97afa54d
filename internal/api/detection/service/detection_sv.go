package detectionService

import (
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/disintegration/imaging"
	"golang.org/x/net/context"

	"github.com/Sei0217/visually-impaired/internal/api/detection"
	"github.com/Sei0217/visually-impaired/internal/entity"
	contextPkg "github.com/Sei0217/visually-impaired/pkg/context"
	"github.com/Sei0217/visually-impaired/pkg/detector"
	"github.com/Sei0217/visually-impaired/pkg/imgcodec"
	"github.com/Sei0217/visually-impaired/pkg/log"
)

const warmupSize = 64

func (s *detectionService) Names() []string {
	return s.detector.Names()
}

func (s *detectionService) Metrics() (detector.PoolMetrics, bool) {
	m, ok := s.detector.(detector.MetricsReporter)
	if !ok {
		return detector.PoolMetrics{}, false
	}
	return m.Metrics(), true
}

func (s *detectionService) Detect(ctx context.Context, data []byte, params detection.Params) (*detection.DetectionResponse, error) {
	requestID := contextPkg.GetRequestID(ctx)
	start := time.Now()

	var key string
	if s.cache != nil {
		key = fingerprint(data, params)
		if resp, ok := s.cached(ctx, requestID, key); ok {
			return resp, nil
		}
	}

	img, mime, err := imgcodec.DecodeLimited(data, s.maxPixels)
	if err != nil {
		s.log.WithFields(log.Fields{
			"request_id": requestID,
			"mime":       mime,
			"error":      err.Error(),
		}).Warn("[detectionService.Detect] failed to decode image")
		return nil, fmt.Errorf("%w: %v", detection.ErrDecodeFailed, err)
	}

	names := s.detector.Names()
	opts := detector.Options{
		Confidence:    params.ConfidenceThreshold,
		InputSize:     params.InputSize,
		MaxDetections: params.MaxDetections,
		Classes:       detection.RestrictIndices(names, params.ClassAllowList),
	}

	raw, err := s.detector.Detect(ctx, img, opts)
	if err != nil {
		log.ErrorWithTraceID(log.Fields{
			"request_id": requestID,
			"imgsz":      opts.InputSize,
			"conf":       opts.Confidence,
			"error":      err.Error(),
		}, "[detectionService.Detect] inference failed")
		return nil, fmt.Errorf("inference: %w", err)
	}

	built, err := detection.BuildDetections(raw, names)
	if err != nil {
		log.ErrorWithTraceID(log.Fields{
			"request_id": requestID,
			"error":      err.Error(),
		}, "[detectionService.Detect] failed to build detections")
		return nil, err
	}

	detections := detection.FilterDetections(built, params.ClassAllowList)
	if params.MaxDetections > 0 && len(detections) > params.MaxDetections {
		detections = detections[:params.MaxDetections]
	}
	topLabel, topConfidence := detection.SelectTop(detections)

	var dataURI string
	if params.EmitAnnotatedImage {
		dataURI, err = imgcodec.EncodeDataURI(s.render(requestID, img, detections), s.jpegQuality)
		if err != nil {
			log.ErrorWithTraceID(log.Fields{
				"request_id": requestID,
				"error":      err.Error(),
			}, "[detectionService.Detect] failed to encode annotated image")
			return nil, fmt.Errorf("%w: %v", detection.ErrEncodeFailed, err)
		}
	}

	s.log.WithFields(log.Fields{
		"request_id":  requestID,
		"mime":        mime,
		"detections":  len(detections),
		"object_type": topLabel,
		"elapsed":     time.Since(start).String(),
	}).Debug("[detectionService.Detect] detection finished")

	resp := detection.Assemble(detections, topLabel, topConfidence, dataURI)
	if s.cache != nil {
		s.store(ctx, requestID, key, &resp)
	}
	return &resp, nil
}

// render prefers the detector's own drawing and falls back to the annotator.
func (s *detectionService) render(requestID string, img image.Image, detections []entity.Detection) image.Image {
	if r, ok := s.detector.(detector.Renderer); ok {
		out, err := r.Render(img, detections)
		if err == nil && out != nil {
			return out
		}
		s.log.WithFields(log.Fields{
			"request_id": requestID,
			"error":      fmt.Sprint(err),
		}).Warn("[detectionService.render] detector render failed, using annotator")
	}
	return s.annotator.Annotate(img, detections)
}

// Warmup runs one inference on a blank frame so lazy runtime setup happens
// before the first real request.
func (s *detectionService) Warmup(ctx context.Context) error {
	start := time.Now()
	img := imaging.New(warmupSize, warmupSize, color.NRGBA{A: 255})

	_, err := s.detector.Detect(ctx, img, detector.Options{
		Confidence:    detection.DefaultConfidence,
		InputSize:     detection.MinInputSize,
		MaxDetections: detection.MinMaxDetections,
	})
	if err != nil {
		return fmt.Errorf("warmup: %w", err)
	}

	s.log.WithFields(log.Fields{
		"elapsed": time.Since(start).String(),
	}).Info("[detectionService.Warmup] detector warmed up")
	return nil
}
