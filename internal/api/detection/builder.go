package detection

import (
	"fmt"

	"github.com/Sei0217/visually-impaired/internal/entity"
)

const NoDetection = "No detection"

// BuildDetections resolves class names for raw detector output. Order is kept.
func BuildDetections(raw []entity.RawDetection, names []string) ([]entity.Detection, error) {
	detections := make([]entity.Detection, 0, len(raw))
	for _, r := range raw {
		if r.ClassIndex < 0 || r.ClassIndex >= len(names) {
			return nil, fmt.Errorf("%w: class index %d, %d names known", ErrClassIndexOutOfRange, r.ClassIndex, len(names))
		}
		detections = append(detections, entity.NewDetection(r.Box, names[r.ClassIndex], r.Score))
	}
	return detections, nil
}

// SelectTop returns the label and confidence of the first detection holding the
// greatest confidence.
func SelectTop(detections []entity.Detection) (string, float64) {
	if len(detections) == 0 {
		return NoDetection, 0
	}

	top := 0
	for i := 1; i < len(detections); i++ {
		if detections[i].Confidence > detections[top].Confidence {
			top = i
		}
	}
	return detections[top].Label, detections[top].Confidence
}

func Build(raw []entity.RawDetection, names []string) ([]entity.Detection, string, float64, error) {
	detections, err := BuildDetections(raw, names)
	if err != nil {
		return nil, "", 0, err
	}

	label, confidence := SelectTop(detections)
	return detections, label, confidence, nil
}
