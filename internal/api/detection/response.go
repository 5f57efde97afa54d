package detection

import (
	"math"

	"github.com/Sei0217/visually-impaired/internal/entity"
)

// Assemble packages a successful detection. dataURI is empty when no annotated
// image was requested; both image keys are then omitted.
func Assemble(detections []entity.Detection, topLabel string, topConfidence float64, dataURI string) DetectionResponse {
	if detections == nil {
		detections = []entity.Detection{}
	}

	out := make([]entity.Detection, len(detections))
	for i, d := range detections {
		out[i] = entity.NewDetection(d.BBox, d.Label, d.Confidence)
	}

	return DetectionResponse{
		Success:           true,
		Detections:        out,
		ObjectType:        topLabel,
		ConfidenceScore:   percent(topConfidence),
		AnnotatedImageURL: dataURI,
		ImageBase64:       dataURI,
	}
}

func AssembleError(code string) ErrorResponse {
	return ErrorResponse{
		Success: false,
		Error:   code,
	}
}

// percent turns a [0,1] score into a percentage rounded to two decimals.
func percent(score float64) float64 {
	return math.Round(score*100*100) / 100
}
