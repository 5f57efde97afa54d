package entity

// RawDetection is what every detector adapter produces. Box is x1, y1, x2, y2 in
// source-image pixel coordinates.
type RawDetection struct {
	Box        [4]float64
	ClassIndex int
	Score      float64
}

// Detection is the canonical record returned to callers. Conf mirrors Confidence
// for older consumers and must always carry the same value.
type Detection struct {
	BBox       [4]float64 `json:"bbox"`
	Label      string     `json:"label"`
	Confidence float64    `json:"confidence"`
	Conf       float64    `json:"conf"`
}

func NewDetection(box [4]float64, label string, confidence float64) Detection {
	return Detection{
		BBox:       box,
		Label:      label,
		Confidence: confidence,
		Conf:       confidence,
	}
}
