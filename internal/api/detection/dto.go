package detection

import "github.com/Sei0217/visually-impaired/internal/entity"

// DetectionResponse is the success body of the detect endpoints. The image keys
// and the per-detection confidence keys are duplicated for older clients and are
// always populated identically.
type DetectionResponse struct {
	Success           bool               `json:"success"`
	Detections        []entity.Detection `json:"detections"`
	ObjectType        string             `json:"object_type"`
	ConfidenceScore   float64            `json:"confidence_score"`
	AnnotatedImageURL string             `json:"annotated_image_url,omitempty"`
	ImageBase64       string             `json:"image_base64,omitempty"`
}

// ErrorResponse is the only body sent when a request fails. Clients must treat
// success=false as the sole signal.
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

type HistoryQuery struct {
	Page  int `query:"page" validate:"omitempty,min=1"`
	Limit int `query:"limit" validate:"omitempty,min=1,max=100"`
}

type HistoryResponse struct {
	Total int           `json:"total"`
	Data  []interface{} `json:"data"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
