package dto

import "time"

// DetectionPayload is one ordered digit box in a predict response.
type DetectionPayload struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Left       float64 `json:"left_x"`
	Top        float64 `json:"top_y"`
	Right      float64 `json:"right_x"`
	Bottom     float64 `json:"bottom_y"`
}

// ReadingPayload describes one reading of an image set.
type ReadingPayload struct {
	Reading       string             `json:"reading"`
	Manual        bool               `json:"manual"`
	Labels        []string           `json:"labels,omitempty"`
	Detections    []DetectionPayload `json:"detections,omitempty"`
	PreviewURL    string             `json:"preview_url,omitempty"`
	OriginalURL   string             `json:"original_url,omitempty"`
	PreviewBase64 string             `json:"preview_base64,omitempty"`
}

// ConsumptionPayload carries the calculator result. Value is null unless
// Status is "computed".
type ConsumptionPayload struct {
	Status    string   `json:"status"`
	Value     *float64 `json:"value"`
	Anomalous bool     `json:"anomalous"`
	Persisted bool     `json:"persisted"`
	Message   string   `json:"message,omitempty"`
}

// PredictResponse is returned by POST /predict.
type PredictResponse struct {
	ImageSetID  string             `json:"image_set_id"`
	CapturedAt  time.Time          `json:"captured_at"`
	Current     ReadingPayload     `json:"current"`
	Previous    *ReadingPayload    `json:"previous"`
	Consumption ConsumptionPayload `json:"consumption"`
	ViewURL     string             `json:"view_url"`
}

// ErrorResponse is the body of every JSON error.
type ErrorResponse struct {
	Detail string `json:"detail"`
}

// StatusResponse is returned by the health endpoint.
type StatusResponse struct {
	Status string `json:"status"`
}
