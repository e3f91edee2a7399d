package model

// Prediction is a single box as reported by the hosted detection model.
// Coordinates are in image pixels and X/Y mark the box center.
type Prediction struct {
	X          float64 `json:"x"`
	Y          float64 `json:"y"`
	Width      float64 `json:"width"`
	Height     float64 `json:"height"`
	Confidence float64 `json:"confidence"`
	Class      string  `json:"class"`
}

// Detection is a prediction converted to edge coordinates.
type Detection struct {
	Left        float64 `json:"left_x"`
	Top         float64 `json:"top_y"`
	Right       float64 `json:"right_x"`
	Bottom      float64 `json:"bottom_y"`
	Confidence  float64 `json:"confidence"`
	Label       string  `json:"label"`
	SourceIndex int     `json:"source_index"`
}
