package model

import "time"

// ReadingEvent is pushed to live viewers and the message broker after a
// prediction has been stored.
type ReadingEvent struct {
	ImageSetID        string    `json:"image_set_id"`
	Current           string    `json:"current"`
	Previous          *string   `json:"previous,omitempty"`
	ConsumptionStatus string    `json:"consumption_status"`
	Consumption       *float64  `json:"consumption,omitempty"`
	Anomalous         bool      `json:"anomalous"`
	CapturedAt        time.Time `json:"captured_at"`
}
