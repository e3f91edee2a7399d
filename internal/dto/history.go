package dto

import (
	"encoding/json"
	"time"
)

// HistoryItem is one image set in the history listing.
type HistoryItem struct {
	ImageSetID  string    `json:"image_set_id"`
	Current     string    `json:"current"`
	Previous    *string   `json:"previous"`
	Consumption *float64  `json:"consumption"`
	CapturedAt  time.Time `json:"captured_at"`
	ViewURL     string    `json:"view_url"`
}

// MarshalJSON adds a display date next to the RFC 3339 timestamp.
func (h HistoryItem) MarshalJSON() ([]byte, error) {
	type Alias HistoryItem
	return json.Marshal(&struct {
		Date string `json:"date"`
		Alias
	}{
		Date:  h.CapturedAt.Format("02-01-2006 15:04"),
		Alias: (Alias)(h),
	})
}

// HistoryResponse is one page of GET /api/history.
type HistoryResponse struct {
	Items []HistoryItem `json:"items"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
	Total int           `json:"total"`
	Pages int           `json:"pages"`
}
