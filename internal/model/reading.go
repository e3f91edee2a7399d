package model

import (
	"fmt"
	"time"
)

// ReadingKind tells which side of a billing period a reading belongs to.
type ReadingKind string

const (
	KindCurrent  ReadingKind = "current"
	KindPrevious ReadingKind = "previous"
)

// ParseReadingKind validates a kind coming from a URL or form.
func ParseReadingKind(s string) (ReadingKind, error) {
	switch ReadingKind(s) {
	case KindCurrent, KindPrevious:
		return ReadingKind(s), nil
	}
	return "", fmt.Errorf("unknown reading kind %q", s)
}

// Reading represents one meter value captured for an image set.
// OriginalPath and ProcessedPath are empty for manually entered values.
type Reading struct {
	ID            int64       `json:"id"`
	ImageSetID    string      `json:"image_set_id"`
	Value         string      `json:"value"`
	Kind          ReadingKind `json:"kind"`
	CapturedAt    time.Time   `json:"captured_at"`
	OriginalPath  string      `json:"original_path,omitempty"`
	ProcessedPath string      `json:"processed_path,omitempty"`
}

// Manual reports whether the reading was typed in rather than detected.
func (r *Reading) Manual() bool {
	return r.OriginalPath == "" && r.ProcessedPath == ""
}

// ConsumptionRecord links a current and a previous reading with their delta.
type ConsumptionRecord struct {
	ID                int64     `json:"id"`
	CurrentReadingID  int64     `json:"current_reading_id"`
	PreviousReadingID int64     `json:"previous_reading_id"`
	Delta             float64   `json:"delta"`
	ComputedAt        time.Time `json:"computed_at"`
}

// HistoryEntry is one image set as shown on the history page.
type HistoryEntry struct {
	ImageSetID  string    `json:"image_set_id"`
	Current     string    `json:"current"`
	Previous    *string   `json:"previous"`
	Consumption *float64  `json:"consumption"`
	CapturedAt  time.Time `json:"captured_at"`
}
