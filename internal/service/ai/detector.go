// Package ai talks to the hosted meter digit detection model.
package ai

import (
	"context"
	"errors"
	"sync"

	"meterease/internal/model"
)

// ErrDetectionUnavailable wraps every failure of the hosted model call.
var ErrDetectionUnavailable = errors.New("detection unavailable")

// Detector returns labeled, confidence scored boxes for an encoded image.
type Detector interface {
	Detect(ctx context.Context, image []byte) ([]model.Prediction, error)
}

// StaticDetector returns a fixed answer. It stands in for the hosted model
// in tests and offline runs.
type StaticDetector struct {
	Predictions []model.Prediction
	Err         error

	mu    sync.Mutex
	calls int
}

// Detect implements Detector.
func (d *StaticDetector) Detect(ctx context.Context, image []byte) ([]model.Prediction, error) {
	d.mu.Lock()
	d.calls++
	d.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if d.Err != nil {
		return nil, d.Err
	}
	out := make([]model.Prediction, len(d.Predictions))
	copy(out, d.Predictions)
	return out, nil
}

// Calls returns how many times Detect was invoked.
func (d *StaticDetector) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}
