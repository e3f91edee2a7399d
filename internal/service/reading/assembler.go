// Package reading turns raw model predictions into an ordered meter reading.
package reading

import (
	"sort"
	"strings"

	"meterease/internal/model"
)

// Assembly is the result of ordering the detections of one image.
type Assembly struct {
	Labels     []string
	Value      string
	Detections []model.Detection
}

// Empty reports whether nothing was detected. An empty assembly is a valid
// reading whose value is the empty string.
func (a Assembly) Empty() bool {
	return len(a.Detections) == 0
}

// ToDetection converts a center based prediction into edge coordinates.
func ToDetection(p model.Prediction, index int) model.Detection {
	halfW := p.Width / 2
	halfH := p.Height / 2
	return model.Detection{
		Left:        p.X - halfW,
		Top:         p.Y - halfH,
		Right:       p.X + halfW,
		Bottom:      p.Y + halfH,
		Confidence:  p.Confidence,
		Label:       p.Class,
		SourceIndex: index,
	}
}

// Assemble orders predictions left to right and joins their labels.
// Equal left edges keep the order in which the model returned them.
func Assemble(predictions []model.Prediction) Assembly {
	detections := make([]model.Detection, len(predictions))
	for i, p := range predictions {
		detections[i] = ToDetection(p, i)
	}

	sort.SliceStable(detections, func(i, j int) bool {
		return detections[i].Left < detections[j].Left
	})

	labels := make([]string, len(detections))
	for i, d := range detections {
		labels[i] = d.Label
	}

	return Assembly{
		Labels:     labels,
		Value:      strings.Join(labels, ""),
		Detections: detections,
	}
}
