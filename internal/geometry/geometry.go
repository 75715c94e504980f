// Package geometry maps normalized evidence bounding boxes onto overlay
// rectangles expressed in percent of the rendered image.
package geometry

import (
	"math"

	"github.com/raysh454/veritas/internal/model"
)

// Overlay is one rectangle over the image, in percent of its dimensions.
type Overlay struct {
	Index       int     `json:"index"`
	Feature     string  `json:"feature"`
	Description string  `json:"description"`
	Top         float64 `json:"top"`
	Left        float64 `json:"left"`
	Height      float64 `json:"height"`
	Width       float64 `json:"width"`
}

// Map converts p's [ymin, xmin, ymax, xmax] box. It returns false when the
// box is missing, not exactly four values, or has a non-finite component.
// Inverted pairs are reordered and every value is clamped to [0, 1], so the
// rectangle never has negative size.
func Map(p model.EvidencePoint) (Overlay, bool) {
	if !p.HasBox() {
		return Overlay{}, false
	}
	for _, v := range p.BoundingBox {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return Overlay{}, false
		}
	}

	ymin, ymax := span(p.BoundingBox[0], p.BoundingBox[2])
	xmin, xmax := span(p.BoundingBox[1], p.BoundingBox[3])

	return Overlay{
		Feature:     p.Feature,
		Description: p.Description,
		Top:         percent(ymin),
		Left:        percent(xmin),
		Height:      percent(ymax - ymin),
		Width:       percent(xmax - xmin),
	}, true
}

// MapAll maps every point in order, skipping unusable geometry. Index is the
// position of the point in evidence.
func MapAll(evidence []model.EvidencePoint) []Overlay {
	out := make([]Overlay, 0, len(evidence))
	for i, p := range evidence {
		o, ok := Map(p)
		if !ok {
			continue
		}
		o.Index = i
		out = append(out, o)
	}
	return out
}

func span(a, b float64) (lo, hi float64) {
	a, b = clamp01(a), clamp01(b)
	if a > b {
		return b, a
	}
	return a, b
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}

func percent(v float64) float64 {
	return math.Round(v*100*1e4) / 1e4
}
