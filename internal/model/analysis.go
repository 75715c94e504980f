package model

// Verdict is the closed classification outcome of an analysis.
type Verdict string

// Wire values are the ones declared in the response schema sent to the model.
const (
	VerdictAuthentic   Verdict = "Real"
	VerdictAIGenerated Verdict = "AI-Generated"
	VerdictTampered    Verdict = "Tampered"
	VerdictUncertain   Verdict = "Uncertain"
)

// Verdicts lists every verdict in schema order.
var Verdicts = []Verdict{VerdictAuthentic, VerdictAIGenerated, VerdictTampered, VerdictUncertain}

// Valid reports whether v is one of the closed set.
func (v Verdict) Valid() bool {
	for _, known := range Verdicts {
		if v == known {
			return true
		}
	}
	return false
}

// Label is the human-readable badge text for a verdict.
func (v Verdict) Label() string {
	switch v {
	case VerdictAuthentic:
		return "Authentic Image"
	case VerdictAIGenerated:
		return "AI Generated"
	case VerdictTampered:
		return "Manipulated"
	default:
		return "Inconclusive"
	}
}

// EvidencePoint is one claimed forensic observation.
type EvidencePoint struct {
	Feature     string `json:"feature"`
	Description string `json:"description"`
	Reasoning   string `json:"reasoning"`

	// BoundingBox is [ymin, xmin, ymax, xmax] in image-normalized coordinates.
	// The producer does not guarantee length, range or ordering.
	BoundingBox []float64 `json:"boundingBox,omitempty"`
}

// HasBox reports whether the point carries a 4-element box.
func (p EvidencePoint) HasBox() bool {
	return len(p.BoundingBox) == 4
}

// AnalysisResult is the validated outcome of one analysis request.
type AnalysisResult struct {
	Verdict Verdict `json:"verdict"`

	// Confidence is nominally 0..100 but is stored exactly as produced.
	Confidence int    `json:"confidence"`
	Summary    string `json:"summary"`

	// Evidence is in rendering order.
	Evidence []EvidencePoint `json:"evidence"`
}
