package analysis

import (
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/raysh454/veritas/internal/composer"
	"github.com/raysh454/veritas/internal/model"
)

// Schema is the subset of the OpenAPI schema object the endpoint accepts for
// responseSchema.
type Schema struct {
	Type        string             `json:"type"`
	Description string             `json:"description,omitempty"`
	Enum        []string           `json:"enum,omitempty"`
	Properties  map[string]*Schema `json:"properties,omitempty"`
	Items       *Schema            `json:"items,omitempty"`
	Required    []string           `json:"required,omitempty"`
}

// ResponseSchema declares the structure the model must answer with.
func ResponseSchema() *Schema {
	verdicts := make([]string, len(model.Verdicts))
	for i, v := range model.Verdicts {
		verdicts[i] = string(v)
	}
	return &Schema{
		Type: "OBJECT",
		Properties: map[string]*Schema{
			"verdict":    {Type: "STRING", Enum: verdicts},
			"confidence": {Type: "INTEGER"},
			"summary":    {Type: "STRING"},
			"evidence": {
				Type: "ARRAY",
				Items: &Schema{
					Type: "OBJECT",
					Properties: map[string]*Schema{
						"feature":     {Type: "STRING"},
						"description": {Type: "STRING"},
						"reasoning":   {Type: "STRING"},
						"boundingBox": {
							Type:        "ARRAY",
							Items:       &Schema{Type: "NUMBER"},
							Description: "Bounding box [ymin, xmin, ymax, xmax] normalized 0-1.",
						},
					},
					Required: []string{"feature", "description", "reasoning"},
				},
			},
		},
		Required: []string{"verdict", "confidence", "summary", "evidence"},
	}
}

// GenerationConfig is the generationConfig block of a generateContent call.
type GenerationConfig struct {
	Temperature      float64 `json:"temperature"`
	ResponseMIMEType string  `json:"responseMimeType"`
	ResponseSchema   *Schema `json:"responseSchema"`
}

type generateContentRequest struct {
	*composer.Request
	GenerationConfig GenerationConfig `json:"generationConfig"`
}

type generateContentResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

func (r generateContentResponse) FirstText() string {
	for _, candidate := range r.Candidates {
		for _, part := range candidate.Content.Parts {
			if strings.TrimSpace(part.Text) != "" {
				return part.Text
			}
		}
	}
	return ""
}

// wireResult mirrors ResponseSchema. Pointers distinguish missing from zero.
type wireResult struct {
	Verdict    string         `json:"verdict" validate:"required,verdict"`
	Confidence *int           `json:"confidence" validate:"required"`
	Summary    *string        `json:"summary" validate:"required"`
	Evidence   []wireEvidence `json:"evidence" validate:"required,dive"`
}

type wireEvidence struct {
	Feature     *string   `json:"feature" validate:"required"`
	Description *string   `json:"description" validate:"required"`
	Reasoning   *string   `json:"reasoning" validate:"required"`
	BoundingBox []float64 `json:"boundingBox,omitempty"`
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("verdict", func(fl validator.FieldLevel) bool {
		return model.Verdict(fl.Field().String()).Valid()
	})
	return v
}

func (w *wireResult) toModel() *model.AnalysisResult {
	evidence := make([]model.EvidencePoint, len(w.Evidence))
	for i, e := range w.Evidence {
		evidence[i] = model.EvidencePoint{
			Feature:     *e.Feature,
			Description: *e.Description,
			Reasoning:   *e.Reasoning,
			BoundingBox: e.BoundingBox,
		}
	}
	return &model.AnalysisResult{
		Verdict:    model.Verdict(w.Verdict),
		Confidence: *w.Confidence,
		Summary:    *w.Summary,
		Evidence:   evidence,
	}
}
