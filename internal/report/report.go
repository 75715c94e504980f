// Package report renders a session outcome as a standalone HTML page: the
// image with evidence overlays, the verdict badge, a confidence gauge, the
// evidence list and the metadata table.
package report

import (
	"embed"
	"fmt"
	"html"
	"html/template"
	"io"
	"strconv"

	"github.com/microcosm-cc/bluemonday"

	"github.com/raysh454/veritas/internal/geometry"
	"github.com/raysh454/veritas/internal/metadata"
	"github.com/raysh454/veritas/internal/model"
)

// TooltipLimit is the number of description characters shown on an overlay.
const TooltipLimit = 50

//go:embed templates/report.html.tmpl
var templateFS embed.FS

var page = template.Must(template.New("report.html.tmpl").ParseFS(templateFS, "templates/report.html.tmpl"))

// Input is everything a report shows. Nil Result and Metadata are allowed.
type Input struct {
	FileName  string
	ImageURL  string
	IsLoading bool
	Error     string
	Result    *model.AnalysisResult
	Metadata  *metadata.Result
}

// Renderer writes reports. Model-produced text is stripped of markup before
// it reaches the template.
type Renderer struct {
	policy *bluemonday.Policy
}

// NewRenderer creates a Renderer.
func NewRenderer() *Renderer {
	return &Renderer{policy: bluemonday.StrictPolicy()}
}

// Render writes the page for in to w.
func (r *Renderer) Render(w io.Writer, in Input) error {
	if err := page.Execute(w, r.view(in)); err != nil {
		return fmt.Errorf("render report: %w", err)
	}
	return nil
}

type view struct {
	FileName  string
	ImageURL  string
	IsLoading bool
	Error     string

	HasResult    bool
	VerdictClass string
	VerdictLabel string
	Summary      string
	Confidence   int
	Gauge        int
	Overlays     []overlayView
	Evidence     []evidenceView

	HasMetadata        bool
	MetadataDiagnostic string
	Metadata           []metadataRow
}

type overlayView struct {
	Feature string
	Tooltip string
	Style   template.CSS
}

type evidenceView struct {
	Feature     string
	Description string
	Reasoning   string
	Located     bool
}

type metadataRow struct {
	Key   string
	Value string
}

func (r *Renderer) view(in Input) view {
	v := view{
		FileName:  in.FileName,
		ImageURL:  in.ImageURL,
		IsLoading: in.IsLoading,
		Error:     in.Error,
	}

	if res := in.Result; res != nil {
		v.HasResult = true
		v.VerdictClass = verdictClass(res.Verdict)
		v.VerdictLabel = res.Verdict.Label()
		v.Summary = r.clean(res.Summary)
		v.Confidence = res.Confidence
		v.Gauge = Gauge(res.Confidence)

		if !in.IsLoading {
			for _, o := range geometry.MapAll(res.Evidence) {
				v.Overlays = append(v.Overlays, overlayView{
					Feature: r.clean(o.Feature),
					Tooltip: Truncate(r.clean(o.Description), TooltipLimit),
					Style:   overlayStyle(o),
				})
			}
		}
		for _, p := range res.Evidence {
			v.Evidence = append(v.Evidence, evidenceView{
				Feature:     r.clean(p.Feature),
				Description: r.clean(p.Description),
				Reasoning:   r.clean(p.Reasoning),
				Located:     p.HasBox(),
			})
		}
	}

	if md := in.Metadata; md != nil {
		v.HasMetadata = true
		v.MetadataDiagnostic = md.Diagnostic
		for _, e := range md.Record.Entries() {
			v.Metadata = append(v.Metadata, metadataRow{Key: e.Key, Value: metadata.FormatValue(e.Value)})
		}
	}
	return v
}

// clean strips markup. The policy escapes its output, which the template
// would escape again, so entities are decoded first.
func (r *Renderer) clean(s string) string {
	return html.UnescapeString(r.policy.Sanitize(s))
}

// Gauge clamps a confidence value to the displayable 0..100 range.
func Gauge(confidence int) int {
	switch {
	case confidence < 0:
		return 0
	case confidence > 100:
		return 100
	default:
		return confidence
	}
}

// Truncate shortens s to n characters, appending "..." when cut.
func Truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func verdictClass(v model.Verdict) string {
	switch v {
	case model.VerdictAuthentic:
		return "real"
	case model.VerdictAIGenerated:
		return "ai"
	case model.VerdictTampered:
		return "tampered"
	default:
		return "uncertain"
	}
}

func overlayStyle(o geometry.Overlay) template.CSS {
	// Values are formatted numbers only.
	return template.CSS(fmt.Sprintf("top:%s%%;left:%s%%;height:%s%%;width:%s%%",
		pct(o.Top), pct(o.Left), pct(o.Height), pct(o.Width)))
}

func pct(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
