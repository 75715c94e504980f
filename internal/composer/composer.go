// Package composer builds the multimodal request sent to the analysis model:
// the image as inline data plus a text block holding the metadata digest and
// the task instructions.
package composer

import (
	"encoding/base64"
	"strings"

	"github.com/raysh454/veritas/internal/metadata"
)

const (
	// DigestHeader introduces the metadata digest in the text part.
	DigestHeader = "Image EXIF metadata:"
	// EmptyDigest stands in for the digest when the record has no entries.
	EmptyDigest = "(no EXIF metadata detected)"
)

// SystemInstruction frames the model as a forensic examiner.
const SystemInstruction = `You are a senior digital image forensics examiner. Your job is to decide whether an image is an authentic capture, AI-generated, or digitally tampered with.
Examine the image with the following lenses:
1. Typography and text rendering. Look for warped glyphs, inconsistent kerning, fonts that do not match their surroundings, misspellings in printed text.
2. Layout and geometry. Look for broken perspective, misaligned edges, duplicated regions, inconsistent shadows and lighting.
3. AI generation artifacts. Look for malformed hands or teeth, melted textures, implausible reflections, over-smooth skin, incoherent backgrounds.
4. Metadata and temporal consistency. Compare the supplied EXIF metadata with the visual content. Editing software identifiers, missing camera data, and timestamps that contradict each other are signals, not proof.
Be calibrated. When the evidence is weak or conflicting, answer Uncertain.`

// Instructions follow the metadata digest in the text part. No line in it
// has the "name: value" shape of a digest line.
const Instructions = `Analyze the image above together with its metadata.
Respond with JSON only, matching the declared schema.
Set verdict to exactly one of Real, AI-Generated, Tampered or Uncertain.
Set confidence to an integer from 0 to 100.
Write a short summary of the decisive findings.
List each observation in evidence with a short feature label, a description and the reasoning behind it.
When an observation refers to a region of the image, add boundingBox as [ymin, xmin, ymax, xmax] with each value normalized to the range 0 to 1.`

// InlineData carries base64-encoded bytes with their MIME type.
type InlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

// Part is one element of a content turn: either inline data or text.
type Part struct {
	InlineData *InlineData `json:"inlineData,omitempty"`
	Text       string      `json:"text,omitempty"`
}

// Content is one turn of the conversation.
type Content struct {
	Role  string `json:"role,omitempty"`
	Parts []Part `json:"parts"`
}

// Request is the model-facing part of a generateContent call. Generation
// settings and the response schema are added by the analysis client.
type Request struct {
	Contents          []Content `json:"contents"`
	SystemInstruction *Content  `json:"systemInstruction,omitempty"`
}

// Compose builds the request for one image. It is pure: identical inputs give
// identical output.
func Compose(image []byte, mimeType string, record *metadata.Record) *Request {
	return &Request{
		Contents: []Content{{
			Role: "user",
			Parts: []Part{
				{InlineData: &InlineData{
					MIMEType: mimeType,
					Data:     base64.StdEncoding.EncodeToString(image),
				}},
				{Text: Text(record)},
			},
		}},
		SystemInstruction: &Content{
			Parts: []Part{{Text: SystemInstruction}},
		},
	}
}

// Text renders the text part: header, digest, a blank line, instructions.
func Text(record *metadata.Record) string {
	var b strings.Builder
	b.WriteString(DigestHeader)
	b.WriteByte('\n')
	b.WriteString(Digest(record))
	b.WriteString("\n\n")
	b.WriteString(Instructions)
	return b.String()
}

// oneLine keeps a key or value from opening a new digest line.
var oneLine = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// Digest renders one "name: value" line per entry in insertion order, or
// EmptyDigest when the record is empty.
func Digest(record *metadata.Record) string {
	if record.Len() == 0 {
		return EmptyDigest
	}
	lines := make([]string, 0, record.Len())
	for _, e := range record.Entries() {
		lines = append(lines, oneLine.Replace(e.Key)+": "+oneLine.Replace(metadata.FormatValue(e.Value)))
	}
	return strings.Join(lines, "\n")
}

// TextPart returns the text of the first text part, or "".
func (r *Request) TextPart() string {
	if r == nil {
		return ""
	}
	for _, c := range r.Contents {
		for _, p := range c.Parts {
			if p.Text != "" {
				return p.Text
			}
		}
	}
	return ""
}
