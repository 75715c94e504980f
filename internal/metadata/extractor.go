package metadata

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/rwcarlsen/goexif/exif"
	"github.com/rwcarlsen/goexif/tiff"

	"github.com/raysh454/veritas/internal/logging"
)

// Status classifies how much of the embedded metadata could be read.
type Status string

const (
	// StatusOK means the tag directory was parsed, or the container had none.
	StatusOK Status = "ok"
	// StatusUnsupported means the container is not JPEG; only file facts are present.
	StatusUnsupported Status = "unsupported"
	// StatusDegraded means decoding failed part way; only file facts are present.
	StatusDegraded Status = "degraded"
)

// Diagnostic messages carried by non-OK results.
const (
	DiagUnsupported = "unsupported format for metadata extraction"
	DiagFailed      = "metadata extraction failed"
)

// maxStringLen bounds string tag values kept in a record.
const maxStringLen = 512

// jpegSOI is the two-byte start-of-image marker of a JPEG container.
var jpegSOI = []byte{0xFF, 0xD8}

// structural IFD offsets that carry no information of their own.
var structuralTags = map[string]bool{
	string(exif.ExifIFDPointer):                   true,
	string(exif.GPSInfoIFDPointer):                true,
	string(exif.InteroperabilityIFDPointer):       true,
	string(exif.ThumbJPEGInterchangeFormat):       true,
	string(exif.ThumbJPEGInterchangeFormatLength): true,
}

// stableTags are re-assigned after the generic pass so they always appear
// under these names when the source tag is present.
var stableTags = []struct {
	name   string
	source exif.FieldName
}{
	{"Make", exif.Make},
	{"Model", exif.Model},
	{"Software", exif.Software},
	{"ModifyDate", exif.DateTime},
	{"DateTimeOriginal", exif.DateTimeOriginal},
}

// FileInfo holds the file-level facts known before any decoding.
type FileInfo struct {
	Name     string
	Size     int64
	MIMEType string
}

// Result is the outcome of one extraction. Record is never nil.
type Result struct {
	Status     Status  `json:"status"`
	Record     *Record `json:"record"`
	Diagnostic string  `json:"diagnostic,omitempty"`
}

// OK reports whether the record is complete.
func (r Result) OK() bool {
	return r.Status == StatusOK
}

// Extractor decodes embedded image metadata into a Record. It never fails the
// caller: decoding problems are reported through Result.Status.
type Extractor struct {
	logger logging.Logger
}

// NewExtractor creates an Extractor.
func NewExtractor(logger logging.Logger) *Extractor {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Extractor{logger: logger.With(logging.Field{Key: "component", Value: "metadata"})}
}

// Extract reads data and returns the metadata record for it.
func (e *Extractor) Extract(ctx context.Context, data []byte, info FileInfo) Result {
	if err := ctx.Err(); err != nil {
		return Result{Status: StatusDegraded, Record: fileFacts(info), Diagnostic: DiagFailed}
	}

	if !bytes.HasPrefix(data, jpegSOI) {
		e.logger.Debug("skipping metadata extraction for non-JPEG container",
			logging.Field{Key: "file", Value: info.Name},
			logging.Field{Key: "mime_type", Value: info.MIMEType})
		return Result{Status: StatusUnsupported, Record: fileFacts(info), Diagnostic: DiagUnsupported}
	}

	x, err := decode(data)
	if err != nil {
		if x == nil && errors.Is(err, io.EOF) {
			// JPEG without an APP1 segment: nothing embedded, nothing wrong.
			e.logger.Debug("no EXIF segment", logging.Field{Key: "file", Value: info.Name})
			return Result{Status: StatusOK, Record: fileFacts(info)}
		}
		if x == nil || exif.IsCriticalError(err) {
			e.logger.Warn("metadata extraction failed",
				logging.Field{Key: "file", Value: info.Name},
				logging.Field{Key: "error", Value: err.Error()})
			return Result{Status: StatusDegraded, Record: fileFacts(info), Diagnostic: DiagFailed}
		}
		e.logger.Debug("non-critical EXIF decode error",
			logging.Field{Key: "file", Value: info.Name},
			logging.Field{Key: "error", Value: err.Error()})
	}

	rec := fileFacts(info)
	if err := copyScalarTags(x, rec); err != nil {
		e.logger.Warn("walking EXIF tags failed",
			logging.Field{Key: "file", Value: info.Name},
			logging.Field{Key: "error", Value: err.Error()})
		return Result{Status: StatusDegraded, Record: fileFacts(info), Diagnostic: DiagFailed}
	}
	assignStableTags(x, rec)
	assignGPS(x, rec)

	e.logger.Debug("extracted metadata",
		logging.Field{Key: "file", Value: info.Name},
		logging.Field{Key: "entries", Value: rec.Len()})

	return Result{Status: StatusOK, Record: rec}
}

func decode(data []byte) (x *exif.Exif, err error) {
	defer func() {
		if r := recover(); r != nil {
			x, err = nil, fmt.Errorf("exif decoder panic: %v", r)
		}
	}()
	return exif.Decode(bytes.NewReader(data))
}

func fileFacts(info FileInfo) *Record {
	rec := newRecord()
	rec.set("FileName", info.Name)
	size := info.Size
	if size < 0 {
		size = 0
	}
	rec.set("FileSize", humanize.IBytes(uint64(size)))
	rec.set("FileType", info.MIMEType)
	return rec
}

type tagCollector struct {
	names []string
	vals  map[string]any
}

func (c *tagCollector) Walk(name exif.FieldName, tag *tiff.Tag) error {
	key := string(name)
	if Excluded(key) || structuralTags[key] {
		return nil
	}
	v, ok := scalarValue(tag)
	if !ok {
		return nil
	}
	if _, seen := c.vals[key]; !seen {
		c.names = append(c.names, key)
	}
	c.vals[key] = v
	return nil
}

// copyScalarTags adds every single-valued tag in name order; the decoder
// walks its tag map in no particular order.
func copyScalarTags(x *exif.Exif, rec *Record) error {
	c := &tagCollector{vals: make(map[string]any)}
	if err := x.Walk(c); err != nil {
		return err
	}
	sort.Strings(c.names)
	for _, name := range c.names {
		rec.set(name, c.vals[name])
	}
	return nil
}

// lineBreaks flattens multi-line strings so each tag stays one line.
var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// scalarValue converts a tag to a scalar. Arrays, binary and undefined
// payloads yield false.
func scalarValue(tag *tiff.Tag) (any, bool) {
	if tag == nil {
		return nil, false
	}
	switch tag.Format() {
	case tiff.StringVal:
		s, err := tag.StringVal()
		if err != nil {
			return nil, false
		}
		s = strings.TrimSpace(lineBreaks.Replace(strings.TrimRight(s, "\x00")))
		if s == "" || len(s) > maxStringLen {
			return nil, false
		}
		return s, true
	case tiff.IntVal:
		if tag.Count != 1 {
			return nil, false
		}
		v, err := tag.Int64(0)
		if err != nil {
			return nil, false
		}
		return v, true
	case tiff.RatVal:
		if tag.Count != 1 {
			return nil, false
		}
		num, den, err := tag.Rat2(0)
		if err != nil || den == 0 {
			return nil, false
		}
		return float64(num) / float64(den), true
	case tiff.FloatVal:
		if tag.Count != 1 {
			return nil, false
		}
		v, err := tag.Float(0)
		if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, false
		}
		return v, true
	default:
		return nil, false
	}
}

func assignStableTags(x *exif.Exif, rec *Record) {
	for _, st := range stableTags {
		tag, err := x.Get(st.source)
		if err != nil {
			continue
		}
		if v, ok := scalarValue(tag); ok {
			rec.set(st.name, v)
		}
	}
}

// assignGPS emits decimal coordinates only when both triples are complete.
func assignGPS(x *exif.Exif, rec *Record) {
	lat, ok := dmsTriple(x, exif.GPSLatitude)
	if !ok {
		return
	}
	lon, ok := dmsTriple(x, exif.GPSLongitude)
	if !ok {
		return
	}

	latRef := refOrDefault(x, exif.GPSLatitudeRef, "N")
	lonRef := refOrDefault(x, exif.GPSLongitudeRef, "E")

	latDD := DMSToDecimal(lat[0], lat[1], lat[2], latRef)
	lonDD := DMSToDecimal(lon[0], lon[1], lon[2], lonRef)

	rec.set("GPSLatitude", latDD)
	rec.set("GPSLongitude", lonDD)
	rec.set("GPSCoordinates", FormatCoordinates(latDD, lonDD))
}

func dmsTriple(x *exif.Exif, name exif.FieldName) ([3]float64, bool) {
	var out [3]float64
	tag, err := x.Get(name)
	if err != nil || tag.Format() != tiff.RatVal || tag.Count < 3 {
		return out, false
	}
	for i := 0; i < 3; i++ {
		num, den, err := tag.Rat2(i)
		if err != nil || den == 0 {
			return out, false
		}
		out[i] = float64(num) / float64(den)
	}
	return out, true
}

func refOrDefault(x *exif.Exif, name exif.FieldName, def string) string {
	tag, err := x.Get(name)
	if err != nil {
		return def
	}
	s, err := tag.StringVal()
	if err != nil || strings.TrimSpace(s) == "" {
		return def
	}
	return strings.TrimSpace(s)
}
