package metadata

import (
	"bytes"
	"encoding/json"
	"math"
	"strconv"
)

// Tags that carry large or binary payloads with no narrative value. They are
// never stored in a Record, whatever their type.
var excludedTags = map[string]bool{
	"MakerNote":   true,
	"UserComment": true,
}

// Excluded reports whether a tag name is never kept in a Record.
func Excluded(name string) bool {
	return excludedTags[name]
}

// Entry is one tag name and its scalar value (string, int64 or float64).
type Entry struct {
	Key   string
	Value any
}

// Record is an insertion-ordered mapping of tag name to scalar value.
// It is immutable once returned by NewRecord or the Extractor.
type Record struct {
	entries []Entry
	index   map[string]int
}

// NewRecord builds a Record from entries, in order. Non-scalar values and
// excluded tag names are dropped. A repeated key keeps its first position and
// takes the last value.
func NewRecord(entries ...Entry) *Record {
	r := newRecord()
	for _, e := range entries {
		r.set(e.Key, e.Value)
	}
	return r
}

func newRecord() *Record {
	return &Record{index: make(map[string]int)}
}

func (r *Record) set(key string, value any) {
	if key == "" || Excluded(key) {
		return
	}
	v, ok := normalizeScalar(value)
	if !ok {
		return
	}
	if i, exists := r.index[key]; exists {
		r.entries[i].Value = v
		return
	}
	r.index[key] = len(r.entries)
	r.entries = append(r.entries, Entry{Key: key, Value: v})
}

func normalizeScalar(value any) (any, bool) {
	switch v := value.(type) {
	case string:
		return v, true
	case int:
		return int64(v), true
	case int32:
		return int64(v), true
	case int64:
		return v, true
	case uint16:
		return int64(v), true
	case uint32:
		return int64(v), true
	case float32:
		return finite(float64(v))
	case float64:
		return finite(v)
	default:
		return nil, false
	}
}

// finite rejects values JSON cannot encode.
func finite(v float64) (any, bool) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, false
	}
	return v, true
}

// Get returns the value stored under key.
func (r *Record) Get(key string) (any, bool) {
	if r == nil {
		return nil, false
	}
	i, ok := r.index[key]
	if !ok {
		return nil, false
	}
	return r.entries[i].Value, true
}

// Len is the number of entries.
func (r *Record) Len() int {
	if r == nil {
		return 0
	}
	return len(r.entries)
}

// Entries returns a copy of the entries in insertion order.
func (r *Record) Entries() []Entry {
	if r == nil {
		return nil
	}
	out := make([]Entry, len(r.entries))
	copy(out, r.entries)
	return out
}

// Keys returns the tag names in insertion order.
func (r *Record) Keys() []string {
	if r == nil {
		return nil
	}
	out := make([]string, len(r.entries))
	for i, e := range r.entries {
		out[i] = e.Key
	}
	return out
}

// MarshalJSON encodes the record as a JSON object preserving insertion order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if r != nil {
		for i, e := range r.entries {
			if i > 0 {
				buf.WriteByte(',')
			}
			k, err := json.Marshal(e.Key)
			if err != nil {
				return nil, err
			}
			v, err := json.Marshal(e.Value)
			if err != nil {
				return nil, err
			}
			buf.Write(k)
			buf.WriteByte(':')
			buf.Write(v)
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// FormatValue renders a scalar the way it is shown to users and to the model.
func FormatValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return ""
	}
}
