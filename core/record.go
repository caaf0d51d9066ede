package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"maps"
	"math"
	"slices"
	"strconv"
)

// Record is the unit of data moved between stores, datasets and files.
// Every field is optional; absent fields serialize as null.
type Record struct {
	ID        *string   `json:"id"`
	TextChunk *string   `json:"text_chunk"`
	Metadata  Metadata  `json:"metadata"`
	Embedding []float32 `json:"embedding"`
}

// Metadata maps keys to string, int64, float64 or bool values.
type Metadata map[string]any

// StringPtr returns a pointer to s.
func StringPtr(s string) *string {
	return &s
}

// NewRecord builds a record with the given text and no other fields.
func NewRecord(text string) *Record {
	return &Record{TextChunk: StringPtr(text)}
}

// Text returns the text chunk or "" when absent.
func (r *Record) Text() string {
	if r == nil || r.TextChunk == nil {
		return ""
	}
	return *r.TextChunk
}

// IDValue returns the id or "" when absent.
func (r *Record) IDValue() string {
	if r == nil || r.ID == nil {
		return ""
	}
	return *r.ID
}

// HasID reports whether the record carries a non-empty id.
func (r *Record) HasID() bool {
	return r != nil && r.ID != nil && *r.ID != ""
}

// SetID replaces the record id.
func (r *Record) SetID(id string) {
	r.ID = &id
}

// Clone returns a deep copy of the record.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := &Record{}
	if r.ID != nil {
		out.ID = StringPtr(*r.ID)
	}
	if r.TextChunk != nil {
		out.TextChunk = StringPtr(*r.TextChunk)
	}
	if r.Metadata != nil {
		out.Metadata = maps.Clone(r.Metadata)
	}
	if r.Embedding != nil {
		out.Embedding = make([]float32, len(r.Embedding))
		copy(out.Embedding, r.Embedding)
	}
	return out
}

// Fields exposes the record as a plain map for template evaluation.
func (r *Record) Fields() map[string]any {
	fields := map[string]any{
		"id":         nil,
		"text_chunk": nil,
		"metadata":   map[string]any{},
		"embedding":  nil,
	}
	if r.ID != nil {
		fields["id"] = *r.ID
	}
	if r.TextChunk != nil {
		fields["text_chunk"] = *r.TextChunk
	}
	if r.Metadata != nil {
		fields["metadata"] = map[string]any(r.Metadata)
	}
	if r.Embedding != nil {
		fields["embedding"] = r.Embedding
	}
	return fields
}

// UnmarshalJSON decodes metadata values, keeping integers distinct from floats
// and flattening nested values into strings.
func (m *Metadata) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		*m = nil
		return nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidMetadata, err)
	}
	*m = NormalizeMetadata(raw)
	return nil
}

// MarshalJSON encodes metadata with sorted keys. Integral floats keep a
// fractional part so they read back as floats.
func (m Metadata) MarshalJSON() ([]byte, error) {
	if m == nil {
		return []byte("null"), nil
	}
	return marshalSorted(m)
}

// Flat is a record flattened by ToFlat. It encodes like Metadata, so float
// metadata values survive a round trip through JSON.
type Flat map[string]any

func (f Flat) MarshalJSON() ([]byte, error) {
	if f == nil {
		return []byte("null"), nil
	}
	return marshalSorted(f)
}

func marshalSorted(m map[string]any) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range slices.Sorted(maps.Keys(m)) {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(k)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		if f, ok := m[k].(float64); ok && f == math.Trunc(f) && math.Abs(f) < 1e21 {
			buf.WriteString(strconv.FormatFloat(f, 'f', -1, 64))
			buf.WriteString(".0")
			continue
		}
		val, err := json.Marshal(m[k])
		if err != nil {
			return nil, fmt.Errorf("%w: key %q: %w", ErrInvalidMetadata, k, err)
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// NormalizeMetadata converts arbitrary decoded values into metadata values.
// Null values are dropped.
func NormalizeMetadata(raw map[string]any) Metadata {
	if raw == nil {
		return nil
	}
	out := make(Metadata, len(raw))
	for k, v := range raw {
		if nv, ok := NormalizeValue(v); ok {
			out[k] = nv
		}
	}
	return out
}

// NormalizeValue maps a decoded JSON value onto a metadata value. Lists are
// joined with commas and objects are re-encoded as JSON strings.
func NormalizeValue(v any) (any, bool) {
	switch val := v.(type) {
	case nil:
		return nil, false
	case string, bool, int64, float64:
		return val, true
	case json.Number:
		return numberValue(val), true
	case int:
		return int64(val), true
	case int32:
		return int64(val), true
	case uint32:
		return int64(val), true
	case float32:
		return float64(val), true
	case []string:
		return joinList(val), true
	case []any:
		parts := make([]string, 0, len(val))
		for _, item := range val {
			parts = append(parts, scalarString(item))
		}
		return joinList(parts), true
	case map[string]any:
		encoded, err := json.Marshal(val)
		if err != nil {
			return fmt.Sprint(val), true
		}
		return string(encoded), true
	default:
		return fmt.Sprint(val), true
	}
}

func numberValue(n json.Number) any {
	if bytes.ContainsAny([]byte(n), ".eE") {
		if f, err := n.Float64(); err == nil {
			return f
		}
		return n.String()
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}

func scalarString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func joinList(parts []string) string {
	var buf bytes.Buffer
	for i, p := range parts {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.WriteString(p)
	}
	return buf.String()
}
