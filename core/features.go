package core

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// MetadataKey is the raw key holding a nested metadata mapping.
const MetadataKey = "metadata"

// FeatureMap names the flat keys that map onto Record fields.
type FeatureMap struct {
	DocFeature   string
	EmbedFeature string
	IDFeature    string
	MetaFeatures []string
}

// DefaultFeatureMap returns the feature map matching the Record JSON shape.
func DefaultFeatureMap() FeatureMap {
	return FeatureMap{
		DocFeature:   "text_chunk",
		EmbedFeature: "embedding",
		IDFeature:    "id",
	}
}

// Validate checks that a document feature is named.
func (f FeatureMap) Validate() error {
	if f.DocFeature == "" {
		return fmt.Errorf("%w: document feature is required", ErrInvalidFeatureMap)
	}
	return nil
}

// Remap converts a flat mapping into a Record.
//
// Metadata is resolved in this order:
//  1. a nested "metadata" mapping with no requested meta features is used verbatim
//  2. a nested "metadata" mapping with requested features is projected, and a
//     missing key is an error
//  3. without a nested mapping, requested features are taken from the top level
//  4. otherwise metadata is nil
func Remap(raw map[string]any, fm FeatureMap) (*Record, error) {
	rec := &Record{}

	doc, ok := raw[fm.DocFeature]
	if !ok {
		return nil, &MissingFieldError{Field: fm.DocFeature}
	}
	text, err := stringField(fm.DocFeature, doc)
	if err != nil {
		return nil, err
	}
	rec.TextChunk = text

	if fm.EmbedFeature != "" {
		emb, err := embeddingField(fm.EmbedFeature, raw[fm.EmbedFeature])
		if err != nil {
			return nil, err
		}
		rec.Embedding = emb
	}

	if fm.IDFeature != "" {
		id, err := stringField(fm.IDFeature, raw[fm.IDFeature])
		if err != nil {
			return nil, err
		}
		rec.ID = id
	}

	nested, hasNested := raw[MetadataKey].(map[string]any)
	switch {
	case hasNested && len(fm.MetaFeatures) == 0:
		rec.Metadata = NormalizeMetadata(nested)
	case hasNested:
		meta, err := project(nested, fm.MetaFeatures)
		if err != nil {
			return nil, err
		}
		rec.Metadata = meta
	case len(fm.MetaFeatures) > 0:
		meta, err := project(raw, fm.MetaFeatures)
		if err != nil {
			return nil, err
		}
		rec.Metadata = meta
	}
	return rec, nil
}

// ToFlat converts a Record into a flat mapping. Requested meta features that the
// record does not carry are skipped.
func ToFlat(rec *Record, fm FeatureMap) Flat {
	out := make(Flat, 3+len(rec.Metadata))
	if fm.DocFeature != "" {
		out[fm.DocFeature] = optional(rec.TextChunk)
	}
	if fm.EmbedFeature != "" {
		if rec.Embedding != nil {
			out[fm.EmbedFeature] = rec.Embedding
		} else {
			out[fm.EmbedFeature] = nil
		}
	}
	if fm.IDFeature != "" {
		out[fm.IDFeature] = optional(rec.ID)
	}
	if len(fm.MetaFeatures) == 0 {
		for k, v := range rec.Metadata {
			out[k] = v
		}
		return out
	}
	for _, k := range fm.MetaFeatures {
		if v, ok := rec.Metadata[k]; ok {
			out[k] = v
		}
	}
	return out
}

func project(src map[string]any, keys []string) (Metadata, error) {
	meta := make(Metadata, len(keys))
	for _, k := range keys {
		v, ok := src[k]
		if !ok {
			return nil, &MissingFieldError{Field: k}
		}
		if nv, ok := NormalizeValue(v); ok {
			meta[k] = nv
		}
	}
	return meta, nil
}

func optional(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func stringField(name string, v any) (*string, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case string:
		return &val, nil
	case json.Number:
		s := val.String()
		return &s, nil
	case int64:
		s := strconv.FormatInt(val, 10)
		return &s, nil
	case int:
		s := strconv.Itoa(val)
		return &s, nil
	case float64:
		s := strconv.FormatFloat(val, 'f', -1, 64)
		return &s, nil
	default:
		return nil, fmt.Errorf("%w: %s has type %T", ErrInvalidFieldType, name, v)
	}
}

func embeddingField(name string, v any) ([]float32, error) {
	switch val := v.(type) {
	case nil:
		return nil, nil
	case []float32:
		return val, nil
	case []float64:
		out := make([]float32, len(val))
		for i, f := range val {
			out[i] = float32(f)
		}
		return out, nil
	case []any:
		out := make([]float32, len(val))
		for i, item := range val {
			f, err := floatValue(item)
			if err != nil {
				return nil, fmt.Errorf("%w: %s[%d]: %w", ErrInvalidFieldType, name, i, err)
			}
			out[i] = f
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s has type %T", ErrInvalidFieldType, name, v)
	}
}

func floatValue(v any) (float32, error) {
	switch n := v.(type) {
	case json.Number:
		f, err := n.Float64()
		return float32(f), err
	case float64:
		return float32(n), nil
	case float32:
		return n, nil
	case int64:
		return float32(n), nil
	case int:
		return float32(n), nil
	default:
		return 0, fmt.Errorf("not a number: %T", v)
	}
}
