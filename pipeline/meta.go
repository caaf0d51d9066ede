package pipeline

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/poiesic/docpipe/core"
)

// MetaConfig describes a metadata edit. Remove runs before Add. Add values
// are templates; the rendered text goes through core.InferLiteral, so
// 'quoted' values stay strings.
type MetaConfig struct {
	Add       map[string]string
	Remove    []string
	Overwrite bool
}

// Validate requires at least one key to add or remove.
func (c MetaConfig) Validate() error {
	if len(c.Add) == 0 && len(c.Remove) == 0 {
		return ErrEmptyMetaEdit
	}
	for k := range c.Add {
		if k == "" {
			return fmt.Errorf("%w: empty key", ErrInvalidKeyValue)
		}
	}
	return nil
}

// ParseKeyValue splits "key=value" at the first '='.
func ParseKeyValue(pair string) (string, string, error) {
	key, value, ok := strings.Cut(pair, "=")
	key = strings.TrimSpace(key)
	if !ok || key == "" {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidKeyValue, pair)
	}
	return key, value, nil
}

// ParseKeyValues parses every pair; a later pair wins over an earlier one
// with the same key.
func ParseKeyValues(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, p := range pairs {
		k, v, err := ParseKeyValue(p)
		if err != nil {
			return nil, err
		}
		out[k] = v
	}
	return out, nil
}

// MetaEditor applies a MetaConfig to every record.
type MetaEditor struct {
	cfg   MetaConfig
	keys  []string
	tmpls map[string]*Template
}

var _ Processor = (*MetaEditor)(nil)

// NewMetaEditor validates cfg and parses its value templates.
func NewMetaEditor(cfg MetaConfig, opts ...TemplateOption) (*MetaEditor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	env := newTemplateEnv(opts...)
	m := &MetaEditor{
		cfg:   cfg,
		keys:  slices.Sorted(maps.Keys(cfg.Add)),
		tmpls: make(map[string]*Template, len(cfg.Add)),
	}
	for _, k := range m.keys {
		t, err := env.parse(cfg.Add[k])
		if err != nil {
			return nil, fmt.Errorf("metadata %q: %w", k, err)
		}
		m.tmpls[k] = t
	}
	return m, nil
}

func (m *MetaEditor) Process(_ context.Context, rec *core.Record) ([]*core.Record, error) {
	for _, k := range m.cfg.Remove {
		delete(rec.Metadata, k)
	}
	for _, k := range m.keys {
		if _, exists := rec.Metadata[k]; exists && !m.cfg.Overwrite {
			continue
		}
		rendered, err := m.tmpls[k].Render(rec)
		if err != nil {
			return nil, fmt.Errorf("metadata %q: %w", k, err)
		}
		if rec.Metadata == nil {
			rec.Metadata = core.Metadata{}
		}
		rec.Metadata[k] = core.InferLiteral(rendered)
	}
	return []*core.Record{rec}, nil
}
