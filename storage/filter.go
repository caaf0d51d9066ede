package storage

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/poiesic/docpipe/core"
)

// Where is a parsed metadata filter.
type Where struct {
	raw  map[string]any
	cond condition
}

// WhereDocument is a parsed document text filter.
type WhereDocument struct {
	raw  map[string]any
	cond docCondition
}

type condition interface {
	match(meta core.Metadata) bool
}

type docCondition interface {
	match(text string) bool
}

// ParseWhere parses a metadata filter. An empty input yields nil.
func ParseWhere(data []byte) (*Where, error) {
	raw, err := decodeFilter(data)
	if err != nil || raw == nil {
		return nil, err
	}
	cond, err := parseCondition(raw)
	if err != nil {
		return nil, err
	}
	return &Where{raw: raw, cond: cond}, nil
}

// ParseWhereDocument parses a document filter. An empty input yields nil.
func ParseWhereDocument(data []byte) (*WhereDocument, error) {
	raw, err := decodeFilter(data)
	if err != nil || raw == nil {
		return nil, err
	}
	cond, err := parseDocCondition(raw)
	if err != nil {
		return nil, err
	}
	return &WhereDocument{raw: raw, cond: cond}, nil
}

// Match reports whether meta satisfies the filter. A nil filter matches everything.
func (w *Where) Match(meta core.Metadata) bool {
	if w == nil {
		return true
	}
	return w.cond.match(meta)
}

// Raw returns the filter as decoded JSON for forwarding to a remote store.
func (w *Where) Raw() map[string]any {
	if w == nil {
		return nil
	}
	return w.raw
}

// Match reports whether text satisfies the filter. A nil filter matches everything.
func (w *WhereDocument) Match(text *string) bool {
	if w == nil {
		return true
	}
	if text == nil {
		return false
	}
	return w.cond.match(*text)
}

// Raw returns the filter as decoded JSON for forwarding to a remote store.
func (w *WhereDocument) Raw() map[string]any {
	if w == nil {
		return nil
	}
	return w.raw
}

// Matches applies both filters of req to a record.
func (r GetRequest) Matches(rec *core.Record) bool {
	return r.Where.Match(rec.Metadata) && r.WhereDocument.Match(rec.TextChunk)
}

func decodeFilter(data []byte) (map[string]any, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidQuery, err)
	}
	return raw, nil
}

type allOf []condition

func (a allOf) match(meta core.Metadata) bool {
	for _, c := range a {
		if !c.match(meta) {
			return false
		}
	}
	return true
}

type anyOf []condition

func (a anyOf) match(meta core.Metadata) bool {
	for _, c := range a {
		if c.match(meta) {
			return true
		}
	}
	return false
}

type fieldCond struct {
	key    string
	op     string
	value  any
	values []any
}

func (f fieldCond) match(meta core.Metadata) bool {
	got, ok := meta[f.key]
	switch f.op {
	case "$eq":
		return ok && equalValues(got, f.value)
	case "$ne":
		return !ok || !equalValues(got, f.value)
	case "$in":
		if !ok {
			return false
		}
		for _, v := range f.values {
			if equalValues(got, v) {
				return true
			}
		}
		return false
	case "$nin":
		if !ok {
			return true
		}
		for _, v := range f.values {
			if equalValues(got, v) {
				return false
			}
		}
		return true
	}
	if !ok {
		return false
	}
	cmp, comparable := compareValues(got, f.value)
	if !comparable {
		return false
	}
	switch f.op {
	case "$gt":
		return cmp > 0
	case "$gte":
		return cmp >= 0
	case "$lt":
		return cmp < 0
	default:
		return cmp <= 0
	}
}

func parseCondition(raw map[string]any) (condition, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty where filter", ErrInvalidQuery)
	}
	var conds allOf
	for key, v := range raw {
		switch key {
		case "$and", "$or":
			items, ok := v.([]any)
			if !ok || len(items) == 0 {
				return nil, fmt.Errorf("%w: %s expects a non-empty list", ErrInvalidQuery, key)
			}
			sub := make([]condition, 0, len(items))
			for _, item := range items {
				m, ok := item.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("%w: %s items must be objects", ErrInvalidQuery, key)
				}
				c, err := parseCondition(m)
				if err != nil {
					return nil, err
				}
				sub = append(sub, c)
			}
			if key == "$and" {
				conds = append(conds, allOf(sub))
			} else {
				conds = append(conds, anyOf(sub))
			}
		default:
			if strings.HasPrefix(key, "$") {
				return nil, fmt.Errorf("%w: unknown operator %s", ErrInvalidQuery, key)
			}
			c, err := parseFieldCondition(key, v)
			if err != nil {
				return nil, err
			}
			conds = append(conds, c)
		}
	}
	if len(conds) == 1 {
		return conds[0], nil
	}
	return conds, nil
}

func parseFieldCondition(key string, v any) (condition, error) {
	ops, isMap := v.(map[string]any)
	if !isMap {
		val, err := scalar(key, v)
		if err != nil {
			return nil, err
		}
		return fieldCond{key: key, op: "$eq", value: val}, nil
	}
	if len(ops) != 1 {
		return nil, fmt.Errorf("%w: %s expects exactly one operator", ErrInvalidQuery, key)
	}
	for op, operand := range ops {
		switch op {
		case "$eq", "$ne":
			val, err := scalar(key, operand)
			if err != nil {
				return nil, err
			}
			return fieldCond{key: key, op: op, value: val}, nil
		case "$gt", "$gte", "$lt", "$lte":
			val, err := scalar(key, operand)
			if err != nil {
				return nil, err
			}
			if !isNumber(val) {
				return nil, fmt.Errorf("%w: %s %s expects a number", ErrInvalidQuery, key, op)
			}
			return fieldCond{key: key, op: op, value: val}, nil
		case "$in", "$nin":
			items, ok := operand.([]any)
			if !ok {
				return nil, fmt.Errorf("%w: %s %s expects a list", ErrInvalidQuery, key, op)
			}
			values := make([]any, 0, len(items))
			for _, item := range items {
				val, err := scalar(key, item)
				if err != nil {
					return nil, err
				}
				values = append(values, val)
			}
			return fieldCond{key: key, op: op, values: values}, nil
		default:
			return nil, fmt.Errorf("%w: unknown operator %s", ErrInvalidQuery, op)
		}
	}
	return nil, nil
}

func scalar(key string, v any) (any, error) {
	switch v.(type) {
	case string, bool, json.Number:
		nv, _ := core.NormalizeValue(v)
		return nv, nil
	}
	return nil, fmt.Errorf("%w: %s compares against unsupported value %v", ErrInvalidQuery, key, v)
}

func isNumber(v any) bool {
	switch v.(type) {
	case int64, float64:
		return true
	}
	return false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

func equalValues(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	return a == b
}

func compareValues(a, b any) (int, bool) {
	fa, ok := toFloat(a)
	if !ok {
		return 0, false
	}
	fb, ok := toFloat(b)
	if !ok {
		return 0, false
	}
	switch {
	case fa < fb:
		return -1, true
	case fa > fb:
		return 1, true
	}
	return 0, true
}

type docAll []docCondition

func (a docAll) match(text string) bool {
	for _, c := range a {
		if !c.match(text) {
			return false
		}
	}
	return true
}

type docAny []docCondition

func (a docAny) match(text string) bool {
	for _, c := range a {
		if c.match(text) {
			return true
		}
	}
	return false
}

type contains struct {
	needle string
	negate bool
}

func (c contains) match(text string) bool {
	return strings.Contains(text, c.needle) != c.negate
}

func parseDocCondition(raw map[string]any) (docCondition, error) {
	if len(raw) != 1 {
		return nil, fmt.Errorf("%w: where_document expects exactly one operator", ErrInvalidQuery)
	}
	for op, v := range raw {
		switch op {
		case "$contains", "$not_contains":
			s, ok := v.(string)
			if !ok {
				return nil, fmt.Errorf("%w: %s expects a string", ErrInvalidQuery, op)
			}
			return contains{needle: s, negate: op == "$not_contains"}, nil
		case "$and", "$or":
			items, ok := v.([]any)
			if !ok || len(items) == 0 {
				return nil, fmt.Errorf("%w: %s expects a non-empty list", ErrInvalidQuery, op)
			}
			sub := make([]docCondition, 0, len(items))
			for _, item := range items {
				m, ok := item.(map[string]any)
				if !ok {
					return nil, fmt.Errorf("%w: %s items must be objects", ErrInvalidQuery, op)
				}
				c, err := parseDocCondition(m)
				if err != nil {
					return nil, err
				}
				sub = append(sub, c)
			}
			if op == "$and" {
				return docAll(sub), nil
			}
			return docAny(sub), nil
		default:
			return nil, fmt.Errorf("%w: unknown document operator %s", ErrInvalidQuery, op)
		}
	}
	return nil, nil
}
