package producer

import (
	"fmt"
	"maps"
	"math/rand/v2"
	"slices"
)

// Query is a metadata filter over generated records together with the
// number of records it matches.
type Query struct {
	ID    string         `json:"id"`
	Tags  []string       `json:"tags"`
	Query map[string]any `json:"query"`
	Count int            `json:"count"`
}

// DefaultQuerySamples is the number of equality and random metadata
// queries generated per kind.
const DefaultQuerySamples = 10

// Queries returns range, equality and metadata queries over the records of
// the last Produce call. samples bounds the equality and metadata queries
// per kind.
func (s *Synthetic) Queries(samples int) []Query {
	if samples <= 0 {
		samples = DefaultQuerySamples
	}
	r := rand.New(rand.NewPCG(s.cfg.Seed+1, s.cfg.Seed))

	floats := s.floats
	ints := make([]float64, len(s.ints))
	for i, v := range s.ints {
		ints[i] = float64(v)
	}

	var out []Query
	out = append(out, rangeQueries(FloatValKey, "float", floats, false)...)
	out = append(out, rangeQueries(IntValKey, "int", ints, true)...)
	out = append(out, eqQueries(r, IntValKey, "int", countValues(s.ints), samples)...)
	out = append(out, eqQueries(r, FloatValKey, "float", countValues(s.floats), samples)...)
	return append(out, s.metaQueries(r, samples)...)
}

func rangeQueries(key, kind string, values []float64, isInt bool) []Query {
	var out []Query
	for _, inclusive := range []bool{true, false} {
		lowerOp, upperOp, mode := "$gte", "$lte", "inclusive"
		if !inclusive {
			lowerOp, upperOp, mode = "$gt", "$lt", "exclusive"
		}
		for sigma := 1; sigma <= 3; sigma++ {
			lo := valueMean - float64(sigma)*valueStd
			hi := valueMean + float64(sigma)*valueStd
			count := 0
			for _, v := range values {
				if (inclusive && v >= lo && v <= hi) || (!inclusive && v > lo && v < hi) {
					count++
				}
			}
			bounds := [2]any{lo, hi}
			if isInt {
				bounds = [2]any{int64(lo), int64(hi)}
			}
			out = append(out, Query{
				ID:   fmt.Sprintf("%s_%s_range_%d-sigma_%v_%v", mode, key, sigma, bounds[0], bounds[1]),
				Tags: []string{"range", kind, mode},
				Query: map[string]any{"$and": []any{
					map[string]any{key: map[string]any{lowerOp: bounds[0]}},
					map[string]any{key: map[string]any{upperOp: bounds[1]}},
				}},
				Count: count,
			})
		}
	}
	return out
}

func countValues[T int64 | float64](values []T) map[T]int {
	counts := make(map[T]int, len(values))
	for _, v := range values {
		counts[v]++
	}
	return counts
}

// eqQueries samples distinct values, preferring those that occur more than
// once.
func eqQueries[T int64 | float64](r *rand.Rand, key, kind string, counts map[T]int, samples int) []Query {
	var repeated []T
	for v, n := range counts {
		if n > 1 {
			repeated = append(repeated, v)
		}
	}
	candidates := repeated
	if len(candidates) == 0 {
		candidates = slices.Collect(maps.Keys(counts))
	}
	slices.Sort(candidates)
	r.Shuffle(len(candidates), func(i, j int) {
		candidates[i], candidates[j] = candidates[j], candidates[i]
	})

	out := make([]Query, 0, min(samples, len(candidates)))
	for _, v := range candidates[:min(samples, len(candidates))] {
		out = append(out, Query{
			ID:    fmt.Sprintf("eq_query_%s_%v", key, v),
			Tags:  []string{"eq", kind},
			Query: map[string]any{key: v},
			Count: counts[v],
		})
	}
	return out
}

// metaQueries filters on the first word pair of randomly chosen records.
func (s *Synthetic) metaQueries(r *rand.Rand, samples int) []Query {
	picks := r.Perm(len(s.firsts))[:min(samples, len(s.firsts))]
	slices.Sort(picks)

	out := make([]Query, 0, len(picks))
	for _, i := range picks {
		k, v := s.firsts[i][0], s.firsts[i][1]
		count := 0
		for _, words := range s.words {
			if words[k] == v {
				count++
			}
		}
		out = append(out, Query{
			ID:    fmt.Sprintf("random_meta_%d", i),
			Tags:  []string{"meta", "random", "eq"},
			Query: map[string]any{k: v},
			Count: count,
		})
	}
	return out
}
