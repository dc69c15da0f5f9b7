// Package infer classifies the columns of a dataset into geo, time and
// feature candidates for the column selection UI.
package infer

import (
	"slices"
	"strings"

	"github.com/HatiCode/dtsociety/pkg/geo"
	"github.com/HatiCode/dtsociety/pkg/table"
)

const (
	// SampleSize is the number of values inspected by the geo test.
	SampleSize = 10
	// MaxGeoFailures is the number of sampled values allowed to fail the geo test.
	MaxGeoFailures = 4
	// MaxCategories caps the distinct values a column may contribute as candidates.
	MaxCategories = 15
)

// Options is the result of inference over one dataset.
type Options struct {
	// Features lists selectable feature names: numeric columns plus the
	// distinct values of low-cardinality categorical columns.
	Features []string `json:"possibleFeatures"`
	// GeoColumn is the detected geo column, empty when there is none.
	GeoColumn string `json:"geoSelected"`
	// Columns is the original column list.
	Columns []string `json:"initialColumns"`
}

// Infer inspects t and returns its column options. t is not modified.
func Infer(t *table.Table, resolver geo.Resolver) Options {
	opts := Options{Columns: slices.Clone(t.Columns)}

	var candidates []string
	for _, c := range t.Columns {
		name := strings.TrimSpace(c)
		if table.IsDateLike(name) {
			continue
		}
		candidates = append(candidates, name)

		if !rowLevel(t, c) {
			continue
		}
		if opts.GeoColumn == "" && resolver != nil && IsGeoColumn(t, c, resolver) {
			opts.GeoColumn = c
			candidates = candidates[:len(candidates)-1]
		}
		distinct := t.Distinct(c)
		if len(distinct) > MaxCategories {
			continue
		}
		for _, v := range distinct {
			candidates = append(candidates, strings.TrimSpace(table.String(v)))
		}
	}

	opts.Features = dedupe(candidates)
	return opts
}

// rowLevel reports whether a column holds categorical values: not floating
// point and not a time column.
func rowLevel(t *table.Table, column string) bool {
	first, ok := firstValue(t, column)
	if !ok {
		return false
	}
	switch v := first.(type) {
	case float64, float32, int, int64:
		return false
	case string:
		if _, isNum := table.Float(v); isNum {
			return false
		}
	}
	return !table.IsDateLike(first)
}

func firstValue(t *table.Table, column string) (any, bool) {
	for _, row := range t.Rows {
		if v := row[column]; v != nil {
			return v, true
		}
	}
	return nil, false
}

// IsGeoColumn samples up to SampleSize evenly spaced values of column and
// reports whether at most MaxGeoFailures of them fail to resolve as a
// country or region. With fewer than SampleSize values the failure budget
// scales proportionally.
func IsGeoColumn(t *table.Table, column string, resolver geo.Resolver) bool {
	sample := sampleValues(t, column, SampleSize)
	if len(sample) == 0 {
		return false
	}
	failed := 0
	for _, v := range sample {
		if !countryLike(v, resolver) {
			failed++
		}
	}
	return failed*SampleSize <= MaxGeoFailures*len(sample)
}

func countryLike(v any, resolver geo.Resolver) bool {
	s, ok := v.(string)
	if !ok {
		return false
	}
	s = strings.TrimSpace(s)
	var kind geo.Kind
	switch {
	case len(s) < 2:
		return false
	case len(s) == 2:
		kind = geo.Alpha2
	case len(s) == 3:
		kind = geo.Alpha3
	default:
		kind = geo.Name
	}
	_, ok = resolver.Resolve(s, kind)
	return ok
}

func sampleValues(t *table.Table, column string, n int) []any {
	var values []any
	for _, row := range t.Rows {
		if v := row[column]; v != nil {
			values = append(values, v)
		}
	}
	if len(values) <= n {
		return values
	}
	out := make([]any, n)
	step := float64(len(values)) / float64(n)
	for i := range out {
		out[i] = values[int(float64(i)*step)]
	}
	return out
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
