// Package normalize cleans freshly parsed raw tables into canonical form.
//
// Normalization runs these steps in order:
//  1. Split a fused header ("unit,geo\time") into one column per dimension
//  2. Strip unit annotations from numeric cells and cast them to float64
//  3. Drop placeholder columns produced by headerless trailing fields
//  4. Canonicalize the geo column and drop rows that do not resolve
//  5. Optionally drop columns holding a single repeated value
package normalize

import (
	"fmt"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"github.com/HatiCode/dtsociety/pkg/errs"
	"github.com/HatiCode/dtsociety/pkg/geo"
	"github.com/HatiCode/dtsociety/pkg/table"
)

// PlaceholderPrefix names columns generated for empty headers.
const PlaceholderPrefix = "Unnamed"

var annotationPattern = regexp.MustCompile(`[a-zA-Z: ]`)

// Options configures Normalize.
type Options struct {
	// GeoColumn designates the geo column. Empty means the dataset has none.
	GeoColumn string
	// DropConstant removes columns where every row holds the same value.
	DropConstant bool
	// Resolver canonicalizes geo values. Required when GeoColumn is set.
	Resolver geo.Resolver
	Logger   *slog.Logger
}

// Normalize returns the canonical form of raw. raw is not modified.
func Normalize(raw *table.Table, opts Options) (*table.Table, error) {
	if raw == nil || len(raw.Columns) == 0 {
		return nil, errs.Validation("dataset is empty")
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	t, meta := splitFused(raw)
	if meta != nil {
		t = cleanNumeric(t, func(c string) bool { return !slices.Contains(meta, c) })
	} else {
		t = cleanNumeric(t, func(c string) bool { return c != opts.GeoColumn && annotatedNumeric(t, c) })
	}

	t = dropPlaceholders(t)

	if opts.GeoColumn != "" {
		if opts.Resolver == nil {
			return nil, fmt.Errorf("normalize: resolver required for geo column %q", opts.GeoColumn)
		}
		var err error
		t, err = canonicalizeGeo(t, opts.GeoColumn, opts.Resolver)
		if err != nil {
			return nil, err
		}
	}

	if opts.DropConstant {
		t = dropConstant(t, opts.GeoColumn)
	}

	logger.Debug("normalized dataset",
		"columns", len(t.Columns),
		"rows", t.Len(),
		"fused", meta != nil,
	)
	return t, nil
}

// splitFused replaces the first header containing a comma by one column per
// comma-separated part, placed where the fused column was.
func splitFused(raw *table.Table) (*table.Table, []string) {
	idx := slices.IndexFunc(raw.Columns, func(c string) bool { return strings.Contains(c, ",") })
	if idx < 0 {
		return raw.Clone(), nil
	}

	fused := raw.Columns[idx]
	parts := strings.Split(fused, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	columns := make([]string, 0, len(raw.Columns)+len(parts)-1)
	columns = append(columns, raw.Columns[:idx]...)
	columns = append(columns, parts...)
	columns = append(columns, raw.Columns[idx+1:]...)

	out := table.New(columns...)
	for _, row := range raw.Rows {
		nr := make(table.Row, len(columns))
		for k, v := range row {
			if k != fused {
				nr[k] = v
			}
		}
		values := strings.Split(table.String(row[fused]), ",")
		for i, p := range parts {
			if i < len(values) {
				nr[p] = strings.TrimSpace(values[i])
			} else {
				nr[p] = nil
			}
		}
		out.Append(nr)
	}
	return out, parts
}

// annotatedNumeric reports whether a string column holds numbers decorated
// with unit flags ("12.3 p", "4 e", ":").
func annotatedNumeric(t *table.Table, column string) bool {
	digits := false
	for _, row := range t.Rows {
		switch v := row[column].(type) {
		case nil, float64:
			continue
		case string:
			if table.IsDateLike(v) {
				return false
			}
			stripped := annotationPattern.ReplaceAllString(v, "")
			if stripped == "" {
				continue
			}
			if _, ok := table.Float(stripped); !ok {
				return false
			}
			digits = true
		default:
			return false
		}
	}
	return digits
}

// cleanNumeric strips annotations from the selected columns, reads the empty
// result as zero and casts to float64. Cells that still do not parse become nil.
func cleanNumeric(t *table.Table, selected func(string) bool) *table.Table {
	for _, c := range t.Columns {
		if !selected(c) {
			continue
		}
		for _, row := range t.Rows {
			switch v := row[c].(type) {
			case string:
				stripped := annotationPattern.ReplaceAllString(v, "")
				if stripped == "" {
					row[c] = 0.0
					continue
				}
				if f, ok := table.Float(stripped); ok {
					row[c] = f
				} else {
					row[c] = nil
				}
			}
		}
	}
	return t
}

func dropPlaceholders(t *table.Table) *table.Table {
	var drop []string
	for _, c := range t.Columns {
		if strings.Contains(c, PlaceholderPrefix) {
			drop = append(drop, c)
		}
	}
	if len(drop) == 0 {
		return t
	}
	return t.Drop(drop...)
}

// canonicalizeGeo rewrites the geo column into canonical codes.
//
// A column made only of uppercase values is read as codes: two letters are
// resolved as alpha-2, three letters must already be alpha-3, German state
// codes are kept and anything longer is dropped. Any other column is read as
// names, with close misspellings accepted. Values that fail to resolve, or
// resolve to a non-canonical code, become geo.Unknown and their rows are dropped.
func canonicalizeGeo(t *table.Table, column string, resolver geo.Resolver) (*table.Table, error) {
	if !t.HasColumn(column) {
		return nil, errs.Validation("geo column %q not found", column)
	}

	codes := isCodeColumn(t, column)
	out := table.New(t.Columns...)
	for _, row := range t.Rows {
		value := strings.TrimSpace(table.String(row[column]))
		code := geo.Unknown
		if codes {
			code = resolveCode(value, resolver)
		} else if c, ok := resolver.Resolve(value, geo.Label); ok {
			code = c
		}
		if !geo.IsCanonical(code) {
			continue
		}
		nr := make(table.Row, len(row))
		for k, v := range row {
			nr[k] = v
		}
		nr[column] = code
		out.Append(nr)
	}

	if out.Len() == 0 {
		return nil, errs.UnresolvableGeo(column)
	}
	return out, nil
}

func isCodeColumn(t *table.Table, column string) bool {
	for _, row := range t.Rows {
		s, ok := row[column].(string)
		if !ok {
			return false
		}
		s = strings.TrimSpace(s)
		if s == "" || s != strings.ToUpper(s) {
			return false
		}
	}
	return true
}

func resolveCode(value string, resolver geo.Resolver) string {
	switch {
	case len(value) == 2:
		if c, ok := resolver.Resolve(value, geo.Alpha2); ok {
			return c
		}
	case len(value) == 3:
		if c, ok := resolver.Resolve(value, geo.Alpha3); ok {
			return c
		}
	case strings.HasPrefix(value, "DE-"):
		for _, state := range geo.GermanStates {
			if state == value {
				return value
			}
		}
	}
	return geo.Unknown
}

func dropConstant(t *table.Table, protect string) *table.Table {
	if t.Len() == 0 {
		return t
	}
	var drop []string
	for _, c := range t.Columns {
		if c == protect {
			continue
		}
		first := fmt.Sprintf("%v", t.Rows[0][c])
		constant := true
		for _, row := range t.Rows[1:] {
			if fmt.Sprintf("%v", row[c]) != first {
				constant = false
				break
			}
		}
		if constant {
			drop = append(drop, c)
		}
	}
	if len(drop) == 0 {
		return t
	}
	return t.Drop(drop...)
}
