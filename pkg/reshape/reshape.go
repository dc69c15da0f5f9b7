// Package reshape converts wide tables (one column per time period) into long
// tables (one row per entity and period) and back.
package reshape

import (
	"cmp"
	"slices"
	"strings"

	"github.com/HatiCode/dtsociety/pkg/errs"
	"github.com/HatiCode/dtsociety/pkg/table"
)

const (
	// TimeColumn names the column holding former wide headers.
	TimeColumn = "Time"
	// ValueColumn names the value column of a melted table.
	ValueColumn = "value"
)

// WideToLong reshapes a wide table keyed by geoColumn.
//
// Without a feature column every other column is treated as a period label
// and the result has columns (geo, Time, value), one row per original cell.
// With a feature column each distinct feature value becomes its own column
// and the period labels become rows; rows are sorted by geo then Time.
// An empty geoColumn reshapes a table without a geographic dimension.
func WideToLong(t *table.Table, geoColumn, featureColumn string) (*table.Table, error) {
	if featureColumn != "" && geoColumn == featureColumn {
		return nil, errs.Validation("cannot reshape column %q on itself", geoColumn)
	}
	for _, c := range []string{geoColumn, featureColumn} {
		if c != "" && !t.HasColumn(c) {
			return nil, errs.Validation("column %q not found", c)
		}
	}
	if featureColumn == "" {
		return melt(t, geoColumn), nil
	}
	return pivot(t, geoColumn, featureColumn), nil
}

func periodColumns(t *table.Table, exclude ...string) []string {
	var out []string
	for _, c := range t.Columns {
		if !slices.Contains(exclude, c) {
			out = append(out, c)
		}
	}
	return out
}

func melt(t *table.Table, geoColumn string) *table.Table {
	columns := []string{TimeColumn, ValueColumn}
	if geoColumn != "" {
		columns = append([]string{geoColumn}, columns...)
	}
	out := table.New(columns...)
	for _, period := range periodColumns(t, geoColumn) {
		for _, row := range t.Rows {
			r := table.Row{TimeColumn: period, ValueColumn: row[period]}
			if geoColumn != "" {
				r[geoColumn] = row[geoColumn]
			}
			out.Append(r)
		}
	}
	return out
}

type cellKey struct {
	geo  string
	time string
}

func pivot(t *table.Table, geoColumn, featureColumn string) *table.Table {
	periods := periodColumns(t, geoColumn, featureColumn)

	var features []string
	for _, v := range t.Distinct(featureColumn) {
		features = append(features, table.String(v))
	}
	slices.Sort(features)

	cells := make(map[cellKey]table.Row)
	var keys []cellKey
	for _, row := range t.Rows {
		feature := table.String(row[featureColumn])
		if feature == "" {
			continue
		}
		g := ""
		if geoColumn != "" {
			g = table.String(row[geoColumn])
		}
		for _, period := range periods {
			k := cellKey{geo: g, time: strings.TrimSpace(period)}
			r, ok := cells[k]
			if !ok {
				r = table.Row{TimeColumn: k.time}
				if geoColumn != "" {
					r[geoColumn] = row[geoColumn]
				}
				for _, f := range features {
					r[f] = nil
				}
				cells[k] = r
				keys = append(keys, k)
			}
			r[feature] = row[period]
		}
	}

	slices.SortFunc(keys, func(a, b cellKey) int {
		return cmp.Or(cmp.Compare(a.geo, b.geo), cmp.Compare(a.time, b.time))
	})

	columns := append([]string{TimeColumn}, features...)
	if geoColumn != "" {
		columns = append([]string{geoColumn}, columns...)
	}
	out := table.New(columns...)
	for _, k := range keys {
		out.Append(cells[k])
	}
	return out
}

// LongToWide is the inverse of the melt performed by WideToLong without a
// feature column: one row per geo value, one column per distinct time label.
func LongToWide(t *table.Table, geoColumn, timeColumn, valueColumn string) (*table.Table, error) {
	for _, c := range []string{geoColumn, timeColumn, valueColumn} {
		if c != "" && !t.HasColumn(c) {
			return nil, errs.Validation("column %q not found", c)
		}
	}
	if timeColumn == "" || valueColumn == "" {
		return nil, errs.Validation("time and value columns are required")
	}

	var periods []string
	for _, v := range t.Distinct(timeColumn) {
		periods = append(periods, table.String(v))
	}

	columns := periods
	if geoColumn != "" {
		columns = append([]string{geoColumn}, periods...)
	}
	out := table.New(columns...)
	index := make(map[string]table.Row)
	for _, row := range t.Rows {
		g := ""
		if geoColumn != "" {
			g = table.String(row[geoColumn])
		}
		r, ok := index[g]
		if !ok {
			r = table.Row{}
			if geoColumn != "" {
				r[geoColumn] = row[geoColumn]
			}
			index[g] = r
			out.Append(r)
		}
		r[table.String(row[timeColumn])] = row[valueColumn]
	}
	return out, nil
}

// DetectFeatureColumn returns the first column other than geoColumn in which
// feature occurs as a value. It is used when the caller selected a feature
// that only exists as a category label.
func DetectFeatureColumn(t *table.Table, geoColumn, feature string) (string, bool) {
	if t.HasColumn(feature) {
		return "", false
	}
	for _, c := range t.Columns {
		if c == geoColumn {
			continue
		}
		for _, row := range t.Rows {
			if s, ok := row[c].(string); ok && strings.TrimSpace(s) == feature {
				return c, true
			}
		}
	}
	return "", false
}
