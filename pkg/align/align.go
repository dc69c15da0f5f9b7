// Package align merges independently shaped tables onto one shared time axis.
package align

import (
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/HatiCode/dtsociety/pkg/errs"
	"github.com/HatiCode/dtsociety/pkg/table"
)

// Series is one input of a merge: a table, its time column and the feature
// columns to carry over.
type Series struct {
	Name       string
	Table      *table.Table
	TimeColumn string
	Features   []string
}

// Times parses the time column of s in row order.
func (s Series) Times() ([]time.Time, error) {
	if s.Table == nil || !s.Table.HasColumn(s.TimeColumn) {
		return nil, errs.Validation("series %q: time column %q not found", s.Name, s.TimeColumn)
	}
	out := make([]time.Time, s.Table.Len())
	for i, row := range s.Table.Rows {
		ts, err := table.ParseTime(row[s.TimeColumn])
		if err != nil {
			return nil, errs.Validation("series %q: row %d: %q is not a timestamp", s.Name, i, table.String(row[s.TimeColumn]))
		}
		out[i] = ts
	}
	return out, nil
}

// Aligned is a multi-series table restricted to the timestamps shared by
// every input. Values[i][j] is feature j at Times[i]; missing or
// non-numeric cells are NaN.
type Aligned struct {
	TimeColumn string
	Features   []string
	Times      []time.Time
	Values     [][]float64
}

// Len returns the number of aligned rows.
func (a *Aligned) Len() int { return len(a.Times) }

// Column returns the values of feature j.
func (a *Aligned) Column(j int) []float64 {
	out := make([]float64, len(a.Values))
	for i, row := range a.Values {
		out[i] = row[j]
	}
	return out
}

// Table renders the aligned data as a table with the time column first.
func (a *Aligned) Table() *table.Table {
	out := table.New(append([]string{a.TimeColumn}, a.Features...)...)
	for i, ts := range a.Times {
		row := table.Row{a.TimeColumn: ts}
		for j, f := range a.Features {
			row[f] = a.Values[i][j]
		}
		out.Append(row)
	}
	return out
}

// Merge inner-joins inputs on their time columns.
//
// The result holds exactly the timestamps present in every input, in
// ascending order, regardless of input order. The surviving time column takes
// the name of the last input's time column. Feature names that collide with
// an earlier input are suffixed with the input position.
func Merge(inputs []Series) (*Aligned, error) {
	if len(inputs) == 0 {
		return nil, errs.Validation("no series to merge")
	}

	type indexed struct {
		rows map[int64]int
		cols []string
	}
	parsed := make([]indexed, len(inputs))
	var common map[int64]time.Time

	for i, s := range inputs {
		if len(s.Features) == 0 {
			return nil, errs.Validation("series %q: no features selected", s.Name)
		}
		for _, f := range s.Features {
			if !s.Table.HasColumn(f) {
				return nil, errs.Validation("series %q: feature column %q not found", s.Name, f)
			}
		}
		times, err := s.Times()
		if err != nil {
			return nil, err
		}

		rows := make(map[int64]int, len(times))
		present := make(map[int64]time.Time, len(times))
		for r, ts := range times {
			key := ts.UnixNano()
			if _, dup := rows[key]; dup {
				return nil, errs.Validation("series %q: duplicate timestamp %s", s.Name, ts.Format(table.DateLayout))
			}
			rows[key] = r
			present[key] = ts
		}
		parsed[i] = indexed{rows: rows, cols: s.Features}

		if common == nil {
			common = present
			continue
		}
		for k := range common {
			if _, ok := present[k]; !ok {
				delete(common, k)
			}
		}
	}

	times := make([]time.Time, 0, len(common))
	for _, ts := range common {
		times = append(times, ts)
	}
	slices.SortFunc(times, func(a, b time.Time) int { return a.Compare(b) })

	features := UniqueFeatures(inputs)
	out := &Aligned{
		TimeColumn: inputs[len(inputs)-1].TimeColumn,
		Features:   features,
		Times:      times,
		Values:     make([][]float64, len(times)),
	}
	for r, ts := range times {
		row := make([]float64, 0, len(features))
		for i, s := range inputs {
			src := s.Table.Rows[parsed[i].rows[ts.UnixNano()]]
			for _, f := range parsed[i].cols {
				v, ok := table.Float(src[f])
				if !ok {
					v = math.NaN()
				}
				row = append(row, v)
			}
		}
		out.Values[r] = row
	}
	return out, nil
}

// UniqueFeatures returns the merged feature names of inputs in order, with
// collisions renamed "<name>_<input position>".
func UniqueFeatures(inputs []Series) []string {
	seen := make(map[string]bool)
	var out []string
	for i, s := range inputs {
		for _, f := range s.Features {
			name := f
			for n := i; seen[name]; n++ {
				name = fmt.Sprintf("%s_%d", f, n)
			}
			seen[name] = true
			out = append(out, name)
		}
	}
	return out
}
