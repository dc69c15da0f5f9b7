// Package response shapes forecast results into the nested maps consumed by
// the presentation layer: a date axis "x" plus one numeric array per feature.
package response

import (
	"math"
	"slices"
	"time"

	"github.com/HatiCode/dtsociety/pkg/frequency"
	"github.com/HatiCode/dtsociety/pkg/models"
	"github.com/HatiCode/dtsociety/pkg/table"
)

const (
	// AxisKey names the date axis of every group.
	AxisKey = "x"
	// FutureKey holds the slider ticks of a multivariate response.
	FutureKey = "future"
	// SliderKey holds the slider ticks of a scenario response.
	SliderKey = "slidervalues"
	// IntervalKey holds the scenario interval coverage in p-notation.
	IntervalKey = "interval"
	// TickCount is the number of slider ticks.
	TickCount = 40
)

// Scenario response groups.
const (
	GroupFuture   = "future"
	GroupMerge    = "merge"
	GroupForecast = "forecast"
)

// Group is one date axis with aligned value arrays.
type Group map[string]any

// Multivariate renders a VAR or HWES result. The "future" ticks start at the
// last observation before the forecast.
func Multivariate(r *models.Result) Group {
	g := Group{AxisKey: dates(r.Times)}
	for j, f := range r.Features {
		col := make([]float64, len(r.Values))
		for i, row := range r.Values {
			col[i] = finite(row[j])
		}
		g[f] = col
	}
	if r.History > 0 && !r.Frequency.IsZero() {
		g[FutureKey] = FutureTicks(r.Times[r.History-1], r.Frequency, TickCount)
	}
	return g
}

// Scenario renders the three scenario tables plus the slider ticks.
func Scenario(r *models.ScenarioResult) map[string]any {
	groups := []struct {
		name string
		t    *table.Table
	}{
		{GroupFuture, r.Future},
		{GroupMerge, r.Merge},
		{GroupForecast, r.Forecast},
	}

	out := make(map[string]any, len(groups)+2)
	var start time.Time
	for _, g := range groups {
		group, last := tableGroup(g.t, models.ColumnDS)
		out[g.name] = group
		if g.t.Len() > 2 {
			start = last
		}
	}
	out["dependent"] = r.Dependent
	if r.Level > 0 {
		out[IntervalKey] = models.FormatIntervalLevel(r.Level)
	}
	if !start.IsZero() && !r.Frequency.IsZero() {
		out[SliderKey] = FutureTicks(start, r.Frequency, TickCount)
	}
	return out
}

// tableGroup converts a table with a time column into a group and returns
// the last timestamp.
func tableGroup(t *table.Table, timeColumn string) (Group, time.Time) {
	g := Group{}
	var last time.Time
	x := make([]string, t.Len())
	for i, row := range t.Rows {
		ts, err := table.ParseTime(row[timeColumn])
		if err == nil {
			x[i] = ts.Format(table.DateLayout)
			last = ts
		} else {
			x[i] = table.String(row[timeColumn])
		}
	}
	g[AxisKey] = x
	for _, c := range t.Columns {
		if c == timeColumn {
			continue
		}
		col := make([]float64, t.Len())
		for i, row := range t.Rows {
			if v, ok := table.Float(row[c]); ok {
				col[i] = finite(v)
			}
		}
		g[c] = col
	}
	return g, last
}

// CountryResult is one entry of a map response.
type CountryResult struct {
	Country string
	Result  *models.Result
}

// Map renders per-country results keyed by country code. Countries cover
// different periods, so the shared axis is the union of their timestamps and
// each array holds null where its country has no value.
func Map(results []CountryResult) map[string]any {
	out := make(map[string]any, len(results)+1)
	axis := unionTimes(results)
	index := make(map[int64]int, len(axis))
	for i, t := range axis {
		index[t.UnixNano()] = i
	}
	out[AxisKey] = dates(axis)
	for _, cr := range results {
		features := make(map[string][]*float64, len(cr.Result.Features))
		for j, f := range cr.Result.Features {
			col := make([]*float64, len(axis))
			for i, row := range cr.Result.Values {
				v := finite(row[j])
				col[index[cr.Result.Times[i].UnixNano()]] = &v
			}
			features[f] = col
		}
		out[cr.Country] = features
	}
	return out
}

func unionTimes(results []CountryResult) []time.Time {
	seen := make(map[int64]bool)
	out := []time.Time{}
	for _, cr := range results {
		for _, t := range cr.Result.Times {
			if !seen[t.UnixNano()] {
				seen[t.UnixNano()] = true
				out = append(out, t)
			}
		}
	}
	slices.SortFunc(out, func(a, b time.Time) int { return a.Compare(b) })
	return out
}

// Heatmap is a correlation matrix with the diagonal and upper triangle masked.
type Heatmap struct {
	Columns []string    `json:"columns"`
	Matrix  [][]float64 `json:"matrix"`
}

// LowerTriangle masks a square matrix to its strict lower triangle.
func LowerTriangle(columns []string, m [][]float64) Heatmap {
	out := make([][]float64, len(m))
	for i, row := range m {
		out[i] = make([]float64, len(row))
		for j := 0; j < i && j < len(row); j++ {
			out[i][j] = finite(row[j])
		}
	}
	return Heatmap{Columns: columns, Matrix: out}
}

// FutureTicks returns n date strings stepping forward from start.
func FutureTicks(start time.Time, f frequency.Frequency, n int) []string {
	out := make([]string, n)
	for i := range n {
		out[i] = f.Step(start, i).Format(table.DateLayout)
	}
	return out
}

func dates(times []time.Time) []string {
	out := make([]string, len(times))
	for i, t := range times {
		out[i] = t.Format(table.DateLayout)
	}
	return out
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
