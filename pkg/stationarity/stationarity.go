// Package stationarity prepares aligned feature series for VAR fitting and
// maps VAR output back onto the original scale.
//
// The forward transform standardizes every feature, differences it once (or
// twice when the ADF test says the second difference is more stationary) and
// divides by the volatility of the differenced series. Invert undoes the
// three steps for forecast rows; Restore undoes them for the history.
package stationarity

import (
	"math"
	"time"

	"github.com/montanaflynn/stats"

	"github.com/HatiCode/dtsociety/pkg/align"
	"github.com/HatiCode/dtsociety/pkg/errs"
	"github.com/HatiCode/dtsociety/pkg/frequency"
)

// PValueThreshold is the ADF p-value above which a first difference is
// considered non-stationary.
const PValueThreshold = 0.05

// MinRows is the smallest history the transform accepts.
const MinRows = 3

// Transformed holds the stationary series and everything needed to invert it.
type Transformed struct {
	Features []string
	// Times are the timestamps of the cleaned history. Series row r belongs
	// to Times[r+1].
	Times []time.Time
	// Rows are the cleaned original values, one per Times entry.
	Rows [][]float64
	// Series is rows × features, differenced and volatility scaled.
	Series [][]float64

	Mean       []float64
	Std        []float64
	Order      []int
	Volatility []float64

	firstLevel []float64
	lastLevel  []float64
	firstDiff  []float64
	lastDiff   []float64
}

// Transform applies standardize → difference → volatility scaling to every
// feature of a. Rows holding a NaN in any feature are dropped first.
func Transform(a *align.Aligned) (*Transformed, error) {
	var times []time.Time
	var rows [][]float64
	for i, row := range a.Values {
		if hasNaN(row) {
			continue
		}
		times = append(times, a.Times[i])
		rows = append(rows, row)
	}
	if len(rows) < MinRows {
		return nil, errs.Validation("need at least %d complete rows, got %d", MinRows, len(rows))
	}

	k := len(a.Features)
	t := &Transformed{
		Features:   a.Features,
		Times:      times,
		Rows:       rows,
		Series:     make([][]float64, len(rows)-1),
		Mean:       make([]float64, k),
		Std:        make([]float64, k),
		Order:      make([]int, k),
		Volatility: make([]float64, k),
		firstLevel: make([]float64, k),
		lastLevel:  make([]float64, k),
		firstDiff:  make([]float64, k),
		lastDiff:   make([]float64, k),
	}
	for r := range t.Series {
		t.Series[r] = make([]float64, k)
	}

	for j := range k {
		col := make([]float64, len(rows))
		for r, row := range rows {
			col[r] = row[j]
		}

		mean, _ := stats.Mean(col)
		std, _ := stats.StandardDeviationSample(col)
		if std == 0 || math.IsNaN(std) {
			return nil, errs.Validation("feature %q is constant", a.Features[j])
		}
		t.Mean[j], t.Std[j] = mean, std

		z := make([]float64, len(col))
		for r, v := range col {
			z[r] = (v - mean) / std
		}
		t.firstLevel[j] = z[0]
		t.lastLevel[j] = z[len(z)-1]

		d1 := diff(z)
		t.firstDiff[j] = d1[0]
		t.lastDiff[j] = d1[len(d1)-1]

		series, order := chooseOrder(d1)
		t.Order[j] = order

		vol, _ := stats.StandardDeviationSample(series)
		if vol == 0 || math.IsNaN(vol) {
			vol = 1
		}
		t.Volatility[j] = vol

		for r, v := range series {
			t.Series[r][j] = v / vol
		}
	}
	return t, nil
}

// chooseOrder keeps the first difference unless the ADF test rejects it and
// the second difference tests strictly better. The second difference keeps
// row alignment by filling its leading element with zero.
func chooseOrder(d1 []float64) ([]float64, int) {
	r1, err := ADF(d1)
	if err != nil || r1.PValue <= PValueThreshold {
		return d1, 1
	}
	d2 := make([]float64, len(d1))
	for i := 1; i < len(d1); i++ {
		d2[i] = d1[i] - d1[i-1]
	}
	r2, err := ADF(d2)
	if err != nil || r2.PValue >= r1.PValue {
		return d1, 1
	}
	return d2, 2
}

// Invert maps forecast rows of the stationary series back onto the original
// scale: unscale, integrate from the last observed row, destandardize.
func (t *Transformed) Invert(forecast [][]float64) [][]float64 {
	out := make([][]float64, len(forecast))
	for i := range out {
		out[i] = make([]float64, len(t.Features))
	}
	for j := range t.Features {
		level, d1 := t.lastLevel[j], t.lastDiff[j]
		for i, row := range forecast {
			step := row[j] * t.Volatility[j]
			if t.Order[j] == 2 {
				d1 += step
				step = d1
			}
			level += step
			out[i][j] = zeroNaN(level*t.Std[j] + t.Mean[j])
		}
	}
	return out
}

// Restore rebuilds the cleaned history from the stationary series.
func (t *Transformed) Restore() [][]float64 {
	out := make([][]float64, len(t.Times))
	for i := range out {
		out[i] = make([]float64, len(t.Features))
	}
	for j := range t.Features {
		level, d1 := t.firstLevel[j], t.firstDiff[j]
		out[0][j] = level*t.Std[j] + t.Mean[j]
		for r, row := range t.Series {
			step := row[j] * t.Volatility[j]
			if t.Order[j] == 2 {
				if r > 0 {
					d1 += step
				}
				step = d1
			}
			level += step
			out[r+1][j] = level*t.Std[j] + t.Mean[j]
		}
	}
	return out
}

// stepDays is the fixed advance applied to the last observed timestamp
// before snapping onto the frequency anchor.
var stepDays = map[string]int{
	"AS-JAN": 365,
	"MS":     30,
}

// FutureTimestamps returns n timestamps following last at frequency f.
// Only frequencies with a fixed day step are supported.
func FutureTimestamps(last time.Time, f frequency.Frequency, n int) ([]time.Time, error) {
	days, ok := stepDays[f.String()]
	if !ok {
		return nil, errs.UnsupportedFrequency(f.String())
	}
	if n <= 0 {
		return nil, nil
	}
	first := f.RollForward(last.AddDate(0, 0, days))
	if next := f.Step(last, 1); first.After(next) {
		first = next
	}
	return f.Range(first, n), nil
}

func diff(x []float64) []float64 {
	out := make([]float64, len(x)-1)
	for i := range out {
		out[i] = x[i+1] - x[i]
	}
	return out
}

func hasNaN(row []float64) bool {
	for _, v := range row {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}

func zeroNaN(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
