// Package summary computes descriptive views over aligned feature data.
package summary

import (
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat"

	"github.com/HatiCode/dtsociety/pkg/align"
	"github.com/HatiCode/dtsociety/pkg/errs"
)

// Correlation returns the Pearson correlation matrix of the aligned
// features. Rows holding a NaN in any feature are skipped. Constant
// features correlate as NaN.
func Correlation(a *align.Aligned) ([][]float64, error) {
	cols := completeColumns(a)
	if len(cols) == 0 || len(cols[0]) < 2 {
		return nil, errs.Validation("correlation needs at least two complete rows")
	}

	k := len(cols)
	out := make([][]float64, k)
	for i := range out {
		out[i] = make([]float64, k)
		out[i][i] = 1
	}
	for i := 0; i < k; i++ {
		for j := 0; j < i; j++ {
			c := stat.Correlation(cols[i], cols[j], nil)
			out[i][j] = c
			out[j][i] = c
		}
	}
	return out, nil
}

// Description is the descriptive statistics of one feature.
type Description struct {
	Feature string  `json:"feature"`
	Count   int     `json:"count"`
	Mean    float64 `json:"mean"`
	Std     float64 `json:"std"`
	Min     float64 `json:"min"`
	Q1      float64 `json:"q1"`
	Median  float64 `json:"median"`
	Q3      float64 `json:"q3"`
	Max     float64 `json:"max"`
}

// Describe returns one Description per feature, ignoring NaN cells.
func Describe(a *align.Aligned) ([]Description, error) {
	out := make([]Description, 0, len(a.Features))
	for j, f := range a.Features {
		var data stats.Float64Data
		for _, v := range a.Column(j) {
			if !math.IsNaN(v) {
				data = append(data, v)
			}
		}
		d := Description{Feature: f, Count: len(data)}
		if len(data) == 0 {
			out = append(out, d)
			continue
		}

		var err error
		if d.Mean, err = data.Mean(); err != nil {
			return nil, err
		}
		if d.Min, err = data.Min(); err != nil {
			return nil, err
		}
		if d.Max, err = data.Max(); err != nil {
			return nil, err
		}
		if d.Median, err = data.Median(); err != nil {
			return nil, err
		}
		if len(data) > 1 {
			if d.Std, err = data.StandardDeviationSample(); err != nil {
				return nil, err
			}
		}
		if len(data) > 2 {
			q, err := stats.Quartile(data)
			if err != nil {
				return nil, err
			}
			d.Q1, d.Q3 = q.Q1, q.Q3
		} else {
			d.Q1, d.Q3 = d.Min, d.Max
		}
		out = append(out, d)
	}
	return out, nil
}

func completeColumns(a *align.Aligned) [][]float64 {
	cols := make([][]float64, len(a.Features))
	for _, row := range a.Values {
		complete := true
		for _, v := range row {
			if math.IsNaN(v) {
				complete = false
				break
			}
		}
		if !complete {
			continue
		}
		for j, v := range row {
			cols[j] = append(cols[j], v)
		}
	}
	return cols
}
