package models

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/HatiCode/dtsociety/pkg/errs"
	"github.com/HatiCode/dtsociety/pkg/regress"
	"github.com/HatiCode/dtsociety/pkg/stationarity"
)

// DefaultMaxLags is used when no lag bound is given.
const DefaultMaxLags = 4

// VAR forecasts all merged features jointly with a vector autoregression
// fitted on the stationary transform of the series.
type VAR struct {
	maxLags int
	logger  *slog.Logger
}

// NewVAR creates a VAR engine. The lag order is chosen by AIC in 1..maxLags;
// zero selects DefaultMaxLags.
func NewVAR(maxLags int, logger *slog.Logger) *VAR {
	if maxLags == 0 {
		maxLags = DefaultMaxLags
	}
	return &VAR{maxLags: maxLags, logger: loggerOr(logger)}
}

// Name returns the engine name.
func (v *VAR) Name() string { return NameVAR }

func (v *VAR) validate() error {
	if v.maxLags < 1 {
		return errs.Validation("max lags must be >= 1, got %d", v.maxLags)
	}
	return nil
}

// Forecast implements Engine.
func (v *VAR) Forecast(ctx context.Context, in Input) (*Result, error) {
	if err := v.validate(); err != nil {
		return nil, err
	}
	freq, aligned, err := prepare(ctx, in)
	if err != nil {
		return nil, err
	}

	tr, err := stationarity.Transform(aligned)
	if err != nil {
		return nil, err
	}
	future, err := stationarity.FutureTimestamps(tr.Times[len(tr.Times)-1], freq, in.Periods)
	if err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	fit, err := fitVAR(tr.Series, v.maxLags)
	if err != nil {
		return nil, errs.ModelFit(NameVAR, err)
	}
	v.logger.Debug("fitted var",
		"features", len(tr.Features),
		"rows", len(tr.Series),
		"lags", fit.lags,
		"orders", tr.Order,
	)

	forecast := tr.Invert(fit.forecast(tr.Series, in.Periods))

	times := make([]time.Time, 0, len(tr.Times)+len(future))
	times = append(times, tr.Times...)
	times = append(times, future...)

	values := make([][]float64, 0, len(times))
	for _, row := range tr.Rows {
		values = append(values, zeroNaNRow(row))
	}
	values = append(values, forecast...)

	return &Result{
		Model:      NameVAR,
		TimeColumn: aligned.TimeColumn,
		Features:   tr.Features,
		Times:      times,
		Values:     values,
		History:    len(tr.Times),
		Frequency:  freq,
	}, nil
}

// varFit is a reduced form VAR(p) with a constant: y_t = c + Σ A_l y_{t-l} + u_t.
// coef stacks [c; A_1'; …; A_p'] as a (1+p·k)×k matrix.
type varFit struct {
	lags int
	k    int
	coef *mat.Dense
}

// fitVAR selects the lag order by AIC over a common estimation sample and
// refits the chosen order on all available rows.
func fitVAR(y [][]float64, maxLags int) (*varFit, error) {
	n := len(y)
	if n < 2 {
		return nil, fmt.Errorf("need at least 2 stationary rows, got %d", n)
	}
	maxLags = min(maxLags, n-1)

	best := 1
	if maxLags > 1 {
		bestAIC := math.Inf(1)
		for p := 1; p <= maxLags; p++ {
			aic, err := varAIC(y, p, maxLags)
			if err != nil {
				continue
			}
			if aic < bestAIC {
				best, bestAIC = p, aic
			}
		}
	}

	x, resp := varDesign(y, best, best)
	fit, err := regress.OLS(x, resp)
	if err != nil {
		return nil, err
	}
	return &varFit{lags: best, k: len(y[0]), coef: fit.Coef}, nil
}

// varAIC is log|Σ̂| + 2·(params)/T on the sample trimmed by skip rows.
func varAIC(y [][]float64, p, skip int) (float64, error) {
	x, resp := varDesign(y, p, skip)
	fit, err := regress.OLS(x, resp)
	if err != nil {
		return 0, err
	}
	t, k := resp.Dims()
	var sigma mat.Dense
	sigma.Mul(fit.Resid.T(), fit.Resid)
	sigma.Scale(1/float64(t), &sigma)
	det := mat.Det(&sigma)
	if det <= 0 || math.IsNaN(det) {
		return 0, errors.New("degenerate residual covariance")
	}
	params := k * (1 + p*k)
	return math.Log(det) + 2*float64(params)/float64(t), nil
}

// varDesign builds X = [1, y_{t-1}, …, y_{t-p}] and Y = y_t for t ≥ skip.
func varDesign(y [][]float64, p, skip int) (*mat.Dense, *mat.Dense) {
	k := len(y[0])
	rows := len(y) - skip
	x := mat.NewDense(rows, 1+p*k, nil)
	resp := mat.NewDense(rows, k, nil)
	for r := range rows {
		t := skip + r
		x.Set(r, 0, 1)
		for l := 1; l <= p; l++ {
			for j := range k {
				x.Set(r, 1+(l-1)*k+j, y[t-l][j])
			}
		}
		for j := range k {
			resp.Set(r, j, y[t][j])
		}
	}
	return x, resp
}

// forecast iterates the fitted system steps ahead, seeded with the last
// lags rows of history.
func (f *varFit) forecast(history [][]float64, steps int) [][]float64 {
	window := make([][]float64, 0, f.lags+steps)
	window = append(window, history[len(history)-f.lags:]...)

	out := make([][]float64, steps)
	for s := range steps {
		t := f.lags + s
		next := make([]float64, f.k)
		for eq := range f.k {
			val := f.coef.At(0, eq)
			for l := 1; l <= f.lags; l++ {
				prev := window[t-l]
				for j := range f.k {
					val += f.coef.At(1+(l-1)*f.k+j, eq) * prev[j]
				}
			}
			next[eq] = val
		}
		window = append(window, next)
		out[s] = next
	}
	return out
}

func zeroNaNRow(row []float64) []float64 {
	out := make([]float64, len(row))
	for i, v := range row {
		if !math.IsNaN(v) && !math.IsInf(v, 0) {
			out[i] = v
		}
	}
	return out
}
