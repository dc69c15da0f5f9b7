package models

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"

	"github.com/HatiCode/dtsociety/pkg/errs"
	"github.com/HatiCode/dtsociety/pkg/frequency"
	"github.com/HatiCode/dtsociety/pkg/regress"
	"github.com/HatiCode/dtsociety/pkg/table"
)

// Column names of the scenario result tables.
const (
	ColumnDS        = "ds"
	ColumnYHat      = "yhat"
	ColumnYHatLower = "yhat_lower"
	ColumnYHatUpper = "yhat_upper"
	ColumnError     = "error"
)

// Scenario is an additive regression y = trend + Σ γ·regressor (+ yearly
// Fourier terms) fitted on history and evaluated on caller supplied future
// regressor values.
type Scenario struct {
	level        float64
	fourierOrder int
	logger       *slog.Logger
}

// NewScenario creates a scenario engine. level is the prediction interval
// coverage, zero selecting DefaultIntervalLevel; fourierOrder adds that many
// yearly sine/cosine pairs for sub-annual data.
func NewScenario(level float64, fourierOrder int, logger *slog.Logger) *Scenario {
	if level == 0 {
		level = DefaultIntervalLevel
	}
	return &Scenario{level: level, fourierOrder: fourierOrder, logger: loggerOr(logger)}
}

// Name returns the engine name.
func (s *Scenario) Name() string { return NameScenario }

func (s *Scenario) validate() error {
	if err := checkIntervalLevel(s.level); err != nil {
		return err
	}
	if s.fourierOrder < 0 {
		return errs.Validation("fourier order must be >= 0, got %d", s.fourierOrder)
	}
	return nil
}

// ScenarioInput selects the dependent series and the future regressor values.
type ScenarioInput struct {
	Input
	// Dependent indexes the series in Input.Series whose first feature is
	// forecast. Every other merged feature is a regressor.
	Dependent int
	// Scenarios maps merged regressor names to future values. The horizon is
	// the shortest scenario. When empty, regressors are forecast on their own
	// over Input.Periods.
	Scenarios map[string][]float64
}

// ScenarioResult holds the three aligned output tables.
type ScenarioResult struct {
	Dependent  string
	Regressors []string
	// Forecast has ds, yhat, yhat_lower, yhat_upper and error (the interval
	// width) for future rows.
	Forecast *table.Table
	// Merge is the merged history with ds and the original feature names.
	Merge *table.Table
	// Future has ds and the regressors from the last history row onwards.
	Future    *table.Table
	Frequency frequency.Frequency
	// Level is the coverage of yhat_lower..yhat_upper.
	Level float64
}

// Forecast implements Engine with generated scenarios for every regressor.
// The first series is the dependent one.
func (s *Scenario) Forecast(ctx context.Context, in Input) (*Result, error) {
	res, err := s.ForecastScenario(ctx, ScenarioInput{Input: in})
	if err != nil {
		return nil, err
	}

	out := &Result{
		Model:      NameScenario,
		TimeColumn: ColumnDS,
		Features:   []string{res.Dependent},
		History:    res.Merge.Len(),
		Frequency:  res.Frequency,
	}
	for _, row := range res.Merge.Rows {
		ts, _ := table.ParseTime(row[ColumnDS])
		v, _ := table.Float(row[res.Dependent])
		out.Times = append(out.Times, ts)
		out.Values = append(out.Values, []float64{v})
	}
	for _, row := range res.Forecast.Rows {
		ts, _ := table.ParseTime(row[ColumnDS])
		v, _ := table.Float(row[ColumnYHat])
		out.Times = append(out.Times, ts)
		out.Values = append(out.Values, []float64{v})
	}
	return out, nil
}

// ForecastScenario fits the regression and evaluates it on the scenarios.
func (s *Scenario) ForecastScenario(ctx context.Context, in ScenarioInput) (*ScenarioResult, error) {
	if err := s.validate(); err != nil {
		return nil, err
	}
	if in.Dependent < 0 || in.Dependent >= len(in.Series) {
		return nil, errs.Validation("dependent dataset index %d out of range", in.Dependent)
	}
	if len(in.Scenarios) > 0 {
		horizon := -1
		for name, values := range in.Scenarios {
			if len(values) == 0 {
				return nil, errs.Validation("scenario for %q is empty", name)
			}
			if horizon < 0 || len(values) < horizon {
				horizon = len(values)
			}
		}
		in.Periods = horizon
	}

	freq, aligned, err := prepare(ctx, in.Input)
	if err != nil {
		return nil, err
	}

	dep := 0
	for _, series := range in.Series[:in.Dependent] {
		dep += len(series.Features)
	}
	dependent := aligned.Features[dep]

	var times []time.Time
	var y []float64
	regNames := make([]string, 0, len(aligned.Features)-1)
	regIdx := make([]int, 0, len(aligned.Features)-1)
	for j, f := range aligned.Features {
		if j != dep {
			regNames = append(regNames, f)
			regIdx = append(regIdx, j)
		}
	}
	history := make([][]float64, len(regIdx))
	for i, row := range aligned.Values {
		if hasNaN(row) {
			continue
		}
		times = append(times, aligned.Times[i])
		y = append(y, row[dep])
		for r, j := range regIdx {
			history[r] = append(history[r], row[j])
		}
	}
	if len(y) < 2 {
		return nil, errs.ModelFit(NameScenario, fmt.Errorf("need at least 2 complete rows, got %d", len(y)))
	}

	future, err := s.scenarios(ctx, in, regNames, history)
	if err != nil {
		return nil, err
	}

	n := len(y)
	periods := in.Periods
	design := newScenarioDesign(n, freq, s.fourierOrder, history)
	x := design.matrix(0, n, history)
	fit, err := regress.OLS(x, mat.NewDense(n, 1, y))
	if err != nil {
		return nil, errs.ModelFit(NameScenario, err)
	}

	df := n - fit.Rank
	if df <= 0 {
		df = n
	}
	sigma := math.Sqrt(fit.SSR(0) / float64(df))

	xf := design.matrix(n, periods, future)
	var yhat mat.Dense
	yhat.Mul(xf, fit.Coef)

	s.logger.Debug("fitted scenario regression",
		"dependent", dependent,
		"regressors", len(regNames),
		"rows", n,
		"periods", periods,
		"sigma", sigma,
		"interval", FormatIntervalLevel(s.level),
	)

	futureTimes := freq.Range(freq.Step(times[n-1], 1), periods)

	forecast := table.New(ColumnDS, ColumnYHat, ColumnYHatLower, ColumnYHatUpper, ColumnError)
	for i, ts := range futureTimes {
		v := yhat.At(i, 0)
		w := halfWidth(s.level, sigma, i+1)
		forecast.Append(table.Row{
			ColumnDS:        ts,
			ColumnYHat:      v,
			ColumnYHatLower: v - w,
			ColumnYHatUpper: v + w,
			ColumnError:     2 * w,
		})
	}

	merge := table.New(append([]string{ColumnDS}, aligned.Features...)...)
	for i, ts := range times {
		row := table.Row{ColumnDS: ts, dependent: y[i]}
		for r, name := range regNames {
			row[name] = history[r][i]
		}
		merge.Append(row)
	}

	futureTable := table.New(append([]string{ColumnDS}, regNames...)...)
	last := table.Row{ColumnDS: times[n-1]}
	for r, name := range regNames {
		last[name] = history[r][n-1]
	}
	futureTable.Append(last)
	for i, ts := range futureTimes {
		row := table.Row{ColumnDS: ts}
		for r, name := range regNames {
			row[name] = future[r][i]
		}
		futureTable.Append(row)
	}

	return &ScenarioResult{
		Dependent:  dependent,
		Regressors: regNames,
		Forecast:   forecast,
		Merge:      merge,
		Future:     futureTable,
		Frequency:  freq,
		Level:      s.level,
	}, nil
}

// scenarios returns the future values of every regressor, truncated to the
// horizon, generating them when the caller supplied none.
func (s *Scenario) scenarios(ctx context.Context, in ScenarioInput, names []string, history [][]float64) ([][]float64, error) {
	out := make([][]float64, len(names))
	if len(in.Scenarios) == 0 {
		for r, name := range names {
			ar, err := NewAutoRegressive(1, 1)
			if err != nil {
				return nil, err
			}
			if err := ar.Train(ctx, history[r]); err != nil {
				return nil, errs.ModelFit(NameScenario, fmt.Errorf("regressor %q: %w", name, err))
			}
			values, err := ar.Predict(ctx, in.Periods)
			if err != nil {
				return nil, errs.ModelFit(NameScenario, fmt.Errorf("regressor %q: %w", name, err))
			}
			out[r] = values
		}
		return out, nil
	}

	for r, name := range names {
		values, ok := in.Scenarios[name]
		if !ok {
			return nil, errs.Validation("no scenario for regressor %q", name)
		}
		out[r] = values[:in.Periods]
	}
	for name := range in.Scenarios {
		known := false
		for _, n := range names {
			known = known || n == name
		}
		if !known {
			return nil, errs.Validation("scenario for unknown regressor %q", name)
		}
	}
	return out, nil
}

// scenarioDesign lays out the regression columns:
// [1, trend, standardized regressors…, sin/cos pairs…].
type scenarioDesign struct {
	n        int
	mean     []float64
	std      []float64
	period   float64
	harmonic int
}

func newScenarioDesign(n int, freq frequency.Frequency, order int, history [][]float64) *scenarioDesign {
	d := &scenarioDesign{n: n}
	for _, col := range history {
		mean, _ := stats.Mean(col)
		std, _ := stats.StandardDeviationSample(col)
		if std == 0 || math.IsNaN(std) {
			std = 1
		}
		d.mean = append(d.mean, mean)
		d.std = append(d.std, std)
	}
	if p := periodsPerYear(freq); order > 0 && p >= 2 && float64(n) >= 2*p {
		d.period = p
		d.harmonic = order
	}
	return d
}

// matrix builds rows for time indices offset … offset+rows-1.
func (d *scenarioDesign) matrix(offset, rows int, regressors [][]float64) *mat.Dense {
	cols := 2 + len(d.mean) + 2*d.harmonic
	x := mat.NewDense(rows, cols, nil)
	scale := float64(max(d.n-1, 1))
	for i := range rows {
		t := float64(offset + i)
		x.Set(i, 0, 1)
		x.Set(i, 1, t/scale)
		for r := range d.mean {
			x.Set(i, 2+r, (regressors[r][i]-d.mean[r])/d.std[r])
		}
		base := 2 + len(d.mean)
		for k := 1; k <= d.harmonic; k++ {
			angle := 2 * math.Pi * float64(k) * t / d.period
			x.Set(i, base+2*(k-1), math.Sin(angle))
			x.Set(i, base+2*(k-1)+1, math.Cos(angle))
		}
	}
	return x
}

// periodsPerYear returns how many rows of freq fit in a year, 0 for yearly data.
func periodsPerYear(f frequency.Frequency) float64 {
	n := float64(max(f.N, 1))
	switch f.Unit {
	case frequency.Hour:
		return 8766 / n
	case frequency.Day:
		return 365.25 / n
	case frequency.Week:
		return 365.25 / 7 / n
	case frequency.MonthStart, frequency.MonthEnd:
		return 12 / n
	case frequency.QuarterStart, frequency.QuarterEnd:
		return 4 / n
	default:
		return 0
	}
}
