// Package models provides the forecast engines.
//
// Every engine is a pure function of its Input: merge the series on their
// shared timestamps, fit, forecast Periods steps and return history followed
// by the forecast rows. No fit state survives a call.
package models

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"github.com/HatiCode/dtsociety/pkg/align"
	"github.com/HatiCode/dtsociety/pkg/errs"
	"github.com/HatiCode/dtsociety/pkg/frequency"
	"github.com/HatiCode/dtsociety/pkg/table"
)

// Engine names accepted by New.
const (
	NameVAR      = "var"
	NameHWES     = "hwes"
	NameScenario = "prophet-like"
)

// Input is the common input of every engine.
type Input struct {
	// Series are the per-dataset tables to merge.
	Series []align.Series
	// Periods is the number of future rows to produce.
	Periods int
	// Frequency, when set, must match the frequency inferred from every series.
	Frequency frequency.Frequency
}

// Result is history followed by forecast rows on one time axis.
type Result struct {
	Model      string
	TimeColumn string
	Features   []string
	Times      []time.Time
	// Values[i][j] is feature j at Times[i].
	Values [][]float64
	// History is the number of leading rows that are observations.
	History   int
	Frequency frequency.Frequency
}

// Forecast returns the forecast rows only.
func (r *Result) Forecast() ([]time.Time, [][]float64) {
	return r.Times[r.History:], r.Values[r.History:]
}

// Table renders the result with the time column first.
func (r *Result) Table() *table.Table {
	out := table.New(append([]string{r.TimeColumn}, r.Features...)...)
	for i, ts := range r.Times {
		row := table.Row{r.TimeColumn: ts}
		for j, f := range r.Features {
			row[f] = r.Values[i][j]
		}
		out.Append(row)
	}
	return out
}

// Engine is a forecasting algorithm.
type Engine interface {
	Name() string
	Forecast(ctx context.Context, in Input) (*Result, error)
}

// Params carries the model specific knobs. Zero values select defaults.
type Params struct {
	// MaxLags bounds the VAR lag order search.
	MaxLags int
	// Alpha is the HWES smoothing constant.
	Alpha float64
	// SeasonLength is the HWES seasonal cycle in rows.
	SeasonLength int
	// IntervalLevel is the scenario prediction interval coverage.
	IntervalLevel float64
	// FourierOrder adds yearly seasonality terms to the scenario regression.
	FourierOrder int
	Logger       *slog.Logger
}

// New returns the engine registered under name.
func New(name string, p Params) (Engine, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case NameVAR:
		return NewVAR(p.MaxLags, p.Logger), nil
	case NameHWES:
		return NewHWES(p.Alpha, p.SeasonLength, p.Logger), nil
	case NameScenario:
		return NewScenario(p.IntervalLevel, p.FourierOrder, p.Logger), nil
	default:
		return nil, errs.Validation("unknown model %q", name)
	}
}

// ResolveFrequency infers the frequency of every selected feature of every
// series and requires them all to agree, including with in.Frequency when set.
func ResolveFrequency(in Input) (frequency.Frequency, error) {
	var labeled []frequency.Labeled
	for _, s := range in.Series {
		times, err := s.Times()
		if err != nil {
			return frequency.Frequency{}, err
		}
		for _, f := range s.Features {
			var present []time.Time
			for i, row := range s.Table.Rows {
				if v, ok := table.Float(row[f]); ok && !math.IsNaN(v) {
					present = append(present, times[i])
				}
			}
			freq, err := frequency.Infer(present)
			if err != nil {
				return frequency.Frequency{}, fmt.Errorf("%s/%s: %w", s.Name, f, err)
			}
			labeled = append(labeled, frequency.Labeled{Series: s.Name + "/" + f, Frequency: freq})
		}
	}
	if !in.Frequency.IsZero() {
		labeled = append(labeled, frequency.Labeled{Series: "requested", Frequency: in.Frequency})
	}
	return frequency.Agree(labeled)
}

// prepare validates in, checks frequencies and merges the series.
func prepare(ctx context.Context, in Input) (frequency.Frequency, *align.Aligned, error) {
	if err := ctx.Err(); err != nil {
		return frequency.Frequency{}, nil, err
	}
	if len(in.Series) == 0 {
		return frequency.Frequency{}, nil, errs.Validation("no datasets selected")
	}
	if in.Periods <= 0 {
		return frequency.Frequency{}, nil, errs.Validation("periods must be > 0, got %d", in.Periods)
	}
	freq, err := ResolveFrequency(in)
	if err != nil {
		return frequency.Frequency{}, nil, err
	}
	aligned, err := align.Merge(in.Series)
	if err != nil {
		return frequency.Frequency{}, nil, err
	}
	if aligned.Len() == 0 {
		return frequency.Frequency{}, nil, errs.Validation("datasets share no timestamps")
	}
	return freq, aligned, nil
}

func loggerOr(l *slog.Logger) *slog.Logger {
	if l == nil {
		return slog.Default()
	}
	return l
}
