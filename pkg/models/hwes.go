package models

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"

	"gonum.org/v1/gonum/mat"

	"github.com/HatiCode/dtsociety/pkg/errs"
)

// DefaultAlpha is the HWES smoothing constant used when none is given.
const DefaultAlpha = 0.5

// HWES is a multivariate Holt-Winters recursion. Level, trend and seasonal
// states are K-vectors updated through the upper triangular smoothing
// matrix whose every entry on and above the diagonal is Alpha.
type HWES struct {
	alpha        float64
	seasonLength int
	logger       *slog.Logger
}

// NewHWES creates an HWES engine. seasonLength is the number of rows in one
// seasonal cycle and is independent of the number of features.
func NewHWES(alpha float64, seasonLength int, logger *slog.Logger) *HWES {
	if alpha == 0 {
		alpha = DefaultAlpha
	}
	return &HWES{alpha: alpha, seasonLength: seasonLength, logger: loggerOr(logger)}
}

// Name returns the engine name.
func (h *HWES) Name() string { return NameHWES }

func (h *HWES) validate() error {
	if h.alpha <= 0 || h.alpha > 1 || math.IsNaN(h.alpha) {
		return errs.Validation("alpha must be in (0, 1], got %v", h.alpha)
	}
	if h.seasonLength < 2 || h.seasonLength%2 != 0 {
		return errs.Validation("season length must be an even number >= 2, got %d", h.seasonLength)
	}
	return nil
}

// Forecast implements Engine.
func (h *HWES) Forecast(ctx context.Context, in Input) (*Result, error) {
	if err := h.validate(); err != nil {
		return nil, err
	}
	freq, aligned, err := prepare(ctx, in)
	if err != nil {
		return nil, err
	}

	var times []time.Time
	var data [][]float64
	for i, row := range aligned.Values {
		if hasNaN(row) {
			continue
		}
		times = append(times, aligned.Times[i])
		data = append(data, row)
	}

	forecast, err := h.run(data, in.Periods)
	if err != nil {
		return nil, errs.ModelFit(NameHWES, err)
	}
	h.logger.Debug("fitted hwes",
		"features", len(aligned.Features),
		"rows", len(data),
		"season_length", h.seasonLength,
		"alpha", h.alpha,
	)

	last := times[len(times)-1]
	future := freq.Range(freq.Step(last, 1), in.Periods)

	values := make([][]float64, 0, len(data)+len(forecast))
	values = append(values, data...)
	values = append(values, forecast...)

	return &Result{
		Model:      NameHWES,
		TimeColumn: aligned.TimeColumn,
		Features:   aligned.Features,
		Times:      append(times, future...),
		Values:     values,
		History:    len(data),
		Frequency:  freq,
	}, nil
}

// run fits the recursion on data (rows × K) and forecasts periods rows.
func (h *HWES) run(data [][]float64, periods int) ([][]float64, error) {
	L := h.seasonLength
	if len(data) < 4*L {
		return nil, fmt.Errorf("need at least %d rows for season length %d, got %d", 4*L, L, len(data))
	}
	k := len(data[0])
	rows := len(data)

	a := smoothingMatrix(k, h.alpha)
	var ia mat.Dense
	ia.Sub(identity(k), a)

	levels := initialLevels(data, L)
	seasons := initialSeasons(data, levels, L)

	trend := mat.NewVecDense(k, nil)
	for j := range k {
		late := meanRows(levels[2*L:3*L], j)
		early := meanRows(levels[L-1:2*L-1], j)
		trend.SetVec(j, (late-early)/float64(L))
	}
	level := mat.NewVecDense(k, append([]float64(nil), data[0]...))

	for i := 0; i < rows-1; i++ {
		x := mat.NewVecDense(k, append([]float64(nil), data[i+1]...))
		season := seasons[i%L]

		// L[i+1] = A(x − S) + (I−A)(L + T)
		var diff, dev, sum, carry, nextLevel mat.VecDense
		diff.SubVec(x, season)
		dev.MulVec(a, &diff)
		sum.AddVec(level, trend)
		carry.MulVec(&ia, &sum)
		nextLevel.AddVec(&dev, &carry)

		// T[i+1] = B(L[i+1] − L[i]) + (I−B)T[i]
		var step, slope, keep, nextTrend mat.VecDense
		step.SubVec(&nextLevel, level)
		slope.MulVec(a, &step)
		keep.MulVec(&ia, trend)
		nextTrend.AddVec(&slope, &keep)

		// S[(i+1)%L] = C(x − L[i+1]) + (I−C)S[i%L]
		var resid, sdev, skeep, nextSeason mat.VecDense
		resid.SubVec(x, &nextLevel)
		sdev.MulVec(a, &resid)
		skeep.MulVec(&ia, season)
		nextSeason.AddVec(&sdev, &skeep)
		seasons[(i+1)%L] = &nextSeason
		centerSeasons(seasons)

		level, trend = &nextLevel, &nextTrend
	}

	out := make([][]float64, periods)
	for m := 1; m <= periods; m++ {
		s := seasons[(rows-1+m)%L]
		row := make([]float64, k)
		for j := range k {
			row[j] = level.AtVec(j) + float64(m)*trend.AtVec(j) + s.AtVec(j)
			if math.IsNaN(row[j]) || math.IsInf(row[j], 0) {
				return nil, fmt.Errorf("recursion diverged at step %d", m)
			}
		}
		out[m-1] = row
	}
	return out, nil
}

// smoothingMatrix returns the K×K upper triangular matrix filled with alpha.
func smoothingMatrix(k int, alpha float64) *mat.Dense {
	a := mat.NewDense(k, k, nil)
	for i := range k {
		for j := i; j < k; j++ {
			a.Set(i, j, alpha)
		}
	}
	return a
}

func identity(k int) *mat.Dense {
	m := mat.NewDense(k, k, nil)
	for i := range k {
		m.Set(i, i, 1)
	}
	return m
}

// initialLevels is the centered moving average over the first four cycles,
// yielding 3L level vectors.
func initialLevels(data [][]float64, L int) [][]float64 {
	k := len(data[0])
	levels := make([][]float64, 3*L)
	for i := range levels {
		row := make([]float64, k)
		for j := range k {
			row[j] = (meanRows(data[i:i+L], j) + meanRows(data[i+1:i+L+1], j)) / 2
		}
		levels[i] = row
	}
	return levels
}

// initialSeasons averages the detrended values of three cycles, rotates the
// result so it starts at the first observation and centers it on zero.
func initialSeasons(data, levels [][]float64, L int) []*mat.VecDense {
	k := len(data[0])
	half := L / 2
	raw := make([][]float64, L)
	for i := range L {
		row := make([]float64, k)
		for j := range k {
			var sum float64
			for c := range 3 {
				idx := i + c*L
				sum += data[half+idx][j] - levels[idx][j]
			}
			row[j] = sum / 3
		}
		raw[i] = row
	}

	seasons := make([]*mat.VecDense, 0, L)
	for _, row := range append(raw[half:], raw[:half]...) {
		seasons = append(seasons, mat.NewVecDense(k, row))
	}
	centerSeasons(seasons)
	return seasons
}

func centerSeasons(seasons []*mat.VecDense) {
	k := seasons[0].Len()
	for j := range k {
		var sum float64
		for _, s := range seasons {
			sum += s.AtVec(j)
		}
		mean := sum / float64(len(seasons))
		for _, s := range seasons {
			s.SetVec(j, s.AtVec(j)-mean)
		}
	}
}

func meanRows(rows [][]float64, j int) float64 {
	var sum float64
	for _, r := range rows {
		sum += r[j]
	}
	return sum / float64(len(rows))
}

func hasNaN(row []float64) bool {
	for _, v := range row {
		if math.IsNaN(v) {
			return true
		}
	}
	return false
}
