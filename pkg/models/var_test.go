package models

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HatiCode/dtsociety/pkg/align"
	"github.com/HatiCode/dtsociety/pkg/errs"
	"github.com/HatiCode/dtsociety/pkg/table"
)

func TestVAR_ThreeYearGDP(t *testing.T) {
	raw := table.New("geo", "Time", "gdp")
	raw.Append(table.Row{"geo": "DEU", "Time": "2000", "gdp": 100.0})
	raw.Append(table.Row{"geo": "DEU", "Time": "2001", "gdp": 110.0})
	raw.Append(table.Row{"geo": "DEU", "Time": "2002", "gdp": 121.0})
	series := align.Series{Name: "a", Table: raw, TimeColumn: "Time", Features: []string{"gdp"}}

	got, err := NewVAR(1, quietLogger()).Forecast(context.Background(), Input{Series: []align.Series{series}, Periods: 1})
	require.NoError(t, err)

	require.Len(t, got.Times, 4)
	require.Len(t, got.Values, 4)
	assert.Equal(t, 3, got.History)
	assert.Equal(t, time.Date(2003, 1, 1, 0, 0, 0, 0, time.UTC), got.Times[3])
	assert.Equal(t, []float64{100}, got.Values[0])
	assert.Equal(t, []float64{121}, got.Values[2])

	fc := got.Values[3][0]
	assert.False(t, math.IsNaN(fc))
	for _, h := range []float64{100, 110, 121} {
		assert.NotEqual(t, h, fc)
	}
}

func TestVAR_Deterministic(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 9))
	a, b := make([]float64, 30), make([]float64, 30)
	for i := range a {
		a[i] = 50 + float64(i) + rng.NormFloat64()
		b[i] = 20 + 0.5*float64(i) + rng.NormFloat64()
	}
	in := Input{
		Series:  []align.Series{annualSeries("a", "x", a...), annualSeries("b", "x", b...)},
		Periods: 5,
	}
	engine := NewVAR(3, quietLogger())

	first, err := engine.Forecast(context.Background(), in)
	require.NoError(t, err)
	second, err := engine.Forecast(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, first.Values, second.Values)
	assert.Equal(t, []string{"x", "x_1"}, first.Features)
	assert.Len(t, first.Times, 35)
	assert.Equal(t, 2034, first.Times[34].Year())
}

func TestVAR_UnsupportedFrequency(t *testing.T) {
	s := func(values ...float64) align.Series {
		tbl := table.New("Time", "v")
		for i, v := range values {
			tbl.Append(table.Row{"Time": time.Date(2020, 1, 1+i, 0, 0, 0, 0, time.UTC), "v": v})
		}
		return align.Series{Name: "daily", Table: tbl, TimeColumn: "Time", Features: []string{"v"}}
	}

	_, err := NewVAR(1, quietLogger()).Forecast(context.Background(), Input{
		Series:  []align.Series{s(1, 3, 2, 5, 4)},
		Periods: 2,
	})
	if !errors.Is(err, errs.ErrUnsupportedFrequency) {
		t.Fatalf("Forecast() error = %v, want unsupported frequency", err)
	}
}

func TestFitVAR_RecoversAR1(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 1))
	y := make([][]float64, 400)
	y[0] = []float64{0, 0}
	for i := 1; i < len(y); i++ {
		y[i] = []float64{
			0.6*y[i-1][0] + 0.1*y[i-1][1] + 0.1*rng.NormFloat64(),
			0.2*y[i-1][0] + 0.3*y[i-1][1] + 0.1*rng.NormFloat64(),
		}
	}

	fit, err := fitVAR(y, 1)
	require.NoError(t, err)

	assert.InDelta(t, 0.6, fit.coef.At(1, 0), 0.1)
	assert.InDelta(t, 0.2, fit.coef.At(1, 1), 0.1)
	assert.InDelta(t, 0.1, fit.coef.At(2, 0), 0.1)
	assert.InDelta(t, 0.3, fit.coef.At(2, 1), 0.1)

	fc := fit.forecast(y, 50)
	assert.InDelta(t, 0, fc[49][0], 0.05, "a stable system decays towards its mean")
}

func TestFitVAR_TooShort(t *testing.T) {
	if _, err := fitVAR([][]float64{{1}}, 2); err == nil {
		t.Error("fitVAR() error = nil, want error")
	}
}
