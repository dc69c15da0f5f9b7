package stationarity

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/HatiCode/dtsociety/pkg/regress"
)

// ErrTooShort is returned by ADF for series too short to test.
var ErrTooShort = errors.New("series too short for unit root test")

// ADFResult is the outcome of an augmented Dickey-Fuller test with a constant.
type ADFResult struct {
	Stat   float64
	PValue float64
	Lags   int
	NObs   int
}

// MacKinnon (1994, 2010) response surface for the constant-only case with one series.
const (
	tauMax  = 2.74
	tauMin  = -18.83
	tauStar = -1.61
)

var (
	tauSmallP = []float64{2.1659, 1.4412, 0.038269}
	tauLargeP = []float64{1.7339, 0.93202, -0.12745, -0.010368}
)

// ADF runs the augmented Dickey-Fuller unit root test on x with a constant
// term. The number of lagged differences is chosen by AIC up to
// 12·(n/100)^¼, capped at n/2−2.
func ADF(x []float64) (ADFResult, error) {
	n := len(x)
	maxLag := int(math.Ceil(12 * math.Pow(float64(n)/100, 0.25)))
	maxLag = min(maxLag, n/2-2)
	if maxLag < 0 {
		return ADFResult{}, fmt.Errorf("%w: %d observations", ErrTooShort, n)
	}

	dx := make([]float64, n-1)
	for i := range dx {
		dx[i] = x[i+1] - x[i]
	}

	best, bestAIC := 0, math.Inf(1)
	for lag := 0; lag <= maxLag; lag++ {
		xm, y := adfDesign(x, dx, lag, maxLag)
		fit, err := regress.OLS(xm, y)
		if err != nil {
			continue
		}
		_, k := xm.Dims()
		aic := regress.AIC(fit.SSR(0), fit.N, k)
		if aic < bestAIC {
			best, bestAIC = lag, aic
		}
	}

	xm, y := adfDesign(x, dx, best, best)
	fit, err := regress.OLS(xm, y)
	if err != nil {
		return ADFResult{}, fmt.Errorf("adf regression: %w", err)
	}
	stat, err := fit.TValue(0, 0)
	if err != nil {
		return ADFResult{}, fmt.Errorf("adf statistic: %w", err)
	}

	return ADFResult{Stat: stat, PValue: mackinnonP(stat), Lags: best, NObs: fit.N}, nil
}

// adfDesign regresses Δx_t on [x_{t-1}, const, Δx_{t-1} … Δx_{t-lag}],
// trimming the first skip differences so every lag order shares a sample.
func adfDesign(x, dx []float64, lag, skip int) (*mat.Dense, *mat.Dense) {
	nobs := len(dx) - skip
	cols := 2 + lag
	xm := mat.NewDense(nobs, cols, nil)
	y := mat.NewDense(nobs, 1, nil)
	for r := range nobs {
		i := skip + r
		y.Set(r, 0, dx[i])
		xm.Set(r, 0, x[i])
		xm.Set(r, 1, 1)
		for l := 1; l <= lag; l++ {
			xm.Set(r, 1+l, dx[i-l])
		}
	}
	return xm, y
}

func mackinnonP(stat float64) float64 {
	switch {
	case stat > tauMax:
		return 1
	case stat < tauMin:
		return 0
	}
	coef := tauLargeP
	if stat <= tauStar {
		coef = tauSmallP
	}
	var poly float64
	for i := len(coef) - 1; i >= 0; i-- {
		poly = poly*stat + coef[i]
	}
	return distuv.UnitNormal.CDF(poly)
}
