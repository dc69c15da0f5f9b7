package models

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
)

// AutoRegressive is a univariate ARI(p,d) model. The scenario engine uses it
// to generate future regressor values when the caller supplies none.
//
// The model requires training on a history before predicting.
// It is safe for concurrent Predict calls after training.
type AutoRegressive struct {
	p, d int

	mu             sync.RWMutex
	trained        bool
	arCoeffs       []float64
	mean           float64   // mean of the differenced series
	lastDiffs      []float64 // last p centered differences
	tails          []float64 // last value at every differencing level
	residualStdDev float64
}

// NewAutoRegressive creates an ARI(p,d) model.
//
// Parameters:
//   - p: AR order (0 selects 1)
//   - d: differencing order in [0, 2]
func NewAutoRegressive(p, d int) (*AutoRegressive, error) {
	if p < 0 {
		return nil, fmt.Errorf("p must be >= 0, got %d", p)
	}
	if d < 0 || d > 2 {
		return nil, fmt.Errorf("d must be in range [0, 2], got %d", d)
	}
	if p == 0 {
		p = 1
	}
	return &AutoRegressive{p: p, d: d}, nil
}

// Name returns the model name with its orders.
func (m *AutoRegressive) Name() string {
	return fmt.Sprintf("ari(%d,%d)", m.p, m.d)
}

// Train fits the model to values.
//
// The training process:
//  1. Differences the series d times, remembering the tail of every level
//  2. Centers the differenced series on its mean
//  3. Fits AR coefficients using Yule-Walker equations
//  4. Stores the last p centered values and the residual spread
func (m *AutoRegressive) Train(ctx context.Context, values []float64) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	minPoints := m.p + m.d + 2
	if len(values) < minPoints {
		return fmt.Errorf("need at least %d points for %s, got %d", minPoints, m.Name(), len(values))
	}

	tails := make([]float64, m.d)
	stationary := values
	for i := range m.d {
		tails[i] = stationary[len(stationary)-1]
		stationary = difference(stationary, 1)
	}

	mean := computeMean(stationary)
	centered := make([]float64, len(stationary))
	for i, v := range stationary {
		centered[i] = v - mean
	}

	arCoeffs, err := fitAR(centered, m.p)
	if err != nil {
		return fmt.Errorf("failed to fit AR coefficients: %w", err)
	}
	residuals := computeResiduals(centered, arCoeffs, m.p)

	residualStdDev := 0.0
	if len(residuals) > 1 {
		var sumSq float64
		for _, r := range residuals {
			sumSq += r * r
		}
		residualStdDev = math.Sqrt(sumSq / float64(len(residuals)-1))
	}

	lastDiffs := make([]float64, m.p)
	copy(lastDiffs, centered[max(0, len(centered)-m.p):])

	m.mu.Lock()
	defer m.mu.Unlock()

	m.trained = true
	m.arCoeffs = arCoeffs
	m.mean = mean
	m.lastDiffs = lastDiffs
	m.tails = tails
	m.residualStdDev = residualStdDev
	return nil
}

// Predict forecasts steps values past the training history.
func (m *AutoRegressive) Predict(ctx context.Context, steps int) ([]float64, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}
	if steps <= 0 {
		return nil, fmt.Errorf("steps must be > 0, got %d", steps)
	}

	m.mu.RLock()
	if !m.trained {
		m.mu.RUnlock()
		return nil, errors.New("model not trained, call Train() first")
	}
	arCoeffs := append([]float64(nil), m.arCoeffs...)
	window := append([]float64(nil), m.lastDiffs...)
	tails := append([]float64(nil), m.tails...)
	mean := m.mean
	m.mu.RUnlock()

	out := make([]float64, steps)
	for t := range steps {
		var pred float64
		for i, c := range arCoeffs {
			pred += c * window[len(window)-1-i]
		}
		window = append(window, pred)

		// integrate back through every differencing level
		v := pred + mean
		for i := len(tails) - 1; i >= 0; i-- {
			tails[i] += v
			v = tails[i]
		}
		out[t] = v
	}
	return out, nil
}

// ResidualStdDev returns the in-sample residual spread of the differenced series.
func (m *AutoRegressive) ResidualStdDev() float64 {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.residualStdDev
}

// difference applies d-order differencing.
func difference(series []float64, d int) []float64 {
	if d == 0 || len(series) == 0 {
		return append([]float64(nil), series...)
	}
	result := make([]float64, len(series)-1)
	for i := range result {
		result[i] = series[i+1] - series[i]
	}
	if d > 1 {
		return difference(result, d-1)
	}
	return result
}

func computeMean(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	var sum float64
	for _, v := range series {
		sum += v
	}
	return sum / float64(len(series))
}

func computeVariance(series []float64) float64 {
	if len(series) == 0 {
		return 0
	}
	mean := computeMean(series)
	var sumSq float64
	for _, v := range series {
		d := v - mean
		sumSq += d * d
	}
	return sumSq / float64(len(series))
}

// fitAR estimates AR coefficients using Yule-Walker equations with Levinson-Durbin.
// A flat series yields zero coefficients.
func fitAR(centered []float64, p int) ([]float64, error) {
	if p == 0 {
		return []float64{}, nil
	}
	if computeVariance(centered) < 1e-10 {
		return make([]float64, p), nil
	}

	acf := make([]float64, p+1)
	for k := 0; k <= p; k++ {
		acf[k] = autocorr(centered, k)
	}
	return levinsonDurbin(acf, p)
}

// autocorr computes the autocorrelation at the given lag.
func autocorr(series []float64, lag int) float64 {
	if lag < 0 || lag >= len(series) {
		return 0
	}
	n := len(series)
	mean := computeMean(series)

	var c0, ck float64
	for i := range n {
		c0 += (series[i] - mean) * (series[i] - mean)
	}
	for i := 0; i < n-lag; i++ {
		ck += (series[i] - mean) * (series[i+lag] - mean)
	}
	if c0 == 0 {
		return 0
	}
	return ck / c0
}

// levinsonDurbin solves the Yule-Walker equations.
func levinsonDurbin(acf []float64, p int) ([]float64, error) {
	phi := make([][]float64, p+1)
	for i := range phi {
		phi[i] = make([]float64, p+1)
	}

	v := acf[0]
	for k := 1; k <= p; k++ {
		num := acf[k]
		for j := 1; j < k; j++ {
			num -= phi[k-1][j] * acf[k-j]
		}
		if v == 0 {
			return nil, errors.New("numerical instability in Levinson-Durbin")
		}
		phi[k][k] = num / v
		for j := 1; j < k; j++ {
			phi[k][j] = phi[k-1][j] - phi[k][k]*phi[k-1][k-j]
		}
		v *= 1 - phi[k][k]*phi[k][k]
		if v < 0 {
			return nil, errors.New("negative variance in Levinson-Durbin")
		}
	}

	coeffs := make([]float64, p)
	for i := range p {
		coeffs[i] = phi[p][i+1]
	}
	return coeffs, nil
}

// computeResiduals returns the one-step AR prediction errors.
func computeResiduals(centered, arCoeffs []float64, p int) []float64 {
	if len(centered) <= p {
		return []float64{}
	}
	residuals := make([]float64, len(centered)-p)
	for t := p; t < len(centered); t++ {
		var arPred float64
		for i := 0; i < p && i < len(arCoeffs); i++ {
			arPred += arCoeffs[i] * centered[t-1-i]
		}
		residuals[t-p] = centered[t] - arPred
	}
	return residuals
}
