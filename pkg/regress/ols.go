// Package regress holds the least-squares machinery shared by the VAR engine,
// the ADF test and the scenario regression.
package regress

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// ErrSingular is returned when a design matrix has no usable rank.
var ErrSingular = errors.New("design matrix is singular")

// rankTol is the singular value cutoff for the SVD fallback.
const rankTol = 1e-12

// Fit is an ordinary least squares solution of Y ≈ X B.
type Fit struct {
	// Coef is the m×k coefficient matrix B.
	Coef *mat.Dense
	// Resid is the n×k residual matrix Y − X B.
	Resid *mat.Dense
	// XtXInv is (X'X)^-1, nil when the SVD fallback was used.
	XtXInv *mat.Dense
	Rank   int
	N, M   int
}

// OLS solves Y ≈ X B. The normal equations are tried first; when X'X cannot
// be inverted the minimum-norm solution is taken from the SVD of X.
func OLS(x, y *mat.Dense) (*Fit, error) {
	n, m := x.Dims()
	ny, _ := y.Dims()
	if n != ny {
		return nil, fmt.Errorf("ols: %d design rows, %d response rows", n, ny)
	}
	if n == 0 || m == 0 {
		return nil, ErrSingular
	}

	fit := &Fit{N: n, M: m}
	var b mat.Dense

	var xtx, xtxInv mat.Dense
	xtx.Mul(x.T(), x)
	if n >= m && xtxInv.Inverse(&xtx) == nil {
		var xty mat.Dense
		xty.Mul(x.T(), y)
		b.Mul(&xtxInv, &xty)
		fit.XtXInv = &xtxInv
		fit.Rank = m
	} else {
		var svd mat.SVD
		if !svd.Factorize(x, mat.SVDThin) {
			return nil, fmt.Errorf("ols: svd factorization failed: %w", ErrSingular)
		}
		rank := svd.Rank(rankTol)
		if rank == 0 {
			return nil, ErrSingular
		}
		svd.SolveTo(&b, y, rank)
		fit.Rank = rank
	}

	var yhat, resid mat.Dense
	yhat.Mul(x, &b)
	resid.Sub(y, &yhat)

	for _, v := range b.RawMatrix().Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return nil, fmt.Errorf("ols: non-finite coefficient: %w", ErrSingular)
		}
	}

	fit.Coef = &b
	fit.Resid = &resid
	return fit, nil
}

// SSR returns the residual sum of squares of response column j.
func (f *Fit) SSR(j int) float64 {
	var ssr float64
	for i := range f.N {
		r := f.Resid.At(i, j)
		ssr += r * r
	}
	return ssr
}

// TValue returns the t statistic of coefficient i in response column j.
// It needs the normal-equations solution.
func (f *Fit) TValue(i, j int) (float64, error) {
	if f.XtXInv == nil {
		return 0, ErrSingular
	}
	df := f.N - f.M
	if df <= 0 {
		return 0, fmt.Errorf("ols: no residual degrees of freedom")
	}
	sigma2 := f.SSR(j) / float64(df)
	se := math.Sqrt(sigma2 * f.XtXInv.At(i, i))
	if se == 0 || math.IsNaN(se) {
		return 0, ErrSingular
	}
	return f.Coef.At(i, j) / se, nil
}

// LogLikelihood is the Gaussian log-likelihood of a single-equation fit.
func LogLikelihood(ssr float64, nobs int) float64 {
	n := float64(nobs)
	return -n / 2 * (math.Log(2*math.Pi) + math.Log(ssr/n) + 1)
}

// AIC is the Akaike information criterion of a single-equation fit with k parameters.
func AIC(ssr float64, nobs, k int) float64 {
	return -2*LogLikelihood(ssr, nobs) + 2*float64(k)
}
