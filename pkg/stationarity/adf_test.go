package stationarity

import (
	"errors"
	"math"
	"math/rand/v2"
	"testing"
)

func TestADF_WhiteNoiseIsStationary(t *testing.T) {
	rng := rand.New(rand.NewPCG(1, 2))
	x := make([]float64, 200)
	for i := range x {
		x[i] = rng.NormFloat64()
	}

	got, err := ADF(x)
	if err != nil {
		t.Fatalf("ADF() error = %v", err)
	}
	if got.PValue > 0.05 {
		t.Errorf("ADF() p-value = %v, want < 0.05 (stat %v)", got.PValue, got.Stat)
	}
	if got.NObs <= 0 || got.NObs >= len(x) {
		t.Errorf("ADF() nobs = %d", got.NObs)
	}
}

func TestADF_RandomWalkTestsWorseThanIncrements(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 4))
	steps := make([]float64, 150)
	walk := make([]float64, 150)
	level := 0.0
	for i := range steps {
		steps[i] = rng.NormFloat64()
		level += steps[i]
		walk[i] = level
	}

	w, err := ADF(walk)
	if err != nil {
		t.Fatalf("ADF(walk) error = %v", err)
	}
	s, err := ADF(steps)
	if err != nil {
		t.Fatalf("ADF(steps) error = %v", err)
	}
	if w.Stat <= s.Stat || w.PValue <= s.PValue {
		t.Errorf("walk (stat %v, p %v) should test less stationary than its steps (stat %v, p %v)",
			w.Stat, w.PValue, s.Stat, s.PValue)
	}
}

func TestADF_TooShort(t *testing.T) {
	if _, err := ADF([]float64{1, 2, 3}); !errors.Is(err, ErrTooShort) {
		t.Errorf("ADF() error = %v, want ErrTooShort", err)
	}
}

func TestMackinnonP(t *testing.T) {
	tests := []struct {
		stat float64
		want float64
		tol  float64
	}{
		{-2.86, 0.05, 0.005},
		{-3.43, 0.01, 0.003},
		{3.0, 1, 0},
		{-20, 0, 0},
	}
	for _, tt := range tests {
		if got := mackinnonP(tt.stat); math.Abs(got-tt.want) > tt.tol {
			t.Errorf("mackinnonP(%v) = %v, want %v", tt.stat, got, tt.want)
		}
	}

	prev := 0.0
	for s := -6.0; s <= 2.5; s += 0.25 {
		p := mackinnonP(s)
		if p < prev {
			t.Fatalf("mackinnonP not monotone at %v: %v < %v", s, p, prev)
		}
		prev = p
	}
}
