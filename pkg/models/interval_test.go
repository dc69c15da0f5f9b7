package models

import (
	"encoding/json"
	"math"
	"testing"
)

func TestParseIntervalLevel(t *testing.T) {
	tests := []struct {
		input   string
		want    float64
		wantErr bool
	}{
		// p-notation
		{"p80", 0.80, false},
		{"p95", 0.95, false},
		{"P90", 0.90, false},

		// decimal notation
		{"0.80", 0.80, false},
		{"0.999", 0.999, false},

		// default
		{"", DefaultIntervalLevel, false},

		// errors
		{"p100", 0, true},
		{"0", 0, true},
		{"1.5", 0, true},
		{"-0.5", 0, true},
		{"pabc", 0, true},
		{"wide", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseIntervalLevel(tt.input)
			if (err != nil) != tt.wantErr {
				t.Errorf("ParseIntervalLevel(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
				return
			}
			if !tt.wantErr && got != tt.want {
				t.Errorf("ParseIntervalLevel(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestIntervalLevel_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		input   string
		want    IntervalLevel
		wantErr bool
	}{
		{`0.95`, 0.95, false},
		{`"p90"`, 0.90, false},
		{`"0.8"`, 0.80, false},
		{`null`, 0, false},
		{`"p150"`, 0, true},
		{`"wide"`, 0, true},
		{`true`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			var got IntervalLevel
			err := json.Unmarshal([]byte(tt.input), &got)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Unmarshal(%s) error = %v, wantErr %v", tt.input, err, tt.wantErr)
			}
			if !tt.wantErr && math.Abs(float64(got-tt.want)) > 1e-9 {
				t.Errorf("Unmarshal(%s) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestFormatIntervalLevel(t *testing.T) {
	tests := []struct {
		input float64
		want  string
	}{
		{0.80, "p80"},
		{0.95, "p95"},
		{0.999, "p99.9"},
	}

	for _, tt := range tests {
		if got := FormatIntervalLevel(tt.input); got != tt.want {
			t.Errorf("FormatIntervalLevel(%v) = %q, want %q", tt.input, got, tt.want)
		}
	}
}

func TestHalfWidth(t *testing.T) {
	if got := halfWidth(0.80, 1, 0); math.Abs(got-1.2816) > 1e-3 {
		t.Errorf("halfWidth(0.80, 1, 0) = %v, want ≈1.2816", got)
	}
	if halfWidth(0.80, 1, 10) <= halfWidth(0.80, 1, 1) {
		t.Error("interval should widen with the horizon")
	}
	if halfWidth(0.80, 0, 5) != 0 {
		t.Error("zero sigma should give a zero width")
	}
}
