package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/HatiCode/dtsociety/pkg/errs"
)

// DefaultIntervalLevel is the coverage of scenario prediction intervals.
const DefaultIntervalLevel = 0.80

// ParseIntervalLevel parses an interval coverage from either p-notation
// (p80, p95) or decimal notation (0.80, 0.95).
//
// Examples:
//   - "p80" → 0.80
//   - "0.95" → 0.95
//   - "" → DefaultIntervalLevel
//
// Returns error if the format is invalid or the value is outside (0, 1).
func ParseIntervalLevel(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return DefaultIntervalLevel, nil
	}

	var level float64
	if strings.HasPrefix(strings.ToLower(s), "p") {
		percentile, err := strconv.ParseFloat(s[1:], 64)
		if err != nil {
			return 0, errs.Validation("invalid p-notation %q", s)
		}
		level = percentile / 100
	} else {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, errs.Validation("invalid interval level %q", s)
		}
		level = v
	}
	if err := checkIntervalLevel(level); err != nil {
		return 0, err
	}
	return level, nil
}

func checkIntervalLevel(level float64) error {
	if !(level > 0 && level < 1) {
		return errs.Validation("interval level %v out of range (0, 1)", level)
	}
	return nil
}

// IntervalLevel is an interval coverage that decodes from a JSON number
// (0.95) or a string in either ParseIntervalLevel notation ("p95", "0.95").
// Zero selects the engine default.
type IntervalLevel float64

// UnmarshalJSON implements json.Unmarshaler.
func (l *IntervalLevel) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*l = 0
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		v, err := ParseIntervalLevel(s)
		if err != nil {
			return err
		}
		*l = IntervalLevel(v)
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*l = IntervalLevel(v)
	return nil
}

// FormatIntervalLevel formats a coverage as p-notation for display.
func FormatIntervalLevel(level float64) string {
	percentile := level * 100
	if percentile == math.Trunc(percentile) {
		return fmt.Sprintf("p%d", int(percentile))
	}
	return fmt.Sprintf("p%.1f", percentile)
}

// halfWidth returns the distance from the point forecast to either interval
// bound at the given step past the last observation (0 for history rows).
// Uncertainty grows with the forecast horizon.
func halfWidth(level, sigma float64, step int) float64 {
	z := distuv.UnitNormal.Quantile(0.5 + level/2)
	horizonFactor := math.Sqrt(1.0 + float64(step)*0.1)
	return z * sigma * horizonFactor
}
