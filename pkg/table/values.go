package table

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the serialized form of time values in responses.
const DateLayout = "2006-01-02"

var timeLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"02.01.2006",
	"2006-01",
	"2006/01",
	"Jan 2006",
	"January 2006",
	"2006",
}

var (
	monthlyPattern   = regexp.MustCompile(`^([12][0-9]{3})M(0[1-9]|1[0-2])$`)
	quarterlyPattern = regexp.MustCompile(`^([12][0-9]{3})-?Q([1-4])$`)
	yearPattern      = regexp.MustCompile(`^[12][0-9]{3}$`)
)

// ErrNotTime is returned by ParseTime for values that are not timestamps.
var ErrNotTime = errors.New("value is not a timestamp")

// ParseTime converts a cell value into a UTC timestamp.
//
// Besides the usual ISO layouts it accepts bare years ("2000", or the float
// 2000), Eurostat monthly labels ("2000M01") and quarterly labels ("2000Q1").
func ParseTime(v any) (time.Time, error) {
	switch val := v.(type) {
	case time.Time:
		return val.UTC(), nil
	case float64:
		if val == math.Trunc(val) && val >= 1000 && val < 3000 {
			return time.Date(int(val), time.January, 1, 0, 0, 0, 0, time.UTC), nil
		}
		return time.Time{}, ErrNotTime
	case int:
		return ParseTime(float64(val))
	case string:
		return parseTimeString(strings.TrimSpace(val))
	default:
		return time.Time{}, ErrNotTime
	}
}

func parseTimeString(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, ErrNotTime
	}
	if m := monthlyPattern.FindStringSubmatch(s); m != nil {
		y, _ := strconv.Atoi(m[1])
		mo, _ := strconv.Atoi(m[2])
		return time.Date(y, time.Month(mo), 1, 0, 0, 0, 0, time.UTC), nil
	}
	if m := quarterlyPattern.FindStringSubmatch(s); m != nil {
		y, _ := strconv.Atoi(m[1])
		q, _ := strconv.Atoi(m[2])
		return time.Date(y, time.Month(3*(q-1)+1), 1, 0, 0, 0, 0, time.UTC), nil
	}
	if len(s) == 4 && !yearPattern.MatchString(s) {
		return time.Time{}, ErrNotTime
	}
	for _, layout := range timeLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, ErrNotTime
}

// IsDateLike reports whether a header or cell parses as a timestamp.
func IsDateLike(v any) bool {
	_, err := ParseTime(v)
	return err == nil
}

// Float converts a cell value into a float64.
func Float(v any) (float64, bool) {
	switch val := v.(type) {
	case float64:
		return val, true
	case float32:
		return float64(val), true
	case int:
		return float64(val), true
	case int64:
		return float64(val), true
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	default:
		return 0, false
	}
}

// String renders a cell value as text.
func String(v any) string {
	switch val := v.(type) {
	case nil:
		return ""
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case time.Time:
		return val.Format(DateLayout)
	default:
		return fmt.Sprint(val)
	}
}

func jsonValue(v any) any {
	if f, ok := v.(float64); ok && (math.IsNaN(f) || math.IsInf(f, 0)) {
		return nil
	}
	return v
}
