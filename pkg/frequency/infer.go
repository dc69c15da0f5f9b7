package frequency

import (
	"slices"
	"time"

	"github.com/HatiCode/dtsociety/pkg/errs"
)

// MinPoints is the number of timestamps needed before a frequency is inferred.
const MinPoints = 3

// Infer derives the frequency of a set of timestamps.
//
// Timestamps are sorted first; duplicates are rejected. Fixed spacings map to
// "H", "D", "W-<DAY>" (or an "nD"/"nH" multiple); calendar spacings on the
// first or last day of a month map to month, quarter and year tokens.
// Irregular spacing is a validation error.
func Infer(times []time.Time) (Frequency, error) {
	if len(times) < MinPoints {
		return Frequency{}, errs.Validation("need at least %d timestamps to infer a frequency, got %d", MinPoints, len(times))
	}

	ts := slices.Clone(times)
	slices.SortFunc(ts, func(a, b time.Time) int { return a.Compare(b) })
	for i := 1; i < len(ts); i++ {
		if ts[i].Equal(ts[i-1]) {
			return Frequency{}, errs.Validation("duplicate timestamp %s", ts[i].Format(time.RFC3339))
		}
	}

	if f, ok := inferCalendar(ts); ok {
		return f, nil
	}
	if f, ok := inferFixed(ts); ok {
		return f, nil
	}
	return Frequency{}, errs.Validation("could not infer a regular frequency from %d timestamps", len(ts))
}

func inferFixed(ts []time.Time) (Frequency, bool) {
	d := ts[1].Sub(ts[0])
	for i := 2; i < len(ts); i++ {
		if ts[i].Sub(ts[i-1]) != d {
			return Frequency{}, false
		}
	}

	day := 24 * time.Hour
	switch {
	case d == 7*day && onMidnight(ts):
		return Frequency{Unit: Week, N: 1, Anchor: int(ts[0].Weekday())}, true
	case d%day == 0 && onMidnight(ts):
		return Frequency{Unit: Day, N: int(d / day)}, true
	case d%time.Hour == 0 && d > 0:
		return Frequency{Unit: Hour, N: int(d / time.Hour)}, true
	}
	return Frequency{}, false
}

func inferCalendar(ts []time.Time) (Frequency, bool) {
	if !onMidnight(ts) {
		return Frequency{}, false
	}

	starts, ends := true, true
	for _, t := range ts {
		if t.Day() != 1 {
			starts = false
		}
		if t.Day() != endOfMonth(t).Day() {
			ends = false
		}
	}
	if !starts && !ends {
		return Frequency{}, false
	}

	step := monthIndex(ts[1]) - monthIndex(ts[0])
	if step <= 0 {
		return Frequency{}, false
	}
	for i := 2; i < len(ts); i++ {
		if monthIndex(ts[i])-monthIndex(ts[i-1]) != step {
			return Frequency{}, false
		}
	}

	month := int(ts[0].Month())
	switch {
	case step%12 == 0:
		unit := YearStart
		if !starts {
			unit = YearEnd
		}
		return Frequency{Unit: unit, N: step / 12, Anchor: month}, true
	case step%3 == 0:
		unit, anchor := QuarterStart, (month-1)%3+1
		if !starts {
			unit, anchor = QuarterEnd, (month-1)%3+10
		}
		return Frequency{Unit: unit, N: step / 3, Anchor: anchor}, true
	default:
		unit := MonthStart
		if !starts {
			unit = MonthEnd
		}
		return Frequency{Unit: unit, N: step}, true
	}
}

func monthIndex(t time.Time) int {
	return t.Year()*12 + int(t.Month()) - 1
}

func onMidnight(ts []time.Time) bool {
	for _, t := range ts {
		if t.Hour() != 0 || t.Minute() != 0 || t.Second() != 0 || t.Nanosecond() != 0 {
			return false
		}
	}
	return true
}

// Labeled is an inferred frequency attached to the series it came from.
type Labeled struct {
	Series    string
	Frequency Frequency
}

// Agree returns the single frequency shared by every series, or a
// FrequencyMismatch error naming the distinct tokens.
func Agree(labeled []Labeled) (Frequency, error) {
	if len(labeled) == 0 {
		return Frequency{}, errs.Validation("no series to compare frequencies")
	}
	tokens := make([]string, len(labeled))
	first := labeled[0].Frequency
	mismatch := false
	for i, l := range labeled {
		tokens[i] = l.Frequency.String()
		if l.Frequency != first {
			mismatch = true
		}
	}
	if mismatch {
		return Frequency{}, errs.FrequencyMismatch(tokens)
	}
	return first, nil
}
