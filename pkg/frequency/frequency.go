// Package frequency infers and steps calendar frequencies of time series.
//
// Tokens follow the pandas offset aliases the datasets were historically
// described with: "D", "H", "W-SUN", "MS", "M", "QS-JAN", "Q-DEC", "AS-JAN",
// "A-DEC", with an optional integer multiple prefix ("2MS", "3D").
package frequency

import (
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/HatiCode/dtsociety/pkg/errs"
)

// Unit is the base offset of a frequency.
type Unit int

const (
	Hour Unit = iota + 1
	Day
	Week
	MonthStart
	MonthEnd
	QuarterStart
	QuarterEnd
	YearStart
	YearEnd
)

var unitTokens = map[Unit]string{
	Hour:         "H",
	Day:          "D",
	Week:         "W",
	MonthStart:   "MS",
	MonthEnd:     "M",
	QuarterStart: "QS",
	QuarterEnd:   "Q",
	YearStart:    "AS",
	YearEnd:      "A",
}

// aliases maps newer pandas spellings onto the tokens above.
var aliases = map[string]string{
	"YS": "AS",
	"Y":  "A",
	"YE": "A",
	"ME": "M",
	"QE": "Q",
}

var monthTokens = []string{"JAN", "FEB", "MAR", "APR", "MAY", "JUN", "JUL", "AUG", "SEP", "OCT", "NOV", "DEC"}

var weekdayTokens = []string{"SUN", "MON", "TUE", "WED", "THU", "FRI", "SAT"}

// Frequency is a parsed frequency token.
//
// Anchor is a month (1-12) for quarter and year units and a time.Weekday for
// weekly units; it is unused otherwise.
type Frequency struct {
	Unit   Unit
	N      int
	Anchor int
}

// Parse reads a token such as "AS-JAN" or "2MS".
func Parse(token string) (Frequency, error) {
	s := strings.ToUpper(strings.TrimSpace(token))
	i := 0
	for i < len(s) && s[i] >= '0' && s[i] <= '9' {
		i++
	}
	n := 1
	if i > 0 {
		v, err := strconv.Atoi(s[:i])
		if err != nil || v <= 0 {
			return Frequency{}, errs.Validation("invalid frequency %q", token)
		}
		n = v
	}
	base, anchor, _ := strings.Cut(s[i:], "-")
	if alias, ok := aliases[base]; ok {
		base = alias
	}

	for unit, tok := range unitTokens {
		if tok != base {
			continue
		}
		f := Frequency{Unit: unit, N: n}
		switch unit {
		case Week:
			idx := slices.Index(weekdayTokens, anchor)
			if anchor == "" {
				idx = int(time.Sunday)
			}
			if idx < 0 {
				return Frequency{}, errs.Validation("invalid weekly anchor in %q", token)
			}
			f.Anchor = idx
		case QuarterStart, QuarterEnd, YearStart, YearEnd:
			idx := slices.Index(monthTokens, anchor)
			if anchor == "" {
				idx = 0
				if unit == QuarterEnd || unit == YearEnd {
					idx = 11
				}
			}
			if idx < 0 {
				return Frequency{}, errs.Validation("invalid month anchor in %q", token)
			}
			f.Anchor = idx + 1
		default:
			if anchor != "" {
				return Frequency{}, errs.Validation("frequency %q takes no anchor", token)
			}
		}
		return f, nil
	}
	return Frequency{}, errs.Validation("unknown frequency %q", token)
}

// MustParse is like Parse but panics on error.
func MustParse(token string) Frequency {
	f, err := Parse(token)
	if err != nil {
		panic(err)
	}
	return f
}

// String returns the token form.
func (f Frequency) String() string {
	if f.Unit == 0 {
		return ""
	}
	var b strings.Builder
	if f.N > 1 {
		b.WriteString(strconv.Itoa(f.N))
	}
	b.WriteString(unitTokens[f.Unit])
	switch f.Unit {
	case Week:
		b.WriteString("-" + weekdayTokens[f.Anchor])
	case QuarterStart, QuarterEnd, YearStart, YearEnd:
		b.WriteString("-" + monthTokens[f.Anchor-1])
	}
	return b.String()
}

// IsZero reports whether f is unset.
func (f Frequency) IsZero() bool {
	return f.Unit == 0
}

func (f Frequency) n() int {
	if f.N <= 0 {
		return 1
	}
	return f.N
}

// Step advances t by k periods. t is expected to lie on an anchor.
func (f Frequency) Step(t time.Time, k int) time.Time {
	n := f.n() * k
	switch f.Unit {
	case Hour:
		return t.Add(time.Duration(n) * time.Hour)
	case Day:
		return t.AddDate(0, 0, n)
	case Week:
		return t.AddDate(0, 0, 7*n)
	case MonthStart:
		return firstOfMonth(t).AddDate(0, n, 0)
	case QuarterStart:
		return firstOfMonth(t).AddDate(0, 3*n, 0)
	case YearStart:
		return firstOfMonth(t).AddDate(n, 0, 0)
	case MonthEnd:
		return endOfMonth(firstOfMonth(t).AddDate(0, n, 0))
	case QuarterEnd:
		return endOfMonth(firstOfMonth(t).AddDate(0, 3*n, 0))
	case YearEnd:
		return endOfMonth(firstOfMonth(t).AddDate(n, 0, 0))
	default:
		return t
	}
}

// OnAnchor reports whether t is a valid point of the frequency.
func (f Frequency) OnAnchor(t time.Time) bool {
	midnight := t.Hour() == 0 && t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
	switch f.Unit {
	case Hour:
		return t.Minute() == 0 && t.Second() == 0 && t.Nanosecond() == 0
	case Day:
		return midnight
	case Week:
		return midnight && int(t.Weekday()) == f.Anchor
	case MonthStart:
		return midnight && t.Day() == 1
	case MonthEnd:
		return midnight && t.Day() == endOfMonth(t).Day()
	case QuarterStart:
		return midnight && t.Day() == 1 && quarterAligned(t.Month(), f.Anchor)
	case QuarterEnd:
		return midnight && t.Day() == endOfMonth(t).Day() && quarterAligned(t.Month(), f.Anchor)
	case YearStart:
		return midnight && t.Day() == 1 && int(t.Month()) == f.Anchor
	case YearEnd:
		return midnight && t.Day() == endOfMonth(t).Day() && int(t.Month()) == f.Anchor
	default:
		return false
	}
}

// RollForward returns the first anchor at or after t.
func (f Frequency) RollForward(t time.Time) time.Time {
	if f.OnAnchor(t) {
		return t
	}
	var c time.Time
	switch f.Unit {
	case Hour:
		c = t.Truncate(time.Hour)
		return c.Add(time.Hour)
	case Day:
		c = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
		return c.AddDate(0, 0, 1)
	case Week:
		c = time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
		for int(c.Weekday()) != f.Anchor || !c.After(t) {
			c = c.AddDate(0, 0, 1)
		}
		return c
	case MonthStart, QuarterStart, YearStart:
		c = firstOfMonth(t).AddDate(0, 1, 0)
	case MonthEnd, QuarterEnd, YearEnd:
		c = endOfMonth(t)
		if !c.After(t) {
			c = endOfMonth(firstOfMonth(t).AddDate(0, 1, 0))
		}
	default:
		return t
	}
	for i := 0; i < 13 && !f.OnAnchor(c); i++ {
		if f.Unit == MonthEnd || f.Unit == QuarterEnd || f.Unit == YearEnd {
			c = endOfMonth(firstOfMonth(c).AddDate(0, 1, 0))
		} else {
			c = c.AddDate(0, 1, 0)
		}
	}
	return c
}

// Range returns n timestamps starting at the first anchor at or after start.
func (f Frequency) Range(start time.Time, n int) []time.Time {
	if n <= 0 {
		return nil
	}
	out := make([]time.Time, n)
	out[0] = f.RollForward(start)
	for i := 1; i < n; i++ {
		out[i] = f.Step(out[0], i)
	}
	return out
}

func firstOfMonth(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
}

func endOfMonth(t time.Time) time.Time {
	return firstOfMonth(t).AddDate(0, 1, -1)
}

// quarterAligned reports whether month m starts/ends a quarter anchored at anchor.
func quarterAligned(m time.Month, anchor int) bool {
	return (int(m)-anchor)%3 == 0
}
