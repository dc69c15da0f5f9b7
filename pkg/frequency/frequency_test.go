package frequency

import (
	"errors"
	"testing"
	"time"

	"github.com/HatiCode/dtsociety/pkg/errs"
)

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestInfer(t *testing.T) {
	tests := []struct {
		name  string
		times []time.Time
		want  string
	}{
		{"annual start", []time.Time{date(2000, 1, 1), date(2001, 1, 1), date(2002, 1, 1)}, "AS-JAN"},
		{"annual unsorted", []time.Time{date(2002, 1, 1), date(2000, 1, 1), date(2001, 1, 1)}, "AS-JAN"},
		{"annual end", []time.Time{date(2000, 12, 31), date(2001, 12, 31), date(2002, 12, 31)}, "A-DEC"},
		{"month start", []time.Time{date(2000, 1, 1), date(2000, 2, 1), date(2000, 3, 1)}, "MS"},
		{"month end", []time.Time{date(2000, 1, 31), date(2000, 2, 29), date(2000, 3, 31)}, "M"},
		{"quarter start", []time.Time{date(2000, 1, 1), date(2000, 4, 1), date(2000, 7, 1)}, "QS-JAN"},
		{"quarter end", []time.Time{date(2000, 3, 31), date(2000, 6, 30), date(2000, 9, 30)}, "Q-DEC"},
		{"daily", []time.Time{date(2000, 1, 1), date(2000, 1, 2), date(2000, 1, 3)}, "D"},
		{"weekly", []time.Time{date(2023, 1, 1), date(2023, 1, 8), date(2023, 1, 15)}, "W-SUN"},
		{"every other month", []time.Time{date(2000, 1, 1), date(2000, 3, 1), date(2000, 5, 1)}, "2MS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Infer(tt.times)
			if err != nil {
				t.Fatalf("Infer() error = %v", err)
			}
			if got.String() != tt.want {
				t.Errorf("Infer() = %q, want %q", got.String(), tt.want)
			}
		})
	}
}

func TestInfer_Errors(t *testing.T) {
	tests := []struct {
		name  string
		times []time.Time
	}{
		{"too few", []time.Time{date(2000, 1, 1), date(2001, 1, 1)}},
		{"irregular", []time.Time{date(2000, 1, 1), date(2000, 1, 5), date(2000, 3, 9)}},
		{"duplicate", []time.Time{date(2000, 1, 1), date(2000, 1, 1), date(2001, 1, 1)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Infer(tt.times)
			if !errors.Is(err, errs.ErrValidation) {
				t.Errorf("Infer() error = %v, want validation error", err)
			}
		})
	}
}

func TestParse_RoundTrip(t *testing.T) {
	for _, tok := range []string{"D", "3D", "H", "W-MON", "MS", "M", "QS-JAN", "Q-DEC", "AS-JAN", "A-DEC", "2MS"} {
		f, err := Parse(tok)
		if err != nil {
			t.Errorf("Parse(%q) error = %v", tok, err)
			continue
		}
		if f.String() != tok {
			t.Errorf("Parse(%q).String() = %q", tok, f.String())
		}
	}

	if f := MustParse("YS-JAN"); f.String() != "AS-JAN" {
		t.Errorf("alias YS-JAN parsed as %q, want AS-JAN", f.String())
	}

	for _, bad := range []string{"", "X", "MS-JAN", "AS-FOO", "0D"} {
		if _, err := Parse(bad); err == nil {
			t.Errorf("Parse(%q) error = nil, want error", bad)
		}
	}
}

func TestStepAndRange(t *testing.T) {
	tests := []struct {
		token string
		start time.Time
		want  []time.Time
	}{
		{"AS-JAN", date(2002, 1, 1), []time.Time{date(2002, 1, 1), date(2003, 1, 1), date(2004, 1, 1)}},
		{"AS-JAN", date(2004, 12, 31), []time.Time{date(2005, 1, 1), date(2006, 1, 1), date(2007, 1, 1)}},
		{"MS", date(2000, 1, 31), []time.Time{date(2000, 2, 1), date(2000, 3, 1), date(2000, 4, 1)}},
		{"M", date(2000, 1, 31), []time.Time{date(2000, 1, 31), date(2000, 2, 29), date(2000, 3, 31)}},
		{"QS-JAN", date(2000, 2, 15), []time.Time{date(2000, 4, 1), date(2000, 7, 1), date(2000, 10, 1)}},
		{"W-SUN", date(2023, 1, 2), []time.Time{date(2023, 1, 8), date(2023, 1, 15), date(2023, 1, 22)}},
		{"D", date(2000, 2, 28), []time.Time{date(2000, 2, 28), date(2000, 2, 29), date(2000, 3, 1)}},
	}

	for _, tt := range tests {
		t.Run(tt.token, func(t *testing.T) {
			got := MustParse(tt.token).Range(tt.start, len(tt.want))
			for i := range tt.want {
				if !got[i].Equal(tt.want[i]) {
					t.Errorf("Range()[%d] = %s, want %s", i, got[i].Format("2006-01-02"), tt.want[i].Format("2006-01-02"))
				}
			}
		})
	}
}

func TestAgree(t *testing.T) {
	annual := MustParse("AS-JAN")
	monthly := MustParse("MS")

	got, err := Agree([]Labeled{{"a/gdp", annual}, {"b/pop", annual}})
	if err != nil || got != annual {
		t.Fatalf("Agree() = %v, %v; want AS-JAN", got, err)
	}

	_, err = Agree([]Labeled{{"a/gdp", annual}, {"b/pop", monthly}})
	var e *errs.Error
	if !errors.As(err, &e) || e.Kind != errs.KindFrequencyMismatch {
		t.Fatalf("Agree() error = %v, want frequency mismatch", err)
	}
	if len(e.Frequencies) != 2 {
		t.Errorf("Frequencies = %v, want both tokens named", e.Frequencies)
	}
}
