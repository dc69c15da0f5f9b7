package align

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HatiCode/dtsociety/pkg/errs"
	"github.com/HatiCode/dtsociety/pkg/table"
)

func yearly(timeColumn, feature string, values map[string]any) *table.Table {
	t := table.New(timeColumn, feature)
	for _, year := range []string{"2000", "2001", "2002", "2003", "2004"} {
		if v, ok := values[year]; ok {
			t.Append(table.Row{timeColumn: year, feature: v})
		}
	}
	return t
}

func TestMerge_IntersectsTimestamps(t *testing.T) {
	a := Series{Name: "a", TimeColumn: "Time", Features: []string{"gdp"},
		Table: yearly("Time", "gdp", map[string]any{"2000": 1.0, "2001": 2.0, "2002": 3.0, "2003": 4.0})}
	b := Series{Name: "b", TimeColumn: "year", Features: []string{"gdp"},
		Table: yearly("year", "gdp", map[string]any{"2001": 10.0, "2002": 20.0, "2003": "n/a", "2004": 40.0})}

	got, err := Merge([]Series{a, b})
	require.NoError(t, err)

	assert.Equal(t, "year", got.TimeColumn, "the last input names the time column")
	assert.Equal(t, []string{"gdp", "gdp_1"}, got.Features)
	require.Equal(t, 3, got.Len())
	assert.Equal(t, time.Date(2001, 1, 1, 0, 0, 0, 0, time.UTC), got.Times[0])
	assert.Equal(t, []float64{2.0, 10.0}, got.Values[0])
	assert.Equal(t, 4.0, got.Values[2][0])
	assert.True(t, math.IsNaN(got.Values[2][1]), "non-numeric cells become NaN")

	tbl := got.Table()
	assert.Equal(t, []string{"year", "gdp", "gdp_1"}, tbl.Columns)
	assert.Equal(t, 3, tbl.Len())
}

func TestMerge_OrderIndependent(t *testing.T) {
	a := Series{Name: "a", TimeColumn: "Time", Features: []string{"x"},
		Table: yearly("Time", "x", map[string]any{"2000": 1.0, "2001": 1.0, "2002": 1.0})}
	b := Series{Name: "b", TimeColumn: "Time", Features: []string{"y"},
		Table: yearly("Time", "y", map[string]any{"2001": 1.0, "2002": 1.0, "2003": 1.0})}
	c := Series{Name: "c", TimeColumn: "Time", Features: []string{"z"},
		Table: yearly("Time", "z", map[string]any{"2002": 1.0, "2003": 1.0, "2004": 1.0, "2001": 1.0})}

	abc, err := Merge([]Series{a, b, c})
	require.NoError(t, err)
	cba, err := Merge([]Series{c, b, a})
	require.NoError(t, err)

	assert.Equal(t, abc.Times, cba.Times)
	assert.Len(t, abc.Times, 2)
}

func TestMerge_Errors(t *testing.T) {
	dup := table.New("Time", "x")
	dup.Append(table.Row{"Time": "2000", "x": 1.0})
	dup.Append(table.Row{"Time": "2000", "x": 2.0})

	bad := table.New("Time", "x")
	bad.Append(table.Row{"Time": "not a date", "x": 1.0})

	tests := []struct {
		name   string
		inputs []Series
	}{
		{"empty", nil},
		{"no features", []Series{{Name: "a", Table: dup, TimeColumn: "Time"}}},
		{"missing feature", []Series{{Name: "a", Table: dup, TimeColumn: "Time", Features: []string{"y"}}}},
		{"duplicate timestamps", []Series{{Name: "a", Table: dup, TimeColumn: "Time", Features: []string{"x"}}}},
		{"unparseable time", []Series{{Name: "a", Table: bad, TimeColumn: "Time", Features: []string{"x"}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Merge(tt.inputs)
			if !errors.Is(err, errs.ErrValidation) {
				t.Errorf("Merge() error = %v, want validation error", err)
			}
		})
	}
}

func TestUniqueFeatures(t *testing.T) {
	inputs := []Series{
		{Features: []string{"gdp", "pop"}},
		{Features: []string{"gdp"}},
		{Features: []string{"gdp"}},
	}
	assert.Equal(t, []string{"gdp", "pop", "gdp_1", "gdp_2"}, UniqueFeatures(inputs))
}
