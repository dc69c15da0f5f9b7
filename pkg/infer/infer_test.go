package infer

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/HatiCode/dtsociety/pkg/geo"
	"github.com/HatiCode/dtsociety/pkg/table"
)

func TestInfer_SelectsAlpha3GeoColumn(t *testing.T) {
	codes := []string{"DEU", "FRA", "DEU", "ITA", "ESP", "FRA", "POL", "AUT", "BEL", "NLD"}
	tbl := table.New("country", "Time", "gdp")
	for i, c := range codes {
		tbl.Append(table.Row{"country": c, "Time": fmt.Sprint(2000 + i), "gdp": float64(i)})
	}

	got := Infer(tbl, geo.NewStaticResolver())

	assert.Equal(t, "country", got.GeoColumn)
	assert.Equal(t, []string{"country", "Time", "gdp"}, got.Columns)
	assert.NotContains(t, got.Features, "country")
	assert.Contains(t, got.Features, "gdp")
	assert.Contains(t, got.Features, "DEU", "low-cardinality values are candidates")
	assert.NotContains(t, got.Features, "2000", "time values are not categorical")
}

func TestInfer_RejectsUnresolvableStrings(t *testing.T) {
	tbl := table.New("label", "value")
	for i := range 10 {
		tbl.Append(table.Row{"label": fmt.Sprintf("zq%dxv", i), "value": float64(i)})
	}

	got := Infer(tbl, geo.NewStaticResolver())

	assert.Empty(t, got.GeoColumn)
	assert.Contains(t, got.Features, "label")
	assert.Contains(t, got.Features, "zq0xv")
}

func TestInfer_IgnoresPlaceAndPersonNames(t *testing.T) {
	names := []string{
		"Indianapolis", "Malibu", "Chinatown", "Francesco", "Perugia",
		"Chadwick", "Springfield", "Republic", "Land", "Unit",
	}
	tbl := table.New("city", "value")
	for i, n := range names {
		tbl.Append(table.Row{"city": n, "value": float64(i)})
	}

	got := Infer(tbl, geo.NewStaticResolver())

	assert.Empty(t, got.GeoColumn)
	assert.False(t, IsGeoColumn(tbl, "city", geo.NewStaticResolver()))
}

func TestInfer_SkipsDateHeadersAndHighCardinality(t *testing.T) {
	tbl := table.New("geo", "indicator", "2000", "2001")
	for i := range 20 {
		tbl.Append(table.Row{
			"geo":       "DE",
			"indicator": fmt.Sprintf("ind-%d", i),
			"2000":      1.0,
			"2001":      2.0,
		})
	}

	got := Infer(tbl, geo.NewStaticResolver())

	assert.Equal(t, "geo", got.GeoColumn)
	assert.Equal(t, []string{"DE", "indicator"}, got.Features)
}

func TestIsGeoColumn(t *testing.T) {
	r := geo.NewStaticResolver()

	tests := []struct {
		name   string
		values []any
		want   bool
	}{
		{"alpha2", []any{"DE", "FR", "IT", "ES"}, true},
		{"names", []any{"Germany", "France", "Bayern"}, true},
		{"four of ten fail", []any{"DE", "FR", "IT", "ES", "AT", "BE", "x", "y", "z", "w"}, true},
		{"five of ten fail", []any{"DE", "FR", "IT", "ES", "AT", "x", "y", "z", "w", "v"}, false},
		{"single letters", []any{"A", "B", "C"}, false},
		{"numbers", []any{1.0, 2.0}, false},
		{"empty", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tbl := table.New("c")
			for _, v := range tt.values {
				tbl.Append(table.Row{"c": v})
			}
			if got := IsGeoColumn(tbl, "c", r); got != tt.want {
				t.Errorf("IsGeoColumn() = %v, want %v", got, tt.want)
			}
		})
	}
}
