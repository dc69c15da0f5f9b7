package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/HatiCode/dtsociety/pkg/adapters"
)

const gdpCSV = "geo,2000,2001,2002\nGermany,100,110,121\nFrance,50,55,60.5\n"

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func longCSV(column string, values []float64) string {
	var b strings.Builder
	b.WriteString("Time," + column + "\n")
	for i, v := range values {
		fmt.Fprintf(&b, "%d,%g\n", 2000+i, v)
	}
	return b.String()
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd("test")
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestInspect(t *testing.T) {
	path := writeFile(t, "gdp.csv", gdpCSV)

	out, err := run(t, "inspect", path)
	require.NoError(t, err)

	var got []struct {
		Name      string   `json:"name"`
		GeoColumn string   `json:"geoSelected"`
		Columns   []string `json:"initialColumns"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, "gdp.csv", got[0].Name)
	assert.Equal(t, "geo", got[0].GeoColumn)
	assert.Equal(t, []string{"geo", "2000", "2001", "2002"}, got[0].Columns)
}

func TestInspect_RequiresFile(t *testing.T) {
	_, err := run(t, "inspect")
	assert.Error(t, err)
}

func TestReshape(t *testing.T) {
	path := writeFile(t, "gdp.csv", gdpCSV)
	dst := filepath.Join(t.TempDir(), "long.csv")

	_, err := run(t, "reshape", path, "-o", dst)
	require.NoError(t, err)

	f, err := os.Open(dst)
	require.NoError(t, err)
	defer f.Close()
	long, err := adapters.ParseDelimited(f, ',')
	require.NoError(t, err)
	assert.Equal(t, []string{"geo", "Time", "value"}, long.Columns)
	assert.Equal(t, 6, long.Len())
}

func TestReshape_StdoutJSON(t *testing.T) {
	path := writeFile(t, "gdp.csv", gdpCSV)

	out, err := run(t, "reshape", path)
	require.NoError(t, err)

	var got struct {
		Columns []string         `json:"columns"`
		Rows    []map[string]any `json:"rows"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, []string{"geo", "Time", "value"}, got.Columns)
	assert.Len(t, got.Rows, 6)
}

func TestForecast(t *testing.T) {
	path := writeFile(t, "gdp.csv", gdpCSV)

	out, err := run(t, "forecast", "-d", path+":value", "--country", "DE", "--periods", "1", "--max-lags", "1")
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Len(t, got["x"], 4)
	assert.Len(t, got["value"], 4)
}

func TestForecast_AllCountries(t *testing.T) {
	path := writeFile(t, "gdp.csv", gdpCSV)

	out, err := run(t, "forecast", "-d", path+":value", "--all-countries", "--max-lags", "1")
	require.NoError(t, err)

	var got map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Contains(t, got, "DEU")
	assert.Contains(t, got, "FRA")
}

func TestForecast_Errors(t *testing.T) {
	path := writeFile(t, "gdp.csv", gdpCSV)

	tests := []struct {
		name string
		args []string
	}{
		{"missing dataset flag", []string{"forecast", "--country", "DEU"}},
		{"bad dataset argument", []string{"forecast", "-d", path}},
		{"missing file", []string{"forecast", "-d", "/nonexistent/gdp.csv:value", "--country", "DEU"}},
		{"unknown model", []string{"forecast", "-d", path + ":value", "--country", "DEU", "--model", "lstm"}},
		{"unknown country", []string{"forecast", "-d", path + ":value", "--country", "ITA"}},
		{"bad interval", []string{"forecast", "-d", path + ":value", "--country", "DEU", "--interval", "p150"}},
		{"negative max lags", []string{"forecast", "-d", path + ":value", "--country", "DEU", "--max-lags=-2"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, tt.args...)
			assert.Error(t, err)
		})
	}
}

func TestScenario(t *testing.T) {
	r := []float64{1, 4, 2, 8, 5, 7, 3, 9, 6, 10}
	y := make([]float64, len(r))
	for i, v := range r {
		y[i] = 2 + 3*v
	}
	dep := writeFile(t, "dep.csv", longCSV("y", y))
	reg := writeFile(t, "reg.csv", longCSV("r", r))

	out, err := run(t, "scenario", "-d", reg+":r", "-d", dep+":y", "--dependent", dep, "--scenario", "r=5,6,7", "--interval", "p95")
	require.NoError(t, err)

	var got struct {
		Dependent string `json:"dependent"`
		Interval  string `json:"interval"`
		Forecast  struct {
			X    []string  `json:"x"`
			Yhat []float64 `json:"yhat"`
		} `json:"forecast"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "y", got.Dependent)
	assert.Equal(t, "p95", got.Interval)
	require.Len(t, got.Forecast.Yhat, 3)
	for i, want := range []float64{17, 20, 23} {
		assert.InDelta(t, want, got.Forecast.Yhat[i], 1e-6)
	}
}

func TestScenario_UnknownDependent(t *testing.T) {
	reg := writeFile(t, "reg.csv", longCSV("r", []float64{1, 2, 3, 4}))

	_, err := run(t, "scenario", "-d", reg+":r", "--dependent", "other.csv")
	assert.ErrorContains(t, err, "not a selected dataset")
}

func TestStats(t *testing.T) {
	a := writeFile(t, "a.csv", longCSV("a", []float64{1, 2, 3, 4}))
	b := writeFile(t, "b.csv", longCSV("b", []float64{4, 3, 2, 1}))

	out, err := run(t, "stats", "-d", a+":a", "-d", b+":b")
	require.NoError(t, err)
	var stats []json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.Len(t, stats, 2)

	out, err = run(t, "stats", "-d", a+":a", "-d", b+":b", "--heatmap")
	require.NoError(t, err)
	var hm struct {
		Columns []string    `json:"columns"`
		Matrix  [][]float64 `json:"matrix"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &hm))
	assert.Equal(t, []string{"a", "b"}, hm.Columns)
	require.Len(t, hm.Matrix, 2)
	assert.InDelta(t, -1, hm.Matrix[1][0], 1e-9)
	assert.Zero(t, hm.Matrix[0][1])
}

func TestParseDatasetArg(t *testing.T) {
	tests := []struct {
		arg          string
		wantPath     string
		wantFeatures []string
		wantErr      bool
	}{
		{"gdp.csv:value", "gdp.csv", []string{"value"}, false},
		{"data/gdp.csv:gdp, pop", "data/gdp.csv", []string{"gdp", "pop"}, false},
		{`C:\data\gdp.csv:value`, `C:\data\gdp.csv`, []string{"value"}, false},
		{"gdp.csv", "", nil, true},
		{"gdp.csv:", "", nil, true},
		{":value", "", nil, true},
		{"gdp.csv: , ", "", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.arg, func(t *testing.T) {
			path, features, err := parseDatasetArg(tt.arg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantPath, path)
			assert.Equal(t, tt.wantFeatures, features)
		})
	}
}

func TestParseScenarios(t *testing.T) {
	got, err := parseScenarios([]string{"gdp=1, 2.5", "pop=3"})
	require.NoError(t, err)
	assert.Equal(t, map[string][]float64{"gdp": {1, 2.5}, "pop": {3}}, got)

	for _, bad := range []string{"gdp", "=1", "gdp=x"} {
		_, err := parseScenarios([]string{bad})
		assert.Error(t, err, bad)
	}

	got, err = parseScenarios(nil)
	require.NoError(t, err)
	assert.Nil(t, got)
}
