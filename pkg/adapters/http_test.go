package adapters

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

const eurostatTSV = "unit,geo\\time\t2019 \t2020 \n" +
	"NR,DE\t83019213 \t83166711 \n" +
	"NR,FR\t67012883 \t: \n"

func TestHTTPAdapter_EurostatTSV(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			t.Errorf("expected GET, got %s", r.Method)
		}
		w.Header().Set("Content-Type", "text/tab-separated-values")
		fmt.Fprint(w, eurostatTSV)
	}))
	defer server.Close()

	adapter := &HTTPAdapter{URL: server.URL}

	got, err := adapter.Load(context.Background())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	wantCols := []string{"unit,geo\\time", "2019", "2020"}
	if fmt.Sprint(got.Columns) != fmt.Sprint(wantCols) {
		t.Errorf("Columns = %v, want %v", got.Columns, wantCols)
	}
	if got.Len() != 2 {
		t.Fatalf("expected 2 rows, got %d", got.Len())
	}
	if v, ok := got.Rows[0]["2019"].(float64); !ok || v != 83019213 {
		t.Errorf("row 0 2019 = %v, want 83019213", got.Rows[0]["2019"])
	}
	if got.Rows[1]["2020"] != ": " {
		t.Errorf("placeholder should stay text, got %q", got.Rows[1]["2020"])
	}
}

func TestHTTPAdapter_GzipPayload(t *testing.T) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	io.WriteString(zw, "geo,2020\nDE,1.5\n")
	zw.Close()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/octet-stream")
		w.Write(buf.Bytes())
	}))
	defer server.Close()

	got, err := (&HTTPAdapter{URL: server.URL + "/data.csv.gz"}).Load(context.Background())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if got.Rows[0]["2020"] != 1.5 {
		t.Errorf("value = %v, want 1.5", got.Rows[0]["2020"])
	}
}

func TestHTTPAdapter_JSONWithHeaders(t *testing.T) {
	receivedAuth := ""
	receivedBody := ""
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedAuth = r.Header.Get("Authorization")
		b, _ := io.ReadAll(r.Body)
		receivedBody = string(b)
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		fmt.Fprint(w, `{"data": {"rows": [
			{"geo": "DE", "year": 2020, "gdp": 3.4},
			{"geo": "FR", "year": 2020, "gdp": null, "note": "p"}
		]}}`)
	}))
	defer server.Close()

	adapter := &HTTPAdapter{
		URL:          server.URL,
		Method:       http.MethodPost,
		Body:         `{"dataset": "{{.Dataset}}"}`,
		Headers:      map[string]string{"Authorization": "Bearer {{.Token}}"},
		ParseOptions: ParseOptions{RecordsPath: "data.rows"},
		TemplateVars: map[string]string{"Token": "secret123", "Dataset": "nama_10_gdp"},
	}

	got, err := adapter.Load(context.Background())
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if receivedAuth != "Bearer secret123" {
		t.Errorf("expected 'Bearer secret123', got '%s'", receivedAuth)
	}
	if receivedBody != `{"dataset": "nama_10_gdp"}` {
		t.Errorf("unexpected body: %s", receivedBody)
	}

	wantCols := []string{"geo", "year", "gdp", "note"}
	if fmt.Sprint(got.Columns) != fmt.Sprint(wantCols) {
		t.Errorf("Columns = %v, want %v", got.Columns, wantCols)
	}
	if got.Rows[1]["gdp"] != nil {
		t.Errorf("null should decode as nil, got %v", got.Rows[1]["gdp"])
	}
}

func TestHTTPAdapter_Errors(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/missing.csv":
			http.Error(w, "no such dataset", http.StatusNotFound)
		case "/big.csv":
			fmt.Fprint(w, strings.Repeat("a,b\n", 100))
		default:
			fmt.Fprint(w, "geo,2020\nDE,1\n")
		}
	}))
	defer server.Close()

	tests := []struct {
		name    string
		adapter *HTTPAdapter
		wantErr string
	}{
		{"empty url", &HTTPAdapter{}, "url is required"},
		{"bad scheme", &HTTPAdapter{URL: "ftp://example.com/a.csv"}, "scheme must be http or https"},
		{"bad format", &HTTPAdapter{URL: server.URL, Format: "parquet"}, "unsupported format"},
		{"status", &HTTPAdapter{URL: server.URL + "/missing.csv"}, "http status 404"},
		{"too large", &HTTPAdapter{URL: server.URL + "/big.csv", MaxBytes: 10}, "payload exceeds 10 bytes"},
		{"undetectable format", &HTTPAdapter{URL: server.URL + "/data"}, "cannot detect format"},
		{"missing template var", &HTTPAdapter{URL: server.URL + "/a.csv", Headers: map[string]string{"X": "{{.Nope}}"}}, "render header"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.adapter.Load(context.Background())
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestHTTPAdapter_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "geo,2020\n")
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := (&HTTPAdapter{URL: server.URL + "/a.csv"}).Load(ctx); err == nil {
		t.Error("expected error for canceled context")
	}
}
