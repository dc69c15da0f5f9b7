package adapters

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"text/template"
	"time"

	"github.com/HatiCode/dtsociety/pkg/table"
)

// DefaultMaxBytes caps the size of a downloaded dataset.
const DefaultMaxBytes = 64 << 20

// HTTPAdapter downloads a dataset, for example a Eurostat bulk TSV:
//
//	adapter := &HTTPAdapter{
//	    URL:    "https://ec.europa.eu/eurostat/api/dissemination/sdmx/2.1/data/tps00001?format=TSV",
//	    Format: FormatTSV,
//	}
//
// JSON APIs are supported through RecordsPath, a gjson path to the array
// of records:
//
//	adapter := &HTTPAdapter{
//	    URL:         "https://api.example.com/indicators",
//	    Headers:     map[string]string{"Authorization": "Bearer {{.Token}}"},
//	    Format:      FormatJSON,
//	    ParseOptions: ParseOptions{RecordsPath: "data.rows"},
//	    TemplateVars: map[string]string{"Token": token},
//	}
type HTTPAdapter struct {
	// URL is the endpoint to call (required).
	URL string

	// Method defaults to GET.
	Method string

	// Headers are sent with the request. Values may reference TemplateVars.
	Headers map[string]string

	// Body is an optional request body template.
	Body string

	// Format of the payload. When empty it is taken from the Content-Type
	// header, then from the URL path.
	Format Format

	ParseOptions

	// MaxBytes limits the payload size (DefaultMaxBytes if <= 0).
	MaxBytes int64

	// HTTPClient is optional; if nil a client with a 30s timeout is used.
	HTTPClient *http.Client

	// TemplateVars are available in Body and Headers templates.
	TemplateVars map[string]string
}

func (h *HTTPAdapter) Name() string { return "http" }

// Load implements Adapter.
func (h *HTTPAdapter) Load(ctx context.Context) (*table.Table, error) {
	if err := h.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("http adapter: %w", err)
	}

	method := h.Method
	if method == "" {
		method = http.MethodGet
	}

	var bodyReader io.Reader
	if h.Body != "" {
		body, err := renderTemplate(h.Body, h.TemplateVars)
		if err != nil {
			return nil, fmt.Errorf("render body template: %w", err)
		}
		bodyReader = strings.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, h.URL, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for key, value := range h.Headers {
		rendered, err := renderTemplate(value, h.TemplateVars)
		if err != nil {
			return nil, fmt.Errorf("render header %s: %w", key, err)
		}
		req.Header.Set(key, rendered)
	}

	cli := h.HTTPClient
	if cli == nil {
		cli = &http.Client{Timeout: 30 * time.Second}
	}
	resp, err := cli.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, string(body))
	}

	maxBytes := h.MaxBytes
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	data, err := readAllLimited(resp.Body, maxBytes)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	format, err := h.format(resp.Header.Get("Content-Type"))
	if err != nil {
		return nil, fmt.Errorf("http adapter: %w", err)
	}

	t, err := Parse(bytes.NewReader(data), format, h.ParseOptions)
	if err != nil {
		return nil, fmt.Errorf("http adapter: parse %s: %w", h.URL, err)
	}
	return t, nil
}

func (h *HTTPAdapter) format(contentType string) (Format, error) {
	if h.Format != "" {
		return h.Format, nil
	}
	if mt, _, err := mime.ParseMediaType(contentType); err == nil {
		switch mt {
		case "text/csv":
			return FormatCSV, nil
		case "text/tab-separated-values":
			return FormatTSV, nil
		case "application/json":
			return FormatJSON, nil
		case "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":
			return FormatXLSX, nil
		}
	}
	return DetectFormat(h.URL)
}

// ValidateConfig checks if the adapter configuration is valid.
func (h *HTTPAdapter) ValidateConfig() error {
	if h.URL == "" {
		return errors.New("url is required")
	}
	if !strings.HasPrefix(h.URL, "http://") && !strings.HasPrefix(h.URL, "https://") {
		return fmt.Errorf("invalid url %q: scheme must be http or https", h.URL)
	}
	if h.Format != "" {
		if _, err := ParseFormat(string(h.Format)); err != nil {
			return err
		}
	}
	return nil
}

func renderTemplate(tmplStr string, data map[string]string) (string, error) {
	if !strings.Contains(tmplStr, "{{") {
		return tmplStr, nil
	}

	tmpl, err := template.New("").Option("missingkey=error").Parse(tmplStr)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}
