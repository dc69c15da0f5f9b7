package adapters

import (
	"encoding/json"
	"fmt"
	"strings"
)

// New creates an adapter from a kind and a generic configuration map.
//
// Supported kinds:
//   - "file": requires "path"; optional "format", "sheet", "recordsPath"
//   - "http": requires "url"; optional "method", "headers" (JSON object),
//     "body", "format", "sheet", "recordsPath", "templateVars" (JSON object)
//
// An empty kind is inferred from the "url" or "path" key.
func New(kind string, config map[string]string) (Adapter, error) {
	if kind == "" {
		switch {
		case config["url"] != "":
			kind = "http"
		case config["path"] != "":
			kind = "file"
		}
	}

	switch strings.ToLower(kind) {
	case "file":
		return newFile(config)
	case "http":
		return newHTTP(config)
	default:
		return nil, fmt.Errorf("unknown adapter kind: %s (must be file or http)", kind)
	}
}

func parseOptions(config map[string]string) (Format, ParseOptions, error) {
	var format Format
	if s := config["format"]; s != "" {
		f, err := ParseFormat(s)
		if err != nil {
			return "", ParseOptions{}, err
		}
		format = f
	}
	return format, ParseOptions{Sheet: config["sheet"], RecordsPath: config["recordsPath"]}, nil
}

func newFile(config map[string]string) (Adapter, error) {
	path := config["path"]
	if path == "" {
		return nil, fmt.Errorf("file adapter requires 'path' config")
	}
	format, opts, err := parseOptions(config)
	if err != nil {
		return nil, err
	}
	return &FileAdapter{Path: path, Format: format, ParseOptions: opts}, nil
}

func newHTTP(config map[string]string) (Adapter, error) {
	url := config["url"]
	if url == "" {
		return nil, fmt.Errorf("http adapter requires 'url' config")
	}
	format, opts, err := parseOptions(config)
	if err != nil {
		return nil, err
	}

	var headers map[string]string
	if headersJSON := config["headers"]; headersJSON != "" {
		if err := json.Unmarshal([]byte(headersJSON), &headers); err != nil {
			return nil, fmt.Errorf("invalid 'headers' JSON: %w", err)
		}
	}

	var templateVars map[string]string
	if varsJSON := config["templateVars"]; varsJSON != "" {
		if err := json.Unmarshal([]byte(varsJSON), &templateVars); err != nil {
			return nil, fmt.Errorf("invalid 'templateVars' JSON: %w", err)
		}
	}

	a := &HTTPAdapter{
		URL:          url,
		Method:       config["method"],
		Headers:      headers,
		Body:         config["body"],
		Format:       format,
		ParseOptions: opts,
		TemplateVars: templateVars,
	}
	if err := a.ValidateConfig(); err != nil {
		return nil, err
	}
	return a, nil
}
