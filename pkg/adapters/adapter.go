// Package adapters loads raw socio-economic tables from external sources and
// returns them as a [table.Table] with the source's column order.
//
// Available adapters:
//   - FileAdapter: CSV, TSV, XLSX or JSON files on local disk
//   - HTTPAdapter: the same formats fetched over HTTP, e.g. Eurostat bulk TSV
//
// Adapters only parse. Header splitting, unit stripping and geo
// canonicalization happen in the normalize package.
package adapters

import (
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/HatiCode/dtsociety/pkg/table"
)

// Adapter is implemented by every dataset source.
//
// Load is synchronous and must respect context cancellation.
type Adapter interface {
	Load(ctx context.Context) (*table.Table, error)

	// Name returns a short identifier such as "file" or "http".
	Name() string
}

// Format is a supported raw dataset encoding.
type Format string

const (
	FormatCSV  Format = "csv"
	FormatTSV  Format = "tsv"
	FormatXLSX Format = "xlsx"
	FormatJSON Format = "json"
)

// ParseFormat validates a format token. It accepts the bare token or a file
// extension with a leading dot.
func ParseFormat(s string) (Format, error) {
	f := Format(strings.TrimPrefix(strings.ToLower(strings.TrimSpace(s)), "."))
	switch f {
	case FormatCSV, FormatTSV, FormatXLSX, FormatJSON:
		return f, nil
	case "xls":
		return FormatXLSX, nil
	default:
		return "", fmt.Errorf("unsupported format %q (must be csv, tsv, xlsx, or json)", s)
	}
}

// DetectFormat infers the format from a file name or URL path. A trailing
// ".gz" is ignored.
func DetectFormat(name string) (Format, error) {
	if i := strings.IndexAny(name, "?#"); i >= 0 {
		name = name[:i]
	}
	name = strings.TrimSuffix(strings.ToLower(name), ".gz")
	ext := path.Ext(name)
	if ext == "" {
		return "", fmt.Errorf("cannot detect format of %q", name)
	}
	return ParseFormat(ext)
}
