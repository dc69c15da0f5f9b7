package adapters

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/xuri/excelize/v2"

	"github.com/HatiCode/dtsociety/pkg/table"
)

// ParseOptions tunes format specific parsing.
type ParseOptions struct {
	// Sheet selects an XLSX sheet. Empty means the first sheet.
	Sheet string
	// RecordsPath is the gjson path to the record array of a JSON document.
	// Empty means the document itself is the array.
	RecordsPath string
}

// Parse decodes r in the given format. Gzip compressed input is detected
// and decompressed.
func Parse(r io.Reader, format Format, opts ParseOptions) (*table.Table, error) {
	r, err := maybeGunzip(r)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatCSV:
		return ParseDelimited(r, ',')
	case FormatTSV:
		return ParseDelimited(r, '\t')
	case FormatXLSX:
		return ParseXLSX(r, opts.Sheet)
	case FormatJSON:
		data, err := io.ReadAll(r)
		if err != nil {
			return nil, fmt.Errorf("read json: %w", err)
		}
		return ParseJSONRecords(data, opts.RecordsPath)
	default:
		return nil, fmt.Errorf("unsupported format %q", format)
	}
}

func maybeGunzip(r io.Reader) (io.Reader, error) {
	br := bufio.NewReader(r)
	magic, err := br.Peek(2)
	if err != nil || magic[0] != 0x1f || magic[1] != 0x8b {
		return br, nil
	}
	zr, err := gzip.NewReader(br)
	if err != nil {
		return nil, fmt.Errorf("gzip: %w", err)
	}
	return zr, nil
}

// ParseDelimited reads a delimited text table whose first record is the
// header. Blank headers become "Unnamed: <i>"; numeric cells become float64
// and empty cells nil.
func ParseDelimited(r io.Reader, comma rune) (*table.Table, error) {
	cr := csv.NewReader(r)
	cr.Comma = comma
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	header, err := cr.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty input")
		}
		return nil, fmt.Errorf("read header: %w", err)
	}
	header[0] = strings.TrimPrefix(header[0], "\ufeff")

	t := table.New(headerNames(header)...)
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		t.Append(rowOf(t.Columns, rec))
	}
	return t, nil
}

// ParseXLSX reads one sheet of a workbook. The first row is the header.
func ParseXLSX(r io.Reader, sheet string) (*table.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer f.Close()

	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, errors.New("workbook has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("sheet %q is empty", sheet)
	}

	t := table.New(headerNames(rows[0])...)
	for _, rec := range rows[1:] {
		t.Append(rowOf(t.Columns, rec))
	}
	return t, nil
}

// ParseJSONRecords extracts an array of flat objects. Columns follow the
// order of first appearance across records.
func ParseJSONRecords(data []byte, recordsPath string) (*table.Table, error) {
	if !gjson.ValidBytes(data) {
		return nil, errors.New("invalid json")
	}
	records := gjson.ParseBytes(data)
	if recordsPath != "" {
		records = gjson.GetBytes(data, recordsPath)
		if !records.Exists() {
			return nil, fmt.Errorf("records path %q not found", recordsPath)
		}
	}
	if !records.IsArray() {
		return nil, fmt.Errorf("records at %q are not an array", recordsPath)
	}

	t := table.New()
	seen := make(map[string]bool)
	for i, rec := range records.Array() {
		if !rec.IsObject() {
			return nil, fmt.Errorf("record %d is not an object", i)
		}
		row := table.Row{}
		rec.ForEach(func(k, v gjson.Result) bool {
			name := k.String()
			if !seen[name] {
				seen[name] = true
				t.Columns = append(t.Columns, name)
			}
			row[name] = jsonCell(v)
			return true
		})
		t.Append(row)
	}
	return t, nil
}

func jsonCell(v gjson.Result) any {
	switch v.Type {
	case gjson.Null:
		return nil
	case gjson.Number:
		return v.Float()
	case gjson.String:
		return parseCell(v.Str)
	case gjson.True, gjson.False:
		return v.Bool()
	default:
		return v.Raw
	}
}

func headerNames(header []string) []string {
	out := make([]string, len(header))
	used := make(map[string]int, len(header))
	for i, h := range header {
		name := strings.TrimSpace(h)
		if name == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		if n := used[name]; n > 0 {
			used[name] = n + 1
			name = name + "." + strconv.Itoa(n)
		} else {
			used[name] = 1
		}
		out[i] = name
	}
	return out
}

func rowOf(columns []string, rec []string) table.Row {
	row := make(table.Row, len(columns))
	for i, c := range columns {
		if i < len(rec) {
			row[c] = parseCell(rec[i])
		} else {
			row[c] = nil
		}
	}
	return row
}

// parseCell keeps annotated values such as "1.5 p" or ":" as text.
func parseCell(s string) any {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return nil
	}
	if f, err := strconv.ParseFloat(trimmed, 64); err == nil {
		return f
	}
	return s
}

// readAllLimited reads at most limit bytes and fails when r holds more.
func readAllLimited(r io.Reader, limit int64) ([]byte, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if n > limit {
		return nil, fmt.Errorf("payload exceeds %d bytes", limit)
	}
	return buf.Bytes(), nil
}
