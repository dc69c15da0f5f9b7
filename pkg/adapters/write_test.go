package adapters

import (
	"bytes"
	"strings"
	"testing"

	"github.com/HatiCode/dtsociety/pkg/table"
)

func exportTable() *table.Table {
	t := table.New("geo", "Time", "value")
	t.Append(table.Row{"geo": "DEU", "Time": "2000", "value": 1.5})
	t.Append(table.Row{"geo": "FRA", "Time": "2000", "value": nil})
	return t
}

func TestWrite_Delimited(t *testing.T) {
	tests := []struct {
		format Format
		want   string
	}{
		{FormatCSV, "geo,Time,value\nDEU,2000,1.5\nFRA,2000,\n"},
		{FormatTSV, "geo\tTime\tvalue\nDEU\t2000\t1.5\nFRA\t2000\t\n"},
	}

	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			var buf bytes.Buffer
			if err := Write(&buf, exportTable(), tt.format); err != nil {
				t.Fatalf("Write() error = %v", err)
			}
			if got := buf.String(); got != tt.want {
				t.Errorf("Write() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestWrite_XLSX(t *testing.T) {
	var buf bytes.Buffer
	if err := Write(&buf, exportTable(), FormatXLSX); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	got, err := ParseXLSX(&buf, exportSheet)
	if err != nil {
		t.Fatalf("ParseXLSX() error = %v", err)
	}
	if strings.Join(got.Columns, ",") != "geo,Time,value" {
		t.Errorf("Columns = %v", got.Columns)
	}
	if got.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", got.Len())
	}
	if v, ok := table.Float(got.Rows[0]["value"]); !ok || v != 1.5 {
		t.Errorf("value = %v, want 1.5", got.Rows[0]["value"])
	}
}

func TestWrite_UnknownFormat(t *testing.T) {
	if err := Write(&bytes.Buffer{}, exportTable(), Format("parquet")); err == nil {
		t.Error("expected error for unknown format")
	}
}
