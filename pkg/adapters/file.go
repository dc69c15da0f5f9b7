package adapters

import (
	"context"
	"fmt"
	"os"

	"github.com/HatiCode/dtsociety/pkg/table"
)

// FileAdapter reads a dataset from local disk.
type FileAdapter struct {
	// Path is the file to read (required).
	Path string
	// Format overrides detection from the file extension.
	Format Format
	ParseOptions
}

func (f *FileAdapter) Name() string { return "file" }

// Load implements Adapter.
func (f *FileAdapter) Load(ctx context.Context) (*table.Table, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	format := f.Format
	if format == "" {
		detected, err := DetectFormat(f.Path)
		if err != nil {
			return nil, fmt.Errorf("file adapter: %w", err)
		}
		format = detected
	}

	fh, err := os.Open(f.Path)
	if err != nil {
		return nil, fmt.Errorf("file adapter: %w", err)
	}
	defer fh.Close()

	t, err := Parse(fh, format, f.ParseOptions)
	if err != nil {
		return nil, fmt.Errorf("file adapter: parse %s: %w", f.Path, err)
	}
	return t, nil
}
