package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/HatiCode/dtsociety/pkg/adapters"
	"github.com/HatiCode/dtsociety/pkg/pipeline"
)

// ReshapeOptions configures the reshape command.
type ReshapeOptions struct {
	GeoColumn     string
	ReshapeColumn string
	Feature       string
	Output        string
	Format        string
}

// NewReshapeCmd converts a wide dataset into long format.
func NewReshapeCmd(g *GlobalOptions) *cobra.Command {
	opts := &ReshapeOptions{}

	cmd := &cobra.Command{
		Use:   "reshape FILE",
		Short: "Convert a wide dataset to long format",
		Long: `Melt the period columns of a wide dataset into a Time column and,
when a reshape column is given, pivot its values into feature columns.`,
		Example: `  # Years as columns
  dtwin reshape gdp.csv -o gdp_long.csv

  # Indicator codes in a column
  dtwin reshape estat.tsv --feature B1GQ -o estat_long.xlsx`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runReshape(cmd, g, opts, args[0])
		},
	}

	cmd.Flags().StringVar(&opts.GeoColumn, "geo", "", "Geo column (detected when empty)")
	cmd.Flags().StringVar(&opts.ReshapeColumn, "reshape-column", "", "Column whose values become feature columns")
	cmd.Flags().StringVar(&opts.Feature, "feature", "", "Locate the reshape column by one of its values")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "-", "Output file (- for stdout)")
	cmd.Flags().StringVar(&opts.Format, "format", "", "Output format: csv, tsv, xlsx or json (from the output name when empty)")

	return cmd
}

func runReshape(cmd *cobra.Command, g *GlobalOptions, opts *ReshapeOptions, path string) error {
	format, err := outputFormat(opts.Output, opts.Format)
	if err != nil {
		return err
	}

	ws, err := newWorkspace(g)
	if err != nil {
		return err
	}
	ds, err := ws.load(cmd.Context(), path, opts.GeoColumn)
	if err != nil {
		return err
	}
	ds, err = ws.svc.Reshape(cmd.Context(), session, ds.ID, pipeline.ReshapeRequest{
		GeoColumn:     opts.GeoColumn,
		ReshapeColumn: opts.ReshapeColumn,
		Feature:       opts.Feature,
	})
	if err != nil {
		return err
	}

	if opts.Output == "-" {
		return adapters.Write(cmd.OutOrStdout(), ds.Table, format)
	}
	f, err := os.Create(opts.Output)
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	if err := adapters.Write(f, ds.Table, format); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func outputFormat(output, format string) (adapters.Format, error) {
	if format != "" {
		return adapters.ParseFormat(format)
	}
	if output == "-" {
		return adapters.FormatJSON, nil
	}
	return adapters.DetectFormat(output)
}
