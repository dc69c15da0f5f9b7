// Package commands implements the dtwin command line.
package commands

import (
	"github.com/spf13/cobra"
)

// NewRootCmd builds the dtwin command tree.
func NewRootCmd(version string) *cobra.Command {
	g := &GlobalOptions{}

	rootCmd := &cobra.Command{
		Use:   "dtwin",
		Short: "Forecast socio-economic indicators from local datasets",
		Long: `dtwin loads CSV, TSV, XLSX or JSON datasets, normalizes country names to
ISO3 codes and runs the same forecasts as the dtsociety server without
a server or storage backend.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&g.LogLevel, "log-level", "warn", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&g.LogFormat, "log-format", "text", "Log format: text or json")
	rootCmd.PersistentFlags().StringVar(&g.Sheet, "sheet", "", "Worksheet to read from XLSX files (first when empty)")
	rootCmd.PersistentFlags().IntVar(&g.Workers, "workers", 4, "Concurrent per-country fits")

	rootCmd.AddCommand(
		NewInspectCmd(g),
		NewReshapeCmd(g),
		NewForecastCmd(g),
		NewScenarioCmd(g),
		NewStatsCmd(g),
	)

	return rootCmd
}
