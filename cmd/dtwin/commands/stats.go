package commands

import (
	"github.com/spf13/cobra"

	"github.com/HatiCode/dtsociety/pkg/pipeline"
)

// StatsOptions configures the stats command.
type StatsOptions struct {
	Datasets  []string
	GeoColumn string
	Country   string
	Heatmap   bool
}

// NewStatsCmd summarizes aligned features.
func NewStatsCmd(g *GlobalOptions) *cobra.Command {
	opts := &StatsOptions{}

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Describe features or print their correlation heatmap",
		Example: `  dtwin stats -d gdp.csv:value -d unemployment.csv:value --country ITA
  dtwin stats -d gdp.csv:value -d unemployment.csv:value --country ITA --heatmap`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := newWorkspace(g)
			if err != nil {
				return err
			}
			sels, err := ws.selections(cmd.Context(), opts.Datasets, opts.GeoColumn)
			if err != nil {
				return err
			}
			req := pipeline.AnalysisRequest{Selections: sels, Country: opts.Country}
			if opts.Heatmap {
				out, err := ws.svc.Heatmap(cmd.Context(), session, req)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), out)
			}
			out, err := ws.svc.Statistics(cmd.Context(), session, req)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Datasets, "dataset", "d", nil, "Dataset and features as path:feature[,feature...] (repeatable, required)")
	cmd.Flags().StringVar(&opts.GeoColumn, "geo", "", "Geo column (detected when empty)")
	cmd.Flags().StringVarP(&opts.Country, "country", "c", "", "Country as ISO2, ISO3 or name")
	cmd.Flags().BoolVar(&opts.Heatmap, "heatmap", false, "Print the lower-triangular correlation matrix instead")

	_ = cmd.MarkFlagRequired("dataset")

	return cmd
}
