package commands

import (
	"github.com/spf13/cobra"
)

// InspectOptions configures the inspect command.
type InspectOptions struct {
	GeoColumn string
}

// NewInspectCmd reports the selectable features and geo column of files.
func NewInspectCmd(g *GlobalOptions) *cobra.Command {
	opts := &InspectOptions{}

	cmd := &cobra.Command{
		Use:   "inspect FILE...",
		Short: "List the features and geo column of datasets",
		Long: `Load one or more datasets, normalize their geography and report the
columns a forecast can select.`,
		Example: `  dtwin inspect gdp.csv unemployment.tsv
  dtwin inspect --geo "geo\TIME_PERIOD" estat_nama_10_gdp.tsv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := newWorkspace(g)
			if err != nil {
				return err
			}
			for _, path := range args {
				if _, err := ws.load(cmd.Context(), path, opts.GeoColumn); err != nil {
					return err
				}
			}
			all, err := ws.svc.Options(cmd.Context(), session)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), all)
		},
	}

	cmd.Flags().StringVar(&opts.GeoColumn, "geo", "", "Geo column (detected when empty)")

	return cmd
}
