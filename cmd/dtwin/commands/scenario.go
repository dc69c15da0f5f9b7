package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/HatiCode/dtsociety/pkg/pipeline"
)

// ScenarioOptions configures the scenario command.
type ScenarioOptions struct {
	ForecastOptions
	Dependent    string
	Scenarios    []string
	FourierOrder int
}

// NewScenarioCmd forecasts a dependent feature under regressor scenarios.
func NewScenarioCmd(g *GlobalOptions) *cobra.Command {
	opts := &ScenarioOptions{}

	cmd := &cobra.Command{
		Use:   "scenario",
		Short: "Forecast a dependent feature under regressor scenarios",
		Long: `Regress the dependent dataset's feature on the other selected features
and forecast it for the given regressor values. Regressors without a
scenario are extrapolated from their own history.`,
		Example: `  dtwin scenario \
    -d unemployment.csv:value -d gdp.csv:gdp \
    --dependent unemployment.csv --country FRA \
    --scenario gdp=1.2,1.4,1.1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			scenarios, err := parseScenarios(opts.Scenarios)
			if err != nil {
				return err
			}
			ws, err := newWorkspace(g)
			if err != nil {
				return err
			}
			sels, err := ws.selections(cmd.Context(), opts.Datasets, opts.GeoColumn)
			if err != nil {
				return err
			}
			base, err := opts.request(sels)
			if err != nil {
				return err
			}
			req := pipeline.ScenarioRequest{ForecastRequest: base, Scenarios: scenarios}
			req.FourierOrder = opts.FourierOrder
			if opts.Dependent != "" {
				id, ok := ws.ids[opts.Dependent]
				if !ok {
					return fmt.Errorf("dependent %q is not a selected dataset", opts.Dependent)
				}
				req.Dependent = id
			}

			out, err := ws.svc.Scenario(cmd.Context(), session, req)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Datasets, "dataset", "d", nil, "Dataset and features as path:feature[,feature...] (repeatable, required)")
	cmd.Flags().StringVar(&opts.GeoColumn, "geo", "", "Geo column (detected when empty)")
	cmd.Flags().StringVarP(&opts.Country, "country", "c", "", "Country as ISO2, ISO3 or name")
	cmd.Flags().IntVarP(&opts.Periods, "periods", "p", 1, "Forecast horizon when no scenario is given")
	cmd.Flags().StringVar(&opts.Frequency, "frequency", "", "Expected frequency token, e.g. YS or MS")
	cmd.Flags().StringVar(&opts.IntervalLevel, "interval", "", "Prediction interval level as p80 or 0.8 (default p80)")
	cmd.Flags().IntVar(&opts.FourierOrder, "fourier", 0, "Fourier terms for seasonal regressors (0 for none)")
	cmd.Flags().StringVar(&opts.Dependent, "dependent", "", "Path of the dependent dataset (first dataset when empty)")
	cmd.Flags().StringArrayVarP(&opts.Scenarios, "scenario", "s", nil, "Regressor values as feature=v1,v2,... (repeatable)")

	_ = cmd.MarkFlagRequired("dataset")

	return cmd
}

func parseScenarios(args []string) (map[string][]float64, error) {
	if len(args) == 0 {
		return nil, nil
	}
	out := make(map[string][]float64, len(args))
	for _, arg := range args {
		name, list, ok := strings.Cut(arg, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid scenario %q (want feature=v1,v2,...)", arg)
		}
		var values []float64
		for _, s := range strings.Split(list, ",") {
			v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, fmt.Errorf("scenario %q: %w", name, err)
			}
			values = append(values, v)
		}
		out[name] = values
	}
	return out, nil
}
