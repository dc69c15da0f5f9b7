package commands

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/HatiCode/dtsociety/pkg/models"
	"github.com/HatiCode/dtsociety/pkg/pipeline"
)

// ForecastOptions configures the forecast command.
type ForecastOptions struct {
	Datasets      []string
	GeoColumn     string
	Model         string
	Country       string
	Periods       int
	Frequency     string
	MaxLags       int
	Alpha         float64
	SeasonLength  int
	IntervalLevel string
	AllCountries  bool
}

func (o *ForecastOptions) request(sels []pipeline.Selection) (pipeline.ForecastRequest, error) {
	req := pipeline.ForecastRequest{
		Selections:   sels,
		Country:      o.Country,
		Periods:      o.Periods,
		Frequency:    o.Frequency,
		MaxLags:      o.MaxLags,
		Alpha:        o.Alpha,
		SeasonLength: o.SeasonLength,
	}
	if o.IntervalLevel != "" {
		level, err := models.ParseIntervalLevel(o.IntervalLevel)
		if err != nil {
			return pipeline.ForecastRequest{}, err
		}
		req.IntervalLevel = models.IntervalLevel(level)
	}
	return req, nil
}

// NewForecastCmd forecasts selected features of local datasets.
func NewForecastCmd(g *GlobalOptions) *cobra.Command {
	opts := &ForecastOptions{}

	cmd := &cobra.Command{
		Use:   "forecast",
		Short: "Forecast features with VAR or Holt-Winters",
		Long: `Align the selected features on their common timestamps, fit the model
and print history followed by the forecast. With --all-countries every
country shared by the datasets is forecast independently.`,
		Example: `  # One country, two datasets
  dtwin forecast -d gdp.csv:value -d unemployment.csv:value --country DEU --periods 5

  # Every country with exponential smoothing
  dtwin forecast -d gdp.csv:value --model hwes --all-countries --periods 3`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ws, err := newWorkspace(g)
			if err != nil {
				return err
			}
			sels, err := ws.selections(cmd.Context(), opts.Datasets, opts.GeoColumn)
			if err != nil {
				return err
			}
			req, err := opts.request(sels)
			if err != nil {
				return err
			}
			model := strings.ToLower(opts.Model)
			if opts.AllCountries {
				out, err := ws.svc.Map(cmd.Context(), session, model, req)
				if err != nil {
					return err
				}
				return writeJSON(cmd.OutOrStdout(), out)
			}
			out, err := ws.svc.Multivariate(cmd.Context(), session, model, req)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), out)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.Datasets, "dataset", "d", nil, "Dataset and features as path:feature[,feature...] (repeatable, required)")
	cmd.Flags().StringVar(&opts.GeoColumn, "geo", "", "Geo column (detected when empty)")
	cmd.Flags().StringVarP(&opts.Model, "model", "m", "var", "Model: var or hwes")
	cmd.Flags().StringVarP(&opts.Country, "country", "c", "", "Country as ISO2, ISO3 or name")
	cmd.Flags().IntVarP(&opts.Periods, "periods", "p", 1, "Number of periods to forecast")
	cmd.Flags().StringVar(&opts.Frequency, "frequency", "", "Expected frequency token, e.g. YS or MS")
	cmd.Flags().IntVar(&opts.MaxLags, "max-lags", 0, "Maximum VAR lag order (0 for the default)")
	cmd.Flags().Float64Var(&opts.Alpha, "alpha", 0, "Stationarity test significance (0 for the default)")
	cmd.Flags().IntVar(&opts.SeasonLength, "season-length", 0, "Holt-Winters season length (0 for none)")
	cmd.Flags().StringVar(&opts.IntervalLevel, "interval", "", "Prediction interval level as p80 or 0.8 (default p80)")
	cmd.Flags().BoolVar(&opts.AllCountries, "all-countries", false, "Forecast every shared country")

	_ = cmd.MarkFlagRequired("dataset")

	return cmd
}
