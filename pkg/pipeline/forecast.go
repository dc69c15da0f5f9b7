package pipeline

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/HatiCode/dtsociety/pkg/align"
	"github.com/HatiCode/dtsociety/pkg/errs"
	"github.com/HatiCode/dtsociety/pkg/frequency"
	"github.com/HatiCode/dtsociety/pkg/geo"
	"github.com/HatiCode/dtsociety/pkg/models"
	"github.com/HatiCode/dtsociety/pkg/normalize"
	"github.com/HatiCode/dtsociety/pkg/reshape"
	"github.com/HatiCode/dtsociety/pkg/response"
	"github.com/HatiCode/dtsociety/pkg/storage"
	"github.com/HatiCode/dtsociety/pkg/summary"
	"github.com/HatiCode/dtsociety/pkg/table"
)

// Selection picks the columns of one stored dataset.
type Selection struct {
	DatasetID string `json:"datasetId"`
	// GeoColumn overrides the geo column stored with the dataset.
	GeoColumn string `json:"geoColumn,omitempty"`
	// TimeColumn defaults to reshape.TimeColumn.
	TimeColumn     string   `json:"timeColumn,omitempty"`
	FeatureColumns []string `json:"featureColumns"`
	// ReshapeColumn pivots a wide dataset on this column. When empty and a
	// selected feature only exists as a cell value, its column is used.
	ReshapeColumn string `json:"reshapeColumn,omitempty"`
}

// Validate checks the selection without touching the dataset.
func (s Selection) Validate() error {
	if s.DatasetID == "" {
		return errs.Validation("dataset id is required")
	}
	if len(s.FeatureColumns) == 0 {
		return errs.Validation("dataset %q: at least one feature column is required", s.DatasetID)
	}
	for _, f := range s.FeatureColumns {
		if strings.TrimSpace(f) == "" {
			return errs.Validation("dataset %q: empty feature column name", s.DatasetID)
		}
	}
	if s.GeoColumn != "" && s.GeoColumn == s.ReshapeColumn {
		return errs.Validation("dataset %q: geo column and reshape column must differ", s.DatasetID)
	}
	return nil
}

func (s Selection) timeColumn() string {
	if s.TimeColumn == "" {
		return reshape.TimeColumn
	}
	return s.TimeColumn
}

func (s Selection) cacheKey(session string) storage.CacheKey {
	k := storage.CacheKey{Session: session, DatasetID: s.DatasetID, GeoColumn: s.GeoColumn, Reshape: s.ReshapeColumn}
	if k.Reshape == "" {
		k.Reshape = "auto:" + strings.Join(s.FeatureColumns, ",")
	}
	return k
}

// ForecastRequest is the common input of the forecast operations. Zero model
// parameters select the engine defaults.
type ForecastRequest struct {
	Selections []Selection `json:"datasets"`
	// Country slices datasets that have a geo column. Ignored by Map.
	Country string `json:"country,omitempty"`
	Periods int    `json:"periods"`
	// Frequency, when set, must match the inferred frequency.
	Frequency     string               `json:"frequency,omitempty"`
	MaxLags       int                  `json:"maxLags,omitempty"`
	Alpha         float64              `json:"alpha,omitempty"`
	SeasonLength  int                  `json:"seasonLength,omitempty"`
	IntervalLevel models.IntervalLevel `json:"intervalLevel,omitempty"`
	FourierOrder  int                  `json:"fourierOrder,omitempty"`
}

func (r ForecastRequest) validate() error {
	if len(r.Selections) == 0 {
		return errs.Validation("no datasets selected")
	}
	for _, sel := range r.Selections {
		if err := sel.Validate(); err != nil {
			return err
		}
	}
	if r.Periods <= 0 {
		return errs.Validation("periods must be > 0, got %d", r.Periods)
	}
	return nil
}

func (r ForecastRequest) frequency() (frequency.Frequency, error) {
	if r.Frequency == "" {
		return frequency.Frequency{}, nil
	}
	return frequency.Parse(r.Frequency)
}

func (s *Service) params(r ForecastRequest) models.Params {
	return models.Params{
		MaxLags:       r.MaxLags,
		Alpha:         r.Alpha,
		SeasonLength:  r.SeasonLength,
		IntervalLevel: float64(r.IntervalLevel),
		FourierOrder:  r.FourierOrder,
		Logger:        s.logger,
	}
}

// Multivariate forecasts the selected features of one country (or of
// geo-less datasets) with the named engine.
func (s *Service) Multivariate(ctx context.Context, session, model string, req ForecastRequest) (response.Group, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	freq, err := req.frequency()
	if err != nil {
		return nil, err
	}
	engine, err := models.New(model, s.params(req))
	if err != nil {
		return nil, err
	}

	series, err := s.series(ctx, session, req.Selections, req.Country)
	if err != nil {
		return nil, err
	}
	res, err := s.fit(ctx, engine, models.Input{Series: series, Periods: req.Periods, Frequency: freq})
	if err != nil {
		return nil, err
	}

	start := time.Now()
	out := response.Multivariate(res)
	s.observer.ObserveStage(StageAssemble, time.Since(start))
	return out, nil
}

// ScenarioRequest selects the dependent dataset and the future values of
// the regressors.
type ScenarioRequest struct {
	ForecastRequest
	// Dependent is the dataset id whose first feature is forecast. Empty
	// selects the first dataset.
	Dependent string `json:"dependent,omitempty"`
	// Scenarios maps a dataset id with a single selected feature, or a merged
	// feature name, to future values. Empty generates scenarios from the
	// regressors' own history over Periods.
	Scenarios map[string][]float64 `json:"scenarios,omitempty"`
}

// Scenario runs the scenario-conditioned regression.
func (s *Service) Scenario(ctx context.Context, session string, req ScenarioRequest) (map[string]any, error) {
	if len(req.Scenarios) > 0 && req.Periods == 0 {
		// The horizon comes from the scenarios.
		req.Periods = 1
	}
	if err := req.validate(); err != nil {
		return nil, err
	}
	freq, err := req.frequency()
	if err != nil {
		return nil, err
	}

	dependent := 0
	if req.Dependent != "" {
		dependent = slices.IndexFunc(req.Selections, func(sel Selection) bool { return sel.DatasetID == req.Dependent })
		if dependent < 0 {
			return nil, errs.Validation("dependent dataset %q is not selected", req.Dependent)
		}
	}
	scenarios, err := scenarioNames(req.Selections, req.Scenarios)
	if err != nil {
		return nil, err
	}

	series, err := s.series(ctx, session, req.Selections, req.Country)
	if err != nil {
		return nil, err
	}

	engine := models.NewScenario(float64(req.IntervalLevel), req.FourierOrder, s.logger)
	start := time.Now()
	res, err := engine.ForecastScenario(ctx, models.ScenarioInput{
		Input:     models.Input{Series: series, Periods: req.Periods, Frequency: freq},
		Dependent: dependent,
		Scenarios: scenarios,
	})
	elapsed := time.Since(start)
	s.observer.ObserveFit(engine.Name(), elapsed)
	s.observer.ObserveStage(StageFit, elapsed)
	if err != nil {
		s.fail("model", err)
		return nil, err
	}

	start = time.Now()
	out := response.Scenario(res)
	s.observer.ObserveStage(StageAssemble, time.Since(start))
	return out, nil
}

// scenarioNames rewrites scenario keys given as dataset ids into the merged
// feature names used by the engine.
func scenarioNames(sels []Selection, scenarios map[string][]float64) (map[string][]float64, error) {
	if len(scenarios) == 0 {
		return nil, nil
	}
	inputs := make([]align.Series, len(sels))
	for i, sel := range sels {
		inputs[i] = align.Series{Name: sel.DatasetID, Features: sel.FeatureColumns}
	}
	names := align.UniqueFeatures(inputs)

	out := make(map[string][]float64, len(scenarios))
	for key, values := range scenarios {
		i := slices.IndexFunc(sels, func(sel Selection) bool { return sel.DatasetID == key })
		if i < 0 {
			out[key] = values
			continue
		}
		if len(sels[i].FeatureColumns) != 1 {
			return nil, errs.Validation("dataset %q selects %d features: key its scenarios by feature name", key, len(sels[i].FeatureColumns))
		}
		offset := 0
		for _, sel := range sels[:i] {
			offset += len(sel.FeatureColumns)
		}
		out[names[offset]] = values
	}
	return out, nil
}

// Map forecasts every country present in all selected datasets. Countries are
// fitted independently on at most Workers goroutines; the first failure
// cancels the rest.
func (s *Service) Map(ctx context.Context, session, model string, req ForecastRequest) (map[string]any, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}
	freq, err := req.frequency()
	if err != nil {
		return nil, err
	}
	params := s.params(req)
	if _, err := models.New(model, params); err != nil {
		return nil, err
	}

	start := time.Now()
	tables := make([]prepared, len(req.Selections))
	for i, sel := range req.Selections {
		p, err := s.prepare(ctx, session, sel)
		if err != nil {
			return nil, err
		}
		if p.geoColumn == "" {
			return nil, errs.Validation("dataset %q has no geo column", sel.DatasetID)
		}
		tables[i] = p
	}
	countries := commonCountries(tables)
	s.observer.ObserveStage(StageLoad, time.Since(start))
	if len(countries) == 0 {
		return nil, errs.Validation("selected datasets share no countries")
	}

	results := make([]response.CountryResult, len(countries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.workers)
	for i, country := range countries {
		g.Go(func() error {
			series := make([]align.Series, len(req.Selections))
			for j, sel := range req.Selections {
				series[j] = sel.series(tables[j].forCountry(country))
			}
			engine, err := models.New(model, params)
			if err != nil {
				return err
			}
			res, err := s.fit(gctx, engine, models.Input{Series: series, Periods: req.Periods, Frequency: freq})
			if err != nil {
				return fmt.Errorf("country %s: %w", country, err)
			}
			results[i] = response.CountryResult{Country: country, Result: res}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	s.logger.Info("map forecast completed",
		"session", session,
		"model", model,
		"countries", len(countries),
		"workers", s.workers,
		"duration_ms", time.Since(start).Milliseconds(),
	)

	start = time.Now()
	out := response.Map(results)
	s.observer.ObserveStage(StageAssemble, time.Since(start))
	return out, nil
}

// AnalysisRequest selects the features summarized by Heatmap and Statistics.
type AnalysisRequest struct {
	Selections []Selection `json:"datasets"`
	Country    string      `json:"country,omitempty"`
}

// Heatmap returns the lower-triangular correlation of the merged features.
func (s *Service) Heatmap(ctx context.Context, session string, req AnalysisRequest) (response.Heatmap, error) {
	a, err := s.aligned(ctx, session, req)
	if err != nil {
		return response.Heatmap{}, err
	}
	m, err := summary.Correlation(a)
	if err != nil {
		return response.Heatmap{}, err
	}
	return response.LowerTriangle(a.Features, m), nil
}

// Statistics describes every merged feature.
func (s *Service) Statistics(ctx context.Context, session string, req AnalysisRequest) ([]summary.Description, error) {
	a, err := s.aligned(ctx, session, req)
	if err != nil {
		return nil, err
	}
	return summary.Describe(a)
}

func (s *Service) aligned(ctx context.Context, session string, req AnalysisRequest) (*align.Aligned, error) {
	if len(req.Selections) == 0 {
		return nil, errs.Validation("no datasets selected")
	}
	for _, sel := range req.Selections {
		if err := sel.Validate(); err != nil {
			return nil, err
		}
	}
	series, err := s.series(ctx, session, req.Selections, req.Country)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	a, err := align.Merge(series)
	s.observer.ObserveStage(StageAlign, time.Since(start))
	if err != nil {
		return nil, err
	}
	if a.Len() == 0 {
		return nil, errs.Validation("datasets share no timestamps")
	}
	return a, nil
}

func (s *Service) fit(ctx context.Context, engine models.Engine, in models.Input) (*models.Result, error) {
	start := time.Now()
	res, err := engine.Forecast(ctx, in)
	elapsed := time.Since(start)
	s.observer.ObserveFit(engine.Name(), elapsed)
	s.observer.ObserveStage(StageFit, elapsed)
	if err != nil {
		s.fail("model", err)
		return nil, err
	}
	s.logger.Debug("forecast fitted",
		"model", engine.Name(),
		"features", len(res.Features),
		"history", res.History,
		"periods", len(res.Times)-res.History,
		"duration_ms", elapsed.Milliseconds(),
	)
	return res, nil
}

// series loads every selection and slices it to country.
func (s *Service) series(ctx context.Context, session string, sels []Selection, country string) ([]align.Series, error) {
	start := time.Now()
	defer func() { s.observer.ObserveStage(StageLoad, time.Since(start)) }()

	code := ""
	if country != "" {
		code = s.canonicalCountry(country)
	}

	out := make([]align.Series, 0, len(sels))
	for _, sel := range sels {
		p, err := s.prepare(ctx, session, sel)
		if err != nil {
			return nil, err
		}
		t := p.table
		if p.geoColumn != "" {
			if code == "" {
				return nil, errs.Validation("dataset %q has geo column %q: a country is required", sel.DatasetID, p.geoColumn)
			}
			t = p.forCountry(code)
			if t.Len() == 0 {
				return nil, errs.Validation("dataset %q has no rows for country %q", sel.DatasetID, country)
			}
		}
		for _, f := range sel.FeatureColumns {
			if !t.HasColumn(f) {
				return nil, errs.Validation("dataset %q: feature column %q not found", sel.DatasetID, f)
			}
		}
		out = append(out, sel.series(t))
	}
	return out, nil
}

func (s Selection) series(t *table.Table) align.Series {
	return align.Series{Name: s.DatasetID, Table: t, TimeColumn: s.timeColumn(), Features: s.FeatureColumns}
}

// prepared is a dataset in long format with the geo column it is keyed by.
type prepared struct {
	table     *table.Table
	geoColumn string
}

func (p prepared) forCountry(code string) *table.Table {
	return p.table.Filter(func(r table.Row) bool { return table.String(r[p.geoColumn]) == code })
}

func (p prepared) countries() []string {
	var out []string
	for _, v := range p.table.Distinct(p.geoColumn) {
		out = append(out, table.String(v))
	}
	return out
}

// prepare returns the long-format view of a selection, reshaping wide
// datasets on the fly. Views are cached per selection.
func (s *Service) prepare(ctx context.Context, session string, sel Selection) (prepared, error) {
	key := sel.cacheKey(session)
	ds, err := s.repo.Get(ctx, session, sel.DatasetID)
	if err != nil {
		return prepared{}, err
	}
	geoColumn := sel.GeoColumn
	if geoColumn == "" {
		geoColumn = ds.GeoColumn
	}
	if t, ok := s.cache.Get(key); ok {
		return prepared{table: t, geoColumn: geoColumn}, nil
	}

	t := ds.Table
	if geoColumn != ds.GeoColumn {
		t, err = normalize.Normalize(t, normalize.Options{GeoColumn: geoColumn, Resolver: s.resolver, Logger: s.logger})
		if err != nil {
			return prepared{}, err
		}
	}

	timeColumn := sel.timeColumn()
	if !t.HasColumn(timeColumn) {
		column := sel.ReshapeColumn
		if column == "" {
			for _, f := range sel.FeatureColumns {
				if c, ok := reshape.DetectFeatureColumn(t, geoColumn, f); ok {
					column = c
					break
				}
			}
		}
		t, err = reshape.WideToLong(t, geoColumn, column)
		if err != nil {
			return prepared{}, err
		}
		if !t.HasColumn(timeColumn) {
			return prepared{}, errs.Validation("dataset %q: time column %q not found", sel.DatasetID, timeColumn)
		}
		s.logger.Debug("reshaped dataset view",
			"dataset", sel.DatasetID,
			"reshape_column", column,
			"rows", t.Len(),
		)
	}

	s.cache.Set(key, t)
	s.observer.SetCachedTables(s.cache.Len())
	return prepared{table: t, geoColumn: geoColumn}, nil
}

// canonicalCountry maps a caller supplied country to the code stored in
// normalized geo columns. Unresolvable identifiers are returned unchanged so
// regional codes still match.
func (s *Service) canonicalCountry(country string) string {
	id := strings.TrimSpace(country)
	for _, kind := range []geo.Kind{geo.Alpha3, geo.Alpha2, geo.Name} {
		if code, ok := s.resolver.Resolve(id, kind); ok {
			return code
		}
	}
	return id
}

// commonCountries returns the sorted geo codes present in every table.
func commonCountries(tables []prepared) []string {
	var common []string
	for i, p := range tables {
		codes := p.countries()
		if i == 0 {
			common = codes
			continue
		}
		common = slices.DeleteFunc(common, func(c string) bool { return !slices.Contains(codes, c) })
	}
	slices.Sort(common)
	return slices.Compact(common)
}
