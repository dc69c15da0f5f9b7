// Package pipeline answers dataset and forecast requests over a dataset
// repository.
//
// A forecast request runs one sequential pipeline:
//
//	load → normalize/reshape (cached) → align → fit → assemble
//
// Map requests run the same engine once per country on a bounded worker
// pool. Every stage is timed through an Observer so the package stays
// independent of the metrics backend.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"path"
	"time"

	"github.com/google/uuid"

	"github.com/HatiCode/dtsociety/pkg/adapters"
	"github.com/HatiCode/dtsociety/pkg/errs"
	"github.com/HatiCode/dtsociety/pkg/geo"
	"github.com/HatiCode/dtsociety/pkg/infer"
	"github.com/HatiCode/dtsociety/pkg/normalize"
	"github.com/HatiCode/dtsociety/pkg/reshape"
	"github.com/HatiCode/dtsociety/pkg/storage"
	"github.com/HatiCode/dtsociety/pkg/table"
)

// DefaultWorkers bounds the per-country fan-out of map requests.
const DefaultWorkers = 4

// Stage names reported to the Observer.
const (
	StageImport   = "import"
	StageLoad     = "load"
	StageAlign    = "align"
	StageFit      = "fit"
	StageAssemble = "assemble"
)

// Observer receives pipeline measurements.
type Observer interface {
	ObserveStage(stage string, d time.Duration)
	ObserveFit(model string, d time.Duration)
	RecordError(component, reason string)
	SetCachedTables(n int)
}

type nopObserver struct{}

func (nopObserver) ObserveStage(string, time.Duration) {}
func (nopObserver) ObserveFit(string, time.Duration)   {}
func (nopObserver) RecordError(string, string)         {}
func (nopObserver) SetCachedTables(int)                {}

// Config wires a Service. Repository is required.
type Config struct {
	Repository storage.Repository
	// Cache holds prepared tables. Nil disables caching.
	Cache *storage.TableCache
	// Resolver defaults to geo.NewStaticResolver().
	Resolver geo.Resolver
	// Workers defaults to DefaultWorkers.
	Workers int
	// HTTPClient is used for dataset imports.
	HTTPClient *http.Client
	Observer   Observer
	Logger     *slog.Logger
}

// Service runs requests against stored datasets. It is safe for concurrent use.
type Service struct {
	repo     storage.Repository
	cache    *storage.TableCache
	resolver geo.Resolver
	workers  int
	client   *http.Client
	observer Observer
	logger   *slog.Logger
	now      func() time.Time
}

// New creates a Service.
func New(cfg Config) (*Service, error) {
	if cfg.Repository == nil {
		return nil, errors.New("pipeline: repository is required")
	}
	if cfg.Workers < 0 {
		return nil, fmt.Errorf("pipeline: workers must be >= 0, got %d", cfg.Workers)
	}

	s := &Service{
		repo:     cfg.Repository,
		cache:    cfg.Cache,
		resolver: cfg.Resolver,
		workers:  cfg.Workers,
		client:   cfg.HTTPClient,
		observer: cfg.Observer,
		logger:   cfg.Logger,
		now:      time.Now,
	}
	if s.resolver == nil {
		s.resolver = geo.NewStaticResolver()
	}
	if s.workers == 0 {
		s.workers = DefaultWorkers
	}
	if s.observer == nil {
		s.observer = nopObserver{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s, nil
}

// DatasetOptions is the column selection offered for one stored dataset.
type DatasetOptions struct {
	ID    string        `json:"id"`
	Name  string        `json:"name"`
	State storage.State `json:"state"`
	infer.Options
}

// Options runs the inferencer over every dataset of a session.
func (s *Service) Options(ctx context.Context, session string) ([]DatasetOptions, error) {
	datasets, err := s.repo.List(ctx, session)
	if err != nil {
		s.fail("storage", err)
		return nil, fmt.Errorf("list datasets: %w", err)
	}

	out := make([]DatasetOptions, 0, len(datasets))
	for _, ds := range datasets {
		opts := infer.Infer(ds.Table, s.resolver)
		if ds.GeoColumn != "" {
			opts.GeoColumn = ds.GeoColumn
		}
		out = append(out, DatasetOptions{ID: ds.ID, Name: ds.Name, State: ds.State, Options: opts})
	}
	return out, nil
}

// Add normalizes raw and stores it as a new original dataset. When geoColumn
// is empty the inferencer picks one, and a dataset without a recognizable
// geo column is stored geo-less.
func (s *Service) Add(ctx context.Context, session, name string, raw *table.Table, geoColumn string) (storage.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return storage.Dataset{}, err
	}
	start := time.Now()

	t, err := normalize.Normalize(raw, normalize.Options{GeoColumn: geoColumn, Resolver: s.resolver, Logger: s.logger})
	if err != nil {
		s.fail("normalize", err)
		return storage.Dataset{}, err
	}
	if geoColumn == "" {
		if detected := infer.Infer(t, s.resolver).GeoColumn; detected != "" {
			t, err = normalize.Normalize(t, normalize.Options{GeoColumn: detected, Resolver: s.resolver, Logger: s.logger})
			if err != nil {
				s.fail("normalize", err)
				return storage.Dataset{}, err
			}
			geoColumn = detected
		}
	}
	if name == "" {
		name = "dataset"
	}

	ds := storage.Dataset{
		ID:        uuid.NewString(),
		Name:      name,
		Session:   session,
		State:     storage.StateOriginal,
		GeoColumn: geoColumn,
		Table:     t,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.Put(ctx, ds); err != nil {
		s.fail("storage", err)
		return storage.Dataset{}, fmt.Errorf("store dataset: %w", err)
	}

	elapsed := time.Since(start)
	s.observer.ObserveStage(StageImport, elapsed)
	s.logger.Info("dataset stored",
		"session", session,
		"dataset", ds.ID,
		"name", name,
		"rows", t.Len(),
		"columns", len(t.Columns),
		"geo", geoColumn,
		"duration_ms", elapsed.Milliseconds(),
	)
	return ds, nil
}

// ImportRequest names a remote dataset.
type ImportRequest struct {
	URL         string `json:"url"`
	Name        string `json:"name,omitempty"`
	GeoColumn   string `json:"geoColumn,omitempty"`
	Format      string `json:"format,omitempty"`
	RecordsPath string `json:"recordsPath,omitempty"`
	Sheet       string `json:"sheet,omitempty"`
}

// Import downloads a dataset and stores it like Add.
func (s *Service) Import(ctx context.Context, session string, req ImportRequest) (storage.Dataset, error) {
	if req.URL == "" {
		return storage.Dataset{}, errs.Validation("url is required")
	}
	adapter, err := adapters.New("http", map[string]string{
		"url":         req.URL,
		"format":      req.Format,
		"recordsPath": req.RecordsPath,
		"sheet":       req.Sheet,
	})
	if err != nil {
		return storage.Dataset{}, errs.Validation("import: %v", err)
	}
	if h, ok := adapter.(*adapters.HTTPAdapter); ok && s.client != nil {
		h.HTTPClient = s.client
	}

	raw, err := adapter.Load(ctx)
	if err != nil {
		s.fail("adapter", err)
		return storage.Dataset{}, fmt.Errorf("import %s: %w", req.URL, err)
	}

	name := req.Name
	if name == "" {
		if u, err := url.Parse(req.URL); err == nil && u.Path != "" && u.Path != "/" {
			name = path.Base(u.Path)
		}
	}
	return s.Add(ctx, session, name, raw, req.GeoColumn)
}

// ReshapeRequest selects how an original dataset is reshaped.
type ReshapeRequest struct {
	// GeoColumn overrides the geo column detected on import.
	GeoColumn string `json:"geoColumn,omitempty"`
	// ReshapeColumn becomes the new column axis.
	ReshapeColumn string `json:"reshapeColumn,omitempty"`
	// Feature locates the reshape column when ReshapeColumn is empty: the
	// first column holding this value is used.
	Feature string `json:"featureSelected,omitempty"`
}

// Reshape converts a stored wide dataset to long format and stores the
// result as its processed state.
func (s *Service) Reshape(ctx context.Context, session, id string, req ReshapeRequest) (storage.Dataset, error) {
	ds, err := s.repo.Get(ctx, session, id)
	if err != nil {
		return storage.Dataset{}, err
	}
	if ds.State == storage.StateProcessed {
		return storage.Dataset{}, errs.Validation("dataset %q is already reshaped", id)
	}

	geoColumn := req.GeoColumn
	if geoColumn == "" {
		geoColumn = ds.GeoColumn
	}
	t := ds.Table
	if geoColumn != ds.GeoColumn {
		t, err = normalize.Normalize(t, normalize.Options{GeoColumn: geoColumn, Resolver: s.resolver, Logger: s.logger})
		if err != nil {
			return storage.Dataset{}, err
		}
	}

	column := req.ReshapeColumn
	if column == "" && req.Feature != "" {
		column, _ = reshape.DetectFeatureColumn(t, geoColumn, req.Feature)
	}
	long, err := reshape.WideToLong(t, geoColumn, column)
	if err != nil {
		return storage.Dataset{}, err
	}

	ds.State = storage.StateProcessed
	ds.GeoColumn = geoColumn
	ds.Table = long
	if err := s.repo.Put(ctx, ds); err != nil {
		s.fail("storage", err)
		return storage.Dataset{}, fmt.Errorf("store reshaped dataset: %w", err)
	}
	s.cache.Invalidate(session, id)
	s.observer.SetCachedTables(s.cache.Len())

	s.logger.Info("dataset reshaped",
		"session", session,
		"dataset", id,
		"reshape_column", column,
		"rows", long.Len(),
	)
	return ds, nil
}

// Delete removes a dataset and its cached views.
func (s *Service) Delete(ctx context.Context, session, id string) error {
	if err := s.repo.Delete(ctx, session, id); err != nil {
		return err
	}
	s.cache.Invalidate(session, id)
	s.observer.SetCachedTables(s.cache.Len())
	return nil
}

func (s *Service) fail(component string, err error) {
	s.observer.RecordError(component, string(errs.KindOf(err)))
}
