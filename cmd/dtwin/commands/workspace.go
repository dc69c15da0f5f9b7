package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/HatiCode/dtsociety/pkg/adapters"
	"github.com/HatiCode/dtsociety/pkg/pipeline"
	"github.com/HatiCode/dtsociety/pkg/storage"
)

const session = "cli"

// GlobalOptions are shared by every command.
type GlobalOptions struct {
	LogLevel  string
	LogFormat string
	Sheet     string
	Workers   int
}

func (o *GlobalOptions) logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(o.LogLevel)); err != nil {
		level = slog.LevelWarn
	}
	opts := &slog.HandlerOptions{Level: level}
	if o.LogFormat == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}

// workspace loads local files into an in-memory pipeline.
type workspace struct {
	svc   *pipeline.Service
	sheet string
	ids   map[string]string
}

func newWorkspace(g *GlobalOptions) (*workspace, error) {
	svc, err := pipeline.New(pipeline.Config{
		Repository: storage.NewMemoryRepository(),
		Cache:      storage.NewTableCache(0),
		Workers:    g.Workers,
		Logger:     g.logger(),
	})
	if err != nil {
		return nil, err
	}
	return &workspace{svc: svc, sheet: g.Sheet, ids: make(map[string]string)}, nil
}

// load stores path once and returns its dataset.
func (ws *workspace) load(ctx context.Context, path, geoColumn string) (storage.Dataset, error) {
	a, err := adapters.New("file", map[string]string{"path": path, "sheet": ws.sheet})
	if err != nil {
		return storage.Dataset{}, err
	}
	raw, err := a.Load(ctx)
	if err != nil {
		return storage.Dataset{}, fmt.Errorf("load %s: %w", path, err)
	}
	ds, err := ws.svc.Add(ctx, session, filepath.Base(path), raw, geoColumn)
	if err != nil {
		return storage.Dataset{}, fmt.Errorf("%s: %w", path, err)
	}
	ws.ids[path] = ds.ID
	return ds, nil
}

func (ws *workspace) id(ctx context.Context, path, geoColumn string) (string, error) {
	if id, ok := ws.ids[path]; ok {
		return id, nil
	}
	ds, err := ws.load(ctx, path, geoColumn)
	if err != nil {
		return "", err
	}
	return ds.ID, nil
}

// selections turns "path:feature,feature" arguments into pipeline selections.
func (ws *workspace) selections(ctx context.Context, args []string, geoColumn string) ([]pipeline.Selection, error) {
	if len(args) == 0 {
		return nil, fmt.Errorf("at least one --dataset is required")
	}
	out := make([]pipeline.Selection, 0, len(args))
	for _, arg := range args {
		path, features, err := parseDatasetArg(arg)
		if err != nil {
			return nil, err
		}
		id, err := ws.id(ctx, path, geoColumn)
		if err != nil {
			return nil, err
		}
		out = append(out, pipeline.Selection{DatasetID: id, GeoColumn: geoColumn, FeatureColumns: features})
	}
	return out, nil
}

func parseDatasetArg(arg string) (string, []string, error) {
	i := strings.LastIndex(arg, ":")
	if i <= 0 || i == len(arg)-1 {
		return "", nil, fmt.Errorf("invalid dataset %q (want path:feature[,feature...])", arg)
	}
	var features []string
	for _, f := range strings.Split(arg[i+1:], ",") {
		if f = strings.TrimSpace(f); f != "" {
			features = append(features, f)
		}
	}
	if len(features) == 0 {
		return "", nil, fmt.Errorf("invalid dataset %q: no features", arg)
	}
	return arg[:i], features, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
