package store

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/HatiCode/dtsociety/cmd/server/config"
	"github.com/HatiCode/dtsociety/pkg/storage"
)

func TestNew_Memory(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	tests := []struct {
		name string
		cfg  config.Config
	}{
		{"default", config.Config{Storage: config.StorageMemory}},
		{"with ttl", config.Config{Storage: config.StorageMemory, DatasetTTL: time.Hour}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, err := New(context.Background(), &tt.cfg, logger)
			if err != nil {
				t.Fatalf("New() error = %v", err)
			}
			defer s.Close()

			if _, ok := s.Repository.(*storage.MemoryRepository); !ok {
				t.Errorf("Repository = %T, want *storage.MemoryRepository", s.Repository)
			}
			if err := s.Ping(context.Background()); err != nil {
				t.Errorf("Ping() error = %v", err)
			}
		})
	}
}

func TestNew_Errors(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	if _, err := New(context.Background(), &config.Config{Storage: "mongo"}, logger); err == nil {
		t.Error("expected error for unknown backend")
	}
	if _, err := New(context.Background(), &config.Config{Storage: config.StoragePostgres}, logger); err == nil {
		t.Error("expected error for empty postgres DSN")
	}
}
