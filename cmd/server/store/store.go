// Package store selects the dataset repository backend for the server.
package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/HatiCode/dtsociety/cmd/server/config"
	"github.com/HatiCode/dtsociety/pkg/storage"
)

// Store is a repository with lifecycle hooks.
type Store struct {
	storage.Repository
	close func() error
	ping  func(ctx context.Context) error
}

// Close releases the backend.
func (s *Store) Close() error {
	if s.close == nil {
		return nil
	}
	return s.close()
}

// Ping checks that the backend is reachable. The memory backend always is.
func (s *Store) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}

// New creates the repository selected by cfg.Storage.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Store, error) {
	switch cfg.Storage {
	case config.StorageRedis:
		repo, err := storage.NewRedisRepository(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, cfg.RedisTTL)
		if err != nil {
			return nil, fmt.Errorf("redis storage: %w", err)
		}
		logger.Info("using redis storage", "addr", cfg.RedisAddr, "db", cfg.RedisDB, "ttl", cfg.RedisTTL)
		return &Store{Repository: repo, close: repo.Close, ping: repo.Ping}, nil

	case config.StoragePostgres:
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		repo, err := storage.NewPostgresRepository(connectCtx, cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("postgres storage: %w", err)
		}
		logger.Info("using postgres storage")
		return &Store{Repository: repo, close: repo.Close, ping: repo.Ping}, nil

	case config.StorageMemory, "":
		if cfg.DatasetTTL > 0 {
			repo := storage.NewMemoryRepositoryWithTTL(cfg.DatasetTTL, 0)
			logger.Info("using in-memory storage", "ttl", cfg.DatasetTTL)
			return &Store{Repository: repo, close: func() error { repo.Stop(); return nil }}, nil
		}
		logger.Info("using in-memory storage")
		return &Store{Repository: storage.NewMemoryRepository()}, nil

	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage)
	}
}
