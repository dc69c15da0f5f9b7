//go:build integration

package storage

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/redis"

	"github.com/HatiCode/dtsociety/pkg/errs"
)

func setupRedisContainer(t *testing.T) string {
	t.Helper()
	ctx := context.Background()

	container, err := redis.Run(ctx, "redis:7-alpine")
	if err != nil {
		t.Fatalf("failed to start redis container: %v", err)
	}
	t.Cleanup(func() {
		if err := testcontainers.TerminateContainer(container); err != nil {
			t.Logf("failed to terminate container: %v", err)
		}
	})

	endpoint, err := container.ConnectionString(ctx)
	if err != nil {
		t.Fatalf("failed to get redis endpoint: %v", err)
	}
	return strings.TrimPrefix(endpoint, "redis://")
}

func newTestRedisRepository(t *testing.T) *RedisRepository {
	t.Helper()
	repo, err := NewRedisRepository(setupRedisContainer(t), "", 0, time.Minute)
	if err != nil {
		t.Fatalf("NewRedisRepository() error = %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func TestNewRedisRepository_InvalidArgs(t *testing.T) {
	tests := []struct {
		name string
		addr string
		db   int
		want string
	}{
		{"empty addr", "", 0, "redis address cannot be empty"},
		{"negative db", "localhost:6379", -1, "redis database number must be >= 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRedisRepository(tt.addr, "", tt.db, time.Minute)
			if err == nil || err.Error() != tt.want {
				t.Errorf("NewRedisRepository() error = %v, want %q", err, tt.want)
			}
		})
	}
}

func TestRedisRepository_RoundTrip(t *testing.T) {
	ctx := context.Background()
	repo := newTestRedisRepository(t)

	if err := repo.Put(ctx, testDataset("a", StateOriginal)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, err := repo.Get(ctx, "s1", "a")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.State != StateOriginal || got.GeoColumn != "geo" || got.Table.Len() != 1 {
		t.Errorf("Get() = %+v", got)
	}

	exists, err := repo.client.Exists(ctx, "dtsociety:dataset:s1:a:original").Result()
	if err != nil || exists != 1 {
		t.Errorf("payload key missing: exists=%d err=%v", exists, err)
	}
	ttl, _ := repo.client.TTL(ctx, "dtsociety:datasets:s1").Result()
	if ttl <= 0 || ttl > time.Minute {
		t.Errorf("index TTL = %v, want (0, 1m]", ttl)
	}

	if err := repo.Put(ctx, testDataset("a", StateProcessed)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, _ = repo.Get(ctx, "s1", "a")
	if got.State != StateProcessed {
		t.Errorf("Get().State = %q, want processed", got.State)
	}
}

func TestRedisRepository_ListPrunesExpired(t *testing.T) {
	ctx := context.Background()
	repo := newTestRedisRepository(t)

	_ = repo.Put(ctx, testDataset("a", StateOriginal))
	_ = repo.Put(ctx, testDataset("b", StateOriginal))
	repo.client.Del(ctx, "dtsociety:dataset:s1:b:original")

	got, err := repo.List(ctx, "s1")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	if len(got) != 1 || got[0].ID != "a" {
		t.Errorf("List() = %+v, want only a", got)
	}
	members, _ := repo.client.SMembers(ctx, "dtsociety:datasets:s1").Result()
	if len(members) != 1 {
		t.Errorf("index = %v, want pruned", members)
	}
}

func TestRedisRepository_Delete(t *testing.T) {
	ctx := context.Background()
	repo := newTestRedisRepository(t)

	_ = repo.Put(ctx, testDataset("a", StateOriginal))
	_ = repo.Put(ctx, testDataset("a", StateProcessed))

	if err := repo.Delete(ctx, "s1", "a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.Get(ctx, "s1", "a"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Get() after Delete() error = %v", err)
	}
	if err := repo.Delete(ctx, "s1", "a"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("second Delete() error = %v", err)
	}
}

func TestRedisRepository_RejectsUnsafeKeys(t *testing.T) {
	repo := newTestRedisRepository(t)
	d := testDataset("a:b", StateOriginal)
	if err := repo.Put(context.Background(), d); !errors.Is(err, errs.ErrValidation) {
		t.Errorf("Put() error = %v, want validation error", err)
	}
}

func TestRedisRepository_CloseIsIdempotent(t *testing.T) {
	repo := newTestRedisRepository(t)
	if err := repo.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := repo.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}
