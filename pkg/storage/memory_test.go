package storage

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/HatiCode/dtsociety/pkg/errs"
	"github.com/HatiCode/dtsociety/pkg/table"
)

func testTable() *table.Table {
	t := table.New("geo", "2000", "2001")
	t.Append(table.Row{"geo": "DEU", "2000": 1.0, "2001": 2.0})
	return t
}

func testDataset(id string, state State) Dataset {
	return Dataset{ID: id, Name: id + ".tsv", Session: "s1", State: state, GeoColumn: "geo", Table: testTable()}
}

func TestMemoryRepository_PutValidation(t *testing.T) {
	tests := []struct {
		name    string
		d       Dataset
		wantErr bool
	}{
		{"valid", testDataset("a", StateOriginal), false},
		{"empty id", Dataset{Session: "s1", State: StateOriginal, Table: testTable()}, true},
		{"empty session", Dataset{ID: "a", State: StateOriginal, Table: testTable()}, true},
		{"bad state", Dataset{ID: "a", Session: "s1", State: "draft", Table: testTable()}, true},
		{"nil table", Dataset{ID: "a", Session: "s1", State: StateOriginal}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewMemoryRepository().Put(context.Background(), tt.d)
			if (err != nil) != tt.wantErr {
				t.Errorf("Put() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, errs.ErrValidation) {
				t.Errorf("Put() error = %v, want validation error", err)
			}
		})
	}
}

func TestMemoryRepository_GetPrefersProcessed(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	if err := repo.Put(ctx, testDataset("a", StateOriginal)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, err := repo.Get(ctx, "s1", "a")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.State != StateOriginal {
		t.Errorf("Get().State = %q, want %q", got.State, StateOriginal)
	}
	if got.CreatedAt.IsZero() {
		t.Error("Put() should stamp CreatedAt")
	}

	if err := repo.Put(ctx, testDataset("a", StateProcessed)); err != nil {
		t.Fatalf("Put() error = %v", err)
	}
	got, _ = repo.Get(ctx, "s1", "a")
	if got.State != StateProcessed {
		t.Errorf("Get().State = %q, want %q", got.State, StateProcessed)
	}
	if repo.Len() != 2 {
		t.Errorf("Len() = %d, want 2", repo.Len())
	}
}

func TestMemoryRepository_NotFound(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	_ = repo.Put(ctx, testDataset("a", StateOriginal))

	if _, err := repo.Get(ctx, "s2", "a"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Get() from another session error = %v, want not found", err)
	}
	if err := repo.Delete(ctx, "s1", "missing"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Delete() error = %v, want not found", err)
	}
}

func TestMemoryRepository_ListAndDelete(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	for i, id := range []string{"b", "a", "c"} {
		d := testDataset(id, StateOriginal)
		d.CreatedAt = base.Add(time.Duration(i) * time.Minute)
		_ = repo.Put(ctx, d)
	}
	p := testDataset("a", StateProcessed)
	p.CreatedAt = base.Add(time.Minute)
	_ = repo.Put(ctx, p)

	other := testDataset("z", StateOriginal)
	other.Session = "s2"
	_ = repo.Put(ctx, other)

	got, err := repo.List(ctx, "s1")
	if err != nil {
		t.Fatalf("List() error = %v", err)
	}
	var ids []string
	for _, d := range got {
		ids = append(ids, fmt.Sprintf("%s/%s", d.ID, d.State))
	}
	want := []string{"b/original", "a/processed", "c/original"}
	if fmt.Sprint(ids) != fmt.Sprint(want) {
		t.Errorf("List() = %v, want %v", ids, want)
	}

	if err := repo.Delete(ctx, "s1", "a"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.Get(ctx, "s1", "a"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("Get() after Delete() error = %v", err)
	}
	if repo.Len() != 3 {
		t.Errorf("Len() = %d, want 3", repo.Len())
	}
}

func TestMemoryRepository_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	repo := NewMemoryRepository()

	if err := repo.Put(ctx, testDataset("a", StateOriginal)); !errors.Is(err, context.Canceled) {
		t.Errorf("Put() error = %v, want context.Canceled", err)
	}
	if _, err := repo.Get(ctx, "s1", "a"); !errors.Is(err, context.Canceled) {
		t.Errorf("Get() error = %v, want context.Canceled", err)
	}
	if _, err := repo.List(ctx, "s1"); !errors.Is(err, context.Canceled) {
		t.Errorf("List() error = %v, want context.Canceled", err)
	}
}

func TestMemoryRepository_Concurrency(t *testing.T) {
	ctx := context.Background()
	repo := NewMemoryRepository()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("d%d", i%5)
			_ = repo.Put(ctx, testDataset(id, StateOriginal))
			_, _ = repo.Get(ctx, "s1", id)
			_, _ = repo.List(ctx, "s1")
		}(i)
	}
	wg.Wait()

	if repo.Len() != 5 {
		t.Errorf("Len() = %d, want 5", repo.Len())
	}
}

func TestMemoryRepository_TTL(t *testing.T) {
	repo := NewMemoryRepositoryWithTTL(time.Second, 10*time.Millisecond)
	defer repo.Stop()

	d := testDataset("old", StateOriginal)
	d.CreatedAt = time.Now().Add(-time.Hour)
	_ = repo.Put(context.Background(), d)
	_ = repo.Put(context.Background(), testDataset("fresh", StateOriginal))

	time.Sleep(50 * time.Millisecond)

	if _, err := repo.Get(context.Background(), "s1", "old"); !errors.Is(err, errs.ErrNotFound) {
		t.Errorf("expired dataset still present, err = %v", err)
	}
	if _, err := repo.Get(context.Background(), "s1", "fresh"); err != nil {
		t.Errorf("fresh dataset missing: %v", err)
	}
}

func TestMemoryRepository_StopIsIdempotent(t *testing.T) {
	repo := NewMemoryRepositoryWithTTL(time.Minute, time.Minute)
	repo.Stop()
	repo.Stop()
	NewMemoryRepository().Stop()
}

func TestNewMemoryRepositoryWithTTL_PanicsOnZeroTTL(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic for zero TTL")
		}
	}()
	NewMemoryRepositoryWithTTL(0, time.Minute)
}
