package storage

import (
	"context"
	"sync"
	"time"
)

type memoryKey struct {
	session, id string
	state       State
}

// MemoryRepository keeps datasets in process memory. It is safe for
// concurrent use.
//
// If a TTL is configured, a background goroutine removes datasets created
// longer ago than the TTL. Use RedisRepository or PostgresRepository when
// datasets must outlive the process or be shared between instances.
type MemoryRepository struct {
	mu            sync.RWMutex
	datasets      map[memoryKey]Dataset
	ttl           time.Duration
	cleanupTicker *time.Ticker
	stopCleanup   chan struct{}
	cleanupDone   chan struct{}
	stopped       bool
	stopMu        sync.Mutex
}

// NewMemoryRepository creates a repository that never expires datasets.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{datasets: make(map[memoryKey]Dataset)}
}

// NewMemoryRepositoryWithTTL creates a repository that expires datasets
// after ttl. The cleanup goroutine runs every cleanupInterval (one minute
// when zero) and must be stopped with Stop.
func NewMemoryRepositoryWithTTL(ttl, cleanupInterval time.Duration) *MemoryRepository {
	if ttl <= 0 {
		panic("TTL must be positive")
	}
	if cleanupInterval <= 0 {
		cleanupInterval = time.Minute
	}

	r := &MemoryRepository{
		datasets:      make(map[memoryKey]Dataset),
		ttl:           ttl,
		cleanupTicker: time.NewTicker(cleanupInterval),
		stopCleanup:   make(chan struct{}),
		cleanupDone:   make(chan struct{}),
	}
	go r.runCleanup()
	return r
}

// Stop shuts down the cleanup goroutine. It is safe to call more than once
// and on repositories without a TTL.
func (r *MemoryRepository) Stop() {
	if r.cleanupTicker == nil {
		return
	}

	r.stopMu.Lock()
	defer r.stopMu.Unlock()
	if r.stopped {
		return
	}

	close(r.stopCleanup)
	<-r.cleanupDone
	r.cleanupTicker.Stop()
	r.stopped = true
}

func (r *MemoryRepository) runCleanup() {
	defer close(r.cleanupDone)
	for {
		select {
		case <-r.cleanupTicker.C:
			r.cleanup()
		case <-r.stopCleanup:
			return
		}
	}
}

func (r *MemoryRepository) cleanup() {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for k, d := range r.datasets {
		if now.Sub(d.CreatedAt) > r.ttl {
			delete(r.datasets, k)
		}
	}
}

// Put stores d, replacing the dataset with the same session, id and state.
// A zero CreatedAt is set to the current time.
func (r *MemoryRepository) Put(ctx context.Context, d Dataset) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.datasets[memoryKey{d.Session, d.ID, d.State}] = d
	return nil
}

// Get returns the processed dataset if present, else the original.
func (r *MemoryRepository) Get(ctx context.Context, session, id string) (Dataset, error) {
	if err := ctx.Err(); err != nil {
		return Dataset{}, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, state := range []State{StateProcessed, StateOriginal} {
		if d, ok := r.datasets[memoryKey{session, id, state}]; ok {
			return d, nil
		}
	}
	return Dataset{}, notFound(session, id)
}

// List returns the preferred state of every dataset in session.
func (r *MemoryRepository) List(ctx context.Context, session string) ([]Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	byID := make(map[string]Dataset)
	for k, d := range r.datasets {
		if k.session != session {
			continue
		}
		if prev, ok := byID[k.id]; ok && prev.State == StateProcessed {
			continue
		}
		byID[k.id] = d
	}
	r.mu.RUnlock()

	out := make([]Dataset, 0, len(byID))
	for _, d := range byID {
		out = append(out, d)
	}
	sortDatasets(out)
	return out, nil
}

// Delete removes every state of a dataset. Deleting a missing dataset is an
// errs.ErrNotFound.
func (r *MemoryRepository) Delete(ctx context.Context, session, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	existed := false
	for _, state := range []State{StateProcessed, StateOriginal} {
		k := memoryKey{session, id, state}
		if _, ok := r.datasets[k]; ok {
			existed = true
			delete(r.datasets, k)
		}
	}
	if !existed {
		return notFound(session, id)
	}
	return nil
}

// Len returns the number of stored dataset states.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.datasets)
}
