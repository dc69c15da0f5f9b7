package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/HatiCode/dtsociety/pkg/errs"
)

const keyPrefix = "dtsociety"

// RedisRepository stores datasets in Redis so several server instances can
// share one session space. Every key expires after the configured TTL.
//
// Layout:
//
//	dtsociety:dataset:{session}:{id}:{state}  JSON encoded Dataset
//	dtsociety:datasets:{session}              set of dataset ids
type RedisRepository struct {
	client *redis.Client
	ttl    time.Duration
	mu     sync.RWMutex
}

// NewRedisRepository connects to Redis and verifies the connection. A zero
// ttl defaults to 24 hours.
func NewRedisRepository(addr, password string, db int, ttl time.Duration) (*RedisRepository, error) {
	if addr == "" {
		return nil, errors.New("redis address cannot be empty")
	}
	if db < 0 {
		return nil, errors.New("redis database number must be >= 0")
	}
	if ttl == 0 {
		ttl = 24 * time.Hour
	}

	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		Password:     password,
		DB:           db,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		PoolSize:     10,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}

	return &RedisRepository{client: client, ttl: ttl}, nil
}

func datasetKey(session, id string, state State) string {
	return fmt.Sprintf("%s:dataset:%s:%s:%s", keyPrefix, session, id, state)
}

func indexKey(session string) string {
	return fmt.Sprintf("%s:datasets:%s", keyPrefix, session)
}

func checkKeys(session, id string) error {
	if err := validKey("session", session); err != nil {
		return err
	}
	return validKey("dataset id", id)
}

// Put stores d and adds its id to the session index.
func (r *RedisRepository) Put(ctx context.Context, d Dataset) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if err := checkKeys(d.Session, d.ID); err != nil {
		return err
	}
	if d.CreatedAt.IsZero() {
		d.CreatedAt = time.Now().UTC()
	}

	data, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("failed to marshal dataset: %w", err)
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, datasetKey(d.Session, d.ID, d.State), data, r.ttl)
	pipe.SAdd(ctx, indexKey(d.Session), d.ID)
	pipe.Expire(ctx, indexKey(d.Session), r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store dataset in redis: %w", err)
	}
	return nil
}

// Get returns the processed dataset if present, else the original.
func (r *RedisRepository) Get(ctx context.Context, session, id string) (Dataset, error) {
	if err := checkKeys(session, id); err != nil {
		return Dataset{}, err
	}

	vals, err := r.client.MGet(ctx,
		datasetKey(session, id, StateProcessed),
		datasetKey(session, id, StateOriginal),
	).Result()
	if err != nil {
		return Dataset{}, fmt.Errorf("failed to get dataset from redis: %w", err)
	}

	for _, v := range vals {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var d Dataset
		if err := json.Unmarshal([]byte(s), &d); err != nil {
			return Dataset{}, fmt.Errorf("failed to unmarshal dataset: %w", err)
		}
		return d, nil
	}
	return Dataset{}, notFound(session, id)
}

// List returns the preferred state of every indexed dataset. Ids whose
// payloads have expired are pruned from the index.
func (r *RedisRepository) List(ctx context.Context, session string) ([]Dataset, error) {
	if err := validKey("session", session); err != nil {
		return nil, err
	}

	ids, err := r.client.SMembers(ctx, indexKey(session)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list datasets from redis: %w", err)
	}

	out := make([]Dataset, 0, len(ids))
	for _, id := range ids {
		d, err := r.Get(ctx, session, id)
		if err != nil {
			if errors.Is(err, errs.ErrNotFound) {
				r.client.SRem(ctx, indexKey(session), id)
				continue
			}
			return nil, err
		}
		out = append(out, d)
	}
	sortDatasets(out)
	return out, nil
}

// Delete removes every state of a dataset and its index entry.
func (r *RedisRepository) Delete(ctx context.Context, session, id string) error {
	if err := checkKeys(session, id); err != nil {
		return err
	}

	n, err := r.client.Del(ctx,
		datasetKey(session, id, StateProcessed),
		datasetKey(session, id, StateOriginal),
	).Result()
	if err != nil {
		return fmt.Errorf("failed to delete dataset from redis: %w", err)
	}
	r.client.SRem(ctx, indexKey(session), id)
	if n == 0 {
		return notFound(session, id)
	}
	return nil
}

// Close closes the Redis client. It is safe to call more than once.
func (r *RedisRepository) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.client == nil {
		return nil
	}
	err := r.client.Close()
	r.client = nil
	if errors.Is(err, redis.ErrClosed) {
		return nil
	}
	return err
}

// Ping checks the Redis connection health.
func (r *RedisRepository) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}
