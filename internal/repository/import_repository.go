package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stemsi/examkb/internal/config"
	"github.com/stemsi/examkb/internal/model"
)

// ImportRepository keeps import jobs, their state and progress in Redis.
type ImportRepository struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewImportRepository creates a new ImportRepository. States expire after ttl.
func NewImportRepository(rdb *redis.Client, ttl time.Duration) *ImportRepository {
	return &ImportRepository{rdb: rdb, ttl: ttl}
}

// Enqueue stores the QUEUED state and pushes the job onto the queue atomically.
func (r *ImportRepository) Enqueue(ctx context.Context, job model.ImportJob) error {
	rawJob, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal job: %w", err)
	}
	rawState, err := json.Marshal(model.ImportState{
		ID:        job.ID,
		Status:    model.ImportStatusQueued,
		UpdatedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, config.CacheKey.ImportStateKey(job.ID), rawState, r.ttl)
	pipe.RPush(ctx, config.WorkerKey.ImportJobsQueue, rawJob)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("enqueue import: %w", err)
	}
	return nil
}

// Dequeue blocks up to timeout for the next job. It returns redis.Nil when
// the queue stayed empty.
func (r *ImportRepository) Dequeue(ctx context.Context, timeout time.Duration) (*model.ImportJob, []byte, error) {
	item, err := r.rdb.BLPop(ctx, timeout, config.WorkerKey.ImportJobsQueue).Result()
	if err != nil {
		return nil, nil, err
	}
	if len(item) < 2 {
		return nil, nil, redis.Nil
	}

	raw := []byte(item[1])
	var job model.ImportJob
	if err := json.Unmarshal(raw, &job); err != nil {
		return nil, raw, fmt.Errorf("decode job: %w", err)
	}
	return &job, raw, nil
}

// DeadLetter parks a payload the worker could not process.
func (r *ImportRepository) DeadLetter(ctx context.Context, raw []byte) error {
	return r.rdb.RPush(ctx, config.WorkerKey.ImportDeadLetterQueue, raw).Err()
}

// SaveState overwrites the cached state of an import.
func (r *ImportRepository) SaveState(ctx context.Context, st model.ImportState) error {
	raw, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}
	return r.rdb.Set(ctx, config.CacheKey.ImportStateKey(st.ID), raw, r.ttl).Err()
}

// GetState returns the cached state of an import or ErrNotFound.
func (r *ImportRepository) GetState(ctx context.Context, importID string) (*model.ImportState, error) {
	raw, err := r.rdb.Get(ctx, config.CacheKey.ImportStateKey(importID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get import state: %w", err)
	}

	var st model.ImportState
	if err := json.Unmarshal(raw, &st); err != nil {
		return nil, fmt.Errorf("decode import state: %w", err)
	}
	return &st, nil
}

// PublishProgress sends an event to the import's progress channel.
func (r *ImportRepository) PublishProgress(ctx context.Context, ev model.ProgressEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal progress: %w", err)
	}
	return r.rdb.Publish(ctx, config.CacheKey.ImportProgressChannel(ev.ImportID), raw).Err()
}

// SubscribeProgress subscribes to an import's progress channel. The caller
// closes the returned PubSub.
func (r *ImportRepository) SubscribeProgress(ctx context.Context, importID string) *redis.PubSub {
	return r.rdb.Subscribe(ctx, config.CacheKey.ImportProgressChannel(importID))
}
