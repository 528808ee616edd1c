package data

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/pagescope/scraper-engine/internal/domain/model"
)

// RedisResultRepo implements the ResultRepository interface. Each job gets at
// most one result record, written once and retained for the configured TTL.
type RedisResultRepo struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// NewRedisResultRepo creates a new RedisResultRepo.
func NewRedisResultRepo(client redis.UniversalClient, ttl time.Duration) *RedisResultRepo {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &RedisResultRepo{client: client, ttl: ttl}
}

func resultKey(jobID string) string {
	return "job:" + jobID + ":result"
}

// Put stores the result snapshot for a job. SET NX guarantees write-once: a
// second write for the same job returns model.ErrResultExists.
func (r *RedisResultRepo) Put(ctx context.Context, jobID string, snapshot json.RawMessage) error {
	if jobID == "" {
		return errors.New("job id cannot be empty")
	}
	if len(snapshot) == 0 {
		return errors.New("snapshot cannot be empty")
	}

	cmd := r.client.SetArgs(ctx, resultKey(jobID), []byte(snapshot), redis.SetArgs{Mode: "NX", TTL: r.ttl})
	status, err := cmd.Result()
	if err != nil {
		// NX not met: the key exists and Redis replies nil.
		if errors.Is(err, redis.Nil) {
			return model.ErrResultExists
		}
		return fmt.Errorf("store result: %w", err)
	}
	if status != "OK" {
		return model.ErrResultExists
	}
	return nil
}

// Get returns the stored snapshot, or model.ErrResultNotReady when no result
// has been written yet.
func (r *RedisResultRepo) Get(ctx context.Context, jobID string) (json.RawMessage, error) {
	if jobID == "" {
		return nil, errors.New("job id cannot be empty")
	}

	raw, err := r.client.Get(ctx, resultKey(jobID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, model.ErrResultNotReady
		}
		return nil, fmt.Errorf("get result: %w", err)
	}
	return json.RawMessage(raw), nil
}

// Delete removes a job's result record. Deleting a missing result is a no-op.
func (r *RedisResultRepo) Delete(ctx context.Context, jobID string) error {
	if jobID == "" {
		return errors.New("job id cannot be empty")
	}

	if err := r.client.Del(ctx, resultKey(jobID)).Err(); err != nil {
		return fmt.Errorf("delete result: %w", err)
	}
	return nil
}
