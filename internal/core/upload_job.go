package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/bundlenudge/bundlenudge/internal/model"
)

// jobTTL bounds how long a job record outlives its terminal state.
const jobTTL = 24 * time.Hour

// JobStore is the short-TTL upload job status store.
type JobStore interface {
	Put(ctx context.Context, job *model.UploadJob) error
	Get(ctx context.Context, id string) (*model.UploadJob, error)
}

// RedisJobStore keeps upload job status in redis, keyed by job id. Jobs are
// ephemeral; nothing about them belongs in the relational schema.
type RedisJobStore struct {
	rdb *redis.Client
}

func NewRedisJobStore(rdb *redis.Client) *RedisJobStore {
	return &RedisJobStore{rdb: rdb}
}

func jobKey(id string) string { return "upload:job:" + id }

func (s *RedisJobStore) Put(ctx context.Context, job *model.UploadJob) error {
	job.UpdatedAt = time.Now()
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal upload job %s: %w", job.ID, err)
	}
	if err := s.rdb.Set(ctx, jobKey(job.ID), data, jobTTL).Err(); err != nil {
		return fmt.Errorf("store upload job %s: %w", job.ID, err)
	}
	return nil
}

func (s *RedisJobStore) Get(ctx context.Context, id string) (*model.UploadJob, error) {
	data, err := s.rdb.Get(ctx, jobKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, NewError(model.CodeNotFound, "upload job %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load upload job %s: %w", id, err)
	}

	var job model.UploadJob
	if err := json.Unmarshal(data, &job); err != nil {
		return nil, fmt.Errorf("unmarshal upload job %s: %w", id, err)
	}
	return &job, nil
}
