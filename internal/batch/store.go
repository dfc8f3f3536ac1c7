package batch

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Brandon12200/Medical-Terminology-Mapper/internal/common/errors"
)

// JobStore persists job snapshots. The orchestrator is the only writer;
// readers may observe any persisted snapshot.
type JobStore interface {
	// Save persists the current job snapshot, overwriting any previous one.
	Save(ctx context.Context, job *Job) error

	// Get returns the latest snapshot or a JobNotFound error.
	Get(ctx context.Context, id string) (*Job, error)

	// Delete removes a job. Deleting an unknown id is not an error.
	Delete(ctx context.Context, id string) error
}

// ==========================
// In-Memory Store
// ==========================

// MemoryJobStore keeps jobs in process memory. Terminal jobs are removed
// by Sweep once older than the retention window.
type MemoryJobStore struct {
	mu   sync.RWMutex
	jobs map[string]*Job
}

func NewMemoryJobStore() *MemoryJobStore {
	return &MemoryJobStore{jobs: make(map[string]*Job)}
}

func (s *MemoryJobStore) Save(ctx context.Context, job *Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.ID] = job.Clone()
	return nil
}

func (s *MemoryJobStore) Get(ctx context.Context, id string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	job, ok := s.jobs[id]
	if !ok {
		return nil, errors.NewJobNotFoundError(id)
	}
	return job.Clone(), nil
}

func (s *MemoryJobStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.jobs, id)
	return nil
}

// Sweep removes terminal jobs whose completion predates the retention
// window and returns how many were removed.
func (s *MemoryJobStore) Sweep(retention time.Duration) int {
	cutoff := time.Now().UTC().Add(-retention)

	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, job := range s.jobs {
		if job.Status.Terminal() && job.CompletedAt != nil && job.CompletedAt.Before(cutoff) {
			delete(s.jobs, id)
			removed++
		}
	}
	return removed
}

// ==========================
// Redis Store
// ==========================

// RedisJobStore persists jobs as JSON under batch:job:{id}. Retention is
// delegated to Redis: terminal snapshots carry a TTL, live ones do not.
type RedisJobStore struct {
	client    *redis.Client
	retention time.Duration
}

func NewRedisJobStore(client *redis.Client, retention time.Duration) *RedisJobStore {
	if retention <= 0 {
		retention = time.Hour
	}
	return &RedisJobStore{client: client, retention: retention}
}

func jobKey(id string) string {
	return "batch:job:" + id
}

func (s *RedisJobStore) Save(ctx context.Context, job *Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return err
	}

	ttl := time.Duration(0)
	if job.Status.Terminal() {
		ttl = s.retention
	}
	return s.client.Set(ctx, jobKey(job.ID), data, ttl).Err()
}

func (s *RedisJobStore) Get(ctx context.Context, id string) (*Job, error) {
	val, err := s.client.Get(ctx, jobKey(id)).Result()
	if err == redis.Nil {
		return nil, errors.NewJobNotFoundError(id)
	}
	if err != nil {
		return nil, err
	}

	var job Job
	if err := json.Unmarshal([]byte(val), &job); err != nil {
		return nil, err
	}
	return &job, nil
}

func (s *RedisJobStore) Delete(ctx context.Context, id string) error {
	return s.client.Del(ctx, jobKey(id)).Err()
}
