package terminology

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// CachedStore is a read-through Redis cache in front of another Store.
// Cache failures are never fatal: a miss or a Redis error falls through to
// the inner store, and population errors are ignored.
type CachedStore struct {
	inner Store
	redis *redis.Client
	ttl   time.Duration
}

// NewCachedStore wraps inner with a Redis read-through cache.
func NewCachedStore(inner Store, rdb *redis.Client, ttl time.Duration) *CachedStore {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedStore{inner: inner, redis: rdb, ttl: ttl}
}

// Lookup implements Store.
func (s *CachedStore) Lookup(ctx context.Context, vocab Vocabulary, normalized string) ([]Concept, error) {
	key := cacheKey("lookup", vocab, normalized)
	if concepts, ok := s.get(ctx, key); ok {
		return concepts, nil
	}

	concepts, err := s.inner.Lookup(ctx, vocab, normalized)
	if err != nil {
		return nil, err
	}
	s.put(ctx, key, concepts)
	return concepts, nil
}

// Synonyms implements Store.
func (s *CachedStore) Synonyms(ctx context.Context, vocab Vocabulary, normalized string) ([]Concept, error) {
	key := cacheKey("syn", vocab, normalized)
	if concepts, ok := s.get(ctx, key); ok {
		return concepts, nil
	}

	concepts, err := s.inner.Synonyms(ctx, vocab, normalized)
	if err != nil {
		return nil, err
	}
	s.put(ctx, key, concepts)
	return concepts, nil
}

// Candidates implements Store. Candidate sets are budget-dependent, so the
// budget is part of the key.
func (s *CachedStore) Candidates(ctx context.Context, vocab Vocabulary, normalized string, budget int) ([]Concept, error) {
	key := fmt.Sprintf("%s:%d", cacheKey("cand", vocab, normalized), budget)
	if concepts, ok := s.get(ctx, key); ok {
		return concepts, nil
	}

	concepts, err := s.inner.Candidates(ctx, vocab, normalized, budget)
	if err != nil {
		return nil, err
	}
	s.put(ctx, key, concepts)
	return concepts, nil
}

func (s *CachedStore) get(ctx context.Context, key string) ([]Concept, bool) {
	val, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		return nil, false
	}
	var concepts []Concept
	if err := json.Unmarshal([]byte(val), &concepts); err != nil {
		return nil, false
	}
	return concepts, true
}

func (s *CachedStore) put(ctx context.Context, key string, concepts []Concept) {
	data, err := json.Marshal(concepts)
	if err != nil {
		return
	}
	s.redis.Set(ctx, key, data, s.ttl)
}

func cacheKey(op string, vocab Vocabulary, normalized string) string {
	return fmt.Sprintf("term:%s:%s:%s", op, vocab, normalized)
}
