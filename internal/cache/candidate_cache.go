// Package cache keeps the ranked candidate list of payments waiting for an
// operator so the review screen does not recompute it on every view.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/segyhp/reconciliation-engine/internal/domain"
	customError "github.com/segyhp/reconciliation-engine/pkg/errors"

	"github.com/redis/go-redis/v9"
)

// CandidateCache stores candidate lists keyed by payment id. A miss is not
// an error: callers regenerate.
type CandidateCache interface {
	Put(ctx context.Context, paymentID string, candidates []domain.Candidate) error
	Get(ctx context.Context, paymentID string) ([]domain.Candidate, bool, error)
	Delete(ctx context.Context, paymentID string) error
}

const keyPrefix = "recon:candidates:"

func cacheKey(paymentID string) string {
	return keyPrefix + paymentID
}

type redisCandidateCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCandidateCache(client *redis.Client, ttl time.Duration) CandidateCache {
	return &redisCandidateCache{client: client, ttl: ttl}
}

func (c *redisCandidateCache) Put(ctx context.Context, paymentID string, candidates []domain.Candidate) error {
	payload, err := json.Marshal(candidates)
	if err != nil {
		return fmt.Errorf("encode candidates: %w", err)
	}
	if err := c.client.Set(ctx, cacheKey(paymentID), payload, c.ttl).Err(); err != nil {
		return customError.WrapCacheError(err)
	}
	return nil
}

func (c *redisCandidateCache) Get(ctx context.Context, paymentID string) ([]domain.Candidate, bool, error) {
	payload, err := c.client.Get(ctx, cacheKey(paymentID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, customError.WrapCacheError(err)
	}

	var candidates []domain.Candidate
	if err := json.Unmarshal(payload, &candidates); err != nil {
		return nil, false, fmt.Errorf("decode candidates: %w", err)
	}
	return candidates, true, nil
}

func (c *redisCandidateCache) Delete(ctx context.Context, paymentID string) error {
	if err := c.client.Del(ctx, cacheKey(paymentID)).Err(); err != nil {
		return customError.WrapCacheError(err)
	}
	return nil
}

type memoryEntry struct {
	candidates []domain.Candidate
	expiresAt  time.Time
}

// memoryCandidateCache is the in-process fallback used when no Redis
// address is configured.
type memoryCandidateCache struct {
	mu      sync.Mutex
	ttl     time.Duration
	now     func() time.Time
	entries map[string]memoryEntry
}

func NewMemoryCandidateCache(ttl time.Duration) CandidateCache {
	return &memoryCandidateCache{
		ttl:     ttl,
		now:     time.Now,
		entries: make(map[string]memoryEntry),
	}
}

func (c *memoryCandidateCache) Put(_ context.Context, paymentID string, candidates []domain.Candidate) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := make([]domain.Candidate, len(candidates))
	copy(cp, candidates)
	c.entries[paymentID] = memoryEntry{candidates: cp, expiresAt: c.now().Add(c.ttl)}
	return nil
}

func (c *memoryCandidateCache) Get(_ context.Context, paymentID string) ([]domain.Candidate, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[paymentID]
	if !ok {
		return nil, false, nil
	}
	if c.ttl > 0 && c.now().After(e.expiresAt) {
		delete(c.entries, paymentID)
		return nil, false, nil
	}
	cp := make([]domain.Candidate, len(e.candidates))
	copy(cp, e.candidates)
	return cp, true, nil
}

func (c *memoryCandidateCache) Delete(_ context.Context, paymentID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, paymentID)
	return nil
}
