package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/segyhp/reconciliation-engine/internal/domain"
	customError "github.com/segyhp/reconciliation-engine/pkg/errors"

	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleCandidates() []domain.Candidate {
	due := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	return []domain.Candidate{
		{
			Obligation:     domain.ObligationRef{Kind: domain.KindOrder, ID: "o-1"},
			SubType:        domain.SubTypeBalance,
			ExpectedAmount: decimal.NewFromInt(1500),
			Difference:     decimal.Zero,
			Confidence:     100,
			Reason:         domain.ReasonExactRemaining,
			DueDate:        &due,
		},
		{
			Obligation:     domain.ObligationRef{Kind: domain.KindOrder, ID: "o-2"},
			SubType:        domain.SubTypeBalance,
			ExpectedAmount: decimal.NewFromInt(1500),
			Difference:     decimal.Zero,
			Confidence:     100,
			Reason:         domain.ReasonExactRemaining,
		},
	}
}

func TestMemoryCandidateCache(t *testing.T) {
	ctx := context.Background()
	c := NewMemoryCandidateCache(time.Minute).(*memoryCandidateCache)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return now }

	_, ok, err := c.Get(ctx, "pay-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, c.Put(ctx, "pay-1", sampleCandidates()))
	got, ok, err := c.Get(ctx, "pay-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, got, 2)

	now = now.Add(2 * time.Minute)
	_, ok, _ = c.Get(ctx, "pay-1")
	assert.False(t, ok, "entry should expire")

	require.NoError(t, c.Put(ctx, "pay-1", sampleCandidates()))
	require.NoError(t, c.Delete(ctx, "pay-1"))
	_, ok, _ = c.Get(ctx, "pay-1")
	assert.False(t, ok)
}

// Runs only against a real Redis, e.g. TEST_REDIS_ADDR=localhost:6379.
func TestRedisCandidateCache(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR not set")
	}
	ctx := context.Background()
	client := redis.NewClient(&redis.Options{Addr: addr})
	defer client.Close()
	require.NoError(t, client.Ping(ctx).Err())

	c := NewRedisCandidateCache(client, time.Minute)
	paymentID := "test-" + time.Now().Format("150405.000000")

	require.NoError(t, c.Put(ctx, paymentID, sampleCandidates()))
	got, ok, err := c.Get(ctx, paymentID)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, got, 2)
	assert.Equal(t, "o-1", got[0].Obligation.ID)
	assert.True(t, got[0].ExpectedAmount.Equal(decimal.NewFromInt(1500)))

	ttl, err := client.TTL(ctx, cacheKey(paymentID)).Result()
	require.NoError(t, err)
	assert.Greater(t, ttl, time.Duration(0))

	require.NoError(t, c.Delete(ctx, paymentID))
	_, ok, err = c.Get(ctx, paymentID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisCandidateCacheUnavailable(t *testing.T) {
	client := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 200 * time.Millisecond,
		MaxRetries:  -1,
	})
	defer client.Close()
	c := NewRedisCandidateCache(client, time.Minute)
	ctx := context.Background()

	err := c.Put(ctx, "pay-1", sampleCandidates())
	require.Error(t, err)
	assert.Equal(t, customError.ErrCodeCacheError, customError.Code(err))

	_, ok, err := c.Get(ctx, "pay-1")
	assert.False(t, ok)
	assert.Equal(t, customError.ErrCodeCacheError, customError.Code(err))

	assert.Equal(t, customError.ErrCodeCacheError, customError.Code(c.Delete(ctx, "pay-1")))
}
