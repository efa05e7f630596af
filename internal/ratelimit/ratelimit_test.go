package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memCounter struct {
	counts  map[string]int64
	expires map[string]time.Duration
	err     error
}

func newMemCounter() *memCounter {
	return &memCounter{counts: map[string]int64{}, expires: map[string]time.Duration{}}
}

func (m *memCounter) Incr(_ context.Context, key string) *redis.IntCmd {
	if m.err != nil {
		return redis.NewIntResult(0, m.err)
	}
	m.counts[key]++
	return redis.NewIntResult(m.counts[key], nil)
}

func (m *memCounter) Expire(_ context.Context, key string, ttl time.Duration) *redis.BoolCmd {
	m.expires[key] = ttl
	return redis.NewBoolResult(true, nil)
}

func TestDaily_Allow(t *testing.T) {
	counter := newMemCounter()
	now := time.Date(2024, 3, 9, 23, 0, 0, 0, time.UTC)
	quota := &Daily{Counter: counter, Scope: "uploads", Limit: 2, Now: func() time.Time { return now }}
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		ok, err := quota.Allow(ctx, 7)
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, err := quota.Allow(ctx, 7)
	require.NoError(t, err)
	assert.False(t, ok)

	assert.Equal(t, 24*time.Hour, counter.expires["uploads:7:20240309"])

	ok, err = quota.Allow(ctx, 8)
	require.NoError(t, err)
	assert.True(t, ok, "quota is per user")
}

func TestDaily_Unlimited(t *testing.T) {
	var nilQuota *Daily
	ok, err := nilQuota.Allow(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = (&Daily{Limit: 1}).Allow(context.Background(), 1)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestDaily_RedisError(t *testing.T) {
	counter := newMemCounter()
	counter.err = errors.New("connection refused")
	_, err := (&Daily{Counter: counter, Scope: "letters", Limit: 1}).Allow(context.Background(), 1)
	assert.Error(t, err)
}
