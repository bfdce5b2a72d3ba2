package repository

import (
	"context"
	"testing"
	"time"

	"trackbook/internal/models"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRedisCache(t *testing.T) (*RedisAvailabilityCache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return NewRedisAvailabilityCache(client, time.Minute, time.Hour), mr
}

func TestRedisAvailabilityCache(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestRedisCache(t)

	date := time.Date(2026, 6, 6, 0, 0, 0, 0, time.UTC)
	av := &models.Availability{SlotID: 7, Date: date, Booked: 3, Available: 1}

	// Miss before anything is stored.
	got, err := cache.GetAvailability(ctx, 7, "2026-06-06")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, cache.SetAvailability(ctx, av))
	got, err = cache.GetAvailability(ctx, 7, "2026-06-06")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, 3, got.Booked)
	assert.Equal(t, 1, got.Available)

	// Entries expire with the configured TTL.
	mr.FastForward(2 * time.Minute)
	got, err = cache.GetAvailability(ctx, 7, "2026-06-06")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, cache.SetAvailability(ctx, av))
	require.NoError(t, cache.InvalidateAvailability(ctx, 7, "2026-06-06"))
	got, err = cache.GetAvailability(ctx, 7, "2026-06-06")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestRedisSessionSeen(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestRedisCache(t)

	seen, err := cache.SessionSeen(ctx, "cs_1")
	require.NoError(t, err)
	assert.False(t, seen)

	require.NoError(t, cache.MarkSessionSeen(ctx, "cs_1"))
	seen, err = cache.SessionSeen(ctx, "cs_1")
	require.NoError(t, err)
	assert.True(t, seen)

	mr.FastForward(2 * time.Hour)
	seen, err = cache.SessionSeen(ctx, "cs_1")
	require.NoError(t, err)
	assert.False(t, seen)
}

func TestRedisCacheDownstreamError(t *testing.T) {
	ctx := context.Background()
	cache, mr := newTestRedisCache(t)
	mr.Close()

	_, err := cache.GetAvailability(ctx, 1, "2026-06-06")
	assert.Error(t, err)
	_, err = cache.SessionSeen(ctx, "cs_1")
	assert.Error(t, err)
}
