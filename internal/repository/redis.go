package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"trackbook/internal/config"
	"trackbook/internal/models"

	"github.com/redis/go-redis/v9"
)

// AvailabilityCache is the read-side cache of remaining seats plus the
// webhook session dedup set. It is advisory only: the reservation and
// reconciliation transactions never trust it.
type AvailabilityCache interface {
	GetAvailability(ctx context.Context, slotID int64, date string) (*models.Availability, error)
	SetAvailability(ctx context.Context, av *models.Availability) error
	InvalidateAvailability(ctx context.Context, slotID int64, date string) error
	MarkSessionSeen(ctx context.Context, sessionID string) error
	SessionSeen(ctx context.Context, sessionID string) (bool, error)
}

type RedisAvailabilityCache struct {
	client     *redis.Client
	ttl        time.Duration
	sessionTTL time.Duration
}

// NewRedisClient creates a Redis client from configuration.
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})
}

func NewRedisAvailabilityCache(client *redis.Client, ttl, sessionTTL time.Duration) *RedisAvailabilityCache {
	return &RedisAvailabilityCache{client: client, ttl: ttl, sessionTTL: sessionTTL}
}

func availabilityKey(slotID int64, date string) string {
	return fmt.Sprintf("availability:%d:%s", slotID, date)
}

func sessionKey(sessionID string) string {
	return "session_seen:" + sessionID
}

func (r *RedisAvailabilityCache) GetAvailability(ctx context.Context, slotID int64, date string) (*models.Availability, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}
	val, err := r.client.Get(ctx, availabilityKey(slotID, date)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get availability from redis: %w", err)
	}

	var av models.Availability
	if err := json.Unmarshal([]byte(val), &av); err != nil {
		return nil, fmt.Errorf("failed to unmarshal availability: %w", err)
	}
	return &av, nil
}

func (r *RedisAvailabilityCache) SetAvailability(ctx context.Context, av *models.Availability) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	data, err := json.Marshal(av)
	if err != nil {
		return fmt.Errorf("failed to marshal availability: %w", err)
	}
	key := availabilityKey(av.SlotID, av.Date.Format("2006-01-02"))
	if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set availability in redis: %w", err)
	}
	return nil
}

func (r *RedisAvailabilityCache) InvalidateAvailability(ctx context.Context, slotID int64, date string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Del(ctx, availabilityKey(slotID, date)).Err(); err != nil {
		return fmt.Errorf("failed to delete availability from redis: %w", err)
	}
	return nil
}

func (r *RedisAvailabilityCache) MarkSessionSeen(ctx context.Context, sessionID string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if err := r.client.Set(ctx, sessionKey(sessionID), "1", r.sessionTTL).Err(); err != nil {
		return fmt.Errorf("failed to mark session in redis: %w", err)
	}
	return nil
}

func (r *RedisAvailabilityCache) SessionSeen(ctx context.Context, sessionID string) (bool, error) {
	if r.client == nil {
		return false, fmt.Errorf("redis client is nil")
	}
	n, err := r.client.Exists(ctx, sessionKey(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check session in redis: %w", err)
	}
	return n > 0, nil
}

// Ping verifies the Redis connection.
func Ping(ctx context.Context, client *redis.Client) error {
	if _, err := client.Ping(ctx).Result(); err != nil {
		return fmt.Errorf("failed to ping Redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func Close(client *redis.Client) error {
	if client != nil {
		return client.Close()
	}
	return nil
}
