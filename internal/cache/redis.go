package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"example.com/backstage/services/yard/config"
	"example.com/backstage/services/yard/internal/model"
)

// CacheClient defines the interface for cache operations
type CacheClient interface {
	GetJourney(ctx context.Context, id string) (*model.TruckJourney, error)
	// SetJourney stores the journey unless the cache already holds the same
	// or a newer version of it
	SetJourney(ctx context.Context, journey *model.TruckJourney) error
	DeleteJourney(ctx context.Context, id string) error
}

// RedisClient implements CacheClient using Redis
type RedisClient struct {
	client  *redis.Client
	enabled bool
	ttl     time.Duration
}

// Journeys are stored as a hash of {version, data}. The script keeps a
// slower writer from replacing a newer version.
var setIfNewer = redis.NewScript(`
local current = tonumber(redis.call('HGET', KEYS[1], 'version'))
if current and current >= tonumber(ARGV[1]) then
	return 0
end
redis.call('HSET', KEYS[1], 'version', ARGV[1], 'data', ARGV[2])
redis.call('PEXPIRE', KEYS[1], ARGV[3])
return 1
`)

// NewRedisClient creates a new Redis client. A disabled client reports every
// lookup as a miss.
func NewRedisClient(cfg *config.RedisConfig) (CacheClient, error) {
	if !cfg.Enabled {
		return &RedisClient{enabled: false}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}

	return &RedisClient{
		client:  client,
		enabled: true,
		ttl:     ttl,
	}, nil
}

func journeyKey(id string) string {
	return fmt.Sprintf("yard:journey:%s", id)
}

// IsMiss reports whether err means the key is not cached
func IsMiss(err error) bool {
	return err == redis.Nil
}

// GetJourney retrieves a journey from cache
func (c *RedisClient) GetJourney(ctx context.Context, id string) (*model.TruckJourney, error) {
	if !c.enabled {
		return nil, redis.Nil
	}

	data, err := c.client.HGet(ctx, journeyKey(id), "data").Bytes()
	if err != nil {
		return nil, err
	}

	var journey model.TruckJourney
	if err := json.Unmarshal(data, &journey); err != nil {
		return nil, err
	}

	return &journey, nil
}

// SetJourney caches a journey if it is newer than the cached copy
func (c *RedisClient) SetJourney(ctx context.Context, journey *model.TruckJourney) error {
	if !c.enabled {
		return nil
	}

	data, err := json.Marshal(journey)
	if err != nil {
		return err
	}

	return setIfNewer.Run(ctx, c.client,
		[]string{journeyKey(journey.UUID)},
		journey.Version, data, c.ttl.Milliseconds(),
	).Err()
}

// DeleteJourney removes a journey from cache
func (c *RedisClient) DeleteJourney(ctx context.Context, id string) error {
	if !c.enabled {
		return nil
	}

	return c.client.Del(ctx, journeyKey(id)).Err()
}
