package auth

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Blocklist answers whether an identity has been blocked by the directory.
// Block administration itself belongs to the admin surface; this service only
// consults the shared set.
type Blocklist interface {
	IsBlocked(ctx context.Context, userID string) (bool, error)
	Close() error
}

const blockedSetKey = "auth:blocked_users"

// RedisBlocklist reads the shared blocked-identity set from Redis.
type RedisBlocklist struct {
	client *redis.Client
}

// RedisConfig holds Redis connection configuration for the blocklist.
type RedisConfig struct {
	Address  string `mapstructure:"address"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// NewRedisBlocklist creates a Redis-backed blocklist.
func NewRedisBlocklist(cfg RedisConfig) (*RedisBlocklist, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &RedisBlocklist{client: client}, nil
}

func (b *RedisBlocklist) IsBlocked(ctx context.Context, userID string) (bool, error) {
	return b.client.SIsMember(ctx, blockedSetKey, userID).Result()
}

func (b *RedisBlocklist) Close() error {
	return b.client.Close()
}

// MemoryBlocklist is an in-process blocklist for single-instance deployments
// and tests.
type MemoryBlocklist struct {
	mu      sync.RWMutex
	blocked map[string]struct{}
}

// NewMemoryBlocklist creates an empty in-memory blocklist.
func NewMemoryBlocklist() *MemoryBlocklist {
	return &MemoryBlocklist{blocked: make(map[string]struct{})}
}

// Block marks an identity as blocked.
func (b *MemoryBlocklist) Block(userID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blocked[userID] = struct{}{}
}

func (b *MemoryBlocklist) IsBlocked(_ context.Context, userID string) (bool, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.blocked[userID]
	return ok, nil
}

func (b *MemoryBlocklist) Close() error {
	return nil
}
