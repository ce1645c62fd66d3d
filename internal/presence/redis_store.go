package presence

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Redis key patterns:
// presence:user:{user_id}   STRING "1", TTL-bound  - identity has a live connection
//
// Keys carry a TTL so a crashed instance cannot leave identities online
// forever; the hub refreshes keys for its own connections on an interval
// shorter than the TTL.

// RedisConfig holds Redis connection configuration for the presence mirror.
type RedisConfig struct {
	Address  string
	Password string
	DB       int
	TTL      time.Duration
}

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func userKey(userID string) string {
	return fmt.Sprintf("presence:user:%s", userID)
}

// NewRedisStore creates a Redis-backed presence store.
func NewRedisStore(cfg RedisConfig) (Store, error) {
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

	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = time.Minute
	}

	return &redisStore{client: client, ttl: ttl}, nil
}

func (s *redisStore) SetOnline(ctx context.Context, userID string) error {
	return s.client.Set(ctx, userKey(userID), "1", s.ttl).Err()
}

func (s *redisStore) SetOffline(ctx context.Context, userID string) error {
	return s.client.Del(ctx, userKey(userID)).Err()
}

func (s *redisStore) Refresh(ctx context.Context, userID string) error {
	return s.client.Expire(ctx, userKey(userID), s.ttl).Err()
}

func (s *redisStore) IsOnline(ctx context.Context, userID string) (bool, error) {
	_, err := s.client.Get(ctx, userKey(userID)).Result()
	if err == redis.Nil {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *redisStore) Close() error {
	return s.client.Close()
}
