// Package redis provides a store.KV backed by Redis, relying on native key expiry.
package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/joeshaw/envdecode"
	apperrors "github.com/jrsteele09/portal-session-server/internal/errors"
	"github.com/jrsteele09/portal-session-server/store"
	"github.com/redis/go-redis/v9"
)

var _ store.KV = (*KV)(nil)

// Config for the Redis backend. Defaults can be loaded via envdecode.
type Config struct {
	// Addr like "localhost:6379". ENV: REDIS_ADDR
	Addr string `env:"REDIS_ADDR,default=localhost:6379"`
	// Password for AUTH, empty for none. ENV: REDIS_PASSWORD
	Password string `env:"REDIS_PASSWORD"`
	// DB index. ENV: REDIS_DB
	DB int `env:"REDIS_DB,default=0"`
	// KeyPrefix for all keys. ENV: REDIS_KEY_PREFIX
	KeyPrefix string `env:"REDIS_KEY_PREFIX,default=portal:"`
}

// KV implements store.KV on a Redis client.
type KV struct {
	client    *redis.Client
	keyPrefix string
}

// New wraps an existing client.
func New(client *redis.Client, keyPrefix string) (*KV, error) {
	if client == nil {
		return nil, fmt.Errorf("redis client is required")
	}
	return &KV{client: client, keyPrefix: keyPrefix}, nil
}

// Dial connects using cfg and verifies the connection with PING.
func Dial(ctx context.Context, cfg Config) (*KV, error) {
	addr := cfg.Addr
	if addr == "" {
		addr = "localhost:6379"
	}
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, apperrors.Wrapf(apperrors.ErrBackendUnavailable, "redis ping %s: %v", addr, err)
	}
	return New(client, cfg.KeyPrefix)
}

// ConfigFromEnv decodes Config from the environment, applying tag defaults.
func ConfigFromEnv() (Config, error) {
	var cfg Config
	if err := envdecode.Decode(&cfg); err != nil && !errors.Is(err, envdecode.ErrNoTargetFieldsAreSet) {
		return Config{}, fmt.Errorf("decode redis config: %w", err)
	}
	return cfg, nil
}

// Get returns the value stored under key, or nil if it does not exist.
func (kv *KV) Get(ctx context.Context, key string) ([]byte, error) {
	value, err := kv.client.Get(ctx, kv.keyPrefix+key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get key %s: %w", key, err)
	}
	return value, nil
}

// Set stores value under key. A ttl <= 0 stores the value without expiry.
func (kv *KV) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if ttl < 0 {
		ttl = 0
	}
	if err := kv.client.Set(ctx, kv.keyPrefix+key, value, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set key %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (kv *KV) Delete(ctx context.Context, key string) error {
	if err := kv.client.Del(ctx, kv.keyPrefix+key).Err(); err != nil {
		return fmt.Errorf("failed to delete key %s: %w", key, err)
	}
	return nil
}

// TTL returns the remaining expiry Redis holds for key.
func (kv *KV) TTL(ctx context.Context, key string) (time.Duration, error) {
	return kv.client.TTL(ctx, kv.keyPrefix+key).Result()
}

// Close closes the Redis client.
func (kv *KV) Close() error {
	return kv.client.Close()
}
