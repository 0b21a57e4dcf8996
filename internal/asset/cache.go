package asset

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/redis/go-redis/v9"
)

// Cache stores assets resolved from the chain, keyed by mint address.
type Cache interface {
	Get(ctx context.Context, address solana.PublicKey) (ResolvedAsset, bool, error)
	Set(ctx context.Context, asset ResolvedAsset) error
}

type MemoryCache struct {
	mu     sync.RWMutex
	assets map[solana.PublicKey]ResolvedAsset
}

func NewMemoryCache() *MemoryCache {
	return &MemoryCache{assets: make(map[solana.PublicKey]ResolvedAsset)}
}

func (c *MemoryCache) Get(_ context.Context, address solana.PublicKey) (ResolvedAsset, bool, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	a, ok := c.assets[address]
	return a, ok, nil
}

func (c *MemoryCache) Set(_ context.Context, asset ResolvedAsset) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.assets[asset.Address] = asset
	return nil
}

// RedisCache keeps resolved assets in redis as JSON under asset:<address>.
// A zero ttl keeps entries forever; mint decimals never change.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	return &RedisCache{client: client, ttl: ttl}
}

// NewRedisClient configures a Redis client and verifies connectivity.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url is required")
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	client := redis.NewClient(opt)

	err = client.Ping(ctx).Err()
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}

func redisKey(address solana.PublicKey) string {
	return "asset:" + address.String()
}

func (c *RedisCache) Get(ctx context.Context, address solana.PublicKey) (ResolvedAsset, bool, error) {
	raw, err := c.client.Get(ctx, redisKey(address)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ResolvedAsset{}, false, nil
		}
		return ResolvedAsset{}, false, fmt.Errorf("redis get: %w", err)
	}

	var a ResolvedAsset
	err = json.Unmarshal(raw, &a)
	if err != nil {
		return ResolvedAsset{}, false, fmt.Errorf("failed to decode cached asset: %w", err)
	}
	if !a.Address.Equals(address) {
		return ResolvedAsset{}, false, fmt.Errorf("cached asset address mismatch: %s", a.Address)
	}
	return a, true, nil
}

func (c *RedisCache) Set(ctx context.Context, asset ResolvedAsset) error {
	raw, err := json.Marshal(asset)
	if err != nil {
		return fmt.Errorf("failed to encode asset: %w", err)
	}

	err = c.client.Set(ctx, redisKey(asset.Address), raw, c.ttl).Err()
	if err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}
