// Copyright Envoy AI Gateway Authors
// SPDX-License-Identifier: Apache-2.0
// The full text of the Apache license is available in the LICENSE file at
// the root of the repo.

package cache

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultTTL is the default time-to-live for fast-tier entries.
const DefaultTTL = time.Hour

// RedisConfig holds the configuration for the fast tier connection.
type RedisConfig struct {
	// Addr is the Redis server address (e.g. "localhost:6379").
	Addr string
	// Password is the Redis password (optional).
	Password string
	// TLS enables TLS for the Redis connection.
	TLS bool
	// DB is the Redis database number (default 0).
	DB int
	// TTL is the entry time-to-live; zero means DefaultTTL.
	TTL time.Duration
}

// RedisTier implements the fast tier using Redis.
type RedisTier struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisTier connects to Redis and verifies the connection.
func NewRedisTier(cfg RedisConfig) (*RedisTier, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	}
	if cfg.TLS {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return newRedisTierWithClient(client, cfg.TTL), nil
}

func newRedisTierWithClient(client *redis.Client, ttl time.Duration) *RedisTier {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisTier{client: client, ttl: ttl}
}

type redisEntry struct {
	ModelID string `json:"model_id"`
	Value   string `json:"value"`
}

// Get implements the same method as documented on Tier.
func (t *RedisTier) Get(ctx context.Context, key string) (Entry, bool, error) {
	raw, err := t.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return Entry{}, false, nil
	}
	if err != nil {
		return Entry{}, false, err
	}
	var e redisEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		// A corrupt entry is treated as a miss.
		return Entry{}, false, nil
	}
	return Entry{ModelID: e.ModelID, Value: e.Value}, true, nil
}

// Set implements the same method as documented on Tier.
func (t *RedisTier) Set(ctx context.Context, key string, entry Entry) error {
	raw, err := json.Marshal(redisEntry{ModelID: entry.ModelID, Value: entry.Value})
	if err != nil {
		return err
	}
	return t.client.Set(ctx, key, raw, t.ttl).Err()
}

// Ping reports fast-tier health for the readiness probe.
func (t *RedisTier) Ping(ctx context.Context) error {
	return t.client.Ping(ctx).Err()
}

// Close closes the Redis connection.
func (t *RedisTier) Close() error { return t.client.Close() }
