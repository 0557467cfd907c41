package cache

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/drukpa1455/crewai-job/pkg/types"
)

const keyPrefix = "applycrew:posting:"

// Redis caches scraped postings so repeated runs against the same URL skip
// the fetch.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	return &Redis{client: client, ttl: ttl}
}

// Dial connects to addr and pings it.
func Dial(ctx context.Context, addr string, ttl time.Duration) (*Redis, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return NewRedis(client, ttl), nil
}

func (r *Redis) Get(ctx context.Context, url string) (types.JobPosting, bool, error) {
	raw, err := r.client.Get(ctx, Key(url)).Bytes()
	if errors.Is(err, redis.Nil) {
		return types.JobPosting{}, false, nil
	}
	if err != nil {
		return types.JobPosting{}, false, fmt.Errorf("redis get: %w", err)
	}
	var p types.JobPosting
	if err := json.Unmarshal(raw, &p); err != nil {
		return types.JobPosting{}, false, fmt.Errorf("decode cached posting: %w", err)
	}
	return p, true, nil
}

func (r *Redis) Put(ctx context.Context, url string, p types.JobPosting) error {
	raw, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := r.client.Set(ctx, Key(url), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

func (r *Redis) Close() error {
	return r.client.Close()
}

func Key(url string) string {
	sum := sha1.Sum([]byte(url))
	return keyPrefix + hex.EncodeToString(sum[:])
}
