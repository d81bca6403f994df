// Package cache wraps redis for the delivery-dedup fast path. The scan
// window is wider than the scan interval, so the same task can match
// two overlapping passes; claiming the window tag here keeps delivery
// idempotent even before the database row lands.
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

var ErrCacheDown = errors.New("cache unavailable")

type DedupStore struct {
	client *redis.Client
	ttl    time.Duration
}

type Config struct {
	Addr         string
	Password     string
	DB           int
	PoolSize     int
	MinIdleConns int
	MaxRetries   int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	TagTTL       time.Duration
}

func DefaultConfig() *Config {
	return &Config{
		Addr:         "localhost:6379",
		PoolSize:     10,
		MinIdleConns: 5,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
		TagTTL:       10 * time.Minute,
	}
}

func NewDedupStore(config *Config) *DedupStore {
	if config == nil {
		config = DefaultConfig()
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:         config.Addr,
		Password:     config.Password,
		DB:           config.DB,
		PoolSize:     config.PoolSize,
		MinIdleConns: config.MinIdleConns,
		MaxRetries:   config.MaxRetries,
		DialTimeout:  config.DialTimeout,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
	})
	return NewDedupStoreWithClient(rdb, config.TagTTL)
}

func NewDedupStoreWithClient(client *redis.Client, ttl time.Duration) *DedupStore {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	return &DedupStore{client: client, ttl: ttl}
}

// Claim atomically claims a delivery tag. It returns true if this
// caller won the claim and should deliver, false if another scan pass
// already did.
func (d *DedupStore) Claim(ctx context.Context, tag string) (bool, error) {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	ok, err := d.client.SetNX(ctx, "delivery:"+tag, 1, d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrCacheDown, err)
	}
	return ok, nil
}

// Release drops a claim so a failed delivery can be retried by a later
// scan pass.
func (d *DedupStore) Release(ctx context.Context, tag string) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return d.client.Del(ctx, "delivery:"+tag).Err()
}

func (d *DedupStore) Ping(ctx context.Context) error {
	return d.client.Ping(ctx).Err()
}
