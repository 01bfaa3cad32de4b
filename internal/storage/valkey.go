package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// ValkeyStore keeps every key of one device in a single hash.
type ValkeyStore struct {
	client  *redis.Client
	hashKey string
}

type ValkeyConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	DeviceID  string
}

func (c ValkeyConfig) hashKey() string {
	return fmt.Sprintf("%s:%s", c.KeyPrefix, c.DeviceID)
}

func NewValkeyStore(cfg ValkeyConfig) (*ValkeyStore, error) {
	if cfg.Addr == "" {
		cfg.Addr = "localhost:6379"
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "ticketera:session"
	}
	if cfg.DeviceID == "" {
		cfg.DeviceID = "default"
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		ReadTimeout:  2 * time.Second,
		WriteTimeout: 2 * time.Second,
		DialTimeout:  5 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("failed to connect to Valkey: %w", err)
	}

	return &ValkeyStore{
		client:  rdb,
		hashKey: cfg.hashKey(),
	}, nil
}

func (v *ValkeyStore) Get(ctx context.Context, key string) (string, bool, error) {
	value, err := v.client.HGet(ctx, v.hashKey, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("session lookup error: %w", err)
	}
	return value, true, nil
}

func (v *ValkeyStore) Set(ctx context.Context, key, value string) error {
	if err := v.client.HSet(ctx, v.hashKey, key, value).Err(); err != nil {
		return fmt.Errorf("failed to save %s: %w", key, err)
	}
	return nil
}

func (v *ValkeyStore) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := v.client.HDel(ctx, v.hashKey, keys...).Err(); err != nil {
		return fmt.Errorf("failed to delete session keys: %w", err)
	}
	return nil
}

// Ping is used by the health check.
func (v *ValkeyStore) Ping(ctx context.Context) error {
	return v.client.Ping(ctx).Err()
}

func (v *ValkeyStore) Close() error {
	return v.client.Close()
}
