package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	"promptcoach/internal/config"

	redis "github.com/redis/go-redis/v9"
)

const (
	defaultHost = "127.0.0.1"
	defaultPort = 6379
	pingTimeout = 3 * time.Second
)

var (
	// ErrCacheMiss mirrors redis.Nil for callers.
	ErrCacheMiss = redis.Nil
	// ErrNotReady is returned by every call made on a disabled client.
	ErrNotReady = errors.New("redis client not initialized")
)

// Client is the shared cache handle used by auth tokens and chat session mirroring.
// A nil *Client stands for "redis disabled".
type Client struct {
	inner *redis.Client
}

// NewRedisClient connects using the redis section of the config and pings once.
// It returns (nil, nil) when redis is disabled.
func NewRedisClient(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("config required")
	}
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	client := redis.NewClient(clientOptions(cfg.Redis))
	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Client{inner: client}, nil
}

func clientOptions(rc config.RedisConfig) *redis.Options {
	host := rc.Host
	if host == "" {
		host = defaultHost
	}
	port := rc.Port
	if port == 0 {
		port = defaultPort
	}
	return &redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Username: rc.Username,
		Password: rc.Password,
		DB:       rc.DB,
	}
}

// Enabled reports whether calls reach a live redis.
func (c *Client) Enabled() bool {
	return c != nil && c.inner != nil
}

func (c *Client) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if !c.Enabled() {
		return ErrNotReady
	}
	return c.inner.Set(ctx, key, value, ttl).Err()
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	if !c.Enabled() {
		return "", ErrNotReady
	}
	return c.inner.Get(ctx, key).Result()
}

// Del removes the keys; an empty key list is a no-op.
func (c *Client) Del(ctx context.Context, keys ...string) error {
	if !c.Enabled() {
		return ErrNotReady
	}
	if len(keys) == 0 {
		return nil
	}
	return c.inner.Del(ctx, keys...).Err()
}

func (c *Client) Publish(ctx context.Context, channel string, payload interface{}) error {
	if !c.Enabled() {
		return ErrNotReady
	}
	return c.inner.Publish(ctx, channel, payload).Err()
}

func (c *Client) Close() error {
	if !c.Enabled() {
		return nil
	}
	return c.inner.Close()
}

// Raw exposes the go-redis client for pub/sub; nil when disabled.
func (c *Client) Raw() *redis.Client {
	if c == nil {
		return nil
	}
	return c.inner
}
