package infra

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	redisClientName = "oncall"
	// Sessions and rate limits give each Redis call a 2s budget.
	redisIOTimeout   = 2 * time.Second
	redisMinIdleConn = 2
)

// RedisOptions parses url and fills in the timeouts and pool settings the
// session store and login limiter rely on. Values set in the URL win.
func RedisOptions(url string) (*redis.Options, error) {
	if url == "" {
		return nil, fmt.Errorf("redis url is required")
	}

	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if opt.ClientName == "" {
		opt.ClientName = redisClientName
	}
	if opt.DialTimeout == 0 {
		opt.DialTimeout = redisIOTimeout
	}
	if opt.ReadTimeout == 0 {
		opt.ReadTimeout = redisIOTimeout
	}
	if opt.WriteTimeout == 0 {
		opt.WriteTimeout = redisIOTimeout
	}
	if opt.MinIdleConns == 0 {
		opt.MinIdleConns = redisMinIdleConn
	}
	opt.ContextTimeoutEnabled = true
	return opt, nil
}

// NewRedisClient builds the client backing sessions, idempotency replays and
// login rate limits, and verifies connectivity.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := RedisOptions(url)
	if err != nil {
		return nil, err
	}

	client := redis.NewClient(opt)

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return client, nil
}
