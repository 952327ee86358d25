package redisclient

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/hackgods/advisor-booking-engine/internal/config"
)

// Lock traffic is tiny and latency sensitive, so the pool stays small and
// timeouts stay well under the lock wait.
const (
	ioTimeout    = 500 * time.Millisecond
	poolSize     = 16
	minIdleConns = 2
)

func optionsFrom(cfg config.Config) *redis.Options {
	return &redis.Options{
		Addr:         cfg.RedisAddr,
		Username:     cfg.RedisUsername,
		Password:     cfg.RedisPassword,
		DialTimeout:  2 * time.Second,
		ReadTimeout:  ioTimeout,
		WriteTimeout: ioTimeout,
		PoolSize:     poolSize,
		MinIdleConns: minIdleConns,
	}
}

// Connect opens a client for the lock backend and fails fast if the server
// does not answer a PING before ctx expires.
func Connect(ctx context.Context, cfg config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(optionsFrom(cfg))
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis %s: %w", cfg.RedisAddr, err)
	}
	return rdb, nil
}
