package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stemsi/examkb/internal/config"
)

const redisConnectAttempts = 3

// NewRedisClient connects to the Redis instance holding the import queue,
// job states and progress channels. The first ping is retried briefly so the
// server can start alongside Redis.
func NewRedisClient(ctx context.Context, cfg *config.Config, log zerolog.Logger) (*redis.Client, error) {
	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	if opt.ClientName == "" {
		opt.ClientName = "examkb"
	}

	rdb := redis.NewClient(opt)

	backoff := 500 * time.Millisecond
	for attempt := 1; ; attempt++ {
		err = rdb.Ping(ctx).Err()
		if err == nil {
			break
		}
		if attempt == redisConnectAttempts {
			rdb.Close()
			return nil, fmt.Errorf("ping redis: %w", err)
		}
		log.Warn().Err(err).Int("attempt", attempt).Msg("Redis not ready, retrying")
		select {
		case <-ctx.Done():
			rdb.Close()
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	log.Info().
		Str("addr", opt.Addr).
		Int("db", opt.DB).
		Msg("Redis connected")

	return rdb, nil
}
