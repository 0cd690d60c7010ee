package server

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ironforge/athlete-api/internal/config"
	"github.com/ironforge/athlete-api/internal/middleware"
)

// ConnectRateLimiter returns the Redis-backed rate limit counter, or nil
// when limiting is disabled or Redis does not answer a ping. The API runs
// unlimited rather than refusing to start. release frees the client and is
// always safe to call.
func ConnectRateLimiter(ctx context.Context, cfg config.Config, logger *slog.Logger) (counter middleware.Counter, release func()) {
	noop := func() {}
	if !cfg.RateLimitEnabled || cfg.RedisAddr == "" {
		return nil, noop
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})

	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("redis unavailable, rate limiting disabled",
			slog.String("addr", cfg.RedisAddr),
			slog.String("error", err.Error()),
		)
		_ = client.Close()
		return nil, noop
	}

	logger.Info("rate limiting enabled", slog.String("addr", cfg.RedisAddr))
	return middleware.NewRedisCounter(client), func() { _ = client.Close() }
}
