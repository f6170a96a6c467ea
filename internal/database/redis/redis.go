package redis

import (
	"context"
	"fmt"
	"net"
	"time"

	"impact-service/internal/config"

	"github.com/redis/go-redis/v9"
)

// Open connects to the shared aggregate cache and fails fast when Redis is
// not answering, so the caller can fall back to the in-process cache.
func Open(ctx context.Context, cfg config.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         net.JoinHostPort(cfg.Host, cfg.Port),
		Password:     cfg.Password,
		DB:           cfg.DB,
		DialTimeout:  3 * time.Second,
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis %s not reachable: %w", client.Options().Addr, err)
	}
	return client, nil
}
