package redisclient

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

// MustNewClient creates a new Redis client for the cache gateway and the
// rate limiter. A failed ping is fatal at startup; at runtime both
// consumers degrade gracefully when Redis becomes unreachable.
func MustNewClient() *redis.Client {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%s", os.Getenv("POS_REDIS_HOST"), viper.GetString("redis.port")),
		Password: os.Getenv("POS_REDIS_PASSWORD"),
		DB:       viper.GetInt("redis.db"),
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		panic(fmt.Sprintf("Failed to connect to Redis: %v", err))
	}

	slog.Info("Redis connected")

	return client
}
