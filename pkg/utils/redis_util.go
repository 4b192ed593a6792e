package utils

import (
	"context"
	"os"

	"slot-auction/internal/config"
	"slot-auction/pkg/logger"

	"github.com/go-redis/redis/v8"
)

func InitializeRedis(ctx context.Context, cfg *config.Config, log logger.Logger) *redis.Client {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Error("Failed to connect to Redis", "error", err)
		os.Exit(1)
	}
	log.Info("Connected to Redis", "address", cfg.Redis.Address)
	return rdb
}
