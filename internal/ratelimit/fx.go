package ratelimit

import (
	"go.uber.org/fx"
	"go.uber.org/zap"

	redis "github.com/redis/go-redis/v9"

	"github.com/rovamart/payguard/internal/config"
)

var Module = fx.Module("ratelimit",
	fx.Provide(
		newRedisClient,
		NewTokenBucket,
		newOTPSubmitLimiter,
	),
)

func newRedisClient(cfg config.Config, log *zap.Logger) *redis.Client {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RateLimit.RedisAddr,
		Password: cfg.RateLimit.RedisPassword,
		DB:       cfg.RateLimit.RedisDB,
	})
	log.Info("rate limiter redis client configured",
		zap.String("addr", cfg.RateLimit.RedisAddr))
	return client
}

func newOTPSubmitLimiter(bucket *TokenBucket, cfg config.Config, log *zap.Logger) *OTPSubmitLimiter {
	return NewOTPSubmitLimiter(bucket, log, cfg.RateLimit.OTPSubmitRate, cfg.RateLimit.OTPSubmitBurst)
}
