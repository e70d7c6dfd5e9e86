package middleware

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"

	"sendloop/config"
	"sendloop/utils"
)

// RedisStorage adapts a redis client to fiber's limiter storage so rate
// counters survive restarts and are shared across instances.
type RedisStorage struct {
	Client *redis.Client
}

func (s *RedisStorage) Get(key string) ([]byte, error) {
	val, err := s.Client.Get(context.Background(), key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	return val, err
}

func (s *RedisStorage) Set(key string, val []byte, exp time.Duration) error {
	return s.Client.Set(context.Background(), key, val, exp).Err()
}

func (s *RedisStorage) Delete(key string) error {
	return s.Client.Del(context.Background(), key).Err()
}

func (s *RedisStorage) Reset() error {
	return nil
}

func (s *RedisStorage) Close() error {
	return nil
}

// TrackingRateLimiter throttles the public tracking endpoints per client IP.
// They carry no auth, so this is the only abuse control in front of them.
func TrackingRateLimiter(rdb *redis.Client) fiber.Handler {
	return limiter.New(limiter.Config{
		Max:        config.AppConfig.RateLimitTracking,
		Expiration: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return utils.RateLimitKey(c.IP(), c.Route().Path)
		},
		Storage: &RedisStorage{Client: rdb},
		LimitReached: func(c *fiber.Ctx) error {
			return utils.ErrorResponse(c, fiber.StatusTooManyRequests, "Too many requests", nil)
		},
	})
}
