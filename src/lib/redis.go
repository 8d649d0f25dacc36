package lib

import (
	"context"
	"log"
	"os"

	"github.com/redis/go-redis/v9"
)

var redisClient *redis.Client

func GetRedisClient() *redis.Client {
	if redisClient != nil {
		return redisClient
	}
	redisHost := os.Getenv("REDIS_HOST")
	if redisHost == "" {
		return nil
	}
	opt, err := redis.ParseURL(redisHost)
	if err != nil {
		log.Printf("[redis] Error parsing connection string: %s\n", err.Error())
		return nil
	}
	rdb := redis.NewClient(opt)
	redisClient = rdb
	return rdb
}

// PingRedis reports whether the configured redis answers.
func PingRedis(ctx context.Context) bool {
	rdb := GetRedisClient()
	if rdb == nil {
		return false
	}
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Printf("[redis] Ping failed: %s\n", err.Error())
		return false
	}
	return true
}

// NewRedisClient Replace redis instance with custom client implementation
func NewRedisClient(c *redis.Client) *redis.Client {
	redisClient = c
	return redisClient
}
