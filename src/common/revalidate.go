package common

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

// CacheRevalidator asks the front end to rebuild cached pages by publishing
// each path on a redis channel.
type CacheRevalidator struct {
	rdb     *redis.Client
	channel string
}

func NewCacheRevalidator(rdb *redis.Client, channel string) *CacheRevalidator {
	return &CacheRevalidator{rdb: rdb, channel: channel}
}

func (r *CacheRevalidator) Revalidate(ctx context.Context, paths ...string) error {
	if r.rdb == nil {
		log.Printf("[Revalidate] redis not configured, skipped %v\n", paths)
		return nil
	}
	seen := make(map[string]struct{}, len(paths))
	for _, path := range paths {
		if _, ok := seen[path]; ok {
			continue
		}
		seen[path] = struct{}{}
		if err := r.rdb.Publish(ctx, r.channel, path).Err(); err != nil {
			return fmt.Errorf("publish %s: %w", path, err)
		}
	}
	return nil
}
