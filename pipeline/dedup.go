package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultDedupPrefix = "lance:pipeline:processed:"
	DefaultDedupTTL    = 7 * 24 * time.Hour
)

// RedisDeduper 以 SETNX 標記已處理的拍賣
type RedisDeduper struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

func NewRedisDeduper(client *redis.Client, prefix string, ttl time.Duration) *RedisDeduper {
	if prefix == "" {
		prefix = DefaultDedupPrefix
	}
	if ttl <= 0 {
		ttl = DefaultDedupTTL
	}
	return &RedisDeduper{client: client, prefix: prefix, ttl: ttl}
}

func (d *RedisDeduper) FirstSeen(ctx context.Context, auctionID string) (bool, error) {
	const op = "RedisDeduper.FirstSeen"
	ok, err := d.client.SetNX(ctx, d.prefix+auctionID, time.Now().UTC().Format(time.RFC3339), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("[%s] Fail to mark auction, id=%s, err=%w", op, auctionID, err)
	}
	return ok, nil
}
