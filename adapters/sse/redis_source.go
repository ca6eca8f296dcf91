package sse

import (
	"context"
	"fmt"
	"sync"

	redisAdapter "lance/adapters/redis"
)

// RedisSource 以 pattern 訂閱 Redis Pub/Sub，並轉成 Envelope[string]
type RedisSource struct {
	sub  *redisAdapter.Subscription
	out  chan Envelope[string]
	once sync.Once
}

// NewRedisSource 回傳時訂閱已被確認
func NewRedisSource(ctx context.Context, bus *redisAdapter.Bus, pattern string) (*RedisSource, error) {
	const op = "NewRedisSource"
	sub, err := bus.PSubscribe(ctx, pattern)
	if err != nil {
		return nil, fmt.Errorf("[%s] %w", op, err)
	}

	s := &RedisSource{
		sub: sub,
		out: make(chan Envelope[string]),
	}
	go func() {
		defer close(s.out)
		for msg := range sub.Messages() {
			s.out <- Envelope[string]{Channel: msg.Channel, Message: msg.Payload}
		}
	}()
	return s, nil
}

func (s *RedisSource) Messages() <-chan Envelope[string] {
	return s.out
}

// Close 關閉訂閱，之後 Messages 會被關閉
func (s *RedisSource) Close() error {
	var err error
	s.once.Do(func() {
		err = s.sub.Close()
	})
	return err
}
