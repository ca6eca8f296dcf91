package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

type busOptions struct {
	logger      *slog.Logger
	channelSize int
}

type BusOption func(*busOptions)

// WithBusLogger 設置日誌記錄器
func WithBusLogger(logger *slog.Logger) BusOption {
	return func(o *busOptions) {
		o.logger = logger
	}
}

// WithBusChannelSize 設置訂閱端接收 channel 的大小
func WithBusChannelSize(size int) BusOption {
	return func(o *busOptions) {
		o.channelSize = size
	}
}

// Bus 是 Redis Pub/Sub 的薄封裝
type Bus struct {
	client  *redis.Client
	logger  *slog.Logger
	options busOptions
}

func NewBus(client *redis.Client, opts ...BusOption) *Bus {
	options := busOptions{
		logger:      slog.Default(),
		channelSize: 100,
	}
	for _, opt := range opts {
		opt(&options)
	}
	return &Bus{
		client:  client,
		logger:  options.logger.With(slog.String("caller", "Bus")),
		options: options,
	}
}

// Publish 發佈一則訊息，回傳收到的訂閱者數量
func (b *Bus) Publish(ctx context.Context, channel string, payload []byte) (int64, error) {
	const op = "Bus.Publish"
	n, err := b.client.Publish(ctx, channel, payload).Result()
	if err != nil {
		return 0, fmt.Errorf("[%s] failed to publish to %s, err=%w", op, channel, err)
	}
	b.logger.Debug("message published", slog.String("channel", channel), slog.Int64("receivers", n))
	return n, nil
}

// Subscribe 訂閱指定 channel，回傳時訂閱已經被 Redis 確認
func (b *Bus) Subscribe(ctx context.Context, channels ...string) (*Subscription, error) {
	const op = "Bus.Subscribe"
	if len(channels) == 0 {
		return nil, fmt.Errorf("[%s] no channel given", op)
	}
	return b.confirm(ctx, op, b.client.Subscribe(ctx, channels...))
}

// PSubscribe 以 pattern 訂閱，例如 auction:*
func (b *Bus) PSubscribe(ctx context.Context, patterns ...string) (*Subscription, error) {
	const op = "Bus.PSubscribe"
	if len(patterns) == 0 {
		return nil, fmt.Errorf("[%s] no pattern given", op)
	}
	return b.confirm(ctx, op, b.client.PSubscribe(ctx, patterns...))
}

func (b *Bus) confirm(ctx context.Context, op string, ps *redis.PubSub) (*Subscription, error) {
	// 第一個回覆是訂閱確認，確認前發佈的訊息不保證收得到
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("[%s] subscription not confirmed, err=%w", op, err)
	}
	return &Subscription{
		ps:       ps,
		messages: ps.Channel(redis.WithChannelSize(b.options.channelSize)),
	}, nil
}

// Subscription 一個已確認的訂閱
type Subscription struct {
	ps       *redis.PubSub
	messages <-chan *redis.Message
}

// Messages 在 Close 之後會被關閉
func (s *Subscription) Messages() <-chan *redis.Message {
	return s.messages
}

func (s *Subscription) Close() error {
	if err := s.ps.Close(); err != nil && !errors.Is(err, redis.ErrClosed) {
		return err
	}
	return nil
}
