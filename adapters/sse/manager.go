package sse

import (
	"context"
	"log/slog"
	"sync"
)

type managerOptions struct {
	logger *slog.Logger
	buffer int
}

type ManagerOption func(*managerOptions)

// WithManagerLogger 設置日誌記錄器
func WithManagerLogger(logger *slog.Logger) ManagerOption {
	return func(o *managerOptions) {
		o.logger = logger
	}
}

// WithSubscriberBuffer 設置每個訂閱者的緩衝大小
func WithSubscriberBuffer(n int) ManagerOption {
	return func(o *managerOptions) {
		o.buffer = n
	}
}

// ConnectionManager 每個程序只需要一個。
// 它只對來源訂閱一次，再依訊息的頻道名稱分派給本地訂閱者，
// 同一個頻道的訊息依照來源的順序送達。
type ConnectionManager[T any] struct {
	source Source[T]
	logger *slog.Logger
	buffer int

	mu     sync.RWMutex
	wg     sync.WaitGroup
	active bool

	channels map[string]*Channel[T]
}

func NewConnectionManager[T any](source Source[T], opts ...ManagerOption) *ConnectionManager[T] {
	options := managerOptions{
		logger: slog.Default(),
		buffer: DefaultSubscriberBuffer,
	}
	for _, opt := range opts {
		opt(&options)
	}
	return &ConnectionManager[T]{
		source:   source,
		logger:   options.logger.With(slog.String("caller", "ConnectionManager")),
		buffer:   options.buffer,
		channels: make(map[string]*Channel[T]),
		active:   true,
	}
}

func (cm *ConnectionManager[T]) Start() {
	cm.wg.Add(1)
	go func() {
		defer cm.wg.Done()
		defer cm.logger.Info("dispatch goroutine stopped")

		for envelope := range cm.source.Messages() {
			cm.dispatch(envelope)
		}
	}()
}

func (cm *ConnectionManager[T]) dispatch(envelope Envelope[T]) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	channel, ok := cm.channels[envelope.Channel]
	if !ok {
		return
	}
	if dropped := channel.Broadcast(envelope.Message); dropped > 0 {
		cm.logger.Warn("dropped slow subscribers",
			slog.String("channel", envelope.Channel),
			slog.Int("count", dropped),
		)
	}
	if channel.IsIdle() {
		delete(cm.channels, envelope.Channel)
	}
}

// Done 關閉來源並結束所有訂閱
func (cm *ConnectionManager[T]) Done() {
	cm.mu.Lock()
	if !cm.active {
		cm.mu.Unlock()
		return
	}
	cm.active = false
	cm.mu.Unlock()

	if err := cm.source.Close(); err != nil {
		cm.logger.Error("failed to close source", slog.Any("error", err))
	}
	cm.wg.Wait()

	cm.mu.Lock()
	defer cm.mu.Unlock()
	for _, channel := range cm.channels {
		channel.UnsubscribeAll()
	}
	clear(cm.channels)
}

// Subscribe 返回的通道在取消訂閱、跟不上或 Done 之後會被關閉
func (cm *ConnectionManager[T]) Subscribe(channelName string) (<-chan T, error) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	if !cm.active {
		return nil, context.Canceled
	}

	c, ok := cm.channels[channelName]
	if !ok {
		c = NewChannel[T](cm.buffer)
		cm.channels[channelName] = c
	}
	return c.Subscribe(), nil
}

func (cm *ConnectionManager[T]) Unsubscribe(channelName string, ch <-chan T) {
	cm.mu.Lock()
	defer cm.mu.Unlock()

	c, ok := cm.channels[channelName]
	if !ok {
		return
	}
	c.Unsubscribe(ch)
	if c.IsIdle() {
		delete(cm.channels, channelName)
	}
}
