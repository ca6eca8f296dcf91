package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// deadLetterSuffix 無法處理的訊息會被搬到 {stream}:dead-letter
const deadLetterSuffix = ":dead-letter"

// Message 封裝資料與 ack 所需的資訊
type Message[T any] struct {
	Data T
	ID   string

	client *redis.Client
	done   bool
	stream string
	group  string
	raw    map[string]any
}

// Done 確認訊息已處理完成
func (m *Message[T]) Done(ctx context.Context) error {
	const op = "Message.Done"
	if m.done {
		return nil
	}
	if err := m.client.XAck(ctx, m.stream, m.group, m.ID).Err(); err != nil {
		return fmt.Errorf("[%s] failed to ack message, err=%w", op, err)
	}
	m.done = true
	return nil
}

// Fail 將訊息連同錯誤原因搬到 dead-letter 後 ack
func (m *Message[T]) Fail(ctx context.Context, failErr error) error {
	const op = "Message.Fail"
	if m.done {
		return nil
	}

	values := make(map[string]any, len(m.raw)+1)
	for k, v := range m.raw {
		values[k] = v
	}
	values["error"] = failErr.Error()

	if err := m.client.XAdd(ctx, &redis.XAddArgs{
		Stream: m.stream + deadLetterSuffix,
		Values: values,
	}).Err(); err != nil {
		return fmt.Errorf("[%s] failed to move message to dead letter, err=%w", op, err)
	}
	if err := m.client.XAck(ctx, m.stream, m.group, m.ID).Err(); err != nil {
		return fmt.Errorf("[%s] failed to ack failed message, err=%w", op, err)
	}
	m.done = true
	return nil
}

type groupConsumerOptions[T any] struct {
	logger       *slog.Logger
	parseFunc    func(map[string]any) (T, error)
	bufferSize   int
	blockTimeout time.Duration
	retryDelay   time.Duration
}

type GroupConsumerOption[T any] func(*groupConsumerOptions[T])

// WithGroupConsumerLogger 設置日誌記錄器
func WithGroupConsumerLogger[T any](logger *slog.Logger) GroupConsumerOption[T] {
	return func(o *groupConsumerOptions[T]) {
		o.logger = logger
	}
}

// WithGroupConsumerParseFunc 設置訊息解碼函數
func WithGroupConsumerParseFunc[T any](fn func(map[string]any) (T, error)) GroupConsumerOption[T] {
	return func(o *groupConsumerOptions[T]) {
		o.parseFunc = fn
	}
}

// WithGroupConsumerBufferSize 設置下游 channel 的緩衝大小
func WithGroupConsumerBufferSize[T any](size int) GroupConsumerOption[T] {
	return func(o *groupConsumerOptions[T]) {
		o.bufferSize = size
	}
}

// WithGroupConsumerBlockTimeout 設置 XREADGROUP 的阻塞時間
func WithGroupConsumerBlockTimeout[T any](d time.Duration) GroupConsumerOption[T] {
	return func(o *groupConsumerOptions[T]) {
		o.blockTimeout = d
	}
}

// WithGroupConsumerRetryDelay 設置 Redis 錯誤後的重試間隔
func WithGroupConsumerRetryDelay[T any](d time.Duration) GroupConsumerOption[T] {
	return func(o *groupConsumerOptions[T]) {
		o.retryDelay = d
	}
}

// GroupConsumer 啟動時先重新投遞自己名下尚未 ack 的訊息，之後才讀新訊息，
// 所以 worker 重啟後不會漏掉處理到一半的資料
type GroupConsumer[T any] struct {
	client     *redis.Client
	stream     string
	group      string
	consumer   string
	downStream chan *Message[T]
	cancel     context.CancelFunc
	wg         sync.WaitGroup
	mu         sync.Mutex
	closed     bool
	logger     *slog.Logger
	options    groupConsumerOptions[T]
}

func NewGroupConsumer[T any](
	client *redis.Client,
	stream, group, consumer string,
	opts ...GroupConsumerOption[T],
) (*GroupConsumer[T], error) {
	if client == nil {
		return nil, errors.New("redis client cannot be nil")
	}
	if stream == "" || group == "" || consumer == "" {
		return nil, errors.New("stream, group and consumer cannot be empty")
	}

	options := groupConsumerOptions[T]{
		logger:       slog.Default(),
		parseFunc:    DefaultParseFromMessage[T],
		bufferSize:   1,
		blockTimeout: time.Second,
		retryDelay:   time.Second,
	}
	for _, opt := range opts {
		opt(&options)
	}

	return &GroupConsumer[T]{
		logger: options.logger.With(
			slog.String("caller", "GroupConsumer"),
			slog.String("stream", stream),
			slog.String("group", group),
			slog.String("consumer", consumer),
		),
		client:   client,
		stream:   stream,
		group:    group,
		consumer: consumer,
		closed:   true,
		options:  options,
	}, nil
}

// Start 建立 consumer group (若不存在) 並開始讀取
func (s *GroupConsumer[T]) Start() error {
	const op = "GroupConsumer.Start"
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.closed {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	if err := s.ensureGroup(ctx); err != nil {
		cancel()
		return fmt.Errorf("[%s] failed to create group, err=%w", op, err)
	}

	s.downStream = make(chan *Message[T], s.options.bufferSize)
	s.cancel = cancel
	s.closed = false
	s.logger.Info("starting group consumer")

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.logger.Info("group consumer goroutine stopped")
		defer close(s.downStream)
		s.run(ctx)
	}()
	return nil
}

// Subscribe 回傳訊息 channel，Close 後會被關閉
func (s *GroupConsumer[T]) Subscribe() <-chan *Message[T] {
	return s.downStream
}

func (s *GroupConsumer[T]) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.logger.Info("closing group consumer")
	s.closed = true
	s.cancel()
	s.mu.Unlock()

	s.wg.Wait()
	s.logger.Info("group consumer closed")
	return nil
}

func (s *GroupConsumer[T]) ensureGroup(ctx context.Context) error {
	err := s.client.XGroupCreateMkStream(ctx, s.stream, s.group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

func (s *GroupConsumer[T]) run(ctx context.Context) {
	// 先以 ID 游標讀完自己名下的 pending 訊息，再切換成 ">" 讀新訊息
	pending := true
	cursor := "0"
	for {
		if ctx.Err() != nil {
			return
		}
		id := ">"
		if pending {
			id = cursor
		}
		messages, err := s.read(ctx, id)
		if err != nil {
			if errors.Is(err, redis.Nil) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			s.logger.Error("read stream error", slog.Any("error", err))
			if !s.sleep(ctx) {
				return
			}
			continue
		}
		if pending {
			if len(messages) == 0 {
				pending = false
				continue
			}
			cursor = messages[len(messages)-1].ID
		}
		for _, message := range messages {
			if !s.deliver(ctx, message) {
				return
			}
		}
	}
}

func (s *GroupConsumer[T]) read(ctx context.Context, id string) ([]redis.XMessage, error) {
	args := &redis.XReadGroupArgs{
		Group:    s.group,
		Consumer: s.consumer,
		Streams:  []string{s.stream, id},
		Count:    1,
		Block:    -1,
	}
	if id == ">" {
		args.Block = s.options.blockTimeout
	}
	streams, err := s.client.XReadGroup(ctx, args).Result()
	if err != nil {
		return nil, err
	}
	if len(streams) == 0 {
		return nil, nil
	}
	return streams[0].Messages, nil
}

// deliver 回傳 false 代表 ctx 已取消
func (s *GroupConsumer[T]) deliver(ctx context.Context, message redis.XMessage) bool {
	data, err := s.options.parseFunc(message.Values)
	if err != nil {
		// 解碼失敗重試也不會成功，直接進 dead-letter
		s.logger.Error("failed to parse message", slog.String("messageId", message.ID), slog.Any("error", err))
		msg := s.wrap(message, data)
		if dlErr := msg.Fail(ctx, err); dlErr != nil {
			s.logger.Error("failed to dead-letter message", slog.String("messageId", message.ID), slog.Any("error", dlErr))
		}
		return ctx.Err() == nil
	}

	select {
	case <-ctx.Done():
		return false
	case s.downStream <- s.wrap(message, data):
		return true
	}
}

func (s *GroupConsumer[T]) wrap(message redis.XMessage, data T) *Message[T] {
	return &Message[T]{
		Data:   data,
		ID:     message.ID,
		client: s.client,
		stream: s.stream,
		group:  s.group,
		raw:    message.Values,
	}
}

func (s *GroupConsumer[T]) sleep(ctx context.Context) bool {
	timer := time.NewTimer(s.options.retryDelay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
