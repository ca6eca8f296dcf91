package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	redisAdapter "lance/adapters/redis"
	"lance/models"
)

var ErrSourceClosed = errors.New("event source closed")

// Worker 從 Pub/Sub 或 Stream 取得結束事件並交給 Processor
type Worker struct {
	processor *Processor
	logger    *slog.Logger
}

func NewWorker(processor *Processor, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Worker{
		processor: processor,
		logger:    logger.With(slog.String("caller", "Worker")),
	}
}

// RunPubSub 訂閱結束事件 channel，直到 ctx 結束
// NOTE: Pub/Sub 沒有持久化，worker 離線期間的事件會遺失
func (w *Worker) RunPubSub(ctx context.Context, bus *redisAdapter.Bus, channel string) error {
	const op = "Worker.RunPubSub"
	sub, err := bus.Subscribe(ctx, channel)
	if err != nil {
		return fmt.Errorf("[%s] %w", op, err)
	}
	defer sub.Close()
	w.logger.Info("listening for ended auctions", slog.String("channel", channel))

	messages := sub.Messages()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("[%s] %w", op, ErrSourceClosed)
			}
			var event models.AuctionEnded
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				w.logger.Warn("undecodable ended event", slog.Any("error", err))
				continue
			}
			if _, err := w.processor.Process(ctx, event); err != nil {
				w.logger.Error("failed to process ended event", slog.Any("error", err))
			}
		}
	}
}

// RunStream 以 consumer group 讀取持久化的結束事件，處理失敗的事件會進入 dead-letter
func (w *Worker) RunStream(ctx context.Context, consumer redisAdapter.IGroupConsumer[models.AuctionEnded]) error {
	const op = "Worker.RunStream"
	if err := consumer.Start(); err != nil {
		return fmt.Errorf("[%s] %w", op, err)
	}
	defer consumer.Close()
	w.logger.Info("consuming ended auction stream")

	messages := consumer.Subscribe()
	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("[%s] %w", op, ErrSourceClosed)
			}
			w.handle(ctx, msg)
		}
	}
}

func (w *Worker) handle(ctx context.Context, msg *redisAdapter.Message[models.AuctionEnded]) {
	logger := w.logger.With(slog.String("messageId", msg.ID))
	// 已開始的事件要完整處理並 ack，不受關閉影響
	ctx = context.WithoutCancel(ctx)

	if _, err := w.processor.Process(ctx, msg.Data); err != nil {
		logger.Error("failed to process ended event", slog.Any("error", err))
		if err := msg.Fail(ctx, err); err != nil {
			logger.Error("failed to dead-letter message", slog.Any("error", err))
		}
		return
	}
	if err := msg.Done(ctx); err != nil {
		logger.Error("failed to ack message", slog.Any("error", err))
	}
}
