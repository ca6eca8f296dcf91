package auction

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	redisAdapter "lance/adapters/redis"
	"lance/models"
)

// DefaultEndedChannel 拍賣結束事件的 channel，與各拍賣的即時更新 channel 分開
const DefaultEndedChannel = "auctions:ended"

// Publisher 發佈 Pub/Sub 訊息，由 redis.Bus 實作
type Publisher interface {
	Publish(ctx context.Context, channel string, payload []byte) (int64, error)
}

// SnapshotStore 建立結束快照需要的讀取操作
type SnapshotStore interface {
	Read(ctx context.Context, id string) (*models.Auction, error)
	Bids(ctx context.Context, id string, limit int) ([]models.Bid, error)
}

type handoffOptions struct {
	logger  *slog.Logger
	channel string
	stream  redisAdapter.IProducer[models.AuctionEnded]
	now     func() time.Time
}

type HandoffOption func(*handoffOptions)

// WithHandoffLogger 設置日誌記錄器
func WithHandoffLogger(logger *slog.Logger) HandoffOption {
	return func(o *handoffOptions) {
		o.logger = logger
	}
}

// WithHandoffChannel 設置結束事件的 channel
func WithHandoffChannel(channel string) HandoffOption {
	return func(o *handoffOptions) {
		o.channel = channel
	}
}

// WithHandoffStream 額外把結束事件寫入 Redis Stream，讓 worker 以 consumer group 取得至少一次的投遞
func WithHandoffStream(producer redisAdapter.IProducer[models.AuctionEnded]) HandoffOption {
	return func(o *handoffOptions) {
		o.stream = producer
	}
}

// WithHandoffClock 替換時間來源 (測試用)
func WithHandoffClock(now func() time.Time) HandoffOption {
	return func(o *handoffOptions) {
		o.now = now
	}
}

// Handoff 組出拍賣結束快照並交給後續流程
// Pub/Sub 的投遞是 at-most-once，worker 不在線時事件會遺失
type Handoff struct {
	store   SnapshotStore
	bus     Publisher
	channel string
	stream  redisAdapter.IProducer[models.AuctionEnded]
	now     func() time.Time
	logger  *slog.Logger
}

func NewHandoff(store SnapshotStore, bus Publisher, opts ...HandoffOption) *Handoff {
	options := handoffOptions{
		logger:  slog.Default(),
		channel: DefaultEndedChannel,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(&options)
	}
	return &Handoff{
		store:   store,
		bus:     bus,
		channel: options.channel,
		stream:  options.stream,
		now:     options.now,
		logger:  options.logger.With(slog.String("caller", "Handoff")),
	}
}

// Snapshot 讀取拍賣與最多 BidHistoryLimit 筆出價，組成結束事件
func (h *Handoff) Snapshot(ctx context.Context, id string) (models.AuctionEnded, error) {
	const op = "Handoff.Snapshot"
	a, err := h.store.Read(ctx, id)
	if err != nil {
		return models.AuctionEnded{}, fmt.Errorf("[%s] %w", op, err)
	}
	bids, err := h.store.Bids(ctx, id, models.BidHistoryLimit)
	if err != nil {
		return models.AuctionEnded{}, fmt.Errorf("[%s] %w", op, err)
	}

	ended := models.EndedAuction{
		AuctionID:   a.ID,
		Title:       a.Title,
		Description: a.Description,
		StartPrice:  a.StartingPrice,
		FinalPrice:  a.CurrentPrice,
		BidCount:    a.BidCount,
		CreatedAt:   a.CreatedAt,
		EndTime:     a.EndTime,
		Bids:        bids,
	}
	if a.Winner != nil {
		ended.WinnerID = a.Winner.ID
		ended.WinnerName = a.Winner.Name
		ended.WinnerContact = a.Winner.Contact
	}
	return models.AuctionEnded{
		Type:      models.EventAuctionEnded,
		Timestamp: h.now().UTC(),
		Auction:   ended,
	}, nil
}

// Publish 發佈結束事件，失敗只記錄不回傳
func (h *Handoff) Publish(ctx context.Context, id string) {
	logger := h.logger.With(slog.String("auctionId", id))

	event, err := h.Snapshot(ctx, id)
	if err != nil {
		logger.Error("failed to build auction snapshot", slog.Any("error", err))
		return
	}
	payload, err := json.Marshal(event)
	if err != nil {
		logger.Error("failed to encode auction snapshot", slog.Any("error", err))
		return
	}

	receivers, err := h.bus.Publish(ctx, h.channel, payload)
	if err != nil {
		logger.Error("failed to publish auction ended event", slog.Any("error", err))
	} else {
		if receivers == 0 {
			logger.Warn("auction ended event had no subscribers")
		}
		logger.Info("auction ended event published",
			slog.Int64("receivers", receivers),
			slog.Int64("bidCount", event.Auction.BidCount),
		)
	}

	if h.stream != nil {
		if err := h.stream.Publish(event); err != nil {
			logger.Error("failed to append auction ended event to stream", slog.Any("error", err))
		}
	}
}
