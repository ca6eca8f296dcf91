package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"lance/models"
)

var (
	ErrNotFound         = errors.New("auction not found")
	ErrAlreadyExists    = errors.New("auction already exists")
	ErrStoreUnavailable = errors.New("auction store unavailable")
)

// SettleOutcome SettleBid 的結果
type SettleOutcome int

const (
	SettleAccepted SettleOutcome = iota
	SettleConflict
	SettleClosed
	SettleExpired
	SettleNotFound
)

func (o SettleOutcome) String() string {
	switch o {
	case SettleAccepted:
		return "accepted"
	case SettleConflict:
		return "conflict"
	case SettleClosed:
		return "closed"
	case SettleExpired:
		return "expired"
	case SettleNotFound:
		return "not_found"
	default:
		return "unknown"
	}
}

type options struct {
	logger    *slog.Logger
	prefix    string
	timeout   time.Duration
	retention time.Duration
	now       func() time.Time
}

type Option func(*options)

// WithLogger 設置日誌記錄器
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithKeyPrefix 設置所有 key 的前綴
func WithKeyPrefix(prefix string) Option {
	return func(o *options) {
		o.prefix = prefix
	}
}

// WithTimeout 設置單次 Redis 操作的逾時
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}

// WithRetention 設置拍賣結束後紀錄保留多久
func WithRetention(d time.Duration) Option {
	return func(o *options) {
		o.retention = d
	}
}

// WithClock 替換時間來源 (測試用)
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// Repository 拍賣在 Redis 上的持久層
type Repository struct {
	client  *redis.Client
	keys    keyspace
	logger  *slog.Logger
	options options
}

func New(client *redis.Client, opts ...Option) *Repository {
	o := options{
		logger:    slog.Default(),
		timeout:   3 * time.Second,
		retention: 24 * time.Hour,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(&o)
	}
	return &Repository{
		client:  client,
		keys:    keyspace{prefix: o.prefix},
		logger:  o.logger.With(slog.String("caller", "Repository")),
		options: o,
	}
}

func (r *Repository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.options.timeout)
}

// storeError 將 Redis 錯誤統一包成 ErrStoreUnavailable
func storeError(op string, err error) error {
	return fmt.Errorf("[%s] %w, err=%w", op, ErrStoreUnavailable, err)
}

// Ping 檢查 Redis 連線
func (r *Repository) Ping(ctx context.Context) error {
	const op = "Repository.Ping"
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	if err := r.client.Ping(ctx).Err(); err != nil {
		return storeError(op, err)
	}
	return nil
}

// Create 寫入新拍賣並加入索引，紀錄在 end_time + retention 後過期
func (r *Repository) Create(ctx context.Context, a *models.Auction) error {
	const op = "Repository.Create"
	ttl := a.EndTime.Sub(r.options.now()) + r.options.retention
	if ttl < time.Second {
		ttl = time.Second
	}

	args := []any{a.ID, int64(ttl / time.Second)}
	args = append(args, toFields(a)...)

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	created, err := createScript.Run(ctx, r.client,
		[]string{r.keys.auction(a.ID), r.keys.active()},
		args...,
	).Int()
	if err != nil {
		return storeError(op, err)
	}
	if created == 0 {
		return fmt.Errorf("[%s] id=%s, err=%w", op, a.ID, ErrAlreadyExists)
	}
	a.PriceVersion = a.CurrentPrice.String()
	return nil
}

// Read 讀取拍賣，不存在時回傳 ErrNotFound
func (r *Repository) Read(ctx context.Context, id string) (*models.Auction, error) {
	const op = "Repository.Read"
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	h, err := r.client.HGetAll(ctx, r.keys.auction(id)).Result()
	if err != nil {
		return nil, storeError(op, err)
	}
	if len(h) == 0 {
		return nil, fmt.Errorf("[%s] id=%s, err=%w", op, id, ErrNotFound)
	}
	return parseAuction(id, h, r.logger), nil
}

// SettleBid 在 current_price 仍等於 expected 時套用出價
// 出價紀錄、價格、得標者、出價次數與即時更新在同一個原子操作內完成，
// CAS 失敗的出價不會留下任何紀錄
func (r *Repository) SettleBid(ctx context.Context, expected string, bid models.Bid) (SettleOutcome, error) {
	const op = "Repository.SettleBid"

	member, err := json.Marshal(bid)
	if err != nil {
		return SettleConflict, fmt.Errorf("[%s] failed to encode bid, err=%w", op, err)
	}
	price := bid.Amount
	update, err := json.Marshal(models.LiveUpdate{
		Type:         models.EventNewBid,
		AuctionID:    bid.AuctionID,
		CurrentPrice: &price,
		Winner:       bid.BidderName,
		WinnerID:     bid.BidderID,
		Bid:          &bid,
	})
	if err != nil {
		return SettleConflict, fmt.Errorf("[%s] failed to encode update, err=%w", op, err)
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	code, err := settleScript.Run(ctx, r.client,
		[]string{r.keys.auction(bid.AuctionID), r.keys.bids(bid.AuctionID)},
		expected,
		bid.Amount.String(),
		bid.BidderID,
		bid.BidderName,
		bid.Contact,
		strconv.FormatInt(bid.Timestamp.UnixMicro(), 10),
		member,
		strconv.FormatInt(r.options.now().UnixMilli(), 10),
		models.BidHistoryLimit,
		r.keys.channel(bid.AuctionID),
		update,
	).Int()
	if err != nil {
		return SettleConflict, storeError(op, err)
	}

	switch code {
	case settleAccepted:
		return SettleAccepted, nil
	case settleConflict:
		return SettleConflict, nil
	case settleNotFound:
		return SettleNotFound, nil
	case settleClosed:
		return SettleClosed, nil
	case settleExpired:
		return SettleExpired, nil
	default:
		return SettleConflict, fmt.Errorf("[%s] unexpected script result %d", op, code)
	}
}

// TryClose 將拍賣轉為 closed，只有一個呼叫者會得到 true
func (r *Repository) TryClose(ctx context.Context, id string) (bool, error) {
	const op = "Repository.TryClose"
	update, err := json.Marshal(models.LiveUpdate{
		Type:      models.EventAuctionClosed,
		AuctionID: id,
	})
	if err != nil {
		return false, fmt.Errorf("[%s] failed to encode update, err=%w", op, err)
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	code, err := tryCloseScript.Run(ctx, r.client,
		[]string{r.keys.auction(id), r.keys.active()},
		id,
		formatTime(r.options.now()),
		r.keys.channel(id),
		update,
	).Int()
	if err != nil {
		return false, storeError(op, err)
	}

	switch code {
	case 1:
		return true, nil
	case 0:
		return false, nil
	default:
		return false, fmt.Errorf("[%s] id=%s, err=%w", op, id, ErrNotFound)
	}
}

// ListActiveIDs 回傳索引中的所有拍賣 ID，可能包含已過期但尚未關閉的拍賣
func (r *Repository) ListActiveIDs(ctx context.Context) ([]string, error) {
	const op = "Repository.ListActiveIDs"
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	ids, err := r.client.SMembers(ctx, r.keys.active()).Result()
	if err != nil {
		return nil, storeError(op, err)
	}
	return ids, nil
}

// ListActive 回傳所有狀態為 active 的拍賣，依結束時間排序
func (r *Repository) ListActive(ctx context.Context) ([]*models.Auction, error) {
	const op = "Repository.ListActive"
	ids, err := r.ListActiveIDs(ctx)
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []*models.Auction{}, nil
	}

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	pipe := r.client.Pipeline()
	cmds := make([]*redis.MapStringStringCmd, len(ids))
	for i, id := range ids {
		cmds[i] = pipe.HGetAll(ctx, r.keys.auction(id))
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, storeError(op, err)
	}

	auctions := make([]*models.Auction, 0, len(ids))
	for i, cmd := range cmds {
		h := cmd.Val()
		if len(h) == 0 {
			continue
		}
		a := parseAuction(ids[i], h, r.logger)
		if a.Status != models.StatusActive {
			continue
		}
		auctions = append(auctions, a)
	}
	slices.SortFunc(auctions, func(a, b *models.Auction) int {
		return a.EndTime.Compare(b.EndTime)
	})
	return auctions, nil
}

// Bids 依時間由新到舊回傳出價紀錄，limit 會被限制在 1 到 BidHistoryLimit 之間
func (r *Repository) Bids(ctx context.Context, id string, limit int) ([]models.Bid, error) {
	const op = "Repository.Bids"
	limit = min(max(limit, 1), models.BidHistoryLimit)

	ctx, cancel := r.withTimeout(ctx)
	defer cancel()
	members, err := r.client.ZRevRange(ctx, r.keys.bids(id), 0, int64(limit-1)).Result()
	if err != nil {
		return nil, storeError(op, err)
	}

	bids := make([]models.Bid, 0, len(members))
	for _, member := range members {
		var bid models.Bid
		if err := json.Unmarshal([]byte(member), &bid); err != nil {
			r.logger.Warn("skip undecodable bid", slog.String("auctionId", id), slog.Any("error", err))
			continue
		}
		bids = append(bids, bid)
	}
	return bids, nil
}
