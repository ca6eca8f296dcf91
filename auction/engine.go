package auction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"

	"lance/models"
	"lance/repository"
)

// Store 拍賣持久層，由 repository.Repository 實作
type Store interface {
	Create(ctx context.Context, a *models.Auction) error
	Read(ctx context.Context, id string) (*models.Auction, error)
	SettleBid(ctx context.Context, expected string, bid models.Bid) (repository.SettleOutcome, error)
	TryClose(ctx context.Context, id string) (bool, error)
	ListActiveIDs(ctx context.Context) ([]string, error)
	ListActive(ctx context.Context) ([]*models.Auction, error)
	Bids(ctx context.Context, id string, limit int) ([]models.Bid, error)
}

// BidRequest 一次出價
type BidRequest struct {
	AuctionID  string
	BidderID   string
	BidderName string
	Contact    string
	Amount     decimal.Decimal
}

// CreateRequest 建立拍賣的參數，EndTime 與 DurationHours 擇一，都沒有時預設 24 小時
type CreateRequest struct {
	Title         string
	Description   *string
	StartingPrice decimal.Decimal
	OwnerID       string
	EndTime       *time.Time
	DurationHours *float64
}

// Detail 拍賣與最新的出價紀錄
type Detail struct {
	Auction *models.Auction `json:"auction"`
	Bids    []models.Bid    `json:"bids"`
}

const (
	defaultDuration    = 24 * time.Hour
	detailBidLimit     = 20
	defaultMaxAttempts = 3
)

type engineOptions struct {
	logger       *slog.Logger
	minIncrement decimal.Decimal
	maxAttempts  int
	now          func() time.Time
}

type EngineOption func(*engineOptions)

// WithEngineLogger 設置日誌記錄器
func WithEngineLogger(logger *slog.Logger) EngineOption {
	return func(o *engineOptions) {
		o.logger = logger
	}
}

// WithMinIncrement 設置最小加價比例，例如 0.05 代表 5%
func WithMinIncrement(ratio decimal.Decimal) EngineOption {
	return func(o *engineOptions) {
		o.minIncrement = ratio
	}
}

// WithMaxAttempts 設置 CAS 衝突時的最大嘗試次數
func WithMaxAttempts(n int) EngineOption {
	return func(o *engineOptions) {
		o.maxAttempts = n
	}
}

// WithEngineClock 替換時間來源 (測試用)
func WithEngineClock(now func() time.Time) EngineOption {
	return func(o *engineOptions) {
		o.now = now
	}
}

// Engine 負責出價驗證、結算與拍賣的結束轉換
type Engine struct {
	store       Store
	handoff     *Handoff
	textPolicy  *bluemonday.Policy
	htmlPolicy  *bluemonday.Policy
	increment   decimal.Decimal
	maxAttempts int
	now         func() time.Time
	logger      *slog.Logger
}

// NewEngine handoff 為 nil 時結束轉換不會發佈結束事件
func NewEngine(store Store, handoff *Handoff, opts ...EngineOption) *Engine {
	options := engineOptions{
		logger:       slog.Default(),
		minIncrement: decimal.RequireFromString("0.05"),
		maxAttempts:  defaultMaxAttempts,
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.maxAttempts < 1 {
		options.maxAttempts = 1
	}

	return &Engine{
		store:       store,
		handoff:     handoff,
		textPolicy:  bluemonday.StrictPolicy(),
		htmlPolicy:  bluemonday.UGCPolicy(),
		increment:   decimal.NewFromInt(1).Add(options.minIncrement),
		maxAttempts: options.maxAttempts,
		now:         options.now,
		logger:      options.logger.With(slog.String("caller", "Engine")),
	}
}

// PlaceBid 驗證並套用一筆出價
//
// 驗證順序: 拍賣存在 -> 仍在進行 -> 高於目前價格 -> 達到最小加價 -> 不是賣家本人
// CAS 衝突時重新讀取並從頭驗證，超過 maxAttempts 回傳 ErrConflictRetry。
// 通過第一步之後不再理會呼叫端的取消，一定會得到明確的結果
func (e *Engine) PlaceBid(ctx context.Context, req BidRequest) (*models.Bid, error) {
	const op = "Engine.PlaceBid"

	req.AuctionID = strings.TrimSpace(req.AuctionID)
	req.BidderID = strings.TrimSpace(req.BidderID)
	switch {
	case req.AuctionID == "":
		return nil, reject(ErrValidation, "auction id is required")
	case req.BidderID == "":
		return nil, reject(ErrValidation, "user id is required")
	case !req.Amount.IsPositive():
		return nil, reject(ErrValidation, "amount must be greater than zero")
	}
	if strings.TrimSpace(req.BidderName) == "" {
		req.BidderName = "User_" + req.BidderID
	}

	logger := e.logger.With(slog.String("auctionId", req.AuctionID), slog.String("bidderId", req.BidderID))

	for attempt := 1; attempt <= e.maxAttempts; attempt++ {
		a, err := e.store.Read(ctx, req.AuctionID)
		if err != nil {
			return nil, fmt.Errorf("[%s] %w", op, err)
		}
		ctx = context.WithoutCancel(ctx)

		now := e.now()
		if !a.IsActive(now) {
			e.closeQuietly(ctx, a.ID)
			return nil, reject(ErrAuctionEnded, "auction has ended")
		}
		if err := e.checkAmount(a, req); err != nil {
			return nil, err
		}

		bid := models.Bid{
			ID:         uuid.NewString(),
			AuctionID:  a.ID,
			BidderID:   req.BidderID,
			BidderName: req.BidderName,
			Contact:    req.Contact,
			Amount:     req.Amount,
			Timestamp:  now.UTC().Truncate(time.Microsecond),
		}
		outcome, err := e.store.SettleBid(ctx, a.PriceVersion, bid)
		if err != nil {
			return nil, fmt.Errorf("[%s] %w", op, err)
		}

		switch outcome {
		case repository.SettleAccepted:
			logger.Info("bid accepted",
				slog.String("bidId", bid.ID),
				slog.String("amount", bid.Amount.String()),
				slog.Int("attempt", attempt),
			)
			return &bid, nil
		case repository.SettleConflict:
			logger.Debug("price changed during settlement, retrying", slog.Int("attempt", attempt))
		case repository.SettleClosed, repository.SettleExpired:
			e.closeQuietly(ctx, a.ID)
			return nil, reject(ErrAuctionEnded, "auction has ended")
		case repository.SettleNotFound:
			return nil, fmt.Errorf("[%s] id=%s, err=%w", op, a.ID, ErrNotFound)
		}
	}

	logger.Warn("bid abandoned after repeated conflicts", slog.Int("attempts", e.maxAttempts))
	return nil, reject(ErrConflictRetry, "too many concurrent bids, please retry")
}

func (e *Engine) checkAmount(a *models.Auction, req BidRequest) error {
	// 毀損的 current_price 會讀成 0，以起標價為下限
	floor := decimal.Max(a.CurrentPrice, a.StartingPrice)
	if !req.Amount.GreaterThan(floor) {
		return reject(ErrTooLow, fmt.Sprintf("bid must be higher than current price %s", floor.StringFixed(2)))
	}
	minimum := floor.Mul(e.increment)
	if req.Amount.LessThan(minimum) {
		return reject(ErrBelowMinimumIncrement, fmt.Sprintf("minimum bid is %s", minimum.StringFixed(2)))
	}
	if req.BidderID == a.OwnerID {
		return reject(ErrSelfBid, "you cannot bid on your own auction")
	}
	return nil
}

// Close 執行結束轉換，只有真正完成轉換的呼叫者會觸發結束事件
func (e *Engine) Close(ctx context.Context, id string) (bool, error) {
	const op = "Engine.Close"
	ctx = context.WithoutCancel(ctx)

	closed, err := e.store.TryClose(ctx, id)
	if err != nil {
		return false, fmt.Errorf("[%s] %w", op, err)
	}
	if !closed {
		return false, nil
	}

	e.logger.Info("auction closed", slog.String("auctionId", id))
	if e.handoff != nil {
		e.handoff.Publish(ctx, id)
	}
	return true, nil
}

func (e *Engine) closeQuietly(ctx context.Context, id string) {
	if _, err := e.Close(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
		e.logger.Error("closing transition failed", slog.String("auctionId", id), slog.Any("error", err))
	}
}

// CloseByOwner 賣家手動結束拍賣，已結束時回傳 false
func (e *Engine) CloseByOwner(ctx context.Context, id, userID string) (bool, error) {
	const op = "Engine.CloseByOwner"
	a, err := e.store.Read(ctx, id)
	if err != nil {
		return false, fmt.Errorf("[%s] %w", op, err)
	}
	if a.OwnerID != userID {
		return false, reject(ErrForbidden, "only the owner can close this auction")
	}
	return e.Close(ctx, id)
}

// CreateAuction 驗證並建立拍賣
func (e *Engine) CreateAuction(ctx context.Context, req CreateRequest) (*models.Auction, error) {
	const op = "Engine.CreateAuction"
	now := e.now().UTC()

	title := strings.TrimSpace(e.textPolicy.Sanitize(req.Title))
	switch {
	case title == "":
		return nil, reject(ErrValidation, "title is required")
	case strings.TrimSpace(req.OwnerID) == "":
		return nil, reject(ErrValidation, "owner id is required")
	case !req.StartingPrice.IsPositive():
		return nil, reject(ErrValidation, "starting price must be greater than zero")
	}

	endTime := now.Add(defaultDuration)
	switch {
	case req.EndTime != nil:
		endTime = req.EndTime.UTC()
	case req.DurationHours != nil:
		if *req.DurationHours <= 0 {
			return nil, reject(ErrValidation, "duration must be greater than zero")
		}
		endTime = now.Add(time.Duration(*req.DurationHours * float64(time.Hour)))
	}
	if !endTime.After(now) {
		return nil, reject(ErrValidation, "end time must be in the future")
	}

	a := &models.Auction{
		ID:            uuid.NewString(),
		Title:         title,
		Description:   strings.TrimSpace(e.htmlPolicy.Sanitize(lo.FromPtr(req.Description))),
		StartingPrice: req.StartingPrice,
		CurrentPrice:  req.StartingPrice,
		EndTime:       endTime,
		CreatedAt:     now,
		OwnerID:       req.OwnerID,
		Status:        models.StatusActive,
	}
	if err := e.store.Create(ctx, a); err != nil {
		return nil, fmt.Errorf("[%s] %w", op, err)
	}
	e.logger.Info("auction created", slog.String("auctionId", a.ID), slog.Time("endTime", a.EndTime))
	return a, nil
}

// Get 拍賣詳情與最新的出價
func (e *Engine) Get(ctx context.Context, id string) (*Detail, error) {
	const op = "Engine.Get"
	a, err := e.store.Read(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("[%s] %w", op, err)
	}
	bids, err := e.store.Bids(ctx, id, detailBidLimit)
	if err != nil {
		return nil, fmt.Errorf("[%s] %w", op, err)
	}
	return &Detail{Auction: a, Bids: bids}, nil
}

// ListActive 進行中的拍賣，已過期但尚未被清掃的拍賣不會出現
func (e *Engine) ListActive(ctx context.Context) ([]*models.Auction, error) {
	const op = "Engine.ListActive"
	auctions, err := e.store.ListActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("[%s] %w", op, err)
	}
	now := e.now()
	return lo.Filter(auctions, func(a *models.Auction, _ int) bool {
		return a.IsActive(now)
	}), nil
}

// Bids 出價紀錄，由新到舊
func (e *Engine) Bids(ctx context.Context, id string, limit int) ([]models.Bid, error) {
	const op = "Engine.Bids"
	if _, err := e.store.Read(ctx, id); err != nil {
		return nil, fmt.Errorf("[%s] %w", op, err)
	}
	bids, err := e.store.Bids(ctx, id, limit)
	if err != nil {
		return nil, fmt.Errorf("[%s] %w", op, err)
	}
	return bids, nil
}
