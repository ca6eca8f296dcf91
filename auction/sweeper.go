package auction

import (
	"context"
	"errors"
	"log/slog"
	"time"

	redisAdapter "lance/adapters/redis"
	"lance/models"
)

// SweepStore 清掃需要的讀取操作
type SweepStore interface {
	ListActiveIDs(ctx context.Context) ([]string, error)
	Read(ctx context.Context, id string) (*models.Auction, error)
}

type sweeperOptions struct {
	logger     *slog.Logger
	interval   time.Duration
	retryDelay time.Duration
	mutex      redisAdapter.IAutoRenewMutex
	now        func() time.Time
}

type SweeperOption func(*sweeperOptions)

// WithSweeperLogger 設置日誌記錄器
func WithSweeperLogger(logger *slog.Logger) SweeperOption {
	return func(o *sweeperOptions) {
		o.logger = logger
	}
}

// WithSweeperInterval 設置清掃間隔
func WithSweeperInterval(d time.Duration) SweeperOption {
	return func(o *sweeperOptions) {
		o.interval = d
	}
}

// WithSweeperLeaderLock 只在持有鎖時清掃，多個實例同時啟用時只有一個會工作
func WithSweeperLeaderLock(mutex redisAdapter.IAutoRenewMutex) SweeperOption {
	return func(o *sweeperOptions) {
		o.mutex = mutex
	}
}

// WithSweeperRetryDelay 設置搶鎖失敗後的等待時間
func WithSweeperRetryDelay(d time.Duration) SweeperOption {
	return func(o *sweeperOptions) {
		o.retryDelay = d
	}
}

// WithSweeperClock 替換時間來源 (測試用)
func WithSweeperClock(now func() time.Time) SweeperOption {
	return func(o *sweeperOptions) {
		o.now = now
	}
}

// Sweeper 定期關閉已過期但沒有人出價觸發結束的拍賣
// 正確性不依賴只有一個 Sweeper，TryClose 本身是條件式的
type Sweeper struct {
	store   SweepStore
	engine  *Engine
	logger  *slog.Logger
	options sweeperOptions
}

func NewSweeper(store SweepStore, engine *Engine, opts ...SweeperOption) *Sweeper {
	options := sweeperOptions{
		logger:     slog.Default(),
		interval:   time.Minute,
		retryDelay: 5 * time.Second,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(&options)
	}
	return &Sweeper{
		store:   store,
		engine:  engine,
		logger:  options.logger.With(slog.String("caller", "Sweeper")),
		options: options,
	}
}

// Run 阻塞直到 ctx 取消
func (s *Sweeper) Run(ctx context.Context) {
	s.logger.Info("sweeper started", slog.Duration("interval", s.options.interval))
	defer s.logger.Info("sweeper stopped")

	for ctx.Err() == nil {
		workCtx := ctx
		if s.options.mutex != nil {
			lockCtx, err := s.options.mutex.Lock(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				s.logger.Error("failed to acquire leader lock", slog.Any("error", err))
				if !sleep(ctx, s.options.retryDelay) {
					return
				}
				continue
			}
			s.logger.Info("leader lock acquired")
			workCtx = lockCtx
		}

		s.loop(workCtx)

		if s.options.mutex != nil {
			if _, err := s.options.mutex.Unlock(); err != nil {
				s.logger.Debug("leader lock release failed", slog.Any("error", err))
			}
			if ctx.Err() == nil {
				s.logger.Warn("leader lock lost, waiting to reacquire")
			}
		}
	}
}

func (s *Sweeper) loop(ctx context.Context) {
	ticker := time.NewTicker(s.options.interval)
	defer ticker.Stop()

	for {
		s.Sweep(ctx)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Sweep 清掃一輪，回傳本輪關閉的拍賣數量
// 單一拍賣失敗只記錄並跳過，下一輪會再試
func (s *Sweeper) Sweep(ctx context.Context) int {
	ids, err := s.store.ListActiveIDs(ctx)
	if err != nil {
		s.logger.Error("failed to list active auctions", slog.Any("error", err))
		return 0
	}

	closed := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			break
		}
		logger := s.logger.With(slog.String("auctionId", id))

		a, err := s.store.Read(ctx, id)
		if errors.Is(err, ErrNotFound) {
			// 紀錄已過期被刪除，TryClose 會順便清掉索引
			if _, err := s.engine.Close(ctx, id); err != nil && !errors.Is(err, ErrNotFound) {
				logger.Error("failed to drop stale index entry", slog.Any("error", err))
			}
			continue
		}
		if err != nil {
			logger.Error("failed to read auction", slog.Any("error", err))
			continue
		}
		if a.Status == models.StatusActive {
			if a.EndTime.IsZero() {
				logger.Warn("auction has no readable end time, skipped")
				continue
			}
			if !a.Expired(s.options.now()) {
				continue
			}
		}

		ok, err := s.engine.Close(ctx, id)
		if err != nil {
			logger.Error("failed to close expired auction", slog.Any("error", err))
			continue
		}
		if ok {
			closed++
		}
	}

	if closed > 0 {
		s.logger.Info("sweep finished", slog.Int("checked", len(ids)), slog.Int("closed", closed))
	}
	return closed
}

func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
