package redis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

type autoRenewMutexOptions struct {
	logger        *slog.Logger
	renewInterval time.Duration
	retryDelay    time.Duration
	expiry        time.Duration
	skipLockError bool
}

type AutoRenewMutexOption func(*autoRenewMutexOptions)

// WithAutoRenewMutexLogger 設置日誌記錄器
func WithAutoRenewMutexLogger(logger *slog.Logger) AutoRenewMutexOption {
	return func(o *autoRenewMutexOptions) {
		o.logger = logger
	}
}

// WithAutoRenewMutexRenewInterval 設置續期間隔，預設為 expiry 的 1/3
func WithAutoRenewMutexRenewInterval(d time.Duration) AutoRenewMutexOption {
	return func(o *autoRenewMutexOptions) {
		o.renewInterval = d
	}
}

// WithAutoRenewMutexRetryDelay 設置搶鎖失敗後的等待時間
func WithAutoRenewMutexRetryDelay(d time.Duration) AutoRenewMutexOption {
	return func(o *autoRenewMutexOptions) {
		o.retryDelay = d
	}
}

// WithAutoRenewMutexExpiry 設置鎖的過期時間
func WithAutoRenewMutexExpiry(d time.Duration) AutoRenewMutexOption {
	return func(o *autoRenewMutexOptions) {
		o.expiry = d
	}
}

// WithAutoRenewMutexSkipLockError 連 Redis 通訊錯誤也持續重試
func WithAutoRenewMutexSkipLockError(skip bool) AutoRenewMutexOption {
	return func(o *autoRenewMutexOptions) {
		o.skipLockError = skip
	}
}

// AutoRenewMutex 持有期間會在背景持續延長過期時間，
// 續期失敗時 Lock 回傳的 context 會被取消，持有者據此得知已失去鎖
type AutoRenewMutex struct {
	mutex    *redsync.Mutex
	key      string
	cancel   context.CancelFunc
	renewing bool
	mu       sync.Mutex
	wg       sync.WaitGroup
	logger   *slog.Logger
	options  autoRenewMutexOptions
}

// NewAutoRenewMutex 建立以 key 為名的分散式鎖
func NewAutoRenewMutex(client *redis.Client, key string, opts ...AutoRenewMutexOption) *AutoRenewMutex {
	options := autoRenewMutexOptions{
		logger:     slog.Default(),
		expiry:     8 * time.Second,
		retryDelay: 500 * time.Millisecond,
	}
	for _, opt := range opts {
		opt(&options)
	}
	if options.renewInterval <= 0 {
		options.renewInterval = options.expiry / 3
	}

	rs := redsync.New(goredis.NewPool(client))
	return &AutoRenewMutex{
		mutex: rs.NewMutex(
			key,
			redsync.WithExpiry(options.expiry),
			redsync.WithTries(1),
			redsync.WithRetryDelay(options.retryDelay),
		),
		key:     key,
		logger:  options.logger.With(slog.String("caller", "AutoRenewMutex"), slog.String("key", key)),
		options: options,
	}
}

// Lock 阻塞直到取得鎖或 ctx 取消
func (m *AutoRenewMutex) Lock(ctx context.Context) (context.Context, error) {
	const op = "AutoRenewMutex.Lock"
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-timer.C:
			err := m.mutex.LockContext(ctx)
			if err == nil {
				lockCtx, cancel := context.WithCancel(ctx)
				m.mu.Lock()
				m.cancel = cancel
				m.mu.Unlock()
				m.startAutoRenew(lockCtx)
				m.logger.Debug("lock acquired")
				return lockCtx, nil
			}
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			var redisErr *redsync.RedisError
			if !m.options.skipLockError && errors.As(err, &redisErr) {
				return nil, fmt.Errorf("[%s] failed to acquire lock, err=%w", op, err)
			}
			timer.Reset(m.options.retryDelay)
		}
	}
}

// Unlock 停止續期並釋放鎖
func (m *AutoRenewMutex) Unlock() (bool, error) {
	m.stopAutoRenew()
	m.wg.Wait()
	return m.mutex.Unlock()
}

// Valid 鎖尚未過期且仍在續期中
func (m *AutoRenewMutex) Valid() bool {
	m.mu.Lock()
	renewing := m.renewing
	m.mu.Unlock()
	return renewing && time.Now().Before(m.mutex.Until())
}

func (m *AutoRenewMutex) startAutoRenew(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.renewing {
		return
	}
	m.renewing = true

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		ticker := time.NewTicker(m.options.renewInterval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ok, err := m.mutex.ExtendContext(ctx)
				if err != nil || !ok {
					m.logger.Warn("lock lost", slog.Any("error", err))
					m.stopAutoRenew()
					return
				}
			}
		}
	}()
}

func (m *AutoRenewMutex) stopAutoRenew() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.renewing {
		return
	}
	m.renewing = false
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
}
