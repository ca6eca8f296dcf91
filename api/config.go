package api

import (
	"time"

	"github.com/shopspring/decimal"
)

type ServerConfig struct {
	// ID 實例名稱，用於日誌與 consumer 名稱
	ID string

	Redis   RedisConfig
	Auction AuctionConfig
	Sweeper SweeperConfig
	Handoff HandoffConfig
}

type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	KeyPrefix string
	Timeout   time.Duration
}

type AuctionConfig struct {
	Retention    time.Duration
	MinIncrement decimal.Decimal
	MaxAttempts  int
}

type SweeperConfig struct {
	Enabled  bool
	Interval time.Duration
	LockKey  string
}

type HandoffConfig struct {
	// Channel 結束事件的 Pub/Sub channel
	Channel string
	// Stream 不為空時結束事件也會寫入這個 Redis Stream
	Stream       string
	StreamMaxLen int64
}
