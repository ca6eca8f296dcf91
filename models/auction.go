package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Status 拍賣狀態，只能從 active 轉為 closed
type Status string

const (
	StatusActive Status = "active"
	StatusClosed Status = "closed"
)

// BidHistoryLimit 每個拍賣保留的出價紀錄上限
const BidHistoryLimit = 100

// Winner 目前領先的出價者，尚未有人出價時為 nil
type Winner struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Contact string `json:"contact,omitempty"`
}

// Auction 代表一場限時拍賣
type Auction struct {
	ID            string          `json:"id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	StartingPrice decimal.Decimal `json:"starting_price"`
	CurrentPrice  decimal.Decimal `json:"current_price"`
	EndTime       time.Time       `json:"end_time"`
	CreatedAt     time.Time       `json:"created_at"`
	ClosedAt      time.Time       `json:"closed_at"`
	OwnerID       string          `json:"owner_id"`
	Status        Status          `json:"status"`
	BidCount      int64           `json:"bid_count"`
	Winner        *Winner         `json:"winner"`

	// PriceVersion 儲存時 current_price 的原始文字，出價時作為 CAS 比對值
	PriceVersion string `json:"-"`
}

// IsActive 檢查拍賣在 now 時是否仍可出價
// NOTE: end_time 無法解析時(零值)只依賴 status 判斷
func (a *Auction) IsActive(now time.Time) bool {
	if a.Status != StatusActive {
		return false
	}
	return a.EndTime.IsZero() || now.Before(a.EndTime)
}

// Expired 檢查 end_time 是否已過
func (a *Auction) Expired(now time.Time) bool {
	return !a.EndTime.IsZero() && !now.Before(a.EndTime)
}
