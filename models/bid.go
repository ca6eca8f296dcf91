package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Bid 代表一筆已被接受的出價，寫入後不再修改
type Bid struct {
	ID         string          `json:"id"`
	AuctionID  string          `json:"auction_id"`
	BidderID   string          `json:"user_id"`
	BidderName string          `json:"username"`
	Contact    string          `json:"contact,omitempty"`
	Amount     decimal.Decimal `json:"amount"`
	Timestamp  time.Time       `json:"timestamp"`
}
