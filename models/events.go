package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// 即時更新事件類型
const (
	EventConnected     = "connected"
	EventNewBid        = "new_bid"
	EventAuctionClosed = "auction_closed"
	EventAuctionEnded  = "auction_ended"
)

// LiveUpdate 推送給觀看者的即時事件
type LiveUpdate struct {
	Type         string           `json:"type"`
	AuctionID    string           `json:"auction_id"`
	CurrentPrice *decimal.Decimal `json:"current_price,omitempty"`
	Winner       string           `json:"winner,omitempty"`
	WinnerID     string           `json:"winner_id,omitempty"`
	Bid          *Bid             `json:"bid,omitempty"`
}

// AuctionEnded 拍賣結束時交給後續流程的唯一事件
type AuctionEnded struct {
	Type      string       `json:"type"`
	Timestamp time.Time    `json:"timestamp"`
	Auction   EndedAuction `json:"auction"`
}

// EndedAuction 拍賣結束時的完整快照
type EndedAuction struct {
	AuctionID     string          `json:"auction_id"`
	Title         string          `json:"title"`
	Description   string          `json:"description"`
	StartPrice    decimal.Decimal `json:"start_price"`
	FinalPrice    decimal.Decimal `json:"current_price"`
	BidCount      int64           `json:"bid_count"`
	WinnerName    string          `json:"winner_name"`
	WinnerID      string          `json:"winner_id"`
	WinnerContact string          `json:"winner_email"`
	CreatedAt     time.Time       `json:"created_at"`
	EndTime       time.Time       `json:"end_time"`
	Bids          []Bid           `json:"bids"`
}

// HasWinner 檢查拍賣是否有得標者
func (e EndedAuction) HasWinner() bool {
	return e.WinnerID != ""
}
