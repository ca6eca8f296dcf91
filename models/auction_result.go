package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AuctionResult 後續流程歸檔的拍賣結果
// 同一個拍賣只會有一筆紀錄，重複的結束事件不會覆寫
type AuctionResult struct {
	gorm.Model

	AuctionID     string          `gorm:"type:varchar(64);uniqueIndex;not null;<-:create"`
	Title         string          `gorm:"type:varchar(255);not null;<-:create"`
	StartPrice    decimal.Decimal `gorm:"type:numeric(18,2);not null;<-:create"`
	FinalPrice    decimal.Decimal `gorm:"type:numeric(18,2);not null;<-:create"`
	BidCount      int64           `gorm:"type:bigint;not null;<-:create"`
	WinnerID      string          `gorm:"type:varchar(255);<-:create"`
	WinnerName    string          `gorm:"type:varchar(255);<-:create"`
	WinnerContact string          `gorm:"type:varchar(255);<-:create"`
	EndTime       time.Time       `gorm:"type:timestamp with time zone;not null;<-:create"`
	ReportURL     string          `gorm:"type:text;<-:create"`
}

// NewAuctionResult 從結束事件建立歸檔紀錄
func NewAuctionResult(e EndedAuction) AuctionResult {
	return AuctionResult{
		AuctionID:     e.AuctionID,
		Title:         e.Title,
		StartPrice:    e.StartPrice,
		FinalPrice:    e.FinalPrice,
		BidCount:      e.BidCount,
		WinnerID:      e.WinnerID,
		WinnerName:    e.WinnerName,
		WinnerContact: e.WinnerContact,
		EndTime:       e.EndTime,
	}
}
