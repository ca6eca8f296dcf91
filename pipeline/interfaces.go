package pipeline

//go:generate mockgen -source=interfaces.go -destination=mock.go -package=pipeline

import (
	"context"
	"io"

	"lance/models"
)

// Email 一封待寄出的信
type Email struct {
	To      string
	Subject string
	Body    string
}

// Generator 產生結束拍賣的報告與通知內容
type Generator interface {
	Report(auction models.EndedAuction) (string, error)
	WinnerEmail(auction models.EndedAuction) (Email, error)
	ChatPost(auction models.EndedAuction) (string, error)
}

// Notifier 對外通知，只回報成功與否，失敗時自行記錄
type Notifier interface {
	SendEmail(ctx context.Context, email Email) bool
	SendChat(ctx context.Context, content string) bool
}

// Deduper 判斷一個拍賣的結束事件是否第一次出現
type Deduper interface {
	FirstSeen(ctx context.Context, auctionID string) (bool, error)
}

// Archiver 保存拍賣結果，重複保存同一個拍賣不會覆寫
type Archiver interface {
	Archive(ctx context.Context, result *models.AuctionResult) (bool, error)
}

// ReportUploader 上傳報告並返回公開網址
type ReportUploader interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader) (string, error)
}
