package pipeline

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"lance/models"
)

func setupArchiver(t *testing.T) (*GormArchiver, *gorm.DB) {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(filepath.Join(t.TempDir(), "archive.db")), &gorm.Config{
		Logger: logger.Discard,
	})
	require.NoError(t, err)
	archiver := NewGormArchiver(db)
	require.NoError(t, archiver.Migrate(context.Background()))
	return archiver, db
}

func TestGormArchiver_Archive(t *testing.T) {
	archiver, db := setupArchiver(t)
	ctx := context.Background()

	row := models.NewAuctionResult(endedEvent("a1", true).Auction)
	row.ReportURL = "https://cdn.example.com/reports/a1.txt"
	created, err := archiver.Archive(ctx, &row)
	require.NoError(t, err)
	assert.True(t, created)

	// 重複的事件不會覆寫
	dup := models.NewAuctionResult(endedEvent("a1", false).Auction)
	created, err = archiver.Archive(ctx, &dup)
	require.NoError(t, err)
	assert.False(t, created)

	var count int64
	require.NoError(t, db.Model(&models.AuctionResult{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	var stored struct {
		WinnerID   string
		BidCount   int64
		ReportURL  string
		FinalPrice decimal.Decimal
	}
	require.NoError(t, db.Model(&models.AuctionResult{}).
		Select("winner_id, bid_count, report_url, final_price").
		Where("auction_id = ?", "a1").
		Scan(&stored).Error)
	assert.Equal(t, "alice", stored.WinnerID)
	assert.Equal(t, int64(2), stored.BidCount)
	assert.Equal(t, "https://cdn.example.com/reports/a1.txt", stored.ReportURL)
	assert.True(t, stored.FinalPrice.Equal(decimal.RequireFromString("120.5")))
}
