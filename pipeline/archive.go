package pipeline

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"lance/models"
)

// GormArchiver 將拍賣結果寫入資料庫
type GormArchiver struct {
	db *gorm.DB
}

func NewGormArchiver(db *gorm.DB) *GormArchiver {
	return &GormArchiver{db: db}
}

// Migrate 建立或更新結果資料表
func (a *GormArchiver) Migrate(ctx context.Context) error {
	const op = "GormArchiver.Migrate"
	if err := a.db.WithContext(ctx).AutoMigrate(&models.AuctionResult{}); err != nil {
		return fmt.Errorf("[%s] Fail to migrate, err=%w", op, err)
	}
	return nil
}

// Archive 同一個拍賣已存在時不寫入並返回 false
func (a *GormArchiver) Archive(ctx context.Context, result *models.AuctionResult) (bool, error) {
	const op = "GormArchiver.Archive"
	tx := a.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "auction_id"}},
			DoNothing: true,
		}).
		Create(result)
	if tx.Error != nil {
		return false, fmt.Errorf("[%s] Fail to archive auction, id=%s, err=%w", op, result.AuctionID, tx.Error)
	}
	return tx.RowsAffected > 0, nil
}
