package repository

import (
	"log/slog"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"lance/models"
)

// hash 欄位名稱
const (
	fieldID            = "id"
	fieldTitle         = "title"
	fieldDescription   = "description"
	fieldStartingPrice = "starting_price"
	fieldCurrentPrice  = "current_price"
	fieldEndTime       = "end_time"
	fieldEndTimeMs     = "end_time_ms"
	fieldCreatedAt     = "created_at"
	fieldClosedAt      = "closed_at"
	fieldOwnerID       = "owner_id"
	fieldStatus        = "status"
	fieldBidCount      = "bid_count"
	fieldWinnerID      = "winner_id"
	fieldWinnerName    = "winner_name"
	fieldWinnerContact = "winner_contact"
)

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

// toFields 將拍賣轉為 hash 欄位，順序固定以便組成腳本參數
func toFields(a *models.Auction) []any {
	fields := []any{
		fieldID, a.ID,
		fieldTitle, a.Title,
		fieldDescription, a.Description,
		fieldStartingPrice, a.StartingPrice.String(),
		fieldCurrentPrice, a.CurrentPrice.String(),
		fieldEndTime, formatTime(a.EndTime),
		fieldEndTimeMs, strconv.FormatInt(a.EndTime.UnixMilli(), 10),
		fieldCreatedAt, formatTime(a.CreatedAt),
		fieldOwnerID, a.OwnerID,
		fieldStatus, string(a.Status),
		fieldBidCount, strconv.FormatInt(a.BidCount, 10),
	}
	if a.Winner != nil {
		fields = append(fields,
			fieldWinnerID, a.Winner.ID,
			fieldWinnerName, a.Winner.Name,
			fieldWinnerContact, a.Winner.Contact,
		)
	}
	return fields
}

// parseAuction 是唯一將 hash 轉回拍賣的地方
// 單一欄位格式錯誤只會退回零值並記錄警告，不會讓整筆讀取失敗
func parseAuction(id string, h map[string]string, logger *slog.Logger) *models.Auction {
	warn := func(field, value string, err error) {
		logger.Warn("malformed auction field",
			slog.String("auctionId", id),
			slog.String("field", field),
			slog.String("value", value),
			slog.Any("error", err),
		)
	}
	parseDecimal := func(field string) decimal.Decimal {
		v, ok := h[field]
		if !ok || v == "" {
			return decimal.Zero
		}
		d, err := decimal.NewFromString(v)
		if err != nil {
			warn(field, v, err)
			return decimal.Zero
		}
		return d
	}
	parseTime := func(field string) time.Time {
		v, ok := h[field]
		if !ok || v == "" {
			return time.Time{}
		}
		t, err := time.Parse(time.RFC3339Nano, v)
		if err != nil {
			warn(field, v, err)
			return time.Time{}
		}
		return t.UTC()
	}

	a := &models.Auction{
		ID:            id,
		Title:         h[fieldTitle],
		Description:   h[fieldDescription],
		StartingPrice: parseDecimal(fieldStartingPrice),
		CurrentPrice:  parseDecimal(fieldCurrentPrice),
		EndTime:       parseTime(fieldEndTime),
		CreatedAt:     parseTime(fieldCreatedAt),
		ClosedAt:      parseTime(fieldClosedAt),
		OwnerID:       h[fieldOwnerID],
		Status:        models.Status(h[fieldStatus]),
		PriceVersion:  h[fieldCurrentPrice],
	}
	if a.Status != models.StatusActive {
		a.Status = models.StatusClosed
	}

	if v, ok := h[fieldBidCount]; ok && v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			warn(fieldBidCount, v, err)
		} else {
			a.BidCount = n
		}
	}

	if winnerID := h[fieldWinnerID]; winnerID != "" {
		a.Winner = &models.Winner{
			ID:      winnerID,
			Name:    h[fieldWinnerName],
			Contact: h[fieldWinnerContact],
		}
	}
	return a
}
