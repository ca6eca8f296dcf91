package pipeline

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"

	"lance/models"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

func setupMiniredis(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func endedEvent(id string, withWinner bool) models.AuctionEnded {
	end := time.Date(2024, 6, 1, 13, 0, 0, 0, time.UTC)
	auction := models.EndedAuction{
		AuctionID:   id,
		Title:       "Vintage Camera",
		Description: "Leica M3, mint condition",
		StartPrice:  decimal.RequireFromString("100"),
		FinalPrice:  decimal.RequireFromString("100"),
		CreatedAt:   end.Add(-time.Hour),
		EndTime:     end,
	}
	if withWinner {
		auction.FinalPrice = decimal.RequireFromString("120.5")
		auction.BidCount = 2
		auction.WinnerID = "alice"
		auction.WinnerName = "Alice"
		auction.WinnerContact = "alice@example.com"
		auction.Bids = []models.Bid{
			{ID: "b2", AuctionID: id, BidderID: "alice", BidderName: "Alice", Amount: decimal.RequireFromString("120.5"), Timestamp: end.Add(-time.Minute)},
			{ID: "b1", AuctionID: id, BidderID: "bob", BidderName: "Bob", Amount: decimal.RequireFromString("110"), Timestamp: end.Add(-2 * time.Minute)},
		}
	}
	return models.AuctionEnded{
		Type:      "auction_ended",
		Timestamp: end,
		Auction:   auction,
	}
}
