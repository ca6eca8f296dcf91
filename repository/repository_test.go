package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lance/models"
)

var testNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func setupRepository(t *testing.T, opts ...Option) (*Repository, *redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	opts = append([]Option{
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithClock(func() time.Time { return testNow }),
	}, opts...)
	return New(client, opts...), client, mr
}

func newAuction(price string) *models.Auction {
	p := decimal.RequireFromString(price)
	return &models.Auction{
		ID:            uuid.NewString(),
		Title:         "Vintage camera",
		Description:   "Leica M3",
		StartingPrice: p,
		CurrentPrice:  p,
		EndTime:       testNow.Add(time.Hour),
		CreatedAt:     testNow,
		OwnerID:       "owner",
		Status:        models.StatusActive,
	}
}

func newBid(auctionID, bidder, amount string, ts time.Time) models.Bid {
	return models.Bid{
		ID:         uuid.NewString(),
		AuctionID:  auctionID,
		BidderID:   bidder,
		BidderName: "User_" + bidder,
		Contact:    bidder + "@example.com",
		Amount:     decimal.RequireFromString(amount),
		Timestamp:  ts,
	}
}

func TestRepository_CreateAndRead(t *testing.T) {
	repo, _, mr := setupRepository(t)
	ctx := context.Background()
	a := newAuction("100")

	require.NoError(t, repo.Create(ctx, a))
	assert.Equal(t, "100", a.PriceVersion)

	got, err := repo.Read(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, a.Title, got.Title)
	assert.True(t, got.CurrentPrice.Equal(decimal.NewFromInt(100)))
	assert.True(t, got.EndTime.Equal(a.EndTime))
	assert.Equal(t, models.StatusActive, got.Status)
	assert.Zero(t, got.BidCount)
	assert.Nil(t, got.Winner)
	assert.Equal(t, "100", got.PriceVersion)

	ids, err := repo.ListActiveIDs(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{a.ID}, ids)

	// end_time 之後再保留 24 小時
	assert.Equal(t, 25*time.Hour, mr.TTL("auction:"+a.ID))
}

func TestRepository_CreateDuplicate(t *testing.T) {
	repo, _, _ := setupRepository(t)
	ctx := context.Background()
	a := newAuction("100")

	require.NoError(t, repo.Create(ctx, a))
	assert.ErrorIs(t, repo.Create(ctx, a), ErrAlreadyExists)
}

func TestRepository_KeyPrefix(t *testing.T) {
	repo, _, mr := setupRepository(t, WithKeyPrefix("lance:"))
	a := newAuction("10")
	require.NoError(t, repo.Create(context.Background(), a))

	assert.True(t, mr.Exists("lance:auction:"+a.ID))
	ok, err := mr.SIsMember("lance:auctions:active", a.ID)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRepository_KeyPrefixCoversChannels(t *testing.T) {
	repo, client, _ := setupRepository(t, WithKeyPrefix("lance:"))
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	a := newAuction("100")
	require.NoError(t, repo.Create(ctx, a))

	assert.Equal(t, "lance:auction:"+a.ID, repo.Channel(a.ID))
	assert.Equal(t, "lance:auction:*", repo.ChannelPattern())

	sub := client.PSubscribe(ctx, repo.ChannelPattern())
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	outcome, err := repo.SettleBid(ctx, "100", newBid(a.ID, "alice", "110", testNow))
	require.NoError(t, err)
	require.Equal(t, SettleAccepted, outcome)
	closed, err := repo.TryClose(ctx, a.ID)
	require.NoError(t, err)
	require.True(t, closed)

	for _, want := range []string{models.EventNewBid, models.EventAuctionClosed} {
		msg, err := sub.ReceiveMessage(ctx)
		require.NoError(t, err)
		assert.Equal(t, "lance:auction:"+a.ID, msg.Channel)
		var update models.LiveUpdate
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &update))
		assert.Equal(t, want, update.Type)
	}
}

func TestRepository_ReadNotFound(t *testing.T) {
	repo, _, _ := setupRepository(t)
	_, err := repo.Read(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRepository_ReadCorruptFields(t *testing.T) {
	repo, _, mr := setupRepository(t)
	mr.HSet("auction:bad",
		fieldTitle, "Broken",
		fieldCurrentPrice, "abc",
		fieldStartingPrice, "50",
		fieldEndTime, "yesterday",
		fieldBidCount, "many",
		fieldStatus, "active",
	)

	got, err := repo.Read(context.Background(), "bad")
	require.NoError(t, err)
	assert.Equal(t, "Broken", got.Title)
	assert.True(t, got.CurrentPrice.IsZero())
	assert.True(t, got.StartingPrice.Equal(decimal.NewFromInt(50)))
	assert.True(t, got.EndTime.IsZero())
	assert.Zero(t, got.BidCount)
	assert.Equal(t, "abc", got.PriceVersion)
	assert.Nil(t, got.Winner)
}

func TestRepository_ReadUnknownStatusIsClosed(t *testing.T) {
	repo, _, mr := setupRepository(t)
	mr.HSet("auction:odd", fieldTitle, "Odd", fieldStatus, "paused")

	got, err := repo.Read(context.Background(), "odd")
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, got.Status)
}

func TestRepository_SettleBid(t *testing.T) {
	repo, client, _ := setupRepository(t)
	ctx := context.Background()
	a := newAuction("100")
	require.NoError(t, repo.Create(ctx, a))

	sub := client.Subscribe(ctx, repo.Channel(a.ID))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	bid := newBid(a.ID, "alice", "110", testNow)
	outcome, err := repo.SettleBid(ctx, "100", bid)
	require.NoError(t, err)
	assert.Equal(t, SettleAccepted, outcome)

	got, err := repo.Read(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, got.CurrentPrice.Equal(decimal.NewFromInt(110)))
	assert.Equal(t, int64(1), got.BidCount)
	require.NotNil(t, got.Winner)
	assert.Equal(t, models.Winner{ID: "alice", Name: "User_alice", Contact: "alice@example.com"}, *got.Winner)

	bids, err := repo.Bids(ctx, a.ID, 10)
	require.NoError(t, err)
	require.Len(t, bids, 1)
	assert.Equal(t, bid.ID, bids[0].ID)

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	var update models.LiveUpdate
	require.NoError(t, json.Unmarshal([]byte(msg.Payload), &update))
	assert.Equal(t, models.EventNewBid, update.Type)
	assert.Equal(t, "alice", update.WinnerID)
	require.NotNil(t, update.CurrentPrice)
	assert.True(t, update.CurrentPrice.Equal(decimal.NewFromInt(110)))
	require.NotNil(t, update.Bid)
	assert.Equal(t, bid.ID, update.Bid.ID)
}

func TestRepository_SettleBidOutcomes(t *testing.T) {
	repo, _, mr := setupRepository(t)
	ctx := context.Background()

	t.Run("stale price is a conflict and leaves no history", func(t *testing.T) {
		a := newAuction("100")
		require.NoError(t, repo.Create(ctx, a))

		outcome, err := repo.SettleBid(ctx, "95", newBid(a.ID, "bob", "110", testNow))
		require.NoError(t, err)
		assert.Equal(t, SettleConflict, outcome)

		bids, err := repo.Bids(ctx, a.ID, 10)
		require.NoError(t, err)
		assert.Empty(t, bids)
		got, err := repo.Read(ctx, a.ID)
		require.NoError(t, err)
		assert.Zero(t, got.BidCount)
	})

	t.Run("missing auction", func(t *testing.T) {
		outcome, err := repo.SettleBid(ctx, "100", newBid("nope", "bob", "110", testNow))
		require.NoError(t, err)
		assert.Equal(t, SettleNotFound, outcome)
	})

	t.Run("closed auction", func(t *testing.T) {
		a := newAuction("100")
		require.NoError(t, repo.Create(ctx, a))
		closed, err := repo.TryClose(ctx, a.ID)
		require.NoError(t, err)
		require.True(t, closed)

		outcome, err := repo.SettleBid(ctx, "100", newBid(a.ID, "bob", "110", testNow))
		require.NoError(t, err)
		assert.Equal(t, SettleClosed, outcome)
	})

	t.Run("expired auction", func(t *testing.T) {
		a := newAuction("100")
		a.EndTime = testNow
		require.NoError(t, repo.Create(ctx, a))

		outcome, err := repo.SettleBid(ctx, "100", newBid(a.ID, "bob", "110", testNow))
		require.NoError(t, err)
		assert.Equal(t, SettleExpired, outcome)
	})

	t.Run("missing end_time_ms skips the expiry guard", func(t *testing.T) {
		mr.HSet("auction:legacy", fieldStatus, "active", fieldCurrentPrice, "5")
		outcome, err := repo.SettleBid(ctx, "5", newBid("legacy", "bob", "6", testNow))
		require.NoError(t, err)
		assert.Equal(t, SettleAccepted, outcome)
	})
}

func TestRepository_BidHistoryIsCapped(t *testing.T) {
	repo, _, _ := setupRepository(t)
	ctx := context.Background()
	a := newAuction("1")
	require.NoError(t, repo.Create(ctx, a))

	price := "1"
	for i := 0; i < 150; i++ {
		next := decimal.RequireFromString(price).Add(decimal.NewFromInt(1)).String()
		bid := newBid(a.ID, fmt.Sprintf("u%d", i), next, testNow.Add(time.Duration(i)*time.Millisecond))
		outcome, err := repo.SettleBid(ctx, price, bid)
		require.NoError(t, err)
		require.Equal(t, SettleAccepted, outcome)
		price = next
	}

	bids, err := repo.Bids(ctx, a.ID, 500)
	require.NoError(t, err)
	require.Len(t, bids, models.BidHistoryLimit)
	assert.Equal(t, "u149", bids[0].BidderID)
	assert.Equal(t, "u50", bids[len(bids)-1].BidderID)
	for i := 1; i < len(bids); i++ {
		assert.True(t, bids[i-1].Timestamp.After(bids[i].Timestamp))
	}

	got, err := repo.Read(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(150), got.BidCount)
	assert.True(t, got.CurrentPrice.Equal(decimal.NewFromInt(151)))
}

func TestRepository_BidsSkipsUndecodable(t *testing.T) {
	repo, _, mr := setupRepository(t)
	_, err := mr.ZAdd("auction:a1:bids", 1, "not json")
	require.NoError(t, err)
	good, err := json.Marshal(newBid("a1", "alice", "10", testNow))
	require.NoError(t, err)
	_, err = mr.ZAdd("auction:a1:bids", 2, string(good))
	require.NoError(t, err)

	bids, err := repo.Bids(context.Background(), "a1", 0)
	require.NoError(t, err)
	require.Len(t, bids, 1)
	assert.Equal(t, "alice", bids[0].BidderID)
}

func TestRepository_TryClose(t *testing.T) {
	repo, client, _ := setupRepository(t)
	ctx := context.Background()
	a := newAuction("100")
	require.NoError(t, repo.Create(ctx, a))

	sub := client.Subscribe(ctx, repo.Channel(a.ID))
	defer sub.Close()
	_, err := sub.Receive(ctx)
	require.NoError(t, err)

	closed, err := repo.TryClose(ctx, a.ID)
	require.NoError(t, err)
	assert.True(t, closed)

	closed, err = repo.TryClose(ctx, a.ID)
	require.NoError(t, err)
	assert.False(t, closed)

	got, err := repo.Read(ctx, a.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusClosed, got.Status)
	assert.True(t, got.ClosedAt.Equal(testNow))

	ids, err := repo.ListActiveIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	msg, err := sub.ReceiveMessage(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, fmt.Sprintf(`{"type":"auction_closed","auction_id":%q}`, a.ID), msg.Payload)
}

func TestRepository_TryCloseRemovesStaleIndexEntries(t *testing.T) {
	repo, _, mr := setupRepository(t)
	ctx := context.Background()

	_, err := mr.SAdd("auctions:active", "ghost", "done")
	require.NoError(t, err)
	mr.HSet("auction:done", fieldStatus, "closed")

	_, err = repo.TryClose(ctx, "ghost")
	assert.ErrorIs(t, err, ErrNotFound)
	closed, err := repo.TryClose(ctx, "done")
	require.NoError(t, err)
	assert.False(t, closed)

	ids, err := repo.ListActiveIDs(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestRepository_ListActive(t *testing.T) {
	repo, _, mr := setupRepository(t)
	ctx := context.Background()

	later := newAuction("10")
	later.EndTime = testNow.Add(2 * time.Hour)
	sooner := newAuction("20")
	closed := newAuction("30")
	for _, a := range []*models.Auction{later, sooner, closed} {
		require.NoError(t, repo.Create(ctx, a))
	}
	mr.HSet("auction:"+closed.ID, fieldStatus, "closed")
	_, err := mr.SAdd("auctions:active", "ghost")
	require.NoError(t, err)

	got, err := repo.ListActive(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, sooner.ID, got[0].ID)
	assert.Equal(t, later.ID, got[1].ID)
}

func TestRepository_StoreUnavailable(t *testing.T) {
	repo, _, mr := setupRepository(t, WithTimeout(200*time.Millisecond))
	mr.Close()
	ctx := context.Background()

	_, err := repo.Read(ctx, "a1")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	_, err = repo.SettleBid(ctx, "1", newBid("a1", "alice", "2", testNow))
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	_, err = repo.TryClose(ctx, "a1")
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	_, err = repo.ListActiveIDs(ctx)
	assert.ErrorIs(t, err, ErrStoreUnavailable)
	assert.ErrorIs(t, repo.Ping(ctx), ErrStoreUnavailable)
}

func TestSettleOutcome_String(t *testing.T) {
	assert.Equal(t, "accepted", SettleAccepted.String())
	assert.Equal(t, "conflict", SettleConflict.String())
	assert.Equal(t, "expired", SettleExpired.String())
	assert.Equal(t, "unknown", SettleOutcome(99).String())
}
