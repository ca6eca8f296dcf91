package auction

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	redisAdapter "lance/adapters/redis"
	"lance/models"
	"lance/repository"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type fixture struct {
	engine  *Engine
	handoff *Handoff
	repo    *repository.Repository
	bus     *redisAdapter.Bus
	client  *redis.Client
	mr      *miniredis.Miniredis
	clock   *testClock
}

func setup(t *testing.T, opts ...EngineOption) *fixture {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	clock := &testClock{now: time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)}
	repo := repository.New(client,
		repository.WithLogger(discardLogger),
		repository.WithClock(clock.Now),
	)
	bus := redisAdapter.NewBus(client, redisAdapter.WithBusLogger(discardLogger))
	handoff := NewHandoff(repo, bus,
		WithHandoffLogger(discardLogger),
		WithHandoffClock(clock.Now),
	)
	opts = append([]EngineOption{
		WithEngineLogger(discardLogger),
		WithEngineClock(clock.Now),
	}, opts...)

	return &fixture{
		engine:  NewEngine(repo, handoff, opts...),
		handoff: handoff,
		repo:    repo,
		bus:     bus,
		client:  client,
		mr:      mr,
		clock:   clock,
	}
}

func (f *fixture) createAuction(t *testing.T, price string, duration time.Duration) *models.Auction {
	t.Helper()
	end := f.clock.Now().Add(duration)
	a, err := f.engine.CreateAuction(context.Background(), CreateRequest{
		Title:         "Vintage camera",
		StartingPrice: decimal.RequireFromString(price),
		OwnerID:       "owner",
		EndTime:       &end,
	})
	require.NoError(t, err)
	return a
}

func (f *fixture) bid(auctionID, bidder, amount string) (*models.Bid, error) {
	return f.engine.PlaceBid(context.Background(), BidRequest{
		AuctionID:  auctionID,
		BidderID:   bidder,
		BidderName: bidder,
		Contact:    bidder + "@example.com",
		Amount:     decimal.RequireFromString(amount),
	})
}

// subscribeEnded 收集結束事件
func (f *fixture) subscribeEnded(t *testing.T) func(wait time.Duration) []models.AuctionEnded {
	t.Helper()
	sub, err := f.bus.Subscribe(context.Background(), DefaultEndedChannel)
	require.NoError(t, err)
	t.Cleanup(func() { sub.Close() })

	return func(wait time.Duration) []models.AuctionEnded {
		var events []models.AuctionEnded
		timeout := time.After(wait)
		for {
			select {
			case msg := <-sub.Messages():
				var event models.AuctionEnded
				require.NoError(t, json.Unmarshal([]byte(msg.Payload), &event))
				events = append(events, event)
			case <-timeout:
				return events
			}
		}
	}
}
