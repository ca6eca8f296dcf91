package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTemplateGenerator_Report(t *testing.T) {
	g := NewTemplateGenerator()

	report, err := g.Report(endedEvent("a1", true).Auction)
	require.NoError(t, err)
	assert.Contains(t, report, "Item:          Vintage Camera")
	assert.Contains(t, report, "Starting price: $100.00")
	assert.Contains(t, report, "Final price:    $120.50")
	assert.Contains(t, report, "Total bids:     2")
	assert.Contains(t, report, "Winner:         Alice (alice)")
	assert.Contains(t, report, "Latest bids")
	assert.Contains(t, report, "$110.00")

	report, err = g.Report(endedEvent("a2", false).Auction)
	require.NoError(t, err)
	assert.Contains(t, report, "closed without bids")
	assert.NotContains(t, report, "Latest bids")
}

func TestTemplateGenerator_WinnerEmail(t *testing.T) {
	g := NewTemplateGenerator()

	email, err := g.WinnerEmail(endedEvent("a1", true).Auction)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", email.To)
	assert.Equal(t, "Congratulations! You won the auction: Vintage Camera", email.Subject)
	assert.Contains(t, email.Body, "Hello Alice,")
	assert.Contains(t, email.Body, "final bid of $120.50")

	_, err = g.WinnerEmail(endedEvent("a2", false).Auction)
	assert.Error(t, err)
}

func TestTemplateGenerator_ChatPost(t *testing.T) {
	g := NewTemplateGenerator()

	post, err := g.ChatPost(endedEvent("a1", true).Auction)
	require.NoError(t, err)
	assert.Contains(t, post, "**Auction closed: Vintage Camera**")
	assert.Contains(t, post, "Sold for **$120.50** to **Alice** after 2 bids")

	auction := endedEvent("a1", true).Auction
	auction.BidCount = 1
	post, err = g.ChatPost(auction)
	require.NoError(t, err)
	assert.Contains(t, post, "after 1 bid.")

	post, err = g.ChatPost(endedEvent("a2", false).Auction)
	require.NoError(t, err)
	assert.Contains(t, post, "No bids this time")
}
