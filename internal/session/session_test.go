package session

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/lockerbid/bidding-engine/internal/clock"
	"github.com/lockerbid/bidding-engine/internal/models"
)

var testClk = clock.Clock{Window: 5 * time.Minute, Extension: 5 * time.Minute}

func TestViewOfOpenItem(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	item := &models.AuctionItem{
		ID:         "item-1",
		CurrentBid: 10_000,
		BidCount:   1,
		Deadline:   now.Add(90 * time.Second),
		Status:     models.ItemStatusOpen,
	}

	view := ViewOf(item, testClk, now)
	assert.Equal(t, int64(10_000), view.CurrentBid)
	assert.Equal(t, int64(11_000), view.MinNextBid)
	assert.Equal(t, "extension_window", view.Status)
	assert.Equal(t, int64(90_000), view.RemainingMS)
}

func TestViewOfFirstBidFloor(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	item := &models.AuctionItem{
		ID:         "item-1",
		CurrentBid: 10_000,
		Deadline:   now.Add(time.Hour),
		Status:     models.ItemStatusOpen,
	}

	view := ViewOf(item, testClk, now)
	assert.Equal(t, int64(10_000), view.MinNextBid, "no bids yet: floor is the starting price")
	assert.Equal(t, "open", view.Status)
}

func TestViewOfFinishedItem(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	item := &models.AuctionItem{
		ID:              "item-1",
		CurrentBid:      42_000,
		BidCount:        7,
		Deadline:        now.Add(time.Hour), // persisted status wins over the deadline
		Status:          models.ItemStatusFinished,
		WinningBidderID: "bidder-z",
	}

	view := ViewOf(item, testClk, now)
	assert.Equal(t, "finished", view.Status)
	assert.Zero(t, view.RemainingMS)
	assert.Equal(t, "bidder-z", view.WinningBidderID)
}

func TestChannelNames(t *testing.T) {
	assert.Equal(t, "bid_events:item-1", ChannelFor("item-1"))
	assert.Equal(t, "item-1", ItemIDFromChannel("bid_events:item-1"))
	assert.Empty(t, ItemIDFromChannel("bid_events:"))
	assert.Empty(t, ItemIDFromChannel("other"))
}
