// Package session maintains the client-facing read model: the last
// committed admission state for each item, cached in Redis and announced
// on a per-item pub/sub channel for WebSocket push. The cache is a
// projection; Postgres stays authoritative.
package session

import (
	"time"

	"github.com/lockerbid/bidding-engine/internal/clock"
	"github.com/lockerbid/bidding-engine/internal/ladder"
	"github.com/lockerbid/bidding-engine/internal/models"
)

const channelPrefix = "bid_events:"

// ChannelFor returns the pub/sub channel carrying one item's updates.
func ChannelFor(itemID string) string {
	return channelPrefix + itemID
}

// ChannelPattern matches every item's update channel.
const ChannelPattern = channelPrefix + "*"

// ItemIDFromChannel extracts the item id from a channel name.
// Example: "bid_events:item123" -> "item123".
func ItemIDFromChannel(channel string) string {
	if len(channel) > len(channelPrefix) {
		return channel[len(channelPrefix):]
	}
	return ""
}

// ViewOf projects an item row into the read model at the given instant.
func ViewOf(item *models.AuctionItem, clk clock.Clock, now time.Time) *models.SessionView {
	view := &models.SessionView{
		ItemID:          item.ID,
		CurrentBid:      item.CurrentBid,
		MinNextBid:      ladder.MinNextBid(item.CurrentBid, item.HasBids()),
		BidCount:        item.BidCount,
		Deadline:        item.Deadline,
		WinningBidderID: item.WinningBidderID,
		UpdatedAt:       now,
	}

	if item.Status == models.ItemStatusFinished {
		view.Status = string(clock.PhaseFinished)
		return view
	}

	view.Status = string(clk.Phase(item.Deadline, now))
	if remaining, ok := clk.Remaining(item.Deadline, now); ok {
		view.RemainingMS = remaining.Milliseconds()
	}

	return view
}
