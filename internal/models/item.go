package models

import "time"

// AuctionItem represents a single item listed for timed ascending-price bidding.
type AuctionItem struct {
	ID              string    `json:"id"`
	Title           string    `json:"title"`
	Description     string    `json:"description,omitempty"`
	StartingPrice   int64     `json:"starting_price"`
	CurrentBid      int64     `json:"current_bid"`
	BidCount        int       `json:"bid_count"`
	Deadline        time.Time `json:"deadline"`
	Status          string    `json:"status"` // "open", "finished"
	WinningBidderID string    `json:"winning_bidder_id,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// ItemStatus constants. "open" covers both the normal and the extension
// window phase; the effective phase is derived from the deadline by the
// auction clock, never stored.
const (
	ItemStatusOpen     = "open"
	ItemStatusFinished = "finished"
)

// HasBids reports whether at least one bid has been accepted on the item.
func (i *AuctionItem) HasBids() bool {
	return i.BidCount > 0
}
