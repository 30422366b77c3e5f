package models

import "time"

// SessionView is the client-facing read model for one item: the last
// committed admission state plus everything a bidder needs to compute a
// candidate amount. RemainingMS is derived from Deadline at read time.
type SessionView struct {
	ItemID          string    `json:"item_id"`
	CurrentBid      int64     `json:"current_bid"`
	MinNextBid      int64     `json:"min_next_bid"`
	BidCount        int       `json:"bid_count"`
	Deadline        time.Time `json:"deadline"`
	Status          string    `json:"status"` // "open", "extension_window", "finished"
	RemainingMS     int64     `json:"remaining_ms"`
	WinningBidderID string    `json:"winning_bidder_id,omitempty"`
	UpdatedAt       time.Time `json:"updated_at"`
}
