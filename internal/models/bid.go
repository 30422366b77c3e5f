package models

import "time"

// Bid represents a single submission attempt on an item. A bid row is
// written exactly once per attempt and never updated afterwards.
type Bid struct {
	ID           string    `json:"id"`
	ItemID       string    `json:"item_id"`
	BidderID     string    `json:"bidder_id"`
	Amount       int64     `json:"amount"`
	SubmittedAt  time.Time `json:"submitted_at"` // server-assigned, authoritative
	Outcome      string    `json:"outcome"`      // "accepted", "rejected"
	RejectReason string    `json:"reject_reason,omitempty"`
}

// Bid outcome constants
const (
	BidOutcomeAccepted = "accepted"
	BidOutcomeRejected = "rejected"
)

// RejectReason identifies why a bid was turned away. These are business
// outcomes of validating against authoritative state, not system failures.
type RejectReason string

const (
	RejectNotOpen       RejectReason = "not_open"
	RejectNotEligible   RejectReason = "not_eligible"
	RejectInvalidAmount RejectReason = "invalid_amount"
	RejectBelowMinimum  RejectReason = "below_minimum"
	RejectConflict      RejectReason = "conflict"
)

// SubmitResult is the admission decision returned to the caller. On
// rejection MinNextBid carries the floor computed from the state the bid
// was adjudicated against, so the bidder can retry without a refresh.
type SubmitResult struct {
	Accepted   bool         `json:"accepted"`
	Bid        *Bid         `json:"bid"`
	Reason     RejectReason `json:"reason,omitempty"`
	CurrentBid int64        `json:"current_bid"`
	MinNextBid int64        `json:"min_next_bid"`
	Deadline   time.Time    `json:"deadline"`
}

// OutcomeEvent is published on every admission decision. It is sent to:
// 1. Redis Pub/Sub (real-time WebSocket broadcast of the session view)
// 2. NATS JetStream (settlement worker, cache refresh, audit consumers)
type OutcomeEvent struct {
	EventID      string    `json:"event_id"`
	ItemID       string    `json:"item_id"`
	BidID        string    `json:"bid_id"`
	BidderID     string    `json:"bidder_id"`
	Amount       int64     `json:"amount"`
	Outcome      string    `json:"outcome"`
	RejectReason string    `json:"reject_reason,omitempty"`
	CurrentBid   int64     `json:"current_bid"`
	MinNextBid   int64     `json:"min_next_bid"`
	Deadline     time.Time `json:"deadline"`
	Timestamp    time.Time `json:"timestamp"`
}
