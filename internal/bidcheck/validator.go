// Package bidcheck decides whether a prospective bid is admissible
// against a given item state. The same checks run in two roles: advisory
// (fast feedback against a possibly stale snapshot) and authoritative
// (inside the admission controller, against fresh state under the
// per-item lock). Only the authoritative run counts.
package bidcheck

import (
	"context"
	"time"

	"github.com/lockerbid/bidding-engine/internal/clock"
	"github.com/lockerbid/bidding-engine/internal/eligibility"
	"github.com/lockerbid/bidding-engine/internal/ladder"
	"github.com/lockerbid/bidding-engine/internal/models"
)

// Validator combines the auction clock, the eligibility gate, and the
// increment ladder into a single admissibility decision.
type Validator struct {
	clk  clock.Clock
	gate *eligibility.Gate
}

// New creates a validator.
func New(clk clock.Clock, gate *eligibility.Gate) *Validator {
	return &Validator{clk: clk, gate: gate}
}

// Clock returns the validator's auction clock.
func (v *Validator) Clock() clock.Clock {
	return v.clk
}

// Validate runs the admissibility checks in order, short-circuiting on
// the first failure. An empty reason means the bid is admissible. A
// non-nil error means the decision could not be made (eligibility
// provider unreachable) and must be treated as transient, never as a
// rejection.
func (v *Validator) Validate(ctx context.Context, item *models.AuctionItem, bidderID string, amount int64, now time.Time) (models.RejectReason, error) {
	if item.Status == models.ItemStatusFinished || v.clk.Phase(item.Deadline, now) == clock.PhaseFinished {
		return models.RejectNotOpen, nil
	}

	_, eligible, err := v.gate.Check(ctx, bidderID)
	if err != nil {
		return "", err
	}
	if !eligible {
		return models.RejectNotEligible, nil
	}

	if amount <= 0 {
		return models.RejectInvalidAmount, nil
	}

	// A bid at or under the committed price means another bid already
	// got there: the caller lost the race, not merely underbid.
	if item.HasBids() && amount <= item.CurrentBid {
		return models.RejectConflict, nil
	}

	if amount < ladder.MinNextBid(item.CurrentBid, item.HasBids()) {
		return models.RejectBelowMinimum, nil
	}

	return "", nil
}
