// Package eligibility gatekeeps who may bid at all. The four verification
// flags come from an external verification service; the gate only checks
// that every step is complete, and it is consulted again at admission time
// so a stale client-side "eligible" can never push a bid through.
package eligibility

import (
	"context"
	"fmt"

	"github.com/lockerbid/bidding-engine/internal/models"
)

// Provider fetches the current verification snapshot for a bidder. A
// returned error means the snapshot could not be obtained (transient),
// never that the bidder is ineligible.
type Provider interface {
	Eligibility(ctx context.Context, bidderID string) (models.Eligibility, error)
}

// Gate decides whether a bidder may submit bids.
type Gate struct {
	provider Provider
}

// NewGate creates a gate backed by the given provider.
func NewGate(provider Provider) *Gate {
	return &Gate{provider: provider}
}

// Check returns the bidder's snapshot and whether all four steps are done.
func (g *Gate) Check(ctx context.Context, bidderID string) (models.Eligibility, bool, error) {
	snap, err := g.provider.Eligibility(ctx, bidderID)
	if err != nil {
		return models.Eligibility{}, false, fmt.Errorf("fetch eligibility for %s: %w", bidderID, err)
	}
	return snap, snap.Complete(), nil
}
