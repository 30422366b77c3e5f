// Package ladder implements the mandatory bid increment ladder: the
// minimum step a new bid must add on top of the current price. The same
// ladder runs on every client for UX and here for authoritative
// validation; the two must never diverge.
package ladder

// Amounts are whole units of the item's base currency. Tier boundaries
// are half-open on the lower bound: an amount exactly at a boundary uses
// that boundary's tier (5,000 steps by 500, not 250).
const (
	tier1Limit = 5_000
	tier2Limit = 10_000
	tier3Limit = 20_000
	tier4Limit = 30_000
	tier5Limit = 50_000
	tier6Limit = 100_000
	tier7Limit = 1_000_000
)

// Step returns the minimum increment for the next bid given the current
// price. Pure and total: any int64 input has a defined step.
func Step(current int64) int64 {
	switch {
	case current < tier1Limit:
		return 250
	case current < tier2Limit:
		return 500
	case current < tier3Limit:
		return 1_000
	case current < tier4Limit:
		return 2_000
	case current < tier5Limit:
		return 3_000
	case current < tier6Limit:
		return 5_000
	case current < tier7Limit:
		return 10_000 * (current / 100_000)
	default:
		return 100_000
	}
}

// MinNextBid returns the lowest admissible amount for an item with the
// given committed price. The first bid may match the starting price
// itself; every later bid must clear the ladder on top of the current
// one. The minimum is inclusive: a bid exactly at the floor is accepted.
func MinNextBid(currentBid int64, hasBids bool) int64 {
	if !hasBids {
		return currentBid
	}
	return currentBid + Step(currentBid)
}
