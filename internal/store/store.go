// Package store persists auction items and the append-only bid history.
// The item row and its bid history are the only durable state in the
// system; losing neither the accepted-bid order nor the current deadline
// across restarts is what the rest of the engine relies on.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/lockerbid/bidding-engine/internal/models"
)

var (
	// ErrItemNotFound is returned when no item exists for the given id.
	ErrItemNotFound = errors.New("item not found")

	// ErrStaleItem is returned when a commit's optimistic guard fails:
	// the item row changed between read and write. The admission lock
	// makes this impossible within one process; across processes it is
	// a transient condition the caller retries with fresh state.
	ErrStaleItem = errors.New("item state changed since read")

	// ErrNotDue is returned by FinalizeItem when the item is no longer
	// finalizable, typically because an anti-snipe extension moved the
	// deadline forward after the item was picked up.
	ErrNotDue = errors.New("item not due for settlement")
)

// Store is the durable home of items and bids.
type Store interface {
	// CreateItem inserts a newly listed item.
	CreateItem(ctx context.Context, item *models.AuctionItem) error

	// GetItem returns the current item row.
	GetItem(ctx context.Context, itemID string) (*models.AuctionItem, error)

	// CommitAccepted atomically appends an accepted bid and applies the
	// new item state (price, bid count, possibly extended deadline).
	// item carries the post-acceptance state; the write is guarded on
	// the pre-acceptance bid count.
	CommitAccepted(ctx context.Context, bid *models.Bid, item *models.AuctionItem) error

	// RecordRejected appends a rejected bid for audit. It never touches
	// the item row.
	RecordRejected(ctx context.Context, bid *models.Bid) error

	// ListBids returns bids for an item ordered by submission time,
	// newest first. Rejected bids are included only when requested.
	ListBids(ctx context.Context, itemID string, includeRejected bool, limit int) ([]*models.Bid, error)

	// DueForSettlement returns open items whose deadline has passed.
	DueForSettlement(ctx context.Context, now time.Time, limit int) ([]*models.AuctionItem, error)

	// FinalizeItem marks an item finished and records the winning
	// bidder (the bidder of the last accepted bid, if any). Returns
	// ErrNotDue if the deadline moved past now in the meantime.
	FinalizeItem(ctx context.Context, itemID string, now time.Time) (*models.AuctionItem, error)

	// ArchiveSettled moves items finished before the cutoff into the
	// archive and returns how many were moved.
	ArchiveSettled(ctx context.Context, settledBefore time.Time) (int, error)
}
