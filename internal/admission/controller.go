// Package admission is the single authority over bid acceptance. Every
// submission for an item passes through that item's critical section:
// read fresh state, validate, commit bid and item together, publish the
// new snapshot. Nothing else in the system mutates item state.
package admission

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/lockerbid/bidding-engine/internal/bidcheck"
	"github.com/lockerbid/bidding-engine/internal/ladder"
	"github.com/lockerbid/bidding-engine/internal/models"
	"github.com/lockerbid/bidding-engine/internal/session"
	"github.com/lockerbid/bidding-engine/internal/store"
)

// ViewPublisher pushes committed session views to the read model.
type ViewPublisher interface {
	PublishView(ctx context.Context, view *models.SessionView) error
}

// OutcomePublisher emits an event for every admission decision.
type OutcomePublisher interface {
	PublishOutcome(ctx context.Context, event *models.OutcomeEvent) error
}

// Controller serializes and adjudicates bid submissions.
type Controller struct {
	store     store.Store
	validator *bidcheck.Validator
	views     ViewPublisher
	outcomes  OutcomePublisher
	locks     itemLocks

	lockTimeout time.Duration
	now         func() time.Time
	log         logrus.FieldLogger
}

// NewController wires the admission pipeline together.
func NewController(st store.Store, validator *bidcheck.Validator, views ViewPublisher, outcomes OutcomePublisher, lockTimeout time.Duration, log logrus.FieldLogger) *Controller {
	return &Controller{
		store:       st,
		validator:   validator,
		views:       views,
		outcomes:    outcomes,
		lockTimeout: lockTimeout,
		now:         func() time.Time { return time.Now().UTC() },
		log:         log,
	}
}

// Submit adjudicates one bid. Deterministic rejections come back inside
// the SubmitResult; a non-nil error is always a transient condition the
// caller may retry against fresh state.
func (c *Controller) Submit(ctx context.Context, itemID, bidderID string, amount int64) (*models.SubmitResult, error) {
	release, err := c.locks.acquire(ctx, itemID, c.lockTimeout)
	if err != nil {
		return nil, fmt.Errorf("acquire item section for %s: %w", itemID, err)
	}
	defer release()

	// Fresh read inside the critical section. Client-side math is
	// advisory only and is deliberately ignored here.
	item, err := c.store.GetItem(ctx, itemID)
	if err != nil {
		return nil, err
	}

	now := c.now()
	reason, err := c.validator.Validate(ctx, item, bidderID, amount, now)
	if err != nil {
		return nil, err
	}

	bid := &models.Bid{
		ID:          uuid.New().String(),
		ItemID:      itemID,
		BidderID:    bidderID,
		Amount:      amount,
		SubmittedAt: now,
	}

	if reason != "" {
		return c.reject(ctx, item, bid, reason, now)
	}

	return c.accept(ctx, item, bid, now)
}

func (c *Controller) accept(ctx context.Context, item *models.AuctionItem, bid *models.Bid, now time.Time) (*models.SubmitResult, error) {
	bid.Outcome = models.BidOutcomeAccepted

	clk := c.validator.Clock()
	updated := *item
	updated.CurrentBid = bid.Amount
	updated.BidCount = item.BidCount + 1
	updated.UpdatedAt = now
	if clk.InWindow(item.Deadline, now) {
		// Anti-snipe: the extension commits atomically with the bid.
		updated.Deadline = clk.Extend(item.Deadline)
	}

	if err := c.store.CommitAccepted(ctx, bid, &updated); err != nil {
		return nil, fmt.Errorf("commit accepted bid %s: %w", bid.ID, err)
	}

	view := session.ViewOf(&updated, clk, now)
	if err := c.views.PublishView(ctx, view); err != nil {
		// The store committed; the projection catches up via the
		// outcome event consumer.
		c.log.WithError(err).WithField("item_id", item.ID).Warn("failed to publish session view")
	}

	c.publishOutcome(bid, &updated, view.MinNextBid)

	c.log.WithFields(logrus.Fields{
		"item_id":   item.ID,
		"bid_id":    bid.ID,
		"bidder_id": bid.BidderID,
		"amount":    bid.Amount,
		"extended":  !updated.Deadline.Equal(item.Deadline),
	}).Info("bid accepted")

	return &models.SubmitResult{
		Accepted:   true,
		Bid:        bid,
		CurrentBid: updated.CurrentBid,
		MinNextBid: view.MinNextBid,
		Deadline:   updated.Deadline,
	}, nil
}

func (c *Controller) reject(ctx context.Context, item *models.AuctionItem, bid *models.Bid, reason models.RejectReason, now time.Time) (*models.SubmitResult, error) {
	bid.Outcome = models.BidOutcomeRejected
	bid.RejectReason = string(reason)

	// The audit row is best effort: a failed write must not turn a
	// deterministic rejection into a transient error.
	if err := c.store.RecordRejected(ctx, bid); err != nil {
		c.log.WithError(err).WithField("bid_id", bid.ID).Warn("failed to record rejected bid")
	}

	minNext := ladder.MinNextBid(item.CurrentBid, item.HasBids())
	c.publishOutcome(bid, item, minNext)

	c.log.WithFields(logrus.Fields{
		"item_id":   item.ID,
		"bid_id":    bid.ID,
		"bidder_id": bid.BidderID,
		"amount":    bid.Amount,
		"reason":    reason,
	}).Info("bid rejected")

	return &models.SubmitResult{
		Accepted:   false,
		Bid:        bid,
		Reason:     reason,
		CurrentBid: item.CurrentBid,
		MinNextBid: minNext,
		Deadline:   item.Deadline,
	}, nil
}

// publishOutcome emits the admission decision asynchronously. The write
// path never waits on event delivery.
func (c *Controller) publishOutcome(bid *models.Bid, item *models.AuctionItem, minNext int64) {
	event := &models.OutcomeEvent{
		EventID:      uuid.New().String(),
		ItemID:       bid.ItemID,
		BidID:        bid.ID,
		BidderID:     bid.BidderID,
		Amount:       bid.Amount,
		Outcome:      bid.Outcome,
		RejectReason: bid.RejectReason,
		CurrentBid:   item.CurrentBid,
		MinNextBid:   minNext,
		Deadline:     item.Deadline,
		Timestamp:    bid.SubmittedAt,
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := c.outcomes.PublishOutcome(ctx, event); err != nil {
			c.log.WithError(err).WithField("event_id", event.EventID).Warn("failed to publish outcome event")
		}
	}()
}
