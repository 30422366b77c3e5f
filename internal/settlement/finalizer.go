// Package settlement closes out auctions: items past their deadline are
// marked finished with their winning bidder, settled items are archived
// after a retention period, and admission outcome events are consumed to
// keep the session view cache fresh.
package settlement

import (
	"context"
	"errors"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/lockerbid/bidding-engine/internal/clock"
	"github.com/lockerbid/bidding-engine/internal/models"
	"github.com/lockerbid/bidding-engine/internal/session"
	"github.com/lockerbid/bidding-engine/internal/store"
)

// ViewPublisher pushes refreshed session views to the read model.
type ViewPublisher interface {
	PublishView(ctx context.Context, view *models.SessionView) error
}

// Finalizer periodically finalizes due items and archives settled ones.
type Finalizer struct {
	store     store.Store
	views     ViewPublisher
	clk       clock.Clock
	interval  time.Duration
	retention time.Duration
	batchSize int
	now       func() time.Time
	log       logrus.FieldLogger
}

// NewFinalizer creates a finalizer.
func NewFinalizer(st store.Store, views ViewPublisher, clk clock.Clock, interval, retention time.Duration, batchSize int, log logrus.FieldLogger) *Finalizer {
	return &Finalizer{
		store:     st,
		views:     views,
		clk:       clk,
		interval:  interval,
		retention: retention,
		batchSize: batchSize,
		now:       func() time.Time { return time.Now().UTC() },
		log:       log,
	}
}

// Run loops until the context ends. Blocking; run in a goroutine.
func (f *Finalizer) Run(ctx context.Context) {
	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			f.finalizePass(ctx)
			f.archivePass(ctx)
		}
	}
}

// finalizePass settles every item whose deadline has passed.
func (f *Finalizer) finalizePass(ctx context.Context) {
	now := f.now()

	due, err := f.store.DueForSettlement(ctx, now, f.batchSize)
	if err != nil {
		f.log.WithError(err).Error("failed to scan for due items")
		return
	}

	for _, item := range due {
		finished, err := f.store.FinalizeItem(ctx, item.ID, now)
		if err != nil {
			if errors.Is(err, store.ErrNotDue) {
				// An anti-snipe extension moved the deadline
				// after the scan; the item gets picked up on a
				// later pass.
				continue
			}
			f.log.WithError(err).WithField("item_id", item.ID).Error("failed to finalize item")
			continue
		}

		view := session.ViewOf(finished, f.clk, now)
		if err := f.views.PublishView(ctx, view); err != nil {
			f.log.WithError(err).WithField("item_id", item.ID).Warn("failed to publish final view")
		}

		f.log.WithFields(logrus.Fields{
			"item_id":        finished.ID,
			"winning_bidder": finished.WinningBidderID,
			"final_price":    finished.CurrentBid,
			"bid_count":      finished.BidCount,
		}).Info("auction finished")
	}
}

// archivePass moves long-settled items into the archive.
func (f *Finalizer) archivePass(ctx context.Context) {
	cutoff := f.now().Add(-f.retention)

	archived, err := f.store.ArchiveSettled(ctx, cutoff)
	if err != nil {
		f.log.WithError(err).Error("failed to archive settled items")
		return
	}
	if archived > 0 {
		f.log.WithField("count", archived).Info("archived settled items")
	}
}
