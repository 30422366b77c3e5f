package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lockerbid/bidding-engine/internal/models"
)

func seedItem(t *testing.T, mem *Memory, deadline time.Time) *models.AuctionItem {
	t.Helper()

	item := &models.AuctionItem{
		ID:            "item-1",
		Title:         "rookie card",
		StartingPrice: 4_000,
		CurrentBid:    4_000,
		Deadline:      deadline,
		Status:        models.ItemStatusOpen,
	}
	require.NoError(t, mem.CreateItem(context.Background(), item))
	return item
}

func TestMemoryCommitGuardRejectsStaleWrites(t *testing.T) {
	mem := NewMemory()
	deadline := time.Now().UTC().Add(time.Hour)
	item := seedItem(t, mem, deadline)

	updated := *item
	updated.CurrentBid = 4_250
	updated.BidCount = 1

	bid := &models.Bid{ID: "b1", ItemID: "item-1", BidderID: "a", Amount: 4_250, SubmittedAt: time.Now().UTC(), Outcome: models.BidOutcomeAccepted}
	require.NoError(t, mem.CommitAccepted(context.Background(), bid, &updated))

	// Replaying a write computed from the pre-commit state must fail.
	err := mem.CommitAccepted(context.Background(), bid, &updated)
	assert.ErrorIs(t, err, ErrStaleItem)
}

func TestMemoryGetItemReturnsCopy(t *testing.T) {
	mem := NewMemory()
	seedItem(t, mem, time.Now().UTC().Add(time.Hour))

	first, err := mem.GetItem(context.Background(), "item-1")
	require.NoError(t, err)
	first.CurrentBid = 999_999

	second, err := mem.GetItem(context.Background(), "item-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4_000), second.CurrentBid, "callers must not be able to mutate stored state")
}

func TestMemoryListBidsOrderAndFilter(t *testing.T) {
	mem := NewMemory()
	item := seedItem(t, mem, time.Now().UTC().Add(time.Hour))
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

	updated := *item
	updated.CurrentBid = 4_250
	updated.BidCount = 1
	require.NoError(t, mem.CommitAccepted(context.Background(), &models.Bid{
		ID: "b1", ItemID: "item-1", BidderID: "a", Amount: 4_250,
		SubmittedAt: base, Outcome: models.BidOutcomeAccepted,
	}, &updated))

	require.NoError(t, mem.RecordRejected(context.Background(), &models.Bid{
		ID: "b2", ItemID: "item-1", BidderID: "b", Amount: 4_100,
		SubmittedAt: base.Add(time.Second), Outcome: models.BidOutcomeRejected,
		RejectReason: string(models.RejectBelowMinimum),
	}))

	accepted, err := mem.ListBids(context.Background(), "item-1", false, 0)
	require.NoError(t, err)
	require.Len(t, accepted, 1)
	assert.Equal(t, "b1", accepted[0].ID)

	all, err := mem.ListBids(context.Background(), "item-1", true, 0)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "b2", all[0].ID, "newest first")
}

func TestMemoryFinalizeNotDueAfterExtension(t *testing.T) {
	mem := NewMemory()
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	seedItem(t, mem, now.Add(time.Minute))

	_, err := mem.FinalizeItem(context.Background(), "item-1", now)
	assert.ErrorIs(t, err, ErrNotDue)
}
