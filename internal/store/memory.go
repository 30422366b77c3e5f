package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/lockerbid/bidding-engine/internal/models"
)

// Memory is an in-memory Store used by tests and local development. It
// mirrors the Postgres implementation's semantics, including the
// optimistic bid-count guard on commit.
type Memory struct {
	mu    sync.Mutex
	items map[string]*models.AuctionItem
	bids  map[string][]*models.Bid
}

// NewMemory creates an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		items: make(map[string]*models.AuctionItem),
		bids:  make(map[string][]*models.Bid),
	}
}

func (m *Memory) CreateItem(ctx context.Context, item *models.AuctionItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	copied := *item
	m.items[item.ID] = &copied
	return nil
}

func (m *Memory) GetItem(ctx context.Context, itemID string) (*models.AuctionItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[itemID]
	if !ok {
		return nil, ErrItemNotFound
	}

	copied := *item
	return &copied, nil
}

func (m *Memory) CommitAccepted(ctx context.Context, bid *models.Bid, item *models.AuctionItem) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.items[item.ID]
	if !ok {
		return ErrItemNotFound
	}
	if stored.BidCount != item.BidCount-1 || stored.Status != models.ItemStatusOpen {
		return ErrStaleItem
	}

	copied := *item
	m.items[item.ID] = &copied

	bidCopy := *bid
	m.bids[bid.ItemID] = append(m.bids[bid.ItemID], &bidCopy)
	return nil
}

func (m *Memory) RecordRejected(ctx context.Context, bid *models.Bid) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	bidCopy := *bid
	m.bids[bid.ItemID] = append(m.bids[bid.ItemID], &bidCopy)
	return nil
}

func (m *Memory) ListBids(ctx context.Context, itemID string, includeRejected bool, limit int) ([]*models.Bid, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var bids []*models.Bid
	for _, bid := range m.bids[itemID] {
		if !includeRejected && bid.Outcome != models.BidOutcomeAccepted {
			continue
		}
		copied := *bid
		bids = append(bids, &copied)
	}

	sort.SliceStable(bids, func(i, j int) bool {
		return bids[i].SubmittedAt.After(bids[j].SubmittedAt)
	})

	if limit > 0 && len(bids) > limit {
		bids = bids[:limit]
	}
	return bids, nil
}

func (m *Memory) DueForSettlement(ctx context.Context, now time.Time, limit int) ([]*models.AuctionItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var due []*models.AuctionItem
	for _, item := range m.items {
		if item.Status == models.ItemStatusOpen && !item.Deadline.After(now) {
			copied := *item
			due = append(due, &copied)
		}
	}

	sort.Slice(due, func(i, j int) bool { return due[i].Deadline.Before(due[j].Deadline) })

	if limit > 0 && len(due) > limit {
		due = due[:limit]
	}
	return due, nil
}

func (m *Memory) FinalizeItem(ctx context.Context, itemID string, now time.Time) (*models.AuctionItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	item, ok := m.items[itemID]
	if !ok {
		return nil, ErrItemNotFound
	}
	if item.Status != models.ItemStatusOpen || item.Deadline.After(now) {
		return nil, ErrNotDue
	}

	var winner string
	var latest time.Time
	for _, bid := range m.bids[itemID] {
		if bid.Outcome != models.BidOutcomeAccepted {
			continue
		}
		if winner == "" || bid.SubmittedAt.After(latest) {
			winner = bid.BidderID
			latest = bid.SubmittedAt
		}
	}

	item.Status = models.ItemStatusFinished
	item.WinningBidderID = winner
	item.UpdatedAt = now

	copied := *item
	return &copied, nil
}

func (m *Memory) ArchiveSettled(ctx context.Context, settledBefore time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	archived := 0
	for id, item := range m.items {
		if item.Status == models.ItemStatusFinished && item.UpdatedAt.Before(settledBefore) {
			delete(m.items, id)
			delete(m.bids, id)
			archived++
		}
	}
	return archived, nil
}
