package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/lockerbid/bidding-engine/internal/models"
)

// Postgres implements Store on top of PostgreSQL.
type Postgres struct {
	db *sql.DB
}

// NewPostgres opens a connection pool and verifies connectivity.
func NewPostgres(connStr string) (*Postgres, error) {
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &Postgres{db: db}, nil
}

// InitSchema creates the tables the engine needs.
func (p *Postgres) InitSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS items (
		id VARCHAR(255) PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		description TEXT,
		starting_price BIGINT NOT NULL,
		current_bid BIGINT NOT NULL,
		bid_count INT NOT NULL DEFAULT 0,
		deadline TIMESTAMPTZ NOT NULL,
		status VARCHAR(20) NOT NULL DEFAULT 'open',
		winning_bidder_id VARCHAR(255),
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP,
		updated_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS bids (
		id VARCHAR(255) PRIMARY KEY,
		item_id VARCHAR(255) NOT NULL REFERENCES items(id) ON DELETE CASCADE,
		bidder_id VARCHAR(255) NOT NULL,
		amount BIGINT NOT NULL,
		submitted_at TIMESTAMPTZ NOT NULL,
		outcome VARCHAR(20) NOT NULL,
		reject_reason VARCHAR(40),
		created_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS archived_items (
		id VARCHAR(255) PRIMARY KEY,
		title VARCHAR(255) NOT NULL,
		description TEXT,
		starting_price BIGINT NOT NULL,
		current_bid BIGINT NOT NULL,
		bid_count INT NOT NULL,
		deadline TIMESTAMPTZ NOT NULL,
		winning_bidder_id VARCHAR(255),
		created_at TIMESTAMPTZ NOT NULL,
		archived_at TIMESTAMPTZ NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_bids_item_submitted ON bids(item_id, submitted_at);
	CREATE INDEX IF NOT EXISTS idx_bids_bidder ON bids(bidder_id);
	CREATE INDEX IF NOT EXISTS idx_items_status_deadline ON items(status, deadline);
	`

	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}

	return nil
}

// CreateItem inserts a newly listed item.
func (p *Postgres) CreateItem(ctx context.Context, item *models.AuctionItem) error {
	query := `
		INSERT INTO items (id, title, description, starting_price, current_bid, bid_count, deadline, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`

	_, err := p.db.ExecContext(ctx, query,
		item.ID, item.Title, item.Description, item.StartingPrice, item.CurrentBid,
		item.BidCount, item.Deadline, item.Status, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert item: %w", err)
	}

	return nil
}

// GetItem returns the current item row.
func (p *Postgres) GetItem(ctx context.Context, itemID string) (*models.AuctionItem, error) {
	query := `
		SELECT id, title, description, starting_price, current_bid, bid_count, deadline, status, winning_bidder_id, created_at, updated_at
		FROM items
		WHERE id = $1
	`

	item, err := scanItem(p.db.QueryRowContext(ctx, query, itemID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to get item: %w", err)
	}

	return item, nil
}

// CommitAccepted appends the accepted bid and applies the new item state
// in one transaction. The update is guarded on the pre-acceptance bid
// count so that a concurrent writer from another process cannot be
// silently overwritten.
func (p *Postgres) CommitAccepted(ctx context.Context, bid *models.Bid, item *models.AuctionItem) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE items
		SET current_bid = $1, bid_count = $2, deadline = $3, updated_at = $4
		WHERE id = $5 AND bid_count = $6 AND status = $7
	`, item.CurrentBid, item.BidCount, item.Deadline, item.UpdatedAt, item.ID, item.BidCount-1, models.ItemStatusOpen)
	if err != nil {
		return fmt.Errorf("failed to update item: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return ErrStaleItem
	}

	if err := insertBid(ctx, tx, bid); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit bid: %w", err)
	}

	return nil
}

// RecordRejected appends a rejected bid for audit.
func (p *Postgres) RecordRejected(ctx context.Context, bid *models.Bid) error {
	return insertBid(ctx, p.db, bid)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertBid(ctx context.Context, db execer, bid *models.Bid) error {
	query := `
		INSERT INTO bids (id, item_id, bidder_id, amount, submitted_at, outcome, reject_reason)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
		ON CONFLICT (id) DO NOTHING
	`

	_, err := db.ExecContext(ctx, query,
		bid.ID, bid.ItemID, bid.BidderID, bid.Amount, bid.SubmittedAt, bid.Outcome, bid.RejectReason,
	)
	if err != nil {
		return fmt.Errorf("failed to insert bid: %w", err)
	}

	return nil
}

// ListBids returns an item's bid history, newest first.
func (p *Postgres) ListBids(ctx context.Context, itemID string, includeRejected bool, limit int) ([]*models.Bid, error) {
	query := `
		SELECT id, item_id, bidder_id, amount, submitted_at, outcome, COALESCE(reject_reason, '')
		FROM bids
		WHERE item_id = $1 AND ($2 OR outcome = $3)
		ORDER BY submitted_at DESC
		LIMIT $4
	`

	rows, err := p.db.QueryContext(ctx, query, itemID, includeRejected, models.BidOutcomeAccepted, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list bids: %w", err)
	}
	defer rows.Close()

	var bids []*models.Bid
	for rows.Next() {
		bid := &models.Bid{}
		if err := rows.Scan(&bid.ID, &bid.ItemID, &bid.BidderID, &bid.Amount, &bid.SubmittedAt, &bid.Outcome, &bid.RejectReason); err != nil {
			return nil, fmt.Errorf("failed to scan bid: %w", err)
		}
		bids = append(bids, bid)
	}

	return bids, rows.Err()
}

// DueForSettlement returns open items whose deadline has passed.
func (p *Postgres) DueForSettlement(ctx context.Context, now time.Time, limit int) ([]*models.AuctionItem, error) {
	query := `
		SELECT id, title, description, starting_price, current_bid, bid_count, deadline, status, winning_bidder_id, created_at, updated_at
		FROM items
		WHERE status = $1 AND deadline <= $2
		ORDER BY deadline
		LIMIT $3
	`

	rows, err := p.db.QueryContext(ctx, query, models.ItemStatusOpen, now, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query due items: %w", err)
	}
	defer rows.Close()

	var items []*models.AuctionItem
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan item: %w", err)
		}
		items = append(items, item)
	}

	return items, rows.Err()
}

// FinalizeItem marks the item finished and records the winner.
func (p *Postgres) FinalizeItem(ctx context.Context, itemID string, now time.Time) (*models.AuctionItem, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	item, err := scanItem(tx.QueryRowContext(ctx, `
		SELECT id, title, description, starting_price, current_bid, bid_count, deadline, status, winning_bidder_id, created_at, updated_at
		FROM items
		WHERE id = $1
		FOR UPDATE
	`, itemID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrItemNotFound
		}
		return nil, fmt.Errorf("failed to lock item: %w", err)
	}

	// An anti-snipe extension may have moved the deadline past now
	// between the due scan and this transaction.
	if item.Status != models.ItemStatusOpen || item.Deadline.After(now) {
		return nil, ErrNotDue
	}

	var winner sql.NullString
	err = tx.QueryRowContext(ctx, `
		SELECT bidder_id
		FROM bids
		WHERE item_id = $1 AND outcome = $2
		ORDER BY submitted_at DESC
		LIMIT 1
	`, itemID, models.BidOutcomeAccepted).Scan(&winner)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to find winning bid: %w", err)
	}

	item.Status = models.ItemStatusFinished
	item.WinningBidderID = winner.String
	item.UpdatedAt = now

	_, err = tx.ExecContext(ctx, `
		UPDATE items
		SET status = $1, winning_bidder_id = NULLIF($2, ''), updated_at = $3
		WHERE id = $4
	`, item.Status, item.WinningBidderID, item.UpdatedAt, itemID)
	if err != nil {
		return nil, fmt.Errorf("failed to finalize item: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit finalization: %w", err)
	}

	return item, nil
}

// ArchiveSettled moves long-finished items into the archive table.
func (p *Postgres) ArchiveSettled(ctx context.Context, settledBefore time.Time) (int, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO archived_items (id, title, description, starting_price, current_bid, bid_count, deadline, winning_bidder_id, created_at)
		SELECT id, title, description, starting_price, current_bid, bid_count, deadline, winning_bidder_id, created_at
		FROM items
		WHERE status = $1 AND updated_at < $2
		ON CONFLICT (id) DO NOTHING
	`, models.ItemStatusFinished, settledBefore)
	if err != nil {
		return 0, fmt.Errorf("failed to copy items to archive: %w", err)
	}

	result, err := tx.ExecContext(ctx, `
		DELETE FROM items
		WHERE status = $1 AND updated_at < $2
	`, models.ItemStatusFinished, settledBefore)
	if err != nil {
		return 0, fmt.Errorf("failed to delete archived items: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit archival: %w", err)
	}

	return int(rows), nil
}

// Close closes the connection pool.
func (p *Postgres) Close() error {
	return p.db.Close()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanItem(row rowScanner) (*models.AuctionItem, error) {
	item := &models.AuctionItem{}
	var description, winner sql.NullString

	err := row.Scan(&item.ID, &item.Title, &description, &item.StartingPrice, &item.CurrentBid,
		&item.BidCount, &item.Deadline, &item.Status, &winner, &item.CreatedAt, &item.UpdatedAt)
	if err != nil {
		return nil, err
	}

	item.Description = description.String
	item.WinningBidderID = winner.String

	return item, nil
}
