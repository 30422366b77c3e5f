// Package events carries admission outcomes to external collaborators
// (settlement worker, cache refresh, downstream read models) over NATS
// JetStream. Delivery is at-least-once; the bid write path never waits
// on it.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/lockerbid/bidding-engine/internal/models"
)

const (
	// StreamName holds every admission outcome until consumed.
	StreamName = "BID_OUTCOMES"

	// SubjectPattern matches all per-item outcome subjects.
	SubjectPattern = "bid.outcome.*"
)

// SubjectFor returns the outcome subject for one item.
func SubjectFor(itemID string) string {
	return fmt.Sprintf("bid.outcome.%s", itemID)
}

// Publisher publishes admission outcomes to JetStream.
type Publisher struct {
	conn *nats.Conn
	js   jetstream.JetStream
}

// NewPublisher connects to NATS and ensures the outcome stream exists.
func NewPublisher(natsURL string) (*Publisher, error) {
	conn, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	_, err = js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:        StreamName,
		Description: "Admission outcomes for every submitted bid",
		Subjects:    []string{SubjectPattern},
		Storage:     jetstream.FileStorage,
		Retention:   jetstream.InterestPolicy,
		MaxAge:      24 * time.Hour,
		Replicas:    1,
	})
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create/update stream: %w", err)
	}

	return &Publisher{conn: conn, js: js}, nil
}

// PublishOutcome publishes one admission decision. The publish waits for
// the JetStream acknowledgment so the event is persisted on return.
func (p *Publisher) PublishOutcome(ctx context.Context, event *models.OutcomeEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal outcome event: %w", err)
	}

	if _, err := p.js.Publish(ctx, SubjectFor(event.ItemID), data); err != nil {
		return fmt.Errorf("failed to publish to JetStream: %w", err)
	}

	return nil
}

// Close closes the NATS connection.
func (p *Publisher) Close() {
	p.conn.Close()
}
