package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/sirupsen/logrus"

	"github.com/lockerbid/bidding-engine/internal/clock"
	"github.com/lockerbid/bidding-engine/internal/events"
	"github.com/lockerbid/bidding-engine/internal/models"
	"github.com/lockerbid/bidding-engine/internal/session"
	"github.com/lockerbid/bidding-engine/internal/store"
)

// OutcomeConsumer consumes admission outcome events and refreshes the
// session view cache from the authoritative store. This bounds view
// staleness even when the api-server's direct cache write was lost.
type OutcomeConsumer struct {
	conn  *nats.Conn
	js    jetstream.JetStream
	store store.Store
	views ViewPublisher
	clk   clock.Clock
	log   logrus.FieldLogger
}

// NewOutcomeConsumer connects to NATS.
func NewOutcomeConsumer(natsURL string, st store.Store, views ViewPublisher, clk clock.Clock, log logrus.FieldLogger) (*OutcomeConsumer, error) {
	conn, err := nats.Connect(natsURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to NATS: %w", err)
	}

	js, err := jetstream.New(conn)
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to create JetStream context: %w", err)
	}

	return &OutcomeConsumer{
		conn:  conn,
		js:    js,
		store: st,
		views: views,
		clk:   clk,
		log:   log,
	}, nil
}

// Start consumes outcome events until the context ends. Blocking.
func (c *OutcomeConsumer) Start(ctx context.Context) error {
	consumer, err := c.js.CreateOrUpdateConsumer(ctx, events.StreamName, jetstream.ConsumerConfig{
		Durable:       "settlement-worker",
		FilterSubject: events.SubjectPattern,
		AckPolicy:     jetstream.AckExplicitPolicy,
	})
	if err != nil {
		return fmt.Errorf("failed to create consumer: %w", err)
	}

	consumeCtx, err := consumer.Consume(func(msg jetstream.Msg) {
		c.handleMessage(ctx, msg)
	})
	if err != nil {
		return fmt.Errorf("failed to start consuming: %w", err)
	}
	defer consumeCtx.Stop()

	c.log.WithField("stream", events.StreamName).Info("consuming outcome events")

	<-ctx.Done()
	return nil
}

func (c *OutcomeConsumer) handleMessage(ctx context.Context, msg jetstream.Msg) {
	var event models.OutcomeEvent
	if err := json.Unmarshal(msg.Data(), &event); err != nil {
		c.log.WithError(err).Warn("failed to unmarshal outcome event")
		msg.Ack()
		return
	}

	opCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	now := time.Now().UTC()
	item, err := c.store.GetItem(opCtx, event.ItemID)
	if err != nil {
		if errors.Is(err, store.ErrItemNotFound) {
			// Already archived; nothing left to refresh.
			msg.Ack()
			return
		}
		c.log.WithError(err).WithField("item_id", event.ItemID).Warn("failed to read item for view refresh")
		msg.Nak()
		return
	}

	if err := c.views.PublishView(opCtx, session.ViewOf(item, c.clk, now)); err != nil {
		c.log.WithError(err).WithField("item_id", event.ItemID).Warn("failed to refresh session view")
		msg.Nak()
		return
	}

	msg.Ack()
}

// Close closes the NATS connection.
func (c *OutcomeConsumer) Close() {
	c.conn.Close()
}
