package session

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

// Update is one published session view as seen on pub/sub.
type Update struct {
	ItemID  string
	Payload []byte
}

// Subscriber listens for session view updates on Redis pub/sub.
type Subscriber struct {
	client *redis.Client
	pubsub *redis.PubSub
	log    logrus.FieldLogger
}

// NewSubscriber connects to Redis and verifies connectivity.
func NewSubscriber(addr, password string, db int, log logrus.FieldLogger) (*Subscriber, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Subscriber{client: rdb, log: log}, nil
}

// SubscribeAll subscribes to every item's update channel.
func (s *Subscriber) SubscribeAll(ctx context.Context) error {
	s.pubsub = s.client.PSubscribe(ctx, ChannelPattern)
	return nil
}

// Listen forwards updates to the given channel until the context ends.
// Blocking; run in a goroutine.
func (s *Subscriber) Listen(ctx context.Context, updates chan<- *Update) error {
	if s.pubsub == nil {
		return fmt.Errorf("not subscribed to any channel")
	}

	ch := s.pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-ch:
			if !ok {
				return nil
			}

			itemID := ItemIDFromChannel(msg.Channel)
			if itemID == "" {
				s.log.WithField("channel", msg.Channel).Warn("update on unexpected channel")
				continue
			}

			updates <- &Update{
				ItemID:  itemID,
				Payload: []byte(msg.Payload),
			}
		}
	}
}

// Close closes the subscription and the connection.
func (s *Subscriber) Close() error {
	if s.pubsub != nil {
		s.pubsub.Close()
	}
	return s.client.Close()
}
