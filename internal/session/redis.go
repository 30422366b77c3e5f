package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/lockerbid/bidding-engine/internal/models"
)

// ErrViewNotCached is returned when no snapshot is cached for an item.
// Callers fall back to the authoritative store.
var ErrViewNotCached = errors.New("session view not cached")

// Cache stores committed session views in Redis and announces each write
// on the item's pub/sub channel.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewCache connects to Redis and verifies connectivity.
func NewCache(addr, password string, db int, ttl time.Duration) (*Cache, error) {
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

	return &Cache{client: rdb, ttl: ttl}, nil
}

func viewKey(itemID string) string {
	return fmt.Sprintf("item:%s:session", itemID)
}

// PublishView caches the snapshot and announces it to subscribers.
func (c *Cache) PublishView(ctx context.Context, view *models.SessionView) error {
	payload, err := json.Marshal(view)
	if err != nil {
		return fmt.Errorf("failed to marshal session view: %w", err)
	}

	if err := c.client.Set(ctx, viewKey(view.ItemID), payload, c.ttl).Err(); err != nil {
		return fmt.Errorf("failed to cache session view: %w", err)
	}

	if err := c.client.Publish(ctx, ChannelFor(view.ItemID), payload).Err(); err != nil {
		return fmt.Errorf("failed to publish session view: %w", err)
	}

	return nil
}

// GetView returns the cached snapshot for an item.
func (c *Cache) GetView(ctx context.Context, itemID string) (*models.SessionView, error) {
	payload, err := c.client.Get(ctx, viewKey(itemID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrViewNotCached
		}
		return nil, fmt.Errorf("failed to get session view: %w", err)
	}

	var view models.SessionView
	if err := json.Unmarshal(payload, &view); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session view: %w", err)
	}

	return &view, nil
}

// Close closes the Redis connection.
func (c *Cache) Close() error {
	return c.client.Close()
}
