// Package staging holds parsed uploads between preview and commit.
package staging

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jellydator/ttlcache/v3"
	"github.com/rs/zerolog"

	"github.com/fintrack-dev/fintrack/internal/model"
)

// DefaultTTL is how long an unclaimed upload is kept.
const DefaultTTL = 30 * time.Minute

// maxTokenAttempts bounds retries on the (practically impossible) event of a
// token collision.
const maxTokenAttempts = 3

// ErrTokenCollision is returned when no unused token could be generated.
var ErrTokenCollision = errors.New("could not allocate upload token")

// Store keeps staged rows under opaque single-use tokens. Implementations
// must be safe for concurrent use.
type Store interface {
	// Put stores rows under a fresh token and returns it.
	Put(ctx context.Context, rows []model.RowResult) (string, error)
	// Get returns the rows for token without consuming them.
	Get(ctx context.Context, token string) ([]model.RowResult, bool)
	// Take returns and removes the rows for token in one step.
	Take(ctx context.Context, token string) ([]model.RowResult, bool)
	// Delete discards token.
	Delete(ctx context.Context, token string)
	// Len returns the number of live uploads.
	Len() int
	// Close releases background resources.
	Close()
}

type rowCache = ttlcache.Cache[string, []model.RowResult]

// Cache is a Store backed by an expiring in-memory cache. A TTL of zero keeps
// uploads until they are taken or deleted.
type Cache struct {
	items    *rowCache
	newToken func() string
}

// NewCache starts a Cache whose entries expire ttl after staging. Reads do
// not extend the lifetime. Call Close to stop the expiry loop.
func NewCache(ttl time.Duration, logger zerolog.Logger) *Cache {
	items := ttlcache.New[string, []model.RowResult](
		ttlcache.WithTTL[string, []model.RowResult](ttl),
		ttlcache.WithDisableTouchOnHit[string, []model.RowResult](),
	)
	items.OnEviction(func(_ context.Context, reason ttlcache.EvictionReason, item *ttlcache.Item[string, []model.RowResult]) {
		if reason == ttlcache.EvictionReasonExpired {
			logger.Debug().
				Str("upload_id", item.Key()).
				Int("rows", len(item.Value())).
				Msg("staged upload expired")
		}
	})
	go items.Start()

	return &Cache{items: items, newToken: uuid.NewString}
}

// Put implements Store.
func (c *Cache) Put(_ context.Context, rows []model.RowResult) (string, error) {
	for range maxTokenAttempts {
		token := c.newToken()
		if _, loaded := c.items.GetOrSet(token, rows); !loaded {
			return token, nil
		}
	}
	return "", ErrTokenCollision
}

// Get implements Store.
func (c *Cache) Get(_ context.Context, token string) ([]model.RowResult, bool) {
	item := c.items.Get(token)
	if item == nil || item.IsExpired() {
		return nil, false
	}
	return item.Value(), true
}

// Take implements Store.
func (c *Cache) Take(_ context.Context, token string) ([]model.RowResult, bool) {
	item, ok := c.items.GetAndDelete(token)
	if !ok || item == nil || item.IsExpired() {
		return nil, false
	}
	return item.Value(), true
}

// Delete implements Store.
func (c *Cache) Delete(_ context.Context, token string) {
	c.items.Delete(token)
}

// Len implements Store.
func (c *Cache) Len() int {
	return c.items.Len()
}

// Close stops the background expiry loop.
func (c *Cache) Close() {
	c.items.Stop()
}

var _ Store = (*Cache)(nil)
