// Package redis stores shopping carts in Redis, one JSON document per
// session with a sliding expiry.
package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-faster/errors"
	"github.com/redis/go-redis/v9"

	"github.com/xenking/boutique-checkout/internal/domain/cart"
)

const cartPrefix = "boutique:cart:"

type cmdable interface {
	Ping(ctx context.Context) *redis.StatusCmd
	GetEx(ctx context.Context, key string, expiration time.Duration) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// Connect parses url, opens a client and verifies connectivity.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, errors.Wrap(err, "parse redis url")
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrap(err, "ping redis")
	}
	return client, nil
}

var _ cart.Store = (*CartStore)(nil)

// CartStore implements cart.Store on Redis.
type CartStore struct {
	store cmdable
	ttl   time.Duration
}

// NewCartStore returns a CartStore whose entries expire after ttl of
// inactivity.
func NewCartStore(client *redis.Client, ttl time.Duration) *CartStore {
	return &CartStore{store: client, ttl: ttl}
}

type cartDocument struct {
	Items []cart.LineItem `json:"items"`
}

func cartKey(session string) string {
	return cartPrefix + session
}

// Load returns the session cart and extends its expiry. Unknown sessions
// yield an empty cart.
func (s *CartStore) Load(ctx context.Context, session string) (*cart.Cart, error) {
	raw, err := s.store.GetEx(ctx, cartKey(session), s.ttl).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return cart.New(), nil
		}
		return nil, errors.Wrap(err, "get cart")
	}

	var doc cartDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrap(err, "decode cart")
	}
	return cart.New(doc.Items...), nil
}

// Save writes the cart. An empty cart deletes the key.
func (s *CartStore) Save(ctx context.Context, session string, c *cart.Cart) error {
	if c.IsEmpty() {
		return s.Delete(ctx, session)
	}
	raw, err := json.Marshal(cartDocument{Items: c.Items()})
	if err != nil {
		return errors.Wrap(err, "encode cart")
	}
	if err := s.store.Set(ctx, cartKey(session), raw, s.ttl).Err(); err != nil {
		return errors.Wrap(err, "set cart")
	}
	return nil
}

// Delete removes the session cart.
func (s *CartStore) Delete(ctx context.Context, session string) error {
	if err := s.store.Del(ctx, cartKey(session)).Err(); err != nil {
		return errors.Wrap(err, "delete cart")
	}
	return nil
}

// Ping reports whether Redis is reachable.
func (s *CartStore) Ping(ctx context.Context) error {
	return s.store.Ping(ctx).Err()
}
