// Package memory provides an in-process cart.Store for single-instance
// deployments and tests.
package memory

import (
	"context"
	"sync"

	"github.com/xenking/boutique-checkout/internal/domain/cart"
)

var _ cart.Store = (*CartStore)(nil)

// CartStore keeps carts in a map keyed by session.
type CartStore struct {
	mu    sync.RWMutex
	carts map[string][]cart.LineItem
}

// NewCartStore returns an empty CartStore.
func NewCartStore() *CartStore {
	return &CartStore{carts: make(map[string][]cart.LineItem)}
}

func (s *CartStore) Load(_ context.Context, session string) (*cart.Cart, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cart.New(s.carts[session]...), nil
}

func (s *CartStore) Save(_ context.Context, session string, c *cart.Cart) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if c.IsEmpty() {
		delete(s.carts, session)
		return nil
	}
	s.carts[session] = c.Items()
	return nil
}

func (s *CartStore) Delete(_ context.Context, session string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, session)
	return nil
}
