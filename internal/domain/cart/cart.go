// Package cart holds the shopper's in-progress selection of line items and
// the session-scoped store that keeps it between requests.
package cart

import (
	"context"

	"github.com/shopspring/decimal"
)

// Key identifies a line item within a cart. Two selections of the same
// product with different variants are distinct lines.
type Key struct {
	ProductID string
	Variant   string
}

// LineItem is one product/quantity pairing within a cart.
type LineItem struct {
	ProductID string          `json:"product_id"`
	Title     string          `json:"title"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	Quantity  int             `json:"quantity"`
	// Variant is informational only and never affects pricing.
	Variant string `json:"variant,omitempty"`
	Image   string `json:"image,omitempty"`
}

// Key returns the identity of the line within its cart.
func (li LineItem) Key() Key {
	return Key{ProductID: li.ProductID, Variant: li.Variant}
}

// LineTotal returns unit price × quantity.
func (li LineItem) LineTotal() decimal.Decimal {
	return li.UnitPrice.Mul(decimal.NewFromInt(int64(li.Quantity)))
}

// Cart is an insertion-ordered collection of line items with at most one
// entry per Key. Every stored item has Quantity >= 1.
//
// The zero value is an empty cart ready to use. A Cart is not safe for
// concurrent use; callers load, mutate and save it within one request.
type Cart struct {
	items []LineItem
}

// New returns a cart holding the given items, merging duplicate keys and
// dropping non-positive quantities.
func New(items ...LineItem) *Cart {
	c := &Cart{}
	for _, item := range items {
		c.Add(item)
	}
	return c
}

// Items returns a copy of the line items in insertion order.
func (c *Cart) Items() []LineItem {
	out := make([]LineItem, len(c.items))
	copy(out, c.items)
	return out
}

// Len returns the number of distinct lines.
func (c *Cart) Len() int {
	return len(c.items)
}

// IsEmpty reports whether the cart has no lines.
func (c *Cart) IsEmpty() bool {
	return c == nil || len(c.items) == 0
}

// TotalQuantity returns the sum of quantities across all lines.
func (c *Cart) TotalQuantity() int {
	total := 0
	for _, item := range c.items {
		total += item.Quantity
	}
	return total
}

// Get returns the line stored under key.
func (c *Cart) Get(key Key) (LineItem, bool) {
	if i := c.index(key); i >= 0 {
		return c.items[i], true
	}
	return LineItem{}, false
}

// Add inserts item, or increments the quantity of the existing line with the
// same key. Items with a non-positive quantity are ignored. When the line
// already exists its title and price are refreshed from item.
func (c *Cart) Add(item LineItem) {
	if item.Quantity <= 0 {
		return
	}
	if i := c.index(item.Key()); i >= 0 {
		qty := c.items[i].Quantity + item.Quantity
		c.items[i] = item
		c.items[i].Quantity = qty
		return
	}
	c.items = append(c.items, item)
}

// SetQuantity replaces the quantity of the line stored under key. A quantity
// of zero or less removes the line. It reports whether the line existed.
func (c *Cart) SetQuantity(key Key, quantity int) bool {
	i := c.index(key)
	if i < 0 {
		return false
	}
	if quantity <= 0 {
		c.removeAt(i)
		return true
	}
	c.items[i].Quantity = quantity
	return true
}

// Remove deletes the line stored under key and reports whether it existed.
func (c *Cart) Remove(key Key) bool {
	i := c.index(key)
	if i < 0 {
		return false
	}
	c.removeAt(i)
	return true
}

// Clear removes every line.
func (c *Cart) Clear() {
	c.items = nil
}

// Subtotal returns the sum of unit price × quantity over all lines.
// A nil or empty cart yields exactly zero.
func (c *Cart) Subtotal() decimal.Decimal {
	sum := decimal.Zero
	if c == nil {
		return sum
	}
	for _, item := range c.items {
		sum = sum.Add(item.LineTotal())
	}
	return sum
}

func (c *Cart) index(key Key) int {
	for i, item := range c.items {
		if item.Key() == key {
			return i
		}
	}
	return -1
}

func (c *Cart) removeAt(i int) {
	c.items = append(c.items[:i], c.items[i+1:]...)
}

// Store persists carts per client session. Load of an unknown session
// returns an empty cart, not an error.
type Store interface {
	Load(ctx context.Context, sessionID string) (*Cart, error)
	Save(ctx context.Context, sessionID string, c *Cart) error
	Delete(ctx context.Context, sessionID string) error
}
