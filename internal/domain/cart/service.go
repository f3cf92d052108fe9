package cart

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"

	"github.com/xenking/boutique-checkout/internal/domain/product"
)

// Sentinel errors for cart mutations.
var (
	ErrInvalidQuantity = errors.New("quantity must be at least 1")
	ErrItemNotFound    = errors.New("item not in cart")
)

// UnavailableError indicates a product cannot currently be purchased.
type UnavailableError struct {
	ProductID string
}

func (e *UnavailableError) Error() string {
	return fmt.Sprintf("product %s is not available", e.ProductID)
}

// Catalog is the subset of the product repository the cart needs.
type Catalog interface {
	GetByID(ctx context.Context, id string) (*product.Product, error)
	GetByIDs(ctx context.Context, ids []string) ([]product.Product, error)
}

// Service mutates session carts, resolving titles and prices from the
// catalog so clients never supply their own prices.
type Service struct {
	store   Store
	catalog Catalog
}

// NewService creates a cart Service.
func NewService(store Store, catalog Catalog) *Service {
	return &Service{store: store, catalog: catalog}
}

// Get returns the cart for session.
func (s *Service) Get(ctx context.Context, session string) (*Cart, error) {
	c, err := s.store.Load(ctx, session)
	if err != nil {
		return nil, errors.Wrap(err, "load cart")
	}
	return c, nil
}

// AddItem adds quantity units of the product (and variant) to the session
// cart. Re-adding an existing line increments its quantity.
func (s *Service) AddItem(ctx context.Context, session, productID, variant string, quantity int) (*Cart, error) {
	if quantity < 1 {
		return nil, ErrInvalidQuantity
	}

	p, err := s.catalog.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, product.ErrNotFound) {
			return nil, product.ErrNotFound
		}
		return nil, errors.Wrapf(err, "get product %s", productID)
	}
	if !p.Available {
		return nil, &UnavailableError{ProductID: productID}
	}

	c, err := s.Get(ctx, session)
	if err != nil {
		return nil, err
	}

	c.Add(LineItem{
		ProductID: p.ID,
		Title:     p.Title,
		UnitPrice: p.Price,
		Quantity:  quantity,
		Variant:   variant,
		Image:     p.Thumbnail(),
	})

	if err := s.store.Save(ctx, session, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// SetQuantity replaces the quantity of an existing line; zero removes it.
func (s *Service) SetQuantity(ctx context.Context, session string, key Key, quantity int) (*Cart, error) {
	if quantity < 0 {
		return nil, ErrInvalidQuantity
	}

	c, err := s.Get(ctx, session)
	if err != nil {
		return nil, err
	}
	if !c.SetQuantity(key, quantity) {
		return nil, ErrItemNotFound
	}

	if err := s.store.Save(ctx, session, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// RemoveItem deletes a line from the session cart.
func (s *Service) RemoveItem(ctx context.Context, session string, key Key) (*Cart, error) {
	c, err := s.Get(ctx, session)
	if err != nil {
		return nil, err
	}
	if !c.Remove(key) {
		return nil, ErrItemNotFound
	}

	if err := s.store.Save(ctx, session, c); err != nil {
		return nil, errors.Wrap(err, "save cart")
	}
	return c, nil
}

// Clear empties the session cart.
func (s *Service) Clear(ctx context.Context, session string) error {
	if err := s.store.Delete(ctx, session); err != nil {
		return errors.Wrap(err, "delete cart")
	}
	return nil
}

// Refresh re-resolves every line against the catalog in a single batch,
// updating titles and unit prices. It fails with *UnavailableError when a
// product has been removed or marked unavailable since it was added.
func (s *Service) Refresh(ctx context.Context, c *Cart) error {
	if c.IsEmpty() {
		return nil
	}

	items := c.Items()
	ids := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, item := range items {
		if _, ok := seen[item.ProductID]; ok {
			continue
		}
		seen[item.ProductID] = struct{}{}
		ids = append(ids, item.ProductID)
	}

	fetched, err := s.catalog.GetByIDs(ctx, ids)
	if err != nil {
		return errors.Wrap(err, "get products")
	}

	byID := make(map[string]product.Product, len(fetched))
	for _, p := range fetched {
		byID[p.ID] = p
	}

	refreshed := make([]LineItem, len(items))
	for i, item := range items {
		p, ok := byID[item.ProductID]
		if !ok || !p.Available {
			return &UnavailableError{ProductID: item.ProductID}
		}
		item.Title = p.Title
		item.UnitPrice = p.Price
		refreshed[i] = item
	}

	*c = *New(refreshed...)
	return nil
}
