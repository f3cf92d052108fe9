package coupon

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
)

// Create canonicalises and checks cp, assigns an ID when missing and
// persists it. New coupons start with a zero used count.
func (s *Service) Create(ctx context.Context, cp *Coupon) error {
	cp.Code = Canonical(cp.Code)
	cp.UsedCount = 0
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = s.now()
	}
	if err := cp.Check(); err != nil {
		return err
	}
	if err := s.repo.Create(ctx, cp); err != nil {
		return errors.Wrap(err, "create coupon")
	}
	return nil
}

// Update replaces the editable fields of an existing coupon. The used count
// is preserved from the stored record.
func (s *Service) Update(ctx context.Context, cp *Coupon) error {
	existing, err := s.repo.GetByID(ctx, cp.ID)
	if err != nil {
		return errors.Wrap(err, "get coupon")
	}

	cp.Code = Canonical(cp.Code)
	cp.UsedCount = existing.UsedCount
	cp.CreatedAt = existing.CreatedAt
	if err := cp.Check(); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, cp); err != nil {
		return errors.Wrap(err, "update coupon")
	}
	return nil
}

// Toggle flips the active flag of the coupon.
func (s *Service) Toggle(ctx context.Context, id string) (*Coupon, error) {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, errors.Wrap(err, "get coupon")
	}
	updated, err := s.repo.SetActive(ctx, id, !existing.Active)
	if err != nil {
		return nil, errors.Wrap(err, "set coupon active")
	}
	return updated, nil
}

// Delete removes the coupon.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return errors.Wrap(err, "delete coupon")
	}
	return nil
}

// List returns every coupon, newest first.
func (s *Service) List(ctx context.Context) ([]Coupon, error) {
	coupons, err := s.repo.List(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "list coupons")
	}
	return coupons, nil
}
