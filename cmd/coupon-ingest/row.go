package main

import (
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/boutique-checkout/internal/domain/coupon"
)

// Column order of the input files.
const (
	colCode = iota
	colKind
	colValue
	colMinPurchase
	colMaxUses
	colExpiresAt
	numColumns
)

func isHeader(record []string) bool {
	return len(record) > 0 && strings.EqualFold(strings.TrimSpace(record[colCode]), "code")
}

// parseRow converts one CSV record into an active coupon. Empty max_uses
// means unlimited and empty expires_at means no expiry.
func parseRow(record []string) (coupon.Coupon, error) {
	if len(record) != numColumns {
		return coupon.Coupon{}, errors.Errorf("want %d columns, got %d", numColumns, len(record))
	}
	for i := range record {
		record[i] = strings.TrimSpace(record[i])
	}

	c := coupon.Coupon{
		Code:   coupon.Canonical(record[colCode]),
		Kind:   coupon.Kind(strings.ToLower(record[colKind])),
		Active: true,
	}

	var err error
	if c.Value, err = decimal.NewFromString(record[colValue]); err != nil {
		return coupon.Coupon{}, errors.Wrap(err, "value")
	}
	if record[colMinPurchase] != "" {
		if c.MinPurchase, err = decimal.NewFromString(record[colMinPurchase]); err != nil {
			return coupon.Coupon{}, errors.Wrap(err, "min_purchase")
		}
	}
	if s := record[colMaxUses]; s != "" {
		n, err := strconv.Atoi(s)
		if err != nil {
			return coupon.Coupon{}, errors.Wrap(err, "max_uses")
		}
		c.MaxUses = &n
	}
	if s := record[colExpiresAt]; s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return coupon.Coupon{}, errors.Wrap(err, "expires_at")
		}
		t = t.UTC()
		c.ExpiresAt = &t
	}

	if err := c.Check(); err != nil {
		return coupon.Coupon{}, err
	}
	return c, nil
}
