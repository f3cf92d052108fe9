package cart

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(v string) decimal.Decimal {
	return decimal.RequireFromString(v)
}

func TestCart_AddMergesSameKey(t *testing.T) {
	c := New()
	c.Add(LineItem{ProductID: "p1", Title: "Abaya", UnitPrice: d("500"), Quantity: 1})
	c.Add(LineItem{ProductID: "p1", Title: "Abaya", UnitPrice: d("500"), Quantity: 2})

	require.Equal(t, 1, c.Len())
	item, ok := c.Get(Key{ProductID: "p1"})
	require.True(t, ok)
	assert.Equal(t, 3, item.Quantity)
}

func TestCart_VariantsAreDistinctLines(t *testing.T) {
	c := New(
		LineItem{ProductID: "p1", Variant: "S", UnitPrice: d("500"), Quantity: 1},
		LineItem{ProductID: "p1", Variant: "M", UnitPrice: d("500"), Quantity: 1},
	)

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 2, c.TotalQuantity())
}

func TestCart_AddIgnoresNonPositiveQuantity(t *testing.T) {
	c := New(
		LineItem{ProductID: "p1", UnitPrice: d("10"), Quantity: 0},
		LineItem{ProductID: "p2", UnitPrice: d("10"), Quantity: -3},
	)

	assert.True(t, c.IsEmpty())
}

func TestCart_SetQuantity(t *testing.T) {
	c := New(LineItem{ProductID: "p1", UnitPrice: d("10"), Quantity: 1})

	require.True(t, c.SetQuantity(Key{ProductID: "p1"}, 4))
	item, _ := c.Get(Key{ProductID: "p1"})
	assert.Equal(t, 4, item.Quantity)

	require.True(t, c.SetQuantity(Key{ProductID: "p1"}, 0))
	_, ok := c.Get(Key{ProductID: "p1"})
	assert.False(t, ok, "zero quantity removes the line")

	assert.False(t, c.SetQuantity(Key{ProductID: "missing"}, 2))
}

func TestCart_RemoveKeepsOrder(t *testing.T) {
	c := New(
		LineItem{ProductID: "a", UnitPrice: d("1"), Quantity: 1},
		LineItem{ProductID: "b", UnitPrice: d("2"), Quantity: 1},
		LineItem{ProductID: "c", UnitPrice: d("3"), Quantity: 1},
	)

	require.True(t, c.Remove(Key{ProductID: "b"}))
	assert.False(t, c.Remove(Key{ProductID: "b"}))

	items := c.Items()
	require.Len(t, items, 2)
	assert.Equal(t, "a", items[0].ProductID)
	assert.Equal(t, "c", items[1].ProductID)
}

func TestCart_Clear(t *testing.T) {
	c := New(LineItem{ProductID: "a", UnitPrice: d("1"), Quantity: 1})
	c.Clear()
	assert.True(t, c.IsEmpty())
	assert.True(t, decimal.Zero.Equal(c.Subtotal()))
}

func TestCart_Subtotal(t *testing.T) {
	tests := []struct {
		name  string
		items []LineItem
		want  decimal.Decimal
	}{
		{
			name: "empty cart is zero",
			want: decimal.Zero,
		},
		{
			name:  "single line",
			items: []LineItem{{ProductID: "p1", UnitPrice: d("500"), Quantity: 2}},
			want:  d("1000"),
		},
		{
			name: "multiple lines with cents",
			items: []LineItem{
				{ProductID: "p1", UnitPrice: d("9.99"), Quantity: 3},
				{ProductID: "p2", UnitPrice: d("0.01"), Quantity: 1},
			},
			want: d("29.98"),
		},
		{
			name: "free item contributes nothing",
			items: []LineItem{
				{ProductID: "p1", UnitPrice: d("0"), Quantity: 5},
				{ProductID: "p2", UnitPrice: d("12.50"), Quantity: 2},
			},
			want: d("25"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := New(tt.items...).Subtotal()
			assert.True(t, tt.want.Equal(got), "expected %s, got %s", tt.want, got)
		})
	}
}

func TestCart_Nil(t *testing.T) {
	var c *Cart
	assert.True(t, c.IsEmpty())
	assert.True(t, c.Subtotal().IsZero())
}

func TestCart_ItemsReturnsCopy(t *testing.T) {
	c := New(LineItem{ProductID: "p1", UnitPrice: d("1"), Quantity: 1})
	items := c.Items()
	items[0].Quantity = 99

	item, _ := c.Get(Key{ProductID: "p1"})
	assert.Equal(t, 1, item.Quantity)
}
