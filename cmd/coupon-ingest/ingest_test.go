package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/boutique-checkout/internal/domain/coupon"
)

func writeGz(t *testing.T, dir, name string, lines ...string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	f, err := os.Create(path)
	require.NoError(t, err)
	defer func() { require.NoError(t, f.Close()) }()

	gz := pgzip.NewWriter(f)
	_, err = gz.Write([]byte(strings.Join(lines, "\n") + "\n"))
	require.NoError(t, err)
	require.NoError(t, gz.Close())
	return path
}

func TestParseRow(t *testing.T) {
	c, err := parseRow([]string{" eid50 ", "Fixed", "50", "300", "100", "2026-12-31T23:59:59+04:00"})
	require.NoError(t, err)
	assert.Equal(t, "EID50", c.Code)
	assert.Equal(t, coupon.KindFixed, c.Kind)
	assert.True(t, c.Value.Equal(decimal.NewFromInt(50)))
	assert.True(t, c.MinPurchase.Equal(decimal.NewFromInt(300)))
	require.NotNil(t, c.MaxUses)
	assert.Equal(t, 100, *c.MaxUses)
	require.NotNil(t, c.ExpiresAt)
	assert.True(t, time.Date(2026, 12, 31, 19, 59, 59, 0, time.UTC).Equal(*c.ExpiresAt))
	assert.True(t, c.Active)

	c, err = parseRow([]string{"WELCOME", "percentage", "10", "", "", ""})
	require.NoError(t, err)
	assert.Nil(t, c.MaxUses)
	assert.Nil(t, c.ExpiresAt)
	assert.True(t, c.MinPurchase.IsZero())

	for _, tt := range []struct {
		name   string
		record []string
	}{
		{"ShortRow", []string{"A", "fixed", "1"}},
		{"BadKind", []string{"A", "bogo", "1", "", "", ""}},
		{"BadValue", []string{"A", "fixed", "ten", "", "", ""}},
		{"NegativeValue", []string{"A", "fixed", "-1", "", "", ""}},
		{"ZeroMaxUses", []string{"A", "fixed", "1", "", "0", ""}},
		{"BadExpiry", []string{"A", "fixed", "1", "", "", "tomorrow"}},
		{"EmptyCode", []string{"  ", "fixed", "1", "", "", ""}},
	} {
		t.Run(tt.name, func(t *testing.T) {
			_, err := parseRow(tt.record)
			assert.Error(t, err)
		})
	}
}

func TestFindConflicts(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeGz(t, dir, "a.csv.gz",
			"code,kind,value,min_purchase,max_uses,expires_at",
			"ALPHA,fixed,5,,,",
			"BRAVO,fixed,5,,,",
			"bravo,percentage,10,,,",
			"CHARLIE,fixed,5,,,",
		),
		writeGz(t, dir, "b.csv.gz",
			"DELTA,fixed,5,,,",
			" charlie ,fixed,7,,,",
		),
		writeGz(t, dir, "c.csv.gz",
			"ECHO,fixed,5,,,",
		),
	}

	conflicts, err := findConflicts(context.Background(), files, 1000)
	require.NoError(t, err)
	assert.Equal(t, map[string]struct{}{"BRAVO": {}, "CHARLIE": {}}, conflicts)
}

type recordingCreator struct {
	created []string
	taken   map[string]bool
}

func (r *recordingCreator) Create(_ context.Context, cp *coupon.Coupon) error {
	if r.taken[cp.Code] {
		return coupon.ErrCodeTaken
	}
	r.created = append(r.created, cp.Code)
	return nil
}

func TestImportCoupons(t *testing.T) {
	dir := t.TempDir()
	files := []string{
		writeGz(t, dir, "a.csv.gz",
			"code,kind,value,min_purchase,max_uses,expires_at",
			"ALPHA,fixed,5,,,",
			"BRAVO,fixed,5,,,",
			"BROKEN,fixed,oops,,,",
		),
		writeGz(t, dir, "b.csv.gz",
			"bravo,percentage,10,,,",
			"OLDONE,percentage,10,,,",
			"DELTA,percentage,15,100,,",
		),
	}

	conflicts, err := findConflicts(context.Background(), files, 1000)
	require.NoError(t, err)

	creator := &recordingCreator{taken: map[string]bool{"OLDONE": true}}
	stats, err := importCoupons(context.Background(), creator, files, conflicts)
	require.NoError(t, err)

	assert.Equal(t, []string{"ALPHA", "DELTA"}, creator.created)
	assert.Equal(t, importStats{created: 2, conflicts: 2, existing: 1, invalid: 1}, stats)
}

func TestStreamRecords_Canceled(t *testing.T) {
	path := writeGz(t, t.TempDir(), "a.csv.gz", "ALPHA,fixed,5,,,")
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := streamRecords(ctx, path, func([]string) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}
