package main

import (
	"context"
	"encoding/json"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/boutique-checkout/internal/domain/auth"
	"github.com/xenking/boutique-checkout/internal/domain/coupon"
	"github.com/xenking/boutique-checkout/internal/domain/product"
	"github.com/xenking/boutique-checkout/internal/storage/postgres"
)

type productJSON struct {
	ID          string          `json:"id"`
	Title       string          `json:"title"`
	Description string          `json:"description"`
	Price       decimal.Decimal `json:"price"`
	Category    string          `json:"category"`
	Images      []string        `json:"images"`
	Available   *bool           `json:"available"`
}

func (p productJSON) product() *product.Product {
	available := p.Available == nil || *p.Available
	images := p.Images
	if images == nil {
		images = []string{}
	}
	return &product.Product{
		ID:          p.ID,
		Title:       p.Title,
		Description: p.Description,
		Price:       p.Price,
		Category:    p.Category,
		Images:      images,
		Available:   available,
	}
}

func main() {
	var (
		databaseURL  string
		productsFile string
		apiKey       string
		apiKeyPepper string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&productsFile, "products-file", "db/seed/products.json", "path to products JSON file")
	flag.StringVar(&apiKey, "api-key", "", "admin API key to seed (or BOUTIQUE_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or BOUTIQUE_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("BOUTIQUE_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or BOUTIQUE_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("BOUTIQUE_API_KEY_PEPPER")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, productsFile, apiKey, apiKeyPepper); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, productsFile, apiKey, pepper string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedProducts(ctx, postgres.NewProductRepository(pool), productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}
	if err := seedCoupons(ctx, coupon.NewService(postgres.NewCouponRepository(pool))); err != nil {
		return errors.Wrap(err, "seed coupons")
	}
	if err := seedAPIKey(ctx, postgres.NewAPIKeyRepository(pool), apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}
	return nil
}

func seedProducts(ctx context.Context, repo product.Repository, productsFile string) error {
	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("upserting products", slog.Int("count", len(products)))
	for _, p := range products {
		if err := repo.Upsert(ctx, p.product()); err != nil {
			return errors.Wrapf(err, "upsert product %s", p.ID)
		}
		slog.Info("upserted product", slog.String("id", p.ID), slog.String("title", p.Title))
	}
	return nil
}

func sampleCoupons(now time.Time) []coupon.Coupon {
	maxUses := 100
	expires := now.AddDate(0, 3, 0)
	return []coupon.Coupon{
		{
			Code:   "WELCOME10",
			Kind:   coupon.KindPercentage,
			Value:  decimal.NewFromInt(10),
			Active: true,
		},
		{
			Code:        "EID50",
			Kind:        coupon.KindFixed,
			Value:       decimal.NewFromInt(50),
			MinPurchase: decimal.NewFromInt(300),
			MaxUses:     &maxUses,
			ExpiresAt:   &expires,
			Active:      true,
		},
	}
}

func seedCoupons(ctx context.Context, svc *coupon.Service) error {
	slog.Info("seeding sample coupons")

	for _, c := range sampleCoupons(time.Now().UTC()) {
		err := svc.Create(ctx, &c)
		switch {
		case errors.Is(err, coupon.ErrCodeTaken):
			slog.Info("coupon already exists", slog.String("code", c.Code))
		case err != nil:
			return errors.Wrapf(err, "create coupon %s", c.Code)
		default:
			slog.Info("created coupon", slog.String("code", c.Code), slog.String("kind", string(c.Kind)))
		}
	}
	return nil
}

type apiKeyStore interface {
	Create(ctx context.Context, info auth.APIKeyInfo) error
}

func seedAPIKey(ctx context.Context, store apiKeyStore, apiKey, pepper string) error {
	slog.Info("seeding admin API key")

	if err := store.Create(ctx, auth.APIKeyInfo{
		ID:      "default",
		KeyHash: auth.Hash([]byte(pepper), apiKey),
		Name:    "Default admin key",
		Scopes:  []string{auth.ScopeAdmin},
	}); err != nil {
		return errors.Wrap(err, "create default API key")
	}

	slog.Info("seeded API key", slog.String("id", "default"))
	return nil
}
