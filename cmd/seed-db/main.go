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
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/auth"
	"github.com/xenking/storefront-checkout/internal/domain/coupon"
	"github.com/xenking/storefront-checkout/internal/domain/product"
	"github.com/xenking/storefront-checkout/internal/domain/shipping"
	"github.com/xenking/storefront-checkout/internal/repository"
)

type productJSON struct {
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
	Stock int             `json:"stock"`
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
	flag.StringVar(&apiKey, "api-key", "", "admin API key to seed (or CHECKOUT_SEED_API_KEY env)")
	flag.StringVar(&apiKeyPepper, "api-key-pepper", "", "HMAC pepper for API key hashing (or CHECKOUT_API_KEY_PEPPER env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if apiKey == "" {
		apiKey = os.Getenv("CHECKOUT_SEED_API_KEY")
	}
	if apiKey == "" {
		slog.Error("API key is required: set --api-key or CHECKOUT_SEED_API_KEY")
		os.Exit(1)
	}
	if apiKeyPepper == "" {
		apiKeyPepper = os.Getenv("CHECKOUT_API_KEY_PEPPER")
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
	slog.Info("running migrations")

	if err := repository.RunMigrations(databaseURL); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	slog.Info("connecting to database")

	pool, err := repository.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	if err := seedProducts(ctx, repository.NewProductRepository(pool), productsFile); err != nil {
		return errors.Wrap(err, "seed products")
	}

	if err := seedCoupons(ctx, coupon.NewAdmin(repository.NewCouponRepository(pool))); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	if err := seedSettings(ctx, repository.NewSettingsRepository(pool)); err != nil {
		return errors.Wrap(err, "seed settings")
	}

	if err := seedAPIKey(ctx, pool, apiKey, pepper); err != nil {
		return errors.Wrap(err, "seed api key")
	}

	return nil
}

// seedProducts inserts the catalog only into an empty database so reruns do
// not duplicate products.
func seedProducts(ctx context.Context, repo *repository.ProductRepository, productsFile string) error {
	existing, err := repo.List(ctx)
	if err != nil {
		return errors.Wrap(err, "list products")
	}
	if len(existing) > 0 {
		slog.Info("catalog already seeded", slog.Int("count", len(existing)))
		return nil
	}

	slog.Info("reading products file", slog.String("path", productsFile))

	data, err := os.ReadFile(productsFile)
	if err != nil {
		return errors.Wrap(err, "read products file")
	}

	var products []productJSON
	if err := json.Unmarshal(data, &products); err != nil {
		return errors.Wrap(err, "parse products JSON")
	}

	slog.Info("inserting products", slog.Int("count", len(products)))

	for _, pj := range products {
		p := product.Product{Name: pj.Name, Price: pj.Price, Stock: pj.Stock, Active: true}
		if err := repo.Create(ctx, &p); err != nil {
			return errors.Wrapf(err, "insert product %q", pj.Name)
		}

		slog.Info("inserted product", slog.Int64("id", p.ID), slog.String("name", p.Name))
	}

	return nil
}

func seedCoupons(ctx context.Context, admin *coupon.Admin) error {
	slog.Info("seeding welcome coupon")

	var (
		minimum = decimal.NewFromInt(50)
		limit   = 1000
		from    = time.Now().UTC()
		until   = from.AddDate(1, 0, 0)
	)
	_, err := admin.Create(ctx, coupon.CreateParams{
		Code:         "BEM-VINDO10",
		Description:  "10% off orders from R$50",
		Kind:         coupon.KindPercentage,
		Value:        decimal.NewFromInt(10),
		MinimumOrder: &minimum,
		UsageLimit:   &limit,
		ValidFrom:    &from,
		ValidUntil:   &until,
	})
	switch {
	case errors.Is(err, coupon.ErrDuplicateCode):
		slog.Info("coupon already exists", slog.String("code", "BEM-VINDO10"))
	case err != nil:
		return errors.Wrap(err, "create coupon BEM-VINDO10")
	default:
		slog.Info("created coupon", slog.String("code", "BEM-VINDO10"))
	}

	return nil
}

func seedSettings(ctx context.Context, repo *repository.SettingsRepository) error {
	defaults := shipping.DefaultConfig()
	settings := []struct {
		key, value, description string
	}{
		{shipping.KeyFlatRate, defaults.FlatRate.StringFixed(2), "Flat shipping fee"},
		{shipping.KeyFreeThreshold, defaults.FreeThreshold.StringFixed(2), "Free shipping from this post-discount subtotal"},
	}

	for _, s := range settings {
		_, ok, err := repo.GetValue(ctx, s.key)
		if err != nil {
			return errors.Wrapf(err, "get %s", s.key)
		}
		if ok {
			slog.Info("setting already present", slog.String("key", s.key))
			continue
		}
		if err := repo.Set(ctx, s.key, s.value, s.description); err != nil {
			return errors.Wrapf(err, "set %s", s.key)
		}

		slog.Info("stored setting", slog.String("key", s.key), slog.String("value", s.value))
	}

	return nil
}

func seedAPIKey(ctx context.Context, pool *pgxpool.Pool, apiKey, pepper string) error {
	slog.Info("seeding admin API key")

	info := auth.APIKeyInfo{
		ID:      "default",
		KeyHash: auth.Hash([]byte(pepper), apiKey),
		Name:    "Default admin key",
		Scopes:  []string{auth.ScopeAdmin},
	}
	if err := repository.NewAPIKeyRepository(pool).Save(ctx, info); err != nil {
		return errors.Wrap(err, "save default API key")
	}

	slog.Info("saved API key", slog.String("id", info.ID), slog.String("name", info.Name))

	return nil
}
