package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/xenking/storefront-checkout/internal/domain/shipping"
)

// Config holds the complete application configuration, loadable from
// environment variables (CHECKOUT_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (CHECKOUT_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	APIKeyPepper string `usage:"HMAC pepper for API key hashing (CHECKOUT_API_KEY_PEPPER)" flag:"api-key-pepper"`
	Checkout     CheckoutConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// CheckoutConfig tunes order placement. The shipping amounts are fallbacks
// for keys missing from the settings table.
type CheckoutConfig struct {
	Timeout               time.Duration `default:"5s" usage:"Upper bound for a single checkout, independent of the client"`
	FlatRate              string        `default:"15.00" usage:"Default flat shipping fee" flag:"shipping-flat-rate"`
	FreeShippingThreshold string        `default:"150.00" usage:"Default post-discount subtotal for free shipping" flag:"free-shipping-threshold"`
}

// Shipping parses the fallback shipping configuration.
func (c CheckoutConfig) Shipping() (shipping.Config, error) {
	flat, err := decimal.NewFromString(c.FlatRate)
	if err != nil {
		return shipping.Config{}, errors.Wrap(err, "parse flat rate")
	}
	threshold, err := decimal.NewFromString(c.FreeShippingThreshold)
	if err != nil {
		return shipping.Config{}, errors.Wrap(err, "parse free shipping threshold")
	}
	if flat.IsNegative() || threshold.IsNegative() {
		return shipping.Config{}, errors.New("shipping amounts must not be negative")
	}
	return shipping.Config{FlatRate: flat, FreeThreshold: threshold}, nil
}

// RateLimitConfig controls the per-client sliding window rate limiter
// applied to the public checkout endpoints.
type RateLimitConfig struct {
	Max    int           `default:"30" usage:"Max checkout requests per window, 0 disables"`
	Window time.Duration `default:"1m" usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins []string `default:"*" usage:"Allowed CORS origins"`
	MaxAge  int      `default:"86400" usage:"Preflight cache lifetime in seconds" flag:"cors-max-age"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables, YAML config files,
// and applies platform-specific defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "CHECKOUT",
		Files:     []string{"config.yaml", "/etc/checkout/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.DatabaseURL == "" {
		return errors.New("database URL is required: set CHECKOUT_DATABASE_URL or DATABASE_URL")
	}
	if c.APIKeyPepper == "" {
		return errors.New("api key pepper is required: set CHECKOUT_API_KEY_PEPPER")
	}
	if c.Checkout.Timeout <= 0 {
		return errors.New("checkout timeout must be positive")
	}
	if _, err := c.Checkout.Shipping(); err != nil {
		return errors.Wrap(err, "checkout")
	}
	return nil
}

// applyPlatformDefaults maps platform-provided environment variables (Railway,
// Render, etc.) that use standard names like DATABASE_URL and PORT to the
// application's CHECKOUT_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
