package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

const defaultAddr = "0.0.0.0:8080"

// Config holds the complete application configuration, loadable from
// environment variables (BOUTIQUE_ prefix), flags, or YAML config files.
type Config struct {
	Addr         string `default:"0.0.0.0:8080" usage:"API server listen address"`
	DatabaseURL  string `usage:"PostgreSQL connection URL (BOUTIQUE_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	ImageBaseURL string `default:"" usage:"Base URL prepended to relative product image paths" flag:"image-base-url"`
	APIKeyPepper string `usage:"HMAC pepper for admin API key hashing" flag:"api-key-pepper"`
	Redis        RedisConfig
	Pricing      PricingConfig
	Notify       NotifyConfig
	RateLimit    RateLimitConfig
	CORS         CORSConfig
	Graceful     GracefulConfig
}

// RedisConfig selects the cart store. Carts live in process memory when URL
// is empty.
type RedisConfig struct {
	URL     string        `usage:"Redis URL for session carts (BOUTIQUE_REDIS_URL or REDIS_URL)" flag:"redis-url"`
	CartTTL time.Duration `default:"168h" usage:"Idle lifetime of a session cart" flag:"cart-ttl"`
}

// PricingConfig controls discount application.
type PricingConfig struct {
	ClampDiscount bool `default:"false" usage:"Never let a fixed discount exceed the subtotal" flag:"clamp-discount"`
}

// NotifyConfig configures order status emails.
type NotifyConfig struct {
	WebhookURL   string        `usage:"Email function URL; notifications are dropped when empty" flag:"notify-url"`
	WebhookToken string        `usage:"Bearer token for the email function" flag:"notify-token"`
	Timeout      time.Duration `default:"10s" usage:"Email function request timeout"`
	QueueSize    int           `default:"256" usage:"Pending notification buffer size"`
	Workers      int           `default:"2" usage:"Concurrent notification senders"`
	Attempts     int           `default:"3" usage:"Delivery attempts per notification"`
	Backoff      time.Duration `default:"500ms" usage:"Base delay between delivery attempts"`
}

// RateLimitConfig controls the per-client token bucket limiter.
type RateLimitConfig struct {
	Max    int           `default:"100" usage:"Max requests per window"`
	Window time.Duration `default:"1m"  usage:"Rate limit window duration"`
}

// CORSConfig controls Cross-Origin Resource Sharing headers.
type CORSConfig struct {
	Origins          []string `default:"*" usage:"Allowed CORS origins"`
	AllowCredentials bool     `default:"false" usage:"Allow credentials (cookies, auth headers)" flag:"cors-credentials"`
}

// GracefulConfig controls graceful shutdown timing.
type GracefulConfig struct {
	ReadinessDelay  time.Duration `default:"3s"  usage:"Delay after readiness=false before shutdown" flag:"readiness-delay"`
	ShutdownTimeout time.Duration `default:"15s" usage:"Maximum shutdown duration" flag:"shutdown-timeout"`
}

// LoadConfig loads configuration from environment variables and YAML files,
// then applies platform defaults.
func LoadConfig() (*Config, error) {
	var cfg Config
	loader := aconfig.LoaderFor(&cfg, aconfig.Config{
		EnvPrefix: "BOUTIQUE",
		Files:     []string{"config.yaml", "/etc/boutique/config.yaml"},
		FileDecoders: map[string]aconfig.FileDecoder{
			".yaml": aconfigyaml.New(),
		},
	})
	if err := loader.Load(); err != nil {
		return nil, errors.Wrap(err, "load config")
	}
	cfg.applyPlatformDefaults(os.Getenv)

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// applyPlatformDefaults maps the unprefixed variables set by hosting
// platforms (DATABASE_URL, REDIS_URL, PORT) onto the config.
func (c *Config) applyPlatformDefaults(getenv func(string) string) {
	if c.DatabaseURL == "" {
		c.DatabaseURL = getenv("DATABASE_URL")
	}
	if c.Redis.URL == "" {
		c.Redis.URL = getenv("REDIS_URL")
	}
	if port := getenv("PORT"); port != "" && c.Addr == defaultAddr {
		c.Addr = "0.0.0.0:" + port
	}
}

func (c *Config) validate() error {
	switch {
	case c.DatabaseURL == "":
		return errors.New("database URL is required: set BOUTIQUE_DATABASE_URL or DATABASE_URL")
	case c.APIKeyPepper == "":
		return errors.New("API key pepper is required: set BOUTIQUE_API_KEY_PEPPER")
	case c.Redis.URL != "" && c.Redis.CartTTL <= 0:
		return errors.Errorf("cart TTL must be positive, got %s", c.Redis.CartTTL)
	}
	return nil
}
