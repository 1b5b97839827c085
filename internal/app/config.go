package app

import (
	"os"
	"time"

	"github.com/cristalhq/aconfig"
	"github.com/cristalhq/aconfig/aconfigyaml"
	"github.com/go-faster/errors"
)

// Config holds the complete application configuration, loadable from
// environment variables (CHECKOUT_ prefix), flags, or YAML config files.
type Config struct {
	Addr        string `default:"0.0.0.0:8080" usage:"BFF listen address"`
	UpstreamURL string `usage:"Base URL of the store backend API (CHECKOUT_UPSTREAM_URL or UPSTREAM_URL)" flag:"upstream-url"`
	DatabaseURL string `usage:"PostgreSQL connection URL for cart snapshots; empty keeps carts in memory (CHECKOUT_DATABASE_URL or DATABASE_URL)" flag:"database-url"`
	Upstream    UpstreamConfig
	Session     SessionConfig
	Barcode     BarcodeConfig
	RateLimit   RateLimitConfig
	CORS        CORSConfig
	Graceful    GracefulConfig
}

// UpstreamConfig controls the HTTP client used against the store backend.
type UpstreamConfig struct {
	Timeout time.Duration `default:"10s" usage:"Per-request timeout for upstream calls" flag:"upstream-timeout"`
}

// SessionConfig controls checkout session lifetime.
type SessionConfig struct {
	TTL           time.Duration `default:"30m" usage:"Idle time before a session is evicted" flag:"session-ttl"`
	SweepInterval time.Duration `default:"1m"  usage:"How often idle sessions are swept" flag:"session-sweep"`
}

// BarcodeConfig sizes the in-memory barcode screen.
type BarcodeConfig struct {
	Capacity uint    `default:"1000000" usage:"Expected number of known barcodes" flag:"barcode-capacity"`
	FPR      float64 `default:"0.001"   usage:"Barcode screen false positive rate" flag:"barcode-fpr"`
}

// RateLimitConfig controls the per-client fixed window rate limiter.
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

// LoadConfig loads configuration from environment variables, YAML config
// files, and applies platform-specific defaults.
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

	if cfg.UpstreamURL == "" {
		return nil, errors.New("upstream URL is required: set CHECKOUT_UPSTREAM_URL or UPSTREAM_URL")
	}

	return &cfg, nil
}

// applyPlatformDefaults maps platform-provided environment variables
// (Railway, Render, etc.) that use standard names like DATABASE_URL and PORT
// to the application's CHECKOUT_-prefixed configuration.
func (c *Config) applyPlatformDefaults() {
	if c.UpstreamURL == "" {
		if v := os.Getenv("UPSTREAM_URL"); v != "" {
			c.UpstreamURL = v
		}
	}
	if c.DatabaseURL == "" {
		if v := os.Getenv("DATABASE_URL"); v != "" {
			c.DatabaseURL = v
		}
	}
	if port := os.Getenv("PORT"); port != "" && c.Addr == "0.0.0.0:8080" {
		c.Addr = "0.0.0.0:" + port
	}
}
