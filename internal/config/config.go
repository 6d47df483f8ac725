package config

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port          string `envconfig:"PORT" default:"8080"`
	AllowedOrigin string `envconfig:"ALLOWED_ORIGIN" default:"http://127.0.0.1:3000"`
	LogLevel      string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat     string `envconfig:"LOG_FORMAT" default:"console"`

	// Flat-file stores live under DataDir unless DATABASE_URL moves the
	// ledger into Postgres.
	DataDir     string `envconfig:"DATA_DIR" default:"."`
	InvoiceFile string `envconfig:"INVOICE_FILE" default:"invoices.txt"`
	ProductFile string `envconfig:"PRODUCT_FILE" default:"products.txt"`
	UsersFile   string `envconfig:"USERS_FILE" default:"users.txt"`
	DatabaseURL string `envconfig:"DATABASE_URL"`

	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`

	AuthSecret            string `envconfig:"AUTH_SECRET"`
	AccessTokenTTLMinutes int    `envconfig:"ACCESS_TOKEN_TTL_MINUTES" default:"480"`

	// Legacy capacity limits, kept as explicit configurable checks.
	// Zero disables a cap.
	MaxCartLines int `envconfig:"MAX_CART_LINES" default:"50"`
	MaxInvoices  int `envconfig:"MAX_INVOICES" default:"100"`
	MaxProducts  int `envconfig:"MAX_PRODUCTS" default:"100"`
	MaxUsers     int `envconfig:"MAX_USERS" default:"20"`

	// TaxRate is applied at display time only; stored totals are pre-tax.
	TaxRate float64 `envconfig:"TAX_RATE" default:"0.13"`

	HeldCartTTLHours  int    `envconfig:"HELD_CART_TTL_HOURS" default:"24"`
	DefaultTerminalID string `envconfig:"DEFAULT_TERMINAL_ID" default:"terminal-1"`
}

func Load() (Config, error) {
	// A local .env is a dev convenience; absence is not an error.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	if cfg.TaxRate < 0 || cfg.TaxRate >= 1 {
		return Config{}, fmt.Errorf("TAX_RATE must be in [0,1), got %v", cfg.TaxRate)
	}
	return cfg, nil
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) InvoicePath() string {
	return filepath.Join(c.DataDir, c.InvoiceFile)
}

func (c Config) ProductPath() string {
	return filepath.Join(c.DataDir, c.ProductFile)
}

func (c Config) UsersPath() string {
	return filepath.Join(c.DataDir, c.UsersFile)
}

func (c Config) AccessTokenTTL() time.Duration {
	if c.AccessTokenTTLMinutes < 1 {
		return 8 * time.Hour
	}
	return time.Duration(c.AccessTokenTTLMinutes) * time.Minute
}

func (c Config) HeldCartTTL() time.Duration {
	if c.HeldCartTTLHours < 1 {
		return 24 * time.Hour
	}
	return time.Duration(c.HeldCartTTLHours) * time.Hour
}
