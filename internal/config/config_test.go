package config

import (
	"path/filepath"
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Port != "8080" {
		t.Fatalf("expected default port 8080, got %s", cfg.Port)
	}
	if cfg.TaxRate != 0.13 {
		t.Fatalf("expected default tax rate 0.13, got %v", cfg.TaxRate)
	}
	if cfg.MaxCartLines != 50 || cfg.MaxInvoices != 100 || cfg.MaxProducts != 100 || cfg.MaxUsers != 20 {
		t.Fatalf("unexpected default caps: %+v", cfg)
	}
	if cfg.DefaultTerminalID != "terminal-1" {
		t.Fatalf("expected default terminal-1, got %s", cfg.DefaultTerminalID)
	}
	if cfg.AccessTokenTTL() != 480*time.Minute {
		t.Fatalf("expected 480m token ttl, got %v", cfg.AccessTokenTTL())
	}
	if cfg.HeldCartTTL() != 24*time.Hour {
		t.Fatalf("expected 24h held-cart ttl, got %v", cfg.HeldCartTTL())
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("PORT", "9000")
	t.Setenv("DATA_DIR", "/var/lib/sportpos")
	t.Setenv("INVOICE_FILE", "ledger.txt")
	t.Setenv("TAX_RATE", "0.2")
	t.Setenv("MAX_CART_LINES", "0")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Address() != ":9000" {
		t.Fatalf("expected :9000, got %s", cfg.Address())
	}
	if got := cfg.InvoicePath(); got != filepath.Join("/var/lib/sportpos", "ledger.txt") {
		t.Fatalf("bad invoice path %s", got)
	}
	if cfg.TaxRate != 0.2 {
		t.Fatalf("expected tax rate 0.2, got %v", cfg.TaxRate)
	}
	if cfg.MaxCartLines != 0 {
		t.Fatalf("expected cap disabled, got %d", cfg.MaxCartLines)
	}
}

func TestLoadRejectsBadTaxRate(t *testing.T) {
	t.Setenv("TAX_RATE", "1.5")
	if _, err := Load(); err == nil {
		t.Fatalf("expected tax rate validation to fail")
	}
}
