package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "8080" {
		t.Errorf("Port = %q, want 8080", cfg.Port)
	}
	if !cfg.StartingBalance.Equal(decimal.NewFromInt(1000000)) {
		t.Errorf("StartingBalance = %s, want 1000000", cfg.StartingBalance)
	}
	if cfg.TickInterval != 2*time.Second {
		t.Errorf("TickInterval = %s, want 2s", cfg.TickInterval)
	}
	if cfg.SessionTTL != 24*time.Hour {
		t.Errorf("SessionTTL = %s, want 24h", cfg.SessionTTL)
	}
	if len(cfg.AllowedOrigins) != 1 || cfg.AllowedOrigins[0] != "*" {
		t.Errorf("AllowedOrigins = %v, want [*]", cfg.AllowedOrigins)
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("PORT", "9999")
	t.Setenv("STARTING_BALANCE", "500.50")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example, https://b.example")
	t.Setenv("PRICE_HISTORY_SIZE", "12")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Port != "9999" {
		t.Errorf("Port = %q, want 9999", cfg.Port)
	}
	if !cfg.StartingBalance.Equal(decimal.NewFromFloat(500.50)) {
		t.Errorf("StartingBalance = %s, want 500.50", cfg.StartingBalance)
	}
	if len(cfg.AllowedOrigins) != 2 || cfg.AllowedOrigins[1] != "https://b.example" {
		t.Errorf("AllowedOrigins = %v, want two trimmed origins", cfg.AllowedOrigins)
	}
	if cfg.HistorySize != 12 {
		t.Errorf("HistorySize = %d, want 12", cfg.HistorySize)
	}
}

func TestLoadRejectsBadBalance(t *testing.T) {
	t.Setenv("STARTING_BALANCE", "not-a-number")

	if _, err := Load(); err == nil {
		t.Fatal("Load succeeded with unparseable STARTING_BALANCE")
	}
}

func TestEnvHelpersFallBackOnGarbage(t *testing.T) {
	t.Setenv("SOME_INT", "twelve")
	t.Setenv("SOME_DUR", "fast")

	if got := getEnvAsInt("SOME_INT", 7); got != 7 {
		t.Errorf("getEnvAsInt = %d, want fallback 7", got)
	}
	if got := getEnvAsDuration("SOME_DUR", time.Minute); got != time.Minute {
		t.Errorf("getEnvAsDuration = %s, want fallback 1m", got)
	}
}

func TestValidate(t *testing.T) {
	base := func() *Config {
		return &Config{
			DataFile:        "data/accounts.json",
			StartingBalance: decimal.NewFromInt(1000000),
			SessionTTL:      time.Hour,
			TickInterval:    time.Second,
			HistorySize:     10,
		}
	}

	if err := base().Validate(); err != nil {
		t.Fatalf("valid config rejected: %v", err)
	}

	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no store", func(c *Config) { c.DataFile = ""; c.DatabaseURL = "" }},
		{"zero balance", func(c *Config) { c.StartingBalance = decimal.Zero }},
		{"zero ttl", func(c *Config) { c.SessionTTL = 0 }},
		{"tick too fast", func(c *Config) { c.TickInterval = time.Millisecond }},
		{"history too small", func(c *Config) { c.HistorySize = 1 }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := base()
			tc.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate accepted an invalid config")
			}
		})
	}
}

func TestLoadSymbolsDefaults(t *testing.T) {
	symbols, err := LoadSymbols("")
	if err != nil {
		t.Fatalf("LoadSymbols: %v", err)
	}
	if len(symbols) == 0 {
		t.Fatal("default catalog is empty")
	}
	for _, s := range symbols {
		if s.Symbol == "" || s.Name == "" || !s.StartPrice.IsPositive() || s.Volatility <= 0 {
			t.Errorf("default symbol %+v is incomplete", s)
		}
	}
}

func TestLoadSymbolsFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "symbols.yaml")
	content := `symbols:
  - symbol: hog
    name: Lean Hogs
    startPrice: "120"
    volatility: 0.004
    drift: 0.0001
  - symbol: WTI
    startPrice: "78.50"
`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	symbols, err := LoadSymbols(path)
	if err != nil {
		t.Fatalf("LoadSymbols: %v", err)
	}
	if len(symbols) != 2 {
		t.Fatalf("len(symbols) = %d, want 2", len(symbols))
	}
	if symbols[0].Symbol != "HOG" {
		t.Errorf("symbol = %q, want upper-cased HOG", symbols[0].Symbol)
	}
	if symbols[1].Name != "WTI" {
		t.Errorf("name = %q, want symbol fallback WTI", symbols[1].Name)
	}
	if symbols[1].Volatility <= 0 {
		t.Errorf("volatility = %f, want default applied", symbols[1].Volatility)
	}
	if !symbols[1].StartPrice.Equal(decimal.NewFromFloat(78.50)) {
		t.Errorf("startPrice = %s, want 78.50", symbols[1].StartPrice)
	}
}

func TestLoadSymbolsRejectsBadFile(t *testing.T) {
	dir := t.TempDir()

	missing := filepath.Join(dir, "nope.yaml")
	if _, err := LoadSymbols(missing); err == nil {
		t.Error("LoadSymbols succeeded on a missing file")
	}

	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("symbols:\n  - symbol: X\n    startPrice: \"-5\"\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := LoadSymbols(bad); err == nil {
		t.Error("LoadSymbols accepted a negative start price")
	}

	empty := filepath.Join(dir, "empty.yaml")
	if err := os.WriteFile(empty, []byte("symbols: []\n"), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	if _, err := LoadSymbols(empty); err == nil {
		t.Error("LoadSymbols accepted an empty catalog")
	}
}
