// Package config loads runtime configuration from the environment, with a
// .env file picked up when present. Every knob has a default good enough
// for a local demo run; only deployments need to set anything.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/commodex/paper-engine/internal/market"
)

// Config holds all runtime settings.
type Config struct {
	Port        string
	DataFile    string
	DatabaseURL string
	RedisURL    string

	LegacySymbol    string
	StartingBalance decimal.Decimal
	SessionTTL      time.Duration

	TickInterval    time.Duration
	HistorySize     int
	InsightSchedule string
	SymbolsFile     string

	AllowedOrigins []string
	StaticDir      string

	LogLevel slog.Level
	LogFile  string
}

// Load reads the environment (and an optional .env file) into a validated
// Config.
func Load() (*Config, error) {
	_ = godotenv.Load()

	balance, err := decimal.NewFromString(getEnv("STARTING_BALANCE", "1000000"))
	if err != nil {
		return nil, fmt.Errorf("config: STARTING_BALANCE: %w", err)
	}

	cfg := &Config{
		Port:        getEnv("PORT", "8080"),
		DataFile:    getEnv("DATA_FILE", "data/accounts.json"),
		DatabaseURL: getEnv("DATABASE_URL", ""),
		RedisURL:    getEnv("REDIS_URL", ""),

		LegacySymbol:    getEnv("LEGACY_SYMBOL", "GOLD"),
		StartingBalance: balance,
		SessionTTL:      getEnvAsDuration("SESSION_TTL", 24*time.Hour),

		TickInterval:    getEnvAsDuration("PRICE_TICK_INTERVAL", 2*time.Second),
		HistorySize:     getEnvAsInt("PRICE_HISTORY_SIZE", 360),
		InsightSchedule: getEnv("INSIGHT_REFRESH", "@every 45s"),
		SymbolsFile:     getEnv("SYMBOLS_FILE", ""),

		AllowedOrigins: splitList(getEnv("ALLOWED_ORIGINS", "*")),
		StaticDir:      getEnv("STATIC_DIR", ""),

		LogLevel: parseLevel(getEnv("LOG_LEVEL", "info")),
		LogFile:  getEnv("LOG_FILE", ""),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configurations that cannot serve.
func (c *Config) Validate() error {
	if c.DataFile == "" && c.DatabaseURL == "" {
		return fmt.Errorf("config: either DATA_FILE or DATABASE_URL must be set")
	}
	if !c.StartingBalance.IsPositive() {
		return fmt.Errorf("config: STARTING_BALANCE must be positive, got %s", c.StartingBalance)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("config: SESSION_TTL must be positive, got %s", c.SessionTTL)
	}
	if c.TickInterval < 100*time.Millisecond {
		return fmt.Errorf("config: PRICE_TICK_INTERVAL must be at least 100ms, got %s", c.TickInterval)
	}
	if c.HistorySize < 2 {
		return fmt.Errorf("config: PRICE_HISTORY_SIZE must be at least 2, got %d", c.HistorySize)
	}
	return nil
}

// --- Env helpers ---

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		slog.Warn("invalid integer in environment, using fallback", "key", key, "value", raw, "fallback", fallback)
		return fallback
	}
	return v
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	raw := getEnv(key, "")
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		slog.Warn("invalid duration in environment, using fallback", "key", key, "value", raw, "fallback", fallback)
		return fallback
	}
	return v
}

func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// --- Symbols file ---

type symbolsFile struct {
	Symbols []symbolEntry `yaml:"symbols"`
}

type symbolEntry struct {
	Symbol     string  `yaml:"symbol"`
	Name       string  `yaml:"name"`
	StartPrice string  `yaml:"startPrice"`
	Volatility float64 `yaml:"volatility"`
	Drift      float64 `yaml:"drift"`
}

// LoadSymbols reads a YAML symbol catalog. An empty path returns the
// built-in defaults.
func LoadSymbols(path string) ([]market.SymbolConfig, error) {
	if path == "" {
		return market.DefaultSymbols(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read symbols file: %w", err)
	}
	var file symbolsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("config: parse symbols file: %w", err)
	}
	if len(file.Symbols) == 0 {
		return nil, fmt.Errorf("config: symbols file %s defines no symbols", path)
	}

	out := make([]market.SymbolConfig, 0, len(file.Symbols))
	for i, entry := range file.Symbols {
		symbol := strings.ToUpper(strings.TrimSpace(entry.Symbol))
		if symbol == "" {
			return nil, fmt.Errorf("config: symbols file entry %d has no symbol", i)
		}
		price, err := decimal.NewFromString(entry.StartPrice)
		if err != nil || !price.IsPositive() {
			return nil, fmt.Errorf("config: symbol %s has invalid startPrice %q", symbol, entry.StartPrice)
		}
		name := strings.TrimSpace(entry.Name)
		if name == "" {
			name = symbol
		}
		volatility := entry.Volatility
		if volatility <= 0 {
			volatility = 0.004
		}
		out = append(out, market.SymbolConfig{
			Symbol:     symbol,
			Name:       name,
			StartPrice: price,
			Volatility: volatility,
			Drift:      entry.Drift,
		})
	}
	return out, nil
}
