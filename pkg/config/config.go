package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration, loaded from a YAML file
// merged over defaults, with environment variables overriding secrets.
type Config struct {
	Trading   TradingConfig   `yaml:"trading"`
	Scanning  ScanningConfig  `yaml:"scanning"`
	Logging   LoggingConfig   `yaml:"logging"`
	Storage   StorageConfig   `yaml:"storage"`
	Exchange  ExchangeConfig  `yaml:"exchange"`
	Oracle    OracleConfig    `yaml:"oracle"`
	Notifier  NotifierConfig  `yaml:"notifier"`
	Server    ServerConfig    `yaml:"server"`
	CryptoArb CryptoArbConfig `yaml:"cryptoarb"`
}

// TradingConfig gates and sizes every trade.
type TradingConfig struct {
	DryRun               bool    `yaml:"dry_run"`
	MaxRiskPerTradePct   float64 `yaml:"max_risk_per_trade_pct"`
	MaxDailyLoss         float64 `yaml:"max_daily_loss"`
	MaxOpenPositions     int     `yaml:"max_open_positions"`
	MaxContractsPerTrade int     `yaml:"max_contracts_per_trade"`
	MinScoreThreshold    float64 `yaml:"min_score_threshold"`
	FeeSafetyMultiplier  float64 `yaml:"fee_safety_multiplier"`
}

// ScanningConfig sets the orchestrator task periods.
type ScanningConfig struct {
	FullScanIntervalSeconds   int `yaml:"full_scan_interval_seconds"`
	OpportunityRecheckSeconds int `yaml:"opportunity_recheck_seconds"`
	RelationshipRescanHours   int `yaml:"relationship_rescan_hours"`
}

// FullScanInterval is the market ingestion period.
func (s ScanningConfig) FullScanInterval() time.Duration {
	return time.Duration(s.FullScanIntervalSeconds) * time.Second
}

// RecheckInterval is the violation detection period.
func (s ScanningConfig) RecheckInterval() time.Duration {
	return time.Duration(s.OpportunityRecheckSeconds) * time.Second
}

// EventPassInterval is the within-event relationship discovery period.
func (s ScanningConfig) EventPassInterval() time.Duration {
	return time.Duration(s.RelationshipRescanHours) * time.Hour
}

// CategoryPassInterval is three times the event pass period.
func (s ScanningConfig) CategoryPassInterval() time.Duration {
	return 3 * s.EventPassInterval()
}

// CrossPassInterval is three times the category pass period.
func (s ScanningConfig) CrossPassInterval() time.Duration {
	return 3 * s.CategoryPassInterval()
}

// LoggingConfig selects the log level and an optional file sink.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// StorageConfig selects the persistence backend.
type StorageConfig struct {
	Driver string `yaml:"driver"` // "postgres", "sqlite" or "console"
	DSN    string `yaml:"dsn"`
}

// ExchangeConfig carries the exchange endpoint and signing credentials.
// The private key may be given inline (PEM) or as a file path.
type ExchangeConfig struct {
	BaseURL        string `yaml:"base_url"`
	KeyID          string `yaml:"key_id"`
	PrivateKeyPEM  string `yaml:"-"`
	PrivateKeyPath string `yaml:"private_key_path"`
}

// OracleConfig points at the relationship-inference endpoint.
type OracleConfig struct {
	BaseURL   string `yaml:"base_url"`
	Model     string `yaml:"model"`
	MaxTokens int    `yaml:"max_tokens"`
	APIKey    string `yaml:"-"`
}

// NotifierConfig configures the webhook notification sink.
type NotifierConfig struct {
	WebhookURL   string `yaml:"webhook_url"`
	MaxPerMinute int    `yaml:"max_per_minute"`
}

// ServerConfig configures the ops HTTP server.
type ServerConfig struct {
	Port string `yaml:"port"`
}

// CryptoArbConfig configures the auxiliary YES+NO loop.
type CryptoArbConfig struct {
	EventPrefixes       []string `yaml:"event_prefixes"`
	MinProfitCents      int      `yaml:"min_profit_cents"`
	PollIntervalSeconds int      `yaml:"poll_interval_seconds"`
	MaxContractsPerLeg  int      `yaml:"max_contracts_per_leg"`
	CacheRefreshSeconds int      `yaml:"cache_refresh_seconds"`
	DryRun              bool     `yaml:"dry_run"`
}

// PollInterval is the scan cycle period.
func (c CryptoArbConfig) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalSeconds) * time.Second
}

// CacheRefresh is the background snapshot rebuild period.
func (c CryptoArbConfig) CacheRefresh() time.Duration {
	return time.Duration(c.CacheRefreshSeconds) * time.Second
}

// Default returns the compiled-in configuration.
func Default() *Config {
	return &Config{
		Trading: TradingConfig{
			DryRun:               true,
			MaxRiskPerTradePct:   0.02,
			MaxDailyLoss:         50.0,
			MaxOpenPositions:     10,
			MaxContractsPerTrade: 50,
			MinScoreThreshold:    0.05,
			FeeSafetyMultiplier:  2.0,
		},
		Scanning: ScanningConfig{
			FullScanIntervalSeconds:   60,
			OpportunityRecheckSeconds: 15,
			RelationshipRescanHours:   24,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			DSN:    "kalshi_arb.db",
		},
		Exchange: ExchangeConfig{
			BaseURL: "https://demo-api.kalshi.co/trade-api/v2",
		},
		Oracle: OracleConfig{
			BaseURL:   "https://api.anthropic.com",
			Model:     "claude-sonnet-4-5-20250929",
			MaxTokens: 4096,
		},
		Notifier: NotifierConfig{
			MaxPerMinute: 10,
		},
		Server: ServerConfig{
			Port: "8080",
		},
		CryptoArb: CryptoArbConfig{
			EventPrefixes: []string{
				"KXBTC-", "KXBTCD-",
				"KXETH-", "KXETHD-",
				"KXSOL-", "KXSOLD-",
				"KXXRP-", "KXXRPD-",
			},
			MinProfitCents:      2,
			PollIntervalSeconds: 5,
			MaxContractsPerLeg:  10,
			CacheRefreshSeconds: 60,
			DryRun:              true,
		},
	}
}

// Load reads the YAML file at path over the defaults and applies
// environment overrides. A missing file is not an error; the defaults and
// environment carry a minimal setup on their own.
func Load(path string) (*Config, error) {
	// Local .env, if present. Real environments set variables directly.
	_ = godotenv.Load()

	cfg := Default()

	data, err := os.ReadFile(path)
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}

	cfg.applyEnvOverrides()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		c.Server.Port = v
	}
	if v := os.Getenv("KALSHI_BASE_URL"); v != "" {
		c.Exchange.BaseURL = v
	}
	if v := os.Getenv("KALSHI_API_KEY_ID"); v != "" {
		c.Exchange.KeyID = v
	}
	if v := os.Getenv("KALSHI_RSA_PRIVATE_KEY"); v != "" {
		c.Exchange.PrivateKeyPEM = v
	}
	if v := os.Getenv("KALSHI_PRIVATE_KEY_PATH"); v != "" {
		c.Exchange.PrivateKeyPath = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Storage.DSN = v
		if strings.HasPrefix(v, "postgres://") || strings.HasPrefix(v, "postgresql://") {
			c.Storage.Driver = "postgres"
		}
	}
	if v := os.Getenv("ANTHROPIC_API_KEY"); v != "" {
		c.Oracle.APIKey = v
	}
	if v := os.Getenv("ANTHROPIC_SCAN_MODEL"); v != "" {
		c.Oracle.Model = v
	}
	if v := os.Getenv("DISCORD_WEBHOOK_URL"); v != "" {
		c.Notifier.WebhookURL = v
	}
}

// Validate checks invariants that would otherwise surface as confusing
// runtime failures.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server.port cannot be empty")
	}
	if c.Trading.MaxRiskPerTradePct <= 0 || c.Trading.MaxRiskPerTradePct >= 1 {
		return fmt.Errorf("trading.max_risk_per_trade_pct must be in (0, 1), got %f", c.Trading.MaxRiskPerTradePct)
	}
	if c.Trading.MaxOpenPositions <= 0 {
		return fmt.Errorf("trading.max_open_positions must be positive, got %d", c.Trading.MaxOpenPositions)
	}
	if c.Trading.MaxContractsPerTrade <= 0 {
		return fmt.Errorf("trading.max_contracts_per_trade must be positive, got %d", c.Trading.MaxContractsPerTrade)
	}
	if c.Trading.FeeSafetyMultiplier < 1 {
		return fmt.Errorf("trading.fee_safety_multiplier must be at least 1, got %f", c.Trading.FeeSafetyMultiplier)
	}
	switch c.Storage.Driver {
	case "postgres", "sqlite", "console":
	default:
		return fmt.Errorf("storage.driver must be postgres, sqlite or console, got %q", c.Storage.Driver)
	}
	if c.Storage.Driver != "console" && c.Storage.DSN == "" {
		return fmt.Errorf("storage.dsn required for driver %q", c.Storage.Driver)
	}
	if c.Scanning.FullScanIntervalSeconds <= 0 || c.Scanning.OpportunityRecheckSeconds <= 0 {
		return fmt.Errorf("scanning intervals must be positive")
	}
	if c.Exchange.BaseURL == "" {
		return fmt.Errorf("exchange.base_url cannot be empty")
	}
	return nil
}

// RequireExchangeCredentials returns an error unless signing credentials
// are configured. Commands that only read public market data skip this.
func (c *Config) RequireExchangeCredentials() error {
	if c.Exchange.KeyID == "" {
		return fmt.Errorf("KALSHI_API_KEY_ID is not set")
	}
	if c.Exchange.PrivateKeyPEM == "" && c.Exchange.PrivateKeyPath == "" {
		return fmt.Errorf("no private key: set KALSHI_RSA_PRIVATE_KEY or KALSHI_PRIVATE_KEY_PATH")
	}
	return nil
}
