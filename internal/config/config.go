// Package config defines all configuration for the execution engine.
// Config is loaded from a YAML file (default: ./config.yaml) with sensitive
// fields overridable via ENGINE_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file
// structure and covers every recognized option in the external interfaces
// table (spec §6) plus the ambient wallet/venue/journal/logging/dashboard
// sections a deployable binary needs.
type Config struct {
	DryRun    bool            `mapstructure:"dry_run"`
	Wallet    WalletConfig    `mapstructure:"wallet"`
	Venue     VenueConfig     `mapstructure:"venue"`
	Eligibility EligibilityConfig `mapstructure:"eligibility"`
	Risk      RiskConfig      `mapstructure:"risk"`
	Capital   CapitalConfig   `mapstructure:"capital"`
	Executor  ExecutorConfig  `mapstructure:"executor"`
	Scheduler SchedulerConfig `mapstructure:"scheduler"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Journal   JournalConfig   `mapstructure:"journal"`
	MarketSource MarketSourceConfig `mapstructure:"market_source"`
	Store     StoreConfig     `mapstructure:"store"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Dashboard DashboardConfig `mapstructure:"dashboard"`
	ShutdownGraceMs int       `mapstructure:"shutdown_grace_ms"`
}

// WalletConfig holds the Ethereum wallet used for signing orders.
// PrivateKey signs L1 (EIP-712) auth and derives L2 API keys.
// FunderAddress is the on-chain address that funds orders (may differ from
// signer if using a proxy / smart wallet).
type WalletConfig struct {
	PrivateKey    string `mapstructure:"private_key"`
	SignatureType int    `mapstructure:"signature_type"`
	FunderAddress string `mapstructure:"funder_address"`
	ChainID       int    `mapstructure:"chain_id"`
}

// VenueConfig holds the venue's API endpoints and optional pre-derived L2
// credentials. If ApiKey/Secret/Passphrase are empty, the client derives
// them via L1 auth on startup.
type VenueConfig struct {
	CLOBBaseURL  string `mapstructure:"clob_base_url"`
	GammaBaseURL string `mapstructure:"gamma_base_url"`
	WSMarketURL  string `mapstructure:"ws_market_url"`
	WSUserURL    string `mapstructure:"ws_user_url"`
	ApiKey       string `mapstructure:"api_key"`
	Secret       string `mapstructure:"secret"`
	Passphrase   string `mapstructure:"passphrase"`
}

// EligibilityConfig tunes the expiration-sniping predicate (spec §4.8).
type EligibilityConfig struct {
	TimeToEligibilitySec int     `mapstructure:"time_to_eligibility_sec"`
	MaxBuyPrice          float64 `mapstructure:"max_buy_price"`
	MinEdge              float64 `mapstructure:"min_edge"`
	TokenSide            string  `mapstructure:"token_side"` // "YES" or "NO"
}

// RiskConfig sets kill-switch, circuit-breaker, and exposure-limit
// thresholds (spec §4.3, §6).
type RiskConfig struct {
	StaleFeedThresholdMs   int64         `mapstructure:"stale_feed_threshold_ms"`
	RpcLagThresholdMs      int64         `mapstructure:"rpc_lag_threshold_ms"`
	MaxOutstandingOrders   int           `mapstructure:"max_outstanding_orders"`
	DailyLossLimitPercent  float64       `mapstructure:"daily_loss_limit_percent"`
	KillSwitchDebounce     time.Duration `mapstructure:"kill_switch_debounce"`

	FailureThreshold       int           `mapstructure:"failure_threshold"`
	RecoveryTimeoutSeconds int           `mapstructure:"recovery_timeout_seconds"`
	HalfOpenMaxRequests    int           `mapstructure:"half_open_max_requests"`

	MaxExposurePerMarketPercent  float64 `mapstructure:"max_exposure_per_market_percent"`
	MaxExposurePerMarketAbsolute float64 `mapstructure:"max_exposure_per_market_absolute"`
	MaxTotalExposurePercent      float64 `mapstructure:"max_total_exposure_percent"`

	MaxFailuresBeforeHold int           `mapstructure:"max_failures_before_hold"`
	FailureRecoveryWindow time.Duration `mapstructure:"failure_recovery_window"`

	FeeBps int64 `mapstructure:"fee_bps"`
}

// CapitalConfig sizes the allocator and recycler (spec §4.4).
type CapitalConfig struct {
	InitialBankroll    float64       `mapstructure:"initial_bankroll"`
	OrderSplitThreshold float64      `mapstructure:"order_split_threshold"`
	OrderSplitCount     int          `mapstructure:"order_split_count"`
	RecyclerDelay       time.Duration `mapstructure:"recycler_delay"`
	RecyclerTickInterval time.Duration `mapstructure:"recycler_tick_interval"`
}

// ExecutorConfig tunes dedupe, rate limiting, and dispatch retry policy
// (spec §4.5, §6).
type ExecutorConfig struct {
	MaxOrdersPerMinute  int           `mapstructure:"max_orders_per_minute"`
	DedupeQuantizeCents float64       `mapstructure:"dedupe_quantize_cents"`
	OrderTimeoutMs      int           `mapstructure:"order_timeout_ms"`
	MaxRetries          int           `mapstructure:"max_retries"`
	MaxBackoff          time.Duration `mapstructure:"max_backoff"`
	WorkerPoolSize      int           `mapstructure:"worker_pool_size"`
}

// SchedulerConfig tunes the transition sweep cadence (spec §5, §6).
type SchedulerConfig struct {
	TransitionSweepInterval time.Duration `mapstructure:"transition_sweep_interval_ms"`
}

// MetricsConfig sets the MetricsCollector's retention window (spec §4.7).
type MetricsConfig struct {
	HistoryHours int `mapstructure:"history_hours"`
}

// JournalConfig sets where the trade journal is written (spec §4.6).
type JournalConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// MarketSourceConfig controls how the engine discovers tradeable markets.
type MarketSourceConfig struct {
	PollInterval   time.Duration `mapstructure:"poll_interval"`
	MinLiquidity   float64       `mapstructure:"min_liquidity"`
	MinVolume24h   float64       `mapstructure:"min_volume_24h"`
	MaxEndDateDays int           `mapstructure:"max_end_date_days"`
	ExcludeSlugs   []string      `mapstructure:"exclude_slugs"`
}

// StoreConfig sets where allocator/FSM checkpoints are persisted.
type StoreConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

// LoggingConfig selects slog's level and handler format.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// DashboardConfig controls the read-only dashboard server.
type DashboardConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads config from a YAML file with env var overrides. Sensitive
// fields use env vars: ENGINE_WALLET_PRIVATE_KEY, ENGINE_VENUE_API_KEY,
// ENGINE_VENUE_SECRET, ENGINE_VENUE_PASSPHRASE, ENGINE_DRY_RUN.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("ENGINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if key := os.Getenv("ENGINE_WALLET_PRIVATE_KEY"); key != "" {
		cfg.Wallet.PrivateKey = key
	}
	if key := os.Getenv("ENGINE_VENUE_API_KEY"); key != "" {
		cfg.Venue.ApiKey = key
	}
	if secret := os.Getenv("ENGINE_VENUE_SECRET"); secret != "" {
		cfg.Venue.Secret = secret
	}
	if pass := os.Getenv("ENGINE_VENUE_PASSPHRASE"); pass != "" {
		cfg.Venue.Passphrase = pass
	}
	if v := os.Getenv("ENGINE_DRY_RUN"); v == "true" || v == "1" {
		cfg.DryRun = true
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges in one pass,
// returning every violation joined together rather than failing on the
// first (a configuration error is exit code 1, per spec §6 — an operator
// should see the whole list at once, not one field per re-run).
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if c.Wallet.PrivateKey == "" {
		fail("wallet.private_key is required (set ENGINE_WALLET_PRIVATE_KEY)")
	}
	if c.Wallet.ChainID == 0 {
		fail("wallet.chain_id is required (137 for Polygon mainnet)")
	}
	switch c.Wallet.SignatureType {
	case 0, 1, 2:
	default:
		fail("wallet.signature_type must be one of: 0 (EOA), 1 (PROXY), 2 (GNOSIS_SAFE)")
	}
	if c.Wallet.SignatureType != 0 && c.Wallet.FunderAddress == "" {
		fail("wallet.funder_address is required when wallet.signature_type is 1 or 2")
	}
	if c.Venue.CLOBBaseURL == "" {
		fail("venue.clob_base_url is required")
	}

	if c.Eligibility.TimeToEligibilitySec <= 0 {
		fail("eligibility.time_to_eligibility_sec must be > 0")
	}
	if c.Eligibility.MaxBuyPrice <= 0 || c.Eligibility.MaxBuyPrice >= 1 {
		fail("eligibility.max_buy_price must be in (0, 1)")
	}
	if c.Eligibility.MinEdge <= 0 {
		fail("eligibility.min_edge must be > 0")
	}
	if c.Eligibility.TokenSide != "YES" && c.Eligibility.TokenSide != "NO" {
		fail("eligibility.token_side must be YES or NO")
	}

	if c.Risk.MaxOutstandingOrders <= 0 {
		fail("risk.max_outstanding_orders must be > 0")
	}
	if c.Risk.DailyLossLimitPercent <= 0 {
		fail("risk.daily_loss_limit_percent must be > 0")
	}
	if c.Risk.FailureThreshold <= 0 {
		fail("risk.failure_threshold must be > 0")
	}
	if c.Risk.HalfOpenMaxRequests <= 0 {
		fail("risk.half_open_max_requests must be > 0")
	}
	if c.Risk.MaxExposurePerMarketPercent <= 0 || c.Risk.MaxExposurePerMarketPercent > 1 {
		fail("risk.max_exposure_per_market_percent must be in (0, 1]")
	}
	if c.Risk.MaxTotalExposurePercent <= 0 || c.Risk.MaxTotalExposurePercent > 1 {
		fail("risk.max_total_exposure_percent must be in (0, 1]")
	}

	if c.Capital.InitialBankroll <= 0 {
		fail("capital.initial_bankroll must be > 0")
	}
	if c.Capital.OrderSplitCount <= 0 {
		fail("capital.order_split_count must be > 0")
	}

	if c.Executor.MaxOrdersPerMinute <= 0 {
		fail("executor.max_orders_per_minute must be > 0")
	}
	if c.Executor.MaxRetries < 0 {
		fail("executor.max_retries must be >= 0")
	}
	if c.Executor.WorkerPoolSize <= 0 {
		fail("executor.worker_pool_size must be > 0")
	}

	if c.Metrics.HistoryHours <= 0 {
		fail("metrics.history_hours must be > 0")
	}

	if c.Journal.DataDir == "" {
		fail("journal.data_dir is required")
	}

	return errors.Join(errs...)
}
