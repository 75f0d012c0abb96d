package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/brojonat/blinks/service/actions"
	"github.com/brojonat/blinks/service/amount"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
)

// Config holds all application configuration loaded from environment variables.
// All fields are validated at startup to ensure fail-fast behavior.
type Config struct {
	// Server configuration
	ServerAddr string
	LogLevel   string

	// PublicBaseURL prefixes the hrefs in action metadata. Empty means relative links.
	PublicBaseURL string

	// NATS configuration. Empty disables event publishing.
	NATSURL string

	// Solana configuration. SolanaRPCURL may hold several comma separated endpoints.
	SolanaRPCURL        string
	BlockhashCommitment rpc.CommitmentType

	// Quote providers
	PumpPortalURL string
	JupiterURL    string
	QuoteTimeout  time.Duration

	// Action business rules
	Donate actions.DonateConfig
	Buy    actions.BuyConfig
	Swap   actions.SwapConfig
}

// Load reads configuration from environment variables and validates all fields.
// Every problem is reported, not just the first one.
func Load() (*Config, error) {
	cfg := &Config{
		Donate: actions.DefaultDonateConfig(),
		Buy:    actions.DefaultBuyConfig(),
		Swap:   actions.DefaultSwapConfig(),
	}
	var errs []error

	// Server configuration
	cfg.ServerAddr = getEnvOrDefault("SERVER_ADDR", ":8080")
	cfg.LogLevel = getEnvOrDefault("LOG_LEVEL", "info")
	cfg.PublicBaseURL = strings.TrimRight(os.Getenv("PUBLIC_BASE_URL"), "/")

	cfg.NATSURL = os.Getenv("NATS_URL")

	// Solana configuration
	cfg.SolanaRPCURL = getEnvOrDefault("SOLANA_RPC_URL", rpc.MainNetBeta_RPC)
	cfg.BlockhashCommitment = rpc.CommitmentType(getEnvOrDefault("BLOCKHASH_COMMITMENT", string(rpc.CommitmentConfirmed)))

	// Quote providers
	cfg.PumpPortalURL = getEnvOrDefault("PUMPPORTAL_URL", "https://pumpportal.fun/api")
	cfg.JupiterURL = getEnvOrDefault("JUPITER_URL", "https://lite-api.jup.ag/swap/v1")
	timeout, err := parseDuration("QUOTE_TIMEOUT", "10s")
	if err != nil {
		errs = append(errs, err)
	} else {
		cfg.QuoteTimeout = timeout
	}

	// Donate
	if pk, err := parsePublicKey("DONATE_DESTINATION", cfg.Donate.Destination); err != nil {
		errs = append(errs, err)
	} else {
		cfg.Donate.Destination = pk
	}
	if presets, err := parseAmounts("DONATE_AMOUNTS_SOL", cfg.Donate.Presets); err != nil {
		errs = append(errs, err)
	} else {
		cfg.Donate.Presets = presets
	}
	if def, err := parseAmount("DONATE_DEFAULT_SOL", cfg.Donate.Default); err != nil {
		errs = append(errs, err)
	} else {
		cfg.Donate.Default = def
	}

	// Buy
	if presets, err := parseAmounts("BUY_AMOUNTS_SOL", cfg.Buy.Presets); err != nil {
		errs = append(errs, err)
	} else {
		cfg.Buy.Presets = presets
	}
	if def, err := parseAmount("BUY_DEFAULT_SOL", cfg.Buy.Default); err != nil {
		errs = append(errs, err)
	} else {
		cfg.Buy.Default = def
	}
	if slippage, err := parseInt("BUY_SLIPPAGE_PERCENT", cfg.Buy.SlippagePercent); err != nil {
		errs = append(errs, err)
	} else {
		cfg.Buy.SlippagePercent = slippage
	}
	if fee, err := parseAmount("BUY_PRIORITY_FEE_SOL", cfg.Buy.PriorityFeeSOL); err != nil {
		errs = append(errs, err)
	} else {
		cfg.Buy.PriorityFeeSOL = fee
	}
	cfg.Buy.Pool = getEnvOrDefault("BUY_POOL", cfg.Buy.Pool)

	// Swap
	if presets, err := parseAmounts("SWAP_AMOUNTS", cfg.Swap.Presets); err != nil {
		errs = append(errs, err)
	} else {
		cfg.Swap.Presets = presets
	}
	if def, err := parseAmount("SWAP_DEFAULT", cfg.Swap.Default); err != nil {
		errs = append(errs, err)
	} else {
		cfg.Swap.Default = def
	}
	if bps, err := parseBps("SWAP_SLIPPAGE_BPS", cfg.Swap.SlippageBps); err != nil {
		errs = append(errs, err)
	} else {
		cfg.Swap.SlippageBps = bps
	}
	if bps, err := parseBps("SWAP_PLATFORM_FEE_BPS", cfg.Swap.PlatformFeeBps); err != nil {
		errs = append(errs, err)
	} else {
		cfg.Swap.PlatformFeeBps = bps
	}
	if raw := os.Getenv("SWAP_FEE_ACCOUNT"); raw != "" {
		pk, err := solana.PublicKeyFromBase58(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("SWAP_FEE_ACCOUNT: invalid public key %q: %w", raw, err))
		} else {
			cfg.Swap.FeeAccount = &pk
		}
	}

	cfg.Donate.BaseURL = cfg.PublicBaseURL
	cfg.Buy.BaseURL = cfg.PublicBaseURL
	cfg.Swap.BaseURL = cfg.PublicBaseURL

	if len(errs) > 0 {
		return nil, fmt.Errorf("configuration validation failed: %w", errors.Join(errs...))
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// MustLoad is like Load but panics if configuration is invalid.
// Useful for server initialization where misconfiguration should halt startup.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}

// Validate checks cross-field rules.
// This is useful for testing configuration without loading from env.
func (c *Config) Validate() error {
	var errs []error

	if c.ServerAddr == "" {
		errs = append(errs, fmt.Errorf("ServerAddr is required"))
	}

	if c.SolanaRPCURL == "" {
		errs = append(errs, fmt.Errorf("SolanaRPCURL is required"))
	}

	switch c.BlockhashCommitment {
	case rpc.CommitmentProcessed, rpc.CommitmentConfirmed, rpc.CommitmentFinalized:
	default:
		errs = append(errs, fmt.Errorf("BlockhashCommitment must be processed, confirmed or finalized, got %q", c.BlockhashCommitment))
	}

	if c.QuoteTimeout <= 0 {
		errs = append(errs, fmt.Errorf("QuoteTimeout must be positive"))
	}

	if c.Donate.Destination.IsZero() {
		errs = append(errs, fmt.Errorf("Donate.Destination is required"))
	}
	if len(c.Donate.Presets) == 0 {
		errs = append(errs, fmt.Errorf("Donate.Presets must not be empty"))
	}
	if len(c.Buy.Presets) == 0 {
		errs = append(errs, fmt.Errorf("Buy.Presets must not be empty"))
	}
	if len(c.Swap.Presets) == 0 {
		errs = append(errs, fmt.Errorf("Swap.Presets must not be empty"))
	}

	if !c.Donate.Default.IsPositive() || !c.Buy.Default.IsPositive() || !c.Swap.Default.IsPositive() {
		errs = append(errs, fmt.Errorf("default amounts must be greater than zero"))
	}

	if c.Buy.SlippagePercent < 0 || c.Buy.SlippagePercent > 100 {
		errs = append(errs, fmt.Errorf("Buy.SlippagePercent must be between 0 and 100, got %d", c.Buy.SlippagePercent))
	}

	if c.Buy.Pool == "" {
		errs = append(errs, fmt.Errorf("Buy.Pool is required"))
	}

	if c.Swap.SlippageBps > 10000 {
		errs = append(errs, fmt.Errorf("Swap.SlippageBps must be at most 10000, got %d", c.Swap.SlippageBps))
	}

	if c.Swap.PlatformFeeBps > 0 && c.Swap.FeeAccount == nil {
		errs = append(errs, fmt.Errorf("Swap.FeeAccount is required when PlatformFeeBps is set"))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %w", errors.Join(errs...))
	}

	return nil
}

// getEnvOrDefault returns the environment variable value or a default if not set.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// parseDuration parses a duration from an environment variable or uses a default.
func parseDuration(key, defaultValue string) (time.Duration, error) {
	value := getEnvOrDefault(key, defaultValue)
	duration, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", key, value, err)
	}
	return duration, nil
}

// parseInt parses an integer from an environment variable or uses a default.
func parseInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid integer %q: %w", key, value, err)
	}
	return result, nil
}

// parseBps parses a basis point value from an environment variable or uses a default.
func parseBps(key string, defaultValue uint16) (uint16, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	result, err := strconv.ParseUint(value, 10, 16)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid basis points %q: %w", key, value, err)
	}
	return uint16(result), nil
}

// parseAmount parses a positive decimal amount from an environment variable or uses a default.
func parseAmount(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := amount.Parse(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}

// parseAmounts parses a comma separated amount list from an environment variable or uses a default.
func parseAmounts(key string, defaultValue []decimal.Decimal) ([]decimal.Decimal, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	list, err := amount.ParseList(value)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return list, nil
}

// parsePublicKey parses a base58 public key from an environment variable or uses a default.
func parsePublicKey(key string, defaultValue solana.PublicKey) (solana.PublicKey, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	pk, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%s: invalid public key %q: %w", key, value, err)
	}
	return pk, nil
}
