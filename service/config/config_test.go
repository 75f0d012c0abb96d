package config

import (
	"testing"
	"time"

	"github.com/brojonat/blinks/service/actions"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, ":8080", cfg.ServerAddr)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Empty(t, cfg.NATSURL)
	assert.Empty(t, cfg.PublicBaseURL)
	assert.Equal(t, rpc.MainNetBeta_RPC, cfg.SolanaRPCURL)
	assert.Equal(t, rpc.CommitmentConfirmed, cfg.BlockhashCommitment)
	assert.Equal(t, "https://pumpportal.fun/api", cfg.PumpPortalURL)
	assert.Equal(t, "https://lite-api.jup.ag/swap/v1", cfg.JupiterURL)
	assert.Equal(t, 10*time.Second, cfg.QuoteTimeout)

	defaults := actions.DefaultDonateConfig()
	assert.Equal(t, defaults.Destination, cfg.Donate.Destination)
	assert.Len(t, cfg.Donate.Presets, 3)
	assert.True(t, cfg.Donate.Default.Equal(decimal.NewFromInt(1)))

	assert.Equal(t, 35, cfg.Buy.SlippagePercent)
	assert.Equal(t, "pump", cfg.Buy.Pool)
	assert.True(t, cfg.Buy.PriorityFeeSOL.Equal(decimal.RequireFromString("0.005")))

	assert.Equal(t, uint16(50), cfg.Swap.SlippageBps)
	assert.Nil(t, cfg.Swap.FeeAccount)
}

func TestLoad_CustomValues(t *testing.T) {
	destination := solana.NewWallet().PublicKey()
	feeAccount := solana.NewWallet().PublicKey()

	t.Setenv("SERVER_ADDR", ":9090")
	t.Setenv("LOG_LEVEL", "debug")
	t.Setenv("PUBLIC_BASE_URL", "https://blinks.example.com/")
	t.Setenv("NATS_URL", "nats://nats.example.com:4222")
	t.Setenv("SOLANA_RPC_URL", "https://rpc-a.example.com,https://rpc-b.example.com")
	t.Setenv("BLOCKHASH_COMMITMENT", "finalized")
	t.Setenv("QUOTE_TIMEOUT", "3s")
	t.Setenv("DONATE_DESTINATION", destination.String())
	t.Setenv("DONATE_AMOUNTS_SOL", "0.5, 2")
	t.Setenv("DONATE_DEFAULT_SOL", "2")
	t.Setenv("BUY_AMOUNTS_SOL", "0.1")
	t.Setenv("BUY_DEFAULT_SOL", "0.1")
	t.Setenv("BUY_SLIPPAGE_PERCENT", "10")
	t.Setenv("BUY_PRIORITY_FEE_SOL", "0.0001")
	t.Setenv("BUY_POOL", "raydium")
	t.Setenv("SWAP_AMOUNTS", "1,2,3,4")
	t.Setenv("SWAP_DEFAULT", "3")
	t.Setenv("SWAP_SLIPPAGE_BPS", "100")
	t.Setenv("SWAP_PLATFORM_FEE_BPS", "20")
	t.Setenv("SWAP_FEE_ACCOUNT", feeAccount.String())

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.ServerAddr)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "https://blinks.example.com", cfg.PublicBaseURL)
	assert.Equal(t, "nats://nats.example.com:4222", cfg.NATSURL)
	assert.Equal(t, rpc.CommitmentFinalized, cfg.BlockhashCommitment)
	assert.Equal(t, 3*time.Second, cfg.QuoteTimeout)

	assert.Equal(t, destination, cfg.Donate.Destination)
	require.Len(t, cfg.Donate.Presets, 2)
	assert.Equal(t, "0.5", cfg.Donate.Presets[0].String())
	assert.Equal(t, "2", cfg.Donate.Default.String())
	assert.Equal(t, "https://blinks.example.com", cfg.Donate.BaseURL)

	assert.Equal(t, 10, cfg.Buy.SlippagePercent)
	assert.Equal(t, "0.0001", cfg.Buy.PriorityFeeSOL.String())
	assert.Equal(t, "raydium", cfg.Buy.Pool)
	assert.Equal(t, "https://blinks.example.com", cfg.Buy.BaseURL)

	assert.Len(t, cfg.Swap.Presets, 4)
	assert.Equal(t, "3", cfg.Swap.Default.String())
	assert.Equal(t, uint16(100), cfg.Swap.SlippageBps)
	assert.Equal(t, uint16(20), cfg.Swap.PlatformFeeBps)
	require.NotNil(t, cfg.Swap.FeeAccount)
	assert.Equal(t, feeAccount, *cfg.Swap.FeeAccount)
}

func TestLoad_AccumulatesErrors(t *testing.T) {
	t.Setenv("QUOTE_TIMEOUT", "soon")
	t.Setenv("DONATE_DESTINATION", "not-a-key")
	t.Setenv("DONATE_AMOUNTS_SOL", "1,abc")
	t.Setenv("BUY_SLIPPAGE_PERCENT", "lots")
	t.Setenv("SWAP_SLIPPAGE_BPS", "-5")

	cfg, err := Load()
	require.Error(t, err)
	assert.Nil(t, cfg)

	msg := err.Error()
	assert.Contains(t, msg, "QUOTE_TIMEOUT: invalid duration")
	assert.Contains(t, msg, "DONATE_DESTINATION: invalid public key")
	assert.Contains(t, msg, "DONATE_AMOUNTS_SOL")
	assert.Contains(t, msg, "BUY_SLIPPAGE_PERCENT: invalid integer")
	assert.Contains(t, msg, "SWAP_SLIPPAGE_BPS: invalid basis points")
}

func TestLoad_RejectsNonPositiveDefault(t *testing.T) {
	t.Setenv("DONATE_DEFAULT_SOL", "0")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DONATE_DEFAULT_SOL")
}

func TestLoad_InvalidCommitment(t *testing.T) {
	t.Setenv("BLOCKHASH_COMMITMENT", "eventually")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "BlockhashCommitment")
}

func validConfig() *Config {
	return &Config{
		ServerAddr:          ":8080",
		SolanaRPCURL:        rpc.MainNetBeta_RPC,
		BlockhashCommitment: rpc.CommitmentConfirmed,
		QuoteTimeout:        10 * time.Second,
		Donate:              actions.DefaultDonateConfig(),
		Buy:                 actions.DefaultBuyConfig(),
		Swap:                actions.DefaultSwapConfig(),
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"missing rpc url", func(c *Config) { c.SolanaRPCURL = "" }, "SolanaRPCURL is required"},
		{"zero timeout", func(c *Config) { c.QuoteTimeout = 0 }, "QuoteTimeout must be positive"},
		{"zero destination", func(c *Config) { c.Donate.Destination = solana.PublicKey{} }, "Donate.Destination is required"},
		{"no presets", func(c *Config) { c.Swap.Presets = nil }, "Swap.Presets must not be empty"},
		{"slippage above 100", func(c *Config) { c.Buy.SlippagePercent = 101 }, "Buy.SlippagePercent"},
		{"empty pool", func(c *Config) { c.Buy.Pool = "" }, "Buy.Pool is required"},
		{"slippage bps too high", func(c *Config) { c.Swap.SlippageBps = 10001 }, "Swap.SlippageBps"},
		{"fee without account", func(c *Config) { c.Swap.PlatformFeeBps = 10 }, "Swap.FeeAccount is required"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestMustLoad_Panics(t *testing.T) {
	t.Setenv("QUOTE_TIMEOUT", "invalid")

	assert.Panics(t, func() {
		MustLoad()
	})
}

func TestMustLoad_Success(t *testing.T) {
	assert.NotPanics(t, func() {
		cfg := MustLoad()
		assert.NotNil(t, cfg)
	})
}
