package solana

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/brojonat/blinks/service/metrics"
	"github.com/brojonat/blinks/service/txbuilder"
	"github.com/gagliardetto/solana-go"
	addresslookuptable "github.com/gagliardetto/solana-go/programs/address-lookup-table"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/jsonrpc"
)

// NativeDecimals is the number of decimals of native SOL (1 SOL = 10^9 lamports).
const NativeDecimals = 9

// invalidParamsCode is the JSON-RPC code returned when a parameter is of the wrong kind,
// e.g. getTokenSupply on an account that is not a token mint.
const invalidParamsCode = -32602

// RPCClient is an interface for the Solana RPC operations we need.
// This allows us to mock the RPC layer in tests without hitting real Solana nodes.
type RPCClient interface {
	GetLatestBlockhash(
		ctx context.Context,
		commitment rpc.CommitmentType,
	) (*rpc.GetLatestBlockhashResult, error)

	GetAccountInfo(
		ctx context.Context,
		account solana.PublicKey,
		commitment rpc.CommitmentType,
	) (*rpc.GetAccountInfoResult, error)

	GetTokenSupply(
		ctx context.Context,
		mint solana.PublicKey,
		commitment rpc.CommitmentType,
	) (*rpc.GetTokenSupplyResult, error)

	GetHealth(ctx context.Context) (string, error)
}

// Client is the network state provider used while building transactions.
// Nothing is cached: every blockhash request goes to the network.
type Client struct {
	rpc        RPCClient
	commitment rpc.CommitmentType
	logger     *slog.Logger
	metrics    *metrics.Metrics
	endpoint   string // RPC endpoint identifier for metrics (e.g., "mainnet", rpc host)
}

// NewClient creates a new Solana client.
// The endpoint parameter is used for metrics labeling. If metrics is nil, no metrics
// will be recorded. An empty commitment defaults to "confirmed".
func NewClient(
	rpcClient RPCClient,
	commitment rpc.CommitmentType,
	endpoint string,
	m *metrics.Metrics,
	logger *slog.Logger,
) *Client {
	if commitment == "" {
		commitment = rpc.CommitmentConfirmed
	}
	return &Client{
		rpc:        rpcClient,
		commitment: commitment,
		logger:     logger,
		metrics:    m,
		endpoint:   endpoint,
	}
}

func (c *Client) record(method string, start time.Time, err error) {
	if c.metrics == nil {
		return
	}
	status := "success"
	if err != nil {
		status = "error"
		if strings.Contains(err.Error(), "429") {
			c.metrics.RecordRateLimitHit(c.endpoint)
		}
	}
	c.metrics.RecordRPCCall(method, status, c.endpoint, time.Since(start).Seconds())
}

// LatestBlockhash fetches the most recent blockhash at the configured commitment.
func (c *Client) LatestBlockhash(ctx context.Context) (solana.Hash, error) {
	start := time.Now()
	out, err := c.rpc.GetLatestBlockhash(ctx, c.commitment)
	c.record("GetLatestBlockhash", start, err)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to get latest blockhash",
			"endpoint", c.endpoint,
			"error", err,
		)
		return solana.Hash{}, err
	}
	if out == nil || out.Value == nil {
		return solana.Hash{}, errors.New("empty getLatestBlockhash response")
	}

	c.logger.DebugContext(ctx, "fetched latest blockhash",
		"blockhash", out.Value.Blockhash.String(),
		"last_valid_block_height", out.Value.LastValidBlockHeight,
	)
	return out.Value.Blockhash, nil
}

// AddressLookupTables fetches and decodes the given address lookup table accounts.
// The result is keyed by table address, ready for solana.TransactionAddressTables.
func (c *Client) AddressLookupTables(
	ctx context.Context,
	ids solana.PublicKeySlice,
) (map[solana.PublicKey]solana.PublicKeySlice, error) {
	tables := make(map[solana.PublicKey]solana.PublicKeySlice, len(ids))
	for _, id := range ids {
		if _, ok := tables[id]; ok {
			continue
		}

		start := time.Now()
		out, err := c.rpc.GetAccountInfo(ctx, id, c.commitment)
		c.record("GetAccountInfo", start, err)
		if err != nil {
			if errors.Is(err, rpc.ErrNotFound) {
				return nil, fmt.Errorf("%w: lookup table %s not found", txbuilder.ErrQuoteUnavailable, id)
			}
			return nil, fmt.Errorf("%w: get lookup table %s: %w", txbuilder.ErrUpstreamUnavailable, id, err)
		}

		data := out.GetBinary()
		if len(data) == 0 {
			return nil, fmt.Errorf("%w: lookup table %s has no data", txbuilder.ErrQuoteUnavailable, id)
		}
		state, err := addresslookuptable.DecodeAddressLookupTableState(data)
		if err != nil {
			return nil, fmt.Errorf("%w: decode lookup table %s: %v", txbuilder.ErrQuoteUnavailable, id, err)
		}
		tables[id] = state.Addresses

		c.logger.DebugContext(ctx, "resolved address lookup table",
			"table", id.String(),
			"addresses", len(state.Addresses),
		)
	}

	if c.metrics != nil {
		c.metrics.RecordLookupTablesResolved(c.endpoint, len(tables))
	}
	return tables, nil
}

// TokenDecimals returns the number of decimals of a token mint.
// Native SOL short circuits to NativeDecimals without a network call.
func (c *Client) TokenDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error) {
	if mint.Equals(solana.SolMint) {
		return NativeDecimals, nil
	}

	start := time.Now()
	out, err := c.rpc.GetTokenSupply(ctx, mint, c.commitment)
	c.record("GetTokenSupply", start, err)
	if err != nil {
		var rpcErr *jsonrpc.RPCError
		if errors.As(err, &rpcErr) && rpcErr.Code == invalidParamsCode {
			return 0, fmt.Errorf("%w: %s is not a token mint", txbuilder.ErrInvalidAddress, mint)
		}
		return 0, fmt.Errorf("%w: get token supply for %s: %w", txbuilder.ErrUpstreamUnavailable, mint, err)
	}
	if out == nil || out.Value == nil {
		return 0, fmt.Errorf("%w: empty getTokenSupply response for %s", txbuilder.ErrUpstreamUnavailable, mint)
	}
	return out.Value.Decimals, nil
}

// Health reports whether the RPC node considers itself healthy.
func (c *Client) Health(ctx context.Context) error {
	start := time.Now()
	status, err := c.rpc.GetHealth(ctx)
	c.record("GetHealth", start, err)
	if err != nil {
		return err
	}
	if status != rpc.HealthOk {
		return fmt.Errorf("rpc node reports %q", status)
	}
	return nil
}
