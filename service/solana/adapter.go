package solana

import (
	"context"
	"errors"
	"math/rand/v2"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
)

// realRPCClient adapts the actual solana-go RPC client to our RPCClient interface.
// This adapter allows us to control the interface and makes testing easier.
type realRPCClient struct {
	client *rpc.Client
}

// NewRPCClient creates a new RPCClient that wraps the solana-go RPC client.
// For premium RPC endpoints that require API keys, include the key in the URL:
// - Helius: https://mainnet.helius-rpc.com/?api-key=YOUR-KEY
// - QuickNode: https://YOUR-ENDPOINT.quiknode.pro/YOUR-KEY/
func NewRPCClient(rpcURL string) RPCClient {
	return &realRPCClient{
		client: rpc.New(rpcURL),
	}
}

func (r *realRPCClient) GetLatestBlockhash(
	ctx context.Context,
	commitment rpc.CommitmentType,
) (*rpc.GetLatestBlockhashResult, error) {
	return r.client.GetLatestBlockhash(ctx, commitment)
}

func (r *realRPCClient) GetAccountInfo(
	ctx context.Context,
	account solana.PublicKey,
	commitment rpc.CommitmentType,
) (*rpc.GetAccountInfoResult, error) {
	return r.client.GetAccountInfoWithOpts(ctx, account, &rpc.GetAccountInfoOpts{
		Encoding:   solana.EncodingBase64,
		Commitment: commitment,
	})
}

func (r *realRPCClient) GetTokenSupply(
	ctx context.Context,
	mint solana.PublicKey,
	commitment rpc.CommitmentType,
) (*rpc.GetTokenSupplyResult, error) {
	return r.client.GetTokenSupply(ctx, mint, commitment)
}

func (r *realRPCClient) GetHealth(ctx context.Context) (string, error) {
	return r.client.GetHealth(ctx)
}

// ParseEndpoints splits a comma separated list of RPC URLs, dropping blanks.
func ParseEndpoints(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// SelectRandomEndpoint picks one RPC endpoint to spread load across providers.
func SelectRandomEndpoint(endpoints []string) (string, error) {
	if len(endpoints) == 0 {
		return "", errors.New("no RPC endpoints configured")
	}
	return endpoints[rand.IntN(len(endpoints))], nil
}
