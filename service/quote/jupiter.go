package quote

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/brojonat/blinks/service/metrics"
	"github.com/gagliardetto/solana-go"
)

// JupiterBaseURL is the public Jupiter swap API.
const JupiterBaseURL = "https://lite-api.jup.ag/swap/v1"

const providerJupiter = "jupiter"

// QuoteRequest selects a route for an exact input amount in base units.
type QuoteRequest struct {
	InputMint      solana.PublicKey
	OutputMint     solana.PublicKey
	Amount         uint64
	SlippageBps    uint16
	PlatformFeeBps uint16
}

// Quote is a Jupiter route. Raw keeps the full response so it can be echoed back to
// /swap-instructions untouched.
type Quote struct {
	InputMint      string `json:"inputMint"`
	InAmount       string `json:"inAmount"`
	OutputMint     string `json:"outputMint"`
	OutAmount      string `json:"outAmount"`
	SlippageBps    int    `json:"slippageBps"`
	PriceImpactPct string `json:"priceImpactPct"`

	Raw json.RawMessage `json:"-"`
}

// SwapRequest turns a quote into instructions for a specific user.
type SwapRequest struct {
	Quote         *Quote
	UserPublicKey solana.PublicKey
	FeeAccount    *solana.PublicKey
}

// SwapInstructions is an account-resolved instruction list plus the lookup tables the
// route was compiled against.
type SwapInstructions struct {
	Instructions []solana.Instruction
	LookupTables solana.PublicKeySlice
}

type jupiterAccount struct {
	Pubkey     string `json:"pubkey"`
	IsSigner   bool   `json:"isSigner"`
	IsWritable bool   `json:"isWritable"`
}

type jupiterInstruction struct {
	ProgramID string           `json:"programId"`
	Accounts  []jupiterAccount `json:"accounts"`
	Data      string           `json:"data"`
}

type swapInstructionsResponse struct {
	ComputeBudgetInstructions   []jupiterInstruction `json:"computeBudgetInstructions"`
	SetupInstructions           []jupiterInstruction `json:"setupInstructions"`
	SwapInstruction             *jupiterInstruction  `json:"swapInstruction"`
	CleanupInstruction          *jupiterInstruction  `json:"cleanupInstruction"`
	OtherInstructions           []jupiterInstruction `json:"otherInstructions"`
	AddressLookupTableAddresses []string             `json:"addressLookupTableAddresses"`
	Error                       string               `json:"error"`
}

// Jupiter quotes and builds swaps through the Jupiter aggregator.
type Jupiter struct {
	transport
}

// NewJupiter creates a Jupiter client. An empty baseURL uses JupiterBaseURL.
func NewJupiter(baseURL string, httpClient *http.Client, m *metrics.Metrics, logger *slog.Logger) *Jupiter {
	if baseURL == "" {
		baseURL = JupiterBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Jupiter{transport{
		provider: providerJupiter,
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     httpClient,
		metrics:  m,
		logger:   logger,
	}}
}

// Quote fetches the best route for an ExactIn swap.
func (j *Jupiter) Quote(ctx context.Context, q QuoteRequest) (*Quote, error) {
	params := url.Values{}
	params.Set("inputMint", q.InputMint.String())
	params.Set("outputMint", q.OutputMint.String())
	params.Set("amount", strconv.FormatUint(q.Amount, 10))
	params.Set("slippageBps", strconv.FormatUint(uint64(q.SlippageBps), 10))
	if q.PlatformFeeBps > 0 {
		params.Set("platformFeeBps", strconv.FormatUint(uint64(q.PlatformFeeBps), 10))
	}

	req, err := j.newRequest(ctx, http.MethodGet, "/quote?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	body, err := j.do(ctx, "quote", req)
	if err != nil {
		return nil, err
	}

	var out Quote
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, &APIError{Kind: ErrorParse, Provider: j.provider, Err: err}
	}
	if out.OutAmount == "" || out.OutAmount == "0" {
		return nil, &APIError{Kind: ErrorEmpty, Provider: j.provider, Detail: "no route found"}
	}
	out.Raw = json.RawMessage(body)

	j.logger.DebugContext(ctx, "received jupiter quote",
		"input_mint", out.InputMint,
		"output_mint", out.OutputMint,
		"in_amount", out.InAmount,
		"out_amount", out.OutAmount,
	)
	return &out, nil
}

// SwapInstructions asks Jupiter for the route's instructions. They are returned in
// execution order: compute budget, setup, swap, cleanup, then any others.
func (j *Jupiter) SwapInstructions(ctx context.Context, s SwapRequest) (*SwapInstructions, error) {
	if s.Quote == nil || len(s.Quote.Raw) == 0 {
		return nil, &APIError{Kind: ErrorEmpty, Provider: j.provider, Detail: "missing quote"}
	}

	reqBody := map[string]any{
		"quoteResponse":           s.Quote.Raw,
		"userPublicKey":           s.UserPublicKey.String(),
		"wrapAndUnwrapSol":        true,
		"dynamicComputeUnitLimit": true,
	}
	if s.FeeAccount != nil {
		reqBody["feeAccount"] = s.FeeAccount.String()
	}
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, &APIError{Kind: ErrorParse, Provider: j.provider, Detail: "failed to encode request body", Err: err}
	}

	req, err := j.newRequest(ctx, http.MethodPost, "/swap-instructions", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	body, err := j.do(ctx, "swap-instructions", req)
	if err != nil {
		return nil, err
	}

	var resp swapInstructionsResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &APIError{Kind: ErrorParse, Provider: j.provider, Err: err}
	}
	if resp.Error != "" {
		return nil, &APIError{Kind: ErrorEmpty, Provider: j.provider, Detail: resp.Error}
	}
	if resp.SwapInstruction == nil {
		return nil, &APIError{Kind: ErrorEmpty, Provider: j.provider, Detail: "no swap instruction"}
	}

	ordered := make([]jupiterInstruction, 0,
		len(resp.ComputeBudgetInstructions)+len(resp.SetupInstructions)+len(resp.OtherInstructions)+2)
	ordered = append(ordered, resp.ComputeBudgetInstructions...)
	ordered = append(ordered, resp.SetupInstructions...)
	ordered = append(ordered, *resp.SwapInstruction)
	if resp.CleanupInstruction != nil {
		ordered = append(ordered, *resp.CleanupInstruction)
	}
	ordered = append(ordered, resp.OtherInstructions...)

	out := &SwapInstructions{
		Instructions: make([]solana.Instruction, 0, len(ordered)),
	}
	for i, ix := range ordered {
		decoded, err := ix.decode()
		if err != nil {
			return nil, &APIError{Kind: ErrorParse, Provider: j.provider, Err: fmt.Errorf("instruction %d: %w", i, err)}
		}
		out.Instructions = append(out.Instructions, decoded)
	}
	for _, addr := range resp.AddressLookupTableAddresses {
		pk, err := solana.PublicKeyFromBase58(addr)
		if err != nil {
			return nil, &APIError{Kind: ErrorParse, Provider: j.provider, Err: fmt.Errorf("lookup table %q: %w", addr, err)}
		}
		out.LookupTables = append(out.LookupTables, pk)
	}

	return out, nil
}

func (ix jupiterInstruction) decode() (solana.Instruction, error) {
	programID, err := solana.PublicKeyFromBase58(ix.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("program id: %w", err)
	}
	accounts := make(solana.AccountMetaSlice, len(ix.Accounts))
	for i, a := range ix.Accounts {
		pk, err := solana.PublicKeyFromBase58(a.Pubkey)
		if err != nil {
			return nil, fmt.Errorf("account %d: %w", i, err)
		}
		accounts[i] = &solana.AccountMeta{PublicKey: pk, IsSigner: a.IsSigner, IsWritable: a.IsWritable}
	}
	data, err := base64.StdEncoding.DecodeString(ix.Data)
	if err != nil {
		return nil, fmt.Errorf("data: %w", err)
	}
	return solana.NewInstruction(programID, accounts, data), nil
}
