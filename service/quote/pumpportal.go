package quote

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/brojonat/blinks/service/metrics"
	"github.com/shopspring/decimal"
)

// PumpPortalBaseURL is the production pumpportal API.
const PumpPortalBaseURL = "https://pumpportal.fun/api"

const providerPumpPortal = "pumpportal"

// TradeRequest is the body of POST /trade-local.
type TradeRequest struct {
	PublicKey        string          `json:"publicKey"`
	Action           string          `json:"action"`
	Mint             string          `json:"mint"`
	DenominatedInSol string          `json:"denominatedInSol"`
	Amount           decimal.Decimal `json:"amount"`
	Slippage         int             `json:"slippage"`
	PriorityFee      decimal.Decimal `json:"priorityFee"`
	Pool             string          `json:"pool"`
}

// TokenInfo is the subset of /data/token-info we render in action metadata.
type TokenInfo struct {
	Name        string `json:"name"`
	Symbol      string `json:"symbol"`
	Description string `json:"description"`
	Image       string `json:"image"`
}

// PumpPortal builds pump.fun trades through the pumpportal local-transaction API.
type PumpPortal struct {
	transport
}

// NewPumpPortal creates a pumpportal client. An empty baseURL uses PumpPortalBaseURL.
func NewPumpPortal(baseURL string, httpClient *http.Client, m *metrics.Metrics, logger *slog.Logger) *PumpPortal {
	if baseURL == "" {
		baseURL = PumpPortalBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &PumpPortal{transport{
		provider: providerPumpPortal,
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     httpClient,
		metrics:  m,
		logger:   logger,
	}}
}

// TradeLocal requests an unsigned trade and returns the raw serialized transaction bytes.
// pumpportal answers 200 with the binary transaction and anything else on failure.
func (p *PumpPortal) TradeLocal(ctx context.Context, trade TradeRequest) ([]byte, error) {
	payload, err := json.Marshal(trade)
	if err != nil {
		return nil, &APIError{Kind: ErrorParse, Provider: p.provider, Detail: "failed to encode request body", Err: err}
	}

	req, err := p.newRequest(ctx, http.MethodPost, "/trade-local", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}

	raw, err := p.do(ctx, "trade-local", req)
	if err != nil {
		return nil, err
	}

	p.logger.DebugContext(ctx, "received pumpportal trade",
		"mint", trade.Mint,
		"action", trade.Action,
		"amount", trade.Amount.String(),
		"bytes", len(raw),
	)
	return raw, nil
}

// TokenInfo fetches display metadata for a pump.fun mint.
func (p *PumpPortal) TokenInfo(ctx context.Context, mint string) (*TokenInfo, error) {
	req, err := p.newRequest(ctx, http.MethodGet, "/data/token-info?ca="+url.QueryEscape(mint), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")

	body, err := p.do(ctx, "token-info", req)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Data *TokenInfo `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, &APIError{Kind: ErrorParse, Provider: p.provider, Err: err}
	}
	if envelope.Data == nil || envelope.Data.Name == "" {
		return nil, &APIError{Kind: ErrorEmpty, Provider: p.provider, Detail: "token-info has no data for " + mint}
	}
	return envelope.Data, nil
}
