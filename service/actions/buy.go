package actions

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/brojonat/blinks/service/amount"
	"github.com/brojonat/blinks/service/quote"
	"github.com/brojonat/blinks/service/txbuilder"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// BuyConfig holds the buy action's business rules.
type BuyConfig struct {
	Presets         []decimal.Decimal
	Default         decimal.Decimal
	SlippagePercent int
	PriorityFeeSOL  decimal.Decimal
	Pool            string
	BaseURL         string
	Icon            string
	Title           string
	Description     string
}

// DefaultBuyConfig returns the stock buy configuration.
func DefaultBuyConfig() BuyConfig {
	return BuyConfig{
		Presets: []decimal.Decimal{
			decimal.RequireFromString("0.01"),
			decimal.RequireFromString("0.05"),
			decimal.RequireFromString("0.1"),
			decimal.RequireFromString("0.5"),
			decimal.NewFromInt(1),
			decimal.NewFromInt(5),
		},
		Default:         decimal.RequireFromString("0.05"),
		SlippagePercent: 35,
		PriorityFeeSOL:  decimal.RequireFromString("0.005"),
		Pool:            "pump",
		Title:           "Buy on pump.fun",
		Description:     "Buy this token with SOL.",
	}
}

// Buy builds pump.fun purchases through the pumpportal trade API. The provider's
// transaction is decomposed and reassembled with a fresh blockhash.
type Buy struct {
	cfg    BuyConfig
	trades TradeProvider
	tables LookupTableProvider
	asm    *txbuilder.Assembler
	logger *slog.Logger
}

// NewBuy creates the buy adapter.
func NewBuy(cfg BuyConfig, trades TradeProvider, tables LookupTableProvider, asm *txbuilder.Assembler, logger *slog.Logger) *Buy {
	return &Buy{cfg: cfg, trades: trades, tables: tables, asm: asm, logger: logger}
}

// Menu describes buying mint. Token metadata comes from the provider; when that fails the
// menu falls back to the configured title and description.
func (b *Buy) Menu(ctx context.Context, mint string) (Metadata, error) {
	mintKey, err := txbuilder.ParsePublicKey("mint", mint)
	if err != nil {
		return Metadata{}, err
	}
	mint = mintKey.String()

	href := func(amount string) string {
		return b.cfg.BaseURL + "/api/buy/" + mint + "/" + amount
	}
	links := presetLinks(b.cfg.Presets, solLabel, href)
	links = append(links, customLink("Buy", "Enter a custom SOL amount", href))

	md := Metadata{
		Type:        metadataType,
		Icon:        b.cfg.Icon,
		Title:       b.cfg.Title,
		Description: b.cfg.Description,
		Label:       solLabel(b.cfg.Default),
		Links:       &Links{Actions: links},
	}

	info, err := b.trades.TokenInfo(ctx, mint)
	if err != nil {
		b.logger.WarnContext(ctx, "token info unavailable, using generic metadata",
			"mint", mint,
			"error", err,
		)
		return md, nil
	}
	if info.Image != "" {
		md.Icon = info.Image
	}
	md.Title = "Buy " + info.Name
	if info.Description != "" {
		md.Description = info.Description
	}
	return md, nil
}

// Build creates an unsigned purchase of mint for amountText SOL (or the default).
func (b *Buy) Build(ctx context.Context, account, mint, amountText string) (*Result, error) {
	user, err := txbuilder.ParsePublicKey("account", account)
	if err != nil {
		return nil, err
	}
	mintKey, err := txbuilder.ParsePublicKey("mint", mint)
	if err != nil {
		return nil, err
	}
	v, err := selectAmount(amountText, b.cfg.Default)
	if err != nil {
		return nil, err
	}
	if _, err := amount.DecimalToBaseUnits(v, amount.SOLDecimals); err != nil {
		return nil, err
	}

	raw, err := b.trades.TradeLocal(ctx, quote.TradeRequest{
		PublicKey:        user.String(),
		Action:           "buy",
		Mint:             mintKey.String(),
		DenominatedInSol: "true",
		Amount:           v,
		Slippage:         b.cfg.SlippagePercent,
		PriorityFee:      b.cfg.PriorityFeeSOL,
		Pool:             b.cfg.Pool,
	})
	if err != nil {
		return nil, err
	}

	upstream, err := txbuilder.DeserializeBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: pumpportal returned an undecodable transaction: %v", txbuilder.ErrQuoteUnavailable, err)
	}

	var tables map[solana.PublicKey]solana.PublicKeySlice
	if ids := txbuilder.LookupTableIDs(upstream); len(ids) > 0 {
		tables, err = b.tables.AddressLookupTables(ctx, ids)
		if err != nil {
			return nil, err
		}
	}

	decomposed, err := txbuilder.Decompose(upstream, tables)
	if err != nil {
		return nil, err
	}
	ixs, err := txbuilder.FromQuote(decomposed)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Action:  KindBuy,
		Account: user,
		Target:  mintKey.String(),
		Amount:  v,
		Message: fmt.Sprintf("Buy %s with %s", shortKey(mintKey), solLabel(v)),
	}
	return build(ctx, b.asm, b.logger, res, ixs, txbuilder.WithAddressTables(tables))
}
