package actions

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/brojonat/blinks/service/amount"
	"github.com/brojonat/blinks/service/txbuilder"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// DonateConfig holds the donate action's business rules.
type DonateConfig struct {
	Destination solana.PublicKey
	Presets     []decimal.Decimal
	Default     decimal.Decimal
	BaseURL     string
	Icon        string
	Title       string
	Description string
}

// DefaultDonateConfig returns the stock donate configuration.
func DefaultDonateConfig() DonateConfig {
	return DonateConfig{
		Destination: solana.MustPublicKeyFromBase58("3h4AtoLTh3bWwaLhdtgQtcC3a3Tokb8NJbtqR9rhp7p6"),
		Presets: []decimal.Decimal{
			decimal.NewFromInt(1),
			decimal.NewFromInt(5),
			decimal.NewFromInt(10),
		},
		Default:     decimal.NewFromInt(1),
		Icon:        "https://ucarecdn.com/7aa46c85-08a4-4bc7-9376-88ec48bb1f43/-/preview/880x864/-/quality/smart/-/format/auto/",
		Title:       "Donate to Alice",
		Description: "Cybersecurity Enthusiast | Support my research with a donation.",
	}
}

// Donate builds native SOL transfers to a fixed destination.
type Donate struct {
	cfg    DonateConfig
	asm    *txbuilder.Assembler
	logger *slog.Logger
}

// NewDonate creates the donate adapter.
func NewDonate(cfg DonateConfig, asm *txbuilder.Assembler, logger *slog.Logger) *Donate {
	return &Donate{cfg: cfg, asm: asm, logger: logger}
}

func (d *Donate) href(amount string) string {
	return d.cfg.BaseURL + "/api/donate/" + amount
}

func solLabel(v decimal.Decimal) string {
	return v.String() + " SOL"
}

// Menu describes the donate action: one link per preset and one custom amount link.
func (d *Donate) Menu() Metadata {
	links := presetLinks(d.cfg.Presets, solLabel, d.href)
	links = append(links, customLink("Donate", "Enter a custom SOL amount", d.href))

	return Metadata{
		Type:        metadataType,
		Icon:        d.cfg.Icon,
		Title:       d.cfg.Title,
		Description: d.cfg.Description,
		Label:       solLabel(d.cfg.Default),
		Links:       &Links{Actions: links},
	}
}

// AmountMetadata describes a single fixed-amount donation.
func (d *Donate) AmountMetadata(amountText string) (Metadata, error) {
	v, err := amount.Parse(amountText)
	if err != nil {
		return Metadata{}, err
	}
	if _, err := amount.DecimalToBaseUnits(v, amount.SOLDecimals); err != nil {
		return Metadata{}, err
	}
	return Metadata{
		Type:        metadataType,
		Icon:        d.cfg.Icon,
		Title:       d.cfg.Title,
		Description: d.cfg.Description,
		Label:       solLabel(v),
	}, nil
}

// Build creates an unsigned transfer of amountText SOL (or the default) from account to
// the configured destination. Input is validated before any network call.
func (d *Donate) Build(ctx context.Context, account, amountText string) (*Result, error) {
	from, err := txbuilder.ParsePublicKey("account", account)
	if err != nil {
		return nil, err
	}
	v, err := selectAmount(amountText, d.cfg.Default)
	if err != nil {
		return nil, err
	}
	lamports, err := amount.DecimalToBaseUnits(v, amount.SOLDecimals)
	if err != nil {
		return nil, err
	}

	ixs, err := txbuilder.Transfer(from, d.cfg.Destination, lamports)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Action:  KindDonate,
		Account: from,
		Target:  d.cfg.Destination.String(),
		Amount:  v,
		Message: fmt.Sprintf("Donate %s to %s", solLabel(v), shortKey(d.cfg.Destination)),
	}
	return build(ctx, d.asm, d.logger, res, ixs)
}
