// Package actions maps Solana action requests (donate, buy, swap) onto the transaction builder.
// Every adapter is constructed from an immutable config and holds no mutable state.
package actions

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/brojonat/blinks/service/amount"
	"github.com/brojonat/blinks/service/quote"
	"github.com/brojonat/blinks/service/txbuilder"
	"github.com/gagliardetto/solana-go"
	"github.com/shopspring/decimal"
)

// Kind names an action.
type Kind string

const (
	KindDonate Kind = "donate"
	KindBuy    Kind = "buy"
	KindSwap   Kind = "swap"
)

// Request is one transaction build request. Target is the mint for buy and the
// "inputMint-outputMint" pair for swap; donate ignores it. An empty Amount selects the
// action's configured default.
type Request struct {
	Action  Kind
	Account string
	Target  string
	Amount  string
}

// Result is a built, serialized, unsigned transaction plus what went into it.
type Result struct {
	Action       Kind
	Account      solana.PublicKey
	Target       string
	Amount       decimal.Decimal
	Transaction  string
	Blockhash    solana.Hash
	Instructions int
	Message      string
}

// Metadata is the GET response describing an action to a wallet client.
type Metadata struct {
	Type        string `json:"type"`
	Icon        string `json:"icon"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Label       string `json:"label"`
	Links       *Links `json:"links,omitempty"`
}

// Links lists the follow-up actions offered by a menu.
type Links struct {
	Actions []LinkedAction `json:"actions"`
}

// LinkedAction is one button of a menu. Href may contain {name} placeholders that refer
// to Parameters.
type LinkedAction struct {
	Label      string      `json:"label"`
	Href       string      `json:"href"`
	Parameters []Parameter `json:"parameters,omitempty"`
}

// Parameter is a user supplied value substituted into an Href.
type Parameter struct {
	Name     string `json:"name"`
	Label    string `json:"label"`
	Required bool   `json:"required,omitempty"`
}

const metadataType = "action"

// amountParameter is the path placeholder used by every custom-amount link.
const amountParameter = "amount"

// LookupTableProvider resolves address lookup tables referenced by provider transactions.
type LookupTableProvider interface {
	AddressLookupTables(ctx context.Context, ids solana.PublicKeySlice) (map[solana.PublicKey]solana.PublicKeySlice, error)
}

// DecimalsProvider looks up a mint's decimals.
type DecimalsProvider interface {
	TokenDecimals(ctx context.Context, mint solana.PublicKey) (uint8, error)
}

// TradeProvider is the pump.fun trade API.
type TradeProvider interface {
	TradeLocal(ctx context.Context, trade quote.TradeRequest) ([]byte, error)
	TokenInfo(ctx context.Context, mint string) (*quote.TokenInfo, error)
}

// SwapProvider is the aggregator API.
type SwapProvider interface {
	Quote(ctx context.Context, q quote.QuoteRequest) (*quote.Quote, error)
	SwapInstructions(ctx context.Context, s quote.SwapRequest) (*quote.SwapInstructions, error)
}

// build runs the shared tail of every adapter: assemble with a fresh blockhash, then serialize.
func build(
	ctx context.Context,
	asm *txbuilder.Assembler,
	logger *slog.Logger,
	res *Result,
	instructions []solana.Instruction,
	opts ...txbuilder.AssembleOption,
) (*Result, error) {
	utx, err := asm.Assemble(ctx, instructions, res.Account, opts...)
	if err != nil {
		return nil, err
	}
	encoded, err := txbuilder.Serialize(utx)
	if err != nil {
		return nil, err
	}

	res.Transaction = encoded
	res.Blockhash = utx.Blockhash
	res.Instructions = len(instructions)

	logger.InfoContext(ctx, "built unsigned transaction",
		"action", res.Action,
		"account", res.Account.String(),
		"target", res.Target,
		"amount", res.Amount.String(),
		"instructions", res.Instructions,
		"blockhash", res.Blockhash.String(),
	)
	return res, nil
}

// selectAmount parses text, falling back to def when text is empty.
func selectAmount(text string, def decimal.Decimal) (decimal.Decimal, error) {
	if strings.TrimSpace(text) == "" {
		if !def.IsPositive() {
			return decimal.Zero, fmt.Errorf("%w: no amount given and no default configured", txbuilder.ErrInvalidAmount)
		}
		return def, nil
	}
	return amount.Parse(text)
}

func presetLinks(presets []decimal.Decimal, label func(decimal.Decimal) string, href func(string) string) []LinkedAction {
	links := make([]LinkedAction, 0, len(presets)+1)
	for _, p := range presets {
		links = append(links, LinkedAction{
			Label: label(p),
			Href:  href(p.String()),
		})
	}
	return links
}

func customLink(label, paramLabel string, href func(string) string) LinkedAction {
	return LinkedAction{
		Label: label,
		Href:  href("{" + amountParameter + "}"),
		Parameters: []Parameter{{
			Name:     amountParameter,
			Label:    paramLabel,
			Required: true,
		}},
	}
}

func shortKey(pk solana.PublicKey) string {
	s := pk.String()
	if len(s) <= 8 {
		return s
	}
	return s[:4] + ".." + s[len(s)-4:]
}
