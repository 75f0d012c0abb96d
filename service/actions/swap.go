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

// SwapConfig holds the swap action's business rules. Amounts are in UI units of the
// input token.
type SwapConfig struct {
	Presets        []decimal.Decimal
	Default        decimal.Decimal
	SlippageBps    uint16
	PlatformFeeBps uint16
	FeeAccount     *solana.PublicKey
	BaseURL        string
	Icon           string
	Title          string
	Description    string
}

// DefaultSwapConfig returns the stock swap configuration.
func DefaultSwapConfig() SwapConfig {
	return SwapConfig{
		Presets: []decimal.Decimal{
			decimal.RequireFromString("0.1"),
			decimal.NewFromInt(1),
			decimal.NewFromInt(5),
		},
		Default:     decimal.NewFromInt(1),
		SlippageBps: 50,
		Icon:        "https://ucarecdn.com/09c80208-f27c-45dd-b716-75e1e55832c4/-/preview/1000x981/-/quality/smart/-/format/auto/",
		Title:       "Swap with Jupiter",
		Description: "Swap tokens at the best available route.",
	}
}

// network is what Swap needs from the chain.
type network interface {
	LookupTableProvider
	DecimalsProvider
}

// Swap builds aggregator swaps. Target is "inputMint-outputMint".
type Swap struct {
	cfg     SwapConfig
	swaps   SwapProvider
	network network
	asm     *txbuilder.Assembler
	logger  *slog.Logger
}

// NewSwap creates the swap adapter.
func NewSwap(cfg SwapConfig, swaps SwapProvider, net network, asm *txbuilder.Assembler, logger *slog.Logger) *Swap {
	return &Swap{cfg: cfg, swaps: swaps, network: net, asm: asm, logger: logger}
}

// ParsePair splits "inputMint-outputMint" into two distinct mints.
func ParsePair(pair string) (solana.PublicKey, solana.PublicKey, error) {
	parts := strings.Split(strings.TrimSpace(pair), "-")
	if len(parts) != 2 {
		return solana.PublicKey{}, solana.PublicKey{}, fmt.Errorf("%w: pair must be inputMint-outputMint", txbuilder.ErrInvalidAddress)
	}
	in, err := txbuilder.ParsePublicKey("input mint", parts[0])
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, err
	}
	out, err := txbuilder.ParsePublicKey("output mint", parts[1])
	if err != nil {
		return solana.PublicKey{}, solana.PublicKey{}, err
	}
	if in.Equals(out) {
		return solana.PublicKey{}, solana.PublicKey{}, fmt.Errorf("%w: input and output mint must differ", txbuilder.ErrInvalidAddress)
	}
	return in, out, nil
}

func mintLabel(pk solana.PublicKey) string {
	if pk.Equals(solana.SolMint) {
		return "SOL"
	}
	return shortKey(pk)
}

// Menu describes swapping along pair.
func (s *Swap) Menu(pair string) (Metadata, error) {
	in, out, err := ParsePair(pair)
	if err != nil {
		return Metadata{}, err
	}
	pair = in.String() + "-" + out.String()
	inLabel := mintLabel(in)

	href := func(amount string) string {
		return s.cfg.BaseURL + "/api/swap/" + pair + "/" + amount
	}
	label := func(v decimal.Decimal) string {
		return v.String() + " " + inLabel
	}
	links := presetLinks(s.cfg.Presets, label, href)
	links = append(links, customLink("Swap", "Enter a custom "+inLabel+" amount", href))

	return Metadata{
		Type:        metadataType,
		Icon:        s.cfg.Icon,
		Title:       fmt.Sprintf("%s: %s for %s", s.cfg.Title, inLabel, mintLabel(out)),
		Description: s.cfg.Description,
		Label:       label(s.cfg.Default),
		Links:       &Links{Actions: links},
	}, nil
}

// Build creates an unsigned swap of amountText input tokens (or the default).
// Instructions are passed through in provider order and compiled against the route's
// lookup tables. Account, pair and amount are validated before any network call; only
// the amount's precision waits for the input mint's decimals, which are looked up before
// the quote is requested.
func (s *Swap) Build(ctx context.Context, account, pair, amountText string) (*Result, error) {
	user, err := txbuilder.ParsePublicKey("account", account)
	if err != nil {
		return nil, err
	}
	in, out, err := ParsePair(pair)
	if err != nil {
		return nil, err
	}
	v, err := selectAmount(amountText, s.cfg.Default)
	if err != nil {
		return nil, err
	}

	decimals, err := s.network.TokenDecimals(ctx, in)
	if err != nil {
		return nil, err
	}
	units, err := amount.DecimalToBaseUnits(v, decimals)
	if err != nil {
		return nil, err
	}

	q, err := s.swaps.Quote(ctx, quote.QuoteRequest{
		InputMint:      in,
		OutputMint:     out,
		Amount:         units,
		SlippageBps:    s.cfg.SlippageBps,
		PlatformFeeBps: s.cfg.PlatformFeeBps,
	})
	if err != nil {
		return nil, err
	}
	route, err := s.swaps.SwapInstructions(ctx, quote.SwapRequest{
		Quote:         q,
		UserPublicKey: user,
		FeeAccount:    s.cfg.FeeAccount,
	})
	if err != nil {
		return nil, err
	}

	ixs, err := txbuilder.FromQuote(route.Instructions)
	if err != nil {
		return nil, err
	}

	var opts []txbuilder.AssembleOption
	if len(route.LookupTables) > 0 {
		tables, err := s.network.AddressLookupTables(ctx, route.LookupTables)
		if err != nil {
			return nil, err
		}
		opts = append(opts, txbuilder.WithAddressTables(tables))
	}

	res := &Result{
		Action:  KindSwap,
		Account: user,
		Target:  in.String() + "-" + out.String(),
		Amount:  v,
		Message: fmt.Sprintf("Swap %s %s for %s", v.String(), mintLabel(in), mintLabel(out)),
	}
	return build(ctx, s.asm, s.logger, res, ixs, opts...)
}
