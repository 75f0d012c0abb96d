package txbuilder

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/gagliardetto/solana-go"
)

// BlockhashProvider is the network state the assembler needs.
// Implementations must hit the network on every call; blockhashes expire within ~150 blocks.
type BlockhashProvider interface {
	LatestBlockhash(ctx context.Context) (solana.Hash, error)
}

// UnsignedTx is a compiled, signable transaction with no signatures attached.
type UnsignedTx struct {
	Blockhash    solana.Hash
	FeePayer     solana.PublicKey
	Instructions []solana.Instruction
	Tx           *solana.Transaction
}

// AssembleOption customizes a single Assemble call.
type AssembleOption func(*assembleOptions)

type assembleOptions struct {
	addressTables map[solana.PublicKey]solana.PublicKeySlice
}

// WithAddressTables compiles the message against the given address lookup tables.
func WithAddressTables(tables map[solana.PublicKey]solana.PublicKeySlice) AssembleOption {
	return func(o *assembleOptions) {
		if len(tables) > 0 {
			o.addressTables = tables
		}
	}
}

// Assembler wraps instruction lists into versioned, unsigned transactions.
type Assembler struct {
	blockhashes BlockhashProvider
	logger      *slog.Logger
}

// NewAssembler creates an Assembler that fetches a fresh blockhash from provider on every call.
func NewAssembler(provider BlockhashProvider, logger *slog.Logger) *Assembler {
	return &Assembler{
		blockhashes: provider,
		logger:      logger,
	}
}

// Assemble fetches the latest blockhash and compiles instructions into a v0 message with
// feePayer in the first signer slot. Instruction order is preserved and address table
// lookups are compiled in a stable order, so equal inputs differ only in the blockhash.
func (a *Assembler) Assemble(
	ctx context.Context,
	instructions []solana.Instruction,
	feePayer solana.PublicKey,
	opts ...AssembleOption,
) (*UnsignedTx, error) {
	if len(instructions) == 0 {
		return nil, ErrEmptyInstructionSet
	}
	if feePayer.IsZero() {
		return nil, fmt.Errorf("%w: missing fee payer", ErrSerializationFailed)
	}

	options := assembleOptions{}
	for _, opt := range opts {
		opt(&options)
	}

	blockhash, err := a.blockhashes.LatestBlockhash(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch latest blockhash: %w", ErrUpstreamUnavailable, err)
	}
	if blockhash.IsZero() {
		return nil, fmt.Errorf("%w: provider returned an empty blockhash", ErrUpstreamUnavailable)
	}

	txOpts := []solana.TransactionOption{solana.TransactionPayer(feePayer)}
	if options.addressTables != nil {
		txOpts = append(txOpts, solana.TransactionAddressTables(options.addressTables))
	}

	tx, err := solana.NewTransaction(instructions, blockhash, txOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: compile message: %v", ErrSerializationFailed, err)
	}
	if err := canonicalizeLookups(&tx.Message, options.addressTables); err != nil {
		return nil, fmt.Errorf("%w: order address table lookups: %v", ErrSerializationFailed, err)
	}
	tx.Message.SetVersion(solana.MessageVersionV0)

	a.logger.DebugContext(ctx, "assembled unsigned transaction",
		"fee_payer", feePayer.String(),
		"blockhash", blockhash.String(),
		"instructions", len(instructions),
		"account_keys", len(tx.Message.AccountKeys),
		"lookups", tx.Message.NumLookups(),
	)

	return &UnsignedTx{
		Blockhash:    blockhash,
		FeePayer:     feePayer,
		Instructions: instructions,
		Tx:           tx,
	}, nil
}
