package txbuilder

import (
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/programs/system"
)

// maxAddressLength bounds the input before base58 decoding; public keys are at most 44 chars.
const maxAddressLength = 64

// ParsePublicKey decodes a base58 public key, mapping every failure to ErrInvalidAddress.
// field names the offending input in the error message (e.g. "account", "mint").
func ParsePublicKey(field, value string) (solana.PublicKey, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return solana.PublicKey{}, fmt.Errorf("%w: %s is required", ErrInvalidAddress, field)
	}
	if len(value) > maxAddressLength {
		return solana.PublicKey{}, fmt.Errorf("%w: %s is too long", ErrInvalidAddress, field)
	}
	pk, err := solana.PublicKeyFromBase58(value)
	if err != nil {
		return solana.PublicKey{}, fmt.Errorf("%w: %s: %v", ErrInvalidAddress, field, err)
	}
	return pk, nil
}

// Transfer composes a single native SOL transfer of lamports from one account to another.
func Transfer(from, to solana.PublicKey, lamports uint64) ([]solana.Instruction, error) {
	if lamports == 0 {
		return nil, fmt.Errorf("%w: transfer amount must be at least 1 lamport", ErrInvalidAmount)
	}
	if from.IsZero() || to.IsZero() {
		return nil, fmt.Errorf("%w: transfer requires a sender and a recipient", ErrInvalidAddress)
	}

	ix, err := system.NewTransferInstruction(lamports, from, to).ValidateAndBuild()
	if err != nil {
		return nil, fmt.Errorf("%w: build transfer instruction: %v", ErrInvalidAmount, err)
	}
	return []solana.Instruction{ix}, nil
}

// FromQuote accepts a pre-built, account-resolved instruction list from a quote provider.
// The instructions are passed through untouched; only emptiness is checked.
func FromQuote(instructions []solana.Instruction) ([]solana.Instruction, error) {
	if len(instructions) == 0 {
		return nil, fmt.Errorf("%w: provider returned an empty instruction set", ErrQuoteUnavailable)
	}
	for i, ix := range instructions {
		if ix == nil {
			return nil, fmt.Errorf("%w: provider instruction %d is nil", ErrQuoteUnavailable, i)
		}
	}
	return instructions, nil
}

// LookupTableIDs returns the address lookup tables referenced by tx, if any.
func LookupTableIDs(tx *solana.Transaction) solana.PublicKeySlice {
	if tx == nil || !tx.Message.IsVersioned() {
		return nil
	}
	return tx.Message.GetAddressTableLookups().GetTableIDs()
}

// Decompose turns an upstream serialized transaction into a fresh instruction list.
// The embedded blockhash, fee payer and signatures are discarded; the returned instructions
// own their account metas so reassembly cannot mutate the source transaction.
// tables must contain every lookup table the message references (see LookupTableIDs).
func Decompose(tx *solana.Transaction, tables map[solana.PublicKey]solana.PublicKeySlice) ([]solana.Instruction, error) {
	if tx == nil || len(tx.Message.Instructions) == 0 {
		return nil, fmt.Errorf("%w: upstream transaction has no instructions", ErrQuoteUnavailable)
	}

	msg := tx.Message
	if msg.IsVersioned() && msg.NumLookups() > 0 && msg.GetAddressTables() == nil {
		for _, id := range msg.GetAddressTableLookups().GetTableIDs() {
			if _, ok := tables[id]; !ok {
				return nil, fmt.Errorf("%w: missing address lookup table %s", ErrQuoteUnavailable, id)
			}
		}
		if err := msg.SetAddressTables(tables); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrQuoteUnavailable, err)
		}
	}

	metas, err := msg.AccountMetaList()
	if err != nil {
		return nil, fmt.Errorf("%w: resolve upstream accounts: %v", ErrQuoteUnavailable, err)
	}

	out := make([]solana.Instruction, 0, len(msg.Instructions))
	for i, ci := range msg.Instructions {
		programID, err := msg.Program(ci.ProgramIDIndex)
		if err != nil {
			return nil, fmt.Errorf("%w: instruction %d: %v", ErrQuoteUnavailable, i, err)
		}

		accounts := make(solana.AccountMetaSlice, len(ci.Accounts))
		for j, idx := range ci.Accounts {
			if int(idx) >= len(metas) {
				return nil, fmt.Errorf("%w: instruction %d references account %d out of %d", ErrQuoteUnavailable, i, idx, len(metas))
			}
			m := metas[idx]
			accounts[j] = &solana.AccountMeta{
				PublicKey:  m.PublicKey,
				IsSigner:   m.IsSigner,
				IsWritable: m.IsWritable,
			}
		}

		data := make([]byte, len(ci.Data))
		copy(data, ci.Data)
		out = append(out, solana.NewInstruction(programID, accounts, data))
	}

	return out, nil
}
