package txbuilder

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/gagliardetto/solana-go"
)

// Serialize encodes an unsigned transaction to its binary wire format and then to base64.
// Signature slots are zero-filled by the wire encoder, one per required signer.
func Serialize(utx *UnsignedTx) (string, error) {
	if utx == nil || utx.Tx == nil {
		return "", fmt.Errorf("%w: nil transaction", ErrSerializationFailed)
	}
	if utx.FeePayer.IsZero() || len(utx.Tx.Message.AccountKeys) == 0 {
		return "", fmt.Errorf("%w: missing fee payer", ErrSerializationFailed)
	}
	if !utx.Tx.Message.AccountKeys[0].Equals(utx.FeePayer) {
		return "", fmt.Errorf("%w: fee payer %s is not the first account key", ErrSerializationFailed, utx.FeePayer)
	}

	raw, err := utx.Tx.MarshalBinary()
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrSerializationFailed, err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

// Deserialize decodes a base64 wire transaction produced by Serialize (or by any wallet/provider).
func Deserialize(text string) (*solana.Transaction, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(text))
	if err != nil {
		return nil, fmt.Errorf("decode base64 transaction: %w", err)
	}
	return DeserializeBytes(raw)
}

// DeserializeBytes decodes a binary wire transaction.
func DeserializeBytes(raw []byte) (*solana.Transaction, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("decode transaction: empty payload")
	}
	tx, err := solana.TransactionFromBytes(raw)
	if err != nil {
		return nil, fmt.Errorf("decode transaction: %w", err)
	}
	return tx, nil
}
