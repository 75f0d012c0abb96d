package main

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/brojonat/blinks/service/txbuilder"
	"github.com/gagliardetto/solana-go"
	"github.com/itchyny/gojq"
	"github.com/urfave/cli/v2"
)

// txSummary is the decoded, JSON friendly view of an unsigned transaction.
type txSummary struct {
	Version            string          `json:"version"`
	FeePayer           string          `json:"fee_payer"`
	Blockhash          string          `json:"blockhash"`
	SignaturesRequired int             `json:"signatures_required"`
	Signed             bool            `json:"signed"`
	AccountKeys        []string        `json:"account_keys"`
	Instructions       []ixSummary     `json:"instructions"`
	Lookups            []lookupSummary `json:"address_table_lookups,omitempty"`
}

type ixSummary struct {
	ProgramID string           `json:"program_id"`
	Accounts  []accountSummary `json:"accounts"`
	Data      string           `json:"data"`
}

type accountSummary struct {
	Index    uint16 `json:"index"`
	Pubkey   string `json:"pubkey,omitempty"`
	Signer   bool   `json:"signer"`
	Writable bool   `json:"writable"`
	Lookup   bool   `json:"lookup,omitempty"`
}

type lookupSummary struct {
	Table    string `json:"table"`
	Writable []int  `json:"writable_indexes"`
	Readonly []int  `json:"readonly_indexes"`
}

func txCommands() *cli.Command {
	return &cli.Command{
		Name:  "tx",
		Usage: "Inspect transactions produced by the service",
		Subcommands: []*cli.Command{
			decodeCommand(),
		},
	}
}

func decodeCommand() *cli.Command {
	return &cli.Command{
		Name:      "decode",
		Usage:     "Decode a base64 transaction into JSON",
		ArgsUsage: "[base64 transaction, or - / nothing to read stdin]",
		Description: `Decode a transaction as returned by the action endpoints.

Accounts loaded through address lookup tables are shown by index only.

Examples:
  blinks action donate 1 --account <pubkey> | blinks tx decode
  blinks tx decode AQAAAA... --jq '.instructions | length'
  blinks tx decode AQAAAA... --jq '.instructions[]' --jq '.program_id'`,
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:  "jq",
				Usage: "jq filter applied to the decoded transaction (repeatable, filters are piped in order)",
			},
		},
		Action: func(c *cli.Context) error {
			text := c.Args().First()
			if text == "" || text == "-" {
				var err error
				text, err = readTransaction(os.Stdin)
				if err != nil {
					return err
				}
			}

			tx, err := txbuilder.Deserialize(text)
			if err != nil {
				return fmt.Errorf("failed to decode transaction: %w", err)
			}

			results, err := applyJQ(c.StringSlice("jq"), summarize(tx))
			if err != nil {
				return err
			}
			for _, v := range results {
				data, err := json.MarshalIndent(v, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal result: %w", err)
				}
				fmt.Println(string(data))
			}
			return nil
		},
	}
}

// readTransaction reads a transaction from r. It accepts either bare base64 or the JSON
// body returned by the build endpoints.
func readTransaction(r io.Reader) (string, error) {
	data, err := io.ReadAll(bufio.NewReader(r))
	if err != nil {
		return "", fmt.Errorf("failed to read stdin: %w", err)
	}
	text := strings.TrimSpace(string(data))
	if strings.HasPrefix(text, "{") {
		var body struct {
			Transaction string `json:"transaction"`
		}
		if err := json.Unmarshal([]byte(text), &body); err != nil {
			return "", fmt.Errorf("failed to parse JSON input: %w", err)
		}
		text = body.Transaction
	}
	if text == "" {
		return "", fmt.Errorf("no transaction given")
	}
	return text, nil
}

// summarize flattens tx. Writability for static keys follows the message header.
func summarize(tx *solana.Transaction) txSummary {
	msg := tx.Message
	h := msg.Header
	static := len(msg.AccountKeys)

	out := txSummary{
		Version:            "legacy",
		Blockhash:          msg.RecentBlockhash.String(),
		SignaturesRequired: int(h.NumRequiredSignatures),
		AccountKeys:        make([]string, static),
		Instructions:       make([]ixSummary, 0, len(msg.Instructions)),
	}
	if msg.IsVersioned() {
		out.Version = "v0"
	}
	for i, k := range msg.AccountKeys {
		out.AccountKeys[i] = k.String()
	}
	if static > 0 {
		out.FeePayer = msg.AccountKeys[0].String()
	}
	for _, sig := range tx.Signatures {
		if !sig.IsZero() {
			out.Signed = true
		}
	}

	signers := int(h.NumRequiredSignatures)
	writableSigners := signers - int(h.NumReadonlySignedAccounts)
	writableUnsigned := static - int(h.NumReadonlyUnsignedAccounts)

	describe := func(idx uint16) accountSummary {
		i := int(idx)
		if i >= static {
			return accountSummary{Index: idx, Lookup: true}
		}
		return accountSummary{
			Index:    idx,
			Pubkey:   msg.AccountKeys[i].String(),
			Signer:   i < signers,
			Writable: i < writableSigners || (i >= signers && i < writableUnsigned),
		}
	}

	for _, ci := range msg.Instructions {
		ix := ixSummary{
			Accounts: make([]accountSummary, 0, len(ci.Accounts)),
			Data:     base64.StdEncoding.EncodeToString(ci.Data),
		}
		if int(ci.ProgramIDIndex) < static {
			ix.ProgramID = msg.AccountKeys[ci.ProgramIDIndex].String()
		}
		for _, idx := range ci.Accounts {
			ix.Accounts = append(ix.Accounts, describe(idx))
		}
		out.Instructions = append(out.Instructions, ix)
	}

	for _, l := range msg.AddressTableLookups {
		out.Lookups = append(out.Lookups, lookupSummary{
			Table:    l.AccountKey.String(),
			Writable: indexes(l.WritableIndexes),
			Readonly: indexes(l.ReadonlyIndexes),
		})
	}

	return out
}

func indexes(in []uint8) []int {
	out := make([]int, len(in))
	for i, v := range in {
		out[i] = int(v)
	}
	return out
}

// applyJQ runs the filters, piped together, over v. With no filters v is returned as is.
func applyJQ(filters []string, v any) ([]any, error) {
	// gojq only understands plain JSON values.
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal input: %w", err)
	}
	var input any
	if err := json.Unmarshal(data, &input); err != nil {
		return nil, fmt.Errorf("failed to unmarshal input: %w", err)
	}
	if len(filters) == 0 {
		return []any{input}, nil
	}

	expr := strings.Join(filters, " | ")
	query, err := gojq.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse jq filter %q: %w", expr, err)
	}
	code, err := gojq.Compile(query)
	if err != nil {
		return nil, fmt.Errorf("failed to compile jq filter %q: %w", expr, err)
	}

	var results []any
	iter := code.Run(input)
	for {
		v, ok := iter.Next()
		if !ok {
			break
		}
		if err, isErr := v.(error); isErr {
			return nil, fmt.Errorf("jq filter %q failed: %w", expr, err)
		}
		results = append(results, v)
	}
	return results, nil
}
