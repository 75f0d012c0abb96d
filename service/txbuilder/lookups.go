package txbuilder

import (
	"bytes"
	"fmt"
	"slices"

	"github.com/gagliardetto/solana-go"
)

// canonicalizeLookups rewrites the address table lookups of a compiled v0 message into a
// stable order and remaps instruction account indexes to match. Tables are ordered by
// address, each loaded key is drawn from the first table (in that order) holding it, and
// indexes within a table are ascending. The static account keys are left untouched.
func canonicalizeLookups(msg *solana.Message, tables map[solana.PublicKey]solana.PublicKeySlice) error {
	if len(msg.AddressTableLookups) == 0 {
		return nil
	}

	resolved, err := msg.GetAllKeys()
	if err != nil {
		return fmt.Errorf("resolve lookup accounts: %w", err)
	}
	oldKeys := slices.Clone(resolved)
	numStatic := len(msg.AccountKeys)
	numWritable := msg.NumWritableLookups()

	ids := make(solana.PublicKeySlice, 0, len(tables))
	for id := range tables {
		ids = append(ids, id)
	}
	slices.SortFunc(ids, func(a, b solana.PublicKey) int {
		return bytes.Compare(a[:], b[:])
	})

	writable := make([][]uint8, len(ids))
	readonly := make([][]uint8, len(ids))
	for i, key := range oldKeys[numStatic:] {
		table, index, ok := locateInTables(ids, tables, key)
		if !ok {
			return fmt.Errorf("loaded account %s is in no lookup table", key)
		}
		if i < numWritable {
			writable[table] = append(writable[table], index)
		} else {
			readonly[table] = append(readonly[table], index)
		}
	}

	lookups := make([]solana.MessageAddressTableLookup, 0, len(ids))
	for t, id := range ids {
		if len(writable[t]) == 0 && len(readonly[t]) == 0 {
			continue
		}
		slices.Sort(writable[t])
		slices.Sort(readonly[t])
		lookups = append(lookups, solana.MessageAddressTableLookup{
			AccountKey:      id,
			WritableIndexes: writable[t],
			ReadonlyIndexes: readonly[t],
		})
	}
	msg.SetAddressTableLookups(lookups)

	newKeys, err := msg.GetAllKeys()
	if err != nil {
		return fmt.Errorf("resolve reordered lookup accounts: %w", err)
	}
	position := make(map[solana.PublicKey]uint16, len(newKeys))
	for i, key := range newKeys {
		if _, ok := position[key]; !ok {
			position[key] = uint16(i)
		}
	}

	remap := func(idx uint16) (uint16, error) {
		if int(idx) >= len(oldKeys) {
			return 0, fmt.Errorf("account index %d out of %d", idx, len(oldKeys))
		}
		pos, ok := position[oldKeys[idx]]
		if !ok {
			return 0, fmt.Errorf("account %s lost while reordering lookups", oldKeys[idx])
		}
		return pos, nil
	}

	for i := range msg.Instructions {
		ci := &msg.Instructions[i]
		programIdx, err := remap(ci.ProgramIDIndex)
		if err != nil {
			return fmt.Errorf("instruction %d: %w", i, err)
		}
		accounts := make([]uint16, len(ci.Accounts))
		for j, idx := range ci.Accounts {
			if accounts[j], err = remap(idx); err != nil {
				return fmt.Errorf("instruction %d: %w", i, err)
			}
		}
		ci.ProgramIDIndex = programIdx
		ci.Accounts = accounts
	}
	return nil
}

// locateInTables returns the first table (in ids order) containing key and key's first
// index in it.
func locateInTables(ids solana.PublicKeySlice, tables map[solana.PublicKey]solana.PublicKeySlice, key solana.PublicKey) (int, uint8, bool) {
	for t, id := range ids {
		if i := slices.Index(tables[id], key); i >= 0 && i <= 255 {
			return t, uint8(i), true
		}
	}
	return 0, 0, false
}
