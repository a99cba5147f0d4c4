// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package favoritesvm

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// GenesisAccount is a record that exists from the first block on.
type GenesisAccount struct {
	User    PublicKey `json:"user"`
	Number  uint64    `json:"number"`
	Color   string    `json:"color"`
	Hobbies []string  `json:"hobbies"`
}

func (a *GenesisAccount) Favorites() Favorites {
	return Favorites{
		Number:  a.Number,
		Color:   a.Color,
		Hobbies: a.Hobbies,
	}
}

// Genesis describes the initial state of a favorites chain.
type Genesis struct {
	Accounts []GenesisAccount `json:"accounts"`
}

// ParseGenesis decodes [genesisBytes]. Empty bytes are an empty genesis.
func ParseGenesis(genesisBytes []byte) (*Genesis, error) {
	genesis := &Genesis{}
	if len(bytes.TrimSpace(genesisBytes)) == 0 {
		return genesis, nil
	}
	if err := json.Unmarshal(genesisBytes, genesis); err != nil {
		return nil, fmt.Errorf("couldn't parse genesis: %w", err)
	}
	seen := make(map[PublicKey]struct{}, len(genesis.Accounts))
	for i := range genesis.Accounts {
		account := &genesis.Accounts[i]
		if account.User.IsZero() {
			return nil, fmt.Errorf("genesis account %d: %w", i, errEmptyPublicKey)
		}
		if _, ok := seen[account.User]; ok {
			return nil, fmt.Errorf("genesis account %d: %w: %s", i, errAccountExists, account.User)
		}
		seen[account.User] = struct{}{}

		favorites := account.Favorites()
		if err := favorites.Verify(); err != nil {
			return nil, fmt.Errorf("genesis account %d: %w", i, err)
		}
	}
	return genesis, nil
}
