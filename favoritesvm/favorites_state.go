// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package favoritesvm

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/database"
)

var (
	errWrongAccountType = errors.New("stored bytes are not a favorites account")
	errAccountTooLarge  = fmt.Errorf("account exceeds %d bytes", AccountSpace)

	_ FavoritesState = (*favoritesState)(nil)
)

// FavoritesState reads and writes favorites accounts keyed by their derived
// address.
type FavoritesState interface {
	// GetAccount returns database.ErrNotFound if nothing is stored at [addr].
	GetAccount(addr Address) (*Account, error)
	PutAccount(addr Address, account *Account) error
}

type favoritesState struct {
	db database.Database
}

// NewFavoritesState wraps [db], which may be the committed favorites
// database or a versioned view stacked on it.
func NewFavoritesState(db database.Database) FavoritesState {
	return &favoritesState{db: db}
}

func (s *favoritesState) GetAccount(addr Address) (*Account, error) {
	raw, err := s.db.Get(addr[:])
	if err != nil {
		return nil, err
	}
	return parseAccount(raw)
}

func (s *favoritesState) PutAccount(addr Address, account *Account) error {
	raw, err := marshalAccount(account)
	if err != nil {
		return err
	}
	return s.db.Put(addr[:], raw)
}

func marshalAccount(account *Account) ([]byte, error) {
	accountBytes, err := Codec.Marshal(CodecVersion, account)
	if err != nil {
		return nil, fmt.Errorf("couldn't marshal account: %w", err)
	}
	raw := make([]byte, 0, DiscriminatorLen+len(accountBytes))
	raw = append(raw, AccountDiscriminator[:]...)
	raw = append(raw, accountBytes...)
	if len(raw) > AccountSpace {
		return nil, errAccountTooLarge
	}
	return raw, nil
}

func parseAccount(raw []byte) (*Account, error) {
	if len(raw) < DiscriminatorLen || !bytes.Equal(raw[:DiscriminatorLen], AccountDiscriminator[:]) {
		return nil, errWrongAccountType
	}
	account := &Account{}
	if _, err := Codec.Unmarshal(raw[DiscriminatorLen:], account); err != nil {
		return nil, fmt.Errorf("couldn't parse account: %w", err)
	}
	return account, nil
}
