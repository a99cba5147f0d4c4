// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package favoritesvm

import (
	"errors"
	"fmt"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/avalanchego/database"
)

var (
	errInvalidNonce  = errors.New("invalid nonce")
	errWrongOwner    = errors.New("account is owned by another key")
	errBumpMismatch  = errors.New("stored bump does not match derivation")
	errAccountExists = errors.New("account already exists")
)

// Execute applies the set-favorites instruction carried by [tx] to [state].
// The record at the user's derived address is created if missing and
// otherwise overwritten wholesale. [tx] must already be syntactically valid.
func (tx *Tx) Execute(state FavoritesState, programID Address, logger log.Logger) error {
	user := tx.Unsigned.User
	addr, bump, err := DeriveFavoritesAddress(programID, user)
	if err != nil {
		return fmt.Errorf("couldn't derive favorites address for %s: %w", user, err)
	}

	account, err := state.GetAccount(addr)
	switch {
	case errors.Is(err, database.ErrNotFound):
		account = &Account{
			Owner: user,
			Bump:  bump,
		}
	case err != nil:
		return fmt.Errorf("couldn't read account %s: %w", addr, err)
	case account.Owner != user:
		return errWrongOwner
	case account.Bump != bump:
		return errBumpMismatch
	}

	if tx.Unsigned.Nonce != account.Nonce {
		return fmt.Errorf("%w: expected %d, got %d", errInvalidNonce, account.Nonce, tx.Unsigned.Nonce)
	}

	logger.Info(fmt.Sprintf(
		"User %s's favorite number is %d, favorite color is: %s",
		user, tx.Unsigned.Number, tx.Unsigned.Color,
	))
	logger.Info(fmt.Sprintf("User's hobbies are: %q", tx.Unsigned.Hobbies))

	account.Favorites = Favorites{
		Number:  tx.Unsigned.Number,
		Color:   tx.Unsigned.Color,
		Hobbies: append([]string(nil), tx.Unsigned.Hobbies...),
	}
	account.Nonce++
	return state.PutAccount(addr, account)
}

// initAccount writes a fresh record for [user] at genesis.
func initAccount(state FavoritesState, programID Address, user PublicKey, favorites Favorites) error {
	addr, bump, err := DeriveFavoritesAddress(programID, user)
	if err != nil {
		return err
	}
	switch _, err := state.GetAccount(addr); {
	case err == nil:
		return fmt.Errorf("%w: %s", errAccountExists, user)
	case !errors.Is(err, database.ErrNotFound):
		return err
	}
	return state.PutAccount(addr, &Account{
		Owner:     user,
		Bump:      bump,
		Favorites: favorites,
	})
}
