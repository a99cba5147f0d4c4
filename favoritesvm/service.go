// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package favoritesvm

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/formatting"
	"github.com/ava-labs/avalanchego/utils/json"
)

var (
	errCannotGetLastAccepted = errors.New("problem getting last accepted")
	errNoSuchBlock           = errors.New("couldn't get block from database. Does it exist?")
	errRecordNotFound        = errors.New("no favorites recorded for user")
	errRateLimited           = errors.New("too many transactions issued, try again later")
)

// Service is the API service for this VM
type Service struct{ vm *VM }

// IssueTxArgs are the arguments to IssueTx
type IssueTxArgs struct {
	// Hex encoded signed tx
	Tx string `json:"tx"`
}

// IssueTxReply is the reply from IssueTx
type IssueTxReply struct {
	TxID ids.ID `json:"txID"`
}

// IssueTx is an API method to queue a signed set-favorites tx for the next
// block.
func (s *Service) IssueTx(_ *http.Request, args *IssueTxArgs, reply *IssueTxReply) error {
	if !s.vm.limiter.Allow() {
		return errRateLimited
	}

	txBytes, err := formatting.Decode(formatting.Hex, args.Tx)
	if err != nil {
		return fmt.Errorf("couldn't decode tx: %w", err)
	}
	tx, err := ParseTx(txBytes)
	if err != nil {
		return err
	}
	if err := s.vm.issueTx(tx); err != nil {
		return err
	}
	reply.TxID = tx.ID()
	return nil
}

// UserArgs is an API request where the only argument is a user key.
type UserArgs struct {
	// Base58 ed25519 public key
	User string `json:"user"`
}

// DeriveAddressReply is the reply from DeriveAddress
type DeriveAddressReply struct {
	Address Address    `json:"address"`
	Bump    json.Uint8 `json:"bump"`
}

// DeriveAddress returns where [args.User]'s record lives on this chain.
func (s *Service) DeriveAddress(_ *http.Request, args *UserArgs, reply *DeriveAddressReply) error {
	user, err := ParsePublicKey(args.User)
	if err != nil {
		return err
	}
	addr, bump, err := DeriveFavoritesAddress(s.vm.programID, user)
	if err != nil {
		return err
	}
	reply.Address = addr
	reply.Bump = json.Uint8(bump)
	return nil
}

// GetFavoritesReply is the reply from GetFavorites
type GetFavoritesReply struct {
	Address Address     `json:"address"`
	Bump    json.Uint8  `json:"bump"`
	Owner   PublicKey   `json:"owner"`
	Nonce   json.Uint64 `json:"nonce"`
	Number  json.Uint64 `json:"number"`
	Color   string      `json:"color"`
	Hobbies []string    `json:"hobbies"`
}

// GetFavorites returns the last accepted favorites of [args.User].
func (s *Service) GetFavorites(_ *http.Request, args *UserArgs, reply *GetFavoritesReply) error {
	user, err := ParsePublicKey(args.User)
	if err != nil {
		return err
	}
	addr, _, err := DeriveFavoritesAddress(s.vm.programID, user)
	if err != nil {
		return err
	}
	account, err := s.vm.state.GetAccount(addr)
	if errors.Is(err, database.ErrNotFound) {
		return fmt.Errorf("%w %s", errRecordNotFound, user)
	}
	if err != nil {
		return err
	}

	reply.Address = addr
	reply.Bump = json.Uint8(account.Bump)
	reply.Owner = account.Owner
	reply.Nonce = json.Uint64(account.Nonce)
	reply.Number = json.Uint64(account.Favorites.Number)
	reply.Color = account.Favorites.Color
	reply.Hobbies = account.Favorites.Hobbies
	if reply.Hobbies == nil {
		reply.Hobbies = []string{}
	}
	return nil
}

// GetBlockArgs are the arguments to GetBlock
type GetBlockArgs struct {
	// ID of the block we're getting.
	// If left blank, gets the latest block
	ID *ids.ID `json:"id"`
}

// GetBlockReply is the reply from GetBlock
type GetBlockReply struct {
	Timestamp json.Uint64 `json:"timestamp"` // Timestamp of block
	Height    json.Uint64 `json:"height"`    // Height of block
	ID        ids.ID      `json:"id"`        // String repr. of ID of block
	ParentID  ids.ID      `json:"parentID"`  // String repr. of ID of block's parent
	TxIDs     []ids.ID    `json:"txIDs"`     // IDs of the txs in the block
}

// GetBlock gets the block whose ID is [args.ID]
// If [args.ID] is empty, get the latest block
func (s *Service) GetBlock(_ *http.Request, args *GetBlockArgs, reply *GetBlockReply) error {
	// If an ID is given, parse its string representation to an ids.ID
	// If no ID is given, ID becomes the ID of last accepted block
	var (
		id  ids.ID
		err error
	)

	if args.ID == nil {
		id, err = s.vm.state.GetLastAccepted()
		if err != nil {
			return errCannotGetLastAccepted
		}
	} else {
		id = *args.ID
	}

	// Get the block from the database
	block, err := s.vm.getBlock(id)
	if err != nil {
		return errNoSuchBlock
	}

	// Fill out the response with the block's data
	reply.Timestamp = json.Uint64(block.Timestamp().Unix())
	reply.Height = json.Uint64(block.Height())
	reply.ID = block.ID()
	reply.ParentID = block.Parent()
	reply.TxIDs = make([]ids.ID, len(block.Txs))
	for i, tx := range block.Txs {
		reply.TxIDs[i] = tx.ID()
	}
	return nil
}
