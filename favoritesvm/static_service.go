// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package favoritesvm

import (
	"fmt"
	"net/http"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/formatting"
	"github.com/ava-labs/avalanchego/utils/json"
)

// StaticService answers questions that don't need a running chain
type StaticService struct{}

// CreateStaticService ...
func CreateStaticService() *StaticService {
	return &StaticService{}
}

// StaticDeriveAddressArgs are arguments for DeriveAddress
type StaticDeriveAddressArgs struct {
	// ChainID of the blockchain the record lives on
	ChainID ids.ID `json:"chainID"`
	// Base58 ed25519 public key
	User string `json:"user"`
}

// DeriveAddress returns where [args.User]'s record lives on [args.ChainID]
func (*StaticService) DeriveAddress(_ *http.Request, args *StaticDeriveAddressArgs, reply *DeriveAddressReply) error {
	user, err := ParsePublicKey(args.User)
	if err != nil {
		return err
	}
	addr, bump, err := DeriveFavoritesAddress(ProgramID(args.ChainID), user)
	if err != nil {
		return err
	}
	reply.Address = addr
	reply.Bump = json.Uint8(bump)
	return nil
}

// DecodeTxArgs are arguments for DecodeTx
type DecodeTxArgs struct {
	Tx string `json:"tx"`
}

// DecodeTxReply is the reply from DecodeTx
type DecodeTxReply struct {
	TxID    ids.ID      `json:"txID"`
	User    PublicKey   `json:"user"`
	Nonce   json.Uint64 `json:"nonce"`
	Number  json.Uint64 `json:"number"`
	Color   string      `json:"color"`
	Hobbies []string    `json:"hobbies"`
	// Valid is true iff the tx is well formed and correctly signed
	Valid bool `json:"valid"`
	// Error explains why Valid is false
	Error string `json:"error,omitempty"`
}

// DecodeTx returns the contents of a hex encoded tx
func (*StaticService) DecodeTx(_ *http.Request, args *DecodeTxArgs, reply *DecodeTxReply) error {
	txBytes, err := formatting.Decode(formatting.Hex, args.Tx)
	if err != nil {
		return fmt.Errorf("couldn't decode tx: %w", err)
	}
	tx, err := ParseTx(txBytes)
	if err != nil {
		return err
	}

	reply.TxID = tx.ID()
	reply.User = tx.Unsigned.User
	reply.Nonce = json.Uint64(tx.Unsigned.Nonce)
	reply.Number = json.Uint64(tx.Unsigned.Number)
	reply.Color = tx.Unsigned.Color
	reply.Hobbies = tx.Unsigned.Hobbies
	if reply.Hobbies == nil {
		reply.Hobbies = []string{}
	}
	if err := tx.SyntacticVerify(); err != nil {
		reply.Error = err.Error()
		return nil
	}
	reply.Valid = true
	return nil
}
