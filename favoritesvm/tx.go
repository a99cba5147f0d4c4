// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package favoritesvm

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
)

var (
	errNilTx            = errors.New("nil tx")
	errInvalidSignature = errors.New("invalid signature")
	errWrongSigner      = errors.New("signing key does not match the tx user")
)

// UnsignedSetFavoritesTx asks the chain to overwrite [User]'s favorites.
type UnsignedSetFavoritesTx struct {
	// User signs the tx and keys the derived record address.
	User PublicKey `serialize:"true" json:"user"`
	// Nonce must equal the number of writes already applied to the record.
	Nonce uint64 `serialize:"true" json:"nonce"`

	Favorites `serialize:"true"`
}

// Tx is a signed set-favorites transaction.
type Tx struct {
	Unsigned  UnsignedSetFavoritesTx      `serialize:"true" json:"unsignedTx"`
	Signature [ed25519.SignatureSize]byte `serialize:"true" json:"signature"`

	id    ids.ID
	bytes []byte
}

// NewTx returns an unsigned tx for [user] carrying [favorites].
func NewTx(user PublicKey, nonce uint64, favorites Favorites) *Tx {
	return &Tx{
		Unsigned: UnsignedSetFavoritesTx{
			User:      user,
			Nonce:     nonce,
			Favorites: favorites,
		},
	}
}

// ParseTx decodes [b] into a Tx.
func ParseTx(b []byte) (*Tx, error) {
	tx := &Tx{}
	if _, err := Codec.Unmarshal(b, tx); err != nil {
		return nil, fmt.Errorf("couldn't parse tx: %w", err)
	}
	tx.initialize(b)
	return tx, nil
}

// Sign signs the tx with [key], which must belong to the tx user.
func (tx *Tx) Sign(key ed25519.PrivateKey) error {
	pub, err := PublicKeyFromEd25519(key.Public().(ed25519.PublicKey))
	if err != nil {
		return err
	}
	if pub != tx.Unsigned.User {
		return errWrongSigner
	}
	unsignedBytes, err := Codec.Marshal(CodecVersion, &tx.Unsigned)
	if err != nil {
		return fmt.Errorf("couldn't marshal unsigned tx: %w", err)
	}
	copy(tx.Signature[:], ed25519.Sign(key, unsignedBytes))

	signedBytes, err := Codec.Marshal(CodecVersion, tx)
	if err != nil {
		return fmt.Errorf("couldn't marshal signed tx: %w", err)
	}
	tx.initialize(signedBytes)
	return nil
}

func (tx *Tx) initialize(b []byte) {
	tx.bytes = b
	tx.id = hashing.ComputeHash256Array(b)
}

// ID returns the hash of the signed tx bytes.
func (tx *Tx) ID() ids.ID { return tx.id }

// Bytes returns the signed tx bytes.
func (tx *Tx) Bytes() []byte { return tx.bytes }

// SyntacticVerify checks everything that doesn't depend on chain state.
func (tx *Tx) SyntacticVerify() error {
	switch {
	case tx == nil:
		return errNilTx
	case tx.Unsigned.User.IsZero():
		return errEmptyPublicKey
	}
	if err := tx.Unsigned.Favorites.Verify(); err != nil {
		return err
	}
	unsignedBytes, err := Codec.Marshal(CodecVersion, &tx.Unsigned)
	if err != nil {
		return fmt.Errorf("couldn't marshal unsigned tx: %w", err)
	}
	if !ed25519.Verify(tx.Unsigned.User[:], unsignedBytes, tx.Signature[:]) {
		return errInvalidSignature
	}
	return nil
}
