// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package favoritesvm

import (
	"bytes"
	"crypto/ed25519"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKey(seed byte) (ed25519.PrivateKey, PublicKey) {
	key := ed25519.NewKeyFromSeed(bytes.Repeat([]byte{seed}, ed25519.SeedSize))
	var pub PublicKey
	copy(pub[:], key.Public().(ed25519.PublicKey))
	return key, pub
}

func newSignedTx(t *testing.T, key ed25519.PrivateKey, nonce uint64, favorites Favorites) *Tx {
	var user PublicKey
	copy(user[:], key.Public().(ed25519.PublicKey))
	tx := NewTx(user, nonce, favorites)
	require.NoError(t, tx.Sign(key))
	return tx
}

func TestTxSignAndVerify(t *testing.T) {
	assert := assert.New(t)

	key, user := testKey(1)
	tx := newSignedTx(t, key, 0, Favorites{Number: 7, Color: "red", Hobbies: []string{"skiing"}})
	assert.NoError(tx.SyntacticVerify())
	assert.Equal(user, tx.Unsigned.User)
	assert.NotEmpty(tx.Bytes())

	parsed, err := ParseTx(tx.Bytes())
	assert.NoError(err)
	assert.Equal(tx.ID(), parsed.ID())
	assert.True(tx.Unsigned.Favorites.Equal(&parsed.Unsigned.Favorites))
	assert.NoError(parsed.SyntacticVerify())
}

func TestTxWrongSigner(t *testing.T) {
	_, alice := testKey(1)
	bobKey, _ := testKey(2)

	tx := NewTx(alice, 0, Favorites{Number: 1})
	assert.ErrorIs(t, tx.Sign(bobKey), errWrongSigner)
}

func TestTxTampered(t *testing.T) {
	assert := assert.New(t)

	key, _ := testKey(1)
	tx := newSignedTx(t, key, 0, Favorites{Number: 7, Color: "red"})

	tx.Unsigned.Number = 8
	assert.ErrorIs(tx.SyntacticVerify(), errInvalidSignature)

	tx.Unsigned.Number = 7
	tx.Unsigned.Nonce = 1
	assert.ErrorIs(tx.SyntacticVerify(), errInvalidSignature)

	var nilTx *Tx
	assert.ErrorIs(nilTx.SyntacticVerify(), errNilTx)

	unsigned := NewTx(PublicKey{}, 0, Favorites{})
	assert.ErrorIs(unsigned.SyntacticVerify(), errEmptyPublicKey)
}

func TestTxInvalidFavorites(t *testing.T) {
	key, _ := testKey(1)
	tx := newSignedTx(t, key, 0, Favorites{Color: strings.Repeat("c", MaxColorLen+1)})
	assert.ErrorIs(t, tx.SyntacticVerify(), errColorTooLong)
}

func TestParseTxGarbage(t *testing.T) {
	_, err := ParseTx([]byte{0, 0, 1})
	assert.Error(t, err)
}
