// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package favoritesvm

import (
	"crypto/ed25519"
	"errors"
	"fmt"

	"filippo.io/edwards25519"
	"github.com/mr-tron/base58"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/hashing"
)

const (
	// MaxSeeds is the maximum number of seeds a derived address can use,
	// bump included.
	MaxSeeds = 16
	// MaxSeedLen is the maximum length of a single seed.
	MaxSeedLen = 32

	// FavoritesSeed is the fixed label every favorites address is derived
	// from.
	FavoritesSeed = "favorites"

	pdaMarker = "ProgramDerivedAddress"
)

var (
	errTooManySeeds   = fmt.Errorf("more than %d seeds", MaxSeeds)
	errSeedTooLong    = fmt.Errorf("seed exceeds %d bytes", MaxSeedLen)
	errOnCurve        = errors.New("derived address is on the ed25519 curve")
	errNoViableBump   = errors.New("unable to find a viable bump seed")
	errBadKeyLength   = errors.New("wrong key length")
	errEmptyPublicKey = errors.New("empty public key")
)

// PublicKey is an ed25519 public key identifying a signer.
type PublicKey [ed25519.PublicKeySize]byte

// PublicKeyFromEd25519 copies [pk] into a PublicKey.
func PublicKeyFromEd25519(pk ed25519.PublicKey) (PublicKey, error) {
	var key PublicKey
	if len(pk) != len(key) {
		return key, errBadKeyLength
	}
	copy(key[:], pk)
	return key, nil
}

// ParsePublicKey decodes a base58 public key.
func ParsePublicKey(s string) (PublicKey, error) {
	var key PublicKey
	b, err := base58.Decode(s)
	if err != nil {
		return key, fmt.Errorf("couldn't decode public key %q: %w", s, err)
	}
	if len(b) != len(key) {
		return key, errBadKeyLength
	}
	copy(key[:], b)
	return key, nil
}

func (k PublicKey) String() string { return base58.Encode(k[:]) }

// IsZero is true for the all zero key, which no signer can own.
func (k PublicKey) IsZero() bool { return k == PublicKey{} }

func (k PublicKey) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (k *PublicKey) UnmarshalText(text []byte) error {
	parsed, err := ParsePublicKey(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// Address is a 32 byte storage location.
type Address [32]byte

// ProgramID returns the address that scopes derivations on chain [chainID].
func ProgramID(chainID ids.ID) Address { return Address(chainID) }

// ParseAddress decodes a base58 address.
func ParseAddress(s string) (Address, error) {
	var addr Address
	b, err := base58.Decode(s)
	if err != nil {
		return addr, fmt.Errorf("couldn't decode address %q: %w", s, err)
	}
	if len(b) != len(addr) {
		return addr, errBadKeyLength
	}
	copy(addr[:], b)
	return addr, nil
}

func (a Address) String() string { return base58.Encode(a[:]) }

func (a Address) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

func (a *Address) UnmarshalText(text []byte) error {
	parsed, err := ParseAddress(string(text))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}

// CreateProgramAddress hashes [seeds] with [programID] into an address that
// no private key controls. It fails if the hash happens to be a valid curve
// point.
func CreateProgramAddress(seeds [][]byte, programID Address) (Address, error) {
	if len(seeds) > MaxSeeds {
		return Address{}, errTooManySeeds
	}
	size := len(programID) + len(pdaMarker)
	for _, seed := range seeds {
		if len(seed) > MaxSeedLen {
			return Address{}, errSeedTooLong
		}
		size += len(seed)
	}

	preimage := make([]byte, 0, size)
	for _, seed := range seeds {
		preimage = append(preimage, seed...)
	}
	preimage = append(preimage, programID[:]...)
	preimage = append(preimage, pdaMarker...)

	addr := Address(hashing.ComputeHash256Array(preimage))
	if isOnCurve(addr[:]) {
		return Address{}, errOnCurve
	}
	return addr, nil
}

// FindProgramAddress searches bumps from 255 down to 1 and returns the first
// one that, appended to [seeds], yields an off curve address.
func FindProgramAddress(seeds [][]byte, programID Address) (Address, uint8, error) {
	bumped := make([][]byte, len(seeds)+1)
	copy(bumped, seeds)
	for bump := 255; bump > 0; bump-- {
		bumped[len(seeds)] = []byte{byte(bump)}
		addr, err := CreateProgramAddress(bumped, programID)
		switch {
		case err == nil:
			return addr, uint8(bump), nil
		case errors.Is(err, errOnCurve):
			continue
		default:
			return Address{}, 0, err
		}
	}
	return Address{}, 0, errNoViableBump
}

// DeriveFavoritesAddress returns where [user]'s record lives under
// [programID], along with the bump that produced it.
func DeriveFavoritesAddress(programID Address, user PublicKey) (Address, uint8, error) {
	if user.IsZero() {
		return Address{}, 0, errEmptyPublicKey
	}
	return FindProgramAddress([][]byte{[]byte(FavoritesSeed), user[:]}, programID)
}

func isOnCurve(b []byte) bool {
	_, err := new(edwards25519.Point).SetBytes(b)
	return err == nil
}
