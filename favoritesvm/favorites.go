// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package favoritesvm

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/ava-labs/avalanchego/utils/hashing"
	"github.com/ava-labs/avalanchego/utils/wrappers"
)

const (
	// MaxColorLen is the maximum length, in bytes, of a favorite color.
	MaxColorLen = 50
	// MaxHobbies is the maximum number of hobbies a record can hold.
	MaxHobbies = 5
	// MaxHobbyLen is the maximum length, in bytes, of a single hobby.
	MaxHobbyLen = 50

	// DiscriminatorLen is the length of the type tag prefixed to every
	// stored account.
	DiscriminatorLen = 8

	// AccountSpace is the largest footprint a favorites account may take in
	// storage: discriminator, codec version, owner, bump, nonce, number,
	// length-prefixed color and a length-prefixed list of length-prefixed
	// hobbies.
	AccountSpace = DiscriminatorLen +
		wrappers.ShortLen +
		len(PublicKey{}) + wrappers.ByteLen + wrappers.LongLen +
		wrappers.LongLen +
		wrappers.ShortLen + MaxColorLen +
		wrappers.IntLen + MaxHobbies*(wrappers.ShortLen+MaxHobbyLen)
)

var (
	errColorTooLong   = fmt.Errorf("color exceeds %d bytes", MaxColorLen)
	errTooManyHobbies = fmt.Errorf("more than %d hobbies", MaxHobbies)
	errHobbyTooLong   = fmt.Errorf("hobby exceeds %d bytes", MaxHobbyLen)
	errInvalidUTF8    = errors.New("string is not valid utf-8")

	// AccountDiscriminator tags stored favorites accounts so that bytes of
	// another type are never decoded as a record.
	AccountDiscriminator = newDiscriminator("account:Favorites")
)

// Favorites is the per-user record.
type Favorites struct {
	Number  uint64   `serialize:"true" json:"number"`
	Color   string   `serialize:"true" json:"color"`
	Hobbies []string `serialize:"true" json:"hobbies"`
}

// Verify returns nil iff [f] fits in a favorites account.
func (f *Favorites) Verify() error {
	if len(f.Color) > MaxColorLen {
		return errColorTooLong
	}
	if !utf8.ValidString(f.Color) {
		return fmt.Errorf("color: %w", errInvalidUTF8)
	}
	if len(f.Hobbies) > MaxHobbies {
		return errTooManyHobbies
	}
	for i, hobby := range f.Hobbies {
		if len(hobby) > MaxHobbyLen {
			return fmt.Errorf("hobby %d: %w", i, errHobbyTooLong)
		}
		if !utf8.ValidString(hobby) {
			return fmt.Errorf("hobby %d: %w", i, errInvalidUTF8)
		}
	}
	return nil
}

// Equal reports whether [f] and [o] hold the same values.
func (f *Favorites) Equal(o *Favorites) bool {
	if f.Number != o.Number || f.Color != o.Color || len(f.Hobbies) != len(o.Hobbies) {
		return false
	}
	for i := range f.Hobbies {
		if f.Hobbies[i] != o.Hobbies[i] {
			return false
		}
	}
	return true
}

// Account is the envelope stored at a user's derived address.
type Account struct {
	// Owner is the signer that created the account.
	Owner PublicKey `serialize:"true" json:"owner"`
	// Bump is the seed that moved the derived address off the curve.
	Bump uint8 `serialize:"true" json:"bump"`
	// Nonce counts the writes applied to this account.
	Nonce uint64 `serialize:"true" json:"nonce"`

	Favorites Favorites `serialize:"true" json:"favorites"`
}

func newDiscriminator(name string) [DiscriminatorLen]byte {
	var d [DiscriminatorLen]byte
	copy(d[:], hashing.ComputeHash256([]byte(name)))
	return d
}
