// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package favoritesvm

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/prefixdb"
	"github.com/ava-labs/avalanchego/database/versiondb"
)

var (
	// These are prefixes for db keys.
	// It's important to set different prefixes for each separate database objects.
	singletonStatePrefix = []byte("singleton")
	blockStatePrefix     = []byte("block")
	heightIndexPrefix    = []byte("height")
	favoritesStatePrefix = []byte("favorites")

	_ State = (*state)(nil)
)

// State is a wrapper around SingletonState, BlockState and FavoritesState.
// State also exposes a few methods needed for managing database commits and close.
type State interface {
	SingletonState
	BlockState
	FavoritesState

	// FavoritesDB is the committed favorites database. Processing blocks
	// stack their versioned views on top of it.
	FavoritesDB() database.Database

	Commit() error
	Abort()
	Close() error
}

type state struct {
	SingletonState
	BlockState
	FavoritesState

	baseDB      *versiondb.Database
	favoritesDB database.Database
}

// NewState splits [db] into the prefixed stores the VM needs.
func NewState(db database.Database, vm *VM, registerer prometheus.Registerer) (State, error) {
	// create a new baseDB
	baseDB := versiondb.New(db)

	singletonDB := prefixdb.New(singletonStatePrefix, baseDB)
	blockDB := prefixdb.New(blockStatePrefix, baseDB)
	heightDB := prefixdb.New(heightIndexPrefix, baseDB)
	favoritesDB := prefixdb.New(favoritesStatePrefix, baseDB)

	blockState, err := NewBlockState(blockDB, heightDB, vm, registerer)
	if err != nil {
		return nil, err
	}

	return &state{
		SingletonState: NewSingletonState(singletonDB),
		BlockState:     blockState,
		FavoritesState: NewFavoritesState(favoritesDB),
		baseDB:         baseDB,
		favoritesDB:    favoritesDB,
	}, nil
}

func (s *state) FavoritesDB() database.Database { return s.favoritesDB }

// Commit commits pending operations to baseDB
func (s *state) Commit() error {
	return s.baseDB.Commit()
}

// Abort drops pending operations
func (s *state) Abort() {
	s.baseDB.Abort()
}

// Close closes the underlying base database
func (s *state) Close() error {
	return s.baseDB.Close()
}
