// (c) 2021, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package favoritesvm

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/ava-labs/avalanchego/cache"
	"github.com/ava-labs/avalanchego/cache/metercacher"
	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/snow/choices"
)

const (
	blockCacheSize = 8192
)

var _ BlockState = (*blockState)(nil)

// BlockState persists accepted blocks and indexes them by height.
type BlockState interface {
	GetBlock(blkID ids.ID) (*Block, error)
	PutBlock(blk *Block) error

	GetBlockIDAtHeight(height uint64) (ids.ID, error)

	ClearCache()
}

// blockState implements BlockState with a cache in front of [blockDB].
type blockState struct {
	// cache to store blocks
	blkCache cache.Cacher[ids.ID, *Block]
	// block database
	blockDB  database.Database
	heightDB database.Database

	vm *VM
}

// NewBlockState returns BlockState with a new cache and given db
func NewBlockState(blockDB, heightDB database.Database, vm *VM, registerer prometheus.Registerer) (BlockState, error) {
	blkCache, err := metercacher.New[ids.ID, *Block](
		"block_cache",
		registerer,
		&cache.LRU[ids.ID, *Block]{Size: blockCacheSize},
	)
	if err != nil {
		return nil, err
	}
	return &blockState{
		blkCache: blkCache,
		blockDB:  blockDB,
		heightDB: heightDB,
		vm:       vm,
	}, nil
}

// GetBlock gets Block from either cache or database
func (s *blockState) GetBlock(blkID ids.ID) (*Block, error) {
	if blk, ok := s.blkCache.Get(blkID); ok {
		if blk == nil {
			return nil, database.ErrNotFound
		}
		return blk, nil
	}

	blkBytes, err := s.blockDB.Get(blkID[:])
	if err == database.ErrNotFound {
		s.blkCache.Put(blkID, nil)
		return nil, database.ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	blk, err := ParseBlock(blkBytes)
	if err != nil {
		return nil, err
	}

	// only accepted blocks are persisted
	blk.status = choices.Accepted
	blk.vm = s.vm
	s.blkCache.Put(blkID, blk)
	return blk, nil
}

// PutBlock writes [blk] and its height index entry.
func (s *blockState) PutBlock(blk *Block) error {
	blkID := blk.ID()
	s.blkCache.Put(blkID, blk)
	if err := s.blockDB.Put(blkID[:], blk.Bytes()); err != nil {
		return fmt.Errorf("failed to put block %s into block index: %w", blkID, err)
	}
	if err := s.heightDB.Put(database.PackUInt64(blk.Height()), blkID[:]); err != nil {
		return fmt.Errorf("failed to put block %s into height index: %w", blkID, err)
	}
	return nil
}

func (s *blockState) GetBlockIDAtHeight(height uint64) (ids.ID, error) {
	blkIDBytes, err := s.heightDB.Get(database.PackUInt64(height))
	if err != nil {
		return ids.Empty, err
	}
	return ids.ToID(blkIDBytes)
}

// ClearCache flushes the block cache.
func (s *blockState) ClearCache() {
	s.blkCache.Flush()
}
