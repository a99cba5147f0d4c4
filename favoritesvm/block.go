// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package favoritesvm

import (
	"context"
	"errors"
	"fmt"
	"time"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/avalanchego/database"
	"github.com/ava-labs/avalanchego/database/versiondb"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/snow/choices"
	"github.com/ava-labs/avalanchego/snow/consensus/snowman"
	"github.com/ava-labs/avalanchego/utils/hashing"
)

const (
	futureBlockLimit = time.Hour

	// MaxBlockTxs is the most txs a valid block may carry. A node's chain
	// config may only lower the number of txs it packs into its own blocks.
	MaxBlockTxs = 256
)

var (
	errTimestampTooEarly = errors.New("block's timestamp is earlier than its parent's timestamp")
	errTimestampTooLate  = errors.New("block's timestamp is more than 1 hour ahead of local time")
	errWrongHeight       = errors.New("block's height isn't its parent's height plus one")
	errNoTxs             = errors.New("block contains no transactions")
	errTooManyTxs        = errors.New("block contains too many transactions")
	errDuplicateTx       = errors.New("block contains a duplicate transaction")
	errParentNotVerified = errors.New("parent block has not been verified")
	errStaleParent       = errors.New("parent block is accepted but not the last accepted block")

	_ snowman.Block = (*Block)(nil)
)

// Block is a block on the chain.
// Each block contains:
// 1) A list of signed set-favorites transactions
// 2) A timestamp
type Block struct {
	PrntID ids.ID `serialize:"true" json:"parentID"`  // parent's ID
	Hght   uint64 `serialize:"true" json:"height"`    // This block's height. The genesis block is at height 0.
	Tmstmp int64  `serialize:"true" json:"timestamp"` // Time this block was proposed at
	Txs    []*Tx  `serialize:"true" json:"txs"`       // Transactions executed, in order, by this block

	id     ids.ID         // hold this block's ID
	bytes  []byte         // this block's encoded bytes
	status choices.Status // block's status
	vm     *VM            // the underlying VM reference, mostly used for state
	built  bool           // true if this node built the block from its mempool

	// onAcceptDB holds this block's writes on top of its parent's state.
	// It is set by Verify and released once the block is decided.
	onAcceptDB *versiondb.Database
}

// ParseBlock decodes [b] into a Block, initializing its transactions.
func ParseBlock(b []byte) (*Block, error) {
	blk := &Block{}
	if _, err := Codec.Unmarshal(b, blk); err != nil {
		return nil, fmt.Errorf("couldn't parse block: %w", err)
	}
	for _, tx := range blk.Txs {
		if tx == nil {
			return nil, errNilTx
		}
		txBytes, err := Codec.Marshal(CodecVersion, tx)
		if err != nil {
			return nil, fmt.Errorf("couldn't marshal tx: %w", err)
		}
		tx.initialize(txBytes)
	}
	blk.initialize(b)
	return blk, nil
}

func (b *Block) initialize(bytes []byte) {
	b.bytes = bytes
	b.id = hashing.ComputeHash256Array(bytes)
}

// Verify returns nil iff this block is valid.
// To be valid, it must be that:
// b.parent.Timestamp <= b.Timestamp < [local time] + 1 hour,
// b.Height == b.parent.Height + 1,
// and every transaction applies cleanly on top of the parent's state.
//
// If this node built [b] and it fails verification, its txs go back to the
// mempool so the next block can retry them.
func (b *Block) Verify(_ context.Context) error {
	if err := b.verify(); err != nil {
		if b.built {
			b.requeue()
		}
		return err
	}
	return nil
}

func (b *Block) verify() error {
	// Get [b]'s parent
	parent, err := b.vm.getBlock(b.PrntID)
	if err != nil {
		return fmt.Errorf("couldn't get parent %s of block %s: %w", b.PrntID, b.id, err)
	}

	if expectedHeight := parent.Hght + 1; b.Hght != expectedHeight {
		return fmt.Errorf("%w: expected %d, found %d", errWrongHeight, expectedHeight, b.Hght)
	}

	// Ensure [b]'s timestamp is after its parent's timestamp.
	if b.Tmstmp < parent.Tmstmp {
		return errTimestampTooEarly
	}

	// Ensure [b]'s timestamp is not more than an hour
	// ahead of this node's time
	if b.Tmstmp >= time.Now().Add(futureBlockLimit).Unix() {
		return errTimestampTooLate
	}

	switch {
	case len(b.Txs) == 0:
		return errNoTxs
	case len(b.Txs) > MaxBlockTxs:
		return fmt.Errorf("%w: %d > %d", errTooManyTxs, len(b.Txs), MaxBlockTxs)
	}

	parentDB, err := parent.stateDB()
	if err != nil {
		return err
	}

	onAcceptDB := versiondb.New(parentDB)
	if err := b.execute(onAcceptDB, discardLogger, true); err != nil {
		return err
	}

	// Put that block to verified blocks in memory
	b.onAcceptDB = onAcceptDB
	b.vm.verifiedBlocks[b.id] = b
	return nil
}

// execute runs the block's txs, in order, against [db].
func (b *Block) execute(db database.Database, logger log.Logger, verifySignatures bool) error {
	state := NewFavoritesState(db)
	seen := make(map[ids.ID]struct{}, len(b.Txs))
	for _, tx := range b.Txs {
		txID := tx.ID()
		if _, ok := seen[txID]; ok {
			return fmt.Errorf("%w: %s", errDuplicateTx, txID)
		}
		seen[txID] = struct{}{}

		if verifySignatures {
			if err := tx.SyntacticVerify(); err != nil {
				return fmt.Errorf("tx %s failed verification: %w", txID, err)
			}
		}
		if err := tx.Execute(state, b.vm.programID, logger); err != nil {
			return fmt.Errorf("tx %s failed execution: %w", txID, err)
		}
	}
	return nil
}

// stateDB returns the state a child of this block executes on.
func (b *Block) stateDB() (database.Database, error) {
	if b.status == choices.Accepted {
		lastAccepted, err := b.vm.state.GetLastAccepted()
		if err != nil {
			return nil, err
		}
		if lastAccepted != b.id {
			return nil, errStaleParent
		}
		return b.vm.state.FavoritesDB(), nil
	}
	if b.onAcceptDB == nil {
		return nil, errParentNotVerified
	}
	return b.onAcceptDB, nil
}

// Initialize sets [b.bytes] to [bytes], [b.id] to hash([b.bytes]),
// [b.status] to [status] and [b.vm] to [vm]
func (b *Block) Initialize(bytes []byte, status choices.Status, vm *VM) {
	b.initialize(bytes)
	b.status = status
	b.vm = vm
}

// Accept sets this block's status to Accepted and sets lastAccepted to this
// block's ID and saves this info to b.vm.DB
func (b *Block) Accept(_ context.Context) error {
	defer b.vm.state.Abort()

	// The parent is the last accepted block, so the committed state is
	// exactly what this block was verified against.
	if err := b.execute(b.vm.state.FavoritesDB(), b.vm.log, false); err != nil {
		return fmt.Errorf("failed to apply block %s: %w", b.id, err)
	}

	b.SetStatus(choices.Accepted) // Change state of this block
	blkID := b.ID()

	// Persist data
	if err := b.vm.state.PutBlock(b); err != nil {
		return err
	}

	// Set last accepted ID to this block ID
	if err := b.vm.state.SetLastAccepted(blkID); err != nil {
		return fmt.Errorf("failed to update last accepted block to %s: %w", blkID, err)
	}

	// Delete this block from verified blocks as it's accepted
	delete(b.vm.verifiedBlocks, blkID)
	b.onAcceptDB = nil

	// Commit changes to database
	if err := b.vm.state.Commit(); err != nil {
		return fmt.Errorf("failed to commit database accepting block %s: %w", blkID, err)
	}

	b.vm.mempool.Remove(b.Txs)
	b.vm.metrics.blocksAccepted.Inc()
	b.vm.metrics.txsAccepted.Add(float64(len(b.Txs)))
	b.vm.log.Debug("accepted block", "id", blkID, "height", b.Hght, "txs", len(b.Txs))
	return nil
}

// Reject sets this block's status to Rejected and hands its txs back to
// the mempool.
func (b *Block) Reject(_ context.Context) error {
	b.SetStatus(choices.Rejected) // Change state of this block
	delete(b.vm.verifiedBlocks, b.ID())
	b.onAcceptDB = nil
	b.requeue()
	return nil
}

// requeue hands [b]'s txs back to the mempool. Stale txs are dropped the
// next time a block is built.
func (b *Block) requeue() {
	for _, tx := range b.Txs {
		// A full mempool or an already queued tx is fine to drop here.
		_ = b.vm.mempool.Add(tx)
	}
}

// ID returns the ID of this block
func (b *Block) ID() ids.ID { return b.id }

// Parent returns [b]'s parent's ID
func (b *Block) Parent() ids.ID { return b.PrntID }

// Height returns this block's height. The genesis block has height 0.
func (b *Block) Height() uint64 { return b.Hght }

// Timestamp returns this block's time. The genesis block has time 0.
func (b *Block) Timestamp() time.Time { return time.Unix(b.Tmstmp, 0) }

// Status returns the status of this block
func (b *Block) Status() choices.Status { return b.status }

// Bytes returns the byte repr. of this block
func (b *Block) Bytes() []byte { return b.bytes }

// SetStatus sets the status of this block
func (b *Block) SetStatus(status choices.Status) { b.status = status }
