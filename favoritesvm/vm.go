// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package favoritesvm

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gorilla/rpc/v2"
	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/avalanchego/database/manager"
	"github.com/ava-labs/avalanchego/database/versiondb"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/snow"
	"github.com/ava-labs/avalanchego/snow/choices"
	"github.com/ava-labs/avalanchego/snow/consensus/snowman"
	"github.com/ava-labs/avalanchego/snow/engine/common"
	"github.com/ava-labs/avalanchego/snow/engine/snowman/block"
	"github.com/ava-labs/avalanchego/utils"
	"github.com/ava-labs/avalanchego/version"

	cjson "github.com/ava-labs/avalanchego/utils/json"
)

const (
	Name = "favoritesvm"
)

var (
	Version = &version.Semantic{
		Major: 1,
		Minor: 0,
		Patch: 0,
	}

	errNoPendingTxs = errors.New("there is no transaction to build a block with")

	_ block.ChainVM              = (*VM)(nil)
	_ block.HeightIndexedChainVM = (*VM)(nil)
)

// VM implements the snowman.VM interface
// Each block in this chain carries signed set-favorites transactions, and
// the chain state maps every user's derived address to their favorites.
type VM struct {
	// The context of this vm
	snowCtx   *snow.Context
	dbManager manager.Manager

	config Config
	log    log.Logger

	// programID scopes address derivation to this chain
	programID Address

	// State of this VM
	state State

	// ID of the preferred block
	preferred ids.ID

	// channel to send messages to the consensus engine
	toEngine chan<- common.Message

	// Issued txs that haven't been put into a block yet
	mempool *Mempool

	// Block ID --> Block
	// Each element is a block that passed verification but
	// hasn't yet been accepted/rejected
	verifiedBlocks map[ids.ID]*Block

	// Indicates that this VM has finised bootstrapping for the chain
	bootstrapped utils.Atomic[bool]

	peers   *peerTracker
	metrics *metrics
	limiter *rate.Limiter
}

// Initialize this vm
// [snowCtx] is this vm's context
// [dbManager] is the manager of this vm's database
// [toEngine] is used to notify the consensus engine that new blocks are
//
//	ready to be added to consensus
//
// The initial accounts are described by [genesisData]
func (vm *VM) Initialize(
	ctx context.Context,
	snowCtx *snow.Context,
	dbManager manager.Manager,
	genesisData []byte,
	_ []byte,
	configData []byte,
	toEngine chan<- common.Message,
	_ []*common.Fx,
	_ common.AppSender,
) error {
	config, err := ParseConfig(configData)
	if err != nil {
		return err
	}
	logger, err := newLogger(snowCtx.ChainID, config.LogLevel)
	if err != nil {
		return err
	}
	logger.Info("Initializing favorites VM", "version", Version)

	vm.snowCtx = snowCtx
	vm.dbManager = dbManager
	vm.config = config
	vm.log = logger
	vm.programID = ProgramID(snowCtx.ChainID)
	vm.toEngine = toEngine
	vm.verifiedBlocks = make(map[ids.ID]*Block)
	vm.peers = newPeerTracker()
	vm.limiter = rate.NewLimiter(rate.Limit(config.IssueRate), config.IssueBurst)

	registry := prometheus.NewRegistry()
	vm.metrics, err = newMetrics(registry)
	if err != nil {
		return fmt.Errorf("couldn't register metrics: %w", err)
	}

	// Create new state
	vm.state, err = NewState(vm.dbManager.Current().Database, vm, registry)
	if err != nil {
		return fmt.Errorf("couldn't create state: %w", err)
	}

	vm.mempool = NewMempool(config.MempoolSize, toEngine, vm.metrics)

	// Initialize genesis
	if err := vm.initGenesis(genesisData); err != nil {
		return err
	}

	// Get last accepted
	lastAccepted, err := vm.state.GetLastAccepted()
	if err != nil {
		return err
	}

	if err := snowCtx.Metrics.Register(registry); err != nil {
		return fmt.Errorf("couldn't expose metrics: %w", err)
	}

	logger.Info("initializing last accepted block", "id", lastAccepted, "programID", vm.programID)

	// Build off the most recently accepted block
	return vm.SetPreference(ctx, lastAccepted)
}

// Initializes Genesis if required
func (vm *VM) initGenesis(genesisData []byte) error {
	stateInitialized, err := vm.state.IsInitialized()
	if err != nil {
		return err
	}

	// if state is already initialized, skip init genesis.
	if stateInitialized {
		return nil
	}

	genesis, err := ParseGenesis(genesisData)
	if err != nil {
		return err
	}

	for _, account := range genesis.Accounts {
		if err := initAccount(vm.state, vm.programID, account.User, account.Favorites()); err != nil {
			return fmt.Errorf("error while writing genesis account: %w", err)
		}
	}

	// Create the genesis block
	// Timestamp of genesis block is 0. It has no parent.
	genesisBlock, err := vm.NewBlock(ids.Empty, 0, nil, time.Unix(0, 0))
	if err != nil {
		vm.log.Error("error while creating genesis block", "err", err)
		return err
	}

	// Put genesis block to state
	genesisBlock.SetStatus(choices.Accepted)
	if err := vm.state.PutBlock(genesisBlock); err != nil {
		vm.log.Error("error while saving genesis block", "err", err)
		return err
	}

	// Accept the genesis block
	if err := vm.state.SetLastAccepted(genesisBlock.ID()); err != nil {
		return fmt.Errorf("error accepting genesis block: %w", err)
	}

	// Mark this vm's state as initialized, so we can skip initGenesis in further restarts
	if err := vm.state.SetInitialized(); err != nil {
		return fmt.Errorf("error while setting db to initialized: %w", err)
	}

	// Flush VM's database to underlying db
	return vm.state.Commit()
}

// CreateHandlers returns a map where:
// Keys: The path extension for this blockchain's API
// Values: The handler for the API
func (vm *VM) CreateHandlers(_ context.Context) (map[string]*common.HTTPHandler, error) {
	server := rpc.NewServer()
	server.RegisterCodec(cjson.NewCodec(), "application/json")
	server.RegisterCodec(cjson.NewCodec(), "application/json;charset=UTF-8")
	if err := server.RegisterService(&Service{vm: vm}, Name); err != nil {
		return nil, err
	}

	return map[string]*common.HTTPHandler{
		"/rpc": {
			LockOptions: common.WriteLock,
			Handler:     server,
		},
	}, nil
}

// CreateStaticHandlers returns a map where:
// Keys: The path extension for this VM's static API
// Values: The handler for that static API
func (vm *VM) CreateStaticHandlers(_ context.Context) (map[string]*common.HTTPHandler, error) {
	server := rpc.NewServer()
	server.RegisterCodec(cjson.NewCodec(), "application/json")
	server.RegisterCodec(cjson.NewCodec(), "application/json;charset=UTF-8")
	if err := server.RegisterService(&StaticService{}, Name); err != nil {
		return nil, err
	}

	return map[string]*common.HTTPHandler{
		"": {
			LockOptions: common.NoLock,
			Handler:     server,
		},
	}, nil
}

// HealthCheck reports the chain's view of itself.
func (vm *VM) HealthCheck(_ context.Context) (interface{}, error) {
	lastAccepted, err := vm.state.GetLastAccepted()
	if err != nil {
		return nil, err
	}
	blk, err := vm.getBlock(lastAccepted)
	if err != nil {
		return nil, err
	}
	return map[string]interface{}{
		"bootstrapped":       vm.bootstrapped.Get(),
		"lastAcceptedHeight": blk.Height(),
		"mempoolSize":        vm.mempool.Len(),
		"peers":              vm.peers.Len(),
	}, nil
}

// BuildBlock returns a block that this vm wants to add to consensus
func (vm *VM) BuildBlock(_ context.Context) (snowman.Block, error) {
	if vm.mempool.Len() == 0 { // There is no block to be built
		return nil, errNoPendingTxs
	}

	// Gets Preferred Block
	preferredBlock, err := vm.getBlock(vm.preferred)
	if err != nil {
		return nil, fmt.Errorf("couldn't get preferred block: %w", err)
	}
	parentDB, err := preferredBlock.stateDB()
	if err != nil {
		return nil, fmt.Errorf("couldn't get preferred state: %w", err)
	}

	// Txs that don't apply on the preferred state are dropped
	state := NewFavoritesState(versiondb.New(parentDB))
	// The chain config can only lower the protocol's cap
	txs := make([]*Tx, 0, vm.config.MaxBlockTxs)
	for len(txs) < vm.config.MaxBlockTxs {
		tx, ok := vm.mempool.Pop()
		if !ok {
			break
		}
		if err := tx.SyntacticVerify(); err != nil {
			vm.log.Debug("dropping invalid tx", "txID", tx.ID(), "err", err)
			continue
		}
		if err := tx.Execute(state, vm.programID, discardLogger); err != nil {
			vm.log.Debug("dropping unexecutable tx", "txID", tx.ID(), "err", err)
			continue
		}
		txs = append(txs, tx)
	}

	// Notify consensus engine that there are more pending txs for blocks
	// (if that is the case) when done building this block
	defer vm.mempool.NotifyBlockReady()

	if len(txs) == 0 {
		return nil, errNoPendingTxs
	}

	timestamp := time.Now()
	if parentTime := preferredBlock.Timestamp(); timestamp.Before(parentTime) {
		timestamp = parentTime
	}

	// Build the block with preferred height
	newBlock, err := vm.NewBlock(vm.preferred, preferredBlock.Height()+1, txs, timestamp)
	if err != nil {
		for _, tx := range txs {
			_ = vm.mempool.Add(tx)
		}
		return nil, fmt.Errorf("couldn't build block: %w", err)
	}
	// The block's txs return to the mempool if it fails verification or is
	// rejected. A block the engine drops without deciding takes its txs with
	// it, and their senders must reissue them.
	newBlock.built = true
	return newBlock, nil
}

// NewBlock returns a new Block where:
// - the block's parent is [parentID]
// - the block's transactions are [txs]
// - the block's timestamp is [timestamp]
func (vm *VM) NewBlock(parentID ids.ID, height uint64, txs []*Tx, timestamp time.Time) (*Block, error) {
	block := &Block{
		PrntID: parentID,
		Hght:   height,
		Tmstmp: timestamp.Unix(),
		Txs:    txs,
	}

	// Get the byte representation of the block
	blockBytes, err := Codec.Marshal(CodecVersion, block)
	if err != nil {
		return nil, err
	}

	// Initialize the block by providing it with its byte representation
	// and a reference to this VM
	block.Initialize(blockBytes, choices.Processing, vm)
	return block, nil
}

// GetBlock implements the snowman.ChainVM interface
func (vm *VM) GetBlock(_ context.Context, blkID ids.ID) (snowman.Block, error) {
	return vm.getBlock(blkID)
}

func (vm *VM) getBlock(blkID ids.ID) (*Block, error) {
	// If block is in memory, return it.
	if blk, exists := vm.verifiedBlocks[blkID]; exists {
		return blk, nil
	}

	return vm.state.GetBlock(blkID)
}

// ParseBlock parses [bytes] to a snowman.Block
// This function is used by the vm's state to unmarshal blocks saved in state
// and by the consensus layer when it receives the byte representation of a block
// from another node
func (vm *VM) ParseBlock(_ context.Context, bytes []byte) (snowman.Block, error) {
	block, err := ParseBlock(bytes)
	if err != nil {
		return nil, err
	}
	block.Initialize(bytes, choices.Processing, vm)

	// If we have seen this block before, return it with the most up-to-date
	// info
	if block, err := vm.getBlock(block.ID()); err == nil {
		return block, nil
	}

	// Return the block
	return block, nil
}

// SetPreference sets the block with ID [ID] as the preferred block
func (vm *VM) SetPreference(_ context.Context, id ids.ID) error {
	vm.preferred = id
	return nil
}

// LastAccepted returns the block most recently accepted
func (vm *VM) LastAccepted(_ context.Context) (ids.ID, error) {
	return vm.state.GetLastAccepted()
}

// VerifyHeightIndex always succeeds: the height index is written with every
// accepted block, genesis included.
func (vm *VM) VerifyHeightIndex(_ context.Context) error {
	return nil
}

// GetBlockIDAtHeight returns the ID of the accepted block at [height]
func (vm *VM) GetBlockIDAtHeight(_ context.Context, height uint64) (ids.ID, error) {
	return vm.state.GetBlockIDAtHeight(height)
}

// SetState sets this VM state according to given snow.State
func (vm *VM) SetState(_ context.Context, state snow.State) error {
	switch state {
	// Bootstrapping is called both on startup and after state sync.
	case snow.Bootstrapping:
		vm.bootstrapped.Set(false)
		return nil
	case snow.NormalOp:
		vm.bootstrapped.Set(true)
		return nil
	default:
		return snow.ErrUnknownState
	}
}

// Shutdown this vm
func (vm *VM) Shutdown(_ context.Context) error {
	if vm.state == nil {
		return nil
	}

	return vm.state.Close() // close versionDB
}

// Version returns the version of the VM.
func (vm *VM) Version(_ context.Context) (string, error) {
	return Version.String(), nil
}

// Connected records [nodeID] as a peer.
func (vm *VM) Connected(ctx context.Context, nodeID ids.NodeID, nodeVersion *version.Application) error {
	return vm.peers.Connected(ctx, nodeID, nodeVersion)
}

// Disconnected forgets [nodeID].
func (vm *VM) Disconnected(ctx context.Context, nodeID ids.NodeID) error {
	return vm.peers.Disconnected(ctx, nodeID)
}

// This VM doesn't (currently) have any app-specific messages
func (vm *VM) AppGossip(_ context.Context, _ ids.NodeID, _ []byte) error {
	return nil
}

// This VM doesn't (currently) have any app-specific messages
func (vm *VM) AppRequest(_ context.Context, _ ids.NodeID, _ uint32, _ time.Time, _ []byte) error {
	return nil
}

// This VM doesn't (currently) have any app-specific messages
func (vm *VM) AppResponse(_ context.Context, _ ids.NodeID, _ uint32, _ []byte) error {
	return nil
}

// This VM doesn't (currently) have any app-specific messages
func (vm *VM) AppRequestFailed(_ context.Context, _ ids.NodeID, _ uint32) error {
	return nil
}

// This VM doesn't (currently) have any cross-chain messages
func (vm *VM) CrossChainAppRequest(_ context.Context, _ ids.ID, _ uint32, _ time.Time, _ []byte) error {
	return nil
}

// This VM doesn't (currently) have any cross-chain messages
func (vm *VM) CrossChainAppRequestFailed(_ context.Context, _ ids.ID, _ uint32) error {
	return nil
}

// This VM doesn't (currently) have any cross-chain messages
func (vm *VM) CrossChainAppResponse(_ context.Context, _ ids.ID, _ uint32, _ []byte) error {
	return nil
}

// issueTx queues [tx] if it is well formed. Nonces are checked when a block
// is built, since earlier txs from the same user may still be queued.
func (vm *VM) issueTx(tx *Tx) error {
	if err := tx.SyntacticVerify(); err != nil {
		return err
	}
	return vm.mempool.Add(tx)
}
