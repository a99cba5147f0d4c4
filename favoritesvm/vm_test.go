// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package favoritesvm

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ava-labs/avalanchego/database/manager"
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/snow"
	"github.com/ava-labs/avalanchego/snow/choices"
	"github.com/ava-labs/avalanchego/snow/engine/common"
	"github.com/ava-labs/avalanchego/version"
)

var blockchainID = ids.ID{1, 2, 3}

func newTestVM(genesisBytes, configBytes []byte) (*VM, *snow.Context, chan common.Message, error) {
	dbManager := manager.NewMemDB(&version.Semantic{Major: 1})
	return newTestVMWithDB(dbManager, genesisBytes, configBytes)
}

func newTestVMWithDB(dbManager manager.Manager, genesisBytes, configBytes []byte) (*VM, *snow.Context, chan common.Message, error) {
	msgChan := make(chan common.Message, 1)
	vm := &VM{}
	snowCtx := snow.DefaultContextTest()
	snowCtx.ChainID = blockchainID
	err := vm.Initialize(context.Background(), snowCtx, dbManager, genesisBytes, nil, configBytes, msgChan, nil, nil)
	return vm, snowCtx, msgChan, err
}

func testGenesis(t *testing.T, accounts ...GenesisAccount) []byte {
	genesisBytes, err := json.Marshal(Genesis{Accounts: accounts})
	require.NoError(t, err)
	return genesisBytes
}

// buildAndAccept builds a block from the mempool on top of the preferred
// block, verifies and accepts it, and prefers it.
func buildAndAccept(t *testing.T, vm *VM) *Block {
	require := require.New(t)
	ctx := context.Background()

	snowmanBlock, err := vm.BuildBlock(ctx)
	require.NoError(err)
	require.NoError(snowmanBlock.Verify(ctx))
	require.NoError(snowmanBlock.Accept(ctx))
	require.NoError(vm.SetPreference(ctx, snowmanBlock.ID()))
	return snowmanBlock.(*Block)
}

func getAccount(t *testing.T, vm *VM, user PublicKey) *Account {
	addr, _, err := DeriveFavoritesAddress(vm.programID, user)
	require.NoError(t, err)
	account, err := vm.state.GetAccount(addr)
	require.NoError(t, err)
	return account
}

// Assert that after initialization, the vm has the state we expect
func TestGenesis(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	_, alice := testKey(1)
	genesisFavorites := Favorites{Number: 3, Color: "red", Hobbies: []string{"chess"}}
	// Initialize the vm
	vm, _, _, err := newTestVM(testGenesis(t, GenesisAccount{
		User:    alice,
		Number:  genesisFavorites.Number,
		Color:   genesisFavorites.Color,
		Hobbies: genesisFavorites.Hobbies,
	}), nil)
	assert.NoError(err)
	// Verify that the db is initialized
	ok, err := vm.state.IsInitialized()
	assert.NoError(err)
	assert.True(ok)

	// Get lastAccepted
	lastAccepted, err := vm.LastAccepted(ctx)
	assert.NoError(err)
	assert.NotEqual(ids.Empty, lastAccepted)

	// Verify that getBlock returns the genesis block
	genesisBlock, err := vm.getBlock(lastAccepted)
	assert.NoError(err)

	// Verify that the genesis block has the data we expect
	assert.Equal(ids.Empty, genesisBlock.Parent())
	assert.Equal(uint64(0), genesisBlock.Height())
	assert.Empty(genesisBlock.Txs)
	assert.Equal(choices.Accepted, genesisBlock.Status())

	genesisID, err := vm.GetBlockIDAtHeight(ctx, 0)
	assert.NoError(err)
	assert.Equal(lastAccepted, genesisID)

	// Genesis accounts start at nonce 0
	account := getAccount(t, vm, alice)
	assert.Equal(alice, account.Owner)
	assert.Zero(account.Nonce)
	assert.True(genesisFavorites.Equal(&account.Favorites))
}

func TestInvalidGenesis(t *testing.T) {
	_, _, _, err := newTestVM(testGenesis(t, GenesisAccount{Color: "red"}), nil)
	assert.ErrorIs(t, err, errEmptyPublicKey)
}

func TestInvalidConfig(t *testing.T) {
	_, _, _, err := newTestVM(nil, []byte(`{"max-block-txs": 0}`))
	assert.ErrorIs(t, err, errInvalidMaxBlockTxs)

	_, _, _, err = newTestVM(nil, []byte(`{"log-level": "loud"}`))
	assert.Error(t, err)
}

func TestHappyPath(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	// Initialize the vm
	vm, snowCtx, msgChan, err := newTestVM(nil, nil)
	assert.NoError(err)

	lastAcceptedID, err := vm.LastAccepted(ctx)
	assert.NoError(err)
	genesisBlock, err := vm.getBlock(lastAcceptedID)
	assert.NoError(err)

	// in an actual execution, the engine would set the preference
	assert.NoError(vm.SetPreference(ctx, genesisBlock.ID()))

	key, user := testKey(1)
	first := Favorites{Number: 7, Color: "blue", Hobbies: []string{"skiing", "chess"}}
	tx1 := newSignedTx(t, key, 0, first)

	snowCtx.Lock.Lock()
	assert.NoError(vm.issueTx(tx1))
	snowCtx.Lock.Unlock()

	select { // assert there is a pending tx message to the engine
	case msg := <-msgChan:
		assert.Equal(common.PendingTxs, msg)
	default:
		assert.FailNow("should have been pendingTxs message on channel")
	}

	// build the block
	snowCtx.Lock.Lock()
	block2 := buildAndAccept(t, vm)

	lastAcceptedID, err = vm.LastAccepted(ctx)
	assert.NoError(err)
	assert.Equal(block2.ID(), lastAcceptedID)

	// Assert the block we accepted has the data we expect
	assert.Equal(genesisBlock.ID(), block2.Parent())
	assert.Equal(uint64(1), block2.Height())
	assert.Len(block2.Txs, 1)
	assert.Equal(tx1.ID(), block2.Txs[0].ID())
	assert.Zero(vm.mempool.Len())

	account := getAccount(t, vm, user)
	assert.Equal(uint64(1), account.Nonce)
	assert.True(first.Equal(&account.Favorites))

	// Overwrite the record
	second := Favorites{Number: 8, Color: "green"}
	tx2 := newSignedTx(t, key, 1, second)
	assert.NoError(vm.issueTx(tx2))
	snowCtx.Lock.Unlock()

	select { // verify there is a pending tx message to the engine
	case msg := <-msgChan:
		assert.Equal(common.PendingTxs, msg)
	default:
		assert.FailNow("should have been pendingTxs message on channel")
	}

	snowCtx.Lock.Lock()
	block3 := buildAndAccept(t, vm)
	assert.Equal(block2.ID(), block3.Parent())

	account = getAccount(t, vm, user)
	assert.Equal(uint64(2), account.Nonce)
	assert.True(second.Equal(&account.Favorites))

	// Next, check the blocks we added are there
	block2FromState, err := vm.getBlock(block2.ID())
	assert.NoError(err)
	assert.Equal(block2.ID(), block2FromState.ID())

	block3ID, err := vm.GetBlockIDAtHeight(ctx, 2)
	assert.NoError(err)
	assert.Equal(block3.ID(), block3ID)

	snowCtx.Lock.Unlock()
}

func TestReplayIsDropped(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	vm, _, _, err := newTestVM(nil, nil)
	assert.NoError(err)
	lastAccepted, err := vm.LastAccepted(ctx)
	assert.NoError(err)
	assert.NoError(vm.SetPreference(ctx, lastAccepted))

	key, _ := testKey(1)
	tx := newSignedTx(t, key, 0, Favorites{Number: 1})
	assert.NoError(vm.issueTx(tx))
	block := buildAndAccept(t, vm)

	// the same signed bytes can be queued again, but never built
	assert.NoError(vm.issueTx(tx))
	_, err = vm.BuildBlock(ctx)
	assert.ErrorIs(err, errNoPendingTxs)
	assert.Zero(vm.mempool.Len())

	// nor verified when a peer proposes them
	replay, err := vm.NewBlock(block.ID(), block.Height()+1, []*Tx{tx}, time.Now())
	assert.NoError(err)
	assert.ErrorIs(replay.Verify(ctx), errInvalidNonce)
}

func TestIssueTxRejectsInvalid(t *testing.T) {
	assert := assert.New(t)

	vm, _, _, err := newTestVM(nil, nil)
	assert.NoError(err)

	key, _ := testKey(1)
	tx := newSignedTx(t, key, 0, Favorites{Number: 1})
	tx.Unsigned.Number = 2
	assert.ErrorIs(vm.issueTx(tx), errInvalidSignature)
	assert.Zero(vm.mempool.Len())
}

func TestBuildBlockLimits(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	vm, _, _, err := newTestVM(nil, []byte(`{"max-block-txs": 2}`))
	assert.NoError(err)
	lastAccepted, err := vm.LastAccepted(ctx)
	assert.NoError(err)
	assert.NoError(vm.SetPreference(ctx, lastAccepted))

	_, err = vm.BuildBlock(ctx)
	assert.ErrorIs(err, errNoPendingTxs)

	for i := byte(1); i <= 3; i++ {
		key, _ := testKey(i)
		assert.NoError(vm.issueTx(newSignedTx(t, key, 0, Favorites{Number: uint64(i)})))
	}

	block := buildAndAccept(t, vm)
	assert.Len(block.Txs, 2)
	assert.Equal(1, vm.mempool.Len())

	block = buildAndAccept(t, vm)
	assert.Len(block.Txs, 1)

	// a peer's block above the local build cap is still valid
	var txs []*Tx
	for i := byte(4); i <= 6; i++ {
		key, _ := testKey(i)
		txs = append(txs, newSignedTx(t, key, 0, Favorites{}))
	}
	peerBlock, err := vm.NewBlock(block.ID(), block.Height()+1, txs, time.Now())
	assert.NoError(err)
	assert.NoError(peerBlock.Verify(ctx))

	// a block above the protocol cap is refused
	key, _ := testKey(7)
	bigTxs := make([]*Tx, 0, MaxBlockTxs+1)
	for nonce := uint64(0); nonce <= MaxBlockTxs; nonce++ {
		bigTxs = append(bigTxs, newSignedTx(t, key, nonce, Favorites{}))
	}
	big, err := vm.NewBlock(block.ID(), block.Height()+1, bigTxs, time.Now())
	assert.NoError(err)
	assert.ErrorIs(big.Verify(ctx), errTooManyTxs)
}

// Nodes with different build caps agree on the validity of a block
func TestVerifyIgnoresLocalBuildCap(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	builder, _, _, err := newTestVM(nil, []byte(`{"max-block-txs": 10}`))
	require.NoError(err)
	verifier, _, _, err := newTestVM(nil, []byte(`{"max-block-txs": 2}`))
	require.NoError(err)

	genesisID, err := builder.LastAccepted(ctx)
	require.NoError(err)
	verifierGenesisID, err := verifier.LastAccepted(ctx)
	require.NoError(err)
	require.Equal(genesisID, verifierGenesisID)

	for i := byte(1); i <= 5; i++ {
		key, _ := testKey(i)
		require.NoError(builder.issueTx(newSignedTx(t, key, 0, Favorites{Number: uint64(i)})))
	}
	require.NoError(builder.SetPreference(ctx, genesisID))
	built, err := builder.BuildBlock(ctx)
	require.NoError(err)
	require.Len(built.(*Block).Txs, 5)
	require.NoError(built.Verify(ctx))

	parsed, err := verifier.ParseBlock(ctx, built.Bytes())
	require.NoError(err)
	require.Equal(built.ID(), parsed.ID())
	require.NoError(parsed.Verify(ctx))
	require.NoError(parsed.Accept(ctx))

	_, user := testKey(5)
	require.Equal(uint64(5), getAccount(t, verifier, user).Favorites.Number)
}

// A block this node built that can no longer be verified hands its txs back
func TestBuiltBlockFailureRequeues(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	vm, _, _, err := newTestVM(nil, nil)
	require.NoError(err)
	genesisID, err := vm.LastAccepted(ctx)
	require.NoError(err)
	require.NoError(vm.SetPreference(ctx, genesisID))

	aliceKey, _ := testKey(1)
	bobKey, _ := testKey(2)
	aliceTx := newSignedTx(t, aliceKey, 0, Favorites{Number: 1})
	bobTx := newSignedTx(t, bobKey, 0, Favorites{Number: 2})

	require.NoError(vm.issueTx(aliceTx))
	built, err := vm.BuildBlock(ctx)
	require.NoError(err)
	require.False(vm.mempool.Has(aliceTx.ID()))

	// a competing child of genesis is accepted first
	competing, err := vm.NewBlock(genesisID, 1, []*Tx{bobTx}, time.Now())
	require.NoError(err)
	require.NoError(competing.Verify(ctx))
	require.NoError(competing.Accept(ctx))

	require.ErrorIs(built.Verify(ctx), errStaleParent)
	require.True(vm.mempool.Has(aliceTx.ID()))

	// a block from a peer doesn't touch the mempool when it fails
	carolKey, _ := testKey(3)
	carolTx := newSignedTx(t, carolKey, 0, Favorites{Number: 3})
	peerBlock, err := vm.NewBlock(genesisID, 1, []*Tx{carolTx}, time.Now())
	require.NoError(err)
	require.ErrorIs(peerBlock.Verify(ctx), errStaleParent)
	require.False(vm.mempool.Has(carolTx.ID()))
}

func TestVerifyBlock(t *testing.T) {
	ctx := context.Background()
	vm, _, _, err := newTestVM(nil, nil)
	require.NoError(t, err)
	genesisID, err := vm.LastAccepted(ctx)
	require.NoError(t, err)
	genesis, err := vm.getBlock(genesisID)
	require.NoError(t, err)

	key, _ := testKey(1)
	tx := newSignedTx(t, key, 0, Favorites{Number: 1})
	forged := newSignedTx(t, key, 0, Favorites{Number: 2})
	forged.Unsigned.Number = 3

	tests := []struct {
		name      string
		height    uint64
		timestamp time.Time
		txs       []*Tx
		err       error
	}{
		{
			name:      "wrong height",
			height:    2,
			timestamp: time.Now(),
			txs:       []*Tx{tx},
			err:       errWrongHeight,
		},
		{
			name:      "too far in the future",
			height:    1,
			timestamp: time.Now().Add(2 * futureBlockLimit),
			txs:       []*Tx{tx},
			err:       errTimestampTooLate,
		},
		{
			name:      "empty",
			height:    1,
			timestamp: time.Now(),
			err:       errNoTxs,
		},
		{
			name:      "duplicate tx",
			height:    1,
			timestamp: time.Now(),
			txs:       []*Tx{tx, tx},
			err:       errDuplicateTx,
		},
		{
			name:      "bad signature",
			height:    1,
			timestamp: time.Now(),
			txs:       []*Tx{forged},
			err:       errInvalidSignature,
		},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			block, err := vm.NewBlock(genesis.ID(), test.height, test.txs, test.timestamp)
			require.NoError(t, err)
			require.ErrorIs(t, block.Verify(ctx), test.err)
		})
	}

	// a block can't be older than its parent
	require.NoError(t, vm.SetPreference(ctx, genesisID))
	require.NoError(t, vm.issueTx(tx))
	child := buildAndAccept(t, vm)
	tx2 := newSignedTx(t, key, 1, Favorites{Number: 2})
	early, err := vm.NewBlock(child.ID(), child.Height()+1, []*Tx{tx2}, child.Timestamp().Add(-time.Second))
	require.NoError(t, err)
	require.ErrorIs(t, early.Verify(ctx), errTimestampTooEarly)
}

func TestProcessingChain(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	vm, _, _, err := newTestVM(nil, nil)
	require.NoError(err)
	genesisID, err := vm.LastAccepted(ctx)
	require.NoError(err)

	key, user := testKey(1)
	tx1 := newSignedTx(t, key, 0, Favorites{Number: 1})
	tx2 := newSignedTx(t, key, 1, Favorites{Number: 2})

	block1, err := vm.NewBlock(genesisID, 1, []*Tx{tx1}, time.Now())
	require.NoError(err)
	require.NoError(block1.Verify(ctx))

	// the child sees its processing parent's writes
	block2, err := vm.NewBlock(block1.ID(), 2, []*Tx{tx2}, time.Now())
	require.NoError(err)
	require.NoError(block2.Verify(ctx))

	// but nothing is committed before accept
	addr, _, err := DeriveFavoritesAddress(vm.programID, user)
	require.NoError(err)
	_, err = vm.state.GetAccount(addr)
	require.Error(err)

	require.NoError(block1.Accept(ctx))
	require.NoError(block2.Accept(ctx))

	account := getAccount(t, vm, user)
	require.Equal(uint64(2), account.Nonce)
	require.Equal(uint64(2), account.Favorites.Number)

	lastAccepted, err := vm.LastAccepted(ctx)
	require.NoError(err)
	require.Equal(block2.ID(), lastAccepted)

	// a block built on a stale accepted parent can't be verified
	tx3 := newSignedTx(t, key, 2, Favorites{Number: 3})
	stale, err := vm.NewBlock(genesisID, 1, []*Tx{tx3}, time.Now())
	require.NoError(err)
	require.ErrorIs(stale.Verify(ctx), errStaleParent)
}

func TestRejectRequeues(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	vm, _, _, err := newTestVM(nil, nil)
	require.NoError(err)
	genesisID, err := vm.LastAccepted(ctx)
	require.NoError(err)

	aliceKey, alice := testKey(1)
	bobKey, bob := testKey(2)
	aliceTx := newSignedTx(t, aliceKey, 0, Favorites{Number: 1})
	bobTx := newSignedTx(t, bobKey, 0, Favorites{Number: 2})

	// two competing children of genesis
	accepted, err := vm.NewBlock(genesisID, 1, []*Tx{aliceTx}, time.Now())
	require.NoError(err)
	rejected, err := vm.NewBlock(genesisID, 1, []*Tx{bobTx}, time.Now())
	require.NoError(err)
	require.NoError(accepted.Verify(ctx))
	require.NoError(rejected.Verify(ctx))

	require.NoError(accepted.Accept(ctx))
	require.NoError(rejected.Reject(ctx))
	require.Equal(choices.Rejected, rejected.Status())
	require.True(vm.mempool.Has(bobTx.ID()))

	// bob's tx makes it into the next block
	require.NoError(vm.SetPreference(ctx, accepted.ID()))
	block := buildAndAccept(t, vm)
	require.Len(block.Txs, 1)
	require.Equal(bobTx.ID(), block.Txs[0].ID())

	require.Equal(uint64(1), getAccount(t, vm, alice).Nonce)
	require.Equal(uint64(1), getAccount(t, vm, bob).Nonce)
}

func TestParseBlock(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	vm, _, _, err := newTestVM(nil, nil)
	require.NoError(err)
	genesisID, err := vm.LastAccepted(ctx)
	require.NoError(err)

	key, _ := testKey(1)
	tx := newSignedTx(t, key, 0, Favorites{Number: 1, Hobbies: []string{"a"}})
	block, err := vm.NewBlock(genesisID, 1, []*Tx{tx}, time.Now())
	require.NoError(err)

	parsed, err := vm.ParseBlock(ctx, block.Bytes())
	require.NoError(err)
	require.Equal(block.ID(), parsed.ID())
	require.Equal(choices.Processing, parsed.Status())

	parsedBlock := parsed.(*Block)
	require.Len(parsedBlock.Txs, 1)
	require.Equal(tx.ID(), parsedBlock.Txs[0].ID())
	require.NoError(parsedBlock.Verify(ctx))

	// known blocks come back with their current status
	genesis, err := vm.getBlock(genesisID)
	require.NoError(err)
	parsedGenesis, err := vm.ParseBlock(ctx, genesis.Bytes())
	require.NoError(err)
	require.Equal(choices.Accepted, parsedGenesis.Status())
}

func TestRestart(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	dbManager := manager.NewMemDB(&version.Semantic{Major: 1})
	vm, _, _, err := newTestVMWithDB(dbManager, nil, nil)
	require.NoError(err)
	genesisID, err := vm.LastAccepted(ctx)
	require.NoError(err)
	require.NoError(vm.SetPreference(ctx, genesisID))

	key, user := testKey(1)
	require.NoError(vm.issueTx(newSignedTx(t, key, 0, Favorites{Number: 5, Color: "gold"})))
	block := buildAndAccept(t, vm)
	require.NoError(vm.Shutdown(ctx))

	restarted, _, _, err := newTestVMWithDB(dbManager, nil, nil)
	require.NoError(err)
	lastAccepted, err := restarted.LastAccepted(ctx)
	require.NoError(err)
	require.Equal(block.ID(), lastAccepted)

	account := getAccount(t, restarted, user)
	require.Equal(uint64(1), account.Nonce)
	require.Equal("gold", account.Favorites.Color)

	// the next write continues from the stored nonce
	require.NoError(restarted.issueTx(newSignedTx(t, key, 1, Favorites{Number: 6})))
	buildAndAccept(t, restarted)
	require.Equal(uint64(2), getAccount(t, restarted, user).Nonce)
}

func TestHealthCheck(t *testing.T) {
	require := require.New(t)
	ctx := context.Background()

	vm, _, _, err := newTestVM(nil, nil)
	require.NoError(err)

	nodeID := ids.NodeID{1}
	require.NoError(vm.Connected(ctx, nodeID, version.CurrentApp))

	health, err := vm.HealthCheck(ctx)
	require.NoError(err)
	details := health.(map[string]interface{})
	require.Equal(uint64(0), details["lastAcceptedHeight"])
	require.Equal(1, details["peers"])
	require.Equal(0, details["mempoolSize"])

	require.NoError(vm.Disconnected(ctx, nodeID))
	require.Zero(vm.peers.Len())
}

func TestSetState(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	// Initialize the vm
	vm, _, _, err := newTestVM(nil, nil)
	assert.NoError(err)
	// bootstrapping
	assert.NoError(vm.SetState(ctx, snow.Bootstrapping))
	assert.False(vm.bootstrapped.Get())
	// bootstrapped
	assert.NoError(vm.SetState(ctx, snow.NormalOp))
	assert.True(vm.bootstrapped.Get())
	// unknown
	unknownState := snow.State(99)
	assert.ErrorIs(vm.SetState(ctx, unknownState), snow.ErrUnknownState)
}
