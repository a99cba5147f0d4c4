// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package favoritesvm

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/snow/engine/common"
)

var (
	errMempoolFull = errors.New("mempool is full")
	errTxQueued    = errors.New("tx is already in the mempool")
)

// Mempool holds issued txs, in arrival order, until a block includes them.
type Mempool struct {
	lock sync.Mutex

	maxSize  int
	toEngine chan<- common.Message
	metrics  *metrics

	txs   []*Tx
	txIDs map[ids.ID]struct{}
}

func NewMempool(maxSize int, toEngine chan<- common.Message, metrics *metrics) *Mempool {
	return &Mempool{
		maxSize:  maxSize,
		toEngine: toEngine,
		metrics:  metrics,
		txIDs:    make(map[ids.ID]struct{}),
	}
}

// Add queues [tx] and tells the engine a block can be built.
func (m *Mempool) Add(tx *Tx) error {
	m.lock.Lock()
	defer m.lock.Unlock()

	txID := tx.ID()
	if _, ok := m.txIDs[txID]; ok {
		return fmt.Errorf("%w: %s", errTxQueued, txID)
	}
	if len(m.txs) >= m.maxSize {
		return fmt.Errorf("%w: can't add %s at size %d", errMempoolFull, txID, m.maxSize)
	}
	m.txs = append(m.txs, tx)
	m.txIDs[txID] = struct{}{}
	m.metrics.mempoolSize.Set(float64(len(m.txs)))

	m.notify()
	return nil
}

// Pop removes and returns the oldest tx.
func (m *Mempool) Pop() (*Tx, bool) {
	m.lock.Lock()
	defer m.lock.Unlock()

	if len(m.txs) == 0 {
		return nil, false
	}
	tx := m.txs[0]
	m.txs[0] = nil
	m.txs = m.txs[1:]
	delete(m.txIDs, tx.ID())
	m.metrics.mempoolSize.Set(float64(len(m.txs)))
	return tx, true
}

// Remove drops [txs] if they are still queued.
func (m *Mempool) Remove(txs []*Tx) {
	m.lock.Lock()
	defer m.lock.Unlock()

	removed := false
	for _, tx := range txs {
		if _, ok := m.txIDs[tx.ID()]; ok {
			delete(m.txIDs, tx.ID())
			removed = true
		}
	}
	if !removed {
		return
	}
	kept := m.txs[:0]
	for _, tx := range m.txs {
		if _, ok := m.txIDs[tx.ID()]; ok {
			kept = append(kept, tx)
		}
	}
	for i := len(kept); i < len(m.txs); i++ {
		m.txs[i] = nil
	}
	m.txs = kept
	m.metrics.mempoolSize.Set(float64(len(m.txs)))
}

// Has reports whether [txID] is queued.
func (m *Mempool) Has(txID ids.ID) bool {
	m.lock.Lock()
	defer m.lock.Unlock()

	_, ok := m.txIDs[txID]
	return ok
}

func (m *Mempool) Len() int {
	m.lock.Lock()
	defer m.lock.Unlock()

	return len(m.txs)
}

// NotifyBlockReady tells the engine there are txs left to build on.
func (m *Mempool) NotifyBlockReady() {
	m.lock.Lock()
	defer m.lock.Unlock()

	if len(m.txs) > 0 {
		m.notify()
	}
}

func (m *Mempool) notify() {
	select {
	case m.toEngine <- common.PendingTxs:
	default:
	}
}
