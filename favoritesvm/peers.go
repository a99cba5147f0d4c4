// (c) 2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package favoritesvm

import (
	"context"
	"sync"

	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/snow/validators"
	"github.com/ava-labs/avalanchego/version"
)

var _ validators.Connector = (*peerTracker)(nil)

// peerTracker remembers which nodes are connected and what they run.
type peerTracker struct {
	lock  sync.RWMutex
	peers map[ids.NodeID]*version.Application
}

func newPeerTracker() *peerTracker {
	return &peerTracker{
		peers: make(map[ids.NodeID]*version.Application),
	}
}

func (p *peerTracker) Connected(_ context.Context, nodeID ids.NodeID, nodeVersion *version.Application) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	p.peers[nodeID] = nodeVersion
	return nil
}

func (p *peerTracker) Disconnected(_ context.Context, nodeID ids.NodeID) error {
	p.lock.Lock()
	defer p.lock.Unlock()

	delete(p.peers, nodeID)
	return nil
}

func (p *peerTracker) Len() int {
	p.lock.RLock()
	defer p.lock.RUnlock()

	return len(p.peers)
}

// Version returns the version [nodeID] reported when it connected.
func (p *peerTracker) Version(nodeID ids.NodeID) (*version.Application, bool) {
	p.lock.RLock()
	defer p.lock.RUnlock()

	v, ok := p.peers[nodeID]
	return v, ok
}
