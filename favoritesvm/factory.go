// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package favoritesvm

import (
	"github.com/ava-labs/avalanchego/ids"
	"github.com/ava-labs/avalanchego/utils/logging"
	"github.com/ava-labs/avalanchego/vms"
)

// ID is a unique identifier for this VM: its name, zero padded
var (
	ID             = ids.ID{'f', 'a', 'v', 'o', 'r', 'i', 't', 'e', 's', 'v', 'm'}
	_  vms.Factory = &Factory{}
)

// Factory ...
type Factory struct{}

// New ...
func (*Factory) New(logging.Logger) (interface{}, error) { return &VM{}, nil }
