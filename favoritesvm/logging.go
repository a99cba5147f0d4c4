// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package favoritesvm

import (
	"fmt"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/avalanchego/ids"
)

// discardLogger swallows the instruction logs emitted while a block is only
// being verified or built; they are emitted once, on accept.
var discardLogger = newDiscardLogger()

func newDiscardLogger() log.Logger {
	l := log.New()
	l.SetHandler(log.DiscardHandler())
	return l
}

// newLogger returns a child of the root logger scoped to [chainID]. An
// empty [level] keeps whatever filtering the root handler applies.
func newLogger(chainID ids.ID, level string) (log.Logger, error) {
	l := log.New("vm", Name, "chain", chainID)
	if level == "" {
		return l, nil
	}
	lvl, err := log.LvlFromString(level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	l.SetHandler(log.LvlFilterHandler(lvl, log.Root().GetHandler()))
	return l, nil
}
