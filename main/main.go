// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"context"
	"fmt"
	"os"

	log "github.com/inconshreveable/log15"

	"github.com/ava-labs/avalanchego/vms/rpcchainvm"

	"github.com/ava-labs/favoritesvm/favoritesvm"
)

func main() {
	v, err := getViper()
	if err != nil {
		fmt.Printf("couldn't get config: %s\n", err)
		os.Exit(1)
	}
	// Print name@version and exit
	if v.GetBool(versionKey) {
		fmt.Printf("%s@%s\n", favoritesvm.Name, favoritesvm.Version)
		os.Exit(0)
	}
	// Print VM ID and exit
	if v.GetBool(vmIDKey) {
		fmt.Println(favoritesvm.ID)
		os.Exit(0)
	}

	lvl, err := log.LvlFromString(v.GetString(logLevelKey))
	if err != nil {
		fmt.Printf("couldn't parse log level: %s\n", err)
		os.Exit(1)
	}
	log.Root().SetHandler(log.LvlFilterHandler(lvl, log.StreamHandler(os.Stderr, log.TerminalFormat())))

	err = rpcchainvm.Serve(context.Background(), &favoritesvm.VM{})
	if err != nil {
		fmt.Printf("serve returned an error: %s\n", err)
		os.Exit(1)
	}
}
