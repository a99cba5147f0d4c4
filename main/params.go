// (c) 2019-2020, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package main

import (
	"flag"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	versionKey  = "version"
	vmIDKey     = "vmID"
	logLevelKey = "log-level"
)

func buildFlagSet() *flag.FlagSet {
	fs := flag.NewFlagSet("favoritesvm", flag.ContinueOnError)

	fs.Bool(versionKey, false, "If true, prints name@version and quit")
	fs.Bool(vmIDKey, false, "If true, prints vmID and quit")
	fs.String(logLevelKey, "info", "Level of the plugin's logs written to stderr")

	return fs
}

// getViper returns the viper environment for the plugin binary
func getViper() (*viper.Viper, error) {
	v := viper.New()

	fs := buildFlagSet()
	pflag.CommandLine.AddGoFlagSet(fs)
	pflag.Parse()
	if err := v.BindPFlags(pflag.CommandLine); err != nil {
		return nil, err
	}

	return v, nil
}
