// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package favoritesvm

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/spf13/viper"
)

const (
	mempoolSizeKey = "mempool-size"
	maxBlockTxsKey = "max-block-txs"
	issueRateKey   = "issue-rate"
	issueBurstKey  = "issue-burst"
	logLevelKey    = "log-level"

	defaultMempoolSize = 1024
	defaultMaxBlockTxs = MaxBlockTxs
	defaultIssueRate   = 100
	defaultIssueBurst  = 200
)

var (
	errInvalidMempoolSize = errors.New("mempool size must be positive")
	errInvalidMaxBlockTxs = errors.New("max block txs must be positive")
	errMaxBlockTxsTooHigh = fmt.Errorf("max block txs can't exceed %d", MaxBlockTxs)
	errInvalidIssueRate   = errors.New("issue rate must be positive")
	errInvalidIssueBurst  = errors.New("issue burst must be positive")
)

// Config is the chain config of a favorites chain.
type Config struct {
	// MempoolSize bounds the number of pending txs.
	MempoolSize int `mapstructure:"mempool-size"`
	// MaxBlockTxs bounds the number of txs this node packs into a block it
	// builds. It never affects which blocks are valid.
	MaxBlockTxs int `mapstructure:"max-block-txs"`
	// IssueRate is the sustained number of txs per second accepted over the API.
	IssueRate float64 `mapstructure:"issue-rate"`
	// IssueBurst is the number of txs the API accepts in a burst.
	IssueBurst int `mapstructure:"issue-burst"`
	// LogLevel filters the chain's logs. Empty inherits the process level.
	LogLevel string `mapstructure:"log-level"`
}

// ParseConfig reads [configBytes], which are JSON unless they look like
// YAML, on top of the defaults.
func ParseConfig(configBytes []byte) (Config, error) {
	v := viper.New()
	v.SetDefault(mempoolSizeKey, defaultMempoolSize)
	v.SetDefault(maxBlockTxsKey, defaultMaxBlockTxs)
	v.SetDefault(issueRateKey, defaultIssueRate)
	v.SetDefault(issueBurstKey, defaultIssueBurst)
	v.SetDefault(logLevelKey, "")

	if trimmed := bytes.TrimSpace(configBytes); len(trimmed) > 0 {
		if trimmed[0] == '{' {
			v.SetConfigType("json")
		} else {
			v.SetConfigType("yaml")
		}
		if err := v.ReadConfig(bytes.NewReader(trimmed)); err != nil {
			return Config{}, fmt.Errorf("couldn't read chain config: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return Config{}, fmt.Errorf("couldn't decode chain config: %w", err)
	}
	return config, config.Verify()
}

// Verify returns an error if any bound is unusable.
func (c Config) Verify() error {
	switch {
	case c.MempoolSize <= 0:
		return errInvalidMempoolSize
	case c.MaxBlockTxs <= 0:
		return errInvalidMaxBlockTxs
	case c.MaxBlockTxs > MaxBlockTxs:
		return errMaxBlockTxsTooHigh
	case c.IssueRate <= 0:
		return errInvalidIssueRate
	case c.IssueBurst <= 0:
		return errInvalidIssueBurst
	default:
		return nil
	}
}
