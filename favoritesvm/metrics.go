// Copyright (C) 2019-2023, Ava Labs, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package favoritesvm

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ava-labs/avalanchego/utils/wrappers"
)

type metrics struct {
	blocksAccepted prometheus.Counter
	txsAccepted    prometheus.Counter
	mempoolSize    prometheus.Gauge
}

func newMetrics(registerer prometheus.Registerer) (*metrics, error) {
	m := &metrics{
		blocksAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "blocks_accepted",
			Help: "Number of blocks accepted",
		}),
		txsAccepted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "txs_accepted",
			Help: "Number of set-favorites transactions accepted",
		}),
		mempoolSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "mempool_size",
			Help: "Number of transactions waiting in the mempool",
		}),
	}
	errs := wrappers.Errs{}
	errs.Add(
		registerer.Register(m.blocksAccepted),
		registerer.Register(m.txsAccepted),
		registerer.Register(m.mempoolSize),
	)
	return m, errs.Err
}
