// Copyright 2025 Blink Labs Software
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package chain

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type producerMetrics struct {
	blocksProduced prometheus.Counter
	blockHeight    prometheus.Gauge
	blockTxCount   prometheus.Histogram
	txsFailed      prometheus.Counter
	txsSkipped     prometheus.Counter
}

func newProducerMetrics(promRegistry prometheus.Registerer) *producerMetrics {
	promautoFactory := promauto.With(promRegistry)
	return &producerMetrics{
		blocksProduced: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "agora_chain_blocks_produced_total",
			Help: "total blocks produced by this node",
		}),
		blockHeight: promautoFactory.NewGauge(prometheus.GaugeOpts{
			Name: "agora_chain_block_height",
			Help: "height of the chain tip",
		}),
		blockTxCount: promautoFactory.NewHistogram(prometheus.HistogramOpts{
			Name:    "agora_chain_block_tx_count",
			Help:    "number of transactions in produced blocks",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
		}),
		txsFailed: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "agora_chain_txs_failed_total",
			Help: "included transactions that broke a ledger rule",
		}),
		txsSkipped: promautoFactory.NewCounter(prometheus.CounterOpts{
			Name: "agora_chain_txs_skipped_total",
			Help: "pending transactions dropped because a receipt already exists",
		}),
	}
}
