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

package ledger

import (
	"github.com/blinklabs-io/agora/database/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type ledgerMetrics struct {
	txApplied     *prometheus.CounterVec
	txFailed      *prometheus.CounterVec
	votesCast     prometheus.Counter
	proposalCount prometheus.Gauge
	badgeCount    prometheus.Gauge
	totalStaked   prometheus.Gauge
	totalSupply   prometheus.Gauge
	rewardsPool   prometheus.Gauge
}

func (m *ledgerMetrics) init(promRegistry prometheus.Registerer) {
	promautoFactory := promauto.With(promRegistry)
	m.txApplied = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agora_ledger_tx_applied_total",
			Help: "total number of transactions applied to the ledger",
		},
		[]string{"kind"},
	)
	m.txFailed = promautoFactory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "agora_ledger_tx_failed_total",
			Help: "total number of transactions rejected by a ledger rule",
		},
		[]string{"kind", "code"},
	)
	m.votesCast = promautoFactory.NewCounter(prometheus.CounterOpts{
		Name: "agora_ledger_votes_cast_total",
		Help: "total number of votes cast",
	})
	m.proposalCount = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "agora_ledger_proposals",
		Help: "number of proposals created",
	})
	m.badgeCount = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "agora_ledger_badges_minted",
		Help: "number of badges minted",
	})
	m.totalStaked = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "agora_ledger_staked_total",
		Help: "token units currently staked",
	})
	m.totalSupply = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "agora_ledger_token_supply",
		Help: "token units in existence",
	})
	m.rewardsPool = promautoFactory.NewGauge(prometheus.GaugeOpts{
		Name: "agora_ledger_rewards_pool",
		Help: "token units held in the rewards pool",
	})
}

func (m *ledgerMetrics) update(state *models.LedgerState) {
	m.proposalCount.Set(float64(state.ProposalCount))
	m.badgeCount.Set(float64(state.BadgeCount))
	m.totalStaked.Set(float64(state.TotalStaked))
	m.totalSupply.Set(float64(state.TotalSupply))
	m.rewardsPool.Set(float64(state.RewardsPool))
}
