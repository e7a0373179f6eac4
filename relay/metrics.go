// Copyright 2025 The udplex Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//   http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package relay

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// These are the metrics exposed by the relay.
var (
	PktsReceivedTotalMeta = MetricMeta{
		Name:   "udplex_pkts_received_total",
		Help:   "Total number of datagrams received.",
		Labels: []string{"addr"},
	}
	PktBytesReceivedTotalMeta = MetricMeta{
		Name:   "udplex_pkt_bytes_received_total",
		Help:   "Total datagram bytes received.",
		Labels: []string{"addr"},
	}
	PktsDiscardedTotalMeta = MetricMeta{
		Name:   "udplex_pkts_discarded_total",
		Help:   "Total number of received datagrams discarded by the address filter.",
		Labels: []string{"addr", "reason"},
	}
	ReceiveErrorsTotalMeta = MetricMeta{
		Name:   "udplex_receive_errors_total",
		Help:   "Total number of errors receiving datagrams.",
		Labels: []string{"addr"},
	}
	PktsSentTotalMeta = MetricMeta{
		Name:   "udplex_pkts_sent_total",
		Help:   "Total number of datagrams sent.",
		Labels: []string{"dest"},
	}
	PktBytesSentTotalMeta = MetricMeta{
		Name:   "udplex_pkt_bytes_sent_total",
		Help:   "Total datagram bytes sent.",
		Labels: []string{"dest"},
	}
	SendErrorsTotalMeta = MetricMeta{
		Name:   "udplex_send_errors_total",
		Help:   "Total number of errors sending datagrams.",
		Labels: []string{"dest"},
	}
	PktsLaggedTotalMeta = MetricMeta{
		Name:   "udplex_pkts_lagged_total",
		Help:   "Total number of lag episodes where a destination fell behind and lost datagrams.",
		Labels: []string{"dest"},
	}
	SubscribersMeta = MetricMeta{
		Name:   "udplex_bus_subscribers",
		Help:   "Number of destinations subscribed to the distribution bus.",
		Labels: []string{},
	}
)

type MetricMeta struct {
	Name   string
	Help   string
	Labels []string
}

func (mm *MetricMeta) NewCounterVec() *prometheus.CounterVec {
	return promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: mm.Name,
			Help: mm.Help,
		},
		mm.Labels,
	)
}

func (mm *MetricMeta) NewGaugeVec() *prometheus.GaugeVec {
	return promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: mm.Name,
			Help: mm.Help,
		},
		mm.Labels,
	)
}

// Metrics defines the metrics exported by the relay.
type Metrics struct {
	PktsReceivedTotal     *prometheus.CounterVec
	PktBytesReceivedTotal *prometheus.CounterVec
	PktsDiscardedTotal    *prometheus.CounterVec
	ReceiveErrorsTotal    *prometheus.CounterVec
	PktsSentTotal         *prometheus.CounterVec
	PktBytesSentTotal     *prometheus.CounterVec
	SendErrorsTotal       *prometheus.CounterVec
	PktsLaggedTotal       *prometheus.CounterVec
	Subscribers           *prometheus.GaugeVec
}

// NewMetrics initializes the metrics for the relay and registers them with
// the default registry.
func NewMetrics() *Metrics {
	return &Metrics{
		PktsReceivedTotal:     PktsReceivedTotalMeta.NewCounterVec(),
		PktBytesReceivedTotal: PktBytesReceivedTotalMeta.NewCounterVec(),
		PktsDiscardedTotal:    PktsDiscardedTotalMeta.NewCounterVec(),
		ReceiveErrorsTotal:    ReceiveErrorsTotalMeta.NewCounterVec(),
		PktsSentTotal:         PktsSentTotalMeta.NewCounterVec(),
		PktBytesSentTotal:     PktBytesSentTotalMeta.NewCounterVec(),
		SendErrorsTotal:       SendErrorsTotalMeta.NewCounterVec(),
		PktsLaggedTotal:       PktsLaggedTotalMeta.NewCounterVec(),
		Subscribers:           SubscribersMeta.NewGaugeVec(),
	}
}
