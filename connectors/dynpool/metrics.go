// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package dynpool

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	poolsEstablished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dynconn_pool_establish_total",
			Help: "Pool establishment attempts by driver and outcome",
		},
		[]string{"driver", "status"},
	)

	poolsClosed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dynconn_pool_closed_total",
			Help: "Pools closed by driver",
		},
		[]string{"driver"},
	)

	probeResults = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dynconn_pool_probe_total",
			Help: "Connectivity probes by driver and result",
		},
		[]string{"driver", "result"},
	)
)
