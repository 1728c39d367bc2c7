// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package registry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for registry operations
var (
	registryOperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dynconn_registry_operations_total",
			Help: "Total number of registry operations",
		},
		[]string{"operation", "status"},
	)

	registryOperationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "dynconn_registry_operation_duration_seconds",
			Help:    "Duration of registry operations, including establishment and persistence",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation"},
	)

	registryLivePools = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dynconn_registry_live_pools",
			Help: "Number of live pools held by the registry",
		},
	)

	registryLockWait = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dynconn_registry_lock_wait_seconds",
			Help:    "Time spent waiting for the registry lock",
			Buckets: prometheus.DefBuckets,
		},
	)

	registryLockAbandoned = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dynconn_registry_lock_abandoned_total",
			Help: "Callers that gave up while waiting for the registry lock",
		},
	)
)

// observe records the outcome of one operation. err is read after the
// operation returns, so callers pass a pointer to their named error.
func observe(operation string, start time.Time, err *error) {
	status := "success"
	if err != nil && *err != nil {
		status = "error"
	}
	registryOperationsTotal.WithLabelValues(operation, status).Inc()
	registryOperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
