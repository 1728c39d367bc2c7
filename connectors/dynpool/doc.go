// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package dynpool builds database/sql pools from connection descriptors.
//
// Establisher implements base.Establisher: it picks the Dialect registered for
// the descriptor's driver, renders a DSN, opens a pool and pings it before
// handing back a DynPool. DynPool implements base.BizPool and base.Pinger, so
// the registry can release and health check it without knowing the driver.
package dynpool
