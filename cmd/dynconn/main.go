// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package main is the entry point for the DynConn service.
//
// DynConn keeps a registry of live Postgres and MySQL connection pools that
// clients create, replace and remove at runtime over HTTP, optionally mirrored
// to a durable store so the set survives restarts.
//
// Usage:
//
//	./dynconn
//
// Environment Variables:
//
//	DYNCONN_PORT - HTTP server port (default: 8080)
//	DYNCONN_PERSISTENCE_URL - descriptor store location (optional)
//	DYNCONN_JWT_SECRET - HS256 secret for bearer tokens (optional)
//	DYNCONN_CONFIG_FILE - YAML file with defaults (optional)
package main

import (
	"dynconn/server"
)

func main() {
	server.Run()
}
