// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package dynpool

import (
	"context"
	"database/sql"
	"log"
	"time"

	"dynconn/connectors/base"
)

// DynPool is a live database/sql pool tagged with the driver that built it
type DynPool struct {
	driver base.Driver
	target string
	db     *sql.DB
	logger *log.Logger
}

// Driver reports which driver the pool speaks
func (p *DynPool) Driver() base.Driver {
	return p.driver
}

// DB exposes the underlying pool. Callers must not close it directly.
func (p *DynPool) DB() *sql.DB {
	return p.db
}

// Disconnect closes the pool. Close errors are logged and swallowed since the
// registry drops the entry either way.
func (p *DynPool) Disconnect(ctx context.Context) {
	if p.db == nil {
		return
	}
	if err := p.db.Close(); err != nil {
		p.logger.Printf("Error closing %s pool for %s: %v", p.driver, p.target, err)
		return
	}
	poolsClosed.WithLabelValues(p.driver.String()).Inc()
	p.logger.Printf("Closed %s pool for %s", p.driver, p.target)
}

// Ping verifies that a connection can still be checked out
func (p *DynPool) Ping(ctx context.Context) error {
	if p.db == nil {
		return base.NewConnectorError(p.target, "Ping", "pool not connected", nil)
	}
	return p.db.PingContext(ctx)
}

// Stats returns database/sql pool statistics
func (p *DynPool) Stats() sql.DBStats {
	return p.db.Stats()
}

// Settings tunes every pool the establisher builds
type Settings struct {
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
	ConnectTimeout  time.Duration
}

// DefaultSettings mirrors the pool sizing used for dynamically added databases
func DefaultSettings() Settings {
	return Settings{
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: 30 * time.Minute,
		ConnMaxIdleTime: 5 * time.Minute,
		ConnectTimeout:  10 * time.Second,
	}
}

func (s Settings) apply(db *sql.DB) {
	db.SetMaxOpenConns(s.MaxOpenConns)
	db.SetMaxIdleConns(s.MaxIdleConns)
	db.SetConnMaxLifetime(s.ConnMaxLifetime)
	db.SetConnMaxIdleTime(s.ConnMaxIdleTime)
}
