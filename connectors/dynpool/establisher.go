// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package dynpool

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"os"
	"time"

	"dynconn/connectors/base"
	"dynconn/connectors/mysql"
	"dynconn/connectors/postgres"
)

// Dialect renders descriptors of one driver into database/sql DSNs
type Dialect interface {
	Driver() base.Driver
	SQLDriverName() string
	DSN(info base.ConnInfo, connectTimeout time.Duration) (string, error)
}

// OpenFunc opens a database/sql pool. sql.Open by default.
type OpenFunc func(driverName, dsn string) (*sql.DB, error)

// Establisher builds DynPools for the closed set of supported drivers
type Establisher struct {
	dialects map[base.Driver]Dialect
	settings Settings
	open     OpenFunc
	logger   *log.Logger
}

// Option configures an Establisher
type Option func(*Establisher)

// WithDialect registers or replaces the dialect for d.Driver()
func WithDialect(d Dialect) Option {
	return func(e *Establisher) {
		e.dialects[d.Driver()] = d
	}
}

// WithOpener replaces sql.Open
func WithOpener(fn OpenFunc) Option {
	return func(e *Establisher) {
		if fn != nil {
			e.open = fn
		}
	}
}

// WithLogger replaces the default stdout logger
func WithLogger(logger *log.Logger) Option {
	return func(e *Establisher) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEstablisher returns an establisher with the PostgreSQL and MySQL
// dialects registered
func NewEstablisher(settings Settings, opts ...Option) *Establisher {
	e := &Establisher{
		dialects: map[base.Driver]Dialect{
			base.Postgres: postgres.Dialect{},
			base.Mysql:    mysql.Dialect{},
		},
		settings: settings,
		open:     sql.Open,
		logger:   log.New(os.Stdout, "[DYN_POOL] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Establish opens a pool for info and verifies it with a ping bounded by the
// connect timeout. The pool is closed again if the ping fails.
func (e *Establisher) Establish(ctx context.Context, info base.ConnInfo) (base.BizPool, error) {
	db, err := e.openVerified(ctx, info, "Establish")
	if err != nil {
		poolsEstablished.WithLabelValues(info.Driver.String(), "error").Inc()
		return nil, err
	}

	e.settings.apply(db)
	poolsEstablished.WithLabelValues(info.Driver.String(), "success").Inc()
	e.logger.Printf("Connected to %s (max_open=%d, max_idle=%d)",
		info.Redacted(), e.settings.MaxOpenConns, e.settings.MaxIdleConns)

	return &DynPool{
		driver: info.Driver,
		target: info.Redacted(),
		db:     db,
		logger: e.logger,
	}, nil
}

// Probe reports whether info is reachable without keeping a pool. An
// unreachable server yields (false, nil); only descriptors the establisher
// cannot render at all produce an error.
func (e *Establisher) Probe(ctx context.Context, info base.ConnInfo) (bool, error) {
	dialect, dsn, err := e.render(info, "Probe")
	if err != nil {
		return false, err
	}

	db, err := e.open(dialect.SQLDriverName(), dsn)
	if err != nil {
		probeResults.WithLabelValues(info.Driver.String(), "unreachable").Inc()
		e.logger.Printf("Probe of %s could not open: %v", info.Redacted(), err)
		return false, nil
	}
	defer func() { _ = db.Close() }()

	if err := e.ping(ctx, db); err != nil {
		probeResults.WithLabelValues(info.Driver.String(), "unreachable").Inc()
		e.logger.Printf("Probe of %s failed: %v", info.Redacted(), err)
		return false, nil
	}

	probeResults.WithLabelValues(info.Driver.String(), "reachable").Inc()
	return true, nil
}

func (e *Establisher) render(info base.ConnInfo, op string) (Dialect, string, error) {
	dialect, ok := e.dialects[info.Driver]
	if !ok {
		return nil, "", base.NewConnectorError(info.Redacted(), op,
			fmt.Sprintf("no dialect registered for driver %s", info.Driver), nil)
	}
	dsn, err := dialect.DSN(info, e.settings.ConnectTimeout)
	if err != nil {
		return nil, "", base.NewConnectorError(info.Redacted(), op, "failed to build DSN", err)
	}
	return dialect, dsn, nil
}

func (e *Establisher) openVerified(ctx context.Context, info base.ConnInfo, op string) (*sql.DB, error) {
	dialect, dsn, err := e.render(info, op)
	if err != nil {
		return nil, err
	}

	db, err := e.open(dialect.SQLDriverName(), dsn)
	if err != nil {
		return nil, base.NewConnectorError(info.Redacted(), op, "failed to open connection", err)
	}

	if err := e.ping(ctx, db); err != nil {
		_ = db.Close()
		return nil, base.NewConnectorError(info.Redacted(), op, "failed to ping database", err)
	}
	return db, nil
}

func (e *Establisher) ping(ctx context.Context, db *sql.DB) error {
	if e.settings.ConnectTimeout <= 0 {
		return db.PingContext(ctx)
	}
	pingCtx, cancel := context.WithTimeout(ctx, e.settings.ConnectTimeout)
	defer cancel()
	return db.PingContext(pingCtx)
}
