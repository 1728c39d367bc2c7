// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package storage

import (
	"context"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS conn_info (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		description TEXT,
		driver TEXT NOT NULL,
		username TEXT NOT NULL,
		password TEXT NOT NULL,
		host TEXT NOT NULL,
		port INTEGER NOT NULL,
		"database" TEXT NOT NULL
	)`,
}

// SQLiteStorage persists descriptors in a local SQLite file. Any non-empty
// key is accepted.
type SQLiteStorage struct {
	sqlStorage
}

// NewSQLiteStorage opens (or creates) the database at path
func NewSQLiteStorage(ctx context.Context, path string) (*SQLiteStorage, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// sqlite serializes writers; one connection avoids SQLITE_BUSY
	db.SetMaxOpenConns(1)

	s := &SQLiteStorage{sqlStorage{
		db:     db,
		logger: log.New(log.Writer(), "[CONN_STORAGE] ", log.LstdFlags),
	}}
	if err := s.initSchema(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, err
	}
	s.logger.Printf("SQLite conn_info storage initialized at %s", path)
	return s, nil
}
