// Copyright 2025 AxonFlow
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

package storage

import (
	"context"
	"errors"
	"fmt"
	"log"
	"regexp"
	"strings"
	"time"

	"github.com/gocql/gocql" // Cassandra/Scylla driver

	"dynconn/connectors/base"
)

// Cassandra defaults
const (
	DefaultCassandraTable   = "conn_info"
	defaultCassandraTimeout = 5 * time.Second
)

var cqlIdentifier = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// CassandraOptions configures a CassandraStorage. The keyspace must exist;
// the table is created on first use.
type CassandraOptions struct {
	Hosts       []string
	Keyspace    string
	Table       string
	Consistency string
	Username    string
	Password    string
	Timeout     time.Duration
	NumConns    int
}

func (o CassandraOptions) validate() error {
	if len(o.Hosts) == 0 {
		return fmt.Errorf("cassandra storage needs at least one host")
	}
	for _, h := range o.Hosts {
		if strings.TrimSpace(h) == "" {
			return fmt.Errorf("cassandra storage has an empty host")
		}
	}
	if !cqlIdentifier.MatchString(o.Keyspace) {
		return fmt.Errorf("invalid cassandra keyspace %q", o.Keyspace)
	}
	if !cqlIdentifier.MatchString(o.Table) {
		return fmt.Errorf("invalid cassandra table %q", o.Table)
	}
	return nil
}

// CassandraStorage keeps one row per descriptor, keyed by the registry key
type CassandraStorage struct {
	session *gocql.Session
	table   string
	logger  *log.Logger
}

// NewCassandraStorage opens a session against opts.Hosts and ensures the
// conn_info table exists in opts.Keyspace
func NewCassandraStorage(ctx context.Context, opts CassandraOptions) (*CassandraStorage, error) {
	if opts.Table == "" {
		opts.Table = DefaultCassandraTable
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}

	cluster := newCassandraCluster(opts)
	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create cassandra session: %w", err)
	}

	s := &CassandraStorage{
		session: session,
		table:   opts.Table,
		logger:  log.New(log.Writer(), "[CONN_STORAGE] ", log.LstdFlags),
	}
	if err := s.initSchema(ctx); err != nil {
		session.Close()
		return nil, err
	}

	s.logger.Printf("Cassandra conn_info storage initialized (keyspace=%s, table=%s, consistency=%s)",
		opts.Keyspace, opts.Table, cluster.Consistency)
	return s, nil
}

func newCassandraCluster(opts CassandraOptions) *gocql.ClusterConfig {
	cluster := gocql.NewCluster(opts.Hosts...)
	cluster.Keyspace = opts.Keyspace
	cluster.Consistency = parseConsistency(opts.Consistency)

	cluster.Timeout = defaultCassandraTimeout
	if opts.Timeout > 0 {
		cluster.Timeout = opts.Timeout
	}
	cluster.ConnectTimeout = cluster.Timeout

	if opts.Username != "" {
		cluster.Authenticator = gocql.PasswordAuthenticator{
			Username: opts.Username,
			Password: opts.Password,
		}
	}

	cluster.NumConns = 2
	if opts.NumConns > 0 {
		cluster.NumConns = opts.NumConns
	}
	return cluster
}

func (s *CassandraStorage) initSchema(ctx context.Context) error {
	stmt := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id text PRIMARY KEY,
		driver text,
		username text,
		password text,
		host text,
		port int,
		"database" text
	)`, s.table)
	if err := s.session.Query(stmt).WithContext(ctx).Exec(); err != nil {
		return fmt.Errorf("failed to create cassandra table %s: %w", s.table, err)
	}
	return nil
}

func (s *CassandraStorage) columns() string {
	return `id, driver, username, password, host, port, "database"`
}

// Load returns the descriptor stored under key
func (s *CassandraStorage) Load(ctx context.Context, key string) (base.ConnInfo, error) {
	var row connInfoDoc
	err := s.session.Query(
		fmt.Sprintf(`SELECT %s FROM %s WHERE id = ?`, s.columns(), s.table), key,
	).WithContext(ctx).Scan(&row.ID, &row.Driver, &row.Username, &row.Password, &row.Host, &row.Port, &row.Database)
	if errors.Is(err, gocql.ErrNotFound) {
		return base.ConnInfo{}, base.NewNotFound(key)
	}
	if err != nil {
		return base.ConnInfo{}, base.NewConnFailed(fmt.Sprintf("failed to load conn_info %s: %v", key, err))
	}

	info, err := row.toInfo()
	if err != nil {
		return base.ConnInfo{}, base.NewException(err.Error())
	}
	return info, nil
}

// LoadAll scans the table, skipping rows with an unknown driver
func (s *CassandraStorage) LoadAll(ctx context.Context) (map[string]base.ConnInfo, error) {
	iter := s.session.Query(fmt.Sprintf(`SELECT %s FROM %s`, s.columns(), s.table)).WithContext(ctx).Iter()

	out := make(map[string]base.ConnInfo)
	var row connInfoDoc
	for iter.Scan(&row.ID, &row.Driver, &row.Username, &row.Password, &row.Host, &row.Port, &row.Database) {
		info, err := row.toInfo()
		if err != nil {
			s.logger.Printf("Skipping unreadable row: %v", err)
			continue
		}
		out[row.ID] = info
	}
	if err := iter.Close(); err != nil {
		return nil, base.NewConnFailed(fmt.Sprintf("failed to load conn_info: %v", err))
	}
	return out, nil
}

// Save inserts a new row under key with a lightweight transaction, so an
// existing row is never overwritten
func (s *CassandraStorage) Save(ctx context.Context, key string, info base.ConnInfo) error {
	doc := docFromInfo(key, info)
	existing := make(map[string]interface{})
	applied, err := s.session.Query(
		fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?) IF NOT EXISTS`, s.table, s.columns()),
		doc.ID, doc.Driver, doc.Username, doc.Password, doc.Host, doc.Port, doc.Database,
	).WithContext(ctx).MapScanCAS(existing)
	if err != nil {
		return base.NewConnFailed(fmt.Sprintf("failed to save conn_info %s: %v", key, err))
	}
	if !applied {
		return base.NewConnFailed(fmt.Sprintf("failed to save conn_info %s: already stored", key))
	}

	s.logger.Printf("Saved conn_info %s (%s)", key, info.Redacted())
	return nil
}

// Update writes the row under key. CQL inserts are upserts, so a missing
// row is created.
func (s *CassandraStorage) Update(ctx context.Context, key string, info base.ConnInfo) error {
	doc := docFromInfo(key, info)
	err := s.session.Query(
		fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?)`, s.table, s.columns()),
		doc.ID, doc.Driver, doc.Username, doc.Password, doc.Host, doc.Port, doc.Database,
	).WithContext(ctx).Exec()
	if err != nil {
		return base.NewConnFailed(fmt.Sprintf("failed to update conn_info %s: %v", key, err))
	}
	s.logger.Printf("Updated conn_info %s (%s)", key, info.Redacted())
	return nil
}

// Delete removes the row under key; a missing row is not an error
func (s *CassandraStorage) Delete(ctx context.Context, key string) error {
	err := s.session.Query(fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, s.table), key).WithContext(ctx).Exec()
	if err != nil {
		return base.NewConnFailed(fmt.Sprintf("failed to delete conn_info %s: %v", key, err))
	}
	s.logger.Printf("Deleted conn_info %s", key)
	return nil
}

// Close closes the session
func (s *CassandraStorage) Close() error {
	if s.session != nil {
		s.session.Close()
	}
	return nil
}

// parseConsistency converts a level name to gocql.Consistency, defaulting to QUORUM
func parseConsistency(level string) gocql.Consistency {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "ANY":
		return gocql.Any
	case "ONE":
		return gocql.One
	case "TWO":
		return gocql.Two
	case "THREE":
		return gocql.Three
	case "ALL":
		return gocql.All
	case "LOCAL_QUORUM":
		return gocql.LocalQuorum
	case "EACH_QUORUM":
		return gocql.EachQuorum
	case "LOCAL_ONE":
		return gocql.LocalOne
	default:
		return gocql.Quorum
	}
}
