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

package mysql

import (
	"context"
	"database/sql"
	"os"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dynconn/connectors/base"
)

func TestDialect_Metadata(t *testing.T) {
	d := Dialect{}
	assert.Equal(t, base.Mysql, d.Driver())
	assert.Equal(t, "mysql", d.SQLDriverName())
}

func TestDialect_DSN(t *testing.T) {
	info := base.NewConnInfo(base.Mysql, "user", "p@ss", "db.internal", 3307, "orders")

	dsn, err := Dialect{}.DSN(info, 5*time.Second)
	require.NoError(t, err)

	cfg, err := mysql.ParseDSN(dsn)
	require.NoError(t, err)
	assert.Equal(t, "user", cfg.User)
	assert.Equal(t, "p@ss", cfg.Passwd)
	assert.Equal(t, "tcp", cfg.Net)
	assert.Equal(t, "db.internal:3307", cfg.Addr)
	assert.Equal(t, "orders", cfg.DBName)
	assert.True(t, cfg.ParseTime)
	assert.Equal(t, time.UTC, cfg.Loc)
	assert.Equal(t, 5*time.Second, cfg.Timeout)
	assert.Equal(t, DefaultReadTimeout, cfg.ReadTimeout)
	assert.False(t, cfg.MultiStatements)
}

func TestDialect_DSN_TLS(t *testing.T) {
	info := base.NewConnInfo(base.Mysql, "user", "pass", "host", 3306, "db")

	dsn, err := Dialect{TLS: "skip-verify"}.DSN(info, 0)
	require.NoError(t, err)
	assert.Contains(t, dsn, "tls=skip-verify")
}

func TestDialect_DSN_Rejects(t *testing.T) {
	tests := []struct {
		name string
		info base.ConnInfo
	}{
		{"postgres descriptor", base.NewConnInfo(base.Postgres, "u", "p", "h", 5432, "d")},
		{"missing database", base.NewConnInfo(base.Mysql, "u", "p", "h", 3306, "")},
		{"missing host", base.NewConnInfo(base.Mysql, "u", "p", "", 3306, "d")},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Dialect{}.DSN(tt.info, 0)
			assert.Error(t, err)
		})
	}
}

// Set MYSQL_TEST_DSN to run against a real server
func TestDialect_Integration(t *testing.T) {
	raw := os.Getenv("MYSQL_TEST_DSN")
	if raw == "" {
		t.Skip("MYSQL_TEST_DSN not set")
	}
	parsed, err := mysql.ParseDSN(raw)
	require.NoError(t, err)

	host, port := splitAddr(t, parsed.Addr)
	info := base.NewConnInfo(base.Mysql, parsed.User, parsed.Passwd, host, port, parsed.DBName)

	dsn, err := Dialect{}.DSN(info, 2*time.Second)
	require.NoError(t, err)

	db, err := sql.Open(DriverName, dsn)
	require.NoError(t, err)
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		t.Skipf("MySQL not available: %v", err)
	}
}
