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
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/go-sql-driver/mysql"

	"dynconn/connectors/base"
)

// DriverName is the database/sql driver registered by go-sql-driver/mysql
const DriverName = "mysql"

// Default I/O timeouts for pools built by this dialect
const (
	DefaultReadTimeout  = 30 * time.Second
	DefaultWriteTimeout = 30 * time.Second
)

// Dialect renders MySQL descriptors into go-sql-driver DSNs
type Dialect struct {
	// TLS names a registered TLS config ("true", "skip-verify", ...). Empty disables TLS.
	TLS string
}

// Driver returns base.Mysql
func (d Dialect) Driver() base.Driver {
	return base.Mysql
}

// SQLDriverName returns the registered database/sql driver name
func (d Dialect) SQLDriverName() string {
	return DriverName
}

// DSN builds a username:password@tcp(host:port)/database DSN for info
func (d Dialect) DSN(info base.ConnInfo, connectTimeout time.Duration) (string, error) {
	if info.Driver != base.Mysql {
		return "", fmt.Errorf("mysql dialect cannot render %s descriptor", info.Driver)
	}
	if err := info.Validate(); err != nil {
		return "", err
	}

	cfg := mysql.NewConfig()
	cfg.User = info.Username
	cfg.Passwd = info.Password
	cfg.Net = "tcp"
	cfg.Addr = net.JoinHostPort(info.Host, strconv.Itoa(int(info.Port)))
	cfg.DBName = info.Database
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.Collation = "utf8mb4_unicode_ci"
	cfg.Timeout = connectTimeout
	cfg.ReadTimeout = DefaultReadTimeout
	cfg.WriteTimeout = DefaultWriteTimeout
	cfg.MultiStatements = false
	cfg.InterpolateParams = false
	if d.TLS != "" {
		cfg.TLSConfig = d.TLS
	}

	return cfg.FormatDSN(), nil
}
