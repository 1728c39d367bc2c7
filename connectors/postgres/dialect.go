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

package postgres

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"dynconn/connectors/base"
)

// DriverName is the database/sql driver registered by lib/pq
const DriverName = "postgres"

// DefaultSSLMode is used when Dialect.SSLMode is empty
const DefaultSSLMode = "disable"

// Dialect renders PostgreSQL descriptors into lib/pq connection strings
type Dialect struct {
	// SSLMode is passed through as the sslmode parameter
	SSLMode string
}

// Driver returns base.Postgres
func (d Dialect) Driver() base.Driver {
	return base.Postgres
}

// SQLDriverName returns the registered database/sql driver name
func (d Dialect) SQLDriverName() string {
	return DriverName
}

// DSN builds a postgres:// URL for info. Credentials are escaped, so
// passwords containing '@' or '/' survive the round trip, unlike the
// display form returned by ConnInfo.ToURI.
func (d Dialect) DSN(info base.ConnInfo, connectTimeout time.Duration) (string, error) {
	if info.Driver != base.Postgres {
		return "", fmt.Errorf("postgres dialect cannot render %s descriptor", info.Driver)
	}
	if err := info.Validate(); err != nil {
		return "", err
	}

	sslMode := d.SSLMode
	if sslMode == "" {
		sslMode = DefaultSSLMode
	}

	params := url.Values{}
	params.Set("sslmode", sslMode)
	if connectTimeout > 0 {
		secs := int(connectTimeout / time.Second)
		if secs < 1 {
			secs = 1
		}
		params.Set("connect_timeout", strconv.Itoa(secs))
	}

	u := url.URL{
		Scheme:   "postgres",
		Host:     net.JoinHostPort(info.Host, strconv.Itoa(int(info.Port))),
		Path:     "/" + info.Database,
		RawQuery: params.Encode(),
	}
	if info.Username != "" {
		u.User = url.UserPassword(info.Username, info.Password)
	}
	return u.String(), nil
}
