// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

/*
Package postgres turns PostgreSQL connection descriptors into lib/pq
connection strings.

# Usage

	d := postgres.Dialect{SSLMode: "require"}
	dsn, err := d.DSN(info, 10*time.Second)
	db, err := sql.Open(d.SQLDriverName(), dsn)

The dialect is registered with dynpool.Establisher by default. Importing this
package also registers the lib/pq driver with database/sql.
*/
package postgres
