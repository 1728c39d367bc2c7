// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

/*
Package config loads the dynconn service configuration.

Values come from three layers, later ones winning: built-in defaults, an
optional YAML file named by DYNCONN_CONFIG_FILE, and DYNCONN_* environment
variables. The YAML text may reference the environment:

	persistence:
	  url: ${DYNCONN_PG_URL:-sqlite:///var/lib/dynconn/conn.db}
	pool:
	  max_open: 20
	  connect_timeout: 5s

When persistence.secret_arn is set the persistence URL is read from AWS
Secrets Manager instead; see ResolvePersistenceURL.
*/
package config
