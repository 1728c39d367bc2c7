// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

/*
Package logger writes structured JSON log lines for the dynconn service layer.

Each line carries a timestamp (RFC3339Nano), level, component, instance id,
container name, the authenticated subject and request id when known, the
message and optional fields:

	log := logger.New("dynconn-server")
	log.SetLevel(logger.ParseLevel(os.Getenv("DYNCONN_LOG_LEVEL")))
	log.Info(subject, requestID, "Connection created", map[string]interface{}{
		"key": key,
	})

Entries below the configured level are dropped before marshaling. The
library packages under connectors/ keep their prefixed *log.Logger and do
not depend on this package.
*/
package logger
