// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package mysql

import (
	"net"
	"strconv"
	"testing"
)

func splitAddr(t *testing.T, addr string) (string, int32) {
	t.Helper()
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		t.Fatalf("bad addr %q: %v", addr, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		t.Fatalf("bad port %q: %v", portStr, err)
	}
	return host, int32(port)
}
