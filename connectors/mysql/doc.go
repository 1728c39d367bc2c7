// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package mysql renders MySQL connection descriptors into go-sql-driver DSNs
// with UTC time parsing, utf8mb4 collation and multi-statements disabled.
package mysql
