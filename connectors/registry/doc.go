// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

// Package registry holds live database pools under opaque string keys.
//
// A ConnStore maps each key to a ConnMember: the descriptor the caller
// supplied and the pool an Establisher built from it. Mutations establish
// first and touch the map only on success, so a failed create or update never
// leaves a half-built entry behind. When a Persistence collaborator is
// attached, every mutation is mirrored to it after the in-memory change; a
// persistence failure is reported but not rolled back.
//
// ConnStore itself does no locking. Share one instance through LockedStore:
//
//	locked := registry.NewLockedStore(registry.NewConnStore(est))
//	err := locked.Do(ctx, func(s *registry.ConnStore) error {
//	    resp, err := s.CreateConn(ctx, info)
//	    ...
//	})
//
// The lock is held across establishment and persistence I/O. Waiting callers
// give up when their context ends; a caller that already holds the lock runs
// to completion.
package registry
