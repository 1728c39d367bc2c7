// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package registry

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"
)

// LockedStore serializes every operation on one ConnStore. The lock is held
// for the whole operation, including establishment and persistence I/O, so a
// slow handshake blocks every other caller until it completes.
type LockedStore struct {
	sem   *semaphore.Weighted
	store *ConnStore
}

// NewLockedStore wraps store
func NewLockedStore(store *ConnStore) *LockedStore {
	return &LockedStore{
		sem:   semaphore.NewWeighted(1),
		store: store,
	}
}

// Do runs fn with exclusive access to the store. Waiting for the lock honours
// ctx; once acquired, fn runs to completion and the lock is released after it
// returns.
func (l *LockedStore) Do(ctx context.Context, fn func(s *ConnStore) error) error {
	start := time.Now()
	if err := l.sem.Acquire(ctx, 1); err != nil {
		registryLockAbandoned.Inc()
		return fmt.Errorf("gave up waiting for registry lock: %w", err)
	}
	registryLockWait.Observe(time.Since(start).Seconds())
	defer l.sem.Release(1)

	return fn(l.store)
}
