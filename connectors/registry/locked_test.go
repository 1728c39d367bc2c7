// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package registry

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLockedStore_Do(t *testing.T) {
	locked := NewLockedStore(newTestStore(newMockEstablisher(&eventLog{})))

	err := locked.Do(context.Background(), func(s *ConnStore) error {
		_, err := s.CreateConn(context.Background(), pgGood)
		return err
	})
	require.NoError(t, err)

	var count int
	_ = locked.Do(context.Background(), func(s *ConnStore) error {
		count = s.Count()
		return nil
	})
	assert.Equal(t, 1, count)
}

func TestLockedStore_PropagatesError(t *testing.T) {
	locked := NewLockedStore(newTestStore(newMockEstablisher(&eventLog{})))
	want := errors.New("boom")

	err := locked.Do(context.Background(), func(s *ConnStore) error { return want })
	assert.Same(t, want, err)
}

func TestLockedStore_CancelledWhileWaiting(t *testing.T) {
	locked := NewLockedStore(newTestStore(newMockEstablisher(&eventLog{})))

	held := make(chan struct{})
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = locked.Do(context.Background(), func(s *ConnStore) error {
			close(held)
			<-release
			return nil
		})
	}()
	<-held

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	ran := false
	err := locked.Do(ctx, func(s *ConnStore) error {
		ran = true
		return nil
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.False(t, ran)

	close(release)
	<-done

	// the lock is usable again once the holder returns
	assert.NoError(t, locked.Do(context.Background(), func(s *ConnStore) error { return nil }))
}

func TestLockedStore_Serializes(t *testing.T) {
	store := NewConnStore(newMockEstablisher(&eventLog{}), WithLogger(quietLogger()))
	locked := NewLockedStore(store)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		inside  int
		maxSeen int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = locked.Do(context.Background(), func(s *ConnStore) error {
				mu.Lock()
				inside++
				if inside > maxSeen {
					maxSeen = inside
				}
				mu.Unlock()

				_, err := s.CreateConn(context.Background(), pgGood)

				mu.Lock()
				inside--
				mu.Unlock()
				return err
			})
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxSeen)
	assert.Equal(t, 20, store.Count())
}
