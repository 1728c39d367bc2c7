// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1

package registry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"dynconn/connectors/base"
)

// eventLog records capability calls in order across fakes
type eventLog struct {
	mu     sync.Mutex
	events []string
}

func (l *eventLog) add(format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.events = append(l.events, fmt.Sprintf(format, args...))
}

func (l *eventLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.events...)
}

// mockPool implements base.BizPool and base.Pinger
type mockPool struct {
	id           int
	info         base.ConnInfo
	log          *eventLog
	disconnected int
	pingErr      error
}

func (p *mockPool) Disconnect(ctx context.Context) {
	p.disconnected++
	p.log.add("disconnect:%d", p.id)
}

func (p *mockPool) Ping(ctx context.Context) error {
	return p.pingErr
}

// mockEstablisher fails for any host listed in failHosts
type mockEstablisher struct {
	log       *eventLog
	failHosts map[string]bool
	probeErr  error
	nextID    int
	pools     []*mockPool
}

func newMockEstablisher(log *eventLog, failHosts ...string) *mockEstablisher {
	m := &mockEstablisher{log: log, failHosts: map[string]bool{}}
	for _, h := range failHosts {
		m.failHosts[h] = true
	}
	return m
}

func (m *mockEstablisher) Establish(ctx context.Context, info base.ConnInfo) (base.BizPool, error) {
	if m.failHosts[info.Host] {
		m.log.add("establish-failed:%s", info.Host)
		return nil, errors.New("connection refused")
	}
	m.nextID++
	pool := &mockPool{id: m.nextID, info: info, log: m.log}
	m.pools = append(m.pools, pool)
	m.log.add("establish:%d", pool.id)
	return pool, nil
}

func (m *mockEstablisher) Probe(ctx context.Context, info base.ConnInfo) (bool, error) {
	if m.probeErr != nil {
		return false, m.probeErr
	}
	return !m.failHosts[info.Host], nil
}

func (m *mockEstablisher) disconnects() int {
	total := 0
	for _, p := range m.pools {
		total += p.disconnected
	}
	return total
}

// mockPersistence is an in-memory base.Persistence with error injection
type mockPersistence struct {
	log       *eventLog
	data      map[string]base.ConnInfo
	loadAll   error
	saveErr   error
	updateErr error
	deleteErr error
	closed    bool
}

func newMockPersistence(log *eventLog, data map[string]base.ConnInfo) *mockPersistence {
	if data == nil {
		data = map[string]base.ConnInfo{}
	}
	return &mockPersistence{log: log, data: data}
}

func (p *mockPersistence) Load(ctx context.Context, key string) (base.ConnInfo, error) {
	info, ok := p.data[key]
	if !ok {
		return base.ConnInfo{}, base.NewNotFound(key)
	}
	return info, nil
}

func (p *mockPersistence) LoadAll(ctx context.Context) (map[string]base.ConnInfo, error) {
	if p.loadAll != nil {
		return nil, p.loadAll
	}
	out := make(map[string]base.ConnInfo, len(p.data))
	for k, v := range p.data {
		out[k] = v
	}
	return out, nil
}

func (p *mockPersistence) Save(ctx context.Context, key string, info base.ConnInfo) error {
	p.log.add("save:%s", key)
	if p.saveErr != nil {
		return p.saveErr
	}
	p.data[key] = info
	return nil
}

func (p *mockPersistence) Update(ctx context.Context, key string, info base.ConnInfo) error {
	p.log.add("update:%s", key)
	if p.updateErr != nil {
		return p.updateErr
	}
	p.data[key] = info
	return nil
}

func (p *mockPersistence) Delete(ctx context.Context, key string) error {
	p.log.add("delete:%s", key)
	if p.deleteErr != nil {
		return p.deleteErr
	}
	delete(p.data, key)
	return nil
}

func (p *mockPersistence) Close() error {
	p.closed = true
	return nil
}

// keyedPersistence only accepts keys with the given prefix
type keyedPersistence struct {
	*mockPersistence
	prefix string
}

func (p *keyedPersistence) ValidateKey(key string) error {
	if !strings.HasPrefix(key, p.prefix) {
		return base.NewException(fmt.Sprintf("key %q is not storable", key))
	}
	return nil
}

func quietLogger() *log.Logger {
	return log.New(io.Discard, "", 0)
}

func sequentialKeys(prefix string) func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("%s-%d", prefix, n)
	}
}

var (
	pgGood   = base.NewConnInfo(base.Postgres, "pg", "pw", "pg-host", 5432, "dev")
	pgOther  = base.NewConnInfo(base.Postgres, "pg", "pw", "pg-other", 5432, "dev")
	mysqlBad = base.NewConnInfo(base.Mysql, "user", "pass", "host", 3306, "db")
)
