// Copyright 2025 AxonFlow
// SPDX-License-Identifier: BUSL-1.1
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package registry

import (
	"context"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"dynconn/connectors/base"
)

// ConnMember pairs a descriptor with the live pool built from it
type ConnMember struct {
	Info    base.ConnInfo
	BizPool base.BizPool
}

// ConnStore holds live pools keyed by generated identifiers, optionally
// mirrored to a Persistence collaborator.
//
// ConnStore is not safe for concurrent use. Callers serialize access through
// LockedStore (or an equivalent lock held for the whole operation).
type ConnStore struct {
	store       map[string]*ConnMember
	establisher base.Establisher
	persistence base.Persistence
	newKey      func() string
	logger      *log.Logger
}

// Option configures a ConnStore
type Option func(*ConnStore)

// WithLogger replaces the default stdout logger
func WithLogger(logger *log.Logger) Option {
	return func(s *ConnStore) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithKeyGenerator replaces uuid key minting
func WithKeyGenerator(fn func() string) Option {
	return func(s *ConnStore) {
		if fn != nil {
			s.newKey = fn
		}
	}
}

// NewConnStore creates an empty registry backed by est
func NewConnStore(est base.Establisher, opts ...Option) *ConnStore {
	s := &ConnStore{
		store:       make(map[string]*ConnMember),
		establisher: est,
		newKey:      func() string { return uuid.New().String() },
		logger:      log.New(os.Stdout, "[DYN_CONN] ", log.LstdFlags),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// AttachPersistence hydrates the registry from p and attaches it. It may be
// called once; later calls fail with an Exception and change nothing.
//
// The in-memory map is replaced by whatever establishes successfully. Loaded
// descriptors that fail to establish are reported together as one ConnFailed
// error, but p is attached regardless.
func (s *ConnStore) AttachPersistence(ctx context.Context, p base.Persistence) (resp *base.ConnStoreResponse, err error) {
	defer observe("attach_persistence", time.Now(), &err)

	if s.persistence != nil {
		return nil, base.NewException("persistence already attached")
	}
	if p == nil {
		return nil, base.NewException("persistence is nil")
	}

	infos, loadErr := p.LoadAll(ctx)
	if loadErr != nil {
		s.logger.Printf("Failed to load connections from persistence: %v", loadErr)
		return nil, base.AsConnStoreError(loadErr)
	}

	s.logger.Printf("Loading %d connection(s) from persistence...", len(infos))

	loaded := make(map[string]*ConnMember, len(infos))
	var failed []string
	for key, info := range infos {
		pool, estErr := s.establisher.Establish(ctx, info)
		if estErr != nil {
			s.logger.Printf("Failed to establish %s (%s): %v", key, info.Redacted(), estErr)
			failed = append(failed, info.ToURI())
			continue
		}
		loaded[key] = &ConnMember{Info: info, BizPool: pool}
	}

	for key, member := range s.store {
		s.logger.Printf("Releasing pre-bootstrap connection %s", key)
		member.BizPool.Disconnect(ctx)
	}

	s.store = loaded
	s.persistence = p
	registryLivePools.Set(float64(len(s.store)))

	if len(failed) > 0 {
		sort.Strings(failed)
		s.logger.Printf("Bootstrap finished with %d live and %d failed connection(s)", len(loaded), len(failed))
		return nil, base.NewConnFailed(strings.Join(failed, ", "))
	}

	s.logger.Printf("Bootstrap finished with %d live connection(s)", len(loaded))
	return base.StringResponse(fmt.Sprintf("Loaded %d conn(s) from persistence", len(loaded))), nil
}

// CreateConn establishes info under a freshly minted key
func (s *ConnStore) CreateConn(ctx context.Context, info base.ConnInfo) (resp *base.ConnStoreResponse, err error) {
	defer observe("create_conn", time.Now(), &err)

	key := s.newKey()
	if _, exists := s.store[key]; exists {
		return nil, base.NewException(fmt.Sprintf("generated key %q collides with a live connection", key))
	}
	return s.insert(ctx, key, info)
}

// CreateConnWithKey establishes info under a caller-chosen key. The key must
// not be live, and when the attached persistence implements
// base.KeyValidator it must accept the key before any pool is opened.
func (s *ConnStore) CreateConnWithKey(ctx context.Context, key string, info base.ConnInfo) (resp *base.ConnStoreResponse, err error) {
	defer observe("create_conn_with_key", time.Now(), &err)

	if strings.TrimSpace(key) == "" {
		return nil, base.NewException("key is required")
	}
	if _, exists := s.store[key]; exists {
		return nil, base.NewAlreadyExists(key)
	}
	if kv, ok := s.persistence.(base.KeyValidator); ok {
		if err := kv.ValidateKey(key); err != nil {
			s.logger.Printf("Rejected key %q before connecting: %v", key, err)
			return nil, base.AsConnStoreError(err)
		}
	}
	return s.insert(ctx, key, info)
}

func (s *ConnStore) insert(ctx context.Context, key string, info base.ConnInfo) (*base.ConnStoreResponse, error) {
	pool, err := s.establisher.Establish(ctx, info)
	if err != nil {
		s.logger.Printf("Failed to establish %s: %v", info.Redacted(), err)
		return nil, base.NewConnFailed(info.ToURI())
	}

	s.store[key] = &ConnMember{Info: info, BizPool: pool}
	registryLivePools.Set(float64(len(s.store)))
	s.logger.Printf("Created connection %s (%s)", key, info.Redacted())

	if s.persistence != nil {
		if err := s.persistence.Save(ctx, key, info); err != nil {
			s.logger.Printf("Connection %s is live but was not persisted: %v", key, err)
			return nil, base.AsConnStoreError(err)
		}
	}

	return base.StringResponse(fmt.Sprintf("New conn %q succeeded", key)), nil
}

// UpdateConn replaces the pool under key with one built from info. The new
// pool is established first; the old one is released only after that
// succeeds, so a failed update leaves the live entry untouched.
func (s *ConnStore) UpdateConn(ctx context.Context, key string, info base.ConnInfo) (resp *base.ConnStoreResponse, err error) {
	defer observe("update_conn", time.Now(), &err)

	old, exists := s.store[key]
	if !exists {
		return nil, base.NewNotFound(key)
	}

	pool, estErr := s.establisher.Establish(ctx, info)
	if estErr != nil {
		s.logger.Printf("Failed to establish replacement for %s (%s): %v", key, info.Redacted(), estErr)
		return nil, base.NewConnFailed(info.ToURI())
	}

	old.BizPool.Disconnect(ctx)
	s.store[key] = &ConnMember{Info: info, BizPool: pool}
	s.logger.Printf("Updated connection %s (%s)", key, info.Redacted())

	if s.persistence != nil {
		if err := s.persistence.Update(ctx, key, info); err != nil {
			s.logger.Printf("Connection %s was replaced but the update was not persisted: %v", key, err)
			return nil, base.AsConnStoreError(err)
		}
	}

	return base.StringResponse(fmt.Sprintf("Update conn %q succeeded", key)), nil
}

// DeleteConn releases the pool under key, removes it from persistence when
// attached, and finally drops the entry. The entry is dropped even when the
// persistence delete fails.
func (s *ConnStore) DeleteConn(ctx context.Context, key string) (resp *base.ConnStoreResponse, err error) {
	defer observe("delete_conn", time.Now(), &err)

	member, exists := s.store[key]
	if !exists {
		return nil, base.NewNotFound(key)
	}

	member.BizPool.Disconnect(ctx)

	var persistErr error
	if s.persistence != nil {
		persistErr = s.persistence.Delete(ctx, key)
	}

	delete(s.store, key)
	registryLivePools.Set(float64(len(s.store)))

	if persistErr != nil {
		s.logger.Printf("Connection %s was removed but not deleted from persistence: %v", key, persistErr)
		return nil, base.AsConnStoreError(persistErr)
	}

	s.logger.Printf("Deleted connection %s", key)
	return base.StringResponse(fmt.Sprintf("Disconnected from %q", key)), nil
}

// CheckKey reports whether key is live
func (s *ConnStore) CheckKey(key string) bool {
	_, exists := s.store[key]
	return exists
}

// ShowKeys returns the live keys, sorted
func (s *ConnStore) ShowKeys() []string {
	keys := make([]string, 0, len(s.store))
	for key := range s.store {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// ShowInfo maps every live key to its rendered URI
func (s *ConnStore) ShowInfo() *base.ConnStoreResponse {
	res := make(map[string]string, len(s.store))
	for key, member := range s.store {
		res[key] = member.Info.ToURI()
	}
	return base.MapResponse(res)
}

// GetConn returns the entry under key. The returned pool must not be retained
// beyond the locked operation that obtained it.
func (s *ConnStore) GetConn(key string) (*ConnMember, error) {
	member, exists := s.store[key]
	if !exists {
		return nil, base.NewNotFound(key)
	}
	return member, nil
}

// ListConn returns descriptors from persistence when attached, otherwise
// from the in-memory map. With persistence attached the result reflects the
// durable store, not necessarily which pools are live.
func (s *ConnStore) ListConn(ctx context.Context) (resp *base.ConnStoreResponse, err error) {
	defer observe("list_conn", time.Now(), &err)

	var source map[string]base.ConnInfo
	if s.persistence != nil {
		loaded, loadErr := s.persistence.LoadAll(ctx)
		if loadErr != nil {
			return nil, base.AsConnStoreError(loadErr)
		}
		source = loaded
	} else {
		source = make(map[string]base.ConnInfo, len(s.store))
		for key, member := range s.store {
			source[key] = member.Info
		}
	}

	keys := make([]string, 0, len(source))
	for key := range source {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	list := make([]base.ConnInfo, 0, len(keys))
	for _, key := range keys {
		list = append(list, source[key])
	}
	return base.ListResponse(list), nil
}

// CheckConnection probes info without touching the registry
func (s *ConnStore) CheckConnection(ctx context.Context, info base.ConnInfo) (resp *base.ConnStoreResponse, err error) {
	defer observe("check_connection", time.Now(), &err)

	ok, probeErr := s.establisher.Probe(ctx, info)
	if probeErr != nil {
		s.logger.Printf("Probe failed for %s: %v", info.Redacted(), probeErr)
		return nil, base.NewConnFailed(info.ToURI())
	}
	return base.BoolResponse(ok), nil
}

// Count returns the number of live entries
func (s *ConnStore) Count() int {
	return len(s.store)
}

// Persistence returns the attached collaborator, or nil
func (s *ConnStore) Persistence() base.Persistence {
	return s.persistence
}

// HealthCheck pings every live pool that supports it. Pools without a Ping
// method are reported healthy.
func (s *ConnStore) HealthCheck(ctx context.Context) map[string]*base.HealthStatus {
	results := make(map[string]*base.HealthStatus, len(s.store))

	for key, member := range s.store {
		status := &base.HealthStatus{Healthy: true, Timestamp: time.Now()}
		if pinger, ok := member.BizPool.(base.Pinger); ok {
			start := time.Now()
			if err := pinger.Ping(ctx); err != nil {
				s.logger.Printf("Health check failed for connection %s: %v", key, err)
				status.Healthy = false
				status.Error = err.Error()
			}
			status.Latency = time.Since(start)
		}
		results[key] = status
	}

	return results
}

// DisconnectAll releases every live pool and empties the map. Persistence is
// left as is, so the next bootstrap restores the same set.
func (s *ConnStore) DisconnectAll(ctx context.Context) {
	s.logger.Println("Disconnecting all connections...")

	for key, member := range s.store {
		member.BizPool.Disconnect(ctx)
		s.logger.Printf("Disconnected connection %s", key)
	}

	s.store = make(map[string]*ConnMember)
	registryLivePools.Set(0)

	s.logger.Println("All connections disconnected")
}
