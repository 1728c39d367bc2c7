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

package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"dynconn/connectors/base"
	"dynconn/connectors/registry"
)

const maxBodyBytes = 1 << 20

// errLockTimeout marks a request that gave up while queued for the registry
var errLockTimeout = errors.New("registry busy")

type registryOp func(ctx context.Context, store *registry.ConnStore) (*base.ConnStoreResponse, error)

// run executes op under the registry lock. Waiting honours the request
// timeout; once the lock is held op runs to completion even if the client
// has gone away.
func (s *Server) run(r *http.Request, op registryOp) (*base.ConnStoreResponse, error) {
	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	var (
		resp  *base.ConnStoreResponse
		opErr error
	)
	err := s.store.Do(ctx, func(store *registry.ConnStore) error {
		resp, opErr = op(context.WithoutCancel(ctx), store)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errLockTimeout, err)
	}
	return resp, opErr
}

// respond runs op and writes its outcome in the version's wire shape
func (s *Server) respond(w http.ResponseWriter, r *http.Request, v apiVersion, operation string, op registryOp) {
	start := time.Now()
	resp, err := s.run(r, op)
	if errors.Is(err, errLockTimeout) {
		s.log.ErrorWithCode(subject(r), requestID(r), "Registry lock wait abandoned", http.StatusServiceUnavailable, err, map[string]interface{}{
			"operation": operation,
		})
		writeJSONError(w, "registry busy, retry later", http.StatusServiceUnavailable)
		return
	}
	s.writeResult(w, r, v, operation, start, resp, err)
}

func (s *Server) writeResult(w http.ResponseWriter, r *http.Request, v apiVersion, operation string, start time.Time, resp *base.ConnStoreResponse, err error) {
	if err != nil {
		cse := base.AsConnStoreError(err)
		// Messages may embed a connection URI; log the kind only.
		s.log.Warn(subject(r), requestID(r), "Registry operation failed", map[string]interface{}{
			"operation":   operation,
			"kind":        cse.Kind.String(),
			"duration_ms": float64(time.Since(start).Microseconds()) / 1000,
		})
		if v.strict {
			writeJSONResponse(w, cse, http.StatusBadRequest)
		} else {
			writeJSONResponse(w, map[string]interface{}{"Err": cse}, http.StatusOK)
		}
		return
	}

	s.log.InfoWithDuration(subject(r), requestID(r), "Registry operation succeeded", time.Since(start), map[string]interface{}{
		"operation": operation,
	})
	if v.strict {
		writeJSONResponse(w, resp, http.StatusOK)
	} else {
		writeJSONResponse(w, map[string]interface{}{"Ok": resp}, http.StatusOK)
	}
}

// reject writes a request-level Exception without touching the registry
func (s *Server) reject(w http.ResponseWriter, r *http.Request, v apiVersion, operation string, err *base.ConnStoreError) {
	s.writeResult(w, r, v, operation, time.Now(), nil, err)
}

func decodeConnInfo(w http.ResponseWriter, r *http.Request) (base.ConnInfo, *base.ConnStoreError) {
	var info base.ConnInfo
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&info); err != nil {
		return base.ConnInfo{}, base.NewException(fmt.Sprintf("invalid request body: %v", err))
	}
	if err := info.Validate(); err != nil {
		return base.ConnInfo{}, base.NewException(err.Error())
	}
	return info, nil
}

func requireKey(r *http.Request) (string, *base.ConnStoreError) {
	key := r.URL.Query().Get("key")
	if key == "" {
		return "", base.NewException("missing query parameter: key")
	}
	return key, nil
}

// reservedKeys are path segments that GET /conn/{key} can never reach
var reservedKeys = map[string]bool{"keys": true, "list": true, "keyed": true}

// routableKey rejects caller keys that would be shadowed by a fixed route or
// could not fit in one path segment
func routableKey(key string) *base.ConnStoreError {
	if reservedKeys[key] || strings.Contains(key, "/") {
		return base.NewException(fmt.Sprintf("key %q is reserved or not addressable by /conn/{key}", key))
	}
	return nil
}

func (s *Server) indexHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("Welcome to DynConn!"))
}

func (s *Server) checkConnectionHandler(v apiVersion) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, bad := decodeConnInfo(w, r)
		if bad != nil {
			s.reject(w, r, v, "check_connection", bad)
			return
		}
		s.respond(w, r, v, "check_connection", func(ctx context.Context, store *registry.ConnStore) (*base.ConnStoreResponse, error) {
			return store.CheckConnection(ctx, info)
		})
	}
}

func (s *Server) showInfoHandler(v apiVersion) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.respond(w, r, v, "show_info", func(ctx context.Context, store *registry.ConnStore) (*base.ConnStoreResponse, error) {
			return store.ShowInfo(), nil
		})
	}
}

func (s *Server) showKeysHandler(v apiVersion) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.respond(w, r, v, "show_keys", func(ctx context.Context, store *registry.ConnStore) (*base.ConnStoreResponse, error) {
			return base.KeysResponse(store.ShowKeys()), nil
		})
	}
}

func (s *Server) listConnHandler(v apiVersion) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.respond(w, r, v, "list_conn", func(ctx context.Context, store *registry.ConnStore) (*base.ConnStoreResponse, error) {
			return store.ListConn(ctx)
		})
	}
}

func (s *Server) getConnHandler(v apiVersion) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key := mux.Vars(r)["key"]
		s.respond(w, r, v, "get_conn", func(ctx context.Context, store *registry.ConnStore) (*base.ConnStoreResponse, error) {
			member, err := store.GetConn(key)
			if err != nil {
				return nil, err
			}
			return base.InfoResponse(member.Info), nil
		})
	}
}

func (s *Server) createHandler(v apiVersion) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		info, bad := decodeConnInfo(w, r)
		if bad != nil {
			s.reject(w, r, v, "create_conn", bad)
			return
		}
		if label := r.URL.Query().Get("key"); label != "" {
			s.log.Debug(subject(r), requestID(r), "Ignoring caller label on create; keys are generated", map[string]interface{}{
				"label": label,
			})
		}
		s.respond(w, r, v, "create_conn", func(ctx context.Context, store *registry.ConnStore) (*base.ConnStoreResponse, error) {
			return store.CreateConn(ctx, info)
		})
	}
}

func (s *Server) createKeyedHandler(v apiVersion) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, bad := requireKey(r)
		if bad == nil {
			bad = routableKey(key)
		}
		if bad != nil {
			s.reject(w, r, v, "create_conn_with_key", bad)
			return
		}
		info, bad := decodeConnInfo(w, r)
		if bad != nil {
			s.reject(w, r, v, "create_conn_with_key", bad)
			return
		}
		s.respond(w, r, v, "create_conn_with_key", func(ctx context.Context, store *registry.ConnStore) (*base.ConnStoreResponse, error) {
			return store.CreateConnWithKey(ctx, key, info)
		})
	}
}

func (s *Server) updateHandler(v apiVersion) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, bad := requireKey(r)
		if bad != nil {
			s.reject(w, r, v, "update_conn", bad)
			return
		}
		info, bad := decodeConnInfo(w, r)
		if bad != nil {
			s.reject(w, r, v, "update_conn", bad)
			return
		}
		s.respond(w, r, v, "update_conn", func(ctx context.Context, store *registry.ConnStore) (*base.ConnStoreResponse, error) {
			return store.UpdateConn(ctx, key, info)
		})
	}
}

func (s *Server) deleteHandler(v apiVersion) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		key, bad := requireKey(r)
		if bad != nil {
			s.reject(w, r, v, "delete_conn", bad)
			return
		}
		s.respond(w, r, v, "delete_conn", func(ctx context.Context, store *registry.ConnStore) (*base.ConnStoreResponse, error) {
			return store.DeleteConn(ctx, key)
		})
	}
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.requestTimeout)
	defer cancel()

	var (
		pools       map[string]*base.HealthStatus
		persistence bool
	)
	err := s.store.Do(ctx, func(store *registry.ConnStore) error {
		pools = store.HealthCheck(context.WithoutCancel(ctx))
		persistence = store.Persistence() != nil
		return nil
	})
	if err != nil {
		writeJSONResponse(w, map[string]interface{}{
			"status":    "busy",
			"service":   "dynconn",
			"timestamp": time.Now().UTC(),
		}, http.StatusServiceUnavailable)
		return
	}

	status := "healthy"
	for _, p := range pools {
		if !p.Healthy {
			status = "degraded"
			break
		}
	}

	writeJSONResponse(w, map[string]interface{}{
		"status":      status,
		"service":     "dynconn",
		"timestamp":   time.Now().UTC(),
		"connections": len(pools),
		"persistence": persistence,
		"pools":       pools,
	}, http.StatusOK)
}

// writeJSONResponse writes a JSON response with the given status code
func writeJSONResponse(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Printf("[DYN_SERVER] Error encoding response: %v", err)
	}
}

// writeJSONError writes a JSON error response
func writeJSONError(w http.ResponseWriter, message string, statusCode int) {
	writeJSONResponse(w, map[string]interface{}{
		"error": map[string]interface{}{
			"code":    statusCode,
			"message": message,
		},
	}, statusCode)
}
