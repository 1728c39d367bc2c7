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

package base

import (
	"context"
	"time"
)

// BizPool is a live, backend-specific connection pool held by the registry.
// Disconnect releases its resources on a best-effort basis and never fails
// the caller; implementations log and swallow their own errors.
type BizPool interface {
	Disconnect(ctx context.Context)
}

// Pinger is implemented by pools that can report liveness
type Pinger interface {
	Ping(ctx context.Context) error
}

// Establisher turns a ConnInfo into a live pool
type Establisher interface {
	// Establish opens a pool for info. It may block on network I/O.
	Establish(ctx context.Context, info ConnInfo) (BizPool, error)

	// Probe reports whether info is reachable without keeping anything open
	Probe(ctx context.Context, info ConnInfo) (bool, error)
}

// Persistence is a durable store of ConnInfo keyed by registry key
type Persistence interface {
	Load(ctx context.Context, key string) (ConnInfo, error)
	LoadAll(ctx context.Context) (map[string]ConnInfo, error)
	Save(ctx context.Context, key string, info ConnInfo) error
	Update(ctx context.Context, key string, info ConnInfo) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// KeyValidator is implemented by a Persistence that can only store some keys.
// The registry checks a caller-chosen key with it before opening a pool.
type KeyValidator interface {
	ValidateKey(key string) error
}

// HealthStatus represents the health of a live pool
type HealthStatus struct {
	Healthy   bool          `json:"healthy"`   // Overall health status
	Latency   time.Duration `json:"latency"`   // Ping latency
	Timestamp time.Time     `json:"timestamp"` // When health check was performed
	Error     string        `json:"error"`     // Error message if unhealthy
}

// ConnectorError represents errors raised while opening or using a backend
type ConnectorError struct {
	Target    string
	Operation string
	Message   string
	Cause     error
}

func (e *ConnectorError) Error() string {
	if e.Cause != nil {
		return e.Target + "." + e.Operation + ": " + e.Message + " (cause: " + e.Cause.Error() + ")"
	}
	return e.Target + "." + e.Operation + ": " + e.Message
}

// Unwrap returns the underlying cause
func (e *ConnectorError) Unwrap() error {
	return e.Cause
}

// NewConnectorError creates a new ConnectorError
func NewConnectorError(target, operation, message string, cause error) *ConnectorError {
	return &ConnectorError{
		Target:    target,
		Operation: operation,
		Message:   message,
		Cause:     cause,
	}
}
