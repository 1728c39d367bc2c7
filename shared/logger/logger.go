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

package logger

import (
	"encoding/json"
	"io"
	"log"
	"os"
	"strings"
	"sync"
	"time"
)

// LogLevel represents the severity of a log entry
type LogLevel string

const (
	DEBUG LogLevel = "DEBUG"
	INFO  LogLevel = "INFO"
	WARN  LogLevel = "WARN"
	ERROR LogLevel = "ERROR"
)

var levelRank = map[LogLevel]int{DEBUG: 0, INFO: 1, WARN: 2, ERROR: 3}

// ParseLevel maps a case-insensitive level name to a LogLevel. Unknown names
// fall back to INFO.
func ParseLevel(s string) LogLevel {
	level := LogLevel(strings.ToUpper(strings.TrimSpace(s)))
	if _, ok := levelRank[level]; ok {
		return level
	}
	return INFO
}

// Logger writes one JSON object per line for the service layer
type Logger struct {
	Component  string
	InstanceID string
	Container  string

	mu       sync.Mutex
	minLevel LogLevel
	out      *log.Logger
}

// LogEntry is the JSON shape of a single line
type LogEntry struct {
	Timestamp  string                 `json:"timestamp"`
	Level      LogLevel               `json:"level"`
	Component  string                 `json:"component"`
	InstanceID string                 `json:"instance_id"`
	Container  string                 `json:"container"`
	Subject    string                 `json:"subject,omitempty"`
	RequestID  string                 `json:"request_id,omitempty"`
	Message    string                 `json:"message"`
	Fields     map[string]interface{} `json:"fields,omitempty"`
}

// New creates a Logger for component writing to stdout at INFO
func New(component string) *Logger {
	// Get instance ID from environment (set during deployment)
	instanceID := os.Getenv("INSTANCE_ID")
	if instanceID == "" {
		instanceID = "unknown"
	}

	container, err := os.Hostname()
	if err != nil {
		container = "unknown"
	}

	return &Logger{
		Component:  component,
		InstanceID: instanceID,
		Container:  container,
		minLevel:   INFO,
		out:        log.New(os.Stdout, "", 0),
	}
}

// SetLevel drops entries below level
func (l *Logger) SetLevel(level LogLevel) {
	l.mu.Lock()
	l.minLevel = level
	l.mu.Unlock()
}

// SetOutput redirects entries to w
func (l *Logger) SetOutput(w io.Writer) {
	l.mu.Lock()
	l.out = log.New(w, "", 0)
	l.mu.Unlock()
}

// Enabled reports whether entries at level are written
func (l *Logger) Enabled(level LogLevel) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return levelRank[level] >= levelRank[l.minLevel]
}

// Log writes a structured entry. subject is the authenticated caller, when
// known.
func (l *Logger) Log(level LogLevel, subject, requestID, message string, fields map[string]interface{}) {
	if !l.Enabled(level) {
		return
	}

	entry := LogEntry{
		Timestamp:  time.Now().UTC().Format(time.RFC3339Nano),
		Level:      level,
		Component:  l.Component,
		InstanceID: l.InstanceID,
		Container:  l.Container,
		Subject:    subject,
		RequestID:  requestID,
		Message:    message,
		Fields:     fields,
	}

	jsonBytes, err := json.Marshal(entry)
	if err != nil {
		log.Printf("ERROR: Failed to marshal log entry: %v", err)
		return
	}

	l.mu.Lock()
	out := l.out
	l.mu.Unlock()
	out.Println(string(jsonBytes))
}

// Info logs an informational message
func (l *Logger) Info(subject, requestID, message string, fields map[string]interface{}) {
	l.Log(INFO, subject, requestID, message, fields)
}

// Error logs an error message
func (l *Logger) Error(subject, requestID, message string, fields map[string]interface{}) {
	l.Log(ERROR, subject, requestID, message, fields)
}

// Warn logs a warning message
func (l *Logger) Warn(subject, requestID, message string, fields map[string]interface{}) {
	l.Log(WARN, subject, requestID, message, fields)
}

// Debug logs a debug message
func (l *Logger) Debug(subject, requestID, message string, fields map[string]interface{}) {
	l.Log(DEBUG, subject, requestID, message, fields)
}

// InfoWithDuration logs an info message with a duration_ms field
func (l *Logger) InfoWithDuration(subject, requestID, message string, duration time.Duration, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["duration_ms"] = float64(duration.Microseconds()) / 1000
	l.Info(subject, requestID, message, fields)
}

// ErrorWithCode logs an error with the HTTP status it produced
func (l *Logger) ErrorWithCode(subject, requestID, message string, statusCode int, err error, fields map[string]interface{}) {
	if fields == nil {
		fields = make(map[string]interface{})
	}
	fields["status_code"] = statusCode
	if err != nil {
		fields["error"] = err.Error()
	}
	l.Error(subject, requestID, message, fields)
}
