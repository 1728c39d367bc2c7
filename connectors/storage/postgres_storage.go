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

package storage

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS conn_info (
		id UUID PRIMARY KEY,
		name VARCHAR(255) NOT NULL DEFAULT '',
		description TEXT,
		driver VARCHAR(50) NOT NULL,
		username VARCHAR(255) NOT NULL,
		password VARCHAR(255) NOT NULL,
		host VARCHAR(255) NOT NULL,
		port INT NOT NULL,
		"database" VARCHAR(255) NOT NULL
	)`,
}

// PostgresStorage persists descriptors in a PostgreSQL conn_info table.
// Keys must be UUIDs; anything else is rejected with an Exception.
type PostgresStorage struct {
	sqlStorage
}

// connectRetries bounds the attempts NewPostgresStorage makes while DNS or the
// database container is still coming up
const connectRetries = 5

// NewPostgresStorage connects to dbURL, retrying with a linear backoff, and
// creates the conn_info table if it does not exist
func NewPostgresStorage(ctx context.Context, dbURL string) (*PostgresStorage, error) {
	logger := log.New(log.Writer(), "[CONN_STORAGE] ", log.LstdFlags)

	var db *sqlx.DB
	var err error
	for attempt := 1; attempt <= connectRetries; attempt++ {
		db, err = sqlx.Open("postgres", dbURL)
		if err == nil {
			if err = db.PingContext(ctx); err == nil {
				logger.Printf("Connected to database (attempt %d/%d)", attempt, connectRetries)
				break
			}
			_ = db.Close()
		}

		if attempt < connectRetries {
			backoff := time.Duration(attempt*2) * time.Second
			logger.Printf("Database connection failed (attempt %d/%d): %v, retrying in %v",
				attempt, connectRetries, err, backoff)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database after %d attempts: %w", connectRetries, err)
	}

	s, err := newPostgresStorage(ctx, db, logger)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	logger.Println("PostgreSQL conn_info storage initialized")
	return s, nil
}

func newPostgresStorage(ctx context.Context, db *sqlx.DB, logger *log.Logger) (*PostgresStorage, error) {
	s := &PostgresStorage{sqlStorage{
		db:          db,
		logger:      logger,
		validateKey: validateUUID,
	}}
	if err := s.initSchema(ctx, postgresSchema); err != nil {
		return nil, err
	}
	return s, nil
}

func validateUUID(key string) error {
	if _, err := uuid.Parse(key); err != nil {
		return fmt.Errorf("uuid conversion error: %q is not a valid id", key)
	}
	return nil
}
