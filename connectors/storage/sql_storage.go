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
	"database/sql"
	"errors"
	"fmt"
	"log"

	"github.com/jmoiron/sqlx"

	"dynconn/connectors/base"
)

// connInfoRow is one row of the conn_info table
type connInfoRow struct {
	ID       string `db:"id"`
	Driver   string `db:"driver"`
	Username string `db:"username"`
	Password string `db:"password"`
	Host     string `db:"host"`
	Port     int32  `db:"port"`
	Database string `db:"database"`
}

func rowFromInfo(key string, info base.ConnInfo) connInfoRow {
	return connInfoRow{
		ID:       key,
		Driver:   info.Driver.String(),
		Username: info.Username,
		Password: info.Password,
		Host:     info.Host,
		Port:     info.Port,
		Database: info.Database,
	}
}

func (r connInfoRow) toInfo() (base.ConnInfo, error) {
	driver, err := base.ParseDriver(r.Driver)
	if err != nil {
		return base.ConnInfo{}, fmt.Errorf("conn_info %s: %w", r.ID, err)
	}
	return base.NewConnInfo(driver, r.Username, r.Password, r.Host, r.Port, r.Database), nil
}

const (
	selectAllQuery = `SELECT id, driver, username, password, host, port, "database" FROM conn_info`
	selectOneQuery = selectAllQuery + ` WHERE id = ?`
	insertQuery    = `INSERT INTO conn_info (id, driver, username, password, host, port, "database")
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	upsertQuery = insertQuery + `
		ON CONFLICT (id) DO UPDATE SET
			driver = EXCLUDED.driver,
			username = EXCLUDED.username,
			password = EXCLUDED.password,
			host = EXCLUDED.host,
			port = EXCLUDED.port,
			"database" = EXCLUDED."database"`
	deleteQuery = `DELETE FROM conn_info WHERE id = ?`
)

// sqlStorage implements base.Persistence over the conn_info table. Queries are
// written with '?' placeholders and rebound for the driver by sqlx.
type sqlStorage struct {
	db          *sqlx.DB
	logger      *log.Logger
	validateKey func(key string) error
}

// ValidateKey reports an Exception for a key the table cannot hold
func (s *sqlStorage) ValidateKey(key string) error {
	if s.validateKey == nil {
		return nil
	}
	if err := s.validateKey(key); err != nil {
		return base.NewException(err.Error())
	}
	return nil
}

// Load returns the descriptor stored under key
func (s *sqlStorage) Load(ctx context.Context, key string) (base.ConnInfo, error) {
	if err := s.ValidateKey(key); err != nil {
		return base.ConnInfo{}, err
	}

	var row connInfoRow
	err := s.db.GetContext(ctx, &row, s.db.Rebind(selectOneQuery), key)
	if errors.Is(err, sql.ErrNoRows) {
		return base.ConnInfo{}, base.NewNotFound(key)
	}
	if err != nil {
		return base.ConnInfo{}, base.NewConnFailed(fmt.Sprintf("failed to load conn_info %s: %v", key, err))
	}

	info, err := row.toInfo()
	if err != nil {
		return base.ConnInfo{}, base.NewException(err.Error())
	}
	return info, nil
}

// LoadAll returns every stored descriptor. Rows with an unknown driver are
// skipped and logged rather than failing the whole bootstrap.
func (s *sqlStorage) LoadAll(ctx context.Context) (map[string]base.ConnInfo, error) {
	var rows []connInfoRow
	if err := s.db.SelectContext(ctx, &rows, selectAllQuery); err != nil {
		return nil, base.NewConnFailed(fmt.Sprintf("failed to load conn_info: %v", err))
	}

	out := make(map[string]base.ConnInfo, len(rows))
	for _, row := range rows {
		info, err := row.toInfo()
		if err != nil {
			s.logger.Printf("Skipping unreadable row: %v", err)
			continue
		}
		out[row.ID] = info
	}
	return out, nil
}

// Save inserts a new row under key
func (s *sqlStorage) Save(ctx context.Context, key string, info base.ConnInfo) error {
	if err := s.ValidateKey(key); err != nil {
		return err
	}

	if err := s.exec(ctx, insertQuery, rowFromInfo(key, info)); err != nil {
		return base.NewConnFailed(fmt.Sprintf("failed to save conn_info %s: %v", key, err))
	}
	s.logger.Printf("Saved conn_info %s (%s)", key, info.Redacted())
	return nil
}

// Update overwrites the row under key, inserting it if an earlier save was lost
func (s *sqlStorage) Update(ctx context.Context, key string, info base.ConnInfo) error {
	if err := s.ValidateKey(key); err != nil {
		return err
	}

	if err := s.exec(ctx, upsertQuery, rowFromInfo(key, info)); err != nil {
		return base.NewConnFailed(fmt.Sprintf("failed to update conn_info %s: %v", key, err))
	}
	s.logger.Printf("Updated conn_info %s (%s)", key, info.Redacted())
	return nil
}

// Delete removes the row under key. Deleting a missing row is not an error.
func (s *sqlStorage) Delete(ctx context.Context, key string) error {
	if err := s.ValidateKey(key); err != nil {
		return err
	}

	result, err := s.db.ExecContext(ctx, s.db.Rebind(deleteQuery), key)
	if err != nil {
		return base.NewConnFailed(fmt.Sprintf("failed to delete conn_info %s: %v", key, err))
	}

	if rows, err := result.RowsAffected(); err == nil && rows == 0 {
		s.logger.Printf("Delete of conn_info %s matched no rows", key)
		return nil
	}
	s.logger.Printf("Deleted conn_info %s", key)
	return nil
}

// Close closes the database connection
func (s *sqlStorage) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *sqlStorage) exec(ctx context.Context, query string, row connInfoRow) error {
	_, err := s.db.ExecContext(ctx, s.db.Rebind(query),
		row.ID, row.Driver, row.Username, row.Password, row.Host, row.Port, row.Database)
	return err
}

func (s *sqlStorage) initSchema(ctx context.Context, ddl []string) error {
	for _, stmt := range ddl {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	s.logger.Println("conn_info schema initialized")
	return nil
}
