// SPDX-License-Identifier: AGPL-3.0
// Copyright 2025 Kadir Pekel
//
// Licensed under the GNU Affero General Public License v3.0 (AGPL-3.0) (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     https://www.gnu.org/licenses/agpl-3.0.en.html
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package warehouse

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/kadirpekel/langsketch/pkg/config"
)

// SQLExecutor runs statements on a database/sql connection.
type SQLExecutor struct {
	db      *sql.DB
	dialect Dialect
	owned   bool
}

// NewSQLExecutor opens cfg through pool. A nil pool opens a private
// connection that Close releases.
func NewSQLExecutor(ctx context.Context, pool *config.DBPool, cfg *config.DatabaseConfig) (*SQLExecutor, error) {
	if cfg == nil {
		return nil, fmt.Errorf("SQL configuration is required")
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	dialect, err := DialectFor(cfg.Dialect())
	if err != nil {
		return nil, err
	}

	owned := pool == nil
	if owned {
		pool = config.NewDBPool()
	}
	db, err := pool.Get(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s database '%s': %w", cfg.Driver, cfg.Database, err)
	}
	return &SQLExecutor{db: db, dialect: dialect, owned: owned}, nil
}

// NewSQLExecutorFromDB wraps an open connection.
func NewSQLExecutorFromDB(db *sql.DB, dialect Dialect) (*SQLExecutor, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	return &SQLExecutor{db: db, dialect: dialect}, nil
}

func (e *SQLExecutor) Dialect() Dialect {
	return e.dialect
}

func (e *SQLExecutor) Exec(ctx context.Context, statement string) error {
	if _, err := e.db.ExecContext(ctx, statement); err != nil {
		return fmt.Errorf("%s statement failed: %w", e.dialect.Name, err)
	}
	return nil
}

func (e *SQLExecutor) Query(ctx context.Context, statement string) ([][]string, error) {
	rows, err := e.db.QueryContext(ctx, statement)
	if err != nil {
		return nil, fmt.Errorf("%s query failed: %w", e.dialect.Name, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out [][]string
	for rows.Next() {
		values := make([]sql.NullString, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		row := make([]string, len(cols))
		for i, v := range values {
			row[i] = v.String
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

// Close releases the connection when the executor opened it.
func (e *SQLExecutor) Close() error {
	if !e.owned {
		return nil
	}
	slog.Debug("Closing warehouse database", "dialect", e.dialect.Name)
	return e.db.Close()
}
