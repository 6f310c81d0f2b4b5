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

// Package warehouse executes telemetry statements against a Databricks SQL
// warehouse or a database/sql backend.
package warehouse

import (
	"context"
	"fmt"
	"strings"

	"github.com/kadirpekel/langsketch/pkg/config"
)

// Executor runs one SQL statement at a time.
type Executor interface {
	// Dialect returns the SQL flavour statements must be written in.
	Dialect() Dialect

	// Exec runs a statement that returns no rows.
	Exec(ctx context.Context, statement string) error

	// Query runs a statement and returns every row rendered as strings.
	Query(ctx context.Context, statement string) ([][]string, error)

	Close() error
}

// Dialect describes how generic column types and table names are written
// for a backend.
type Dialect struct {
	Name string

	// Types maps the generic column types STRING, BIGINT, INT, DOUBLE and
	// BOOLEAN to backend types. Missing entries are used verbatim.
	Types map[string]string

	// CreateSuffix is appended to CREATE TABLE statements.
	CreateSuffix string

	// KeepSchema keeps a "schema." table prefix. Backends without the
	// schema drop it.
	KeepSchema bool
}

var (
	Databricks = Dialect{
		Name:         "databricks",
		CreateSuffix: "USING delta",
		KeepSchema:   true,
	}
	Postgres = Dialect{
		Name: "postgres",
		Types: map[string]string{
			"STRING": "TEXT",
			"DOUBLE": "DOUBLE PRECISION",
		},
	}
	MySQL = Dialect{
		Name: "mysql",
		Types: map[string]string{
			"STRING": "TEXT",
		},
	}
	SQLite = Dialect{
		Name: "sqlite",
		Types: map[string]string{
			"STRING":  "TEXT",
			"BIGINT":  "INTEGER",
			"INT":     "INTEGER",
			"DOUBLE":  "REAL",
			"BOOLEAN": "BOOLEAN",
		},
	}
)

// DialectFor returns the dialect for a database driver name.
func DialectFor(driver string) (Dialect, error) {
	switch driver {
	case "postgres":
		return Postgres, nil
	case "mysql":
		return MySQL, nil
	case "sqlite", "sqlite3":
		return SQLite, nil
	case "databricks":
		return Databricks, nil
	default:
		return Dialect{}, fmt.Errorf("unsupported dialect: %s (supported: databricks, postgres, mysql, sqlite)", driver)
	}
}

// ColumnType translates a generic column type.
func (d Dialect) ColumnType(generic string) string {
	if t, ok := d.Types[generic]; ok {
		return t
	}
	return generic
}

// Table returns the table name as written in statements.
func (d Dialect) Table(name string) string {
	if d.KeepSchema {
		return name
	}
	if i := strings.LastIndex(name, "."); i >= 0 {
		return name[i+1:]
	}
	return name
}

// Open builds the executor selected by cfg. The none backend yields a nil
// executor and no error.
func Open(ctx context.Context, cfg config.WarehouseConfig, pool *config.DBPool) (Executor, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid warehouse configuration: %w", err)
	}

	switch cfg.Backend {
	case config.WarehouseDatabricks:
		return NewDatabricksExecutor(DatabricksConfig{
			Host:        cfg.Host,
			Token:       cfg.Token,
			WarehouseID: cfg.WarehouseID,
			WaitTimeout: cfg.WaitTimeout,
		}), nil
	case config.WarehouseSQL:
		exec, err := NewSQLExecutor(ctx, pool, cfg.Database)
		if err != nil {
			return nil, err
		}
		return exec, nil
	default:
		return nil, nil
	}
}
