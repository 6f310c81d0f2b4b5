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

package config

import (
	"fmt"
	"time"
)

// Warehouse backends.
const (
	WarehouseNone       = "none"
	WarehouseDatabricks = "databricks"
	WarehouseSQL        = "sql"
)

// DefaultTelemetryTable is the table execution records are written to.
const DefaultTelemetryTable = "default.agent_logs4"

// WarehouseConfig selects where telemetry records are shipped.
type WarehouseConfig struct {
	Backend string `yaml:"backend" json:"backend" jsonschema:"enum=none,enum=databricks,enum=sql,default=none"`
	Table   string `yaml:"table,omitempty" json:"table,omitempty" jsonschema:"default=default.agent_logs4"`

	// Databricks
	Host        string        `yaml:"host,omitempty" json:"host,omitempty"`
	Token       string        `yaml:"token,omitempty" json:"token,omitempty"`
	WarehouseID string        `yaml:"warehouse_id,omitempty" json:"warehouse_id,omitempty"`
	WaitTimeout time.Duration `yaml:"wait_timeout,omitempty" json:"wait_timeout,omitempty"`

	// SQL
	Database *DatabaseConfig `yaml:"database,omitempty" json:"database,omitempty"`
}

func (c *WarehouseConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = WarehouseNone
	}
	if c.Table == "" {
		c.Table = DefaultTelemetryTable
	}
	if c.WaitTimeout == 0 {
		c.WaitTimeout = 30 * time.Second
	}
	if c.Database != nil {
		c.Database.SetDefaults()
	}
}

func (c *WarehouseConfig) Validate() error {
	switch c.Backend {
	case WarehouseNone:
		return nil
	case WarehouseDatabricks:
		if c.Host == "" || c.Token == "" {
			return fmt.Errorf("databricks warehouse requires host and token: %w", ErrNoCredentials)
		}
		return nil
	case WarehouseSQL:
		if c.Database == nil {
			return fmt.Errorf("sql warehouse requires a database")
		}
		return c.Database.Validate()
	default:
		return fmt.Errorf("invalid warehouse backend %q (valid: none, databricks, sql)", c.Backend)
	}
}
