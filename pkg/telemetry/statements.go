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

package telemetry

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/kadirpekel/langsketch/pkg/telemetry/warehouse"
)

// Escape doubles single quotes for use inside a SQL string literal.
func Escape(s string) string {
	return strings.ReplaceAll(s, "'", "''")
}

// Literal renders v as a SQL literal. Strings are quoted and escaped, nil
// becomes the empty string and booleans are lowercase.
func Literal(v any) string {
	switch x := v.(type) {
	case nil:
		return "''"
	case string:
		return "'" + Escape(x) + "'"
	case bool:
		return strconv.FormatBool(x)
	case int:
		return strconv.Itoa(x)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return "'" + Escape(fmt.Sprint(x)) + "'"
	}
}

// CreateTableSQL returns the idempotent table definition for dialect.
func CreateTableSQL(table string, dialect warehouse.Dialect) string {
	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE IF NOT EXISTS %s (\n", dialect.Table(table))
	for i, c := range Columns {
		fmt.Fprintf(&b, "    %s %s", c.Name, dialect.ColumnType(c.Type))
		if i < len(Columns)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(")")
	if dialect.CreateSuffix != "" {
		b.WriteString(" " + dialect.CreateSuffix)
	}
	return b.String()
}

// InsertSQL returns a single-row INSERT for r. raw_input_data is cut to
// MaxRawInputChars.
func InsertSQL(table string, r *Record, dialect warehouse.Dialect) string {
	row := *r
	row.RawInputData = Truncate(row.RawInputData, MaxRawInputChars)

	names := make([]string, len(Columns))
	for i, c := range Columns {
		names[i] = c.Name
	}
	values := row.Values()
	literals := make([]string, len(values))
	for i, v := range values {
		literals[i] = Literal(v)
	}

	return fmt.Sprintf("INSERT INTO %s\n(%s)\nVALUES (%s)",
		dialect.Table(table), strings.Join(names, ", "), strings.Join(literals, ", "))
}

// SummarySQL selects the headline columns of an agent's records, newest
// first.
func SummarySQL(table, agent string, dialect warehouse.Dialect) string {
	return fmt.Sprintf("SELECT agent_name, most_used_tool, tools_used_count, total_tool_calls, "+
		"execution_duration_seconds, efficiency_score FROM %s WHERE agent_name = %s "+
		"ORDER BY execution_timestamp DESC", dialect.Table(table), Literal(agent))
}
