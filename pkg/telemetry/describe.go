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
	"encoding/json"
	"fmt"
	"slices"
	"strings"
)

// DescribeJSON renders the structure of v as JSON sees it: lists show
// their length and first element, objects their keys and value kinds.
func DescribeJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("unencodable %T", v)
	}
	var generic any
	if err := json.Unmarshal(data, &generic); err != nil {
		return fmt.Sprintf("unencodable %T", v)
	}

	var b strings.Builder
	describe(&b, generic, 0)
	return strings.TrimRight(b.String(), "\n")
}

func describe(b *strings.Builder, v any, indent int) {
	prefix := strings.Repeat(" ", indent)
	switch x := v.(type) {
	case []any:
		fmt.Fprintf(b, "%sList[%d items]\n", prefix, len(x))
		if len(x) > 0 {
			describe(b, x[0], indent+2)
		}
	case map[string]any:
		fmt.Fprintf(b, "%sDict with %d keys:\n", prefix, len(x))
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			fmt.Fprintf(b, "%s  - %s: %s\n", prefix, k, kind(x[k]))
			switch x[k].(type) {
			case []any, map[string]any:
				describe(b, x[k], indent+4)
			}
		}
	default:
		fmt.Fprintf(b, "%s%s\n", prefix, kind(v))
	}
}

func kind(v any) string {
	switch v.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case float64:
		return "number"
	case string:
		return "string"
	case []any:
		return "list"
	case map[string]any:
		return "dict"
	default:
		return fmt.Sprintf("%T", v)
	}
}
