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

package utility

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"slices"
	"strconv"
	"strings"

	"github.com/kadirpekel/langsketch/pkg/tool"
)

// JSONParser decodes jsonStr. Without fields the decoded value is
// returned. Each field may be a dotted path; the leaf is keyed by the
// last path segment and is nil when the path does not resolve.
// Invalid JSON yields an empty mapping.
func JSONParser(jsonStr string, fields []string) any {
	var data any
	if err := json.Unmarshal([]byte(jsonStr), &data); err != nil {
		return map[string]any{}
	}
	if len(fields) == 0 {
		return data
	}

	out := make(map[string]any, len(fields))
	for _, field := range fields {
		segments := strings.Split(field, ".")
		out[segments[len(segments)-1]] = walkPath(data, segments)
	}
	return out
}

func walkPath(data any, segments []string) any {
	current := data
	for _, seg := range segments {
		switch node := current.(type) {
		case map[string]any:
			next, ok := node[seg]
			if !ok {
				return nil
			}
			current = next
		case []any:
			i, err := strconv.Atoi(seg)
			if err != nil || i < 0 || i >= len(node) {
				return nil
			}
			current = node[i]
		default:
			return nil
		}
	}
	return current
}

// UnitConverter converts value between two units of the same dimension.
func UnitConverter(value float64, from, to string) (float64, error) {
	out, err := convertUnits(value, from, to)
	if err != nil {
		return 0, fmt.Errorf("%w: cannot convert %s to %s: %v", tool.ErrToolFailed, from, to, err)
	}
	return out, nil
}

// NumberStats summarizes numbers. Empty input yields an empty mapping.
func NumberStats(numbers []float64) map[string]any {
	if len(numbers) == 0 {
		return map[string]any{}
	}

	sorted := slices.Clone(numbers)
	slices.Sort(sorted)

	sum := 0.0
	for _, n := range numbers {
		sum += n
	}

	mid := len(sorted) / 2
	median := sorted[mid]
	if len(sorted)%2 == 0 {
		median = (sorted[mid-1] + sorted[mid]) / 2
	}

	return map[string]any{
		"min":    sorted[0],
		"max":    sorted[len(sorted)-1],
		"mean":   sum / float64(len(numbers)),
		"median": median,
		"count":  len(numbers),
		"sum":    sum,
	}
}

const (
	ListMap    = "map"
	ListFilter = "filter"
	ListReduce = "reduce"
)

// ListOps applies a closed set of list operations selected by action and
// extra:
//
//	map:    operation square, double
//	filter: condition even, positive
//	reduce: operation sum (default), product
//
// Non-numeric elements are skipped. Unknown combinations return data.
func ListOps(action string, data []any, extra map[string]any) any {
	switch action {
	case ListMap:
		var fn func(float64) float64
		switch stringArg(extra, "operation", "") {
		case "square":
			fn = func(x float64) float64 { return x * x }
		case "double":
			fn = func(x float64) float64 { return x * 2 }
		default:
			return data
		}
		out := make([]any, 0, len(data))
		for _, v := range data {
			if x, ok := numeric(v); ok {
				out = append(out, fn(x))
			}
		}
		return out

	case ListFilter:
		var keep func(float64) bool
		switch stringArg(extra, "condition", "") {
		case "even":
			keep = func(x float64) bool { return x == math.Trunc(x) && math.Mod(x, 2) == 0 }
		case "positive":
			keep = func(x float64) bool { return x > 0 }
		default:
			return data
		}
		out := make([]any, 0, len(data))
		for _, v := range data {
			if x, ok := numeric(v); ok && keep(x) {
				out = append(out, v)
			}
		}
		return out

	case ListReduce:
		switch stringArg(extra, "operation", "sum") {
		case "sum":
			total := 0.0
			for _, v := range data {
				if x, ok := numeric(v); ok {
					total += x
				}
			}
			return total
		case "product":
			total := 1.0
			for _, v := range data {
				if x, ok := numeric(v); ok {
					total *= x
				}
			}
			return total
		}
	}
	return data
}

// URLParser splits raw into scheme, domain, path, query and fragment.
// Query values are lists; blank values are dropped. A malformed URL
// yields an empty mapping.
func URLParser(raw string) map[string]any {
	u, err := url.Parse(raw)
	if err != nil {
		return map[string]any{}
	}

	query := map[string][]string{}
	for key, values := range u.Query() {
		for _, v := range values {
			if v != "" {
				query[key] = append(query[key], v)
			}
		}
	}

	domain := u.Host
	if u.User != nil {
		domain = u.User.String() + "@" + u.Host
	}

	return map[string]any{
		"scheme":   u.Scheme,
		"domain":   domain,
		"path":     u.Path,
		"query":    query,
		"fragment": u.Fragment,
	}
}

// numeric accepts JSON numbers and Go numeric types; strings and
// booleans are not numbers here.
func numeric(v any) (float64, bool) {
	switch x := v.(type) {
	case bool, string, nil:
		return 0, false
	default:
		f, err := number(x)
		return f, err == nil
	}
}
