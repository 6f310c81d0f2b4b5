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

package schema

import (
	"encoding/json"
	"fmt"
	"math"
	"reflect"
	"regexp"
	"strconv"
	"strings"
)

// checkValue applies lax validation: numeric strings are numbers, integral
// floats are integers and common boolean words are booleans. Containers
// must already have the right shape.
func checkValue(v any, kind Kind) (any, error) {
	switch kind {
	case String:
		switch x := v.(type) {
		case string:
			return x, nil
		case bool:
			return strconv.FormatBool(x), nil
		}
		if f, ok := asFloat(v); ok {
			return formatNumber(f), nil
		}
		return nil, fmt.Errorf("expected string, got %T", v)

	case Integer:
		if n, ok := toInt(v); ok {
			return n, nil
		}
		return nil, fmt.Errorf("expected integer, got %v", v)

	case Float:
		if s, ok := v.(string); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
			if err != nil {
				return nil, fmt.Errorf("expected number, got %q", s)
			}
			return f, nil
		}
		if f, ok := asFloat(v); ok {
			return f, nil
		}
		return nil, fmt.Errorf("expected number, got %T", v)

	case Boolean:
		if b, ok := toBool(v); ok {
			return b, nil
		}
		return nil, fmt.Errorf("expected boolean, got %v", v)

	case List:
		if list, ok := asList(v); ok {
			return list, nil
		}
		return nil, fmt.Errorf("expected list, got %T", v)

	case Object:
		if m, ok := v.(map[string]any); ok {
			return m, nil
		}
		return nil, fmt.Errorf("expected object, got %T", v)

	default:
		return v, nil
	}
}

var splitPattern = regexp.MustCompile(`[,;\n]`)

// CoerceValue converts v to kind leniently. Strings are parsed ("123.0"
// becomes 123 for integers), lists are parsed from JSON or split on
// comma, semicolon or newline, and scalars are wrapped for container kinds.
func CoerceValue(v any, kind Kind) (any, error) {
	switch kind {
	case String:
		switch x := v.(type) {
		case string:
			return x, nil
		case nil:
			return "", nil
		case bool:
			return strconv.FormatBool(x), nil
		}
		if f, ok := asFloat(v); ok {
			return formatNumber(f), nil
		}
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("cannot convert %T to string", v)
		}
		return string(data), nil

	case Integer:
		if s, ok := v.(string); ok {
			f, err := strconv.ParseFloat(cleanNumber(s), 64)
			if err != nil {
				return nil, fmt.Errorf("cannot convert %q to integer", s)
			}
			n, ok := truncInt(f)
			if !ok {
				return nil, fmt.Errorf("%q is out of integer range", s)
			}
			return n, nil
		}
		if b, ok := v.(bool); ok {
			if b {
				return 1, nil
			}
			return 0, nil
		}
		if f, ok := asFloat(v); ok {
			n, ok := truncInt(f)
			if !ok {
				return nil, fmt.Errorf("%v is out of integer range", f)
			}
			return n, nil
		}
		return nil, fmt.Errorf("cannot convert %T to integer", v)

	case Float:
		if s, ok := v.(string); ok {
			f, err := strconv.ParseFloat(cleanNumber(s), 64)
			if err != nil {
				return nil, fmt.Errorf("cannot convert %q to number", s)
			}
			return f, nil
		}
		if b, ok := v.(bool); ok {
			if b {
				return 1.0, nil
			}
			return 0.0, nil
		}
		if f, ok := asFloat(v); ok {
			return f, nil
		}
		return nil, fmt.Errorf("cannot convert %T to number", v)

	case Boolean:
		if b, ok := toBool(v); ok {
			return b, nil
		}
		return nil, fmt.Errorf("cannot convert %v to boolean", v)

	case List:
		if list, ok := asList(v); ok {
			return list, nil
		}
		if s, ok := v.(string); ok {
			var parsed []any
			if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &parsed); err == nil {
				return parsed, nil
			}
			var items []any
			for _, part := range splitPattern.Split(s, -1) {
				if part = strings.TrimSpace(part); part != "" {
					items = append(items, part)
				}
			}
			if items == nil {
				items = []any{}
			}
			return items, nil
		}
		return []any{v}, nil

	case Object:
		if m, ok := v.(map[string]any); ok {
			return m, nil
		}
		if s, ok := v.(string); ok {
			var parsed map[string]any
			if err := json.Unmarshal([]byte(strings.TrimSpace(s)), &parsed); err == nil && parsed != nil {
				return parsed, nil
			}
		}
		return map[string]any{"value": v}, nil

	default:
		return v, nil
	}
}

// cleanNumber strips surrounding whitespace, quotes and trailing sentence
// punctuation from a numeric token.
func cleanNumber(s string) string {
	s = strings.TrimSpace(s)
	s = strings.Trim(s, `"'`)
	s = strings.TrimRight(s, ".,;!")
	return strings.ReplaceAll(s, ",", "")
}

func asFloat(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case float32:
		return float64(x), true
	case int:
		return float64(x), true
	case int8:
		return float64(x), true
	case int16:
		return float64(x), true
	case int32:
		return float64(x), true
	case int64:
		return float64(x), true
	case uint:
		return float64(x), true
	case uint8:
		return float64(x), true
	case uint16:
		return float64(x), true
	case uint32:
		return float64(x), true
	case uint64:
		return float64(x), true
	case json.Number:
		f, err := x.Float64()
		return f, err == nil
	}
	return 0, false
}

func toInt(v any) (int, bool) {
	switch x := v.(type) {
	case bool:
		return 0, false
	case string:
		s := strings.TrimSpace(x)
		if n, err := strconv.Atoi(s); err == nil {
			return n, true
		}
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f != math.Trunc(f) {
			return 0, false
		}
		return truncInt(f)
	}
	f, ok := asFloat(v)
	if !ok || f != math.Trunc(f) {
		return 0, false
	}
	return truncInt(f)
}

// truncInt drops the fraction of f. NaN, infinities and values outside
// the int64 range do not convert.
func truncInt(f float64) (int, bool) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	f = math.Trunc(f)
	if f < math.MinInt64 || f >= 1<<63 {
		return 0, false
	}
	return int(f), true
}

func toBool(v any) (bool, bool) {
	switch x := v.(type) {
	case bool:
		return x, true
	case string:
		switch strings.ToLower(strings.TrimSpace(x)) {
		case "true", "yes", "y", "on", "t", "1":
			return true, true
		case "false", "no", "n", "off", "f", "0":
			return false, true
		}
		return false, false
	}
	if f, ok := asFloat(v); ok && (f == 0 || f == 1) {
		return f == 1, true
	}
	return false, false
}

func asList(v any) ([]any, bool) {
	if list, ok := v.([]any); ok {
		return list, true
	}
	rv := reflect.ValueOf(v)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) || rv.Type().Elem().Kind() == reflect.Uint8 {
		return nil, false
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, true
}

func formatNumber(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
