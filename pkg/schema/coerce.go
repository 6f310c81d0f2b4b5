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
	"regexp"
	"strings"
)

var (
	numberPattern  = regexp.MustCompile(`-?\d+(?:\.\d+)?`)
	booleanPattern = regexp.MustCompile(`(?i)\b(true|yes|false|no|1|0)\b`)
	objectPattern  = regexp.MustCompile(`(?s)\{.*\}`)
	fencePattern   = regexp.MustCompile("(?s)^```[a-zA-Z]*\\s*(.*?)\\s*```$")
)

// Coerce maps a raw model answer onto the schema fields.
//
// String answers are parsed as JSON first. A mapping answer must carry every
// required field. For a plain-text answer each field is extracted with, in
// order, a JSON-like "name": value match, a name = value / name: value line,
// the first number (numeric fields) or a boolean token (boolean fields); a
// required field that cannot be found takes the whole text.
//
// Errors wrap ErrOutputInvalid. The returned keys are exactly the schema
// field names.
func Coerce(raw any, s *Schema) (map[string]any, error) {
	if text, ok := raw.(string); ok {
		if m, ok := parseObject(text); ok {
			raw = m
		}
	}

	switch v := raw.(type) {
	case map[string]any:
		return coerceMapping(v, s)
	case string:
		return coerceText(v, s)
	default:
		return nil, fmt.Errorf("%w: unsupported answer type %T", ErrOutputInvalid, raw)
	}
}

func coerceMapping(m map[string]any, s *Schema) (map[string]any, error) {
	out := make(map[string]any, len(s.fields))
	for _, f := range s.fields {
		v, ok := m[f.Name]
		if !ok || v == nil {
			if f.Required {
				return nil, fmt.Errorf("%w: missing required field %q", ErrOutputInvalid, f.Name)
			}
			out[f.Name] = f.Default
			continue
		}
		converted, err := CoerceValue(v, f.Kind)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", ErrOutputInvalid, f.Name, err)
		}
		out[f.Name] = converted
	}
	return out, nil
}

func coerceText(text string, s *Schema) (map[string]any, error) {
	out := make(map[string]any, len(s.fields))
	for _, f := range s.fields {
		v, found := extractField(text, f)
		if !found {
			if !f.Required {
				out[f.Name] = f.Default
				continue
			}
			v = text
		}
		converted, err := CoerceValue(v, f.Kind)
		if err != nil {
			return nil, fmt.Errorf("%w: field %q: %v", ErrOutputInvalid, f.Name, err)
		}
		out[f.Name] = converted
	}
	return out, nil
}

func extractField(text string, f Field) (any, bool) {
	name := regexp.QuoteMeta(f.Name)

	jsonLike := regexp.MustCompile(`"` + name + `"\s*:\s*("(?:[^"\\]|\\.)*"|\[[^\]]*\]|\{[^}]*\}|[^,}\n]+)`)
	if m := jsonLike.FindStringSubmatch(text); m != nil {
		token := strings.TrimSpace(m[1])
		var decoded any
		if err := json.Unmarshal([]byte(token), &decoded); err == nil {
			return decoded, true
		}
		return token, true
	}

	keyValue := regexp.MustCompile(`(?im)(?:^|[\s,;{])` + name + `\s*[:=]\s*(.+?)\s*$`)
	if m := keyValue.FindStringSubmatch(text); m != nil {
		return strings.Trim(m[1], `"'`), true
	}

	switch f.Kind {
	case Integer, Float:
		if m := numberPattern.FindString(text); m != "" {
			return m, true
		}
	case Boolean:
		if m := booleanPattern.FindString(text); m != "" {
			return m, true
		}
	}
	return nil, false
}

// parseObject decodes text as a JSON object, tolerating surrounding
// whitespace and a markdown code fence.
func parseObject(text string) (map[string]any, bool) {
	text = strings.TrimSpace(text)
	if m := fencePattern.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(text), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// ExtractObject returns the JSON object spanning from the first '{' to the
// last '}' of text.
func ExtractObject(text string) (map[string]any, bool) {
	match := objectPattern.FindString(text)
	if match == "" {
		return nil, false
	}
	var obj map[string]any
	if err := json.Unmarshal([]byte(match), &obj); err != nil || obj == nil {
		return nil, false
	}
	return obj, true
}

// Fallback builds a record of per-kind defaults carrying the raw answer
// where the kind can hold it.
func Fallback(s *Schema, raw string) map[string]any {
	out := make(map[string]any, len(s.fields))
	for _, f := range s.fields {
		switch f.Kind {
		case Integer:
			out[f.Name] = 0
		case Float:
			out[f.Name] = 0.0
		case Boolean:
			out[f.Name] = false
		case List:
			out[f.Name] = []any{raw}
		case Object:
			out[f.Name] = map[string]any{"raw_output": raw}
		case Any:
			out[f.Name] = raw
		default:
			out[f.Name] = ""
		}
	}
	return out
}
