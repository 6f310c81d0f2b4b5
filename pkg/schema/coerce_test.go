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
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func single(name string, kind Kind) *Schema {
	return New([]Field{{Name: name, Kind: kind, Required: true}})
}

func TestCoerce(t *testing.T) {
	tests := []struct {
		name   string
		schema *Schema
		raw    any
		want   map[string]any
	}{
		{
			name:   "json string",
			schema: single("result", Integer),
			raw:    `{"result": 42}`,
			want:   map[string]any{"result": 42},
		},
		{
			name:   "fenced json",
			schema: single("result", Integer),
			raw:    "```json\n{\"result\": 7}\n```",
			want:   map[string]any{"result": 7},
		},
		{
			name:   "whole string for required text",
			schema: single("answer", String),
			raw:    "The answer is 7.",
			want:   map[string]any{"answer": "The answer is 7."},
		},
		{
			name:   "key value with lenient integer",
			schema: single("n", Integer),
			raw:    "n: 123.0\n",
			want:   map[string]any{"n": 123},
		},
		{
			name:   "key equals value",
			schema: single("city", String),
			raw:    "Result:\ncity = Paris",
			want:   map[string]any{"city": "Paris"},
		},
		{
			name:   "json-like fragment",
			schema: single("miles", Float),
			raw:    `Sure! "miles": 0.0056, done`,
			want:   map[string]any{"miles": 0.0056},
		},
		{
			name:   "numeric pattern",
			schema: single("miles", Float),
			raw:    "That is roughly 5.59 miles.",
			want:   map[string]any{"miles": 5.59},
		},
		{
			name:   "boolean token",
			schema: single("approved", Boolean),
			raw:    "Yes, this is approved.",
			want:   map[string]any{"approved": true},
		},
		{
			name:   "list split",
			schema: single("tags", List),
			raw:    "tags: a, b; c",
			want:   map[string]any{"tags": []any{"a", "b", "c"}},
		},
		{
			name:   "scalar wrapped into object",
			schema: single("meta", Object),
			raw:    map[string]any{"meta": "x"},
			want:   map[string]any{"meta": map[string]any{"value": "x"}},
		},
		{
			name: "optional missing takes default",
			schema: New([]Field{
				{Name: "a", Kind: String, Required: true},
				{Name: "b", Kind: Integer, Default: 9},
			}),
			raw:  map[string]any{"a": "x"},
			want: map[string]any{"a": "x", "b": 9},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Coerce(tt.raw, tt.schema)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCoerce_Failures(t *testing.T) {
	_, err := Coerce(map[string]any{"other": 1}, single("result", Integer))
	assert.ErrorIs(t, err, ErrOutputInvalid)

	_, err = Coerce("no digits here", single("result", Integer))
	assert.ErrorIs(t, err, ErrOutputInvalid)

	_, err = Coerce(map[string]any{"ok": "perhaps"}, single("ok", Boolean))
	assert.ErrorIs(t, err, ErrOutputInvalid)

	_, err = Coerce(42, single("result", Integer))
	assert.ErrorIs(t, err, ErrOutputInvalid)
}

func TestCoerce_KeySetMatchesSchema(t *testing.T) {
	s := New([]Field{
		{Name: "a", Kind: String, Required: true},
		{Name: "b", Kind: Float},
		{Name: "c", Kind: List},
	})
	for _, raw := range []any{"free text", `{"a": "x", "z": 1}`, map[string]any{"a": 1}} {
		got, err := Coerce(raw, s)
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{"a", "b", "c"}, keys(got))
	}
}

func TestCoerceValue(t *testing.T) {
	v, err := CoerceValue("123.0", Integer)
	require.NoError(t, err)
	assert.Equal(t, 123, v)

	v, err = CoerceValue(12.9, Integer)
	require.NoError(t, err)
	assert.Equal(t, 12, v)

	v, err = CoerceValue(`[1, 2]`, List)
	require.NoError(t, err)
	assert.Equal(t, []any{1.0, 2.0}, v)

	v, err = CoerceValue(5, List)
	require.NoError(t, err)
	assert.Equal(t, []any{5}, v)

	v, err = CoerceValue(`{"k": "v"}`, Object)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"k": "v"}, v)

	v, err = CoerceValue(map[string]any{"k": 1}, String)
	require.NoError(t, err)
	assert.Equal(t, `{"k":1}`, v)

	v, err = CoerceValue(2.0, String)
	require.NoError(t, err)
	assert.Equal(t, "2", v)

	v, err = CoerceValue(-9.2e18, Integer)
	require.NoError(t, err)
	assert.Equal(t, -9200000000000000000, v)

	for _, bad := range []any{"inf", "-Infinity", "NaN", "1e30", math.Inf(1), math.NaN(), 1e19, -1e19} {
		_, err := CoerceValue(bad, Integer)
		assert.Error(t, err, "%v", bad)
	}
}

func TestExtractObject(t *testing.T) {
	obj, ok := ExtractObject("Here you go: {\"a\": {\"b\": 1}} hope it helps")
	require.True(t, ok)
	assert.Equal(t, map[string]any{"a": map[string]any{"b": 1.0}}, obj)

	_, ok = ExtractObject("nothing structured")
	assert.False(t, ok)
}

func TestFallback(t *testing.T) {
	s := New([]Field{
		{Name: "s", Kind: String},
		{Name: "i", Kind: Integer},
		{Name: "f", Kind: Float},
		{Name: "b", Kind: Boolean},
		{Name: "l", Kind: List},
		{Name: "o", Kind: Object},
	})
	assert.Equal(t, map[string]any{
		"s": "",
		"i": 0,
		"f": 0.0,
		"b": false,
		"l": []any{"raw"},
		"o": map[string]any{"raw_output": "raw"},
	}, Fallback(s, "raw"))
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}
