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

package registry

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOrderedRegistry_Register(t *testing.T) {
	r := New[int]()

	tests := []struct {
		name    string
		key     string
		wantErr bool
	}{
		{name: "valid item", key: "one"},
		{name: "empty name", key: "", wantErr: true},
		{name: "duplicate", key: "one", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := r.Register(tt.key, 1)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestOrderedRegistry_KeepsOrder(t *testing.T) {
	r := New[string]()
	for _, name := range []string{"c", "a", "b"} {
		require.NoError(t, r.Register(name, name+"!"))
	}

	assert.Equal(t, []string{"c", "a", "b"}, r.Names())
	assert.Equal(t, []string{"c!", "a!", "b!"}, r.List())

	r.Put("a", "replaced")
	assert.Equal(t, []string{"c", "a", "b"}, r.Names())
	v, ok := r.Get("a")
	require.True(t, ok)
	assert.Equal(t, "replaced", v)

	require.NoError(t, r.Remove("c"))
	assert.Equal(t, []string{"a", "b"}, r.Names())
	assert.Equal(t, 2, r.Count())
	assert.Error(t, r.Remove("c"))
}
