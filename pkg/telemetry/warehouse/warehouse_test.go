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
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/langsketch/pkg/config"
	"github.com/kadirpekel/langsketch/pkg/httpclient"
)

func TestDialect(t *testing.T) {
	assert.Equal(t, "default.agent_logs4", Databricks.Table("default.agent_logs4"))
	assert.Equal(t, "agent_logs4", SQLite.Table("default.agent_logs4"))
	assert.Equal(t, "logs", Postgres.Table("logs"))

	assert.Equal(t, "STRING", Databricks.ColumnType("STRING"))
	assert.Equal(t, "DOUBLE PRECISION", Postgres.ColumnType("DOUBLE"))
	assert.Equal(t, "REAL", SQLite.ColumnType("DOUBLE"))
	assert.Equal(t, "BIGINT", MySQL.ColumnType("BIGINT"))

	d, err := DialectFor("sqlite3")
	require.NoError(t, err)
	assert.Equal(t, SQLite.Name, d.Name)

	_, err = DialectFor("oracle")
	assert.Error(t, err)
}

func TestSQLExecutor_SQLite(t *testing.T) {
	ctx := context.Background()
	exec, err := NewSQLExecutor(ctx, nil, &config.DatabaseConfig{Driver: "sqlite", Database: ":memory:"})
	require.NoError(t, err)
	defer exec.Close()

	assert.Equal(t, "sqlite", exec.Dialect().Name)
	require.NoError(t, exec.Exec(ctx, "CREATE TABLE t (name TEXT, n INTEGER, ok BOOLEAN)"))
	require.NoError(t, exec.Exec(ctx, "INSERT INTO t VALUES ('a', 1, true), (NULL, 2, false)"))

	rows, err := exec.Query(ctx, "SELECT name, n FROM t ORDER BY n")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "1"}, {"", "2"}}, rows)

	err = exec.Exec(ctx, "INSERT INTO missing VALUES (1)")
	assert.Error(t, err)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	exec, err := Open(ctx, config.WarehouseConfig{}, nil)
	require.NoError(t, err)
	assert.Nil(t, exec)

	_, err = Open(ctx, config.WarehouseConfig{Backend: config.WarehouseDatabricks}, nil)
	assert.ErrorIs(t, err, config.ErrNoCredentials)

	exec, err = Open(ctx, config.WarehouseConfig{
		Backend:  config.WarehouseSQL,
		Database: &config.DatabaseConfig{Driver: "sqlite", Database: ":memory:"},
	}, config.NewDBPool())
	require.NoError(t, err)
	assert.Equal(t, "sqlite", exec.Dialect().Name)
}

type fakeWorkspace struct {
	lists      atomic.Int32
	statements []statementRequest
	state      string
}

func (f *fakeWorkspace) handler(t *testing.T) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case warehousesPath:
			f.lists.Add(1)
			_, _ = w.Write([]byte(`{"warehouses": [{"id": "wh-1", "name": "Starter"}, {"id": "wh-2"}]}`))
		case statementsPath:
			var req statementRequest
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			f.statements = append(f.statements, req)
			if f.state == StateFailed {
				_, _ = w.Write([]byte(`{"statement_id": "s1", "status": {"state": "FAILED", "error": {"message": "TABLE_OR_VIEW_NOT_FOUND"}}}`))
				return
			}
			_, _ = w.Write([]byte(`{"statement_id": "s1", "status": {"state": "SUCCEEDED"}, "result": {"data_array": [["a", null, "3"]]}}`))
		default:
			http.NotFound(w, r)
		}
	})
}

func TestDatabricksExecutor(t *testing.T) {
	fake := &fakeWorkspace{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	exec := NewDatabricksExecutor(DatabricksConfig{Host: server.URL + "/", Token: "tok", WaitTimeout: 90 * time.Second})
	ctx := context.Background()

	require.NoError(t, exec.Exec(ctx, "CREATE TABLE x (a STRING)"))
	rows, err := exec.Query(ctx, "SELECT * FROM x")
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a", "", "3"}}, rows)

	assert.EqualValues(t, 1, fake.lists.Load())
	require.Len(t, fake.statements, 2)
	assert.Equal(t, "wh-1", fake.statements[0].WarehouseID)
	assert.Equal(t, "50s", fake.statements[0].WaitTimeout)
	assert.Equal(t, "CREATE TABLE x (a STRING)", fake.statements[0].Statement)

	fake.state = StateFailed
	err = exec.Exec(ctx, "SELECT 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "TABLE_OR_VIEW_NOT_FOUND")
}

func TestDatabricksExecutor_PinnedWarehouse(t *testing.T) {
	fake := &fakeWorkspace{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	exec := NewDatabricksExecutor(DatabricksConfig{Host: server.URL, Token: "tok", WarehouseID: "pinned"})
	require.NoError(t, exec.Exec(context.Background(), "SELECT 1"))
	assert.EqualValues(t, 0, fake.lists.Load())
	assert.Equal(t, "pinned", fake.statements[0].WarehouseID)
	assert.Equal(t, "30s", fake.statements[0].WaitTimeout)
}

func TestDatabricksExecutor_ConcurrentLookup(t *testing.T) {
	fake := &fakeWorkspace{}
	server := httptest.NewServer(fake.handler(t))
	defer server.Close()

	exec := NewDatabricksExecutor(DatabricksConfig{Host: server.URL, Token: "tok"})
	ids := make([]string, 8)
	var wg sync.WaitGroup
	for i := range ids {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id, err := exec.WarehouseID(context.Background())
			assert.NoError(t, err)
			ids[i] = id
		}()
	}
	wg.Wait()

	for _, id := range ids {
		assert.Equal(t, "wh-1", id)
	}
	id, err := exec.WarehouseID(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "wh-1", id)
	assert.LessOrEqual(t, fake.lists.Load(), int32(len(ids)))
}

func TestDatabricksExecutor_NoWarehouse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer server.Close()

	exec := NewDatabricksExecutor(DatabricksConfig{Host: server.URL, Token: "tok"})
	err := exec.Exec(context.Background(), "SELECT 1")
	assert.ErrorIs(t, err, ErrNoWarehouse)
}

func TestDatabricksExecutor_HTTPError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"message": "invalid token"}`))
	}))
	defer server.Close()

	exec := NewDatabricksExecutor(DatabricksConfig{
		Host:       server.URL,
		Token:      "bad",
		HTTPClient: httpclient.New(httpclient.WithMaxRetries(0)),
	})
	err := exec.Exec(context.Background(), "SELECT 1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid token")
}
