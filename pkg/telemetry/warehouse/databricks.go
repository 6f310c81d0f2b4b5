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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/kadirpekel/langsketch/pkg/httpclient"
)

const (
	warehousesPath = "/api/2.0/sql/warehouses"
	statementsPath = "/api/2.0/sql/statements"
)

// Statement states reported by the statement execution API.
const (
	StateSucceeded = "SUCCEEDED"
	StatePending   = "PENDING"
	StateRunning   = "RUNNING"
	StateFailed    = "FAILED"
	StateCanceled  = "CANCELED"
	StateClosed    = "CLOSED"
)

// ErrNoWarehouse is returned when the workspace has no SQL warehouse.
var ErrNoWarehouse = errors.New("no warehouses available in workspace")

// DatabricksConfig configures a DatabricksExecutor.
type DatabricksConfig struct {
	Host  string
	Token string

	// WarehouseID pins a warehouse. Empty selects the first one listed.
	WarehouseID string

	// WaitTimeout is how long the API blocks for a result, between 5s
	// and 50s.
	WaitTimeout time.Duration

	HTTPClient *httpclient.Client
}

// DatabricksExecutor runs statements through the Databricks SQL statement
// execution API.
type DatabricksExecutor struct {
	host        string
	token       string
	waitTimeout time.Duration
	client      *httpclient.Client

	mu          sync.Mutex
	warehouseID string
	lookup      singleflight.Group
}

func NewDatabricksExecutor(cfg DatabricksConfig) *DatabricksExecutor {
	client := cfg.HTTPClient
	if client == nil {
		client = httpclient.New(httpclient.WithTimeout(60 * time.Second))
	}
	wait := cfg.WaitTimeout
	switch {
	case wait == 0:
		wait = 30 * time.Second
	case wait < 5*time.Second:
		wait = 5 * time.Second
	case wait > 50*time.Second:
		wait = 50 * time.Second
	}
	host := strings.TrimRight(cfg.Host, "/")
	if host != "" && !strings.Contains(host, "://") {
		host = "https://" + host
	}
	return &DatabricksExecutor{
		host:        host,
		token:       cfg.Token,
		waitTimeout: wait,
		client:      client,
		warehouseID: cfg.WarehouseID,
	}
}

func (e *DatabricksExecutor) Dialect() Dialect {
	return Databricks
}

type warehouseList struct {
	Warehouses []struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		State string `json:"state"`
	} `json:"warehouses"`
}

// WarehouseID returns the pinned warehouse or the first one the workspace
// lists. Concurrent lookups share one request and the result is cached.
func (e *DatabricksExecutor) WarehouseID(ctx context.Context) (string, error) {
	e.mu.Lock()
	id := e.warehouseID
	e.mu.Unlock()
	if id != "" {
		return id, nil
	}

	v, err, _ := e.lookup.Do(warehousesPath, func() (any, error) {
		return e.discoverWarehouse(ctx)
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

func (e *DatabricksExecutor) discoverWarehouse(ctx context.Context) (string, error) {
	var list warehouseList
	if err := e.call(ctx, http.MethodGet, warehousesPath, nil, &list); err != nil {
		return "", fmt.Errorf("failed to list warehouses: %w", err)
	}
	if len(list.Warehouses) == 0 {
		return "", ErrNoWarehouse
	}

	e.mu.Lock()
	e.warehouseID = list.Warehouses[0].ID
	e.mu.Unlock()
	slog.Info("Using warehouse", "warehouse_id", list.Warehouses[0].ID, "name", list.Warehouses[0].Name)
	return list.Warehouses[0].ID, nil
}

type statementRequest struct {
	WarehouseID string `json:"warehouse_id"`
	Statement   string `json:"statement"`
	WaitTimeout string `json:"wait_timeout"`
}

type statementResponse struct {
	StatementID string `json:"statement_id"`
	Status      struct {
		State string `json:"state"`
		Error *struct {
			ErrorCode string `json:"error_code"`
			Message   string `json:"message"`
		} `json:"error,omitempty"`
	} `json:"status"`
	Result *struct {
		DataArray [][]*string `json:"data_array"`
	} `json:"result,omitempty"`
}

func (e *DatabricksExecutor) Exec(ctx context.Context, statement string) error {
	_, err := e.execute(ctx, statement)
	return err
}

func (e *DatabricksExecutor) Query(ctx context.Context, statement string) ([][]string, error) {
	resp, err := e.execute(ctx, statement)
	if err != nil {
		return nil, err
	}
	if resp.Result == nil {
		return nil, nil
	}
	rows := make([][]string, 0, len(resp.Result.DataArray))
	for _, raw := range resp.Result.DataArray {
		row := make([]string, len(raw))
		for i, v := range raw {
			if v != nil {
				row[i] = *v
			}
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (e *DatabricksExecutor) Close() error {
	return nil
}

func (e *DatabricksExecutor) execute(ctx context.Context, statement string) (*statementResponse, error) {
	id, err := e.WarehouseID(ctx)
	if err != nil {
		return nil, err
	}

	req := statementRequest{
		WarehouseID: id,
		Statement:   statement,
		WaitTimeout: fmt.Sprintf("%ds", int(e.waitTimeout.Seconds())),
	}
	var resp statementResponse
	if err := e.call(ctx, http.MethodPost, statementsPath, req, &resp); err != nil {
		return nil, fmt.Errorf("statement execution failed: %w", err)
	}

	switch resp.Status.State {
	case StateSucceeded:
		return &resp, nil
	case StatePending, StateRunning:
		slog.Debug("Statement still running after wait timeout",
			"statement_id", resp.StatementID, "state", resp.Status.State)
		return &resp, nil
	default:
		msg := "unknown error"
		if resp.Status.Error != nil {
			msg = resp.Status.Error.Message
		}
		return nil, fmt.Errorf("statement %s %s: %s", resp.StatementID, strings.ToLower(resp.Status.State), msg)
	}
}

func (e *DatabricksExecutor) call(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, e.host+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+e.token)
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := e.client.Do(req)
	if err != nil {
		if resp != nil {
			defer resp.Body.Close()
			data, _ := io.ReadAll(resp.Body)
			if len(data) > 0 {
				return fmt.Errorf("request failed: %w - response: %s", err, strings.TrimSpace(string(data)))
			}
		}
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
