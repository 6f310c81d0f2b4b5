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

package apitool

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kadirpekel/langsketch/pkg/config"
	"github.com/kadirpekel/langsketch/pkg/httpclient"
	"github.com/kadirpekel/langsketch/pkg/schema"
	"github.com/kadirpekel/langsketch/pkg/tool"
)

type captured struct {
	method string
	query  map[string][]string
	header http.Header
	body   map[string]any
}

func recordingServer(t *testing.T, status int, response string) (*httptest.Server, *captured) {
	t.Helper()
	got := &captured{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.query = r.URL.Query()
		got.header = r.Header.Clone()
		if data, _ := io.ReadAll(r.Body); len(data) > 0 {
			require.NoError(t, json.Unmarshal(data, &got.body))
		}
		w.WriteHeader(status)
		_, _ = io.WriteString(w, response)
	}))
	t.Cleanup(srv.Close)
	return srv, got
}

func TestCall_PostSendsBodyAndQuery(t *testing.T) {
	srv, got := recordingServer(t, http.StatusOK, `{"id":1,"ok":true}`)

	api := config.APIConfig{
		Name:    "Create Order",
		URL:     srv.URL + "/orders",
		Method:  http.MethodPost,
		Headers: map[string]string{"X-Client": "langsketch"},
		Queries: map[string]string{"v": "2"},
		Auth:    config.AuthConfig{Type: config.AuthAPIKey, In: config.AuthInHeader, Field: "X-Api-Key", APIKey: "secret"},
	}
	orders, err := New(api)
	require.NoError(t, err)
	assert.Equal(t, "Create_Order", orders.Name())

	out, err := orders.Call(context.Background(), map[string]any{
		"payload": map[string]any{"item": "book", "qty": 2},
		"params":  map[string]any{"dry_run": "1"},
	})
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"id\": 1,\n  \"ok\": true\n}", out)

	assert.Equal(t, http.MethodPost, got.method)
	assert.Equal(t, map[string]any{"item": "book", "qty": 2.0}, got.body)
	assert.Equal(t, []string{"2"}, got.query["v"])
	assert.Equal(t, []string{"1"}, got.query["dry_run"])
	assert.Equal(t, "secret", got.header.Get("X-Api-Key"))
	assert.Equal(t, "langsketch", got.header.Get("X-Client"))
}

func TestCall_GetMergesPayloadIntoQuery(t *testing.T) {
	srv, got := recordingServer(t, http.StatusOK, "plain text")

	api := config.APIConfig{
		Name:   "weather",
		URL:    srv.URL,
		Method: http.MethodGet,
		Auth:   config.AuthConfig{Type: config.AuthAPIKey, Field: "key", APIKey: "k1"},
	}
	weather, err := New(api)
	require.NoError(t, err)

	out, err := weather.Call(context.Background(), map[string]any{
		"payload": map[string]any{"city": "Paris"},
		"params":  map[string]any{"units": "metric"},
	})
	require.NoError(t, err)
	assert.Equal(t, "plain text", out)
	assert.Nil(t, got.body)
	assert.Equal(t, []string{"Paris"}, got.query["city"])
	assert.Equal(t, []string{"metric"}, got.query["units"])
	assert.Equal(t, []string{"k1"}, got.query["key"])
}

func TestCall_ErrorStatusIsText(t *testing.T) {
	srv, _ := recordingServer(t, http.StatusNotFound, "no such thing")

	api := config.APIConfig{Name: "lookup", URL: srv.URL, Method: http.MethodGet, Auth: config.AuthConfig{Type: config.AuthNone}}
	lookup, err := New(api)
	require.NoError(t, err)

	out, err := lookup.Call(context.Background(), map[string]any{})
	require.NoError(t, err)
	assert.Equal(t, "API Error 404: no such thing", out)
}

func TestCall_TransportErrorIsText(t *testing.T) {
	srv, _ := recordingServer(t, http.StatusOK, "")
	srv.Close()

	api := config.APIConfig{Name: "gone", URL: srv.URL, Method: http.MethodGet, Auth: config.AuthConfig{Type: config.AuthNone}}
	gone, err := New(api)
	require.NoError(t, err)

	out, err := gone.Call(context.Background(), map[string]any{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Request Error"), out)
}

func TestCall_InjectedClientKeepsTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)

	api := config.APIConfig{Name: "Slow", URL: srv.URL, Method: "GET"}
	tl, err := New(api,
		WithClient(httpclient.New(httpclient.WithMaxRetries(0))),
		WithTimeout(50*time.Millisecond))
	require.NoError(t, err)

	start := time.Now()
	out, err := tl.Call(context.Background(), map[string]any{})
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Request Error: "), out)
	assert.Less(t, time.Since(start), time.Second)
}

func TestCall_RejectsUnknownArguments(t *testing.T) {
	api := config.APIConfig{Name: "x", URL: "http://localhost", Method: http.MethodGet, Auth: config.AuthConfig{Type: config.AuthNone}}
	x, err := New(api)
	require.NoError(t, err)

	_, err = x.Call(context.Background(), map[string]any{"body": "nope"})
	assert.ErrorIs(t, err, schema.ErrInputValidation)
}

func TestNew_Incomplete(t *testing.T) {
	_, err := New(config.APIConfig{Name: "x", Method: http.MethodGet})
	assert.ErrorIs(t, err, tool.ErrToolLoadFailed)
}

func TestDescriptor(t *testing.T) {
	desc := Descriptor(config.APIConfig{
		Name:        "Stock Quote",
		Description: "Latest quote",
		Example:     &config.APIExampleConfig{Usage: `{"params": {"symbol": "ACME"}}`},
	})
	assert.Equal(t, config.BackendAPI, desc.Backend())
	assert.Equal(t, "stock_quote", desc.FunctionName)
	assert.Equal(t, "Latest quote\nExample usage: {\"params\": {\"symbol\": \"ACME\"}}", desc.Description)
	assert.Equal(t, []string{"payload", "params"}, []string{desc.Inputs.Fields[0].Name, desc.Inputs.Fields[1].Name})
	assert.False(t, desc.Inputs.Fields[0].IsRequired())
	assert.Equal(t, "response", desc.Output.Fields[0].Name)
}
