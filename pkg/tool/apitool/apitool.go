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

// Package apitool exposes a declared HTTP endpoint as a tool.
//
// The tool takes two optional objects, payload and params. For POST, PUT
// and PATCH the payload is sent as the JSON body and params go to the
// query string; other methods put both in the query string. Failures are
// reported to the model as text rather than errors:
//
//	API Error 404: not found
//	Request Error: dial tcp ...
package apitool

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/kadirpekel/langsketch/pkg/config"
	"github.com/kadirpekel/langsketch/pkg/httpclient"
	"github.com/kadirpekel/langsketch/pkg/schema"
	"github.com/kadirpekel/langsketch/pkg/tool"
)

const (
	// DefaultTimeout bounds a single API call.
	DefaultTimeout = 30 * time.Second

	PayloadField  = "payload"
	ParamsField   = "params"
	ResponseField = "response"
)

var bodyMethods = []string{http.MethodPost, http.MethodPut, http.MethodPatch}

// Descriptor synthesizes the tool declaration of an API.
func Descriptor(api config.APIConfig) config.ToolConfig {
	optional := false
	required := true

	description := api.Description
	if api.Example != nil && strings.TrimSpace(api.Example.Usage) != "" {
		description = fmt.Sprintf("%s\nExample usage: %s", description, strings.TrimSpace(api.Example.Usage))
	}

	return config.ToolConfig{
		Name:        api.Name,
		Description: description,
		Inputs: config.ToolInputConfig{Fields: []config.FieldConfig{
			{Name: PayloadField, Type: "dict", Description: "JSON body for POST/PUT/PATCH, query parameters otherwise", Required: &optional},
			{Name: ParamsField, Type: "dict", Description: "Query parameters", Required: &optional},
		}},
		Output: config.ToolOutputConfig{Fields: []config.FieldConfig{
			{Name: ResponseField, Type: "string", Description: "Response body", Required: &required},
		}},
		CodePath:     config.CodePathAPI,
		FunctionName: strings.ReplaceAll(strings.ToLower(api.Name), " ", "_"),
	}
}

// Option configures an API tool.
type Option func(*apiTool)

// WithClient replaces the HTTP client. Calls keep the tool timeout.
func WithClient(client *httpclient.Client) Option {
	return func(t *apiTool) {
		t.client = client
	}
}

// WithTimeout bounds every call. Defaults to DefaultTimeout.
func WithTimeout(timeout time.Duration) Option {
	return func(t *apiTool) {
		t.timeout = timeout
	}
}

type apiTool struct {
	tool.Base
	api     config.APIConfig
	client  *httpclient.Client
	timeout time.Duration
}

// New builds a tool calling api. The declaration must be complete.
func New(api config.APIConfig, opts ...Option) (tool.Tool, error) {
	if !api.Complete() {
		return nil, fmt.Errorf("%w: api %q is missing name, url or method", tool.ErrToolLoadFailed, api.Name)
	}
	if _, err := url.Parse(api.URL); err != nil {
		return nil, fmt.Errorf("%w: api %q: %v", tool.ErrToolLoadFailed, api.Name, err)
	}

	desc := Descriptor(api)
	t := &apiTool{
		Base: tool.NewBase(desc.Name, desc.Description, schema.ForTool(desc.Inputs.Fields)),
		api:  api,
		client: httpclient.New(
			httpclient.WithTimeout(DefaultTimeout),
			httpclient.WithMaxRetries(0),
		),
		timeout: DefaultTimeout,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t, nil
}

func (t *apiTool) Call(ctx context.Context, args map[string]any) (string, error) {
	validated, err := t.ValidateArgs(args)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()

	req, err := t.buildRequest(ctx, asMap(validated[PayloadField]), asMap(validated[ParamsField]))
	if err != nil {
		return fmt.Sprintf("Request Error: %v", err), nil
	}

	start := time.Now()
	resp, err := t.client.Do(req)
	if resp == nil {
		slog.Warn("API call failed", "api", t.api.Name, "error", err)
		return fmt.Sprintf("Request Error: %v", err), nil
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return fmt.Sprintf("Request Error: %v", readErr), nil
	}

	slog.Debug("API call completed",
		"api", t.api.Name,
		"status", resp.StatusCode,
		"duration", time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Sprintf("API Error %d: %s", resp.StatusCode, string(body)), nil
	}
	return prettyJSON(body), nil
}

func (t *apiTool) buildRequest(ctx context.Context, payload, params map[string]any) (*http.Request, error) {
	method := strings.ToUpper(t.api.Method)

	u, err := url.Parse(t.api.URL)
	if err != nil {
		return nil, err
	}
	query := u.Query()
	for k, v := range t.api.Queries {
		query.Set(k, v)
	}

	headers := make(http.Header, len(t.api.Headers)+1)
	for k, v := range t.api.Headers {
		headers.Set(k, v)
	}

	if auth := t.api.Auth; auth.Type == config.AuthAPIKey && auth.APIKey != "" {
		if auth.In == config.AuthInHeader {
			headers.Set(auth.Field, auth.APIKey)
		} else {
			query.Set(auth.Field, auth.APIKey)
		}
	}

	var body io.Reader
	if slices.Contains(bodyMethods, method) {
		if payload == nil {
			payload = map[string]any{}
		}
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("encode payload: %w", err)
		}
		body = bytes.NewReader(data)
		headers.Set("Content-Type", "application/json")
	} else {
		setQuery(query, payload)
	}
	setQuery(query, params)
	u.RawQuery = query.Encode()

	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, err
	}
	req.Header = headers
	return req, nil
}

func setQuery(query url.Values, values map[string]any) {
	for k, v := range values {
		switch x := v.(type) {
		case nil:
		case []any:
			query.Del(k)
			for _, item := range x {
				query.Add(k, queryValue(item))
			}
		default:
			query.Set(k, queryValue(x))
		}
	}
}

func queryValue(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case bool:
		if x {
			return "True"
		}
		return "False"
	case map[string]any:
		data, _ := json.Marshal(x)
		return string(data)
	}
	return fmt.Sprint(v)
}

func prettyJSON(body []byte) string {
	var decoded any
	if err := json.Unmarshal(body, &decoded); err != nil {
		return string(body)
	}
	pretty, err := json.MarshalIndent(decoded, "", "  ")
	if err != nil {
		return string(body)
	}
	return string(pretty)
}

func asMap(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}
