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

package runtime

import (
	"context"
	"fmt"

	"github.com/kadirpekel/langsketch/pkg/config"
	"github.com/kadirpekel/langsketch/pkg/observability"
	"github.com/kadirpekel/langsketch/pkg/telemetry"
	"github.com/kadirpekel/langsketch/pkg/telemetry/warehouse"
)

// Build loads <root>/agents/<name>.json and assembles its runtime. Script
// tool paths resolve against root unless opts.BaseDir is set.
func Build(ctx context.Context, root, name string, opts Options) (*AgentRuntime, error) {
	cfg, err := config.LoadAgent(root, name)
	if err != nil {
		return nil, err
	}
	if opts.BaseDir == "" {
		opts.BaseDir = root
	}
	return New(ctx, cfg, opts)
}

// OpenSink connects the warehouse selected by cfg. The none backend
// yields telemetry.Discard. The returned close function releases the
// connection.
func OpenSink(ctx context.Context, cfg config.WarehouseConfig, pool *config.DBPool, tracer *observability.Tracer, metrics observability.Metrics) (telemetry.Sink, func() error, error) {
	exec, err := warehouse.Open(ctx, cfg, pool)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open warehouse: %w", err)
	}
	if exec == nil {
		return telemetry.Discard, func() error { return nil }, nil
	}
	sink := telemetry.NewWarehouseSink(exec,
		telemetry.WithTable(cfg.Table),
		telemetry.WithTracer(tracer),
		telemetry.WithMetrics(metrics))
	return sink, exec.Close, nil
}
