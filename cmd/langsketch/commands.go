// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/kadirpekel/langsketch/pkg/config"
	"github.com/kadirpekel/langsketch/pkg/router"
	"github.com/kadirpekel/langsketch/pkg/runtime"
	"github.com/kadirpekel/langsketch/pkg/schema"
	"github.com/kadirpekel/langsketch/pkg/telemetry"
	"github.com/kadirpekel/langsketch/pkg/tool"
	"github.com/kadirpekel/langsketch/pkg/utility"
)

// RunCmd runs an agent once and prints its output.
type RunCmd struct {
	Agent string `arg:"" help:"Agent name, resolved to <root>/agents/<name>.json."`
	Input string `short:"i" help:"Input JSON object or list, @file to read a file, - for stdin." default:"-"`

	Router         string `help:"Router used to pick the model." default:"agent-intelligence-router"`
	Model          string `help:"Skip routing and use this model."`
	AuditDir       string `name:"audit-dir" help:"Append records to <dir>/<agent>_output_json.json." type:"path" default:"."`
	NoAudit        bool   `name:"no-audit" help:"Do not keep the audit file."`
	MaxIterations  int    `name:"max-iterations" help:"Bound on reasoning rounds." default:"10"`
	EstimateTokens bool   `name:"estimate-tokens" help:"Count tokens locally when the provider reports no usage."`
	Record         bool   `help:"Print the telemetry record after the output."`

	WarehouseFlags `embed:""`
	ObserveFlags   `embed:""`
}

func (c *RunCmd) Run(ctx context.Context, cli *CLI) error {
	input, err := readInput(c.Input)
	if err != nil {
		return err
	}

	obs, stopObs, err := c.ObserveFlags.start(ctx)
	if err != nil {
		return err
	}
	defer stopObs()

	sink, closeSink, err := c.WarehouseFlags.openSink(ctx, cli.Root, obs)
	if err != nil {
		return err
	}
	defer closeSink()

	opts := runtime.Options{
		RouterName:     c.Router,
		Sink:           sink,
		AuditDir:       c.AuditDir,
		NoAudit:        c.NoAudit,
		MaxIterations:  c.MaxIterations,
		EstimateTokens: c.EstimateTokens,
		Tracer:         obs.Tracer(),
		Metrics:        obs.Metrics(),
	}
	if c.Model != "" {
		llm, err := runtime.DefaultModelFactory(config.ProviderFromEnv())(c.Model)
		if err != nil {
			return err
		}
		opts.Model = llm
	}

	rt, err := runtime.Build(ctx, cli.Root, c.Agent, opts)
	if err != nil {
		return err
	}

	if err := printJSON(rt.Run(ctx, input)); err != nil {
		return err
	}
	if c.Record {
		if exec := rt.LastExecution(); exec != nil {
			return printJSON(exec.Record)
		}
	}
	return nil
}

// readInput decodes the run input. A top-level list becomes an array
// input.
func readInput(src string) (map[string]any, error) {
	var (
		data []byte
		err  error
	)
	switch {
	case src == "-":
		data, err = io.ReadAll(os.Stdin)
	case strings.HasPrefix(src, "@"):
		data, err = os.ReadFile(strings.TrimPrefix(src, "@"))
	default:
		data = []byte(src)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read input: %w", err)
	}

	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("input is not valid JSON: %w", err)
	}
	switch v := raw.(type) {
	case map[string]any:
		return v, nil
	case []any:
		return map[string]any{schema.ArrayInputKey: v}, nil
	default:
		return nil, fmt.Errorf("input must be a JSON object or list, got %T", raw)
	}
}

// ValidateCmd validates agent configuration files.
type ValidateCmd struct {
	Files  []string `arg:"" optional:"" help:"Configuration files. Defaults to every file under <root>/agents." type:"path"`
	Format string   `short:"f" help:"Output format: compact, json." default:"compact" enum:"compact,json"`
}

type validationResult struct {
	File   string   `json:"file"`
	Valid  bool     `json:"valid"`
	Issues []string `json:"issues,omitempty"`
}

func (c *ValidateCmd) Run(cli *CLI) error {
	files := c.Files
	if len(files) == 0 {
		matches, err := filepath.Glob(filepath.Join(cli.Root, config.AgentsDir, "*.json"))
		if err != nil {
			return err
		}
		files = matches
	}
	if len(files) == 0 {
		return fmt.Errorf("no agent configurations found under %s", filepath.Join(cli.Root, config.AgentsDir))
	}

	results := make([]validationResult, 0, len(files))
	failed := 0
	for _, file := range files {
		res := validationResult{File: file, Valid: true}
		if _, err := config.LoadFile(file); err != nil {
			res.Valid = false
			failed++
			var verr *config.ValidationError
			if errors.As(err, &verr) {
				for _, issue := range verr.Issues {
					res.Issues = append(res.Issues, issue.String())
				}
			} else {
				res.Issues = []string{err.Error()}
			}
		}
		results = append(results, res)
	}

	if c.Format == "json" {
		if err := printJSON(results); err != nil {
			return err
		}
	} else {
		for _, res := range results {
			if res.Valid {
				fmt.Printf("%s: valid\n", res.File)
				continue
			}
			fmt.Fprintf(os.Stderr, "%s: invalid\n", res.File)
			for _, issue := range res.Issues {
				fmt.Fprintf(os.Stderr, "  - %s\n", issue)
			}
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d configurations are invalid", failed, len(files))
	}
	return nil
}

// DescribeCmd prints what an agent resolves to without running it.
type DescribeCmd struct {
	Agent  string `arg:"" help:"Agent name."`
	Router string `help:"Router used to pick the model." default:"agent-intelligence-router"`
	Route  bool   `help:"Ask the router for a model. Classifier rules may call the provider."`
}

func (c *DescribeCmd) Run(ctx context.Context, cli *CLI) error {
	cfg, err := config.LoadAgent(cli.Root, c.Agent)
	if err != nil {
		return err
	}

	fmt.Printf("Agent:       %s\n", cfg.Agent.Name)
	fmt.Printf("Description: %s\n", cfg.Agent.Description)

	in := schema.ForInput(cfg.Agent.Input)
	out := schema.ForOutput(cfg.Agent.Output)
	fmt.Printf("\nInput:\n%s\n", indent(in.Describe()))
	fmt.Printf("\nOutput:\n%s\n", indent(out.Describe()))

	fmt.Println("\nUtilities:")
	printList(cfg.Utilities)

	var declared []string
	for _, t := range cfg.Tools {
		declared = append(declared, fmt.Sprintf("%s (%s)", tool.NormalizeName(t.Name), t.Backend()))
	}
	for _, api := range cfg.APIs {
		declared = append(declared, fmt.Sprintf("%s (%s %s)", tool.NormalizeName(api.Name), api.Method, api.URL))
	}
	fmt.Println("\nTools:")
	printList(declared)

	if !c.Route {
		return nil
	}
	router.Setup()
	router.Default().SetClassifierFactory(runtime.ClassifierFactory(runtime.DefaultModelFactory(config.ProviderFromEnv())))
	rt, err := router.Get(c.Router)
	if err != nil {
		return err
	}
	model, err := rt.SelectModel(ctx, map[string]any{router.MessagesKey: router.Describe(cfg)})
	if err != nil {
		return err
	}
	fmt.Printf("\nModel:       %s (via %s)\n", model, c.Router)
	return nil
}

func indent(s string) string {
	return "  " + strings.ReplaceAll(strings.TrimRight(s, "\n"), "\n", "\n  ")
}

func printList(items []string) {
	if len(items) == 0 {
		fmt.Println("  (none)")
		return
	}
	for _, item := range items {
		fmt.Printf("  - %s\n", item)
	}
}

// UtilitiesCmd lists the built-in utilities.
type UtilitiesCmd struct {
	JSON bool `help:"Print the tool declarations as JSON."`
}

func (c *UtilitiesCmd) Run() error {
	catalog := utility.Catalog()
	if c.JSON {
		descs := make([]config.ToolConfig, len(catalog))
		for i, u := range catalog {
			descs[i] = u.Descriptor
		}
		return printJSON(descs)
	}
	for _, u := range catalog {
		fmt.Printf("%-15s %s\n", u.Key, u.Descriptor.Description)
	}
	return nil
}

// UploadCmd replays the records of an audit file into the warehouse.
type UploadCmd struct {
	File    string `arg:"" help:"Audit file written with --audit-dir." type:"existingfile"`
	Summary bool   `help:"Print the stored summaries of the uploaded agents afterwards." default:"true" negatable:""`

	WarehouseFlags `embed:""`
	ObserveFlags   `embed:""`
}

func (c *UploadCmd) Run(ctx context.Context, cli *CLI) error {
	if c.Warehouse == config.WarehouseNone {
		return errors.New("--warehouse is required for upload")
	}

	records, err := telemetry.ReadAudit(c.File)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No records to upload")
		return nil
	}

	obs, stopObs, err := c.ObserveFlags.start(ctx)
	if err != nil {
		return err
	}
	defer stopObs()

	sink, closeSink, err := c.WarehouseFlags.openSink(ctx, cli.Root, obs)
	if err != nil {
		return err
	}
	defer closeSink()

	if err := sink.Write(ctx, records...); err != nil {
		return err
	}
	fmt.Printf("Uploaded %d records from %s\n", len(records), c.File)

	ws, ok := sink.(*telemetry.WarehouseSink)
	if !c.Summary || !ok {
		return nil
	}

	agents := map[string]bool{}
	for _, r := range records {
		agents[r.AgentName] = true
	}
	names := make([]string, 0, len(agents))
	for name := range agents {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		summaries, err := ws.Summaries(ctx, name)
		if err != nil {
			return err
		}
		fmt.Printf("\n%s (%d stored runs in %s)\n", name, len(summaries), ws.Table())
		for _, s := range summaries {
			fmt.Printf("  most used: %-20s tools: %d calls: %d duration: %.3fs efficiency: %.2f\n",
				s.MostUsedTool, s.ToolsUsedCount, s.TotalToolCalls, s.DurationSeconds, s.EfficiencyScore)
		}
	}
	return nil
}
