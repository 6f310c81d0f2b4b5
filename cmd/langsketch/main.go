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

// Command langsketch runs declaratively configured agents.
//
// Usage:
//
//	langsketch run converter --root ./project --input '{"distance": "9 km"}'
//	langsketch validate agents/*.json
//	langsketch describe converter
//	langsketch upload ./audit/converter_output_json.json --warehouse databricks
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"github.com/kadirpekel/langsketch"
	"github.com/kadirpekel/langsketch/pkg/config"
)

// CLI defines the command-line interface.
type CLI struct {
	Run       RunCmd       `cmd:"" help:"Run an agent on one input."`
	Validate  ValidateCmd  `cmd:"" help:"Validate agent configuration files."`
	Describe  DescribeCmd  `cmd:"" help:"Show the tools, schemas and routed model of an agent."`
	Utilities UtilitiesCmd `cmd:"" help:"List the built-in utilities."`
	Schema    SchemaCmd    `cmd:"" help:"Print the JSON Schema of agent configuration files."`
	Upload    UploadCmd    `cmd:"" help:"Replay an audit file into the warehouse."`
	Version   VersionCmd   `cmd:"" help:"Show version information."`

	Root      string `short:"r" help:"Project root containing the agents directory." type:"path" default:"." env:"LANGSKETCH_ROOT"`
	LogLevel  string `help:"Log level (debug, info, warn, error)." default:"info" env:"LOG_LEVEL"`
	LogFile   string `help:"Log file path (empty = stderr)." env:"LOG_FILE"`
	LogFormat string `help:"Log format (simple, verbose, json)." default:"simple" env:"LOG_FORMAT" enum:"simple,verbose,json"`
}

// VersionCmd shows version information.
type VersionCmd struct {
	JSON bool `help:"Print as JSON."`
}

func (c *VersionCmd) Run() error {
	info := langsketch.GetVersion()
	if c.JSON {
		return printJSON(info)
	}
	fmt.Println(info.String())
	return nil
}

func main() {
	if err := config.LoadEnvFiles(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: %v\n", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cli := CLI{}
	kctx := kong.Parse(&cli,
		kong.Name("langsketch"),
		kong.Description("Run declaratively configured agents and ship their telemetry."),
		kong.UsageOnError(),
		kong.BindTo(ctx, (*context.Context)(nil)),
	)

	cleanup, err := initLogger(cli.LogLevel, cli.LogFile, cli.LogFormat)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer cleanup()

	err = kctx.Run(&cli)
	kctx.FatalIfErrorf(err)
}
