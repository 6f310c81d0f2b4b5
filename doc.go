// Package langsketch runs declaratively configured agents.
//
// An agent is described by a JSON file under <root>/agents/<name>.json:
// identity, input and output fields, enabled utilities, script tools and
// HTTP APIs. The runner derives schemas from the field lists, routes the
// agent to a model, assembles its tools and drives a tool-calling
// reasoning loop. Every run yields a mapping keyed by the output fields and
// one telemetry record.
//
// # Quick Start
//
// Install the CLI:
//
//	go install github.com/kadirpekel/langsketch/cmd/langsketch@latest
//
// Point it at an OpenAI-compatible endpoint and run an agent:
//
//	export DEIMOS_API_URL=https://router.example.com/v1
//	export DEIMOS_API_KEY=...
//	langsketch run converter --root ./project --input '{"distance": "9 km"}'
//
// Records are written to <agent>_output_json.json when --audit-dir is set
// and to a warehouse selected with --warehouse (databricks or sql).
//
// # Packages
//
//   - pkg/config: agent configuration, credentials, warehouse settings
//   - pkg/schema: derived schemas, input validation, output coercion
//   - pkg/tool: tool contract and the builtin, script and HTTP backends
//   - pkg/router: rule-based model selection
//   - pkg/agent: the reasoning loop
//   - pkg/runtime: AgentRuntime, which ties everything together
//   - pkg/telemetry: execution records and sinks
package langsketch
