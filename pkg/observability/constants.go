package observability

const (
	AttrAgentName       = "agent.name"
	AttrThreadID        = "agent.thread_id"
	AttrToolName        = "tool.name"
	AttrToolCallID      = "tool.call_id"
	AttrLLMModel        = "llm.model"
	AttrLLMTokensInput  = "llm.tokens.input"
	AttrLLMTokensOutput = "llm.tokens.output"
	AttrLLMFinishReason = "llm.finish_reason"
	AttrErrorType       = "error.type"
	AttrSinkBackend     = "sink.backend"

	SpanAgentRun      = "agent.run"
	SpanLLMCall       = "agent.llm_call"
	SpanToolExecution = "agent.tool_execution"
	SpanSinkWrite     = "telemetry.sink_write"

	DefaultServiceName  = "langsketch"
	DefaultSamplingRate = 1.0
	DefaultOTLPEndpoint = "localhost:4317"
	DefaultMetricsPath  = "/metrics"
)
