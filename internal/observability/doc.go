// Package observability provides metrics, structured logging, and
// distributed tracing for toolmind's Tool Store, Sandboxed Executor, LLM
// Oracle Adapter, Reasoning Agent, and Streaming Orchestrator.
//
// # Overview
//
// The package implements the three pillars of observability:
//
//  1. Metrics - Prometheus counters and histograms for search, sandbox
//     execution, oracle requests, agent iterations, and HTTP traffic.
//  2. Logging - Structured logs via log/slog with sensitive data redaction.
//  3. Tracing - Distributed request tracing with OpenTelemetry.
//
// # Metrics
//
// Metrics are implemented using the Prometheus client library and track:
//   - Tool Store search outcomes and latency (RecordSearch)
//   - Bug reports and catalog mutations (RecordBugReport, RecordMutation)
//   - Sandboxed executor runs and warm pool size (RecordSandboxExecution,
//     SetSandboxPoolWarm)
//   - LLM Oracle request latency and credential rotations
//     (RecordOracleRequest, RecordCredentialRotation)
//   - Reasoning Agent iteration counts and question outcomes
//     (RecordAgentIteration, RecordAgentOutcome)
//   - HTTP and streaming connection counts (RecordHTTPRequest,
//     StreamOpened, StreamClosed)
//   - Per-component error counts (RecordError)
//
// Example usage:
//
//	metrics := observability.NewMetrics()
//
//	start := time.Now()
//	hits, err := store.Search(ctx, query, opts)
//	outcome := "hit"
//	if err != nil {
//	    outcome = "error"
//	}
//	metrics.RecordSearch(outcome, time.Since(start).Seconds())
//
// # Logging
//
// Logging is built on Go's slog package with enhancements for:
//   - Automatic request ID correlation from context
//   - Sensitive data redaction (API keys, passwords, tokens)
//   - JSON output for production, text for development
//   - Configurable log levels
//
// Example usage:
//
//	logger := observability.NewLogger(observability.LogConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    AddSource: true,
//	})
//
//	ctx := observability.AddRequestID(ctx, requestID)
//
//	logger.Info(ctx, "tool executed",
//	    "tool", tool.Name,
//	    "outcome", result.Outcome,
//	)
//
//	logger.Error(ctx, "oracle request failed",
//	    "error", err,
//	    "provider", "anthropic",
//	    "api_key", apiKey, // Automatically redacted
//	)
//
// # Tracing
//
// Distributed tracing uses OpenTelemetry to track requests across
// components:
//
//	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
//	    ServiceName:    "toolmind",
//	    ServiceVersion: "1.0.0",
//	    Environment:    "production",
//	    Endpoint:       "localhost:4317", // OTLP collector
//	    SamplingRate:   0.1,              // Sample 10% of traces
//	})
//	defer shutdown(context.Background())
//
//	ctx, span := tracer.TraceQuestion(ctx, questionID)
//	defer span.End()
//
//	ctx, oracleSpan := tracer.TraceOracleRequest(ctx, "anthropic", "claude-sonnet")
//	defer oracleSpan.End()
//	if err != nil {
//	    tracer.RecordError(oracleSpan, err)
//	}
//
//	ctx, toolSpan := tracer.TraceToolExecution(ctx, tool.Name)
//	defer toolSpan.End()
//
// # Context Propagation
//
// All three components integrate with Go's context for automatic
// correlation:
//
//	ctx = observability.AddRequestID(ctx, "req-123")
//	ctx = observability.AddSessionID(ctx, "sess-456")
//	ctx = observability.AddUserID(ctx, "user-789")
//
//	logger.Info(ctx, "handling ask") // includes request_id, session_id, etc.
//
//	ctx, span := tracer.Start(ctx, "operation")
//	// trace context propagates to child spans
//
// # Security Considerations
//
// The logging component automatically redacts:
//   - API keys (Anthropic, OpenAI, generic)
//   - Passwords and secrets
//   - JWT tokens
//   - Bearer tokens
//   - Custom patterns via configuration
//
// Sensitive fields in maps are also redacted:
//   - password, passwd, pwd
//   - secret, api_key, apikey
//   - token, auth, authorization
//   - private_key, privatekey
//
// # Configuration
//
// All components support configuration via structs:
//
//	metrics := observability.NewMetrics() // no configuration needed
//
//	logger := observability.NewLogger(observability.LogConfig{
//	    Level:          os.Getenv("LOG_LEVEL"),
//	    Format:         "json",
//	    AddSource:      true,
//	    RedactPatterns: []string{`custom-secret-\d+`},
//	})
//
//	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
//	    ServiceName:    "toolmind",
//	    ServiceVersion: version,
//	    Environment:    env,
//	    Endpoint:       os.Getenv("OTEL_ENDPOINT"),
//	    SamplingRate:   0.1,
//	    Attributes: map[string]string{
//	        "deployment.region": region,
//	    },
//	})
//	defer shutdown(context.Background())
//
// # Monitoring Dashboard
//
// The metrics exposed can be used to build dashboards:
//
//	# Search throughput
//	rate(toolmind_toolstore_search_total[5m])
//
//	# Oracle request latency (95th percentile)
//	histogram_quantile(0.95, rate(toolmind_oracle_request_duration_seconds_bucket[5m]))
//
//	# Error rate
//	rate(toolmind_errors_total[5m])
//
//	# Active streaming connections
//	toolmind_streaming_connections
//
//	# Sandbox execution time
//	rate(toolmind_sandbox_execution_duration_seconds_sum[5m]) /
//	rate(toolmind_sandbox_execution_duration_seconds_count[5m])
//
// # Further Reading
//
//   - Prometheus best practices: https://prometheus.io/docs/practices/naming/
//   - OpenTelemetry specification: https://opentelemetry.io/docs/specs/otel/
//   - slog documentation: https://pkg.go.dev/log/slog
package observability
