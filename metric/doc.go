// Package metric provides Prometheus-based metrics collection and an HTTP
// server for engine monitoring and observability.
//
// The package offers a centralized metrics registry managing both core engine
// metrics (channel status, message processing, broker health) and custom
// connector-specific metrics. It includes an HTTP server exposing metrics in
// Prometheus format for monitoring system integration.
//
// # Architecture
//
// The package follows a three-layer design:
//
//  1. Core Metrics: Engine-level metrics automatically registered (Metrics type)
//  2. Component Registry: Extensible registration for connector-specific metrics (Registrar interface)
//  3. HTTP Server: Metrics endpoint with health checks (Server type)
//
// This separates infrastructure concerns (core metrics) from connector
// concerns (custom metrics) while providing a unified metrics endpoint.
//
// # Basic Usage
//
// Setting up metrics collection and the HTTP server:
//
//	registry := metric.NewMetricsRegistry()
//	server := metric.NewServer(9090, "/metrics", registry)
//
//	go func() {
//	    if err := server.Start(); err != nil {
//	        log.Printf("Metrics server error: %v", err)
//	    }
//	}()
//	defer server.Stop()
//
//	// Record core engine metrics
//	core := registry.CoreMetrics()
//	core.RecordChannelStatus("adt-inbound", 2) // 2 = running
//	core.RecordMessageReceived("adt-inbound")
//	core.RecordMessageProcessed("adt-inbound", "SENT")
//
// # Core Metrics
//
// The registry automatically registers engine metrics tracking:
//
//   - Channel lifecycle: channel_status (0=stopped, 1=starting, 2=running, 3=stopping, 4=failed)
//   - Message flow: messages_received_total, messages_processed_total
//   - Batch splitting: batch_units_total by mode
//   - Stage performance: pipeline_stage_duration_seconds by pipeline stage
//   - Script failures: script_errors_total by kind (compile, runtime, timeout)
//   - Dispatch outcomes: dispatch_attempts_total by destination and status
//   - Queueing: source_queue_depth per channel
//   - Response selection: response_selected_total by mode
//   - Broker connectivity: broker_connected, broker_reconnects_total
//
// All core metrics use the namespace "interlink":
//
//	interlink_channel_status{channel="..."}
//	interlink_messages_processed_total{channel="...",status="..."}
//	interlink_broker_connected
//
// # Component Metrics
//
// Connectors register custom collectors through the Registrar interface,
// which enables testing with mock registrars and loose coupling:
//
//	counter := prometheus.NewCounter(prometheus.CounterOpts{
//	    Name: "file_writes_total",
//	    Help: "Total file destination writes",
//	})
//	err := registry.RegisterCounter("file-destination", "file_writes_total", counter)
//
// Registration fails on duplicate component/name pairs and on conflicts with
// collectors already known to Prometheus.
//
// # Thread Safety
//
// All registry operations are safe for concurrent use. Metric recording is
// lock-free per the Prometheus client guarantees, and CoreMetrics() returns a
// shared instance safe to record from any goroutine.
package metric
