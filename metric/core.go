package metric

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the engine-level metrics every channel reports into.
// Channel-specific dimensions are labels, not separate collectors.
type Metrics struct {
	// Channel lifecycle
	ChannelStatus *prometheus.GaugeVec

	// Message flow
	MessagesReceived  *prometheus.CounterVec
	MessagesProcessed *prometheus.CounterVec
	BatchUnits        *prometheus.CounterVec
	StageDuration     *prometheus.HistogramVec

	// Script execution
	ScriptErrors *prometheus.CounterVec

	// Destinations
	Dispatches *prometheus.CounterVec
	QueueDepth *prometheus.GaugeVec

	// Responses
	ResponsesSelected *prometheus.CounterVec

	// Broker connection
	BrokerConnected  prometheus.Gauge
	BrokerReconnects prometheus.Counter
}

// NewMetrics creates all engine metrics. Collectors are created unregistered;
// the registry wires them to Prometheus.
func NewMetrics() *Metrics {
	return &Metrics{
		ChannelStatus: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "interlink",
				Subsystem: "channel",
				Name:      "status",
				Help:      "Channel status (0=stopped, 1=starting, 2=running, 3=stopping, 4=failed)",
			},
			[]string{"channel"},
		),

		MessagesReceived: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "interlink",
				Subsystem: "messages",
				Name:      "received_total",
				Help:      "Raw payloads accepted by source connectors",
			},
			[]string{"channel"},
		),

		MessagesProcessed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "interlink",
				Subsystem: "messages",
				Name:      "processed_total",
				Help:      "Messages finishing the pipeline, by final status",
			},
			[]string{"channel", "status"},
		),

		BatchUnits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "interlink",
				Subsystem: "batch",
				Name:      "units_total",
				Help:      "Units produced by batch splitting, by strategy",
			},
			[]string{"channel", "mode"},
		),

		StageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "interlink",
				Subsystem: "pipeline",
				Name:      "stage_duration_seconds",
				Help:      "Time spent per pipeline stage",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"channel", "stage"},
		),

		ScriptErrors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "interlink",
				Subsystem: "script",
				Name:      "errors_total",
				Help:      "Script failures by kind (compile, runtime, timeout)",
			},
			[]string{"channel", "kind"},
		),

		Dispatches: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "interlink",
				Subsystem: "dispatch",
				Name:      "attempts_total",
				Help:      "Destination dispatch outcomes, by destination and status",
			},
			[]string{"channel", "destination", "status"},
		),

		QueueDepth: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "interlink",
				Subsystem: "source",
				Name:      "queue_depth",
				Help:      "Payloads waiting for a processing slot",
			},
			[]string{"channel"},
		),

		ResponsesSelected: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "interlink",
				Subsystem: "response",
				Name:      "selected_total",
				Help:      "Responses returned to callers, by selection mode",
			},
			[]string{"channel", "mode"},
		),

		BrokerConnected: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "interlink",
				Subsystem: "broker",
				Name:      "connected",
				Help:      "Broker connection status (0=disconnected, 1=connected)",
			},
		),

		BrokerReconnects: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: "interlink",
				Subsystem: "broker",
				Name:      "reconnects_total",
				Help:      "Broker reconnections since start",
			},
		),
	}
}

// RecordChannelStatus updates a channel's lifecycle gauge.
func (m *Metrics) RecordChannelStatus(channel string, status int) {
	m.ChannelStatus.WithLabelValues(channel).Set(float64(status))
}

// RecordMessageReceived counts one accepted raw payload.
func (m *Metrics) RecordMessageReceived(channel string) {
	m.MessagesReceived.WithLabelValues(channel).Inc()
}

// RecordMessageProcessed counts one message reaching a final status.
func (m *Metrics) RecordMessageProcessed(channel, status string) {
	m.MessagesProcessed.WithLabelValues(channel, status).Inc()
}

// RecordBatchUnit counts one unit emitted by a splitter.
func (m *Metrics) RecordBatchUnit(channel, mode string) {
	m.BatchUnits.WithLabelValues(channel, mode).Inc()
}

// RecordStageDuration records time spent in one pipeline stage.
func (m *Metrics) RecordStageDuration(channel, stage string, d time.Duration) {
	m.StageDuration.WithLabelValues(channel, stage).Observe(d.Seconds())
}

// RecordScriptError counts one script failure of the given kind.
func (m *Metrics) RecordScriptError(channel, kind string) {
	m.ScriptErrors.WithLabelValues(channel, kind).Inc()
}

// RecordDispatch counts one destination dispatch outcome.
func (m *Metrics) RecordDispatch(channel, destination, status string) {
	m.Dispatches.WithLabelValues(channel, destination, status).Inc()
}

// RecordQueueDepth updates a channel's processing-queue gauge.
func (m *Metrics) RecordQueueDepth(channel string, depth int) {
	m.QueueDepth.WithLabelValues(channel).Set(float64(depth))
}

// RecordResponseSelected counts one response returned to a caller.
func (m *Metrics) RecordResponseSelected(channel, mode string) {
	m.ResponsesSelected.WithLabelValues(channel, mode).Inc()
}

// RecordBrokerStatus updates the broker connection gauge.
func (m *Metrics) RecordBrokerStatus(connected bool) {
	value := 0.0
	if connected {
		value = 1.0
	}
	m.BrokerConnected.Set(value)
}

// RecordBrokerReconnect counts one broker reconnection.
func (m *Metrics) RecordBrokerReconnect() {
	m.BrokerReconnects.Inc()
}
