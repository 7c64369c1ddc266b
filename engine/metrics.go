package engine

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/careroute/interlink/metric"
)

// engineMetrics holds Prometheus metrics for channel lifecycle operations.
// All record methods are nil-receiver safe so the engine runs unchanged
// when metrics are disabled.
type engineMetrics struct {
	// Lifecycle operations by channel and status (success/failure)
	deploys *prometheus.CounterVec
	starts  *prometheus.CounterVec
	stops   *prometheus.CounterVec

	// Operation latency by channel
	deployDuration *prometheus.HistogramVec
	startDuration  *prometheus.HistogramVec
	stopDuration   *prometheus.HistogramVec

	// Current number of running channels
	activeChannels prometheus.Gauge
}

// newEngineMetrics creates and registers engine metrics with the provided
// registry.
func newEngineMetrics(registry *metric.MetricsRegistry) (*engineMetrics, error) {
	if registry == nil {
		return nil, nil // metrics disabled
	}

	m := &engineMetrics{
		deploys: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "interlink",
			Subsystem: "engine",
			Name:      "deploys_total",
			Help:      "Total number of channel deploy operations",
		}, []string{"channel", "status"}), // status: success, failure

		starts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "interlink",
			Subsystem: "engine",
			Name:      "starts_total",
			Help:      "Total number of channel start operations",
		}, []string{"channel", "status"}),

		stops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "interlink",
			Subsystem: "engine",
			Name:      "stops_total",
			Help:      "Total number of channel stop operations",
		}, []string{"channel", "status"}),

		deployDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "interlink",
			Subsystem: "engine",
			Name:      "deploy_duration_seconds",
			Help:      "Channel deploy operation duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		}, []string{"channel"}),

		startDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "interlink",
			Subsystem: "engine",
			Name:      "start_duration_seconds",
			Help:      "Channel start operation duration in seconds",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1.0, 5.0},
		}, []string{"channel"}),

		// Stops wait for in-flight payloads to drain, so the buckets run
		// longer than the other operations'.
		stopDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "interlink",
			Subsystem: "engine",
			Name:      "stop_duration_seconds",
			Help:      "Channel stop operation duration in seconds",
			Buckets:   []float64{0.01, 0.1, 0.5, 1.0, 5.0, 10.0, 30.0},
		}, []string{"channel"}),

		activeChannels: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "interlink",
			Subsystem: "engine",
			Name:      "active_channels",
			Help:      "Current number of running channels",
		}),
	}

	if err := registry.RegisterCounterVec("engine", "deploys", m.deploys); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("engine", "starts", m.starts); err != nil {
		return nil, err
	}
	if err := registry.RegisterCounterVec("engine", "stops", m.stops); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogramVec("engine", "deploy_duration", m.deployDuration); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogramVec("engine", "start_duration", m.startDuration); err != nil {
		return nil, err
	}
	if err := registry.RegisterHistogramVec("engine", "stop_duration", m.stopDuration); err != nil {
		return nil, err
	}
	if err := registry.RegisterGauge("engine", "active_channels", m.activeChannels); err != nil {
		return nil, err
	}

	return m, nil
}

// recordDeploy records a channel deploy operation.
func (m *engineMetrics) recordDeploy(channel string, success bool, duration float64) {
	if m == nil {
		return
	}

	status := "success"
	if !success {
		status = "failure"
	}

	m.deploys.WithLabelValues(channel, status).Inc()
	m.deployDuration.WithLabelValues(channel).Observe(duration)
}

// recordStart records a channel start operation.
func (m *engineMetrics) recordStart(channel string, success bool, duration float64) {
	if m == nil {
		return
	}

	status := "success"
	if !success {
		status = "failure"
	}

	m.starts.WithLabelValues(channel, status).Inc()
	m.startDuration.WithLabelValues(channel).Observe(duration)

	if success {
		m.activeChannels.Inc()
	}
}

// recordStop records a channel stop operation.
func (m *engineMetrics) recordStop(channel string, success bool, duration float64) {
	if m == nil {
		return
	}

	status := "success"
	if !success {
		status = "failure"
	}

	m.stops.WithLabelValues(channel, status).Inc()
	m.stopDuration.WithLabelValues(channel).Observe(duration)

	if success {
		m.activeChannels.Dec()
	}
}
