package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the relay gateway.
type Metrics struct {
	RequestTotal         *prometheus.CounterVec
	RequestDurationMs    *prometheus.HistogramVec
	TokensTotal          *prometheus.CounterVec
	CostUSDTotal         *prometheus.CounterVec
	FailoverTotal        *prometheus.CounterVec
	UpstreamAttemptTotal *prometheus.CounterVec
	MissingModelTotal    *prometheus.CounterVec
}

// NewMetrics creates all gateway metrics and registers them with the
// default registry.
func NewMetrics() *Metrics {
	return NewMetricsFor(prometheus.DefaultRegisterer)
}

// NewMetricsFor registers the metrics with an explicit registerer.
func NewMetricsFor(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_request_total",
			Help: "Total number of gateway requests by final outcome.",
		}, []string{"model", "provider", "status"}),

		RequestDurationMs: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "relay_request_duration_ms",
			Help:    "Total request duration in milliseconds (including provider latency).",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000, 60000},
		}, []string{"model", "provider"}),

		TokensTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_tokens_total",
			Help: "Total tokens processed.",
		}, []string{"model", "direction"}),

		CostUSDTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_cost_usd_total",
			Help: "Total computed request cost in USD.",
		}, []string{"model", "provider"}),

		FailoverTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_failover_total",
			Help: "Requests served by a fallback-tier rule.",
		}, []string{"provider"}),

		UpstreamAttemptTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_upstream_attempt_total",
			Help: "Individual provider dispatch attempts by outcome.",
		}, []string{"provider", "outcome"}),

		MissingModelTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "relay_missing_model_total",
			Help: "Requests rejected because the model has no pricing entry.",
		}, []string{"model"}),
	}
}

// RecordRequest records metrics for a completed request.
func (m *Metrics) RecordRequest(labels RequestLabels) {
	m.RequestTotal.WithLabelValues(labels.Model, labels.Provider, labels.Status).Inc()
	m.RequestDurationMs.WithLabelValues(labels.Model, labels.Provider).Observe(labels.DurationMs)

	if labels.PromptTokens > 0 {
		m.TokensTotal.WithLabelValues(labels.Model, "prompt").Add(float64(labels.PromptTokens))
	}
	if labels.CompletionTokens > 0 {
		m.TokensTotal.WithLabelValues(labels.Model, "completion").Add(float64(labels.CompletionTokens))
	}
	if labels.CostUSD > 0 {
		m.CostUSDTotal.WithLabelValues(labels.Model, labels.Provider).Add(labels.CostUSD)
	}
	if labels.Failover {
		m.FailoverTotal.WithLabelValues(labels.Provider).Inc()
	}
}

// RecordAttempt records a single upstream dispatch attempt.
func (m *Metrics) RecordAttempt(provider, outcome string) {
	m.UpstreamAttemptTotal.WithLabelValues(provider, outcome).Inc()
}

// RecordMissingModel records a request rejected for lack of pricing.
func (m *Metrics) RecordMissingModel(model string) {
	m.MissingModelTotal.WithLabelValues(model).Inc()
}

// RequestLabels holds the label values for recording a request.
type RequestLabels struct {
	Model            string
	Provider         string
	Status           string
	DurationMs       float64
	PromptTokens     int
	CompletionTokens int
	CostUSD          float64
	Failover         bool
}
