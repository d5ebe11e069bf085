package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the trust and fusion engine. All methods
// are safe on a nil receiver so callers may run without metrics.
type Metrics struct {
	// Claims accepted by the coordinator, by zone of the resulting fact
	ClaimsIngested *prometheus.CounterVec

	// Claims rejected at the ingestion boundary, by offending field
	ValidationRejections *prometheus.CounterVec

	// Time spent fusing one claim, including version append
	FusionLatency prometheus.Histogram

	// Fusions whose result carried a narrative war
	NarrativeWars prometheus.Counter

	VersionsAppended  prometheus.Counter
	InconsistentState prometheus.Counter

	// Per-key workers currently alive in the coordinator
	ActiveKeyWorkers prometheus.Gauge

	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec
}

// New creates all engine metrics and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		ClaimsIngested: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vidocq_claims_ingested_total",
			Help: "Claims fused by the coordinator by zone",
		}, []string{"zone"}),

		ValidationRejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vidocq_claim_validation_rejections_total",
			Help: "Claims rejected at the ingestion boundary by field",
		}, []string{"field"}),

		FusionLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "vidocq_fusion_duration_seconds",
			Help:    "Duration of a single claim fusion including version append",
			Buckets: []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
		}),

		NarrativeWars: f.NewCounter(prometheus.CounterOpts{
			Name: "vidocq_narrative_war_fusions_total",
			Help: "Fusions whose result carried a narrative war",
		}),

		VersionsAppended: f.NewCounter(prometheus.CounterOpts{
			Name: "vidocq_fact_versions_appended_total",
			Help: "Fact versions appended to the version store",
		}),

		InconsistentState: f.NewCounter(prometheus.CounterOpts{
			Name: "vidocq_inconsistent_state_warnings_total",
			Help: "Version ordering violations detected while reading history",
		}),

		ActiveKeyWorkers: f.NewGauge(prometheus.GaugeOpts{
			Name: "vidocq_coordinator_active_key_workers",
			Help: "Per-key fusion workers currently alive",
		}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "vidocq_http_requests_total",
			Help: "HTTP requests by route and status code",
		}, []string{"route", "status"}),

		HTTPLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "vidocq_http_request_duration_seconds",
			Help:    "HTTP request latency by route",
			Buckets: prometheus.DefBuckets,
		}, []string{"route"}),
	}
}

func (m *Metrics) IncrementIngested(zone string) {
	if m != nil {
		m.ClaimsIngested.WithLabelValues(zone).Inc()
	}
}

func (m *Metrics) IncrementRejected(field string) {
	if m != nil {
		m.ValidationRejections.WithLabelValues(field).Inc()
	}
}

func (m *Metrics) ObserveFusionLatency(d time.Duration) {
	if m != nil {
		m.FusionLatency.Observe(d.Seconds())
	}
}

func (m *Metrics) IncrementNarrativeWars() {
	if m != nil {
		m.NarrativeWars.Inc()
	}
}

func (m *Metrics) IncrementVersions() {
	if m != nil {
		m.VersionsAppended.Inc()
	}
}

func (m *Metrics) IncrementInconsistentState() {
	if m != nil {
		m.InconsistentState.Inc()
	}
}

func (m *Metrics) WorkerStarted() {
	if m != nil {
		m.ActiveKeyWorkers.Inc()
	}
}

func (m *Metrics) WorkerStopped() {
	if m != nil {
		m.ActiveKeyWorkers.Dec()
	}
}

func (m *Metrics) ObserveHTTPRequest(route string, status int, d time.Duration) {
	if m != nil {
		m.HTTPRequests.WithLabelValues(route, strconv.Itoa(status)).Inc()
		m.HTTPLatency.WithLabelValues(route).Observe(d.Seconds())
	}
}
