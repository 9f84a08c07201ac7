// Package metrics exposes ledger and analytics counters to Prometheus.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/bark/internal/ports/secondary"
)

// Prometheus implements secondary.Metrics on its own registry.
type Prometheus struct {
	registry *prometheus.Registry

	transitions *prometheus.CounterVec
	corrections *prometheus.CounterVec
	queries     *prometheus.HistogramVec
}

// NewPrometheus registers the bark collectors on a fresh registry.
func NewPrometheus() *Prometheus {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Prometheus{
		registry: reg,

		// transitions counts appended records by phase pair; from is empty for creations
		transitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bark_transitions_total",
			Help: "Ledger records appended, by previous and new phase",
		}, []string{"from", "to"}),

		// corrections counts timestamp corrections by outcome
		corrections: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "bark_corrections_total",
			Help: "Timestamp corrections by result",
		}, []string{"result"}),

		queries: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bark_query_duration_seconds",
			Help:    "Analytics query duration in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0005, 2, 12), // 0.5ms to ~1s
		}, []string{"query"}),
	}
}

func (p *Prometheus) TransitionRecorded(from, to string) {
	p.transitions.WithLabelValues(from, to).Inc()
}

func (p *Prometheus) CorrectionApplied() {
	p.corrections.WithLabelValues("applied").Inc()
}

func (p *Prometheus) CorrectionRejected(reason string) {
	p.corrections.WithLabelValues("rejected_" + reason).Inc()
}

func (p *Prometheus) QueryServed(name string, elapsed time.Duration) {
	p.queries.WithLabelValues(name).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus text format.
func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

var _ secondary.Metrics = (*Prometheus)(nil)
