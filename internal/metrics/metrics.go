// Package metrics holds the Prometheus collectors of the dream core.
//
// All methods are safe on a nil *Metrics, so components can be built
// without instrumentation.
package metrics

import (
	"time"

	"github.com/dmitrijs2005/ruya/internal/models"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "ruya"

// Generation outcomes.
const (
	OutcomeRemote   = "remote"
	OutcomeFallback = "fallback"
	OutcomeFailed   = "failed"
	OutcomeRejected = "rejected"
)

type Metrics struct {
	generations     *prometheus.CounterVec
	generationTime  prometheus.Histogram
	refunds         prometheus.Counter
	fallbackRenders prometheus.Counter
	pollAttempts    prometheus.Counter
	creditsGranted  prometheus.Counter
	bestEffortFails *prometheus.CounterVec
	purchased       prometheus.Gauge
	demoRemaining   prometheus.Gauge
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		generations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "total",
			Help:      "Generation requests by outcome.",
		}, []string{"outcome"}),
		generationTime: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "generation",
			Name:      "duration_seconds",
			Help:      "Wall time of generation requests that debited credits.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 240, 480},
		}),
		refunds: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "refunds_total",
			Help:      "Debits returned after a failed generation.",
		}),
		fallbackRenders: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "synth",
			Name:      "renders_total",
			Help:      "Local fallback animations rendered.",
		}),
		pollAttempts: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "videogen",
			Name:      "poll_attempts_total",
			Help:      "Status polls sent to the video generation API.",
		}),
		creditsGranted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "purchase",
			Name:      "credits_granted_total",
			Help:      "Credits granted from verified store transactions.",
		}),
		bestEffortFails: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "background",
			Name:      "failures_total",
			Help:      "Failed best-effort side effects by sink.",
		}, []string{"sink"}),
		purchased: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "purchased_credits",
			Help:      "Current purchased credit balance.",
		}),
		demoRemaining: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "ledger",
			Name:      "demo_remaining",
			Help:      "Demo credits left.",
		}),
	}
}

func (m *Metrics) Generation(outcome string) {
	if m == nil {
		return
	}
	m.generations.WithLabelValues(outcome).Inc()
}

func (m *Metrics) GenerationDuration(d time.Duration) {
	if m == nil {
		return
	}
	m.generationTime.Observe(d.Seconds())
}

func (m *Metrics) Refund() {
	if m == nil {
		return
	}
	m.refunds.Inc()
}

func (m *Metrics) FallbackRender() {
	if m == nil {
		return
	}
	m.fallbackRenders.Inc()
}

func (m *Metrics) PollAttempt() {
	if m == nil {
		return
	}
	m.pollAttempts.Inc()
}

func (m *Metrics) CreditsGranted(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.creditsGranted.Add(float64(n))
}

func (m *Metrics) BestEffortFailure(sink string) {
	if m == nil {
		return
	}
	m.bestEffortFails.WithLabelValues(sink).Inc()
}

// ObserveBalance mirrors b into the ledger gauges. It matches
// ledger.Observer and is registered with Ledger.OnChange.
func (m *Metrics) ObserveBalance(b models.CreditBalance) {
	if m == nil {
		return
	}
	m.purchased.Set(float64(b.Purchased))
	m.demoRemaining.Set(float64(b.DemoRemaining()))
}
