// Package metrics exposes service counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "accruals"

// Metrics owns a private registry so tests and multiple servers never collide
// on the global one. A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	campaigns        *prometheus.CounterVec
	webhookDelivered *prometheus.CounterVec
	billEvents       *prometheus.CounterVec
	varianceJournals *prometheus.CounterVec
	accruedAmount    prometheus.Counter
	httpRequests     *prometheus.CounterVec
	httpDuration     *prometheus.HistogramVec
}

func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}

	m.campaigns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "campaigns_total",
		Help:      "Campaign onboarding attempts by result.",
	}, []string{"result"})

	m.webhookDelivered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhook_deliveries_total",
		Help:      "Webhook deliveries by result (accepted, bad_signature, malformed, error).",
	}, []string{"result"})

	m.billEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "bill_events_total",
		Help:      "Bill events by reconciliation outcome.",
	}, []string{"action"})

	m.varianceJournals = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "variance_journals_total",
		Help:      "Variance journals posted by direction.",
	}, []string{"direction"})

	m.accruedAmount = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "accrued_amount_total",
		Help:      "Sum of expected campaign costs accrued.",
	})

	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests by route and status code.",
	}, []string{"route", "code"})

	m.httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"route"})

	m.registry.MustRegister(
		m.campaigns,
		m.webhookDelivered,
		m.billEvents,
		m.varianceJournals,
		m.accruedAmount,
		m.httpRequests,
		m.httpDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Handler serves the registry.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) CampaignCreated(accrued float64) {
	if m == nil {
		return
	}
	m.campaigns.WithLabelValues("created").Inc()
	m.accruedAmount.Add(accrued)
}

func (m *Metrics) CampaignFailed(kind string) {
	if m == nil {
		return
	}
	m.campaigns.WithLabelValues(kind).Inc()
}

func (m *Metrics) WebhookDelivery(result string) {
	if m == nil {
		return
	}
	m.webhookDelivered.WithLabelValues(result).Inc()
}

func (m *Metrics) BillEvent(action string) {
	if m == nil {
		return
	}
	m.billEvents.WithLabelValues(action).Inc()
}

func (m *Metrics) VarianceJournal(direction string) {
	if m == nil {
		return
	}
	m.varianceJournals.WithLabelValues(direction).Inc()
}

func (m *Metrics) ObserveHTTP(route, code string, seconds float64) {
	if m == nil {
		return
	}
	m.httpRequests.WithLabelValues(route, code).Inc()
	m.httpDuration.WithLabelValues(route).Observe(seconds)
}
