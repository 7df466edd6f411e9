package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Recorder interface {
	IncChecks(kind, outcome string)
	IncProviderErrors(kind string)
	IncHistoryRecords(kind string)
	IncNotifications(result string)
	ObserveStoreWrite(doc string, duration time.Duration)
}

type Metrics struct {
	registry         *prometheus.Registry
	checksTotal      *prometheus.CounterVec
	providerErrors   *prometheus.CounterVec
	historyRecords   *prometheus.CounterVec
	notifications    *prometheus.CounterVec
	storeWriteLength *prometheus.HistogramVec
}

// New registers collectors on a private registry so several instances can
// coexist in one process.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		checksTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "leakguard_checks_total",
			Help: "Total number of dispatched checks by entity kind and outcome",
		}, []string{"kind", "outcome"}),

		providerErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "leakguard_provider_errors_total",
			Help: "Total number of lookup provider failures by entity kind",
		}, []string{"kind"}),

		historyRecords: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "leakguard_history_records_total",
			Help: "Total number of history writes by entity kind",
		}, []string{"kind"}),

		notifications: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "leakguard_notifications_total",
			Help: "Total number of breach alert deliveries by result",
		}, []string{"result"}),

		storeWriteLength: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "leakguard_store_write_seconds",
			Help:    "Duration of snapshot writes in seconds",
			Buckets: prometheus.DefBuckets,
		}, []string{"doc"}),
	}
}

func (m *Metrics) IncChecks(kind, outcome string) {
	m.checksTotal.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) IncProviderErrors(kind string) {
	m.providerErrors.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncHistoryRecords(kind string) {
	m.historyRecords.WithLabelValues(kind).Inc()
}

func (m *Metrics) IncNotifications(result string) {
	m.notifications.WithLabelValues(result).Inc()
}

func (m *Metrics) ObserveStoreWrite(doc string, duration time.Duration) {
	m.storeWriteLength.WithLabelValues(doc).Observe(duration.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Noop discards everything; used when metrics are disabled.
type Noop struct{}

func (Noop) IncChecks(_, _ string)                       {}
func (Noop) IncProviderErrors(_ string)                  {}
func (Noop) IncHistoryRecords(_ string)                  {}
func (Noop) IncNotifications(_ string)                   {}
func (Noop) ObserveStoreWrite(_ string, _ time.Duration) {}
