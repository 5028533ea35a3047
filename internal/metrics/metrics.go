// Package metrics - счётчики жизненного цикла заметок в формате Prometheus.
// Все методы безопасны для nil-получателя: сервис без метрик просто ничего не считает.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "fadnote"

// Metrics держит собственный реестр, чтобы несколько экземпляров (в тестах) не конфликтовали.
type Metrics struct {
	registry *prometheus.Registry

	created       prometheus.Counter
	consumed      prometheus.Counter
	rejected      *prometheus.CounterVec
	swept         prometheus.Counter
	backendErrors *prometheus.CounterVec
	sweepDuration prometheus.Histogram
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "notes_created_total",
			Help: "Notes stored successfully.",
		}),
		consumed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "notes_consumed_total",
			Help: "Notes read and deleted.",
		}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "notes_rejected_total",
			Help: "Requests rejected by validation or lookup.",
		}, []string{"reason"}),
		swept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: "notes_swept_total",
			Help: "Expired notes removed by the sweeper.",
		}),
		backendErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "backend_errors_total",
			Help: "Unexpected storage backend failures.",
		}, []string{"op"}),
		sweepDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "sweep_duration_seconds",
			Help:    "Duration of expiry sweep passes.",
			Buckets: prometheus.DefBuckets,
		}),
	}
	m.registry.MustRegister(
		m.created, m.consumed, m.rejected, m.swept, m.backendErrors, m.sweepDuration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) NoteCreated() {
	if m != nil {
		m.created.Inc()
	}
}

func (m *Metrics) NoteConsumed() {
	if m != nil {
		m.consumed.Inc()
	}
}

// NoteRejected учитывает отказ; reason - короткая метка (invalid_id, not_found, too_large ...).
func (m *Metrics) NoteRejected(reason string) {
	if m != nil {
		m.rejected.WithLabelValues(reason).Inc()
	}
}

func (m *Metrics) BackendError(op string) {
	if m != nil {
		m.backendErrors.WithLabelValues(op).Inc()
	}
}

// SweepDone фиксирует проход очистки: сколько удалено и сколько он длился.
func (m *Metrics) SweepDone(n int, d time.Duration) {
	if m == nil {
		return
	}
	m.swept.Add(float64(n))
	m.sweepDuration.Observe(d.Seconds())
}

// Handler отдаёт содержимое реестра для GET /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Registry нужен тестам для чтения значений.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
