package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Metrics holds all Prometheus metrics for the application. All Record and
// Set methods are safe to call on a nil *Metrics.
type Metrics struct {
	registry *prometheus.Registry

	// Session metrics
	SessionsActive prometheus.Gauge
	SessionsTotal  prometheus.Counter
	SessionsEnded  *prometheus.CounterVec

	// Editing metrics
	UploadsTotal      *prometheus.CounterVec
	UploadBytes       prometheus.Histogram
	TagEditsTotal     *prometheus.CounterVec
	TagWriteDuration  *prometheus.HistogramVec
	CoverUpdatesTotal *prometheus.CounterVec

	// Queue metrics
	QueueTasksTotal   *prometheus.CounterVec
	QueueTaskDuration prometheus.Histogram
	QueueWaiting      prometheus.Gauge

	// Telegram metrics
	TelegramMessagesSentTotal     prometheus.Counter
	TelegramMessagesReceivedTotal prometheus.Counter
	TelegramErrorsTotal           prometheus.Counter
}

// NewMetrics creates and registers all metrics
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,

		// Session metrics
		SessionsActive: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "sessions_active",
				Help: "Number of currently active editing sessions",
			},
		),
		SessionsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "sessions_total",
				Help: "Total number of editing sessions created",
			},
		),
		SessionsEnded: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "sessions_ended_total",
				Help: "Total number of sessions destroyed, by reason",
			},
			[]string{"reason"},
		),

		// Editing metrics
		UploadsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "uploads_total",
				Help: "Total number of audio uploads by container format and status",
			},
			[]string{"format", "status"},
		),
		UploadBytes: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "upload_bytes",
				Help:    "Size of accepted audio uploads in bytes",
				Buckets: prometheus.ExponentialBuckets(256*1024, 2, 10),
			},
		),
		TagEditsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "tag_edits_total",
				Help: "Total number of tag edits by field, format and status",
			},
			[]string{"field", "format", "status"},
		),
		TagWriteDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "tag_write_duration_seconds",
				Help:    "Duration of tag writes in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"format"},
		),
		CoverUpdatesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "cover_updates_total",
				Help: "Total number of cover art updates by format and status",
			},
			[]string{"format", "status"},
		),

		// Queue metrics
		QueueTasksTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "queue_tasks_total",
				Help: "Total queued tasks completed, by status",
			},
			[]string{"status"},
		),
		QueueTaskDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "queue_task_duration_seconds",
				Help:    "Queued task execution duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
		),
		QueueWaiting: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "queue_waiting",
				Help: "Tasks waiting across all lanes",
			},
		),

		// Telegram metrics
		TelegramMessagesSentTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "telegram_messages_sent_total",
				Help: "Total number of Telegram messages sent",
			},
		),
		TelegramMessagesReceivedTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "telegram_messages_received_total",
				Help: "Total number of Telegram updates received",
			},
		),
		TelegramErrorsTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "telegram_errors_total",
				Help: "Total number of Telegram errors",
			},
		),
	}

	// Register all metrics
	m.registerMetrics()

	return m
}

// registerMetrics registers all metrics with the registry
func (m *Metrics) registerMetrics() {
	m.registry.MustRegister(m.SessionsActive)
	m.registry.MustRegister(m.SessionsTotal)
	m.registry.MustRegister(m.SessionsEnded)

	m.registry.MustRegister(m.UploadsTotal)
	m.registry.MustRegister(m.UploadBytes)
	m.registry.MustRegister(m.TagEditsTotal)
	m.registry.MustRegister(m.TagWriteDuration)
	m.registry.MustRegister(m.CoverUpdatesTotal)

	m.registry.MustRegister(m.QueueTasksTotal)
	m.registry.MustRegister(m.QueueTaskDuration)
	m.registry.MustRegister(m.QueueWaiting)

	m.registry.MustRegister(m.TelegramMessagesSentTotal)
	m.registry.MustRegister(m.TelegramMessagesReceivedTotal)
	m.registry.MustRegister(m.TelegramErrorsTotal)
}

// Handler returns an HTTP handler for the metrics endpoint
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// Registry returns the Prometheus registry
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func status(ok bool) string {
	if ok {
		return statusSuccess
	}
	return statusError
}

// SetActiveSessions reports the current session count.
func (m *Metrics) SetActiveSessions(n int) {
	if m == nil {
		return
	}
	m.SessionsActive.Set(float64(n))
}

// RecordSessionStarted counts a newly created session.
func (m *Metrics) RecordSessionStarted() {
	if m == nil {
		return
	}
	m.SessionsTotal.Inc()
}

// RecordSessionEnded counts a destroyed session. reason is one of
// completed, cancelled, replaced, evicted or shutdown.
func (m *Metrics) RecordSessionEnded(reason string) {
	if m == nil {
		return
	}
	m.SessionsEnded.WithLabelValues(reason).Inc()
}

// RecordUpload counts an upload attempt.
func (m *Metrics) RecordUpload(format string, size int64, ok bool) {
	if m == nil {
		return
	}
	m.UploadsTotal.WithLabelValues(format, status(ok)).Inc()
	if ok {
		m.UploadBytes.Observe(float64(size))
	}
}

// RecordTagEdit counts a text tag write.
func (m *Metrics) RecordTagEdit(field, format string, duration time.Duration, ok bool) {
	if m == nil {
		return
	}
	m.TagEditsTotal.WithLabelValues(field, format, status(ok)).Inc()
	m.TagWriteDuration.WithLabelValues(format).Observe(duration.Seconds())
}

// RecordCoverUpdate counts a cover art write.
func (m *Metrics) RecordCoverUpdate(format string, ok bool) {
	if m == nil {
		return
	}
	m.CoverUpdatesTotal.WithLabelValues(format, status(ok)).Inc()
}

// SetQueueWaiting reports the number of tasks queued across all lanes.
func (m *Metrics) SetQueueWaiting(n int) {
	if m == nil {
		return
	}
	m.QueueWaiting.Set(float64(n))
}

// RecordQueueCompletion reports a finished queued task. waiting covers all
// lanes.
func (m *Metrics) RecordQueueCompletion(lane string, duration time.Duration, success bool, waiting int) {
	if m == nil {
		return
	}
	m.QueueTasksTotal.WithLabelValues(status(success)).Inc()
	m.QueueTaskDuration.Observe(duration.Seconds())
	m.QueueWaiting.Set(float64(waiting))
}

// RecordQueueEnqueue reports the number of waiting tasks, across all lanes,
// after an enqueue.
func (m *Metrics) RecordQueueEnqueue(lane string, waiting int) {
	if m == nil {
		return
	}
	m.QueueWaiting.Set(float64(waiting))
}

func (m *Metrics) RecordMessageSent() {
	if m == nil {
		return
	}
	m.TelegramMessagesSentTotal.Inc()
}

func (m *Metrics) RecordMessageReceived() {
	if m == nil {
		return
	}
	m.TelegramMessagesReceivedTotal.Inc()
}

func (m *Metrics) RecordTelegramError() {
	if m == nil {
		return
	}
	m.TelegramErrorsTotal.Inc()
}
