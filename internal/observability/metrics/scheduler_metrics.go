package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// SchedulerMetrics captures sweep health for the invoicing scheduler.
type SchedulerMetrics struct {
	jobRuns        *prometheus.CounterVec
	jobErrors      *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	batchProcessed *prometheus.CounterVec
	lockSkipped    *prometheus.CounterVec
	unpriced       *prometheus.CounterVec
}

func NewSchedulerMetrics(cfg Config, registerer prometheus.Registerer) *SchedulerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := constLabels(cfg)

	m := &SchedulerMetrics{
		jobRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "utilitybilling_scheduler_job_runs_total",
			Help:        "Scheduler job runs by name.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		jobErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "utilitybilling_scheduler_job_errors_total",
			Help:        "Scheduler job errors by name.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		jobDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "utilitybilling_scheduler_job_duration_seconds",
			Help:        "Scheduler job latency.",
			Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			ConstLabels: constLabels,
		}, []string{"job"}),
		batchProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "utilitybilling_scheduler_batch_processed_total",
			Help:        "Items processed by scheduler jobs.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		lockSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "utilitybilling_scheduler_lock_skipped_total",
			Help:        "Runs skipped because another replica held the job lock.",
			ConstLabels: constLabels,
		}, []string{"job"}),
		unpriced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "utilitybilling_scheduler_unpriced_total",
			Help:        "Trackings a sweep left uninvoiced because no pricing tier matched.",
			ConstLabels: constLabels,
		}, []string{"job"}),
	}
	registerer.MustRegister(m.jobRuns, m.jobErrors, m.jobDuration, m.batchProcessed, m.lockSkipped, m.unpriced)
	return m
}

func (m *SchedulerMetrics) IncJobRun(job string) {
	if m == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

func (m *SchedulerMetrics) IncJobError(job string) {
	if m == nil {
		return
	}
	m.jobErrors.WithLabelValues(job).Inc()
}

func (m *SchedulerMetrics) ObserveJobDuration(job string, d time.Duration) {
	if m == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(d.Seconds())
}

func (m *SchedulerMetrics) AddBatchProcessed(job string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.batchProcessed.WithLabelValues(job).Add(float64(n))
}

func (m *SchedulerMetrics) IncLockSkipped(job string) {
	if m == nil {
		return
	}
	m.lockSkipped.WithLabelValues(job).Inc()
}

func (m *SchedulerMetrics) AddUnpriced(job string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.unpriced.WithLabelValues(job).Add(float64(n))
}
