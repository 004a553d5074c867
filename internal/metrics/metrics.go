// Package metrics содержит Prometheus-метрики фоновых задач и вычисления цен.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	JobMenuRefresh = "menu_refresh"
	JobProductSync = "product_sync"
)

// Metrics собирает метрики сервиса. Нулевой *Metrics допустим: все методы ничего не делают.
type Metrics struct {
	jobDuration  *prometheus.HistogramVec
	jobSuccess   *prometheus.CounterVec
	jobFailure   *prometheus.CounterVec
	rulesApplied *prometheus.CounterVec
	cacheLookups *prometheus.CounterVec
}

// New регистрирует метрики в reg. Без reg возвращает пустой набор.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		return &Metrics{}
	}
	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "menuboard_job_duration_seconds",
		Help:    "Duration of background jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	jobSuccess := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "menuboard_job_success_total",
		Help: "Successful background job runs.",
	}, []string{"job"})
	jobFailure := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "menuboard_job_failure_total",
		Help: "Failed background job runs.",
	}, []string{"job"})
	rulesApplied := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "menuboard_rules_applied_total",
		Help: "Pricing rules applied in menus evaluated on request, by rule type.",
	}, []string{"type"})
	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "menuboard_cache_lookups_total",
		Help: "Cache lookups by store and result.",
	}, []string{"store", "result"})
	reg.MustRegister(jobDuration, jobSuccess, jobFailure, rulesApplied, cacheLookups)
	return &Metrics{
		jobDuration:  jobDuration,
		jobSuccess:   jobSuccess,
		jobFailure:   jobFailure,
		rulesApplied: rulesApplied,
		cacheLookups: cacheLookups,
	}
}

// ObserveJob фиксирует длительность и исход запуска задачи.
func (m *Metrics) ObserveJob(job string, duration time.Duration, err error) {
	if m == nil || m.jobDuration == nil {
		return
	}
	job = normalizeLabel(job)
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
	if err != nil {
		m.jobFailure.WithLabelValues(job).Inc()
		return
	}
	m.jobSuccess.WithLabelValues(job).Inc()
}

// IncRuleApplied увеличивает счётчик применённых правил указанного типа.
func (m *Metrics) IncRuleApplied(ruleType string) {
	if m == nil || m.rulesApplied == nil {
		return
	}
	m.rulesApplied.WithLabelValues(normalizeLabel(ruleType)).Inc()
}

// IncCacheLookup учитывает обращение к кэшу: result: hit, miss или error.
func (m *Metrics) IncCacheLookup(store, result string) {
	if m == nil || m.cacheLookups == nil {
		return
	}
	m.cacheLookups.WithLabelValues(normalizeLabel(store), normalizeLabel(result)).Inc()
}

func normalizeLabel(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}
