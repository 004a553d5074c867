package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestObserveJob(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.ObserveJob(JobMenuRefresh, 250*time.Millisecond, nil)
	m.ObserveJob(JobMenuRefresh, 100*time.Millisecond, nil)
	m.ObserveJob(JobProductSync, time.Second, errors.New("boom"))

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "menuboard_job_success_total", "job", JobMenuRefresh); err != nil {
		t.Fatalf("fetch success: %v", err)
	} else if got != 2 {
		t.Fatalf("expected success=2, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "menuboard_job_failure_total", "job", JobProductSync); err != nil {
		t.Fatalf("fetch failure: %v", err)
	} else if got != 1 {
		t.Fatalf("expected failure=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "menuboard_job_duration_seconds", "job", JobMenuRefresh); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got < 0.35-1e-9 || got > 0.35+1e-9 {
		t.Fatalf("expected duration sum 0.35, got %f", got)
	}
}

func TestRuleAndCacheCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.IncRuleApplied("percentage_discount")
	m.IncRuleApplied("percentage_discount")
	m.IncRuleApplied("")
	m.IncCacheLookup("menu", "hit")

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "menuboard_rules_applied_total", "type", "percentage_discount"); err != nil || got != 2 {
		t.Fatalf("percentage_discount = %f, err = %v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "menuboard_rules_applied_total", "type", "unknown"); err != nil || got != 1 {
		t.Fatalf("unknown = %f, err = %v", got, err)
	}
	if got, err := fetchCounterValue(mfs, "menuboard_cache_lookups_total", "result", "hit"); err != nil || got != 1 {
		t.Fatalf("cache hit = %f, err = %v", got, err)
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.ObserveJob(JobMenuRefresh, time.Second, nil)
	m.IncRuleApplied("special")
	m.IncCacheLookup("menu", "miss")

	New(nil).ObserveJob(JobProductSync, time.Second, errors.New("boom"))
}

func fetchCounterValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("metric %q missing label %s=%s", name, label, value)
}

func fetchHistogramSum(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetHistogram().GetSampleSum(), nil
		}
	}
	return 0, fmt.Errorf("histogram %q missing label %s=%s", name, label, value)
}

func findMetricFamily(mfs []*dto.MetricFamily, name string) *dto.MetricFamily {
	for _, mf := range mfs {
		if mf.GetName() == name {
			return mf
		}
	}
	return nil
}

func matchesLabel(labels []*dto.LabelPair, name, value string) bool {
	for _, label := range labels {
		if label.GetName() == name && label.GetValue() == value {
			return true
		}
	}
	return false
}
