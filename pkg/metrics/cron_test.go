package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func TestCronJobMetricsRecordsRunsByResult(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	job := "approval-escalation"
	m.ObserveRun(job, 250*time.Millisecond, nil)
	m.ObserveRun(job, time.Second, errors.New("tenant pass failed"))
	m.IncSkipped(job)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	for result, want := range map[string]float64{RunSucceeded: 1, RunFailed: 1, RunSkipped: 1} {
		got, err := fetchRunCount(mfs, job, result)
		if err != nil {
			t.Fatalf("fetch %s: %v", result, err)
		}
		if got != want {
			t.Fatalf("expected %s=%v, got %v", result, want, got)
		}
	}

	if got, err := fetchHistogramSum(mfs, "sppg_cron_job_duration_seconds", "job", job); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got != 1.25 {
		t.Fatalf("expected duration sum 1.25, got %f", got)
	}

	if got, err := fetchGaugeValue(mfs, "sppg_cron_job_last_success_timestamp_seconds", "job", job); err != nil {
		t.Fatalf("fetch last success: %v", err)
	} else if got <= 0 {
		t.Fatalf("expected last success timestamp, got %f", got)
	}
}

func TestCronJobMetricsLastSuccessUntouchedByFailure(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)
	m.ObserveRun("outbox-retention", time.Second, errors.New("db down"))

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if _, err := fetchGaugeValue(mfs, "sppg_cron_job_last_success_timestamp_seconds", "job", "outbox-retention"); err == nil {
		t.Fatalf("failed run must not stamp last success")
	}
}

func fetchRunCount(mfs []*dto.MetricFamily, job, result string) (float64, error) {
	mf := findMetricFamily(mfs, "sppg_cron_job_runs_total")
	if mf == nil {
		return 0, fmt.Errorf("runs metric not found")
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), "job", job) && matchesLabel(metric.GetLabel(), "result", result) {
			return metric.GetCounter().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("no runs series for job=%s result=%s", job, result)
}

func fetchGaugeValue(mfs []*dto.MetricFamily, name, label, value string) (float64, error) {
	mf := findMetricFamily(mfs, name)
	if mf == nil {
		return 0, fmt.Errorf("metric %q not found", name)
	}
	for _, metric := range mf.GetMetric() {
		if matchesLabel(metric.GetLabel(), label, value) {
			return metric.GetGauge().GetValue(), nil
		}
	}
	return 0, fmt.Errorf("gauge %q missing label %s=%s", name, label, value)
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

func TestLedgerMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewLedgerMetrics(reg)
	m.IncAdjustment(OutcomeApplied)
	m.IncAdjustment(OutcomeApplied)
	m.IncAdjustment(OutcomeRejected)
	m.AddEscalations(EscalationPromoted, 3)
	m.AddEscalations(EscalationFlagged, 0)
	m.IncTenantFailure()

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "sppg_ledger_adjustments_total", "outcome", OutcomeApplied); err != nil || got != 2 {
		t.Fatalf("expected applied=2, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "sppg_ledger_adjustments_total", "outcome", OutcomeRejected); err != nil || got != 1 {
		t.Fatalf("expected rejected=1, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "sppg_approval_escalations_total", "result", EscalationPromoted); err != nil || got != 3 {
		t.Fatalf("expected promoted=3, got %f (%v)", got, err)
	}
	if _, err := fetchCounterValue(mfs, "sppg_approval_escalations_total", "result", EscalationFlagged); err == nil {
		t.Fatalf("zero escalations should not create a series")
	}
}

func TestNilMetricsAreNoops(t *testing.T) {
	var cron *CronJobMetrics
	cron.ObserveRun("job", time.Second, nil)
	cron.IncSkipped("job")
	var ledger *LedgerMetrics
	ledger.IncAdjustment(OutcomeApplied)
	NewLedgerMetrics(nil).IncTenantFailure()
}
