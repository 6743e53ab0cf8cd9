package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestEmptyLabelValuesRecordAsUnknown(t *testing.T) {
	reg := prometheus.NewRegistry()
	ledger := NewLedgerMetrics(reg)
	ledger.IncAdjustment("")
	ledger.AddEscalations("", 2)
	ledger.EscalationCounter("").Inc()
	NewCronJobMetrics(reg).ObserveRun("", time.Second, nil)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}
	if got, err := fetchCounterValue(mfs, "sppg_ledger_adjustments_total", "outcome", "unknown"); err != nil || got != 1 {
		t.Fatalf("expected outcome=unknown 1, got %f (%v)", got, err)
	}
	if got, err := fetchCounterValue(mfs, "sppg_approval_escalations_total", "result", "unknown"); err != nil || got != 3 {
		t.Fatalf("expected result=unknown 3, got %f (%v)", got, err)
	}
	if got, err := fetchRunCount(mfs, "unknown", RunSucceeded); err != nil || got != 1 {
		t.Fatalf("expected job=unknown success 1, got %f (%v)", got, err)
	}
}
