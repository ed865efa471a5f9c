package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordFlowLifecycle(t *testing.T) {
	before := testutil.ToFloat64(FlowsStarted.WithLabelValues("summary"))
	RecordFlowStarted("summary")
	if got := testutil.ToFloat64(FlowsStarted.WithLabelValues("summary")); got != before+1 {
		t.Errorf("expected %v started, got %v", before+1, got)
	}

	before = testutil.ToFloat64(FlowsEnded.WithLabelValues("summary", "resolved"))
	RecordFlowEnded("summary", "resolved")
	if got := testutil.ToFloat64(FlowsEnded.WithLabelValues("summary", "resolved")); got != before+1 {
		t.Errorf("expected %v ended, got %v", before+1, got)
	}
}

func TestRecordAction(t *testing.T) {
	okBefore := testutil.ToFloat64(ActionsHandled.WithLabelValues("sync_report", "ok"))
	rejBefore := testutil.ToFloat64(ActionsHandled.WithLabelValues("sync_report", "rejected"))

	RecordAction("sync_report", nil)
	RecordAction("sync_report", errors.New("busy"))

	if got := testutil.ToFloat64(ActionsHandled.WithLabelValues("sync_report", "ok")); got != okBefore+1 {
		t.Errorf("ok count = %v, want %v", got, okBefore+1)
	}
	if got := testutil.ToFloat64(ActionsHandled.WithLabelValues("sync_report", "rejected")); got != rejBefore+1 {
		t.Errorf("rejected count = %v, want %v", got, rejBefore+1)
	}
}

func TestSessionGauge(t *testing.T) {
	before := testutil.ToFloat64(ActiveSessions)
	RecordSessionCreated()
	RecordSessionCreated()
	RecordSessionClosed()
	if got := testutil.ToFloat64(ActiveSessions); got != before+1 {
		t.Errorf("active sessions = %v, want %v", got, before+1)
	}
}

func TestHandler(t *testing.T) {
	RecordStateTransition("discrepancy", "IDLE", "SCANNING")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "opscopilot_flow_state_transitions_total") {
		t.Errorf("expected transition metric in output")
	}
}
