package flow

import (
	"errors"
	"testing"

	"github.com/BTreeMap/OpsCopilot/internal/models"
)

func TestRegisterAndGet(t *testing.T) {
	Register("DUMMY", func() ScriptedFlow { return NewFallbackFlow() })
	defer func() {
		registryMu.Lock()
		delete(registry, "DUMMY")
		registryMu.Unlock()
	}()

	factory, ok := Get("DUMMY")
	if !ok {
		t.Fatalf("expected factory for DUMMY, got none")
	}
	if f := factory(); f.Type() != models.FlowTypeFallback {
		t.Errorf("expected factory to build a fallback flow, got %s", f.Type())
	}
}

func TestNewUnregistered(t *testing.T) {
	_, err := New("UNKNOWN")
	if !errors.Is(err, ErrUnknownFlow) {
		t.Errorf("expected ErrUnknownFlow, got %v", err)
	}
}

func TestDefaultFlowsRegistered(t *testing.T) {
	for _, ft := range []models.FlowType{
		models.FlowTypeDiscrepancy,
		models.FlowTypeSummary,
		models.FlowTypePendingOrders,
		models.FlowTypeFallback,
	} {
		f, err := New(ft)
		if err != nil {
			t.Fatalf("New(%s) error: %v", ft, err)
		}
		if f.Type() != ft {
			t.Errorf("New(%s) built %s", ft, f.Type())
		}
		if f.State() != models.StateIdle {
			t.Errorf("New(%s) starts in %s, want IDLE", ft, f.State())
		}
	}
}

func TestClassify(t *testing.T) {
	tests := []struct {
		text string
		want models.FlowType
	}{
		{"Check for discrepancies", models.FlowTypeDiscrepancy},
		{"please SYNC the orders", models.FlowTypeDiscrepancy},
		{"sync my pending orders", models.FlowTypeDiscrepancy},
		{"any discrepancy in urgent pending stuff?", models.FlowTypeDiscrepancy},
		{"Summarize recent activity", models.FlowTypeSummary},
		{"what activity is pending?", models.FlowTypeSummary},
		{"show pending orders", models.FlowTypePendingOrders},
		{"anything URGENT?", models.FlowTypePendingOrders},
		{"hello there", models.FlowTypeFallback},
		{"", models.FlowTypeFallback},
	}
	for _, tt := range tests {
		if got := Classify(tt.text); got != tt.want {
			t.Errorf("Classify(%q) = %s, want %s", tt.text, got, tt.want)
		}
	}
}

func TestMachineRejectsUnlistedTransition(t *testing.T) {
	f := NewDiscrepancyFlow()
	if err := f.transition(models.StateFound); err == nil {
		t.Fatalf("expected IDLE -> FOUND to be rejected")
	}
	if f.State() != models.StateIdle {
		t.Errorf("state changed after rejected transition: %s", f.State())
	}
	if err := f.transition(models.StateScanning); err != nil {
		t.Fatalf("IDLE -> SCANNING: %v", err)
	}
}

func TestResolvedIsTerminal(t *testing.T) {
	f := NewFallbackFlow()
	for _, to := range []models.StateType{models.StateExecuting, models.StateResolved} {
		if err := f.transition(to); err != nil {
			t.Fatalf("transition to %s: %v", to, err)
		}
	}
	for _, to := range []models.StateType{models.StateIdle, models.StateExecuting, models.StateFound} {
		if err := f.transition(to); err == nil {
			t.Errorf("expected RESOLVED -> %s to be rejected", to)
		}
	}
}
