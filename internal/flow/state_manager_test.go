package flow

import (
	"context"
	"testing"

	"github.com/BTreeMap/OpsCopilot/internal/models"
)

func TestStoreBasedStateManager(t *testing.T) {
	ctx := context.Background()
	sm := NewMockStateManager()

	state, err := sm.GetCurrentState(ctx, "s1", models.FlowTypeSummary)
	if err != nil || state != "" {
		t.Fatalf("expected empty state, got %q, %v", state, err)
	}

	if err := sm.SetCurrentState(ctx, "s1", models.FlowTypeSummary, models.StateScanning); err != nil {
		t.Fatalf("SetCurrentState: %v", err)
	}
	if err := sm.SetStateData(ctx, "s1", models.FlowTypeSummary, models.DataKeyTrigger, "summarize"); err != nil {
		t.Fatalf("SetStateData: %v", err)
	}
	if err := sm.TransitionState(ctx, "s1", models.FlowTypeSummary, models.StateScanning, models.StateFound); err != nil {
		t.Fatalf("TransitionState: %v", err)
	}
	if err := sm.TransitionState(ctx, "s1", models.FlowTypeSummary, models.StateScanning, models.StateExecuting); err == nil {
		t.Errorf("expected stale transition to fail")
	}

	state, _ = sm.GetCurrentState(ctx, "s1", models.FlowTypeSummary)
	if state != models.StateFound {
		t.Errorf("expected FOUND, got %s", state)
	}
	data, _ := sm.GetStateData(ctx, "s1", models.FlowTypeSummary, models.DataKeyTrigger)
	if data != "summarize" {
		t.Errorf("expected trigger data, got %q", data)
	}

	// Flows of different sessions are independent.
	if state, _ := sm.GetCurrentState(ctx, "s2", models.FlowTypeSummary); state != "" {
		t.Errorf("state leaked across sessions: %s", state)
	}

	if err := sm.ResetState(ctx, "s1", models.FlowTypeSummary); err != nil {
		t.Fatalf("ResetState: %v", err)
	}
	if state, _ := sm.GetCurrentState(ctx, "s1", models.FlowTypeSummary); state != "" {
		t.Errorf("expected state cleared, got %s", state)
	}
}
