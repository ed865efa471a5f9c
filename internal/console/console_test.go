package console

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/BTreeMap/OpsCopilot/internal/flow"
	"github.com/BTreeMap/OpsCopilot/internal/models"
	"github.com/BTreeMap/OpsCopilot/internal/preferences"
	"github.com/BTreeMap/OpsCopilot/internal/store"
)

func TestMain(m *testing.M) {
	color.NoColor = true
	os.Exit(m.Run())
}

func newTestConsole(t *testing.T, input string, opts ...flow.Option) (*Console, *flow.Controller, *flow.ManualTimer, *bytes.Buffer) {
	t.Helper()
	tm := flow.NewManualTimer()
	ctrl := flow.NewController(append([]flow.Option{flow.WithTimer(tm)}, opts...)...)
	t.Cleanup(ctrl.Close)
	theme, err := preferences.Load(context.Background(), store.NewInMemoryStore())
	if err != nil {
		t.Fatalf("preferences.Load: %v", err)
	}
	var out bytes.Buffer
	return New(ctrl, theme, strings.NewReader(input), &out), ctrl, tm, &out
}

func TestRun_GreetingAndQuit(t *testing.T) {
	con, _, _, out := newTestConsole(t, "Check for discrepancies\n/quit\nignored after quit\n")

	if err := con.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	got := out.String()
	for _, want := range []string{
		AssistantLabel + ": " + flow.GreetingText,
		"You: Check for discrepancies",
		AssistantLabel + " is typing...",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "ignored after quit") {
		t.Errorf("input after /quit was processed")
	}
}

func TestRun_EndOfInput(t *testing.T) {
	con, ctrl, _, _ := newTestConsole(t, "")
	if err := con.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if n := len(ctrl.Messages()); n != 1 {
		t.Errorf("expected only the greeting, got %d messages", n)
	}
}

func TestExecute_DiscrepancySync(t *testing.T) {
	con, ctrl, tm, _ := newTestConsole(t, "")
	ctx := context.Background()

	if _, err := con.Execute(ctx, "check for discrepancies"); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	tm.Advance(1500 * time.Millisecond)
	tm.Advance(2000 * time.Millisecond)
	if st := ctrl.Snapshot().FlowState; st != models.StateFound {
		t.Fatalf("expected FOUND, got %s", st)
	}

	if _, err := con.Execute(ctx, "/sync"); err != nil {
		t.Fatalf("/sync: %v", err)
	}
	tm.Advance(3000 * time.Millisecond)

	msgs := ctrl.Messages()
	last := msgs[len(msgs)-1]
	artifact, ok := last.Content.(models.ArtifactContent)
	if !ok || artifact.Artifact == nil || artifact.Artifact.Name != flow.ReconciliationReport {
		t.Errorf("expected reconciliation report, got %+v", last.Content)
	}
}

func TestExecute_ChangesWithText(t *testing.T) {
	con, ctrl, tm, _ := newTestConsole(t, "")
	ctx := context.Background()

	con.Execute(ctx, "discrepancy check")
	tm.Advance(1500 * time.Millisecond)
	tm.Advance(2000 * time.Millisecond)

	if _, err := con.Execute(ctx, "/changes Reduce quantity to 40"); err != nil {
		t.Fatalf("/changes: %v", err)
	}
	msgs := ctrl.Messages()
	if got := msgs[len(msgs)-1]; got.Role != models.RoleUser || got.Text() != "Reduce quantity to 40" {
		t.Errorf("expected the change request echoed, got %+v", got)
	}
	tm.Advance(3000 * time.Millisecond)
	if ctrl.Snapshot().ActiveFlow != "" {
		t.Errorf("expected flow resolved")
	}
}

func TestExecute_ChangesOpensForm(t *testing.T) {
	con, ctrl, tm, out := newTestConsole(t, "")
	ctx := context.Background()

	con.Execute(ctx, "discrepancy check")
	tm.Advance(1500 * time.Millisecond)
	tm.Advance(2000 * time.Millisecond)

	if _, err := con.Execute(ctx, "/changes"); err != nil {
		t.Fatalf("/changes: %v", err)
	}
	if st := ctrl.Snapshot().FlowState; st != models.StateAwaitingUserChoice {
		t.Fatalf("expected AWAITING_USER_CHOICE, got %s", st)
	}
	if !strings.Contains(out.String(), "/cancel-changes") {
		t.Errorf("expected form hint, got %q", out.String())
	}
	if _, err := con.Execute(ctx, "/cancel-changes"); err != nil {
		t.Fatalf("/cancel-changes: %v", err)
	}
	if st := ctrl.Snapshot().FlowState; st != models.StateFound {
		t.Errorf("expected FOUND, got %s", st)
	}
}

func TestExecute_PendingOrders(t *testing.T) {
	con, ctrl, _, out := newTestConsole(t, "")
	ctx := context.Background()

	con.Execute(ctx, "show pending orders")
	if _, err := con.Execute(ctx, "/approve ord-5001"); err != nil {
		t.Fatalf("/approve: %v", err)
	}
	if !strings.Contains(out.String(), "ORD-5001 approved. 2 left to review.") {
		t.Errorf("unexpected output %q", out.String())
	}
	if _, err := con.Execute(ctx, "/approve"); !errors.Is(err, models.ErrMissingOrderID) {
		t.Errorf("expected ErrMissingOrderID, got %v", err)
	}
	con.Execute(ctx, "/reject ORD-5002")
	con.Execute(ctx, "/approve ORD-5003")

	msgs := ctrl.Messages()
	if got := msgs[len(msgs)-1].Text(); got != flow.AllOrdersProcessedText {
		t.Errorf("expected completion message, got %q", got)
	}
}

func TestExecute_Errors(t *testing.T) {
	con, _, _, _ := newTestConsole(t, "")
	ctx := context.Background()

	tests := []struct {
		line string
		want error
	}{
		{"/sync", flow.ErrNoActiveFlow},
		{"/cancel", flow.ErrNoActiveFlow},
	}
	for _, tt := range tests {
		if _, err := con.Execute(ctx, tt.line); !errors.Is(err, tt.want) {
			t.Errorf("Execute(%q) = %v, want %v", tt.line, err, tt.want)
		}
	}
	if _, err := con.Execute(ctx, "/bogus"); err == nil {
		t.Errorf("expected error for unknown command")
	}
	quit, err := con.Execute(ctx, "/quit")
	if !quit || err != nil {
		t.Errorf("/quit = %v, %v", quit, err)
	}
}

func TestExecute_Busy(t *testing.T) {
	con, _, _, _ := newTestConsole(t, "")
	ctx := context.Background()

	con.Execute(ctx, "summarize activity")
	if _, err := con.Execute(ctx, "hello"); !errors.Is(err, flow.ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}
	if got := describe(flow.ErrBusy); !strings.Contains(got, "please wait") {
		t.Errorf("describe(ErrBusy) = %q", got)
	}
}

func TestExecute_ThemeAndState(t *testing.T) {
	con, _, _, out := newTestConsole(t, "")
	ctx := context.Background()

	if _, err := con.Execute(ctx, "/theme"); err != nil {
		t.Fatalf("/theme: %v", err)
	}
	if con.theme.Appearance() != models.AppearanceDark {
		t.Errorf("expected dark, got %s", con.theme.Appearance())
	}
	con.Execute(ctx, "summarize activity")
	con.Execute(ctx, "/state")

	got := out.String()
	for _, want := range []string{"Appearance: dark", "flow: summary (SCANNING)", "next step in"} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}

func TestRenderMessage_Findings(t *testing.T) {
	con, _, _, out := newTestConsole(t, "")
	con.renderMessage(models.Message{
		Role: models.RoleAssistant,
		Content: models.FindingsContent{
			Headline: flow.DiscrepancyHeadline,
			Findings: models.SeedDiscrepancies(),
		},
		Actions: models.Actions(models.ActionSyncReport, models.ActionRequestChanges),
	})
	got := out.String()
	for _, want := range []string{flow.DiscrepancyHeadline, "  - Order #", "[/sync] ", "[/changes] "} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}
}
