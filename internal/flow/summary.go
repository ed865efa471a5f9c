package flow

import (
	"fmt"

	"github.com/BTreeMap/OpsCopilot/internal/models"
)

// Fixed utterances and results of the summary flow.
const (
	SummaryHeadline     = "Analysis Complete. Found 3 orders under $1M."
	SummaryQuestion     = "Order #ORD-2054 needs immediate attention. Shall I assign the default logistics provider and dispatch?"
	DispatchConfirmText = "Assign provider and dispatch."
	DispatchHeadline    = "Dispatch complete."
)

// SummaryFlow reviews recent account activity and offers to dispatch the
// order that is missing a logistics provider.
type SummaryFlow struct {
	machine
	findings []models.Finding
}

// NewSummaryFlow creates a summary flow in IDLE.
func NewSummaryFlow() *SummaryFlow {
	return &SummaryFlow{
		machine: newMachine(map[models.StateType][]models.StateType{
			models.StateIdle:      {models.StateScanning},
			models.StateScanning:  {models.StateFound},
			models.StateFound:     {models.StateExecuting},
			models.StateExecuting: {models.StateResolved},
		}),
		findings: models.SeedActivityFindings(),
	}
}

// Type returns the flow type.
func (f *SummaryFlow) Type() models.FlowType {
	return models.FlowTypeSummary
}

// Start schedules the analysis notice and then the summary.
func (f *SummaryFlow) Start(r *Run) {
	r.Log("Started activity summary", models.ActivitySystem)
	r.Transition(models.StateScanning, "start")
	r.After(r.Delays().Scan, "analyzing", func() {
		r.Say(models.ProgressContent{Text: fmt.Sprintf("Analyzing recent activity for %q...", models.DemoCustomer)})
		r.After(r.Delays().Find, "summary", func() {
			r.Log("Analysis complete: 3 orders found", models.ActivitySuccess)
			r.Transition(models.StateFound, "analysis_complete")
			r.Say(models.FindingsContent{
				Headline: SummaryHeadline,
				Findings: copyFindings(f.findings),
				Question: SummaryQuestion,
			}, models.ActionAssignDispatch)
			r.Composing(false)
		})
	})
}

// Actions lists the buttons the current state offers.
func (f *SummaryFlow) Actions() []models.ActionID {
	if f.state == models.StateFound {
		return []models.ActionID{models.ActionAssignDispatch}
	}
	return nil
}

// Handle applies a button click.
func (f *SummaryFlow) Handle(r *Run, req models.ActionRequest) error {
	if req.Action != models.ActionAssignDispatch {
		return ErrActionUnavailable
	}
	r.Echo(DispatchConfirmText)
	r.Log("Dispatch sequence started", models.ActivityInfo)
	r.Transition(models.StateExecuting, string(req.Action))
	r.Composing(true)
	r.After(r.Delays().Execute, "dispatch", func() {
		r.Log("Logistics provider assigned", models.ActivitySuccess)
		r.Say(models.ArtifactContent{
			Headline: DispatchHeadline,
			Steps: []string{
				`Logistics Provider "FastTrack" assigned.`,
				"Dispatch signal sent to warehouse. Order is now processing.",
			},
		})
		r.Resolve("dispatched")
	})
	return nil
}

// Findings returns the summarized orders while they are on screen.
func (f *SummaryFlow) Findings() []models.Finding {
	if f.state == models.StateFound {
		return copyFindings(f.findings)
	}
	return nil
}

// Orders returns nil; the summary flow tracks no pending orders.
func (f *SummaryFlow) Orders() []models.PendingOrder {
	return nil
}
