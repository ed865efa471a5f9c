package flow

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/BTreeMap/OpsCopilot/internal/models"
)

// Fixed utterances and results of the discrepancy flow.
const (
	SyncConfirmText         = "Yes, sync them and generate the report."
	DefaultChangeRequest    = "Requesting changes."
	DiscrepancyHeadline     = "Found 3 discrepancies in recent shipments."
	ReconciliationReport    = "Reconciliation_Report.pdf"
	RevisedPurchaseOrder    = "PO_Revised_Final.pdf"
	ChangesApprovedHeadline = "Changes approved. PO updated."
)

// DiscrepancyFlow scans recent shipments, reports mismatches and either
// syncs them into a reconciliation report or routes a purchase-order change
// request for approval.
type DiscrepancyFlow struct {
	machine
	findings []models.Finding
}

// NewDiscrepancyFlow creates a discrepancy flow in IDLE.
func NewDiscrepancyFlow() *DiscrepancyFlow {
	return &DiscrepancyFlow{
		machine: newMachine(map[models.StateType][]models.StateType{
			models.StateIdle:               {models.StateScanning},
			models.StateScanning:           {models.StateFound},
			models.StateFound:              {models.StateExecuting, models.StateAwaitingUserChoice},
			models.StateAwaitingUserChoice: {models.StateFound, models.StateExecuting},
			models.StateExecuting:          {models.StateResolved},
		}),
		findings: models.SeedDiscrepancies(),
	}
}

// Type returns the flow type.
func (f *DiscrepancyFlow) Type() models.FlowType {
	return models.FlowTypeDiscrepancy
}

// Start schedules the scanning notice and then the findings.
func (f *DiscrepancyFlow) Start(r *Run) {
	r.Log("Started discrepancy analysis", models.ActivitySystem)
	r.Transition(models.StateScanning, "start")
	r.After(r.Delays().Scan, "scanning", func() {
		r.Say(models.ProgressContent{Text: fmt.Sprintf("Scanning recent orders for %q...", models.DemoCustomer)})
		r.After(r.Delays().Find, "found", func() {
			r.Log("Found 3 discrepancies", models.ActivityWarning)
			r.Transition(models.StateFound, "scan_complete")
			r.Say(models.FindingsContent{
				Headline: DiscrepancyHeadline,
				Findings: copyFindings(f.findings),
			}, models.ActionSyncReport, models.ActionRequestChanges)
			r.Composing(false)
		})
	})
}

// Actions lists the buttons the current state offers.
func (f *DiscrepancyFlow) Actions() []models.ActionID {
	switch f.state {
	case models.StateFound:
		return []models.ActionID{models.ActionSyncReport, models.ActionRequestChanges}
	case models.StateAwaitingUserChoice:
		return []models.ActionID{models.ActionSubmitChanges, models.ActionCancelChanges}
	}
	return nil
}

// Handle applies a button click.
func (f *DiscrepancyFlow) Handle(r *Run, req models.ActionRequest) error {
	switch req.Action {
	case models.ActionSyncReport:
		r.Echo(SyncConfirmText)
		r.Log("Initiated DB Sync", models.ActivityInfo)
		r.Transition(models.StateExecuting, string(req.Action))
		r.Composing(true)
		r.After(r.Delays().Execute, "sync_report", func() {
			r.Log("Report generated", models.ActivitySuccess)
			r.Say(models.ArtifactContent{
				Headline: "Sync complete.",
				Steps: []string{
					fmt.Sprintf("Syncing %d records to Central DB... Done.", len(f.findings)),
					"Generating Reconciliation Report... Done.",
				},
				Artifact: &models.Artifact{Name: ReconciliationReport, SizeLabel: "1.2 MB", Note: "Generated just now"},
			})
			r.Resolve("sync_complete")
		})

	case models.ActionRequestChanges:
		r.Transition(models.StateAwaitingUserChoice, string(req.Action))

	case models.ActionCancelChanges:
		r.Transition(models.StateFound, string(req.Action))

	case models.ActionSubmitChanges:
		text := strings.TrimSpace(req.Text)
		if text == "" {
			text = DefaultChangeRequest
		}
		r.SetData(models.DataKeyChangeRequest, text)
		r.Echo(text)
		r.Log("Requesting approval from Logistics Manager", models.ActivityInfo)
		r.Transition(models.StateExecuting, string(req.Action))
		r.Composing(true)
		r.After(r.Delays().Execute, "approval", func() {
			r.Log("Purchase order revised", models.ActivitySuccess)
			r.Say(models.ArtifactContent{
				Headline: ChangesApprovedHeadline,
				Artifact: &models.Artifact{Name: RevisedPurchaseOrder, Note: "Updated just now"},
			})
			r.Resolve("approved")
		})

	default:
		slog.Warn("DiscrepancyFlow.Handle: unexpected action", "action", req.Action)
		return ErrActionUnavailable
	}
	return nil
}

// Findings returns the discrepancies while they are on screen.
func (f *DiscrepancyFlow) Findings() []models.Finding {
	if f.state == models.StateFound || f.state == models.StateAwaitingUserChoice {
		return copyFindings(f.findings)
	}
	return nil
}

// Orders returns nil; the discrepancy flow tracks no pending orders.
func (f *DiscrepancyFlow) Orders() []models.PendingOrder {
	return nil
}
