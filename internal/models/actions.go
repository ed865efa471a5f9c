package models

// ActionID names a button a flow can offer.
type ActionID string

const (
	ActionSyncReport          ActionID = "sync_report"
	ActionRequestChanges      ActionID = "request_changes"
	ActionSubmitChanges       ActionID = "submit_changes"
	ActionCancelChanges       ActionID = "cancel_changes"
	ActionAssignDispatch      ActionID = "assign_dispatch"
	ActionApproveOrder        ActionID = "approve_order"
	ActionRequestOrderChanges ActionID = "request_order_changes"
)

var actionLabels = map[ActionID]string{
	ActionSyncReport:          "Sync & Report",
	ActionRequestChanges:      "Request Changes",
	ActionSubmitChanges:       "Submit Request",
	ActionCancelChanges:       "Cancel",
	ActionAssignDispatch:      "Assign & Dispatch",
	ActionApproveOrder:        "Approve",
	ActionRequestOrderChanges: "Request Changes",
}

// IsValidAction checks if the given action is known.
func IsValidAction(id ActionID) bool {
	_, ok := actionLabels[id]
	return ok
}

// Label returns the button text for the action.
func (id ActionID) Label() string {
	return actionLabels[id]
}

// TargetsOrder reports whether the action applies to a single pending order.
func (id ActionID) TargetsOrder() bool {
	return id == ActionApproveOrder || id == ActionRequestOrderChanges
}

// NewAction builds an Action with its canonical label.
func NewAction(id ActionID) Action {
	return Action{ID: id, Label: id.Label()}
}

// Actions builds a list of canonical actions.
func Actions(ids ...ActionID) []Action {
	if len(ids) == 0 {
		return nil
	}
	out := make([]Action, 0, len(ids))
	for _, id := range ids {
		out = append(out, NewAction(id))
	}
	return out
}
