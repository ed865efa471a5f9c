// Package models defines flow type definitions to avoid circular imports.
package models

// FlowType represents a specific type of scripted flow
type FlowType string

// StateType represents a specific state within a flow
type StateType string

// DataKey represents a key for storing state-specific data
type DataKey string

// Flow type constants.
const (
	FlowTypeDiscrepancy   FlowType = "discrepancy"
	FlowTypeSummary       FlowType = "summary"
	FlowTypePendingOrders FlowType = "pending_orders"
	FlowTypeFallback      FlowType = "fallback"
)

// State constants shared by all scripted flows.
const (
	StateIdle               StateType = "IDLE"
	StateScanning           StateType = "SCANNING"
	StateFound              StateType = "FOUND"
	StateAwaitingUserChoice StateType = "AWAITING_USER_CHOICE"
	StateExecuting          StateType = "EXECUTING"
	StateResolved           StateType = "RESOLVED"
	StateListing            StateType = "LISTING" // pending-orders review
)

// Data key constants for persisted flow state.
const (
	DataKeyStartedAt      DataKey = "startedAt"
	DataKeyTrigger        DataKey = "trigger"        // user text that started the flow
	DataKeyChangeRequest  DataKey = "changeRequest"  // free text submitted from AWAITING_USER_CHOICE
	DataKeyReviewedOrders DataKey = "reviewedOrders" // JSON map of order ID to review state
)

// IsFlowType reports whether ft names a known flow.
func IsFlowType(ft FlowType) bool {
	switch ft {
	case FlowTypeDiscrepancy, FlowTypeSummary, FlowTypePendingOrders, FlowTypeFallback:
		return true
	}
	return false
}

// Terminal reports whether the state ends a flow.
func (s StateType) Terminal() bool {
	return s == StateResolved
}
