// Package models defines state management structures for OpsCopilot flows.
package models

import "time"

// FlowState represents the current state of a session in a flow.
type FlowState struct {
	SessionID    string             `json:"session_id"`
	FlowType     FlowType           `json:"flow_type"`
	CurrentState StateType          `json:"current_state"`
	StateData    map[DataKey]string `json:"state_data,omitempty"` // Additional state-specific data
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// StateTransition represents a transition between states in a flow.
type StateTransition struct {
	FlowType  FlowType  `json:"flow_type"`
	FromState StateType `json:"from_state"`
	ToState   StateType `json:"to_state"`
	Trigger   string    `json:"trigger,omitempty"` // timer step or action ID that caused the transition
	At        time.Time `json:"at"`
}

// TimerInfo describes a pending scheduled callback.
type TimerInfo struct {
	ID          string    `json:"id"`
	ScheduledAt time.Time `json:"scheduled_at"`
	ExpiresAt   time.Time `json:"expires_at"`
	Remaining   string    `json:"remaining"`
	Description string    `json:"description"`
}
