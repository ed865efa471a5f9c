package models

import "time"

// ConversationState is a point-in-time copy of a session.
type ConversationState struct {
	SessionID  string         `json:"session_id"`
	Messages   []Message      `json:"messages"`
	Composing  bool           `json:"is_assistant_composing"`
	ActiveFlow FlowType       `json:"active_flow,omitempty"`
	FlowState  StateType      `json:"flow_state"`
	Actions    []Action       `json:"actions,omitempty"`  // actions the active flow accepts now
	Findings   []Finding      `json:"findings,omitempty"` // items under review in FOUND/AWAITING_USER_CHOICE
	Orders     []PendingOrder `json:"orders,omitempty"`   // active (unresolved) orders under review
	Closed     bool           `json:"closed,omitempty"`
}

// EventType identifies what changed in a session.
type EventType string

const (
	EventMessage   EventType = "message"
	EventComposing EventType = "composing"
	EventFlowState EventType = "flow_state"
	EventClosed    EventType = "closed"
)

// Event is published to session subscribers.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id"`
	Message   *Message  `json:"message,omitempty"`
	Composing bool      `json:"is_assistant_composing"`
	FlowType  FlowType  `json:"flow_type,omitempty"`
	State     StateType `json:"state,omitempty"`
	Time      time.Time `json:"time"`
}
