package flow

import (
	"context"
	"time"

	"github.com/BTreeMap/OpsCopilot/internal/models"
)

// StateManager defines the interface for managing flow state.
type StateManager interface {
	// GetCurrentState retrieves the current state for a session in a flow
	GetCurrentState(ctx context.Context, sessionID string, flowType models.FlowType) (models.StateType, error)

	// SetCurrentState updates the current state for a session in a flow
	SetCurrentState(ctx context.Context, sessionID string, flowType models.FlowType, state models.StateType) error

	// GetStateData retrieves additional data associated with the session's state
	GetStateData(ctx context.Context, sessionID string, flowType models.FlowType, key models.DataKey) (string, error)

	// SetStateData stores additional data associated with the session's state
	SetStateData(ctx context.Context, sessionID string, flowType models.FlowType, key models.DataKey, value string) error

	// TransitionState transitions from one state to another
	TransitionState(ctx context.Context, sessionID string, flowType models.FlowType, fromState, toState models.StateType) error

	// ResetState removes all state data for a session in a flow
	ResetState(ctx context.Context, sessionID string, flowType models.FlowType) error
}

// Timer defines the interface for scheduling delayed actions.
type Timer interface {
	// ScheduleAfter schedules a function to run after a delay and returns a handle for Cancel
	ScheduleAfter(delay time.Duration, fn func()) (string, error)

	// Cancel cancels a scheduled function; unknown IDs are ignored
	Cancel(id string) error

	// Stop cancels every scheduled function
	Stop()

	// ListActive describes the functions still waiting to run
	ListActive() []models.TimerInfo
}

// Responder produces the assistant's reply for utterances no scripted flow handles.
type Responder interface {
	Respond(ctx context.Context, utterance string) (string, error)
}

// MessageArchive records appended messages outside the session.
type MessageArchive interface {
	AppendMessage(sessionID string, m models.Message) error
}
