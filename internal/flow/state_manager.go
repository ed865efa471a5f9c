package flow

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/OpsCopilot/internal/models"
	"github.com/BTreeMap/OpsCopilot/internal/store"
)

// StoreBasedStateManager implements StateManager using a Store backend.
type StoreBasedStateManager struct {
	store store.FlowStateStore
}

// NewStoreBasedStateManager creates a new StateManager backed by a Store.
func NewStoreBasedStateManager(st store.FlowStateStore) *StoreBasedStateManager {
	slog.Debug("Creating StoreBasedStateManager")
	return &StoreBasedStateManager{store: st}
}

// GetCurrentState retrieves the current state for a session in a flow.
func (sm *StoreBasedStateManager) GetCurrentState(ctx context.Context, sessionID string, flowType models.FlowType) (models.StateType, error) {
	flowState, err := sm.store.GetFlowState(sessionID, string(flowType))
	if err != nil {
		slog.Error("StateManager GetCurrentState error", "error", err, "sessionID", sessionID, "flowType", flowType)
		return "", err
	}
	if flowState == nil {
		slog.Debug("StateManager GetCurrentState not found", "sessionID", sessionID, "flowType", flowType)
		return "", nil
	}
	return flowState.CurrentState, nil
}

// SetCurrentState updates the current state for a session in a flow.
func (sm *StoreBasedStateManager) SetCurrentState(ctx context.Context, sessionID string, flowType models.FlowType, state models.StateType) error {
	return sm.update(sessionID, flowType, func(fs *models.FlowState) {
		fs.CurrentState = state
	})
}

// GetStateData retrieves additional data associated with the session's state.
func (sm *StoreBasedStateManager) GetStateData(ctx context.Context, sessionID string, flowType models.FlowType, key models.DataKey) (string, error) {
	flowState, err := sm.store.GetFlowState(sessionID, string(flowType))
	if err != nil {
		slog.Error("StateManager GetStateData error", "error", err, "sessionID", sessionID, "flowType", flowType, "key", key)
		return "", err
	}
	if flowState == nil || flowState.StateData == nil {
		return "", nil
	}
	return flowState.StateData[key], nil
}

// SetStateData stores additional data associated with the session's state.
func (sm *StoreBasedStateManager) SetStateData(ctx context.Context, sessionID string, flowType models.FlowType, key models.DataKey, value string) error {
	return sm.update(sessionID, flowType, func(fs *models.FlowState) {
		if fs.StateData == nil {
			fs.StateData = make(map[models.DataKey]string)
		}
		fs.StateData[key] = value
	})
}

// TransitionState transitions from one state to another.
func (sm *StoreBasedStateManager) TransitionState(ctx context.Context, sessionID string, flowType models.FlowType, fromState, toState models.StateType) error {
	currentState, err := sm.GetCurrentState(ctx, sessionID, flowType)
	if err != nil {
		return err
	}
	if currentState != fromState {
		err := fmt.Errorf("invalid state transition: expected %s, current is %s", fromState, currentState)
		slog.Error("StateManager TransitionState invalid transition", "error", err, "sessionID", sessionID, "flowType", flowType)
		return err
	}
	if err := sm.SetCurrentState(ctx, sessionID, flowType, toState); err != nil {
		return err
	}
	slog.Debug("StateManager TransitionState succeeded", "sessionID", sessionID, "flowType", flowType, "from", fromState, "to", toState)
	return nil
}

// ResetState removes all state data for a session in a flow.
func (sm *StoreBasedStateManager) ResetState(ctx context.Context, sessionID string, flowType models.FlowType) error {
	if err := sm.store.DeleteFlowState(sessionID, string(flowType)); err != nil {
		slog.Error("StateManager ResetState error", "error", err, "sessionID", sessionID, "flowType", flowType)
		return err
	}
	slog.Debug("StateManager ResetState succeeded", "sessionID", sessionID, "flowType", flowType)
	return nil
}

// update loads or creates the flow state, applies fn and saves it.
func (sm *StoreBasedStateManager) update(sessionID string, flowType models.FlowType, fn func(*models.FlowState)) error {
	flowState, err := sm.store.GetFlowState(sessionID, string(flowType))
	if err != nil {
		slog.Error("StateManager get error", "error", err, "sessionID", sessionID, "flowType", flowType)
		return err
	}

	now := time.Now()
	if flowState == nil {
		flowState = &models.FlowState{
			SessionID: sessionID,
			FlowType:  flowType,
			CreatedAt: now,
		}
	}
	fn(flowState)
	flowState.UpdatedAt = now

	if err := sm.store.SaveFlowState(*flowState); err != nil {
		slog.Error("StateManager save error", "error", err, "sessionID", sessionID, "flowType", flowType)
		return err
	}
	return nil
}
