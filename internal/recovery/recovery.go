// Package recovery cleans up persisted flow state left behind when OpsCopilot
// restarts. Sessions and their pending steps live in process memory, so any
// flow state found in the store at startup belongs to a session that no
// longer exists.
package recovery

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/BTreeMap/OpsCopilot/internal/store"
)

// Recoverable defines the interface for components that can recover their state
type Recoverable interface {
	// RecoverState is called during application startup
	RecoverState(ctx context.Context, registry *RecoveryRegistry) error
}

// RecoveryRegistry provides services that components can use during recovery
type RecoveryRegistry struct {
	store store.Store
	now   func() time.Time
}

// NewRecoveryRegistry creates a new recovery registry
func NewRecoveryRegistry(st store.Store) *RecoveryRegistry {
	return &RecoveryRegistry{store: st, now: time.Now}
}

// GetStore provides access to the store for recovery operations
func (r *RecoveryRegistry) GetStore() store.Store {
	return r.store
}

// RecoveryManager orchestrates recovery of all registered components
type RecoveryManager struct {
	registry     *RecoveryRegistry
	recoverables []Recoverable
}

// NewRecoveryManager creates a new recovery manager
func NewRecoveryManager(st store.Store) *RecoveryManager {
	return &RecoveryManager{
		registry:     NewRecoveryRegistry(st),
		recoverables: make([]Recoverable, 0),
	}
}

// RegisterRecoverable adds a component that can be recovered
func (rm *RecoveryManager) RegisterRecoverable(r Recoverable) {
	rm.recoverables = append(rm.recoverables, r)
}

// RecoverAll performs recovery of all registered components. A failing
// component does not stop the others.
func (rm *RecoveryManager) RecoverAll(ctx context.Context) error {
	slog.Info("Starting application recovery", "components", len(rm.recoverables))

	recoveredCount := 0
	errorCount := 0

	for _, recoverable := range rm.recoverables {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := recoverable.RecoverState(ctx, rm.registry); err != nil {
			slog.Error("Component recovery failed", "error", err, "component", fmt.Sprintf("%T", recoverable))
			errorCount++
			continue
		}
		recoveredCount++
	}

	slog.Info("Application recovery completed", "recovered", recoveredCount, "errors", errorCount)

	if errorCount > 0 {
		return fmt.Errorf("recovery completed with %d errors out of %d components", errorCount, len(rm.recoverables))
	}
	return nil
}

// FlowStateSweeper deletes flow states orphaned by a previous process.
type FlowStateSweeper struct {
	// Cleared is the number of states removed by the last run.
	Cleared int
}

// RecoverState removes every persisted flow state.
func (s *FlowStateSweeper) RecoverState(ctx context.Context, registry *RecoveryRegistry) error {
	st := registry.GetStore()
	states, err := st.ListFlowStates()
	if err != nil {
		return fmt.Errorf("failed to list flow states: %w", err)
	}

	s.Cleared = 0
	var failed int
	for _, state := range states {
		if err := ctx.Err(); err != nil {
			return err
		}
		slog.Info("FlowStateSweeper: clearing orphaned flow state",
			"sessionID", state.SessionID,
			"flowType", state.FlowType,
			"state", state.CurrentState,
			"age", registry.now().Sub(state.UpdatedAt).Round(time.Second))
		if err := st.DeleteFlowState(state.SessionID, string(state.FlowType)); err != nil {
			slog.Error("FlowStateSweeper: failed to delete flow state", "error", err, "sessionID", state.SessionID, "flowType", state.FlowType)
			failed++
			continue
		}
		s.Cleared++
	}
	if failed > 0 {
		return fmt.Errorf("failed to clear %d of %d flow states", failed, len(states))
	}
	return nil
}
