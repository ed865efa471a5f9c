package flow

import (
	"context"
	"log/slog"
	"time"

	"github.com/BTreeMap/OpsCopilot/internal/models"
)

// Run is the cancellation scope of one in-flight flow. Every timer a flow
// schedules goes through its Run, and teardown cancels all of them.
type Run struct {
	c        *Controller
	flow     ScriptedFlow
	ctx      context.Context
	cancel   context.CancelFunc
	timerIDs []string
	trigger  string
	done     bool
}

func newRun(c *Controller, f ScriptedFlow, trigger string) *Run {
	ctx, cancel := context.WithCancel(c.baseCtx)
	return &Run{c: c, flow: f, ctx: ctx, cancel: cancel, trigger: trigger}
}

// Context is cancelled when the run is torn down.
func (r *Run) Context() context.Context {
	return r.ctx
}

// Trigger returns the utterance that started the run.
func (r *Run) Trigger() string {
	return r.trigger
}

// Delays returns the controller's delay table.
func (r *Run) Delays() Delays {
	return r.c.delays
}

// Responder returns the controller's fallback responder.
func (r *Run) Responder() Responder {
	return r.c.responder
}

// live reports whether the run still owns the controller. Requires the lock.
func (r *Run) live() bool {
	return !r.done && r.ctx.Err() == nil && !r.c.closed && r.c.active == r
}

// After runs fn with the controller lock held once delay has elapsed, unless
// the run was torn down first.
func (r *Run) After(delay time.Duration, step string, fn func()) {
	r.schedule(delay, step, func() {
		r.c.mu.Lock()
		defer r.c.mu.Unlock()
		if !r.live() {
			slog.Debug("Run: dropping step of finished flow", "sessionID", r.c.id, "flowType", r.flow.Type(), "step", step)
			return
		}
		fn()
	})
}

// AfterCompute waits for delay, runs compute without the controller lock and
// then applies its result with the lock held. Either half is skipped once the
// run is torn down.
func (r *Run) AfterCompute(delay time.Duration, step string, compute func(ctx context.Context) string, apply func(result string)) {
	r.schedule(delay, step, func() {
		r.c.mu.Lock()
		live := r.live()
		r.c.mu.Unlock()
		if !live {
			slog.Debug("Run: dropping step of finished flow", "sessionID", r.c.id, "flowType", r.flow.Type(), "step", step)
			return
		}

		result := compute(r.ctx)

		r.c.mu.Lock()
		defer r.c.mu.Unlock()
		if !r.live() {
			slog.Debug("Run: discarding result of finished flow", "sessionID", r.c.id, "flowType", r.flow.Type(), "step", step)
			return
		}
		apply(result)
	})
}

func (r *Run) schedule(delay time.Duration, step string, fn func()) {
	scaled := r.c.delays.scaled(delay)
	id, err := r.c.timer.ScheduleAfter(scaled, fn)
	if err != nil {
		slog.Error("Run: failed to schedule step", "error", err, "sessionID", r.c.id, "flowType", r.flow.Type(), "step", step)
		return
	}
	r.timerIDs = append(r.timerIDs, id)
	slog.Debug("Run: scheduled step", "sessionID", r.c.id, "flowType", r.flow.Type(), "step", step, "delay", scaled, "timerID", id)
}

// Say appends an assistant message.
func (r *Run) Say(content models.Content, actions ...models.ActionID) models.Message {
	return r.c.appendLocked(models.RoleAssistant, content, models.Actions(actions...))
}

// Echo appends a user-attributed message, used when a button speaks for the user.
func (r *Run) Echo(text string) models.Message {
	return r.c.appendLocked(models.RoleUser, models.TextContent{Text: text}, nil)
}

// Composing sets the assistant composing flag.
func (r *Run) Composing(on bool) {
	r.c.setComposingLocked(on)
}

// Log records an activity entry.
func (r *Run) Log(text string, level models.ActivityLevel) {
	r.c.logActivityLocked(text, level)
}

// Transition moves the flow to a new state and records it.
func (r *Run) Transition(to models.StateType, trigger string) bool {
	from := r.flow.State()
	if err := r.flow.transition(to); err != nil {
		slog.Error("Run: rejected transition", "error", err, "sessionID", r.c.id, "flowType", r.flow.Type(), "trigger", trigger)
		return false
	}
	r.c.recordTransitionLocked(r, from, to, trigger)
	return true
}

// Refresh notifies subscribers that flow data changed without a state change.
func (r *Run) Refresh() {
	r.c.publishLocked(models.Event{Type: models.EventFlowState, FlowType: r.flow.Type(), State: r.flow.State()})
}

// SetData persists a state data value for the flow.
func (r *Run) SetData(key models.DataKey, value string) {
	if r.c.states == nil {
		return
	}
	if err := r.c.states.SetStateData(r.c.baseCtx, r.c.id, r.flow.Type(), key, value); err != nil {
		slog.Warn("Run: failed to persist state data", "error", err, "sessionID", r.c.id, "key", key)
	}
}

// Resolve moves the flow to RESOLVED, clears the composing flag and releases the controller.
func (r *Run) Resolve(trigger string) {
	r.Transition(models.StateResolved, trigger)
	r.c.setComposingLocked(false)
	r.c.teardownLocked(r, "resolved")
}

// release cancels the scope and every timer it scheduled. Safe to call more than once.
func (r *Run) release() {
	if r.done {
		return
	}
	r.done = true
	r.cancel()
	for _, id := range r.timerIDs {
		if err := r.c.timer.Cancel(id); err != nil {
			slog.Warn("Run: failed to cancel timer", "error", err, "timerID", id)
		}
	}
	r.timerIDs = nil
}
