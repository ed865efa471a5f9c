package flow

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/BTreeMap/OpsCopilot/internal/metrics"
	"github.com/BTreeMap/OpsCopilot/internal/models"
)

// GreetingText opens every session unless disabled with WithoutGreeting.
const GreetingText = "Hello! I'm your AI Copilot. I can help you analyze orders, sync data, or generate reports based on your preferences. How can I assist you today?"

// CancelledText is appended when the user cancels an in-flight flow.
const CancelledText = "Okay, I've stopped that task. Let me know what you'd like to do next."

// subscriberBuffer is the per-subscriber event channel capacity.
const subscriberBuffer = 64

// Delays holds the pause before each staged step of the scripted flows.
type Delays struct {
	Scan     time.Duration // before the progress notice
	Find     time.Duration // from the progress notice to the findings
	Execute  time.Duration // from a confirming action to its result
	Fallback time.Duration // before the fallback reply
	// Scale multiplies every delay; zero or negative means 1.
	Scale float64
}

// DefaultDelays returns the production pacing.
func DefaultDelays() Delays {
	return Delays{
		Scan:     1500 * time.Millisecond,
		Find:     2000 * time.Millisecond,
		Execute:  3000 * time.Millisecond,
		Fallback: 1000 * time.Millisecond,
		Scale:    1,
	}
}

func (d Delays) scaled(delay time.Duration) time.Duration {
	if d.Scale <= 0 || d.Scale == 1 {
		return delay
	}
	return time.Duration(float64(delay) * d.Scale)
}

// Option configures a Controller.
type Option func(*Controller)

// WithSessionID sets the session identifier; a UUID is generated otherwise.
func WithSessionID(id string) Option {
	return func(c *Controller) { c.id = id }
}

// WithTimer injects the scheduler. The controller stops timers it creates
// itself on Close, but never an injected one.
func WithTimer(t Timer) Option {
	return func(c *Controller) {
		c.timer = t
		c.ownsTimer = false
	}
}

// WithDelays overrides the staged step delays.
func WithDelays(d Delays) Option {
	return func(c *Controller) { c.delays = d }
}

// WithResponder sets the responder used by the fallback flow.
func WithResponder(r Responder) Option {
	return func(c *Controller) { c.responder = r }
}

// WithArchive records every appended message in an external archive.
func WithArchive(a MessageArchive) Option {
	return func(c *Controller) { c.archive = a }
}

// WithStateManager persists flow state while flows run.
func WithStateManager(sm StateManager) Option {
	return func(c *Controller) { c.states = sm }
}

// WithoutGreeting starts the session with an empty transcript.
func WithoutGreeting() Option {
	return func(c *Controller) { c.greeting = false }
}

// WithClock overrides the clock used for message and activity timestamps.
func WithClock(now func() time.Time) Option {
	return func(c *Controller) { c.now = now }
}

// Controller owns one conversation session: its message log, the composing
// flag, the activity log and at most one in-flight flow.
type Controller struct {
	mu sync.Mutex

	id        string
	timer     Timer
	ownsTimer bool
	delays    Delays
	responder Responder
	archive   MessageArchive
	states    StateManager
	greeting  bool
	now       func() time.Time

	baseCtx    context.Context
	baseCancel context.CancelFunc

	messages     []models.Message
	composing    bool
	active       *Run
	activity     []models.ActivityEntry
	nextActivity int64
	transitions  []models.StateTransition
	subscribers  map[int]chan models.Event
	nextSub      int
	closed       bool
}

// NewController creates a session. Without options it uses a SimpleTimer,
// the default delays and the canned fallback responder.
func NewController(opts ...Option) *Controller {
	c := &Controller{
		delays:      DefaultDelays(),
		responder:   CannedResponder{},
		greeting:    true,
		now:         time.Now,
		subscribers: make(map[int]chan models.Event),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.id == "" {
		c.id = uuid.NewString()
	}
	if c.timer == nil {
		c.timer = NewSimpleTimer()
		c.ownsTimer = true
	}
	if c.responder == nil {
		c.responder = CannedResponder{}
	}
	c.baseCtx, c.baseCancel = context.WithCancel(context.Background())

	c.mu.Lock()
	c.logActivityLocked("Session started", models.ActivitySystem)
	if c.greeting {
		c.appendLocked(models.RoleAssistant, models.TextContent{Text: GreetingText}, nil)
	}
	c.mu.Unlock()

	slog.Info("Controller created", "sessionID", c.id, "greeting", c.greeting)
	return c
}

// ID returns the session identifier.
func (c *Controller) ID() string {
	return c.id
}

// Submit appends a user message and starts the flow its text selects.
// Blank text is ignored and reported as false. A message sent while a flow
// is in flight is rejected with ErrBusy and not appended.
func (c *Controller) Submit(ctx context.Context, text string) (bool, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		slog.Debug("Controller.Submit: ignoring blank message", "sessionID", c.id)
		return false, nil
	}
	if len(trimmed) > models.MaxMessageTextLength {
		return false, models.ErrMessageTooLong
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false, ErrClosed
	}
	if c.active != nil {
		slog.Warn("Controller.Submit: rejected while flow in progress", "sessionID", c.id, "activeFlow", c.active.flow.Type())
		return false, ErrBusy
	}

	ft := Classify(trimmed)
	f, err := New(ft)
	if err != nil {
		return false, err
	}

	c.appendLocked(models.RoleUser, models.TextContent{Text: trimmed}, nil)
	c.setComposingLocked(true)

	r := newRun(c, f, trimmed)
	c.active = r
	r.SetData(models.DataKeyStartedAt, c.now().UTC().Format(time.RFC3339))
	r.SetData(models.DataKeyTrigger, trimmed)
	slog.Info("Controller.Submit: starting flow", "sessionID", c.id, "flowType", ft)
	f.Start(r)
	metrics.RecordFlowStarted(string(ft))
	return true, nil
}

// Act routes a button click to the in-flight flow.
func (c *Controller) Act(ctx context.Context, req models.ActionRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	r := c.active
	if r == nil {
		return ErrNoActiveFlow
	}
	if !slices.Contains(r.flow.Actions(), req.Action) {
		slog.Warn("Controller.Act: action not available", "sessionID", c.id, "flowType", r.flow.Type(), "state", r.flow.State(), "action", req.Action)
		err := fmt.Errorf("%w: %s in %s", ErrActionUnavailable, req.Action, r.flow.State())
		metrics.RecordAction(string(req.Action), err)
		return err
	}
	slog.Debug("Controller.Act: dispatching", "sessionID", c.id, "flowType", r.flow.Type(), "action", req.Action, "orderID", req.OrderID)
	err := r.flow.Handle(r, req)
	metrics.RecordAction(string(req.Action), err)
	return err
}

// CancelFlow abandons the in-flight flow and tells the user so.
func (c *Controller) CancelFlow(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	r := c.active
	if r == nil {
		return ErrNoActiveFlow
	}
	ft, state := r.flow.Type(), r.flow.State()
	c.teardownLocked(r, "cancelled")
	c.logActivityLocked(fmt.Sprintf("Cancelled %s flow", ft), models.ActivityInfo)
	c.appendLocked(models.RoleAssistant, models.TextContent{Text: CancelledText}, nil)
	c.setComposingLocked(false)
	c.publishLocked(models.Event{Type: models.EventFlowState, FlowType: ft, State: models.StateIdle})
	slog.Info("Controller.CancelFlow: flow cancelled", "sessionID", c.id, "flowType", ft, "state", state)
	return nil
}

// Close tears the session down. Pending steps are dropped without a trace
// and later calls return ErrClosed. Close is idempotent.
func (c *Controller) Close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	if r := c.active; r != nil {
		c.teardownLocked(r, "closed")
	}
	c.closed = true
	c.composing = false
	c.baseCancel()
	if c.ownsTimer {
		c.timer.Stop()
	}
	c.publishLocked(models.Event{Type: models.EventClosed})
	for id, ch := range c.subscribers {
		close(ch)
		delete(c.subscribers, id)
	}
	slog.Info("Controller.Close: session closed", "sessionID", c.id)
}

// Snapshot returns a copy of the session state.
func (c *Controller) Snapshot() models.ConversationState {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := models.ConversationState{
		SessionID: c.id,
		Messages:  slices.Clone(c.messages),
		Composing: c.composing,
		FlowState: models.StateIdle,
		Closed:    c.closed,
	}
	if r := c.active; r != nil {
		st.ActiveFlow = r.flow.Type()
		st.FlowState = r.flow.State()
		st.Actions = models.Actions(r.flow.Actions()...)
		st.Findings = r.flow.Findings()
		if orders := r.flow.Orders(); orders != nil {
			st.Orders = models.ActiveOrders(orders)
		}
	}
	return st
}

// Messages returns a copy of the message log in append order.
func (c *Controller) Messages() []models.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.messages)
}

// Composing reports whether the assistant is working on a reply.
func (c *Controller) Composing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.composing
}

// Activity returns the activity log, newest first.
func (c *Controller) Activity() []models.ActivityEntry {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]models.ActivityEntry, len(c.activity))
	for i, e := range c.activity {
		out[len(c.activity)-1-i] = e
	}
	return out
}

// Transitions returns every flow state change recorded in this session.
func (c *Controller) Transitions() []models.StateTransition {
	c.mu.Lock()
	defer c.mu.Unlock()
	return slices.Clone(c.transitions)
}

// PendingTimers describes scheduled steps that have not yet run.
func (c *Controller) PendingTimers() []models.TimerInfo {
	c.mu.Lock()
	r := c.active
	var ids []string
	if r != nil {
		ids = slices.Clone(r.timerIDs)
	}
	c.mu.Unlock()
	if len(ids) == 0 {
		return nil
	}
	var out []models.TimerInfo
	for _, info := range c.timer.ListActive() {
		if slices.Contains(ids, info.ID) {
			out = append(out, info)
		}
	}
	return out
}

// Subscribe registers for session events. The returned function
// unsubscribes; the channel is closed then or when the session closes.
func (c *Controller) Subscribe() (<-chan models.Event, func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ch := make(chan models.Event, subscriberBuffer)
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	id := c.nextSub
	c.nextSub++
	c.subscribers[id] = ch
	slog.Debug("Controller.Subscribe: subscriber added", "sessionID", c.id, "subscriber", id)

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if sub, ok := c.subscribers[id]; ok {
				close(sub)
				delete(c.subscribers, id)
			}
		})
	}
}

func (c *Controller) appendLocked(role models.Role, content models.Content, actions []models.Action) models.Message {
	m := models.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		Actions:   actions,
		CreatedAt: c.now(),
	}
	c.messages = append(c.messages, m)
	if c.archive != nil {
		if err := c.archive.AppendMessage(c.id, m); err != nil {
			slog.Error("Controller: failed to archive message", "error", err, "sessionID", c.id, "messageID", m.ID)
		}
	}
	slog.Debug("Controller: message appended", "sessionID", c.id, "role", role, "kind", content.Kind())
	c.publishLocked(models.Event{Type: models.EventMessage, Message: &m})
	return m
}

func (c *Controller) setComposingLocked(on bool) {
	if c.composing == on {
		return
	}
	c.composing = on
	c.publishLocked(models.Event{Type: models.EventComposing})
}

func (c *Controller) logActivityLocked(text string, level models.ActivityLevel) {
	c.nextActivity++
	c.activity = append(c.activity, models.ActivityEntry{
		ID:    c.nextActivity,
		Text:  text,
		Level: level,
		Time:  c.now(),
	})
}

func (c *Controller) recordTransitionLocked(r *Run, from, to models.StateType, trigger string) {
	ft := r.flow.Type()
	c.transitions = append(c.transitions, models.StateTransition{
		FlowType:  ft,
		FromState: from,
		ToState:   to,
		Trigger:   trigger,
		At:        c.now(),
	})
	if c.states != nil {
		if err := c.states.SetCurrentState(c.baseCtx, c.id, ft, to); err != nil {
			slog.Error("Controller: failed to persist flow state", "error", err, "sessionID", c.id, "flowType", ft, "state", to)
		}
	}
	metrics.RecordStateTransition(string(ft), string(from), string(to))
	slog.Info("Controller: flow transition", "sessionID", c.id, "flowType", ft, "from", from, "to", to, "trigger", trigger)
	c.publishLocked(models.Event{Type: models.EventFlowState, FlowType: ft, State: to})
}

// teardownLocked releases r if it is still the active run.
func (c *Controller) teardownLocked(r *Run, reason string) {
	if c.active != r {
		return
	}
	r.release()
	c.active = nil
	if c.states != nil {
		if err := c.states.ResetState(c.baseCtx, c.id, r.flow.Type()); err != nil {
			slog.Error("Controller: failed to reset flow state", "error", err, "sessionID", c.id, "flowType", r.flow.Type())
		}
	}
	metrics.RecordFlowEnded(string(r.flow.Type()), reason)
	slog.Debug("Controller: flow released", "sessionID", c.id, "flowType", r.flow.Type(), "reason", reason)
}

func (c *Controller) publishLocked(ev models.Event) {
	ev.SessionID = c.id
	ev.Composing = c.composing
	if ev.Time.IsZero() {
		ev.Time = c.now()
	}
	for id, ch := range c.subscribers {
		select {
		case ch <- ev:
		default:
			metrics.RecordEventDropped()
			slog.Warn("Controller: subscriber buffer full, dropping event", "sessionID", c.id, "subscriber", id, "event", ev.Type)
		}
	}
}
