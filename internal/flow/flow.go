// Package flow implements the conversation controller and the scripted flows it dispatches to.
package flow

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/BTreeMap/OpsCopilot/internal/models"
)

// Errors returned by the controller and flows.
var (
	ErrBusy              = errors.New("assistant is busy with another request")
	ErrClosed            = errors.New("conversation is closed")
	ErrNoActiveFlow      = errors.New("no flow in progress")
	ErrActionUnavailable = errors.New("action not available in the current state")
	ErrUnknownOrder      = errors.New("unknown order")
	ErrUnknownFlow       = errors.New("no flow registered for type")
)

// ScriptedFlow is the state machine for one flow variant. All methods are
// called with the owning controller's lock held.
type ScriptedFlow interface {
	Type() models.FlowType
	State() models.StateType
	// Start enters the first state and schedules the flow's staged messages.
	Start(r *Run)
	// Actions lists the actions the current state accepts.
	Actions() []models.ActionID
	// Handle applies an action already checked against Actions.
	Handle(r *Run, req models.ActionRequest) error
	// Findings returns the items currently under review, if any.
	Findings() []models.Finding
	// Orders returns every order the flow tracks, resolved ones included.
	Orders() []models.PendingOrder

	transition(to models.StateType) error
}

// Factory builds a fresh flow instance.
type Factory func() ScriptedFlow

var (
	registryMu sync.RWMutex
	registry   = make(map[models.FlowType]Factory)
)

// Register associates a FlowType with a Factory.
func Register(ft models.FlowType, factory Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[ft] = factory
}

// Get retrieves the Factory for a given FlowType.
func Get(ft models.FlowType) (Factory, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	factory, ok := registry[ft]
	return factory, ok
}

// New builds the flow registered for ft.
func New(ft models.FlowType) (ScriptedFlow, error) {
	factory, ok := Get(ft)
	if !ok {
		slog.Error("No flow registered for type", "type", ft)
		return nil, fmt.Errorf("%w %s", ErrUnknownFlow, ft)
	}
	return factory(), nil
}

// Register default flows
func init() {
	Register(models.FlowTypeDiscrepancy, func() ScriptedFlow { return NewDiscrepancyFlow() })
	Register(models.FlowTypeSummary, func() ScriptedFlow { return NewSummaryFlow() })
	Register(models.FlowTypePendingOrders, func() ScriptedFlow { return NewPendingOrdersFlow() })
	Register(models.FlowTypeFallback, func() ScriptedFlow { return NewFallbackFlow() })
}

// intent maps keywords to a flow; the first entry with a matching keyword wins.
type intent struct {
	keywords []string
	flow     models.FlowType
}

var intents = []intent{
	{keywords: []string{"discrep", "sync"}, flow: models.FlowTypeDiscrepancy},
	{keywords: []string{"summarize", "activity"}, flow: models.FlowTypeSummary},
	{keywords: []string{"pending", "urgent"}, flow: models.FlowTypePendingOrders},
}

// Classify picks the flow for an utterance by case-insensitive substring match.
func Classify(text string) models.FlowType {
	lower := strings.ToLower(text)
	for _, in := range intents {
		for _, kw := range in.keywords {
			if strings.Contains(lower, kw) {
				return in.flow
			}
		}
	}
	return models.FlowTypeFallback
}

// machine holds a flow's current state and its allowed transitions.
type machine struct {
	state       models.StateType
	transitions map[models.StateType][]models.StateType
}

func newMachine(transitions map[models.StateType][]models.StateType) machine {
	return machine{state: models.StateIdle, transitions: transitions}
}

func (m *machine) State() models.StateType {
	return m.state
}

func (m *machine) transition(to models.StateType) error {
	for _, allowed := range m.transitions[m.state] {
		if allowed == to {
			m.state = to
			return nil
		}
	}
	return fmt.Errorf("invalid state transition: %s -> %s", m.state, to)
}

func copyFindings(in []models.Finding) []models.Finding {
	if in == nil {
		return nil
	}
	out := make([]models.Finding, len(in))
	copy(out, in)
	return out
}
