package flow

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/BTreeMap/OpsCopilot/internal/metrics"
	"github.com/BTreeMap/OpsCopilot/internal/models"
)

// FallbackFlow answers utterances that match no scripted flow.
type FallbackFlow struct {
	machine
}

// NewFallbackFlow creates a fallback flow in IDLE.
func NewFallbackFlow() *FallbackFlow {
	return &FallbackFlow{
		machine: newMachine(map[models.StateType][]models.StateType{
			models.StateIdle:      {models.StateExecuting},
			models.StateExecuting: {models.StateResolved},
		}),
	}
}

// Type returns the flow type.
func (f *FallbackFlow) Type() models.FlowType {
	return models.FlowTypeFallback
}

// Start waits briefly, asks the responder for a reply and resolves.
func (f *FallbackFlow) Start(r *Run) {
	r.Transition(models.StateExecuting, "start")
	utterance := r.Trigger()
	responder := r.Responder()
	r.AfterCompute(r.Delays().Fallback, "reply", func(ctx context.Context) string {
		start := time.Now()
		reply, err := responder.Respond(ctx, utterance)
		metrics.ObserveResponder(time.Since(start).Seconds(), err)
		if err != nil {
			slog.Warn("FallbackFlow: responder failed, using canned reply", "error", err)
			return FallbackText
		}
		if strings.TrimSpace(reply) == "" {
			return FallbackText
		}
		return reply
	}, func(reply string) {
		r.Say(models.TextContent{Text: reply})
		r.Resolve("replied")
	})
}

// Actions returns nil; the fallback offers no buttons.
func (f *FallbackFlow) Actions() []models.ActionID {
	return nil
}

// Handle rejects every action.
func (f *FallbackFlow) Handle(r *Run, req models.ActionRequest) error {
	return ErrActionUnavailable
}

// Findings returns nil.
func (f *FallbackFlow) Findings() []models.Finding {
	return nil
}

// Orders returns nil.
func (f *FallbackFlow) Orders() []models.PendingOrder {
	return nil
}
