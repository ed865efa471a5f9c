package flow

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/BTreeMap/OpsCopilot/internal/models"
)

// AllOrdersProcessedText closes the pending-orders review.
const AllOrdersProcessedText = "All pending orders processed!"

// PendingOrdersFlow lists orders awaiting review and resolves once every
// order has been approved or sent back for changes.
type PendingOrdersFlow struct {
	machine
	orders []models.PendingOrder
}

// NewPendingOrdersFlow creates a pending-orders flow in IDLE.
func NewPendingOrdersFlow() *PendingOrdersFlow {
	return &PendingOrdersFlow{
		machine: newMachine(map[models.StateType][]models.StateType{
			models.StateIdle:    {models.StateListing},
			models.StateListing: {models.StateResolved},
		}),
		orders: models.SeedPendingOrders(),
	}
}

// Type returns the flow type.
func (f *PendingOrdersFlow) Type() models.FlowType {
	return models.FlowTypePendingOrders
}

// Start lists the orders immediately.
func (f *PendingOrdersFlow) Start(r *Run) {
	r.Log("Retrieving pending orders", models.ActivitySystem)
	r.Transition(models.StateListing, "start")
	r.Say(models.OrdersContent{Orders: f.Orders()}, models.ActionApproveOrder, models.ActionRequestOrderChanges)
	r.Composing(false)
}

// Actions lists the buttons the current state offers.
func (f *PendingOrdersFlow) Actions() []models.ActionID {
	if f.state == models.StateListing {
		return []models.ActionID{models.ActionApproveOrder, models.ActionRequestOrderChanges}
	}
	return nil
}

// Handle records the review decision for one order.
func (f *PendingOrdersFlow) Handle(r *Run, req models.ActionRequest) error {
	idx := f.indexOf(req.OrderID)
	if idx < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownOrder, req.OrderID)
	}
	order := &f.orders[idx]
	if order.Review != models.ReviewPending {
		return fmt.Errorf("%w: order %s already %s", ErrActionUnavailable, order.ID, order.Review)
	}

	switch req.Action {
	case models.ActionApproveOrder:
		order.Review = models.ReviewApproved
		r.Log(fmt.Sprintf("Order %s approved", order.ID), models.ActivitySuccess)
	case models.ActionRequestOrderChanges:
		order.Review = models.ReviewChangesRequested
		r.Log(fmt.Sprintf("Changes requested for order %s", order.ID), models.ActivityInfo)
	default:
		return ErrActionUnavailable
	}
	order.Resolved = true
	r.SetData(models.DataKeyReviewedOrders, f.reviewsJSON())
	slog.Debug("PendingOrdersFlow.Handle: order reviewed", "orderID", order.ID, "review", order.Review)

	if len(models.ActiveOrders(f.orders)) > 0 {
		r.Refresh()
		return nil
	}
	r.Say(models.TextContent{Text: AllOrdersProcessedText})
	r.Resolve("all_reviewed")
	return nil
}

// Findings returns nil; the review tracks orders instead.
func (f *PendingOrdersFlow) Findings() []models.Finding {
	return nil
}

// Orders returns a copy of every order, reviewed ones included.
func (f *PendingOrdersFlow) Orders() []models.PendingOrder {
	out := make([]models.PendingOrder, len(f.orders))
	copy(out, f.orders)
	return out
}

func (f *PendingOrdersFlow) indexOf(id string) int {
	for i, o := range f.orders {
		if o.ID == id {
			return i
		}
	}
	return -1
}

func (f *PendingOrdersFlow) reviewsJSON() string {
	reviews := make(map[string]models.ReviewState, len(f.orders))
	for _, o := range f.orders {
		if o.Review != models.ReviewPending {
			reviews[o.ID] = o.Review
		}
	}
	data, err := json.Marshal(reviews)
	if err != nil {
		slog.Error("PendingOrdersFlow: failed to encode reviews", "error", err)
		return ""
	}
	return string(data)
}
