package models

// Severity classifies a finding.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
	SeveritySuccess Severity = "success"
)

// Finding is one line item of a scan result.
type Finding struct {
	OrderID  string   `json:"order_id"`
	Label    string   `json:"label"`
	Severity Severity `json:"severity"`
}

// Artifact references a generated document.
type Artifact struct {
	Name      string `json:"name"`
	SizeLabel string `json:"size_label,omitempty"`
	Note      string `json:"note,omitempty"`
}

// OrderStatus is the priority of a pending order.
type OrderStatus string

const (
	OrderStatusPending OrderStatus = "pending"
	OrderStatusUrgent  OrderStatus = "urgent"
)

// ReviewState tracks what the user decided for a pending order.
type ReviewState string

const (
	ReviewPending          ReviewState = "pending"
	ReviewApproved         ReviewState = "approved"
	ReviewChangesRequested ReviewState = "changes_requested"
)

// PendingOrder is an order awaiting review.
type PendingOrder struct {
	ID       string      `json:"id"`
	Client   string      `json:"client"`
	Amount   string      `json:"amount"`
	Status   OrderStatus `json:"status"`
	Details  string      `json:"details"`
	Review   ReviewState `json:"review"`
	Resolved bool        `json:"resolved"`
}

// SeedPendingOrders returns a fresh copy of the orders awaiting review.
func SeedPendingOrders() []PendingOrder {
	return []PendingOrder{
		{ID: "ORD-5001", Client: "Alpha Corp", Amount: "$12,500", Status: OrderStatusUrgent, Details: "Requires immediate approval for expedited shipping due to stock delay.", Review: ReviewPending},
		{ID: "ORD-5002", Client: "Beta Ltd", Amount: "$4,200", Status: OrderStatusPending, Details: "Standard restock. Verify discount application.", Review: ReviewPending},
		{ID: "ORD-5003", Client: "Gamma Inc", Amount: "$8,900", Status: OrderStatusPending, Details: "New client account. Credit check passed.", Review: ReviewPending},
	}
}

// ActiveOrders filters out resolved orders without modifying the input.
func ActiveOrders(orders []PendingOrder) []PendingOrder {
	active := make([]PendingOrder, 0, len(orders))
	for _, o := range orders {
		if !o.Resolved {
			active = append(active, o)
		}
	}
	return active
}

// DemoCustomer is the account the canned scans run against.
const DemoCustomer = "TechDealer Solutions"

// SeedDiscrepancies returns the shipment discrepancies the sync scan finds.
func SeedDiscrepancies() []Finding {
	return []Finding{
		{OrderID: "ORD-2054", Label: "Weight mismatch", Severity: SeverityWarning},
		{OrderID: "ORD-2051", Label: "Timestamp sync error", Severity: SeverityInfo},
		{OrderID: "ORD-2048", Label: "Missing carrier update", Severity: SeveritySuccess},
	}
}

// SeedActivityFindings returns the orders the activity summary reports.
func SeedActivityFindings() []Finding {
	return []Finding{
		{OrderID: "ORD-2054", Label: "$850k - Missing Logistics Provider", Severity: SeverityWarning},
		{OrderID: "ORD-2051", Label: "$420k - In Transit", Severity: SeverityInfo},
		{OrderID: "ORD-2048", Label: "$120k - Delivered", Severity: SeveritySuccess},
	}
}
