package domain

import "time"

// OrderStatus describes the durable outcome of one submission attempt.
type OrderStatus string

const (
	OrderStatusSubmitted OrderStatus = "submitted"
	OrderStatusRejected  OrderStatus = "rejected"
)

// OrderRequest is what the execution coordinator hands to the broker facade.
type OrderRequest struct {
	ClientOrderID string  `json:"client_order_id"`
	Symbol        string  `json:"symbol"`
	Side          Action  `json:"side"` // BUY or SELL
	Qty           float64 `json:"qty"`
	Type          string  `json:"type"` // "market" or "limit"
	LimitPrice    float64 `json:"limit_price,omitempty"`
}

// BrokerOrderResult is the broker-side acknowledgement of a placed order.
type BrokerOrderResult struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// OrderRecord is the append-only record of one execution attempt. At most one
// non-duplicate record exists per (workflow identity, cycle id); the execution
// coordinator enforces this before submission and the order log's unique key
// backs it up.
type OrderRecord struct {
	ID            string      `json:"id"` // client order id (uuid)
	Workflow      WorkflowID  `json:"workflow"`
	CycleID       int64       `json:"cycle_id"`
	Action        Action      `json:"action"`
	Qty           float64     `json:"qty"`
	LimitPrice    float64     `json:"limit_price,omitempty"`
	BrokerOrderID string      `json:"broker_order_id,omitempty"`
	Status        OrderStatus `json:"status"`
	Reason        string      `json:"reason,omitempty"`
	SubmittedAt   time.Time   `json:"submitted_at"`
}
