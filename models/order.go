package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OrderType is the brokerage order type.
type OrderType string

const (
	OrderTypeMarket OrderType = "MARKET"
	OrderTypeLimit  OrderType = "LIMIT"
)

// OrderStatus is the lifecycle status of an order. PENDING also covers the
// "outcome unknown" state after exhausted retries; callers reconcile via an
// order-status query rather than assuming either way.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusComplete  OrderStatus = "COMPLETE"
	OrderStatusRejected  OrderStatus = "REJECTED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Order is a brokerage order. ClientRequestID is caller-generated and keys
// idempotent resubmission; BrokerOrderID is assigned by the brokerage after
// a successful submission.
type Order struct {
	ClientRequestID string           `json:"client_request_id"`
	BrokerOrderID   string           `json:"broker_order_id,omitempty"`
	Action          SignalAction     `json:"action"`
	Quantity        decimal.Decimal  `json:"quantity"`
	OrderType       OrderType        `json:"order_type"`
	Price           *decimal.Decimal `json:"price,omitempty"`
	StopLoss        *decimal.Decimal `json:"stop_loss,omitempty"`
	TakeProfit      *decimal.Decimal `json:"take_profit,omitempty"`
	Status          OrderStatus      `json:"status"`
	CreatedAt       time.Time        `json:"created_at"`
}

// NewOrder creates a PENDING order with a fresh client request id.
func NewOrder(action SignalAction, quantity decimal.Decimal, orderType OrderType) *Order {
	return &Order{
		ClientRequestID: uuid.NewString(),
		Action:          action,
		Quantity:        quantity,
		OrderType:       orderType,
		Status:          OrderStatusPending,
		CreatedAt:       time.Now(),
	}
}
