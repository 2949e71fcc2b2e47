package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Trade is one executed (or attempted) trade in the local ledger, keyed by
// the client request id used for idempotent submission. The ledger is the
// audit trail for reconciling local state against the brokerage order book.
type Trade struct {
	ID              uuid.UUID        `json:"id"`
	ClientRequestID string           `json:"client_request_id"`
	BrokerOrderID   string           `json:"broker_order_id,omitempty"`
	Timeframe       Timeframe        `json:"timeframe"`
	Action          SignalAction     `json:"action"`
	Quantity        decimal.Decimal  `json:"quantity"`
	OrderType       OrderType        `json:"order_type"`
	Price           *decimal.Decimal `json:"price,omitempty"`
	StopLoss        *decimal.Decimal `json:"stop_loss,omitempty"`
	TakeProfit      *decimal.Decimal `json:"take_profit,omitempty"`
	Status          OrderStatus      `json:"status"`
	SignalStrength  SignalStrength   `json:"signal_strength,omitempty"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}
