package models

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestNewOrder(t *testing.T) {
	order := NewOrder(SignalActionBuy, decimal.NewFromInt(2), OrderTypeMarket)

	if order.Action != SignalActionBuy {
		t.Errorf("Action = %v, want BUY", order.Action)
	}
	if !order.Quantity.Equal(decimal.NewFromInt(2)) {
		t.Errorf("Quantity = %v, want 2", order.Quantity)
	}
	if order.OrderType != OrderTypeMarket {
		t.Errorf("OrderType = %v, want MARKET", order.OrderType)
	}
	if order.Status != OrderStatusPending {
		t.Errorf("Status = %v, want PENDING", order.Status)
	}
	if order.BrokerOrderID != "" {
		t.Error("a new order has no broker order id")
	}
	if order.CreatedAt.IsZero() {
		t.Error("CreatedAt should be set")
	}
	if _, err := uuid.Parse(order.ClientRequestID); err != nil {
		t.Errorf("ClientRequestID should be a UUID, got %q", order.ClientRequestID)
	}
}

func TestNewOrder_UniqueClientRequestIDs(t *testing.T) {
	a := NewOrder(SignalActionBuy, decimal.NewFromInt(1), OrderTypeMarket)
	b := NewOrder(SignalActionBuy, decimal.NewFromInt(1), OrderTypeMarket)

	if a.ClientRequestID == b.ClientRequestID {
		t.Error("each order must get a fresh client request id")
	}
}

func TestVoteSet_Each(t *testing.T) {
	votes := VoteSet{RSI: VoteBuy, MACD: VoteNeutral, Bollinger: VoteSell, Forecast: VoteBuy}

	var order []string
	seen := map[string]Vote{}
	votes.Each(func(name string, vote Vote) {
		order = append(order, name)
		seen[name] = vote
	})

	want := []string{"rsi", "macd", "bollinger", "forecast"}
	if len(order) != len(want) {
		t.Fatalf("expected %d votes, got %d", len(want), len(order))
	}
	for i, name := range want {
		if order[i] != name {
			t.Errorf("position %d: expected %s, got %s", i, name, order[i])
		}
	}
	if seen["bollinger"] != VoteSell {
		t.Errorf("bollinger vote = %v, want SELL", seen["bollinger"])
	}
}
