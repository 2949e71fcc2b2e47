package repository

import (
	"context"
	"fmt"
	"time"

	"gold-trader/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// CreateTrade records an attempted trade in the local ledger
func (r *Repository) CreateTrade(ctx context.Context, trade *models.Trade) error {
	if trade.ID == uuid.Nil {
		trade.ID = uuid.New()
	}
	now := time.Now().UTC()
	if trade.CreatedAt.IsZero() {
		trade.CreatedAt = now
	}
	trade.UpdatedAt = now

	_, err := r.db.Exec(ctx, `
		INSERT INTO trades (id, client_request_id, broker_order_id, timeframe, action, quantity,
			order_type, price, stop_loss, take_profit, status, signal_strength, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`, trade.ID, trade.ClientRequestID, nullIfEmpty(trade.BrokerOrderID), trade.Timeframe, trade.Action,
		trade.Quantity, trade.OrderType, trade.Price, trade.StopLoss, trade.TakeProfit,
		trade.Status, nullIfEmpty(string(trade.SignalStrength)), trade.CreatedAt, trade.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to create trade: %w", err)
	}

	return nil
}

// UpdateTradeStatus updates a ledger entry after reconciliation or a broker
// status change
func (r *Repository) UpdateTradeStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus, brokerOrderID string) error {
	tag, err := r.db.Exec(ctx, `
		UPDATE trades
		SET status = $2, broker_order_id = COALESCE($3, broker_order_id), updated_at = NOW()
		WHERE id = $1
	`, id, status, nullIfEmpty(brokerOrderID))

	if err != nil {
		return fmt.Errorf("failed to update trade status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("trade %s not found", id)
	}

	return nil
}

// GetTrade returns a single ledger entry by ID
func (r *Repository) GetTrade(ctx context.Context, id uuid.UUID) (*models.Trade, error) {
	trade, err := r.scanTrade(r.db.QueryRow(ctx, `
		SELECT id, client_request_id, broker_order_id, timeframe, action, quantity,
			order_type, price, stop_loss, take_profit, status, signal_strength, created_at, updated_at
		FROM trades WHERE id = $1
	`, id))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query trade: %w", err)
	}
	return trade, nil
}

// GetTradeByClientRequestID returns the ledger entry for an idempotency key
func (r *Repository) GetTradeByClientRequestID(ctx context.Context, clientRequestID string) (*models.Trade, error) {
	trade, err := r.scanTrade(r.db.QueryRow(ctx, `
		SELECT id, client_request_id, broker_order_id, timeframe, action, quantity,
			order_type, price, stop_loss, take_profit, status, signal_strength, created_at, updated_at
		FROM trades WHERE client_request_id = $1
	`, clientRequestID))
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query trade: %w", err)
	}
	return trade, nil
}

// GetTrades returns the most recent ledger entries
func (r *Repository) GetTrades(ctx context.Context, limit int) ([]models.Trade, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := r.db.Query(ctx, `
		SELECT id, client_request_id, broker_order_id, timeframe, action, quantity,
			order_type, price, stop_loss, take_profit, status, signal_strength, created_at, updated_at
		FROM trades
		ORDER BY created_at DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query trades: %w", err)
	}
	defer rows.Close()

	var trades []models.Trade
	for rows.Next() {
		trade, err := r.scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, *trade)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read trades: %w", err)
	}

	return trades, nil
}

// GetPendingTrades returns ledger entries whose outcome is still unknown,
// for reconciliation against the brokerage order book
func (r *Repository) GetPendingTrades(ctx context.Context) ([]models.Trade, error) {
	rows, err := r.db.Query(ctx, `
		SELECT id, client_request_id, broker_order_id, timeframe, action, quantity,
			order_type, price, stop_loss, take_profit, status, signal_strength, created_at, updated_at
		FROM trades
		WHERE status = $1
		ORDER BY created_at ASC
	`, models.OrderStatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to query pending trades: %w", err)
	}
	defer rows.Close()

	var trades []models.Trade
	for rows.Next() {
		trade, err := r.scanTrade(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan trade: %w", err)
		}
		trades = append(trades, *trade)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read pending trades: %w", err)
	}

	return trades, nil
}

func (r *Repository) scanTrade(row pgx.Row) (*models.Trade, error) {
	var trade models.Trade
	var brokerOrderID, signalStrength *string

	err := row.Scan(&trade.ID, &trade.ClientRequestID, &brokerOrderID, &trade.Timeframe, &trade.Action,
		&trade.Quantity, &trade.OrderType, &trade.Price, &trade.StopLoss, &trade.TakeProfit,
		&trade.Status, &signalStrength, &trade.CreatedAt, &trade.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if brokerOrderID != nil {
		trade.BrokerOrderID = *brokerOrderID
	}
	if signalStrength != nil {
		trade.SignalStrength = models.SignalStrength(*signalStrength)
	}

	return &trade, nil
}

func nullIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
