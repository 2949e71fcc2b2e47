package repository

import (
	"context"
	"time"

	"gold-trader/models"

	"github.com/google/uuid"
)

// Store defines all repository operations the pipeline depends on
type Store interface {
	// Health and lifecycle
	Close()
	Health(ctx context.Context) error

	// Price bars
	GetBars(ctx context.Context, tf models.Timeframe, limit int) ([]models.PriceBar, error)
	InsertBars(ctx context.Context, tf models.Timeframe, bars []models.PriceBar) error
	CountBars(ctx context.Context, tf models.Timeframe) (int, error)

	// Trade ledger
	CreateTrade(ctx context.Context, trade *models.Trade) error
	UpdateTradeStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus, brokerOrderID string) error
	GetTrade(ctx context.Context, id uuid.UUID) (*models.Trade, error)
	GetTradeByClientRequestID(ctx context.Context, clientRequestID string) (*models.Trade, error)
	GetTrades(ctx context.Context, limit int) ([]models.Trade, error)
	GetPendingTrades(ctx context.Context) ([]models.Trade, error)

	// Signal cache
	GetCachedSignal(ctx context.Context, tf models.Timeframe) (*models.Signal, error)
	CacheSignal(ctx context.Context, signal *models.Signal, ttl time.Duration) error
	InvalidateSignalCache(ctx context.Context, tf models.Timeframe) error
	CleanExpiredSignals(ctx context.Context) (int64, error)
}

// Compile-time interface verification
var _ Store = (*Repository)(nil)
