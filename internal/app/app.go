// Package app is the application facade: it owns the wired collaborators and
// exposes the operations the API layer serves.
package app

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"gold-trader/broker"
	"gold-trader/config"
	"gold-trader/forecast"
	"gold-trader/models"
)

// RepositoryInterface defines the repository operations needed by App
type RepositoryInterface interface {
	Close()
	Health(ctx context.Context) error
	GetTrades(ctx context.Context, limit int) ([]models.Trade, error)
	GetPendingTrades(ctx context.Context) ([]models.Trade, error)
}

// PipelineInterface defines the signal pipeline operations
type PipelineInterface interface {
	GetIndicators(ctx context.Context, tf models.Timeframe, limit int) ([]models.IndicatorSet, error)
	GetForecast(ctx context.Context, tf models.Timeframe) ([]models.ForecastPoint, error)
	GetSignal(ctx context.Context, tf models.Timeframe) (*models.Signal, error)
	GetAllSignals(ctx context.Context) (map[models.Timeframe]*models.Signal, error)
	RetrainForecast(ctx context.Context, tf models.Timeframe) (*forecast.Model, error)
	EvaluateForecast(ctx context.Context, tf models.Timeframe) (*forecast.EvaluationMetrics, error)
	SubmitSignalTrade(ctx context.Context, tf models.Timeframe, action models.SignalAction, quantity decimal.Decimal, orderType models.OrderType, useSignalLevels bool) (*models.Trade, error)
}

// BrokerInterface defines the brokerage gateway operations
type BrokerInterface interface {
	LoginURL() string
	CompleteLogin(ctx context.Context, requestToken string) (models.BrokerSession, error)
	Logout(ctx context.Context)
	Session() models.BrokerSession
	GetProfile(ctx context.Context) (*broker.Profile, error)
	GetMargins(ctx context.Context) (broker.Margins, error)
	GetPositions(ctx context.Context) ([]broker.Position, error)
	GetHoldings(ctx context.Context) ([]broker.Holding, error)
	GetOrders(ctx context.Context) ([]broker.BrokerOrder, error)
	GetOrderStatus(ctx context.Context, brokerOrderID string) (*broker.BrokerOrder, error)
	PlaceOrder(ctx context.Context, order models.Order) (models.Order, error)
	CancelOrder(ctx context.Context, brokerOrderID string) error
	BreakerStatus() map[string]broker.CircuitBreakerStatus
}

// App struct holds application dependencies using interfaces for testability
type App struct {
	cfg      *config.Config
	repo     RepositoryInterface
	pipeline PipelineInterface
	broker   BrokerInterface
}

// New creates a new App application struct
func New(cfg *config.Config, repo RepositoryInterface, pipeline PipelineInterface, gateway BrokerInterface) *App {
	return &App{
		cfg:      cfg,
		repo:     repo,
		pipeline: pipeline,
		broker:   gateway,
	}
}

// Shutdown is called when the app is closing
func (a *App) Shutdown(ctx context.Context) {
	if a.repo != nil {
		a.repo.Close()
	}
}

// Repo returns the repository interface for API handlers
func (a *App) Repo() RepositoryInterface {
	return a.repo
}

// GetIndicators returns recent indicator sets for a timeframe
func (a *App) GetIndicators(ctx context.Context, timeframe string, limit int) ([]models.IndicatorSet, error) {
	tf, err := models.ParseTimeframe(timeframe)
	if err != nil {
		return nil, err
	}
	return a.pipeline.GetIndicators(ctx, tf, limit)
}

// GetForecast returns the forecast for a timeframe over the configured horizon
func (a *App) GetForecast(ctx context.Context, timeframe string) ([]models.ForecastPoint, error) {
	tf, err := models.ParseTimeframe(timeframe)
	if err != nil {
		return nil, err
	}
	return a.pipeline.GetForecast(ctx, tf)
}

// GetSignal returns the fused signal for a timeframe
func (a *App) GetSignal(ctx context.Context, timeframe string) (*models.Signal, error) {
	tf, err := models.ParseTimeframe(timeframe)
	if err != nil {
		return nil, err
	}
	return a.pipeline.GetSignal(ctx, tf)
}

// GetAllSignals returns the signal for every recognized timeframe
func (a *App) GetAllSignals(ctx context.Context) (map[models.Timeframe]*models.Signal, error) {
	return a.pipeline.GetAllSignals(ctx)
}

// RetrainForecast retrains the forecast model for a timeframe
func (a *App) RetrainForecast(ctx context.Context, timeframe string) (*forecast.Model, error) {
	tf, err := models.ParseTimeframe(timeframe)
	if err != nil {
		return nil, err
	}
	return a.pipeline.RetrainForecast(ctx, tf)
}

// EvaluateForecast reports walk-forward accuracy for a timeframe's model
func (a *App) EvaluateForecast(ctx context.Context, timeframe string) (*forecast.EvaluationMetrics, error) {
	tf, err := models.ParseTimeframe(timeframe)
	if err != nil {
		return nil, err
	}
	return a.pipeline.EvaluateForecast(ctx, tf)
}

// BeginBrokerLogin issues the brokerage login URL
func (a *App) BeginBrokerLogin() string {
	return a.broker.LoginURL()
}

// CompleteBrokerLogin exchanges the callback request token for a session
func (a *App) CompleteBrokerLogin(ctx context.Context, requestToken string) (models.BrokerSession, error) {
	return a.broker.CompleteLogin(ctx, requestToken)
}

// BrokerLogout invalidates the current session
func (a *App) BrokerLogout(ctx context.Context) {
	a.broker.Logout(ctx)
}

// BrokerSession returns the current session state
func (a *App) BrokerSession() models.BrokerSession {
	return a.broker.Session()
}

// GetBrokerProfile returns the brokerage account profile
func (a *App) GetBrokerProfile(ctx context.Context) (*broker.Profile, error) {
	return a.broker.GetProfile(ctx)
}

// GetBrokerMargins returns available funds per segment
func (a *App) GetBrokerMargins(ctx context.Context) (broker.Margins, error) {
	return a.broker.GetMargins(ctx)
}

// GetBrokerPositions returns open positions
func (a *App) GetBrokerPositions(ctx context.Context) ([]broker.Position, error) {
	return a.broker.GetPositions(ctx)
}

// GetBrokerHoldings returns demat holdings
func (a *App) GetBrokerHoldings(ctx context.Context) ([]broker.Holding, error) {
	return a.broker.GetHoldings(ctx)
}

// GetBrokerOrders returns the brokerage order book
func (a *App) GetBrokerOrders(ctx context.Context) ([]broker.BrokerOrder, error) {
	return a.broker.GetOrders(ctx)
}

// GetBrokerOrderStatus returns the latest state of one order
func (a *App) GetBrokerOrderStatus(ctx context.Context, brokerOrderID string) (*broker.BrokerOrder, error) {
	return a.broker.GetOrderStatus(ctx, brokerOrderID)
}

// BrokerBreakerStatus reports the gateway's circuit breaker states
func (a *App) BrokerBreakerStatus() map[string]broker.CircuitBreakerStatus {
	if a.broker == nil {
		return map[string]broker.CircuitBreakerStatus{}
	}
	return a.broker.BreakerStatus()
}

// SubmitOrder places an order directly
func (a *App) SubmitOrder(ctx context.Context, order models.Order) (models.Order, error) {
	return a.broker.PlaceOrder(ctx, order)
}

// CancelOrder cancels a pending order
func (a *App) CancelOrder(ctx context.Context, brokerOrderID string) error {
	return a.broker.CancelOrder(ctx, brokerOrderID)
}

// SubmitSignalTrade executes a timeframe's signal through the pipeline
func (a *App) SubmitSignalTrade(ctx context.Context, timeframe string, action models.SignalAction, quantity decimal.Decimal, orderType models.OrderType, useSignalLevels bool) (*models.Trade, error) {
	tf, err := models.ParseTimeframe(timeframe)
	if err != nil {
		return nil, err
	}
	return a.pipeline.SubmitSignalTrade(ctx, tf, action, quantity, orderType, useSignalLevels)
}

// GetTrades returns recent entries from the local trade ledger
func (a *App) GetTrades(ctx context.Context, limit int) ([]models.Trade, error) {
	if a.repo == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	return a.repo.GetTrades(ctx, limit)
}

// GetPendingTrades returns ledger entries awaiting reconciliation
func (a *App) GetPendingTrades(ctx context.Context) ([]models.Trade, error) {
	if a.repo == nil {
		return nil, fmt.Errorf("database not initialized")
	}
	return a.repo.GetPendingTrades(ctx)
}
