// Package pipeline wires the indicator, forecast, fusion and broker layers
// into the request-driven signal operations. It is stateless beyond the
// caches it coordinates.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"gold-trader/config"
	"gold-trader/forecast"
	"gold-trader/fusion"
	"gold-trader/indicators"
	"gold-trader/models"
	"gold-trader/observability"
)

// ErrTradingDisabled is returned when live order submission is attempted
// while the trading gate is off.
var ErrTradingDisabled = errors.New("live trading is disabled")

// ErrHoldAction is returned when a trade is requested for a HOLD action.
var ErrHoldAction = errors.New("refusing to trade a HOLD action")

// barWindow is how many bars are loaded per signal request. Enough for the
// indicator warm-up plus the forecast lookback with room to spare.
const barWindow = 500

// signalCacheTTL bounds how stale a served signal may be.
const signalCacheTTL = time.Minute

// Store is the persistence surface the pipeline needs.
type Store interface {
	GetBars(ctx context.Context, tf models.Timeframe, limit int) ([]models.PriceBar, error)
	CreateTrade(ctx context.Context, trade *models.Trade) error
	UpdateTradeStatus(ctx context.Context, id uuid.UUID, status models.OrderStatus, brokerOrderID string) error
	GetCachedSignal(ctx context.Context, tf models.Timeframe) (*models.Signal, error)
	CacheSignal(ctx context.Context, signal *models.Signal, ttl time.Duration) error
}

// Forecaster is the forecast surface the pipeline needs.
type Forecaster interface {
	Predict(tf models.Timeframe, bars []models.PriceBar, horizon int) ([]models.ForecastPoint, error)
	Retrain(tf models.Timeframe, trainingSeries []models.PriceBar) (*forecast.Model, error)
	Evaluate(tf models.Timeframe, bars []models.PriceBar) (*forecast.EvaluationMetrics, error)
}

// OrderPlacer is the brokerage surface the pipeline needs for execution.
type OrderPlacer interface {
	PlaceOrder(ctx context.Context, order models.Order) (models.Order, error)
}

// Pipeline answers signal, indicator and forecast requests per timeframe and
// routes execution requests to the brokerage.
type Pipeline struct {
	cfg      *config.Config
	store    Store
	forecast Forecaster
	broker   OrderPlacer
}

// New creates a Pipeline over the given collaborators.
func New(cfg *config.Config, store Store, forecaster Forecaster, orderPlacer OrderPlacer) *Pipeline {
	return &Pipeline{
		cfg:      cfg,
		store:    store,
		forecast: forecaster,
		broker:   orderPlacer,
	}
}

// GetIndicators returns the most recent `limit` indicator sets for a
// timeframe, oldest first. Bars still inside the warm-up window carry no set.
func (p *Pipeline) GetIndicators(ctx context.Context, tf models.Timeframe, limit int) ([]models.IndicatorSet, error) {
	if _, err := models.ParseTimeframe(string(tf)); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 50
	}

	bars, err := p.store.GetBars(ctx, tf, barWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to load bars for %s: %w", tf, err)
	}

	sets := indicators.Compute(bars)

	// Serve only fully warmed-up sets; partial sets inside the warm-up
	// window are an internal detail.
	defined := make([]models.IndicatorSet, 0, limit)
	for i, set := range sets {
		if i >= indicators.WarmupBars-1 {
			defined = append(defined, set)
		}
	}
	if len(defined) > limit {
		defined = defined[len(defined)-limit:]
	}
	return defined, nil
}

// GetForecast returns the forecast unrolled over the configured horizon for a
// timeframe, from the latest stored bars.
func (p *Pipeline) GetForecast(ctx context.Context, tf models.Timeframe) ([]models.ForecastPoint, error) {
	if _, err := models.ParseTimeframe(string(tf)); err != nil {
		return nil, err
	}

	bars, err := p.store.GetBars(ctx, tf, barWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to load bars for %s: %w", tf, err)
	}

	timer := observability.GetMetrics().NewTimer()
	points, err := p.forecast.Predict(tf, bars, p.cfg.Forecast.Horizon)
	timer.ObserveForecast(string(tf))
	if err != nil {
		observability.GetMetrics().RecordForecastError(string(tf), forecastErrorLabel(err))
		return nil, err
	}
	return points, nil
}

// GetSignal computes the fused signal for a timeframe. Indicators and
// forecast are computed concurrently over the same bar snapshot. A missing
// forecast model degrades the forecast vote to NEUTRAL rather than failing
// the whole signal; a model integrity error fails the request.
func (p *Pipeline) GetSignal(ctx context.Context, tf models.Timeframe) (*models.Signal, error) {
	if _, err := models.ParseTimeframe(string(tf)); err != nil {
		return nil, err
	}

	metrics := observability.GetMetrics()
	metrics.RecordSignalRequest(string(tf))
	timer := metrics.NewTimer()

	if cached, err := p.store.GetCachedSignal(ctx, tf); err != nil {
		observability.Warn("signal cache read failed", "timeframe", tf, "error", err)
	} else if cached != nil {
		timer.ObserveSignal(string(tf), "cached")
		return cached, nil
	}

	signal, err := p.computeSignal(ctx, tf)
	if err != nil {
		metrics.RecordSignalError(string(tf), signalErrorLabel(err))
		timer.ObserveSignal(string(tf), "error")
		return nil, err
	}
	timer.ObserveSignal(string(tf), "computed")
	metrics.RecordSignalAction(string(signal.Action), string(signal.Strength))

	if err := p.store.CacheSignal(ctx, signal, signalCacheTTL); err != nil {
		observability.Warn("signal cache write failed", "timeframe", tf, "error", err)
	}
	return signal, nil
}

func (p *Pipeline) computeSignal(ctx context.Context, tf models.Timeframe) (*models.Signal, error) {
	bars, err := p.store.GetBars(ctx, tf, barWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to load bars for %s: %w", tf, err)
	}
	if len(bars) == 0 {
		return nil, indicators.ErrInsufficientHistory
	}

	// Both engines read the same immutable snapshot, so they can run
	// concurrently.
	var (
		wg          sync.WaitGroup
		latest      models.IndicatorSet
		previous    *models.IndicatorSet
		indErr      error
		firstStep   *models.ForecastPoint
		forecastErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		latest, previous, indErr = indicators.Latest(bars)
	}()
	go func() {
		defer wg.Done()
		points, err := p.forecast.Predict(tf, bars, 1)
		if err != nil {
			forecastErr = err
			return
		}
		if len(points) > 0 {
			firstStep = &points[0]
		}
	}()
	wg.Wait()

	if indErr != nil {
		return nil, indErr
	}
	if forecastErr != nil {
		if errors.Is(forecastErr, forecast.ErrModelIntegrity) {
			return nil, forecastErr
		}
		// No usable model is a degraded signal, not a failed one.
		observability.Warn("forecast unavailable, voting without it",
			"timeframe", tf, "error", forecastErr)
		observability.GetMetrics().RecordForecastError(string(tf), forecastErrorLabel(forecastErr))
		firstStep = nil
	}

	price := bars[len(bars)-1].Close
	signal := fusion.Fuse(tf, price, latest, previous, firstStep, p.cfg.Signal)

	observability.Info("signal computed",
		"timeframe", tf,
		"action", signal.Action,
		"strength", signal.Strength,
		"price", price)
	return &signal, nil
}

// GetAllSignals computes the signal for every recognized timeframe
// concurrently. Timeframes that fail (usually insufficient history) are
// omitted; the error of the last failure is returned only when every
// timeframe failed.
func (p *Pipeline) GetAllSignals(ctx context.Context) (map[models.Timeframe]*models.Signal, error) {
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		signals = make(map[models.Timeframe]*models.Signal)
		lastErr error
	)

	for _, tf := range models.AllTimeframes() {
		wg.Add(1)
		go func(tf models.Timeframe) {
			defer wg.Done()
			signal, err := p.GetSignal(ctx, tf)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				observability.Warn("skipping timeframe in signal sweep", "timeframe", tf, "error", err)
				lastErr = err
				return
			}
			signals[tf] = signal
		}(tf)
	}
	wg.Wait()

	if len(signals) == 0 && lastErr != nil {
		return nil, lastErr
	}
	return signals, nil
}

// RetrainForecast retrains the forecast model for a timeframe on the stored
// bar history.
func (p *Pipeline) RetrainForecast(ctx context.Context, tf models.Timeframe) (*forecast.Model, error) {
	if _, err := models.ParseTimeframe(string(tf)); err != nil {
		return nil, err
	}
	bars, err := p.store.GetBars(ctx, tf, barWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to load bars for %s: %w", tf, err)
	}
	return p.forecast.Retrain(tf, bars)
}

// EvaluateForecast reports walk-forward accuracy of the active model for a
// timeframe over the stored bar history.
func (p *Pipeline) EvaluateForecast(ctx context.Context, tf models.Timeframe) (*forecast.EvaluationMetrics, error) {
	if _, err := models.ParseTimeframe(string(tf)); err != nil {
		return nil, err
	}
	bars, err := p.store.GetBars(ctx, tf, barWindow)
	if err != nil {
		return nil, fmt.Errorf("failed to load bars for %s: %w", tf, err)
	}
	return p.forecast.Evaluate(tf, bars)
}

// SubmitSignalTrade submits an order for a timeframe's signal. Stop loss and
// take profit are pulled from the current signal unless useSignalLevels is
// false. The outcome is recorded in the trade ledger whatever happens; an
// unknown outcome keeps the ledger entry PENDING for reconciliation.
func (p *Pipeline) SubmitSignalTrade(ctx context.Context, tf models.Timeframe, action models.SignalAction, quantity decimal.Decimal, orderType models.OrderType, useSignalLevels bool) (*models.Trade, error) {
	if _, err := models.ParseTimeframe(string(tf)); err != nil {
		return nil, err
	}
	if !p.cfg.Trading.Enabled {
		return nil, ErrTradingDisabled
	}
	if action == models.SignalActionHold || (action != models.SignalActionBuy && action != models.SignalActionSell) {
		return nil, ErrHoldAction
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("quantity must be positive, got %s", quantity)
	}
	maxQty := decimal.NewFromInt(p.cfg.Trading.MaxQuantity)
	if quantity.GreaterThan(maxQty) {
		return nil, fmt.Errorf("quantity %s exceeds the configured maximum %s", quantity, maxQty)
	}

	order := *models.NewOrder(action, quantity, orderType)
	trade := &models.Trade{
		ClientRequestID: order.ClientRequestID,
		Timeframe:       tf,
		Action:          action,
		Quantity:        quantity,
		OrderType:       orderType,
		Status:          models.OrderStatusPending,
	}

	if useSignalLevels {
		signal, err := p.GetSignal(ctx, tf)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve signal levels: %w", err)
		}
		trade.SignalStrength = signal.Strength
		if signal.StopLoss != nil {
			stop := decimal.NewFromFloat(*signal.StopLoss)
			order.StopLoss = &stop
			trade.StopLoss = &stop
		}
		if signal.TakeProfit != nil {
			take := decimal.NewFromFloat(*signal.TakeProfit)
			order.TakeProfit = &take
			trade.TakeProfit = &take
		}
	}

	if err := p.store.CreateTrade(ctx, trade); err != nil {
		return nil, fmt.Errorf("failed to record trade: %w", err)
	}

	placed, err := p.broker.PlaceOrder(ctx, order)
	trade.Status = placed.Status
	trade.BrokerOrderID = placed.BrokerOrderID

	if updateErr := p.store.UpdateTradeStatus(ctx, trade.ID, trade.Status, trade.BrokerOrderID); updateErr != nil {
		observability.Error("failed to persist trade outcome",
			"trade_id", trade.ID, "error", updateErr)
	}

	observability.WithOrder(order.ClientRequestID).Info("signal trade submitted",
		"timeframe", tf,
		"action", action,
		"status", trade.Status)

	if err != nil {
		return trade, err
	}
	return trade, nil
}

func signalErrorLabel(err error) string {
	switch {
	case errors.Is(err, indicators.ErrInsufficientHistory), errors.Is(err, forecast.ErrInsufficientHistory):
		return "insufficient_history"
	case errors.Is(err, forecast.ErrModelIntegrity):
		return "model_integrity"
	default:
		return "internal"
	}
}

func forecastErrorLabel(err error) string {
	switch {
	case errors.Is(err, forecast.ErrModelUnavailable):
		return "model_unavailable"
	case errors.Is(err, forecast.ErrModelIntegrity):
		return "model_integrity"
	case errors.Is(err, forecast.ErrInsufficientHistory):
		return "insufficient_history"
	default:
		return "internal"
	}
}
