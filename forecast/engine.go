package forecast

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"gold-trader/config"
	"gold-trader/models"
	"gold-trader/observability"

	"github.com/google/uuid"
)

// Engine maintains one trained model per timeframe and serves point
// forecasts. Predict is read-only and safe for concurrent use; Retrain swaps
// the active model through an atomic pointer so readers observe either the
// fully-old or fully-new model, never a mix.
type Engine struct {
	cfg   config.ForecastConfig
	store ArtifactStore

	active    map[models.Timeframe]*atomic.Pointer[Model]
	retrainMu map[models.Timeframe]*sync.Mutex
}

// NewEngine creates an Engine and loads any persisted artifacts. A timeframe
// with no artifact stays unavailable until Retrain or Reload succeeds for it.
func NewEngine(cfg config.ForecastConfig, store ArtifactStore) *Engine {
	e := &Engine{
		cfg:       cfg,
		store:     store,
		active:    make(map[models.Timeframe]*atomic.Pointer[Model]),
		retrainMu: make(map[models.Timeframe]*sync.Mutex),
	}
	for _, tf := range models.AllTimeframes() {
		e.active[tf] = &atomic.Pointer[Model]{}
		e.retrainMu[tf] = &sync.Mutex{}

		model, err := store.Load(tf)
		if err != nil {
			observability.Debug("no model loaded at startup", "timeframe", tf, "error", err)
			continue
		}
		e.active[tf].Store(model)
	}
	return e
}

// ActiveModel returns the current model for a timeframe, or
// ErrModelUnavailable when none is trained.
func (e *Engine) ActiveModel(tf models.Timeframe) (*Model, error) {
	slot, ok := e.active[tf]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidTimeframe, tf)
	}
	model := slot.Load()
	if model == nil {
		return nil, fmt.Errorf("%w: %s", ErrModelUnavailable, tf)
	}
	return model, nil
}

// Predict unrolls `horizon` forecast steps from the given bar snapshot. Each
// predicted close is fed back as input for the next step, so the nominal
// uncertainty grows monotonically with the step index.
func (e *Engine) Predict(tf models.Timeframe, bars []models.PriceBar, horizon int) ([]models.ForecastPoint, error) {
	if horizon <= 0 {
		horizon = e.cfg.Horizon
	}

	model, err := e.ActiveModel(tf)
	if err != nil {
		return nil, err
	}
	if err := model.Validate(); err != nil {
		return nil, err
	}
	if len(bars) < model.Lookback {
		return nil, fmt.Errorf("%w: have %d bars, lookback %d", ErrInsufficientHistory, len(bars), model.Lookback)
	}

	window := make([]float64, model.Lookback)
	start := len(bars) - model.Lookback
	for i := 0; i < model.Lookback; i++ {
		window[i] = model.Norm.apply(bars[start+i].Close)
	}

	lastBarTime := bars[len(bars)-1].Timestamp
	points := make([]models.ForecastPoint, 0, horizon)
	for step := 1; step <= horizon; step++ {
		pred := model.step(window)

		points = append(points, models.ForecastPoint{
			Timestamp:      lastBarTime.Add(time.Duration(step) * tf.Duration()),
			PredictedClose: model.Norm.invert(pred),
			ModelVersion:   model.Version,
			Uncertainty:    model.ResidualRMSE * math.Sqrt(float64(step)),
		})

		copy(window, window[1:])
		window[model.Lookback-1] = pred
	}

	return points, nil
}

// Retrain fits a fresh model on the training series and atomically replaces
// the active one. Retrains for the same timeframe are serialized; concurrent
// Predict calls are never blocked and complete against a consistent model.
func (e *Engine) Retrain(tf models.Timeframe, trainingSeries []models.PriceBar) (*Model, error) {
	mu, ok := e.retrainMu[tf]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidTimeframe, tf)
	}
	mu.Lock()
	defer mu.Unlock()

	started := time.Now()
	model, err := trainModel(tf, e.cfg.Lookback, models.Closes(trainingSeries), uuid.NewString(), started)
	if err != nil {
		observability.GetMetrics().RecordRetrain(string(tf), "error", time.Since(started))
		return nil, err
	}

	if err := e.store.Save(model); err != nil {
		observability.GetMetrics().RecordRetrain(string(tf), "error", time.Since(started))
		return nil, fmt.Errorf("failed to persist model for %s: %w", tf, err)
	}

	e.active[tf].Store(model)
	observability.GetMetrics().RecordRetrain(string(tf), "success", time.Since(started))
	observability.Info("model retrained",
		"timeframe", tf,
		"version", model.Version,
		"samples", len(trainingSeries)-model.Lookback,
		"residual_rmse", model.ResidualRMSE)

	return model, nil
}

// Reload re-reads the persisted artifact for a timeframe, replacing the
// active model. Used when an external training job wrote a new artifact.
func (e *Engine) Reload(tf models.Timeframe) (*Model, error) {
	mu, ok := e.retrainMu[tf]
	if !ok {
		return nil, fmt.Errorf("%w: %s", models.ErrInvalidTimeframe, tf)
	}
	mu.Lock()
	defer mu.Unlock()

	model, err := e.store.Load(tf)
	if err != nil {
		return nil, err
	}
	e.active[tf].Store(model)
	return model, nil
}

// EvaluationMetrics summarizes walk-forward one-step accuracy of the active
// model against known closes.
type EvaluationMetrics struct {
	Timeframe    models.Timeframe `json:"timeframe"`
	ModelVersion string           `json:"model_version"`
	Samples      int              `json:"samples"`
	MAE          float64          `json:"mae"`
	RMSE         float64          `json:"rmse"`
}

// Evaluate replays one-step predictions over the series and compares each
// against the actual close that followed.
func (e *Engine) Evaluate(tf models.Timeframe, bars []models.PriceBar) (*EvaluationMetrics, error) {
	model, err := e.ActiveModel(tf)
	if err != nil {
		return nil, err
	}
	closes := models.Closes(bars)
	if len(closes) < model.Lookback+1 {
		return nil, fmt.Errorf("%w: have %d bars, need %d", ErrInsufficientHistory, len(closes), model.Lookback+1)
	}

	window := make([]float64, model.Lookback)
	var absSum, sqSum float64
	samples := 0
	for i := model.Lookback; i < len(closes); i++ {
		for j := 0; j < model.Lookback; j++ {
			window[j] = model.Norm.apply(closes[i-model.Lookback+j])
		}
		predicted := model.Norm.invert(model.step(window))
		residual := predicted - closes[i]
		absSum += math.Abs(residual)
		sqSum += residual * residual
		samples++
	}

	return &EvaluationMetrics{
		Timeframe:    tf,
		ModelVersion: model.Version,
		Samples:      samples,
		MAE:          absSum / float64(samples),
		RMSE:         math.Sqrt(sqSum / float64(samples)),
	}, nil
}
