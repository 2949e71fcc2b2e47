package forecast

import (
	"errors"
	"fmt"
	"math"
	"time"

	"gold-trader/models"
)

// ErrModelUnavailable is returned when no trained model exists for a
// timeframe (never trained, or the artifact failed to load).
var ErrModelUnavailable = errors.New("no trained model for timeframe")

// ErrModelIntegrity is returned when a persisted model artifact is internally
// inconsistent, e.g. its normalization parameters do not match its weights.
// This is a fatal integrity error, never a silent wrong answer.
var ErrModelIntegrity = errors.New("model artifact integrity error")

// ErrInsufficientHistory is returned when the price series is shorter than
// the model's lookback window.
var ErrInsufficientHistory = errors.New("insufficient price history for forecast")

// Normalization holds the min-max parameters fitted over the training window.
// They are part of the persisted artifact and must match at inference time.
type Normalization struct {
	Min float64 `json:"min"`
	Max float64 `json:"max"`
}

func (n Normalization) apply(v float64) float64 {
	if n.Max == n.Min {
		return 0
	}
	return (v - n.Min) / (n.Max - n.Min)
}

func (n Normalization) invert(v float64) float64 {
	return n.Min + v*(n.Max-n.Min)
}

// Model is a trained sliding-window autoregression: the last Lookback
// normalized closes regress onto the next normalized close.
type Model struct {
	Version      string           `json:"version"`
	Timeframe    models.Timeframe `json:"timeframe"`
	Lookback     int              `json:"lookback"`
	Weights      []float64        `json:"weights"`
	Bias         float64          `json:"bias"`
	Norm         Normalization    `json:"normalization"`
	ResidualRMSE float64          `json:"residual_rmse"`
	TrainedAt    time.Time        `json:"trained_at"`
}

// Validate checks the artifact's internal consistency. A weight vector that
// does not match the lookback, or non-finite parameters, mean the artifact
// and its normalization were produced by different training runs.
func (m *Model) Validate() error {
	if m.Lookback < 2 {
		return fmt.Errorf("%w: lookback %d", ErrModelIntegrity, m.Lookback)
	}
	if len(m.Weights) != m.Lookback {
		return fmt.Errorf("%w: %d weights for lookback %d", ErrModelIntegrity, len(m.Weights), m.Lookback)
	}
	if m.Norm.Max < m.Norm.Min {
		return fmt.Errorf("%w: normalization max %v below min %v", ErrModelIntegrity, m.Norm.Max, m.Norm.Min)
	}
	for i, w := range m.Weights {
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return fmt.Errorf("%w: non-finite weight at %d", ErrModelIntegrity, i)
		}
	}
	if math.IsNaN(m.Bias) || math.IsInf(m.Bias, 0) {
		return fmt.Errorf("%w: non-finite bias", ErrModelIntegrity)
	}
	if math.IsNaN(m.ResidualRMSE) || m.ResidualRMSE < 0 {
		return fmt.Errorf("%w: invalid residual rmse %v", ErrModelIntegrity, m.ResidualRMSE)
	}
	return nil
}

// step runs one inference over a normalized window of length Lookback.
func (m *Model) step(window []float64) float64 {
	pred := m.Bias
	for i, w := range m.Weights {
		pred += w * window[i]
	}
	return pred
}

// ridgeLambda damps the normal equations so near-collinear windows (flat
// markets) still yield a solvable system.
const ridgeLambda = 1e-4

// minTrainSamples is the fewest sliding windows a training series must yield.
const minTrainSamples = 8

// trainModel fits weights by ordinary least squares with ridge damping.
func trainModel(tf models.Timeframe, lookback int, closes []float64, version string, now time.Time) (*Model, error) {
	samples := len(closes) - lookback
	if samples < minTrainSamples {
		return nil, fmt.Errorf("%w: %d closes yield %d training samples, need %d",
			ErrInsufficientHistory, len(closes), samples, minTrainSamples)
	}

	norm := Normalization{Min: closes[0], Max: closes[0]}
	for _, c := range closes {
		norm.Min = math.Min(norm.Min, c)
		norm.Max = math.Max(norm.Max, c)
	}

	scaled := make([]float64, len(closes))
	for i, c := range closes {
		scaled[i] = norm.apply(c)
	}

	// Augment each window with a constant 1 so the bias is solved jointly.
	dim := lookback + 1
	ata := make([][]float64, dim)
	for i := range ata {
		ata[i] = make([]float64, dim)
	}
	atb := make([]float64, dim)

	row := make([]float64, dim)
	for s := 0; s < samples; s++ {
		copy(row, scaled[s:s+lookback])
		row[lookback] = 1
		y := scaled[s+lookback]
		for i := 0; i < dim; i++ {
			for j := 0; j < dim; j++ {
				ata[i][j] += row[i] * row[j]
			}
			atb[i] += row[i] * y
		}
	}
	for i := 0; i < dim; i++ {
		ata[i][i] += ridgeLambda
	}

	solution, err := solveLinearSystem(ata, atb)
	if err != nil {
		return nil, fmt.Errorf("training solve failed: %w", err)
	}

	model := &Model{
		Version:   version,
		Timeframe: tf,
		Lookback:  lookback,
		Weights:   solution[:lookback],
		Bias:      solution[lookback],
		Norm:      norm,
		TrainedAt: now,
	}

	// Residual RMSE in price space backs the per-step uncertainty annotation.
	var sse float64
	for s := 0; s < samples; s++ {
		pred := model.step(scaled[s : s+lookback])
		residual := norm.invert(pred) - closes[s+lookback]
		sse += residual * residual
	}
	model.ResidualRMSE = math.Sqrt(sse / float64(samples))

	if err := model.Validate(); err != nil {
		return nil, err
	}
	return model, nil
}

// solveLinearSystem solves a*x = b by Gaussian elimination with partial
// pivoting. The matrix is mutated in place.
func solveLinearSystem(a [][]float64, b []float64) ([]float64, error) {
	n := len(b)
	for col := 0; col < n; col++ {
		pivot := col
		for r := col + 1; r < n; r++ {
			if math.Abs(a[r][col]) > math.Abs(a[pivot][col]) {
				pivot = r
			}
		}
		if math.Abs(a[pivot][col]) < 1e-12 {
			return nil, errors.New("singular system")
		}
		a[col], a[pivot] = a[pivot], a[col]
		b[col], b[pivot] = b[pivot], b[col]

		for r := col + 1; r < n; r++ {
			factor := a[r][col] / a[col][col]
			for c := col; c < n; c++ {
				a[r][c] -= factor * a[col][c]
			}
			b[r] -= factor * b[col]
		}
	}

	x := make([]float64, n)
	for r := n - 1; r >= 0; r-- {
		sum := b[r]
		for c := r + 1; c < n; c++ {
			sum -= a[r][c] * x[c]
		}
		x[r] = sum / a[r][r]
	}
	return x, nil
}
