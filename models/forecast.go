package models

import "time"

// ForecastPoint is one step of a multi-step price forecast. Steps are unrolled
// recursively, so Uncertainty never decreases with step index; callers should
// treat later steps as lower confidence.
type ForecastPoint struct {
	Timestamp      time.Time `json:"timestamp"`
	PredictedClose float64   `json:"predicted_close"`
	ModelVersion   string    `json:"model_version"`
	Uncertainty    float64   `json:"uncertainty"`
}
