package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application
type Metrics struct {
	// Signal metrics
	SignalRequestsTotal *prometheus.CounterVec
	SignalDuration      *prometheus.HistogramVec
	SignalErrorsTotal   *prometheus.CounterVec
	SignalActions       *prometheus.CounterVec

	// Forecast metrics
	ForecastDuration *prometheus.HistogramVec
	ForecastErrors   *prometheus.CounterVec
	RetrainsTotal    *prometheus.CounterVec
	RetrainDuration  *prometheus.HistogramVec

	// Broker metrics
	BrokerRequestsTotal *prometheus.CounterVec
	BrokerErrorsTotal   *prometheus.CounterVec
	BrokerDuration      *prometheus.HistogramVec
	OrderRetriesTotal   *prometheus.CounterVec

	// Database metrics
	DBQueryDuration *prometheus.HistogramVec
	DBQueryTotal    *prometheus.CounterVec
	DBErrorsTotal   *prometheus.CounterVec

	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Circuit breaker metrics
	CircuitBreakerState *prometheus.GaugeVec
	CircuitBreakerTrips *prometheus.CounterVec
}

// defaultBuckets are the default histogram buckets for duration metrics (in seconds)
var defaultBuckets = []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10, 30}

// globalMetrics is the global metrics instance
var globalMetrics *Metrics

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	factory := promauto.With(reg)

	m := &Metrics{
		SignalRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gold_trader",
				Subsystem: "signal",
				Name:      "requests_total",
				Help:      "Total number of signal generation requests",
			},
			[]string{"timeframe"},
		),
		SignalDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "gold_trader",
				Subsystem: "signal",
				Name:      "duration_seconds",
				Help:      "Duration of signal generation in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"timeframe", "status"},
		),
		SignalErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gold_trader",
				Subsystem: "signal",
				Name:      "errors_total",
				Help:      "Total number of signal generation errors",
			},
			[]string{"timeframe", "error_type"},
		),
		SignalActions: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gold_trader",
				Subsystem: "signal",
				Name:      "actions_total",
				Help:      "Total number of signals by action and strength",
			},
			[]string{"action", "strength"},
		),
		ForecastDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "gold_trader",
				Subsystem: "forecast",
				Name:      "duration_seconds",
				Help:      "Duration of forecast inference in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"timeframe"},
		),
		ForecastErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gold_trader",
				Subsystem: "forecast",
				Name:      "errors_total",
				Help:      "Total number of forecast errors",
			},
			[]string{"timeframe", "error_type"},
		),
		RetrainsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gold_trader",
				Subsystem: "forecast",
				Name:      "retrains_total",
				Help:      "Total number of model retrains",
			},
			[]string{"timeframe", "status"},
		),
		RetrainDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "gold_trader",
				Subsystem: "forecast",
				Name:      "retrain_duration_seconds",
				Help:      "Duration of model retraining in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"timeframe"},
		),
		BrokerRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gold_trader",
				Subsystem: "broker",
				Name:      "requests_total",
				Help:      "Total number of brokerage API requests",
			},
			[]string{"operation"},
		),
		BrokerErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gold_trader",
				Subsystem: "broker",
				Name:      "errors_total",
				Help:      "Total number of brokerage API errors",
			},
			[]string{"operation", "error_type"},
		),
		BrokerDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "gold_trader",
				Subsystem: "broker",
				Name:      "duration_seconds",
				Help:      "Duration of brokerage API calls in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"operation"},
		),
		OrderRetriesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gold_trader",
				Subsystem: "broker",
				Name:      "order_retries_total",
				Help:      "Total number of order submission retry attempts",
			},
			[]string{"operation"},
		),
		DBQueryDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "gold_trader",
				Subsystem: "database",
				Name:      "query_duration_seconds",
				Help:      "Duration of database queries in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"operation", "table"},
		),
		DBQueryTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gold_trader",
				Subsystem: "database",
				Name:      "queries_total",
				Help:      "Total number of database queries",
			},
			[]string{"operation", "table"},
		),
		DBErrorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gold_trader",
				Subsystem: "database",
				Name:      "errors_total",
				Help:      "Total number of database errors",
			},
			[]string{"operation", "table"},
		),
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gold_trader",
				Subsystem: "http",
				Name:      "requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"method", "path", "status_code"},
		),
		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "gold_trader",
				Subsystem: "http",
				Name:      "request_duration_seconds",
				Help:      "Duration of HTTP requests in seconds",
				Buckets:   defaultBuckets,
			},
			[]string{"method", "path"},
		),
		CircuitBreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "gold_trader",
				Subsystem: "circuit_breaker",
				Name:      "state",
				Help:      "Current state of circuit breakers (0=closed, 1=half-open, 2=open)",
			},
			[]string{"service"},
		),
		CircuitBreakerTrips: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "gold_trader",
				Subsystem: "circuit_breaker",
				Name:      "trips_total",
				Help:      "Total number of circuit breaker trips",
			},
			[]string{"service"},
		),
	}

	return m
}

// InitMetrics initializes the global metrics instance
func InitMetrics() *Metrics {
	globalMetrics = NewMetrics(nil)
	return globalMetrics
}

// GetMetrics returns the global metrics instance
func GetMetrics() *Metrics {
	if globalMetrics == nil {
		return InitMetrics()
	}
	return globalMetrics
}

// SetMetrics overrides the global metrics instance (useful for testing)
func SetMetrics(m *Metrics) {
	globalMetrics = m
}

// RecordSignalRequest records a signal generation request
func (m *Metrics) RecordSignalRequest(timeframe string) {
	m.SignalRequestsTotal.WithLabelValues(timeframe).Inc()
}

// RecordSignalError records a signal generation error
func (m *Metrics) RecordSignalError(timeframe, errorType string) {
	m.SignalErrorsTotal.WithLabelValues(timeframe, errorType).Inc()
}

// RecordSignalAction records an emitted signal by action and strength
func (m *Metrics) RecordSignalAction(action, strength string) {
	m.SignalActions.WithLabelValues(action, strength).Inc()
}

// RecordForecastError records a forecast error
func (m *Metrics) RecordForecastError(timeframe, errorType string) {
	m.ForecastErrors.WithLabelValues(timeframe, errorType).Inc()
}

// RecordRetrain records a model retrain outcome
func (m *Metrics) RecordRetrain(timeframe, status string, duration time.Duration) {
	m.RetrainsTotal.WithLabelValues(timeframe, status).Inc()
	m.RetrainDuration.WithLabelValues(timeframe).Observe(duration.Seconds())
}

// RecordBrokerRequest records a brokerage API request
func (m *Metrics) RecordBrokerRequest(operation string) {
	m.BrokerRequestsTotal.WithLabelValues(operation).Inc()
}

// RecordBrokerError records a brokerage API error
func (m *Metrics) RecordBrokerError(operation, errorType string) {
	m.BrokerErrorsTotal.WithLabelValues(operation, errorType).Inc()
}

// RecordOrderRetry records an order submission retry attempt
func (m *Metrics) RecordOrderRetry(operation string) {
	m.OrderRetriesTotal.WithLabelValues(operation).Inc()
}

// RecordDBQuery records a database query
func (m *Metrics) RecordDBQuery(operation, table string, duration time.Duration) {
	m.DBQueryTotal.WithLabelValues(operation, table).Inc()
	m.DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
}

// RecordDBError records a database error
func (m *Metrics) RecordDBError(operation, table string) {
	m.DBErrorsTotal.WithLabelValues(operation, table).Inc()
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, path, statusCode string, duration time.Duration) {
	m.HTTPRequestsTotal.WithLabelValues(method, path, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// SetCircuitBreakerState sets the current state of a circuit breaker
func (m *Metrics) SetCircuitBreakerState(service string, state int) {
	m.CircuitBreakerState.WithLabelValues(service).Set(float64(state))
}

// RecordCircuitBreakerTrip records a circuit breaker trip
func (m *Metrics) RecordCircuitBreakerTrip(service string) {
	m.CircuitBreakerTrips.WithLabelValues(service).Inc()
}

// Timer is a helper for timing operations
type Timer struct {
	start   time.Time
	metrics *Metrics
}

// NewTimer creates a new timer
func (m *Metrics) NewTimer() *Timer {
	return &Timer{
		start:   time.Now(),
		metrics: m,
	}
}

// ObserveSignal records the signal generation duration and status
func (t *Timer) ObserveSignal(timeframe, status string) {
	t.metrics.SignalDuration.WithLabelValues(timeframe, status).Observe(time.Since(t.start).Seconds())
}

// ObserveForecast records the forecast inference duration
func (t *Timer) ObserveForecast(timeframe string) {
	t.metrics.ForecastDuration.WithLabelValues(timeframe).Observe(time.Since(t.start).Seconds())
}

// ObserveBroker records the brokerage call duration
func (t *Timer) ObserveBroker(operation string) {
	t.metrics.BrokerDuration.WithLabelValues(operation).Observe(time.Since(t.start).Seconds())
}

// ObserveDB records the database query duration
func (t *Timer) ObserveDB(operation, table string) {
	t.metrics.RecordDBQuery(operation, table, time.Since(t.start))
}

// Duration returns the elapsed time
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
