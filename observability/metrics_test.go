package observability

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	if m == nil {
		t.Fatal("NewMetrics returned nil")
	}
	if m.SignalRequestsTotal == nil {
		t.Error("SignalRequestsTotal not initialized")
	}
	if m.SignalDuration == nil {
		t.Error("SignalDuration not initialized")
	}
	if m.SignalErrorsTotal == nil {
		t.Error("SignalErrorsTotal not initialized")
	}
	if m.SignalActions == nil {
		t.Error("SignalActions not initialized")
	}
	if m.ForecastDuration == nil {
		t.Error("ForecastDuration not initialized")
	}
	if m.ForecastErrors == nil {
		t.Error("ForecastErrors not initialized")
	}
	if m.RetrainsTotal == nil {
		t.Error("RetrainsTotal not initialized")
	}
	if m.BrokerRequestsTotal == nil {
		t.Error("BrokerRequestsTotal not initialized")
	}
	if m.BrokerErrorsTotal == nil {
		t.Error("BrokerErrorsTotal not initialized")
	}
	if m.OrderRetriesTotal == nil {
		t.Error("OrderRetriesTotal not initialized")
	}
	if m.DBQueryDuration == nil {
		t.Error("DBQueryDuration not initialized")
	}
	if m.DBQueryTotal == nil {
		t.Error("DBQueryTotal not initialized")
	}
	if m.DBErrorsTotal == nil {
		t.Error("DBErrorsTotal not initialized")
	}
	if m.HTTPRequestsTotal == nil {
		t.Error("HTTPRequestsTotal not initialized")
	}
	if m.HTTPRequestDuration == nil {
		t.Error("HTTPRequestDuration not initialized")
	}
	if m.CircuitBreakerState == nil {
		t.Error("CircuitBreakerState not initialized")
	}
	if m.CircuitBreakerTrips == nil {
		t.Error("CircuitBreakerTrips not initialized")
	}
}

func TestRecordSignalRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordSignalRequest("1h")
	m.RecordSignalRequest("1h")
	m.RecordSignalRequest("4h")

	count1h := testutil.ToFloat64(m.SignalRequestsTotal.WithLabelValues("1h"))
	if count1h != 2 {
		t.Errorf("expected 2 requests for 1h, got %f", count1h)
	}

	count4h := testutil.ToFloat64(m.SignalRequestsTotal.WithLabelValues("4h"))
	if count4h != 1 {
		t.Errorf("expected 1 request for 4h, got %f", count4h)
	}
}

func TestRecordSignalError(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordSignalError("1h", "insufficient_history")
	m.RecordSignalError("1h", "insufficient_history")
	m.RecordSignalError("1d", "model_integrity")

	count := testutil.ToFloat64(m.SignalErrorsTotal.WithLabelValues("1h", "insufficient_history"))
	if count != 2 {
		t.Errorf("expected 2 errors, got %f", count)
	}
}

func TestRecordSignalAction(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordSignalAction("BUY", "STRONG")
	m.RecordSignalAction("BUY", "STRONG")
	m.RecordSignalAction("HOLD", "WEAK")

	count := testutil.ToFloat64(m.SignalActions.WithLabelValues("BUY", "STRONG"))
	if count != 2 {
		t.Errorf("expected 2 strong buys, got %f", count)
	}
}

func TestRecordRetrain(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordRetrain("1h", "success", 100*time.Millisecond)
	m.RecordRetrain("1h", "error", 50*time.Millisecond)

	success := testutil.ToFloat64(m.RetrainsTotal.WithLabelValues("1h", "success"))
	if success != 1 {
		t.Errorf("expected 1 successful retrain, got %f", success)
	}
}

func TestRecordBrokerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordBrokerRequest("place_order")
	m.RecordBrokerError("place_order", "rejected")
	m.RecordOrderRetry("place_order")
	m.RecordOrderRetry("place_order")

	requests := testutil.ToFloat64(m.BrokerRequestsTotal.WithLabelValues("place_order"))
	if requests != 1 {
		t.Errorf("expected 1 request, got %f", requests)
	}

	retries := testutil.ToFloat64(m.OrderRetriesTotal.WithLabelValues("place_order"))
	if retries != 2 {
		t.Errorf("expected 2 retries, got %f", retries)
	}
}

func TestRecordDBQuery(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordDBQuery("select", "price_bars", 10*time.Millisecond)
	m.RecordDBQuery("select", "price_bars", 5*time.Millisecond)
	m.RecordDBError("insert", "trades")

	queries := testutil.ToFloat64(m.DBQueryTotal.WithLabelValues("select", "price_bars"))
	if queries != 2 {
		t.Errorf("expected 2 queries, got %f", queries)
	}

	errors := testutil.ToFloat64(m.DBErrorsTotal.WithLabelValues("insert", "trades"))
	if errors != 1 {
		t.Errorf("expected 1 error, got %f", errors)
	}
}

func TestRecordHTTPRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordHTTPRequest("GET", "/api/signals/{timeframe}", "200", 25*time.Millisecond)
	m.RecordHTTPRequest("GET", "/api/signals/{timeframe}", "200", 30*time.Millisecond)
	m.RecordHTTPRequest("POST", "/api/orders", "422", 5*time.Millisecond)

	count := testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/api/signals/{timeframe}", "200"))
	if count != 2 {
		t.Errorf("expected 2 requests, got %f", count)
	}
}

func TestCircuitBreakerMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.SetCircuitBreakerState("kite", 2)
	m.RecordCircuitBreakerTrip("kite")

	state := testutil.ToFloat64(m.CircuitBreakerState.WithLabelValues("kite"))
	if state != 2 {
		t.Errorf("expected state 2 (open), got %f", state)
	}

	trips := testutil.ToFloat64(m.CircuitBreakerTrips.WithLabelValues("kite"))
	if trips != 1 {
		t.Errorf("expected 1 trip, got %f", trips)
	}
}

func TestTimer(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	timer := m.NewTimer()
	time.Sleep(5 * time.Millisecond)

	if timer.Duration() < 5*time.Millisecond {
		t.Errorf("expected at least 5ms elapsed, got %v", timer.Duration())
	}

	// None of these should panic on a registered metric
	timer.ObserveSignal("1h", "computed")
	timer.ObserveForecast("1h")
	timer.ObserveBroker("get_margins")
	timer.ObserveDB("select", "signal_cache")
}

func TestGetMetrics_InitializesGlobal(t *testing.T) {
	saved := globalMetrics
	defer SetMetrics(saved)

	SetMetrics(nil)
	m := GetMetrics()
	if m == nil {
		t.Fatal("GetMetrics returned nil")
	}
	if m != globalMetrics {
		t.Error("GetMetrics did not set the global instance")
	}
}
