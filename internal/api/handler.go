package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"gold-trader/broker"
	"gold-trader/config"
	"gold-trader/forecast"
	"gold-trader/indicators"
	"gold-trader/internal/app"
	"gold-trader/models"
	"gold-trader/pipeline"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// Handler handles HTTP API requests
type Handler struct {
	app *app.App
	cfg *config.Config
}

// NewHandler creates a new Handler
func NewHandler(application *app.App, cfg *config.Config) *Handler {
	return &Handler{app: application, cfg: cfg}
}

// HandleHealth returns the health status of the application
func (h *Handler) HandleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status": "ok",
		"services": map[string]string{
			"database": "unknown",
		},
	}

	if h.app.Repo() != nil {
		ctx := r.Context()
		if err := h.app.Repo().Health(ctx); err == nil {
			status["services"].(map[string]string)["database"] = "connected"
		} else {
			status["services"].(map[string]string)["database"] = "disconnected"
			status["status"] = "degraded"
		}
	} else {
		status["services"].(map[string]string)["database"] = "not_configured"
	}

	// Add circuit breaker status
	cbStatus := h.app.BrokerBreakerStatus()
	status["circuit_breakers"] = cbStatus

	// Check if any breakers are open (degraded state)
	for _, cb := range cbStatus {
		if cb.State == "open" {
			status["status"] = "degraded"
			break
		}
	}

	h.jsonResponse(w, status)
}

// HandleGetIndicators returns recent indicator sets for a timeframe
func (h *Handler) HandleGetIndicators(w http.ResponseWriter, r *http.Request) {
	tf := chi.URLParam(r, "timeframe")
	limit := h.ParseLimitParam(r, 50)

	sets, err := h.app.GetIndicators(r.Context(), tf, limit)
	if err != nil {
		h.jsonError(w, err.Error(), statusForError(err))
		return
	}

	h.jsonResponse(w, sets)
}

// HandleGetForecast returns the forecast for a timeframe
func (h *Handler) HandleGetForecast(w http.ResponseWriter, r *http.Request) {
	tf := chi.URLParam(r, "timeframe")

	points, err := h.app.GetForecast(r.Context(), tf)
	if err != nil {
		h.jsonError(w, err.Error(), statusForError(err))
		return
	}

	h.jsonResponse(w, points)
}

// HandleRetrainForecast retrains the forecast model for a timeframe
func (h *Handler) HandleRetrainForecast(w http.ResponseWriter, r *http.Request) {
	tf := chi.URLParam(r, "timeframe")

	model, err := h.app.RetrainForecast(r.Context(), tf)
	if err != nil {
		h.jsonError(w, err.Error(), statusForError(err))
		return
	}

	h.jsonResponse(w, map[string]interface{}{
		"version":       model.Version,
		"timeframe":     model.Timeframe,
		"trained_at":    model.TrainedAt,
		"residual_rmse": model.ResidualRMSE,
	})
}

// HandleGetForecastAccuracy reports walk-forward accuracy for a timeframe
func (h *Handler) HandleGetForecastAccuracy(w http.ResponseWriter, r *http.Request) {
	tf := chi.URLParam(r, "timeframe")

	metrics, err := h.app.EvaluateForecast(r.Context(), tf)
	if err != nil {
		h.jsonError(w, err.Error(), statusForError(err))
		return
	}

	h.jsonResponse(w, metrics)
}

// HandleGetSignal returns the fused signal for a timeframe
func (h *Handler) HandleGetSignal(w http.ResponseWriter, r *http.Request) {
	tf := chi.URLParam(r, "timeframe")

	signal, err := h.app.GetSignal(r.Context(), tf)
	if err != nil {
		h.jsonError(w, err.Error(), statusForError(err))
		return
	}

	h.jsonResponse(w, signal)
}

// HandleGetAllSignals returns signals for every timeframe
func (h *Handler) HandleGetAllSignals(w http.ResponseWriter, r *http.Request) {
	signals, err := h.app.GetAllSignals(r.Context())
	if err != nil {
		h.jsonError(w, err.Error(), statusForError(err))
		return
	}

	h.jsonResponse(w, signals)
}

// HandleBeginLogin issues the brokerage login URL
func (h *Handler) HandleBeginLogin(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, map[string]string{"login_url": h.app.BeginBrokerLogin()})
}

// HandleLoginCallback completes the brokerage login from the redirect callback
func (h *Handler) HandleLoginCallback(w http.ResponseWriter, r *http.Request) {
	requestToken := r.URL.Query().Get("request_token")
	if requestToken == "" {
		h.jsonError(w, "request_token is required", http.StatusBadRequest)
		return
	}

	session, err := h.app.CompleteBrokerLogin(r.Context(), requestToken)
	if err != nil {
		h.jsonError(w, err.Error(), statusForError(err))
		return
	}

	h.jsonResponse(w, session)
}

// HandleLogout invalidates the brokerage session
func (h *Handler) HandleLogout(w http.ResponseWriter, r *http.Request) {
	h.app.BrokerLogout(r.Context())
	h.jsonResponse(w, map[string]string{"status": "logged_out"})
}

// HandleGetSession returns the current brokerage session state
func (h *Handler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	h.jsonResponse(w, h.app.BrokerSession())
}

// HandleGetProfile returns the brokerage account profile
func (h *Handler) HandleGetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.app.GetBrokerProfile(r.Context())
	if err != nil {
		h.jsonError(w, err.Error(), statusForError(err))
		return
	}

	h.jsonResponse(w, profile)
}

// HandleGetMargins returns available funds per segment
func (h *Handler) HandleGetMargins(w http.ResponseWriter, r *http.Request) {
	margins, err := h.app.GetBrokerMargins(r.Context())
	if err != nil {
		h.jsonError(w, err.Error(), statusForError(err))
		return
	}

	h.jsonResponse(w, margins)
}

// HandleGetPositions returns open positions
func (h *Handler) HandleGetPositions(w http.ResponseWriter, r *http.Request) {
	positions, err := h.app.GetBrokerPositions(r.Context())
	if err != nil {
		h.jsonError(w, err.Error(), statusForError(err))
		return
	}

	h.jsonResponse(w, positions)
}

// HandleGetHoldings returns demat holdings
func (h *Handler) HandleGetHoldings(w http.ResponseWriter, r *http.Request) {
	holdings, err := h.app.GetBrokerHoldings(r.Context())
	if err != nil {
		h.jsonError(w, err.Error(), statusForError(err))
		return
	}

	h.jsonResponse(w, holdings)
}

// HandleGetBrokerOrders returns the brokerage order book
func (h *Handler) HandleGetBrokerOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.app.GetBrokerOrders(r.Context())
	if err != nil {
		h.jsonError(w, err.Error(), statusForError(err))
		return
	}

	h.jsonResponse(w, orders)
}

// HandleGetBrokerOrderStatus returns the latest state of one brokerage order
func (h *Handler) HandleGetBrokerOrderStatus(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.jsonError(w, "Missing order ID", http.StatusBadRequest)
		return
	}

	order, err := h.app.GetBrokerOrderStatus(r.Context(), id)
	if err != nil {
		h.jsonError(w, err.Error(), statusForError(err))
		return
	}

	h.jsonResponse(w, order)
}

// PlaceOrderRequest represents a direct order submission
type PlaceOrderRequest struct {
	ClientRequestID string              `json:"client_request_id,omitempty"`
	Action          models.SignalAction `json:"action"`
	Quantity        decimal.Decimal     `json:"quantity"`
	OrderType       models.OrderType    `json:"order_type"`
	Price           *decimal.Decimal    `json:"price,omitempty"`
	StopLoss        *decimal.Decimal    `json:"stop_loss,omitempty"`
	TakeProfit      *decimal.Decimal    `json:"take_profit,omitempty"`
}

// HandlePlaceOrder submits an order directly to the brokerage
func (h *Handler) HandlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req PlaceOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "Invalid JSON request", http.StatusBadRequest)
		return
	}

	if req.Action != models.SignalActionBuy && req.Action != models.SignalActionSell {
		h.jsonError(w, "action must be BUY or SELL", http.StatusBadRequest)
		return
	}
	if !req.Quantity.IsPositive() {
		h.jsonError(w, "quantity must be positive", http.StatusBadRequest)
		return
	}
	if req.OrderType == "" {
		req.OrderType = models.OrderTypeMarket
	}
	if req.OrderType == models.OrderTypeLimit && req.Price == nil {
		h.jsonError(w, "price is required for LIMIT orders", http.StatusBadRequest)
		return
	}

	order := models.NewOrder(req.Action, req.Quantity, req.OrderType)
	if req.ClientRequestID != "" {
		// Caller-supplied ids allow idempotent resubmission across HTTP retries.
		order.ClientRequestID = req.ClientRequestID
	}
	order.Price = req.Price
	order.StopLoss = req.StopLoss
	order.TakeProfit = req.TakeProfit

	placed, err := h.app.SubmitOrder(r.Context(), *order)
	if err != nil {
		h.jsonOrderError(w, err, placed)
		return
	}

	h.jsonResponse(w, placed)
}

// HandleCancelOrder cancels a pending brokerage order
func (h *Handler) HandleCancelOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		h.jsonError(w, "Missing order ID", http.StatusBadRequest)
		return
	}

	if err := h.app.CancelOrder(r.Context(), id); err != nil {
		h.jsonError(w, err.Error(), statusForError(err))
		return
	}

	h.jsonResponse(w, map[string]string{"status": "cancelled", "id": id})
}

// TradeRequest represents a signal-driven trade submission
type TradeRequest struct {
	Action          models.SignalAction `json:"action"`
	Quantity        decimal.Decimal     `json:"quantity"`
	OrderType       models.OrderType    `json:"order_type"`
	UseSignalLevels bool                `json:"use_signal_levels"`
}

// HandleSubmitTrade executes a trade against a timeframe's signal
func (h *Handler) HandleSubmitTrade(w http.ResponseWriter, r *http.Request) {
	tf := chi.URLParam(r, "timeframe")

	var req TradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.jsonError(w, "Invalid JSON request", http.StatusBadRequest)
		return
	}
	if req.OrderType == "" {
		req.OrderType = models.OrderTypeMarket
	}

	trade, err := h.app.SubmitSignalTrade(r.Context(), tf, req.Action, req.Quantity, req.OrderType, req.UseSignalLevels)
	if err != nil {
		if trade != nil {
			// Outcome unknown or rejected after the trade was recorded;
			// return the ledger entry alongside the error.
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(statusForError(err))
			json.NewEncoder(w).Encode(map[string]interface{}{
				"error": err.Error(),
				"trade": trade,
			})
			return
		}
		h.jsonError(w, err.Error(), statusForError(err))
		return
	}

	h.jsonResponse(w, trade)
}

// HandleGetTrades returns recent entries from the local trade ledger
func (h *Handler) HandleGetTrades(w http.ResponseWriter, r *http.Request) {
	limit := h.ParseLimitParam(r, 50)

	trades, err := h.app.GetTrades(r.Context(), limit)
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.jsonResponse(w, trades)
}

// HandleGetPendingTrades returns ledger entries awaiting reconciliation
func (h *Handler) HandleGetPendingTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := h.app.GetPendingTrades(r.Context())
	if err != nil {
		h.jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	h.jsonResponse(w, trades)
}

// Helper functions

// statusForError maps domain errors to HTTP status codes
func statusForError(err error) int {
	switch {
	case errors.Is(err, models.ErrInvalidTimeframe):
		return http.StatusBadRequest
	case errors.Is(err, indicators.ErrInsufficientHistory),
		errors.Is(err, forecast.ErrInsufficientHistory),
		errors.Is(err, forecast.ErrModelUnavailable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, broker.ErrNotAuthenticated):
		return http.StatusUnauthorized
	case errors.Is(err, broker.ErrOrderRejected):
		return http.StatusUnprocessableEntity
	case errors.Is(err, pipeline.ErrTradingDisabled):
		return http.StatusForbidden
	case errors.Is(err, pipeline.ErrHoldAction):
		return http.StatusUnprocessableEntity
	case errors.Is(err, broker.ErrOrderSubmissionFailed),
		errors.Is(err, broker.ErrTransientUpstream):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// jsonOrderError reports a failed order submission, including the recorded
// order when the brokerage may still have accepted it.
func (h *Handler) jsonOrderError(w http.ResponseWriter, err error, order models.Order) {
	if errors.Is(err, broker.ErrOrderSubmissionFailed) || errors.Is(err, broker.ErrOrderRejected) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusForError(err))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"error": err.Error(),
			"order": order,
		})
		return
	}
	h.jsonError(w, err.Error(), statusForError(err))
}

// ParseLimitParam parses the limit query parameter
func (h *Handler) ParseLimitParam(r *http.Request, defaultLimit int) int {
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 {
			return l
		}
	}
	return defaultLimit
}

func (h *Handler) jsonResponse(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (h *Handler) jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
