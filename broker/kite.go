// Package broker is the gateway to the Kite Connect brokerage API. It owns
// the OAuth-style session lifecycle, classifies upstream failures as
// transient or terminal, and guarantees idempotent order submission keyed by
// client_request_id.
package broker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"gold-trader/config"
	"gold-trader/models"
	"gold-trader/observability"
)

const (
	kiteLoginURL = "https://kite.zerodha.com/connect/login"
	kiteVersion  = "3"

	productNRML = "NRML"
	validityDay = "DAY"

	// Exit legs use a stop-loss-market trigger; the target leg is a plain LIMIT.
	orderTypeStopLossMarket = "SL-M"
)

// Profile identifies the brokerage account behind the session.
type Profile struct {
	UserID    string   `json:"user_id"`
	UserName  string   `json:"user_name"`
	Email     string   `json:"email"`
	Broker    string   `json:"broker"`
	UserType  string   `json:"user_type"`
	Exchanges []string `json:"exchanges"`
}

// MarginFunds is the cash breakdown within one margin segment.
type MarginFunds struct {
	Cash       decimal.Decimal `json:"cash"`
	Collateral decimal.Decimal `json:"collateral"`
}

// SegmentMargin holds the funds available in one trading segment.
type SegmentMargin struct {
	Enabled   bool            `json:"enabled"`
	Net       decimal.Decimal `json:"net"`
	Available MarginFunds     `json:"available"`
}

// Margins maps segment name (equity, commodity) to its funds.
type Margins map[string]SegmentMargin

// Position is one open position as reported by the brokerage.
type Position struct {
	TradingSymbol string          `json:"tradingsymbol"`
	Exchange      string          `json:"exchange"`
	Product       string          `json:"product"`
	Quantity      int             `json:"quantity"`
	AveragePrice  decimal.Decimal `json:"average_price"`
	LastPrice     decimal.Decimal `json:"last_price"`
	PnL           decimal.Decimal `json:"pnl"`
}

// Holding is one demat holding as reported by the brokerage.
type Holding struct {
	TradingSymbol string          `json:"tradingsymbol"`
	Exchange      string          `json:"exchange"`
	Quantity      int             `json:"quantity"`
	AveragePrice  decimal.Decimal `json:"average_price"`
	LastPrice     decimal.Decimal `json:"last_price"`
	PnL           decimal.Decimal `json:"pnl"`
}

// BrokerOrder is one order in the brokerage's order book.
type BrokerOrder struct {
	OrderID         string          `json:"order_id"`
	Status          string          `json:"status"`
	StatusMessage   string          `json:"status_message"`
	TradingSymbol   string          `json:"tradingsymbol"`
	Exchange        string          `json:"exchange"`
	TransactionType string          `json:"transaction_type"`
	OrderType       string          `json:"order_type"`
	Quantity        int             `json:"quantity"`
	Price           decimal.Decimal `json:"price"`
	AveragePrice    decimal.Decimal `json:"average_price"`
}

// KiteGateway manages the Kite Connect session state machine and all trading
// calls. Session mutation is serialized; trading calls against the same
// session may run concurrently.
type KiteGateway struct {
	cfg        config.KiteConfig
	httpClient *http.Client
	baseURL    string
	breakers   *CircuitBreakerRegistry
	retry      RetryConfig

	sessionMu sync.Mutex
	session   models.BrokerSession

	ledger *orderLedger
}

// NewKiteGateway creates a gateway in the UNAUTHENTICATED state.
func NewKiteGateway(cfg config.KiteConfig) *KiteGateway {
	retry := DefaultRetryConfig
	if cfg.MaxRetries > 0 {
		retry.MaxRetries = cfg.MaxRetries
	}
	return &KiteGateway{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		breakers:   NewCircuitBreakerRegistry(DefaultCircuitBreakerConfig),
		retry:      retry,
		session:    models.BrokerSession{State: models.SessionStateUnauthenticated},
		ledger:     newOrderLedger(),
	}
}

// Session returns the current session value.
func (g *KiteGateway) Session() models.BrokerSession {
	g.sessionMu.Lock()
	defer g.sessionMu.Unlock()
	return g.session
}

// LoginURL issues the brokerage login URL and moves the session to
// AWAITING_CALLBACK. The user completes the login in a browser; the brokerage
// redirects back with a request token.
func (g *KiteGateway) LoginURL() string {
	g.sessionMu.Lock()
	g.session = models.BrokerSession{State: models.SessionStateAwaitingCallback}
	g.sessionMu.Unlock()

	params := url.Values{}
	params.Set("v", kiteVersion)
	params.Set("api_key", g.cfg.APIKey)
	return kiteLoginURL + "?" + params.Encode()
}

// CompleteLogin exchanges the callback request token for an access token and
// moves the session to AUTHENTICATED. The checksum is
// SHA-256(api_key + request_token + api_secret) per the Kite Connect flow.
func (g *KiteGateway) CompleteLogin(ctx context.Context, requestToken string) (models.BrokerSession, error) {
	if requestToken == "" {
		return models.BrokerSession{}, fmt.Errorf("%w: empty request token", ErrNotAuthenticated)
	}

	sum := sha256.Sum256([]byte(g.cfg.APIKey + requestToken + g.cfg.APISecret))
	form := url.Values{}
	form.Set("api_key", g.cfg.APIKey)
	form.Set("request_token", requestToken)
	form.Set("checksum", hex.EncodeToString(sum[:]))

	var data struct {
		AccessToken string `json:"access_token"`
		UserID      string `json:"user_id"`
	}
	if err := g.call(ctx, "complete_login", http.MethodPost, "/session/token", form, false, &data); err != nil {
		return models.BrokerSession{}, err
	}
	if data.AccessToken == "" {
		return models.BrokerSession{}, fmt.Errorf("%w: token exchange returned no access token", ErrNotAuthenticated)
	}

	session := models.BrokerSession{
		State:       models.SessionStateAuthenticated,
		AccessToken: data.AccessToken,
		ObtainedAt:  time.Now().UTC(),
		ProfileID:   data.UserID,
	}
	g.sessionMu.Lock()
	g.session = session
	g.sessionMu.Unlock()

	observability.Info("broker session established", "profile_id", session.ProfileID)
	return session, nil
}

// Logout invalidates the session locally and best-effort revokes the access
// token upstream. The gateway is UNAUTHENTICATED afterwards regardless of the
// upstream call's outcome.
func (g *KiteGateway) Logout(ctx context.Context) {
	g.sessionMu.Lock()
	session := g.session
	g.session = session.Invalidated()
	g.sessionMu.Unlock()

	if !session.Authenticated() {
		return
	}
	params := url.Values{}
	params.Set("api_key", g.cfg.APIKey)
	params.Set("access_token", session.AccessToken)
	if err := g.call(ctx, "logout", http.MethodDelete, "/session/token?"+params.Encode(), nil, false, nil); err != nil {
		observability.Warn("failed to revoke access token upstream", "error", err)
	}
}

// invalidateSession drops the session after the brokerage returned a 401.
// There is no silent refresh; a fresh login round trip is required.
func (g *KiteGateway) invalidateSession() {
	g.sessionMu.Lock()
	g.session = g.session.Invalidated()
	g.sessionMu.Unlock()
	observability.Warn("broker session invalidated, re-login required")
}

// GetProfile returns the account profile of the authenticated session.
func (g *KiteGateway) GetProfile(ctx context.Context) (*Profile, error) {
	var profile Profile
	if err := g.authedCall(ctx, "profile", http.MethodGet, "/user/profile", nil, &profile); err != nil {
		return nil, err
	}
	return &profile, nil
}

// GetMargins returns available funds per trading segment.
func (g *KiteGateway) GetMargins(ctx context.Context) (Margins, error) {
	var margins Margins
	if err := g.authedCall(ctx, "margins", http.MethodGet, "/user/margins", nil, &margins); err != nil {
		return nil, err
	}
	return margins, nil
}

// GetPositions returns the net open positions.
func (g *KiteGateway) GetPositions(ctx context.Context) ([]Position, error) {
	var data struct {
		Net []Position `json:"net"`
		Day []Position `json:"day"`
	}
	if err := g.authedCall(ctx, "positions", http.MethodGet, "/portfolio/positions", nil, &data); err != nil {
		return nil, err
	}
	return data.Net, nil
}

// GetHoldings returns the demat holdings.
func (g *KiteGateway) GetHoldings(ctx context.Context) ([]Holding, error) {
	var holdings []Holding
	if err := g.authedCall(ctx, "holdings", http.MethodGet, "/portfolio/holdings", nil, &holdings); err != nil {
		return nil, err
	}
	return holdings, nil
}

// GetOrders returns the brokerage order book for the day.
func (g *KiteGateway) GetOrders(ctx context.Context) ([]BrokerOrder, error) {
	var orders []BrokerOrder
	if err := g.authedCall(ctx, "orders", http.MethodGet, "/orders", nil, &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

// GetOrderStatus returns the latest state of one order, for reconciling a
// submission whose outcome is unknown.
func (g *KiteGateway) GetOrderStatus(ctx context.Context, brokerOrderID string) (*BrokerOrder, error) {
	var history []BrokerOrder
	if err := g.authedCall(ctx, "order_status", http.MethodGet, "/orders/"+url.PathEscape(brokerOrderID), nil, &history); err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("no history for order %s", brokerOrderID)
	}
	latest := history[len(history)-1]
	return &latest, nil
}

// LocalOrders returns every order outcome recorded by this gateway, for
// reconciliation against the brokerage order book.
func (g *KiteGateway) LocalOrders() []models.Order {
	return g.ledger.snapshot()
}

// BreakerStatus reports the state of the gateway's circuit breakers.
func (g *KiteGateway) BreakerStatus() map[string]CircuitBreakerStatus {
	return g.breakers.Status()
}

// PlaceOrder submits an order, idempotently keyed by its client_request_id.
// A prior recorded outcome for the same id is returned without a second
// brokerage call. Each attempt runs through the circuit breaker; transient
// failures are retried with bounded backoff, and after the retry ceiling the
// order stays PENDING with its outcome unknown and the returned error carries
// the client_request_id for reconciliation. An order carrying stop or target
// levels gets companion exit orders after the entry fills.
func (g *KiteGateway) PlaceOrder(ctx context.Context, order models.Order) (models.Order, error) {
	session := g.Session()
	if !session.Authenticated() {
		return order, ErrNotAuthenticated
	}
	if order.ClientRequestID == "" {
		return order, fmt.Errorf("order has no client_request_id")
	}

	entry := g.ledger.entry(order.ClientRequestID)
	entry.mu.Lock()
	defer entry.mu.Unlock()

	if prior, priorErr, ok := entry.outcome(); ok {
		observability.Info("returning recorded order outcome",
			"client_request_id", order.ClientRequestID,
			"status", prior.Status)
		return prior, priorErr
	}

	form := g.orderForm(order.Action, string(order.OrderType), order.Quantity)
	form.Set("tag", order.ClientRequestID)
	if order.OrderType == models.OrderTypeLimit && order.Price != nil {
		form.Set("price", order.Price.String())
	}

	timer := observability.GetMetrics().NewTimer()
	orderID, attempts, err := g.submitRegular(ctx, "place_order", form)
	timer.ObserveBroker("place_order")

	switch {
	case err == nil:
		order.BrokerOrderID = orderID
		order.Status = models.OrderStatusComplete
		g.placeExitLegs(ctx, order)
		entry.record(order, nil)
		observability.Info("order placed",
			"client_request_id", order.ClientRequestID,
			"broker_order_id", order.BrokerOrderID,
			"action", order.Action,
			"quantity", order.Quantity)
		return order, nil

	case errors.Is(err, ErrNotAuthenticated):
		// The submission never reached the order book; a resubmission
		// after re-login is a fresh attempt, so nothing is recorded.
		g.invalidateSession()
		observability.GetMetrics().RecordBrokerError("place_order", "not_authenticated")
		return order, err

	case errors.Is(err, ErrOrderRejected):
		order.Status = models.OrderStatusRejected
		rejection := fmt.Errorf("%w (client_request_id=%s): %v", ErrOrderRejected, order.ClientRequestID, err)
		entry.record(order, rejection)
		observability.GetMetrics().RecordBrokerError("place_order", "rejected")
		return order, rejection

	default:
		// Retry ceiling exhausted; outcome unknown. Keep PENDING and
		// let the caller reconcile via an order-status query.
		order.Status = models.OrderStatusPending
		submissionErr := &SubmissionError{
			ClientRequestID: order.ClientRequestID,
			Attempts:        attempts,
			Err:             err,
		}
		entry.record(order, submissionErr)
		observability.GetMetrics().RecordBrokerError("place_order", "submission_failed")
		observability.Error("order submission failed, outcome unknown",
			"client_request_id", order.ClientRequestID,
			"attempts", attempts,
			"error", err)
		return order, submissionErr
	}
}

// orderForm builds the common fields of a regular-variety order submission.
func (g *KiteGateway) orderForm(action models.SignalAction, orderType string, quantity decimal.Decimal) url.Values {
	form := url.Values{}
	form.Set("tradingsymbol", g.cfg.TradingSymbol)
	form.Set("exchange", g.cfg.Exchange)
	form.Set("transaction_type", string(action))
	form.Set("order_type", orderType)
	form.Set("quantity", quantity.String())
	form.Set("product", productNRML)
	form.Set("validity", validityDay)
	return form
}

// submitRegular posts one order form, running every attempt through the
// circuit breaker. A breaker rejection classifies transient, so an open
// breaker exhausts the retry budget without reaching the brokerage.
func (g *KiteGateway) submitRegular(ctx context.Context, operation string, form url.Values) (orderID string, attempts int, err error) {
	var data struct {
		OrderID string `json:"order_id"`
	}
	err = withRetry(ctx, g.retry, operation, func() error {
		attempts++
		_, execErr := g.breakers.Execute(ctx, BreakerKite, func() (any, error) {
			return nil, g.do(ctx, http.MethodPost, "/orders/regular", form, true, &data)
		})
		return execErr
	})
	return data.OrderID, attempts, err
}

// placeExitLegs submits the stop and target companion orders for a filled
// entry, on the opposite side of the book. The stop is a trigger-priced SL-M
// order and the target a LIMIT. A failed leg never changes the entry's
// outcome; the position is live either way, so the failure is logged with the
// broker order id for manual follow-up.
func (g *KiteGateway) placeExitLegs(ctx context.Context, order models.Order) {
	if order.StopLoss == nil && order.TakeProfit == nil {
		return
	}

	exitSide := models.SignalActionSell
	if order.Action == models.SignalActionSell {
		exitSide = models.SignalActionBuy
	}

	if order.StopLoss != nil {
		form := g.orderForm(exitSide, orderTypeStopLossMarket, order.Quantity)
		form.Set("trigger_price", order.StopLoss.String())
		form.Set("tag", order.ClientRequestID+":sl")
		if legID, _, err := g.submitRegular(ctx, "place_stop_order", form); err != nil {
			observability.GetMetrics().RecordBrokerError("place_stop_order", errorLabel(err))
			observability.Error("failed to place stop loss leg",
				"client_request_id", order.ClientRequestID,
				"broker_order_id", order.BrokerOrderID,
				"error", err)
		} else {
			observability.Info("stop loss leg placed",
				"client_request_id", order.ClientRequestID,
				"leg_order_id", legID,
				"trigger_price", order.StopLoss)
		}
	}

	if order.TakeProfit != nil {
		form := g.orderForm(exitSide, string(models.OrderTypeLimit), order.Quantity)
		form.Set("price", order.TakeProfit.String())
		form.Set("tag", order.ClientRequestID+":tp")
		if legID, _, err := g.submitRegular(ctx, "place_target_order", form); err != nil {
			observability.GetMetrics().RecordBrokerError("place_target_order", errorLabel(err))
			observability.Error("failed to place take profit leg",
				"client_request_id", order.ClientRequestID,
				"broker_order_id", order.BrokerOrderID,
				"error", err)
		} else {
			observability.Info("take profit leg placed",
				"client_request_id", order.ClientRequestID,
				"leg_order_id", legID,
				"limit_price", order.TakeProfit)
		}
	}
}

// CancelOrder cancels a pending order at the brokerage.
func (g *KiteGateway) CancelOrder(ctx context.Context, brokerOrderID string) error {
	return g.authedCall(ctx, "cancel_order", http.MethodDelete, "/orders/regular/"+url.PathEscape(brokerOrderID), nil, nil)
}

// authedCall runs a single trading call that requires an AUTHENTICATED
// session, classifying failures and invalidating the session on a 401.
func (g *KiteGateway) authedCall(ctx context.Context, operation, method, path string, form url.Values, out any) error {
	session := g.Session()
	if !session.Authenticated() {
		return ErrNotAuthenticated
	}
	return g.call(ctx, operation, method, path, form, true, out)
}

// call runs one classified, breaker-guarded request.
func (g *KiteGateway) call(ctx context.Context, operation, method, path string, form url.Values, authed bool, out any) error {
	observability.GetMetrics().RecordBrokerRequest(operation)
	timer := observability.GetMetrics().NewTimer()
	defer timer.ObserveBroker(operation)

	_, err := g.breakers.Execute(ctx, BreakerKite, func() (any, error) {
		return nil, g.do(ctx, method, path, form, authed, out)
	})
	if err == nil {
		return nil
	}

	classified := classify(err)
	if errors.Is(classified, ErrNotAuthenticated) {
		g.invalidateSession()
	}
	observability.GetMetrics().RecordBrokerError(operation, errorLabel(classified))
	return classified
}

// do performs one raw HTTP round trip against the Kite API and decodes the
// response envelope into out. Non-2xx responses become *apiError for the
// classifier.
func (g *KiteGateway) do(ctx context.Context, method, path string, form url.Values, authed bool, out any) error {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, g.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("X-Kite-Version", kiteVersion)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if authed {
		session := g.Session()
		req.Header.Set("Authorization", "token "+g.cfg.APIKey+":"+session.AccessToken)
	}

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	var envelope struct {
		Status    string          `json:"status"`
		Data      json.RawMessage `json:"data"`
		Message   string          `json:"message"`
		ErrorType string          `json:"error_type"`
	}
	if err := json.Unmarshal(payload, &envelope); err != nil && resp.StatusCode < 300 {
		return fmt.Errorf("failed to decode response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &apiError{
			StatusCode: resp.StatusCode,
			ErrorType:  envelope.ErrorType,
			Message:    envelope.Message,
		}
	}

	if out != nil && envelope.Data != nil {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return fmt.Errorf("failed to decode response data: %w", err)
		}
	}
	return nil
}

func errorLabel(err error) string {
	switch {
	case errors.Is(err, ErrNotAuthenticated):
		return "not_authenticated"
	case errors.Is(err, ErrOrderRejected):
		return "rejected"
	default:
		return "transient"
	}
}
