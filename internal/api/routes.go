package api

import (
	"net/http"
	"time"

	"gold-trader/config"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates and configures a Chi router with all routes
func NewRouter(h *Handler, cfg *config.Config) http.Handler {
	r := chi.NewRouter()

	// Middleware stack
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(time.Duration(cfg.Kite.TimeoutSeconds+5) * time.Second))
	r.Use(CORSMiddleware(cfg.HTTP.CORSAllowedOrigins))
	r.Use(MetricsMiddleware)

	// Metrics endpoint for Prometheus
	r.Handle("/metrics", promhttp.Handler())

	// API routes
	r.Route("/api", func(r chi.Router) {
		// Health check
		r.Get("/health", h.HandleHealth)

		// Analysis
		r.Get("/indicators/{timeframe}", h.HandleGetIndicators)

		// Forecast
		r.Route("/forecast", func(r chi.Router) {
			r.Get("/{timeframe}", h.HandleGetForecast)
			r.Post("/{timeframe}/retrain", h.HandleRetrainForecast)
			r.Get("/{timeframe}/accuracy", h.HandleGetForecastAccuracy)
		})

		// Signals
		r.Get("/signals", h.HandleGetAllSignals)
		r.Get("/signals/{timeframe}", h.HandleGetSignal)

		// Brokerage session
		r.Route("/auth", func(r chi.Router) {
			r.Get("/login", h.HandleBeginLogin)
			r.Get("/callback", h.HandleLoginCallback)
			r.Post("/logout", h.HandleLogout)
			r.Get("/session", h.HandleGetSession)
		})

		// Brokerage account
		r.Route("/broker", func(r chi.Router) {
			r.Get("/profile", h.HandleGetProfile)
			r.Get("/margins", h.HandleGetMargins)
			r.Get("/positions", h.HandleGetPositions)
			r.Get("/holdings", h.HandleGetHoldings)
			r.Get("/orders", h.HandleGetBrokerOrders)
			r.Get("/orders/{id}", h.HandleGetBrokerOrderStatus)
		})

		// Orders
		r.Post("/orders", h.HandlePlaceOrder)
		r.Delete("/orders/{id}", h.HandleCancelOrder)

		// Trades
		r.Post("/trade/{timeframe}", h.HandleSubmitTrade)
		r.Get("/trades", h.HandleGetTrades)
		r.Get("/trades/pending", h.HandleGetPendingTrades)
	})

	return r
}

// CORSMiddleware returns CORS middleware with the specified allowed origins
func CORSMiddleware(allowedOrigins string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", allowedOrigins)
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
