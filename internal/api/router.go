package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/wonny/helix/internal/api/handlers"
	"github.com/wonny/helix/pkg/logger"
	"github.com/wonny/helix/pkg/redis"
)

// Handlers bundles everything the router serves
type Handlers struct {
	Orders    *handlers.OrderHandler
	Market    *handlers.MarketHandler
	Wallets   *handlers.WalletHandler
	Positions *handlers.PositionHandler
	Stream    *handlers.StreamHandler
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(h Handlers, limiter *redis.RateLimiter, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", healthCheckHandler).Methods("GET")

	// Trade stream
	r.HandleFunc("/ws/trades", h.Stream.Trades).Methods("GET")

	api := r.PathPrefix("/api").Subrouter()

	// Orders
	api.HandleFunc("/orders", h.Orders.Submit).Methods("POST")
	api.HandleFunc("/orders", h.Orders.List).Methods("GET")
	api.HandleFunc("/orders/{id}", h.Orders.Cancel).Methods("DELETE")

	// Market data
	api.HandleFunc("/orderbook/{symbol}", h.Market.OrderBook).Methods("GET")
	api.HandleFunc("/trades/{symbol}", h.Market.Trades).Methods("GET")
	api.HandleFunc("/candles/{symbol}", h.Market.Candles).Methods("GET")

	// Wallets
	api.HandleFunc("/wallets", h.Wallets.List).Methods("GET")
	api.HandleFunc("/wallets/deposit", h.Wallets.Deposit).Methods("POST")
	api.HandleFunc("/wallets/reset", h.Wallets.Reset).Methods("POST")
	api.HandleFunc("/wallets/entries", h.Wallets.Entries).Methods("GET")

	// Positions
	api.HandleFunc("/positions", h.Positions.List).Methods("GET")

	if limiter != nil {
		api.Use(rateLimitMiddleware(limiter, log))
	}
	r.Use(loggingMiddleware(log))
	r.Use(recoveryMiddleware(log))

	return r
}

// healthCheckHandler returns server health status
func healthCheckHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"service": "helix-api",
	})
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			next.ServeHTTP(w, r)

			log.WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"duration": time.Since(start),
			}).Debug("HTTP request")
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)
					json.NewEncoder(w).Encode(map[string]string{
						"error": "Internal server error",
					})
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// rateLimitMiddleware throttles API calls per client address
func rateLimitMiddleware(limiter *redis.RateLimiter, log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cfg := redis.APIRateLimit
			cfg.Key = r.RemoteAddr
			allowed, _, err := limiter.Allow(r.Context(), cfg)
			if err != nil {
				log.WithError(err).Warn("Rate limiter unavailable, letting request through")
			} else if !allowed {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{
					"error": "Too many requests",
				})
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
