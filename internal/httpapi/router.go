// Package httpapi assembles the service's HTTP surface.
package httpapi

import (
	"context"
	"net/http"
	"time"

	validatorv10 "github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"
	"github.com/jogardn/storefront/internal/apperr"
	"github.com/jogardn/storefront/internal/auth"
	"github.com/jogardn/storefront/internal/catalog"
	"github.com/jogardn/storefront/internal/circuitbreaker"
	"github.com/jogardn/storefront/internal/customers"
	"github.com/jogardn/storefront/internal/httpx"
	"github.com/jogardn/storefront/internal/orders"
	"github.com/jogardn/storefront/internal/store"
	"github.com/sirupsen/logrus"
)

type Deps struct {
	Store     store.Store
	Orders    *orders.Service
	Customers *customers.Service
	Catalog   *catalog.Service
	Issuer    *auth.TokenIssuer
	Breakers  *circuitbreaker.Manager
	Validate  *validatorv10.Validate
	Logger    *logrus.Logger
}

// NewRouter mounts /health and the /api/v1 routes. Everything except login
// and the catalog requires a bearer token. CORS wraps the whole router so
// preflight requests are answered before route matching.
func NewRouter(d Deps) http.Handler {
	router := mux.NewRouter()
	router.Use(httpx.LoggingMiddleware(d.Logger))

	router.HandleFunc("/health", healthCheck(d)).Methods("GET")

	api := router.PathPrefix("/api/v1").Subrouter()
	auth.NewHandler(d.Store, d.Issuer, d.Validate, d.Logger).RegisterRoutes(api)
	catalog.NewHandler(d.Catalog, d.Validate, d.Logger).RegisterRoutes(api)

	protected := api.NewRoute().Subrouter()
	protected.Use(auth.Middleware(d.Issuer, d.Logger))
	orders.NewHandler(d.Orders, d.Validate, d.Logger).RegisterRoutes(protected)
	customers.NewHandler(d.Customers, d.Validate, d.Logger).RegisterRoutes(protected)
	customers.NewProfileHandler(d.Customers, d.Orders, d.Validate, d.Logger).RegisterRoutes(protected)
	if d.Breakers != nil {
		protected.HandleFunc("/circuit-breakers", listBreakers(d)).Methods("GET")
		protected.HandleFunc("/circuit-breakers/{name}/reset", resetBreaker(d)).Methods("POST")
	}

	return httpx.CORSMiddleware()(router)
}

func listBreakers(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		httpx.RespondWithJSON(w, http.StatusOK, d.Breakers.AllMetrics())
	}
}

func resetBreaker(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := mux.Vars(r)["name"]
		if !d.Breakers.Reset(name) {
			httpx.RespondWithError(w, r, d.Logger, apperr.NotFound("circuit breaker"))
			return
		}
		httpx.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "Circuit breaker reset",
		})
	}
}

func healthCheck(d Deps) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		var breakers []circuitbreaker.Metrics
		if d.Breakers != nil {
			breakers = d.Breakers.AllMetrics()
		}

		if err := d.Store.Ping(ctx); err != nil {
			d.Logger.WithError(err).Warn("Health check failed")
			httpx.RespondWithJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
				"status":           "unhealthy",
				"service":          "order-service",
				"error":            "database connection failed",
				"circuit_breakers": breakers,
			})
			return
		}

		httpx.RespondWithJSON(w, http.StatusOK, map[string]interface{}{
			"status":           "healthy",
			"service":          "order-service",
			"circuit_breakers": breakers,
		})
	}
}
