package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/tylerle0/InvestAnalytics/internal/api/handlers"
	"github.com/tylerle0/InvestAnalytics/pkg/logger"
)

// Routes bundles the handlers mounted by NewRouter. Stream and Metrics may
// be nil.
type Routes struct {
	Forecast *handlers.ForecastHandler
	Health   http.Handler
	Stream   http.Handler
	Metrics  HTTPObserver
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: routes are declared only here
func NewRouter(routes Routes, log *logger.Logger) http.Handler {
	r := mux.NewRouter()

	r.Handle("/health", routes.Health).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/predictions", routes.Forecast.GetPredictions).Methods(http.MethodGet)
	api.HandleFunc("/currentinfo", routes.Forecast.GetCurrentInfo).Methods(http.MethodGet)
	api.HandleFunc("/news", routes.Forecast.GetNews).Methods(http.MethodGet)
	if routes.Stream != nil {
		api.Handle("/stream", routes.Stream).Methods(http.MethodGet)
	}

	// unprefixed aliases
	r.HandleFunc("/predictions", routes.Forecast.GetPredictions).Methods(http.MethodGet)
	r.HandleFunc("/currentinfo", routes.Forecast.GetCurrentInfo).Methods(http.MethodGet)

	r.Use(requestIDMiddleware)
	r.Use(loggingMiddleware(log.Component("http")))
	r.Use(recoveryMiddleware(log.Component("http")))
	r.Use(corsMiddleware)
	if routes.Metrics != nil {
		r.Use(metricsMiddleware(routes.Metrics))
	}

	return r
}
