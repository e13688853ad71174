package api

import (
	"github.com/gorilla/mux"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(requestLogger(handler.logger))

	// Health check
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/sync", handler.Sync).Methods("POST")
	api.HandleFunc("/rank", handler.GetRank).Methods("GET")
	api.HandleFunc("/predictions/{symbol}", handler.GetPrediction).Methods("GET")
	api.HandleFunc("/statistics/{symbol}", handler.GetStatistic).Methods("GET")
	api.HandleFunc("/prices/{symbol}", handler.GetPrices).Methods("GET")

	return r
}
