package api

import (
	"github.com/gorilla/mux"

	"github.com/mmaven/paper-trader/internal/metrics"
)

// SetupRoutes configures all API routes
func SetupRoutes(handler *Handler) *mux.Router {
	r := mux.NewRouter()
	r.Use(metrics.Middleware)

	// Health check and metrics
	r.HandleFunc("/health", handler.HealthCheck).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	// Per-user ledger routes
	user := r.PathPrefix("/api/v1/users/{userID}").Subrouter()
	user.HandleFunc("/portfolio", handler.GetPortfolio).Methods("GET")
	user.HandleFunc("/buy", handler.Buy).Methods("POST")
	user.HandleFunc("/sell", handler.Sell).Methods("POST")
	user.HandleFunc("/adjust-cost", handler.AdjustCost).Methods("POST")
	user.HandleFunc("/transactions", handler.GetTransactions).Methods("GET")
	user.HandleFunc("/pnl", handler.GetPnL).Methods("GET")
	user.HandleFunc("/pnl/clear", handler.ClearPnL).Methods("POST")
	user.HandleFunc("/settings", handler.GetSettings).Methods("GET")
	user.HandleFunc("/settings", handler.UpdateSettings).Methods("PUT")
	user.HandleFunc("/settings/reset", handler.ResetSettings).Methods("POST")

	// Two-phase random trade flow
	user.HandleFunc("/trades/random", handler.ProposeRandomTrade).Methods("POST")
	user.HandleFunc("/trades/pending", handler.GetPendingTrade).Methods("GET")
	user.HandleFunc("/trades/confirm", handler.ConfirmPendingTrade).Methods("POST")
	user.HandleFunc("/trades/cancel", handler.CancelPendingTrade).Methods("POST")

	// Auto-trade and settlement flow
	user.HandleFunc("/autotrade", handler.AutoTrade).Methods("POST")
	user.HandleFunc("/settlement", handler.GetPendingSettlement).Methods("GET")
	user.HandleFunc("/settlement/price", handler.SettlePrice).Methods("POST")

	return r
}
