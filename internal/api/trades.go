package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/mmaven/paper-trader/internal/autotrader"
)

// ProposeRandomTrade handles POST /users/{userID}/trades/random.
func (h *Handler) ProposeRandomTrade(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	trade, err := h.engine.ProposeRandomTrade(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, trade)
}

// GetPendingTrade handles GET /users/{userID}/trades/pending.
func (h *Handler) GetPendingTrade(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	trade, err := h.engine.PendingTrade(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, trade)
}

// ConfirmPendingTrade handles POST /users/{userID}/trades/confirm.
func (h *Handler) ConfirmPendingTrade(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	result, err := h.engine.ConfirmPendingTrade(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}

	h.publishTrade(r.Context(), result)
	respondJSON(w, http.StatusOK, result)
}

// CancelPendingTrade handles POST /users/{userID}/trades/cancel.
func (h *Handler) CancelPendingTrade(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	if err := h.engine.CancelPendingTrade(r.Context(), userID); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "cancelled"})
}

// AutoTrade handles POST /users/{userID}/autotrade.
func (h *Handler) AutoTrade(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	var req struct {
		MinAmount *int64 `json:"min_amount,omitempty"`
		MaxAmount *int64 `json:"max_amount,omitempty"`
		ChannelID string `json:"channel_id,omitempty"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
	}
	if (req.MinAmount == nil) != (req.MaxAmount == nil) {
		http.Error(w, "min_amount and max_amount must be set together", http.StatusBadRequest)
		return
	}
	if blocked := h.gateOnPendingTrade(w, r, userID); blocked {
		return
	}

	var bounds *autotrader.Bounds
	if req.MinAmount != nil {
		bounds = &autotrader.Bounds{Min: *req.MinAmount, Max: *req.MaxAmount}
	}

	result, err := h.trader.Execute(r.Context(), userID, req.ChannelID, bounds)
	if err != nil {
		respondError(w, err)
		return
	}

	if result.Trade != nil {
		h.publishTrade(r.Context(), result.Trade)
	}
	respondJSON(w, http.StatusOK, result)
}

// GetPendingSettlement handles GET /users/{userID}/settlement.
func (h *Handler) GetPendingSettlement(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	settlement, err := h.trader.PendingSettlement(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, settlement)
}

// SettlePrice handles POST /users/{userID}/settlement/price.
func (h *Handler) SettlePrice(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	var req struct {
		Price string `json:"price"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.trader.HandlePriceInput(r.Context(), userID, req.Price)
	if err != nil {
		respondError(w, err)
		return
	}

	h.publishTrade(r.Context(), result)
	respondJSON(w, http.StatusOK, result)
}
