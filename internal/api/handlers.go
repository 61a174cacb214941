package api

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/shopspring/decimal"

	"github.com/mmaven/paper-trader/internal/autotrader"
	"github.com/mmaven/paper-trader/internal/catalog"
	"github.com/mmaven/paper-trader/internal/fees"
	"github.com/mmaven/paper-trader/internal/ledger"
	"github.com/mmaven/paper-trader/internal/models"
	"github.com/mmaven/paper-trader/internal/oracle"
	"github.com/mmaven/paper-trader/internal/store"
)

const (
	defaultTransactionLimit = 5
	maxTransactionLimit     = 20
)

// TradePublisher emits trade events. Publishing is best effort: a failed
// publish never fails the request.
type TradePublisher interface {
	PublishTrade(ctx context.Context, entry *models.Transaction, pnl *models.RealizedPnL) error
}

// DBPinger reports whether the database is reachable.
type DBPinger interface {
	Ping() error
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	engine   *ledger.Engine
	trader   *autotrader.Trader
	store    store.Store
	oracle   oracle.PriceSource
	producer TradePublisher
	db       DBPinger
	redis    Pinger
}

// NewHandler creates a new Handler. producer, db, and redis may be nil.
func NewHandler(engine *ledger.Engine, trader *autotrader.Trader, st store.Store, src oracle.PriceSource, producer TradePublisher, db DBPinger, redisClient Pinger) *Handler {
	return &Handler{
		engine:   engine,
		trader:   trader,
		store:    st,
		oracle:   src,
		producer: producer,
		db:       db,
		redis:    redisClient,
	}
}

// PortfolioPosition is a position decorated with its current valuation.
// Valuation fields stay null when no price is available.
type PortfolioPosition struct {
	StockCode     string           `json:"stock_code"`
	StockName     string           `json:"stock_name"`
	Shares        int64            `json:"shares"`
	TotalCost     decimal.Decimal  `json:"total_cost"`
	AvgCost       decimal.Decimal  `json:"avg_cost"`
	CurrentPrice  *decimal.Decimal `json:"current_price,omitempty"`
	MarketValue   *decimal.Decimal `json:"market_value,omitempty"`
	UnrealizedPnL *decimal.Decimal `json:"unrealized_pnl,omitempty"`
}

// PortfolioResponse is the GET /portfolio payload.
type PortfolioResponse struct {
	Positions          []PortfolioPosition `json:"positions"`
	TotalCost          decimal.Decimal     `json:"total_cost"`
	TotalMarketValue   decimal.Decimal     `json:"total_market_value"`
	TotalUnrealizedPnL decimal.Decimal     `json:"total_unrealized_pnl"`
}

// GetPortfolio handles GET /users/{userID}/portfolio. Market value and
// unrealized P&L use net sell proceeds at the current price, so the
// valuation already accounts for the fees a liquidation would pay.
func (h *Handler) GetPortfolio(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	positions, err := h.engine.Portfolio(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}

	resp := PortfolioResponse{
		Positions:          make([]PortfolioPosition, 0, len(positions)),
		TotalCost:          decimal.Zero,
		TotalMarketValue:   decimal.Zero,
		TotalUnrealizedPnL: decimal.Zero,
	}
	for _, p := range positions {
		pp := PortfolioPosition{
			StockCode: p.StockCode,
			StockName: p.StockName,
			Shares:    p.Shares,
			TotalCost: p.TotalCost,
			AvgCost:   p.AvgCost().Round(2),
		}
		resp.TotalCost = resp.TotalCost.Add(p.TotalCost)

		price, err := h.oracle.GetPrice(r.Context(), p.StockCode)
		if err == nil && price.IsPositive() {
			if value, err := fees.SellProceeds(p.Shares, price); err == nil {
				unrealized := value.Sub(p.TotalCost).Round(2)
				pp.CurrentPrice = &price
				pp.MarketValue = &value
				pp.UnrealizedPnL = &unrealized
				resp.TotalMarketValue = resp.TotalMarketValue.Add(value)
				resp.TotalUnrealizedPnL = resp.TotalUnrealizedPnL.Add(unrealized)
			}
		}
		resp.Positions = append(resp.Positions, pp)
	}

	respondJSON(w, http.StatusOK, resp)
}

type tradeRequest struct {
	Stock  string  `json:"stock"`
	Shares int64   `json:"shares"`
	Price  *string `json:"price,omitempty"`
}

// Buy handles POST /users/{userID}/buy.
func (h *Handler) Buy(w http.ResponseWriter, r *http.Request) {
	h.manualTrade(w, r, "buy", h.engine.Buy)
}

// Sell handles POST /users/{userID}/sell.
func (h *Handler) Sell(w http.ResponseWriter, r *http.Request) {
	h.manualTrade(w, r, "sell", h.engine.Sell)
}

type tradeFunc func(ctx context.Context, userID string, stk catalog.Stock, shares int64, price decimal.Decimal, command, note string) (*ledger.TradeResult, error)

func (h *Handler) manualTrade(w http.ResponseWriter, r *http.Request, command string, trade tradeFunc) {
	userID := mux.Vars(r)["userID"]

	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Stock == "" {
		http.Error(w, "stock is required", http.StatusBadRequest)
		return
	}
	if blocked := h.gateOnPendingTrade(w, r, userID); blocked {
		return
	}

	stk, err := h.engine.ResolveStock(r.Context(), req.Stock)
	if err != nil {
		respondError(w, err)
		return
	}

	price, note, err := h.resolvePrice(r.Context(), stk.Code, req.Price)
	if err != nil {
		respondError(w, err)
		return
	}

	result, err := trade(r.Context(), userID, stk, req.Shares, price, command, note)
	if err != nil {
		respondError(w, err)
		return
	}

	h.publishTrade(r.Context(), result)
	respondJSON(w, http.StatusOK, result)
}

// resolvePrice uses the caller's price when given, the oracle otherwise.
// The journal note records which one it was.
func (h *Handler) resolvePrice(ctx context.Context, stockCode string, custom *string) (decimal.Decimal, string, error) {
	if custom != nil {
		price, err := decimal.NewFromString(*custom)
		if err != nil || !price.IsPositive() {
			return decimal.Zero, "", ledger.ErrInvalidTradeInput
		}
		return price, "(custom price)", nil
	}
	price, err := h.oracle.GetPrice(ctx, stockCode)
	if err != nil || !price.IsPositive() {
		return decimal.Zero, "", ledger.ErrPriceUnavailable
	}
	return price, "(market price)", nil
}

// gateOnPendingTrade rejects trading commands while a random-trade proposal
// awaits confirmation. Returns true when the request was rejected.
func (h *Handler) gateOnPendingTrade(w http.ResponseWriter, r *http.Request, userID string) bool {
	pending, err := h.engine.HasPendingTrade(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return true
	}
	if pending {
		http.Error(w, "resolve pending trade first", http.StatusConflict)
		return true
	}
	return false
}

// AdjustCost handles POST /users/{userID}/adjust-cost.
func (h *Handler) AdjustCost(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	var req struct {
		Stock      string `json:"stock"`
		NewAvgCost string `json:"new_avg_cost"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Stock == "" {
		http.Error(w, "stock is required", http.StatusBadRequest)
		return
	}
	if blocked := h.gateOnPendingTrade(w, r, userID); blocked {
		return
	}

	newAvgCost, err := decimal.NewFromString(req.NewAvgCost)
	if err != nil {
		http.Error(w, "new_avg_cost must be a number", http.StatusBadRequest)
		return
	}

	stk, err := h.engine.ResolveStock(r.Context(), req.Stock)
	if err != nil {
		respondError(w, err)
		return
	}

	result, err := h.engine.AdjustCost(r.Context(), userID, stk, newAvgCost)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// GetTransactions handles GET /users/{userID}/transactions?limit=N.
func (h *Handler) GetTransactions(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	limit := defaultTransactionLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 || parsed > maxTransactionLimit {
			http.Error(w, "limit must be between 1 and 20", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	entries, err := h.engine.RecentTransactions(r.Context(), userID, limit)
	if err != nil {
		respondError(w, err)
		return
	}
	if entries == nil {
		entries = []*models.Transaction{}
	}
	respondJSON(w, http.StatusOK, entries)
}

// GetPnL handles GET /users/{userID}/pnl.
func (h *Handler) GetPnL(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	stats, err := h.engine.PnLStats(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, stats)
}

// ClearPnL handles POST /users/{userID}/pnl/clear.
func (h *Handler) ClearPnL(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	cleared, err := h.engine.ClearRealizedPnL(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]decimal.Decimal{"cleared": cleared})
}

// GetSettings handles GET /users/{userID}/settings.
func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	settings, err := h.store.GetOrCreateSettings(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, settings)
}

// UpdateSettings handles PUT /users/{userID}/settings.
func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	var req struct {
		MinAmount  int64 `json:"min_amount"`
		MaxAmount  int64 `json:"max_amount"`
		BuyWeight  int   `json:"buy_weight"`
		SellWeight int   `json:"sell_weight"`
		HoldWeight int   `json:"hold_weight"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	settings := &models.UserSettings{
		UserID:     userID,
		MinAmount:  req.MinAmount,
		MaxAmount:  req.MaxAmount,
		BuyWeight:  req.BuyWeight,
		SellWeight: req.SellWeight,
		HoldWeight: req.HoldWeight,
	}
	if err := settings.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := h.store.SaveSettings(r.Context(), settings); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, settings)
}

// ResetSettings handles POST /users/{userID}/settings/reset.
func (h *Handler) ResetSettings(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userID"]

	settings := models.DefaultSettings(userID)
	if err := h.store.SaveSettings(r.Context(), settings); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, settings)
}

// HealthCheck handles GET /health.
func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	health := map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
		"services":  map[string]string{},
	}
	services := health["services"].(map[string]string)
	allHealthy := true

	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			services["postgres"] = "unhealthy: " + err.Error()
			allHealthy = false
		} else {
			services["postgres"] = "healthy"
		}
	} else {
		services["postgres"] = "not configured"
		allHealthy = false
	}

	if h.redis != nil {
		if err := h.redis.Ping(ctx); err != nil {
			services["redis"] = "unhealthy: " + err.Error()
		} else {
			services["redis"] = "healthy"
		}
	} else {
		services["redis"] = "not configured"
	}

	status := http.StatusOK
	if !allHealthy {
		health["status"] = "unhealthy"
		status = http.StatusServiceUnavailable
	}
	respondJSON(w, status, health)
}

// publishTrade emits the trade event. Publish failures are logged and
// never fail the request.
func (h *Handler) publishTrade(ctx context.Context, result *ledger.TradeResult) {
	if h.producer == nil || result == nil {
		return
	}
	if err := h.producer.PublishTrade(ctx, result.Entry, result.PnL); err != nil {
		log.Printf("Error publishing trade event: %v", err)
	}
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

// respondError maps domain errors onto HTTP status codes.
func respondError(w http.ResponseWriter, err error) {
	var insufficientErr *ledger.InsufficientHoldingsError
	var persistErr *ledger.PersistenceError

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, ledger.ErrInvalidTradeInput),
		errors.Is(err, ledger.ErrBudgetTooSmall),
		errors.Is(err, autotrader.ErrInvalidPriceInput),
		errors.Is(err, models.ErrAmountTooSmall),
		errors.Is(err, models.ErrAmountRange),
		errors.Is(err, models.ErrRangeTooSmall),
		errors.Is(err, models.ErrNegativeWeight),
		errors.Is(err, models.ErrZeroWeights):
		status = http.StatusBadRequest
	case errors.Is(err, ledger.ErrNoSuchHolding),
		errors.Is(err, ledger.ErrNoPendingTrade),
		errors.Is(err, ledger.ErrNoPendingSettlement),
		errors.Is(err, catalog.ErrStockNotFound):
		status = http.StatusNotFound
	case errors.As(err, &insufficientErr),
		errors.Is(err, ledger.ErrTradeAlreadyPending),
		errors.Is(err, ledger.ErrSettlementAlreadyPending):
		status = http.StatusConflict
	case errors.Is(err, ledger.ErrPriceUnavailable),
		errors.Is(err, oracle.ErrUnavailable),
		errors.Is(err, catalog.ErrCatalogEmpty):
		status = http.StatusBadGateway
	case errors.As(err, &persistErr):
		status = http.StatusInternalServerError
	}

	http.Error(w, err.Error(), status)
}
