package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultTWSEBaseURL is the Taiwan Stock Exchange real-time quote endpoint.
const DefaultTWSEBaseURL = "https://mis.twse.com.tw/stock/api"

// TWSE fetches real-time prices from the Taiwan Stock Exchange quote API.
type TWSE struct {
	baseURL string
	client  *http.Client
}

// NewTWSE creates a TWSE price source.
func NewTWSE(baseURL string, timeout time.Duration) *TWSE {
	if baseURL == "" {
		baseURL = DefaultTWSEBaseURL
	}
	return &TWSE{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type twseResponse struct {
	MsgArray []twseQuote `json:"msgArray"`
}

type twseQuote struct {
	// Last trade price, opening price, and previous close. The exchange
	// returns "-" outside trading hours, hence the fallback chain.
	Last  string `json:"z"`
	Open  string `json:"o"`
	Close string `json:"y"`
}

// GetPrice fetches the current price for a stock code, falling back from
// last trade to opening price to previous close.
func (t *TWSE) GetPrice(ctx context.Context, stockCode string) (decimal.Decimal, error) {
	url := fmt.Sprintf("%s/getStockInfo.jsp?ex_ch=tse_%s.tw&json=1", t.baseURL, stockCode)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := t.client.Do(req)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decimal.Zero, fmt.Errorf("%w: quote API returned status %d", ErrUnavailable, resp.StatusCode)
	}

	var payload twseResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return decimal.Zero, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	if len(payload.MsgArray) == 0 {
		return decimal.Zero, fmt.Errorf("%w: no quote for %s", ErrUnavailable, stockCode)
	}

	quote := payload.MsgArray[0]
	for _, raw := range []string{quote.Last, quote.Open, quote.Close} {
		if raw == "" || raw == "-" {
			continue
		}
		price, err := decimal.NewFromString(raw)
		if err != nil {
			continue
		}
		if price.IsPositive() {
			return price.Round(2), nil
		}
	}
	return decimal.Zero, fmt.Errorf("%w: no usable field for %s", ErrUnavailable, stockCode)
}
