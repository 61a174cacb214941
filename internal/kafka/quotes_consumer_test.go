package kafka

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockPriceCache struct {
	mu     sync.Mutex
	prices map[string]float64
	ttls   map[string]time.Duration
	err    error
}

func newMockPriceCache() *mockPriceCache {
	return &mockPriceCache{
		prices: make(map[string]float64),
		ttls:   make(map[string]time.Duration),
	}
}

func (m *mockPriceCache) SetStockPrice(_ context.Context, stockCode string, price float64, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.prices[stockCode] = price
	m.ttls[stockCode] = ttl
	return nil
}

func (m *mockPriceCache) Price(stockCode string) (float64, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	p, ok := m.prices[stockCode]
	return p, ok
}

func TestQuotesConsumer_processMessage_QuoteUpdated(t *testing.T) {
	cache := newMockPriceCache()
	consumer := &QuotesConsumer{cache: cache, cacheTTL: time.Minute}

	event := QuoteEvent{
		EventType: "QUOTE_UPDATED",
		Source:    "twse",
		Timestamp: time.Now().Format(time.RFC3339),
		Data:      QuoteEventData{StockCode: "2330", Price: 612.5},
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	err = consumer.processMessage(context.Background(), kafkago.Message{Value: payload})
	require.NoError(t, err)

	price, ok := cache.Price("2330")
	require.True(t, ok)
	assert.Equal(t, 612.5, price)
	assert.Equal(t, time.Minute, cache.ttls["2330"])
}

func TestQuotesConsumer_processMessage_UnknownEventType(t *testing.T) {
	cache := newMockPriceCache()
	consumer := &QuotesConsumer{cache: cache, cacheTTL: time.Minute}

	event := QuoteEvent{
		EventType: "TOTALLY_UNKNOWN",
		Data:      QuoteEventData{StockCode: "2330", Price: 612.5},
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	err = consumer.processMessage(context.Background(), kafkago.Message{Value: payload})
	require.NoError(t, err) // Unknown types are silently ignored
	assert.Empty(t, cache.prices)
}

func TestQuotesConsumer_processMessage_InvalidJSON(t *testing.T) {
	cache := newMockPriceCache()
	consumer := &QuotesConsumer{cache: cache, cacheTTL: time.Minute}

	err := consumer.processMessage(context.Background(), kafkago.Message{Value: []byte("{invalid")})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unmarshal")
}

func TestQuotesConsumer_processMessage_MissingStockCode(t *testing.T) {
	cache := newMockPriceCache()
	consumer := &QuotesConsumer{cache: cache, cacheTTL: time.Minute}

	event := QuoteEvent{
		EventType: "QUOTE_UPDATED",
		Data:      QuoteEventData{Price: 612.5},
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	err = consumer.processMessage(context.Background(), kafkago.Message{Value: payload})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing stock code")
}

func TestQuotesConsumer_processMessage_NonPositivePrice(t *testing.T) {
	cache := newMockPriceCache()
	consumer := &QuotesConsumer{cache: cache, cacheTTL: time.Minute}

	for _, price := range []float64{0, -612.5} {
		event := QuoteEvent{
			EventType: "QUOTE_UPDATED",
			Data:      QuoteEventData{StockCode: "2330", Price: price},
		}
		payload, err := json.Marshal(event)
		require.NoError(t, err)

		err = consumer.processMessage(context.Background(), kafkago.Message{Value: payload})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "non-positive price")
	}
	assert.Empty(t, cache.prices)
}

func TestQuotesConsumer_processMessage_CacheError(t *testing.T) {
	cache := newMockPriceCache()
	cache.err = assert.AnError
	consumer := &QuotesConsumer{cache: cache, cacheTTL: time.Minute}

	event := QuoteEvent{
		EventType: "QUOTE_UPDATED",
		Data:      QuoteEventData{StockCode: "2330", Price: 612.5},
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	err = consumer.processMessage(context.Background(), kafkago.Message{Value: payload})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to cache price")
}
