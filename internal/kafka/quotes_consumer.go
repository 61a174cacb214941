package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"
)

// PriceCache defines the interface for warming the quote cache.
type PriceCache interface {
	SetStockPrice(ctx context.Context, stockCode string, price float64, ttl time.Duration) error
}

// QuoteEvent represents a market quote event from Kafka.
type QuoteEvent struct {
	EventType string         `json:"event_type"`
	Source    string         `json:"source"`
	Timestamp string         `json:"timestamp"`
	Data      QuoteEventData `json:"data"`
}

// QuoteEventData holds the quoted stock and price.
type QuoteEventData struct {
	StockCode string  `json:"stock_code"`
	Price     float64 `json:"price"`
}

// QuotesConsumer warms the price cache from upstream quote events, so
// price lookups hit the cache instead of the quote API.
type QuotesConsumer struct {
	reader   *kafka.Reader
	cache    PriceCache
	cacheTTL time.Duration
}

// NewQuotesConsumer creates a Kafka consumer for quote events.
func NewQuotesConsumer(brokers []string, topic, groupID string, cache PriceCache, cacheTTL time.Duration) *QuotesConsumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:        brokers,
		Topic:          topic,
		GroupID:        groupID + "-quotes",
		MinBytes:       10e3, // 10KB
		MaxBytes:       10e6, // 10MB
		MaxWait:        1 * time.Second,
		StartOffset:    kafka.LastOffset,
		CommitInterval: time.Second,
	})

	return &QuotesConsumer{
		reader:   reader,
		cache:    cache,
		cacheTTL: cacheTTL,
	}
}

// Start begins consuming messages from Kafka.
func (c *QuotesConsumer) Start(ctx context.Context) error {
	log.Printf("Starting quotes consumer for topic: %s", c.reader.Config().Topic)

	for {
		select {
		case <-ctx.Done():
			log.Println("Quotes consumer shutting down...")
			return c.reader.Close()
		default:
			msg, err := c.reader.ReadMessage(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return nil // Context cancelled, normal shutdown
				}
				log.Printf("Error reading quote message: %v", err)
				continue
			}

			if err := c.processMessage(ctx, msg); err != nil {
				log.Printf("Error processing quote message: %v", err)
				// Continue processing other messages
			}
		}
	}
}

// processMessage handles a single Kafka message.
func (c *QuotesConsumer) processMessage(ctx context.Context, msg kafka.Message) error {
	var event QuoteEvent
	if err := json.Unmarshal(msg.Value, &event); err != nil {
		return fmt.Errorf("failed to unmarshal quote event: %w", err)
	}

	switch event.EventType {
	case "QUOTE_UPDATED":
		return c.handleQuoteUpdated(ctx, event)
	default:
		log.Printf("Ignoring unknown quote event type: %s", event.EventType)
		return nil
	}
}

func (c *QuotesConsumer) handleQuoteUpdated(ctx context.Context, event QuoteEvent) error {
	if event.Data.StockCode == "" {
		return fmt.Errorf("quote event missing stock code")
	}
	if event.Data.Price <= 0 {
		return fmt.Errorf("quote event for %s has non-positive price %f",
			event.Data.StockCode, event.Data.Price)
	}

	if err := c.cache.SetStockPrice(ctx, event.Data.StockCode, event.Data.Price, c.cacheTTL); err != nil {
		return fmt.Errorf("failed to cache price for %s: %w", event.Data.StockCode, err)
	}

	log.Printf("Cached quote: %s = %.2f", event.Data.StockCode, event.Data.Price)
	return nil
}

// Close closes the Kafka consumer.
func (c *QuotesConsumer) Close() error {
	return c.reader.Close()
}
