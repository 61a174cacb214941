package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/mmaven/paper-trader/internal/models"
)

// TradeEvent is published after every executed trade.
type TradeEvent struct {
	EventType string         `json:"event_type"`
	Source    string         `json:"source"`
	Timestamp string         `json:"timestamp"`
	Data      TradeEventData `json:"data"`
}

// TradeEventData carries the executed trade details.
type TradeEventData struct {
	UserID     string          `json:"user_id"`
	Type       string          `json:"type"`
	StockCode  string          `json:"stock_code"`
	StockName  string          `json:"stock_name"`
	Shares     int64           `json:"shares"`
	Price      decimal.Decimal `json:"price"`
	Amount     decimal.Decimal `json:"amount"`
	ProfitLoss decimal.Decimal `json:"profit_loss,omitempty"`
}

// Producer publishes trade events to Kafka.
type Producer struct {
	writer *kafka.Writer
}

// NewProducer creates a Kafka producer for the trades topic.
func NewProducer(brokers []string, topic string) *Producer {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
	}
	return &Producer{writer: writer}
}

// PublishTrade emits a TRADE_EXECUTED event, keyed by user so a user's
// trades stay ordered within a partition.
func (p *Producer) PublishTrade(ctx context.Context, entry *models.Transaction, pnl *models.RealizedPnL) error {
	event := TradeEvent{
		EventType: "TRADE_EXECUTED",
		Source:    "paper-trader",
		Timestamp: entry.Timestamp.Format(time.RFC3339),
		Data: TradeEventData{
			UserID:    entry.UserID,
			Type:      string(entry.Type),
			StockCode: entry.StockCode,
			StockName: entry.StockName,
			Shares:    entry.Shares,
			Price:     entry.Price,
			Amount:    entry.Amount,
		},
	}
	if pnl != nil {
		event.Data.ProfitLoss = pnl.ProfitLoss
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal trade event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(entry.UserID),
		Value: payload,
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish trade event: %w", err)
	}
	return nil
}

// Close closes the Kafka producer.
func (p *Producer) Close() error {
	return p.writer.Close()
}
