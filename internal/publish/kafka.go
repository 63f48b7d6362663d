// Package publish streams backtest trades to Kafka for downstream
// analytics.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/segmentio/kafka-go"

	"trading-backtest/internal/model"
)

const batchSize = 100

// Trade kinds carried in TradeEvent.Kind.
const (
	KindTrade  = "trade"
	KindMissed = "missed"
)

// TradeEvent is the JSON payload of one Kafka message.
type TradeEvent struct {
	RunID         string  `json:"run_id"`
	Kind          string  `json:"kind"`
	Symbol        string  `json:"symbol"`
	Underlying    string  `json:"underlying,omitempty"`
	Sector        string  `json:"sector,omitempty"`
	EntryDate     string  `json:"entry_date"`
	ExitDate      string  `json:"exit_date"`
	EntryPrice    float64 `json:"entry_price"`
	ExitPrice     float64 `json:"exit_price"`
	Profit        float64 `json:"profit"`
	ProfitPercent float64 `json:"profit_percent"`
	TradingDays   int     `json:"trading_days"`
	ExitReason    string  `json:"exit_reason"`
}

// NewTradeEvent converts a trade into its wire form.
func NewTradeEvent(runID, kind string, t *model.Trade) TradeEvent {
	return TradeEvent{
		RunID:         runID,
		Kind:          kind,
		Symbol:        t.Symbol,
		Underlying:    t.UnderlyingSymbol,
		Sector:        t.Sector,
		EntryDate:     t.StartDate.Format(model.DateLayout),
		ExitDate:      t.ExitDate().Format(model.DateLayout),
		EntryPrice:    t.EntryQuote.Close,
		ExitPrice:     t.EntryQuote.Close + t.Profit,
		Profit:        t.Profit,
		ProfitPercent: t.ProfitPercent(),
		TradingDays:   t.TradingDays(),
		ExitReason:    t.ExitReason,
	}
}

// MessageWriter is the subset of *kafka.Writer the publisher needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes one message per trade, keyed by symbol so a
// symbol's trades stay ordered within a partition.
type KafkaPublisher struct {
	writer MessageWriter
	topic  string
}

// NewKafkaPublisher creates a publisher for topic on brokers.
func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka: no brokers configured")
	}
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: kafka.RequireOne,
	}
	log.Printf("[kafka] publishing trades to %s on %v", topic, brokers)
	return &KafkaPublisher{writer: w, topic: topic}, nil
}

// NewKafkaPublisherWithWriter wraps an existing writer.
func NewKafkaPublisherWithWriter(w MessageWriter, topic string) *KafkaPublisher {
	return &KafkaPublisher{writer: w, topic: topic}
}

// PublishRun writes every trade and missed trade of a run.
func (p *KafkaPublisher) PublishRun(ctx context.Context, runID string, trades, missed []model.Trade) error {
	msgs := make([]kafka.Message, 0, len(trades)+len(missed))
	add := func(kind string, ts []model.Trade) error {
		for i := range ts {
			data, err := json.Marshal(NewTradeEvent(runID, kind, &ts[i]))
			if err != nil {
				return fmt.Errorf("marshal trade event: %w", err)
			}
			msgs = append(msgs, kafka.Message{
				Key:   []byte(ts[i].Symbol),
				Value: data,
				Headers: []kafka.Header{
					{Key: "run_id", Value: []byte(runID)},
					{Key: "kind", Value: []byte(kind)},
				},
			})
		}
		return nil
	}
	if err := add(KindTrade, trades); err != nil {
		return err
	}
	if err := add(KindMissed, missed); err != nil {
		return err
	}

	for start := 0; start < len(msgs); start += batchSize {
		end := start + batchSize
		if end > len(msgs) {
			end = len(msgs)
		}
		if err := p.writer.WriteMessages(ctx, msgs[start:end]...); err != nil {
			return fmt.Errorf("kafka write %s: %w", p.topic, err)
		}
	}
	log.Printf("[kafka] published %d trades and %d missed trades for run %s", len(trades), len(missed), runID)
	return nil
}

// Close flushes and closes the writer.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}
