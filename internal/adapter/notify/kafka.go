package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/truecex/exchange/internal/domain"
	"github.com/truecex/exchange/internal/port"
)

var _ port.Notifier = (*KafkaNotifier)(nil)

// event is the wire envelope published to Kafka. Keys are the symbol so one
// symbol's events stay ordered within a partition.
type event struct {
	Type  string `json:"type"`
	Trade any    `json:"trade,omitempty"`
	Order any    `json:"order,omitempty"`
}

// KafkaNotifier publishes trade and order-status events to a single topic.
type KafkaNotifier struct {
	writer *kafka.Writer
}

func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	return &KafkaNotifier{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			Async:        false,
			BatchTimeout: 10 * time.Millisecond,
		},
	}
}

func (n *KafkaNotifier) Close() error { return n.writer.Close() }

func (n *KafkaNotifier) PublishTrade(ctx context.Context, t *domain.Trade) error {
	return n.send(ctx, t.Symbol, event{Type: "trade", Trade: t})
}

func (n *KafkaNotifier) PublishOrderUpdate(ctx context.Context, o *domain.Order) error {
	return n.send(ctx, o.Symbol, event{Type: "order", Order: o})
}

func (n *KafkaNotifier) send(ctx context.Context, symbol string, ev event) error {
	value, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("notify: marshal event: %w", err)
	}
	return n.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(symbol),
		Value: value,
	})
}
