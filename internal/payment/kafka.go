package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// messageWriter is the part of *kafka.Writer the notifier uses.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaNotifier publishes payment signals to a single topic, keyed by
// reservation id so every event of one reservation lands on the same partition.
type KafkaNotifier struct {
	writer messageWriter
	topic  string
}

// flushInterval bounds how long a synchronous write waits for its batch to
// fill. The kafka-go default is one second.
const flushInterval = 5 * time.Millisecond

func NewKafkaNotifier(brokers []string, topic string) *KafkaNotifier {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchTimeout:           flushInterval,
		WriteTimeout:           5 * time.Second,
	}
	return &KafkaNotifier{writer: w, topic: topic}
}

func newKafkaNotifierWithWriter(w messageWriter, topic string) *KafkaNotifier {
	return &KafkaNotifier{writer: w, topic: topic}
}

func (n *KafkaNotifier) PaymentRequired(ctx context.Context, evt PaymentRequired) error {
	return n.PaymentRequiredBatch(ctx, []PaymentRequired{evt})
}

// PaymentRequiredBatch publishes all events with a single write.
func (n *KafkaNotifier) PaymentRequiredBatch(ctx context.Context, evts []PaymentRequired) error {
	if len(evts) == 0 {
		return nil
	}
	msgs := make([]kafka.Message, 0, len(evts))
	for _, evt := range evts {
		msg, err := n.message(ctx, EventPaymentRequired, evt.ReservationID, evt)
		if err != nil {
			return err
		}
		msgs = append(msgs, msg)
	}
	return n.write(ctx, EventPaymentRequired, msgs)
}

func (n *KafkaNotifier) RefundDue(ctx context.Context, evt RefundDue) error {
	msg, err := n.message(ctx, EventRefundDue, evt.ReservationID, evt)
	if err != nil {
		return err
	}
	return n.write(ctx, EventRefundDue, []kafka.Message{msg})
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

func (n *KafkaNotifier) message(ctx context.Context, eventType, key string, payload any) (kafka.Message, error) {
	value, err := json.Marshal(payload)
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal %s failed: %w", eventType, err)
	}

	msg := kafka.Message{
		Topic: n.topic,
		Key:   []byte(key),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(uuid.NewString())},
			{Key: "event_type", Value: []byte(eventType)},
		},
	}
	msg.Headers = injectTraceHeaders(ctx, msg.Headers)
	return msg, nil
}

func (n *KafkaNotifier) write(ctx context.Context, eventType string, msgs []kafka.Message) error {
	if err := n.writer.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("publish %s failed: %w", eventType, err)
	}
	return nil
}

func injectTraceHeaders(ctx context.Context, headers []kafka.Header) []kafka.Header {
	carrier := &headerCarrier{headers: headers}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return carrier.headers
}

type headerCarrier struct {
	headers []kafka.Header
}

func (c *headerCarrier) Get(key string) string {
	for _, h := range c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c *headerCarrier) Keys() []string {
	keys := make([]string, 0, len(c.headers))
	for _, h := range c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}

func (c *headerCarrier) Set(key, value string) {
	for i := range c.headers {
		if c.headers[i].Key == key {
			c.headers[i].Value = []byte(value)
			return
		}
	}
	c.headers = append(c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

var _ propagation.TextMapCarrier = (*headerCarrier)(nil)
